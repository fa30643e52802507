package middleware

import (
	"github.com/code-100-precent/LingCRM/pkg/constants"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// InjectDB 将数据库连接放入请求上下文
func InjectDB(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(constants.DbField, db.WithContext(c.Request.Context()))
		c.Next()
	}
}
