package middleware

import (
	"github.com/code-100-precent/LingCRM/pkg/constants"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestID 透传或生成请求 ID，写回响应头
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(constants.HeaderRequestID)
		if id == "" || len(id) > 64 {
			id = uuid.New().String()
		}
		c.Set(constants.RequestIDField, id)
		c.Header(constants.HeaderRequestID, id)
		c.Next()
	}
}
