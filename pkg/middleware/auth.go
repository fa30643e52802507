package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/code-100-precent/LingCRM/pkg/constants"
	"github.com/code-100-precent/LingCRM/pkg/response"
	"github.com/gin-gonic/gin"
)

// APIKeyAuth 校验 X-API-Key，secret 为空时不做校验
func APIKeyAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		key := c.GetHeader(constants.HeaderAPIKey)
		if subtle.ConstantTimeCompare([]byte(key), []byte(secret)) != 1 {
			response.AbortWithStatus(c, http.StatusUnauthorized, "invalid api key")
			return
		}
		c.Next()
	}
}
