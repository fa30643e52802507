package middleware

import (
	"strings"
	"time"

	"github.com/code-100-precent/LingCRM/pkg/constants"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LoggerMiddleware 请求日志中间件
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		method := c.Request.Method

		c.Next()

		// 过滤监控路径和普通 GET 请求
		if strings.Contains(path, "/metrics") || strings.Contains(path, "/health") {
			return
		}
		status := c.Writer.Status()
		if method == "GET" && status < 400 {
			return
		}

		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.String("user-agent", c.Request.UserAgent()),
			zap.Duration("latency", time.Since(start)),
		}
		if id := c.GetString(constants.RequestIDField); id != "" {
			fields = append(fields, zap.String("requestId", id))
		}
		if op := DescribeOperation(method, c.FullPath()); op != "" {
			fields = append(fields, zap.String("operation", op))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		if status >= 500 {
			logger.Error("Request", fields...)
			return
		}
		logger.Info("Request", fields...)
	}
}
