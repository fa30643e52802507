package middleware

import (
	"net/http"

	"github.com/code-100-precent/LingCRM/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

const rateLimitPrefix = "lingcrm:limiter"

// RateLimit 按格式化速率（如 "600-M"）限流。client 非空时使用 Redis 共享计数，否则使用进程内存。
// keyFunc 为空时按客户端 IP 计数。
func RateLimit(formatted string, client *redis.Client, keyFunc func(c *gin.Context) string) (gin.HandlerFunc, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, err
	}

	var store limiter.Store
	if client != nil {
		store, err = sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: rateLimitPrefix})
		if err != nil {
			return nil, err
		}
	} else {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: rateLimitPrefix})
	}

	opts := []mgin.Option{
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			response.AbortWithStatus(c, http.StatusTooManyRequests, "rate limit exceeded")
		}),
	}
	if keyFunc != nil {
		opts = append(opts, mgin.WithKeyGetter(keyFunc))
	}
	return mgin.NewMiddleware(limiter.New(store, rate), opts...), nil
}
