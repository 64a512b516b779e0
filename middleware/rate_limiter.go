package middleware

import (
	"fmt"
	"net/http"
	"time"

	"leadmarket/config"
	"leadmarket/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimitMiddleware limits requests per caller over a one-minute window.
// Counters live in Redis so the limit holds across replicas. Authenticated
// callers are keyed by principal, anonymous ones by IP.
func RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := utils.GetLogger()
		limit := config.AppConfig.MaxRequestsPerMin
		if limit <= 0 {
			c.Next()
			return
		}

		key := "ratelimit:ip:" + getClientIP(c)
		if principal, ok := GetPrincipal(c); ok {
			key = "ratelimit:principal:" + principal.ID
		}

		client := utils.GetRateLimitClient()
		ctx := c.Request.Context()

		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			// Redis trouble should not take down the API.
			logger.Warn("Rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if count == 1 {
			client.Expire(ctx, key, time.Minute)
		}

		if count > int64(limit) {
			logger.Warn("Rate limit exceeded", zap.String("key", key))
			c.Header("Retry-After", fmt.Sprintf("%d", 60))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded. Try again later."})
			return
		}
		c.Next()
	}
}
