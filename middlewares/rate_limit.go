package middlewares

import (
	"net/http"
	"sync"
	"time"

	"backend/config"

	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware is a fixed-window per-client counter. Window and
// threshold come from RATE_LIMIT_WINDOW_SEC / RATE_LIMIT_MAX. In-memory only;
// a multi-instance deployment needs a shared store instead.
func RateLimitMiddleware() gin.HandlerFunc {
	window := time.Duration(config.App.RateLimitWindowSec) * time.Second
	limit := config.App.RateLimitMax

	type bucket struct {
		count   int
		resetAt time.Time
	}
	var mu sync.Mutex
	buckets := map[string]*bucket{}

	return func(c *gin.Context) {
		key := c.ClientIP()

		mu.Lock()
		b, ok := buckets[key]
		now := time.Now()
		if !ok || now.After(b.resetAt) {
			b = &bucket{resetAt: now.Add(window)}
			buckets[key] = b
		}
		b.count++
		over := b.count > limit
		mu.Unlock()

		if over {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "rate limit exceeded, try again later",
			})
			return
		}
		c.Next()
	}
}
