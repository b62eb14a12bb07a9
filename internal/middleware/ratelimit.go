package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/VeritasFi/aegis/internal/config"
)

// RateLimitMiddleware applies one token bucket per resolved role. Must run
// after RoleAuthMiddleware.
func RateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)

	limiterFor := func(role string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[role]
		if !ok {
			l = rate.NewLimiter(rate.Limit(cfg.RateLimit.QPS), cfg.RateLimit.Burst)
			limiters[role] = l
		}
		return l
	}

	return func(c *gin.Context) {
		role := Role(c)
		if role == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		if !limiterFor(role).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": "1s",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
