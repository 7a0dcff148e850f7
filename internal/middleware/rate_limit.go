package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"botdeck/backend/internal/util"
	"botdeck/backend/pkg/logger"
	"botdeck/backend/pkg/redis"

	"github.com/gin-gonic/gin"
)

// Counter is the Redis subset a fixed-window limiter needs
type Counter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) error
}

// RateLimiter middleware limits requests per window
type RateLimiter struct {
	counter   Counter
	limit     int
	window    time.Duration
	keyPrefix string
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(counter Counter, limit int, window time.Duration, keyPrefix string) *RateLimiter {
	return &RateLimiter{
		counter:   counter,
		limit:     limit,
		window:    window,
		keyPrefix: keyPrefix,
	}
}

// Limit returns a middleware that limits requests
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get identifier (IP address or user ID)
		identifier := c.ClientIP()
		if userID, exists := c.Get("user_id"); exists {
			identifier = fmt.Sprintf("user:%v", userID)
		}

		key := redis.RateLimitKey(identifier, rl.keyPrefix)

		count, err := rl.hit(c.Request.Context(), key)
		if err != nil {
			// Redis trouble should not take the API down
			logger.GetLogger().Warnf("Rate limit check failed: %v", err)
			c.Next()
			return
		}

		remaining := int64(rl.limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(rl.limit) {
			c.Header("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			util.AbortWithCustomError(c, http.StatusTooManyRequests,
				util.ErrCodeRateLimit, "Rate limit exceeded. Please try again later.")
			return
		}

		c.Next()
	}
}

// hit increments the window counter, starting the window on the first request
func (rl *RateLimiter) hit(ctx context.Context, key string) (int64, error) {
	count, err := rl.counter.Incr(ctx, key)
	if err != nil {
		return 0, err
	}

	if count == 1 {
		if err := rl.counter.Expire(ctx, key, rl.window); err != nil {
			return 0, err
		}
	}

	return count, nil
}

// RateLimit creates a rate limiting middleware with default settings (per IP)
func RateLimit(counter Counter, limit int) gin.HandlerFunc {
	return NewRateLimiter(counter, limit, time.Minute, "general").Limit()
}

// AuthRateLimit creates a rate limiting middleware for auth endpoints
func AuthRateLimit(counter Counter, limit int) gin.HandlerFunc {
	return NewRateLimiter(counter, limit, time.Minute, "auth").Limit()
}
