package middleware

import (
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"safewatch-backend/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RateLimitMiddleware creates a rate limiting middleware. Limiter failures
// let the request through.
func RateLimitMiddleware(limiter ratelimit.RateLimiter, config *ratelimit.Config) gin.HandlerFunc {
	if config == nil {
		config = ratelimit.DefaultConfig()
	}

	return func(c *gin.Context) {
		clientID := getClientID(c)
		category := config.Category(c.Request.Method, c.FullPath())

		allowed, resetTime, err := limiter.Allow(clientID, category)
		if err != nil {
			log.Warn().Err(err).Str("category", category).Msg("rate limiter unavailable")
			c.Header("X-RateLimit-Error", "Rate limiter unavailable")
			c.Next()
			return
		}

		setRateLimitHeaders(c, limiter.LimitFor(category), allowed, resetTime)

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":    false,
				"message":    "Too many requests. Try again in " + resetTime.Round(time.Second).String(),
				"code":       "RATE_LIMIT_EXCEEDED",
				"retryAfter": retryAfterSeconds(resetTime),
			})
			return
		}

		c.Next()
	}
}

// getClientID prefers the authenticated user, then the client IP combined
// with a User-Agent digest.
func getClientID(c *gin.Context) string {
	if uid := c.GetString(UserIDKey); uid != "" {
		return "user:" + uid
	}

	return "anon:" + c.ClientIP() + ":" + hashString(c.GetHeader("User-Agent"))
}

func hashString(s string) string {
	if s == "" {
		return "unknown"
	}
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:4])
}

func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func setRateLimitHeaders(c *gin.Context, limit ratelimit.RateLimit, allowed bool, resetTime time.Duration) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(limit.RequestsPerMinute))
	c.Header("X-RateLimit-Window", strconv.Itoa(int(limit.WindowSize.Seconds())))
	c.Header("X-RateLimit-Burst", strconv.Itoa(limit.BurstSize))

	if !allowed {
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(resetTime)))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(resetTime).Unix(), 10))
	}
}
