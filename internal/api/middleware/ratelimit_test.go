package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"safewatch-backend/pkg/ratelimit"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestMiddleware(t *testing.T) *gin.Engine {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	config := ratelimit.DefaultConfig()
	config.RedisKeyPrefix = "test_ratelimit:"
	config.DefaultLimits["alerts_read"] = ratelimit.RateLimit{
		RequestsPerMinute: 5,
		BurstSize:         2,
		WindowSize:        time.Minute,
	}
	config.DefaultLimits["alerts_create"] = ratelimit.RateLimit{
		RequestsPerMinute: 1,
		BurstSize:         1,
		WindowSize:        time.Minute,
	}

	limiter := ratelimit.NewRedisRateLimiter(client, config)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimitMiddleware(limiter, config))

	router.POST("/api/alerts", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "created"})
	})
	router.GET("/api/alerts", func(c *gin.Context) {
		c.JSON(http.StatusOK, []string{})
	})
	router.GET("/api/alerts/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})

	return router
}

func doRequest(router *gin.Engine, method, path, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-Forwarded-For", ip)
	req.Header.Set("User-Agent", "TestAgent/1.0")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimitMiddleware_BasicFunctionality(t *testing.T) {
	router := setupTestMiddleware(t)

	w1 := doRequest(router, http.MethodGet, "/api/alerts", "192.168.1.1")
	assert.Equal(t, http.StatusOK, w1.Code)
	assert.Equal(t, "5", w1.Header().Get("X-RateLimit-Limit"))

	w2 := doRequest(router, http.MethodGet, "/api/alerts", "192.168.1.1")
	assert.Equal(t, http.StatusOK, w2.Code)
}

func TestRateLimitMiddleware_RateLimitExceeded(t *testing.T) {
	router := setupTestMiddleware(t)

	w1 := doRequest(router, http.MethodPost, "/api/alerts", "192.168.1.2")
	assert.Equal(t, http.StatusOK, w1.Code)
	assert.Equal(t, "1", w1.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w1.Header().Get("X-RateLimit-Burst"))

	w2 := doRequest(router, http.MethodPost, "/api/alerts", "192.168.1.2")
	assert.Equal(t, http.StatusTooManyRequests, w2.Code)
	assert.NotEmpty(t, w2.Header().Get("Retry-After"))
	assert.Contains(t, w2.Body.String(), "RATE_LIMIT_EXCEEDED")
}

func TestRateLimitMiddleware_RouteTemplateSharesBucket(t *testing.T) {
	router := setupTestMiddleware(t)

	// Different ids hit the same "GET:/api/alerts/:id" category.
	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/api/alerts/a1", "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodGet, "/api/alerts/b2", "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(router, http.MethodGet, "/api/alerts/c3", "10.0.0.1").Code)
}

func TestRateLimitMiddleware_DifferentClients(t *testing.T) {
	router := setupTestMiddleware(t)

	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/api/alerts", "192.168.1.3").Code)
	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/api/alerts", "192.168.1.4").Code)
}

func TestRateLimitMiddleware_KeyHeaderDoesNotResetBucket(t *testing.T) {
	router := setupTestMiddleware(t)

	for i, key := range []string{"k1", "k2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/alerts", nil)
		req.Header.Set("X-Forwarded-For", "192.168.1.30")
		req.Header.Set("X-API-Key", key)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if i == 0 {
			assert.Equal(t, http.StatusOK, w.Code)
		} else {
			assert.Equal(t, http.StatusTooManyRequests, w.Code)
		}
	}
}

func TestRateLimitMiddleware_AuthenticatedUserIgnoresIP(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	config := ratelimit.DefaultConfig()
	config.DefaultLimits["alerts_create"] = ratelimit.RateLimit{RequestsPerMinute: 1, BurstSize: 1, WindowSize: time.Minute}
	limiter := ratelimit.NewRedisRateLimiter(client, config)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(UserIDKey, "user123")
		c.Next()
	})
	router.Use(RateLimitMiddleware(limiter, config))
	router.POST("/api/alerts", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, doRequest(router, http.MethodPost, "/api/alerts", "192.168.1.10").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(router, http.MethodPost, "/api/alerts", "192.168.1.11").Code)
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	config := ratelimit.DefaultConfig()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimitMiddleware(ratelimit.NewRedisRateLimiter(client, config), config))
	router.GET("/api/alerts", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := doRequest(router, http.MethodGet, "/api/alerts", "192.168.1.20")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Rate limiter unavailable", w.Header().Get("X-RateLimit-Error"))
}

func TestGetClientID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		setup    func(c *gin.Context)
		expected string
	}{
		{
			name: "authenticated user",
			setup: func(c *gin.Context) {
				c.Set(UserIDKey, "u1")
			},
			expected: "user:u1",
		},
		{
			name: "client supplied key header is ignored",
			setup: func(c *gin.Context) {
				c.Request.Header.Set("X-Forwarded-For", "203.0.113.7")
				c.Request.Header.Set("X-API-Key", "k1")
			},
			expected: "anon:203.0.113.7:unknown",
		},
		{
			name: "anonymous without user agent",
			setup: func(c *gin.Context) {
				c.Request.Header.Set("X-Forwarded-For", "203.0.113.7")
			},
			expected: "anon:203.0.113.7:unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(c)
			assert.Equal(t, tt.expected, getClientID(c))
		})
	}
}
