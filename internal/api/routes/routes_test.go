package routes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"safewatch-backend/internal/repository"
	"safewatch-backend/internal/services"
	"safewatch-backend/pkg/jwt"
	"safewatch-backend/pkg/media"
	"safewatch-backend/pkg/metrics"
	"safewatch-backend/pkg/ratelimit"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T, limiter ratelimit.RateLimiter, config *ratelimit.Config) (*gin.Engine, *jwt.JWTUtil) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := media.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	jwtUtil := jwt.NewJWTUtil("routes-secret", time.Hour)

	router := gin.New()
	router.Use(metrics.Middleware())
	SetupRoutes(router, Dependencies{
		AlertService:    services.NewAlertService(repository.NewMemoryAlertRepository(), store),
		MediaStore:      store,
		MaxUploadBytes:  1 << 20,
		JWT:             jwtUtil,
		RateLimiter:     limiter,
		RateLimitConfig: config,
		RequestTimeout:  5 * time.Second,
	})
	return router, jwtUtil
}

func get(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSetupRoutes_Health(t *testing.T) {
	router, _ := setupRouter(t, nil, nil)

	w := get(router, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	assert.Contains(t, w.Body.String(), `"media"`)
}

func TestSetupRoutes_Metrics(t *testing.T) {
	router, jwtUtil := setupRouter(t, nil, nil)
	token, err := jwtUtil.GenerateToken("u1", "", "")
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, get(router, "/api/alerts", token).Code)

	w := get(router, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `safewatch_http_requests_total{method="GET",path="/api/alerts",status="200"}`))
}

func TestSetupRoutes_AlertsRequireAuth(t *testing.T) {
	router, _ := setupRouter(t, nil, nil)

	for _, path := range []string{"/api/alerts", "/api/alerts/mine", "/api/alerts/507f1f77bcf86cd799439011"} {
		assert.Equal(t, http.StatusUnauthorized, get(router, path, "").Code, path)
	}
}

func TestSetupRoutes_MineIsNotAnID(t *testing.T) {
	router, jwtUtil := setupRouter(t, nil, nil)
	token, err := jwtUtil.GenerateToken("u1", "", "")
	require.NoError(t, err)

	w := get(router, "/api/alerts/mine", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestSetupRoutes_RateLimited(t *testing.T) {
	config := ratelimit.DefaultConfig()
	config.CleanupInterval = 0
	config.DefaultLimits["alerts_read"] = ratelimit.RateLimit{RequestsPerMinute: 1, BurstSize: 1, WindowSize: time.Minute}
	limiter := ratelimit.NewMemoryRateLimiter(config)
	defer limiter.Close()

	router, jwtUtil := setupRouter(t, limiter, config)
	token, err := jwtUtil.GenerateToken("u1", "", "")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, get(router, "/api/alerts", token).Code)
	w := get(router, "/api/alerts", token)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}
