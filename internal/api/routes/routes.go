package routes

import (
	"time"

	"safewatch-backend/internal/api/handlers"
	"safewatch-backend/internal/api/middleware"
	"safewatch-backend/internal/services"
	"safewatch-backend/pkg/jwt"
	"safewatch-backend/pkg/media"
	"safewatch-backend/pkg/metrics"
	"safewatch-backend/pkg/ratelimit"
	"safewatch-backend/pkg/redis"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
)

// Dependencies carries everything the HTTP layer needs. DB, Redis and
// RateLimiter are optional.
type Dependencies struct {
	AlertService    *services.AlertService
	MediaStore      media.Store
	MaxUploadBytes  int64
	JWT             *jwt.JWTUtil
	RateLimiter     ratelimit.RateLimiter
	RateLimitConfig *ratelimit.Config
	RequestTimeout  time.Duration
	DB              *mongo.Database
	Redis           *redis.Client
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	alertHandler := handlers.NewAlertHandler(deps.AlertService, deps.MediaStore, deps.MaxUploadBytes)
	mediaHandler := handlers.NewMediaHandler(deps.MediaStore)
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Redis, deps.MediaStore)

	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	uploads := router.Group("/uploads")
	if deps.RateLimiter != nil {
		uploads.Use(middleware.RateLimitMiddleware(deps.RateLimiter, deps.RateLimitConfig))
	}
	uploads.GET("/:name", mediaHandler.ServeMedia)

	api := router.Group("/api")
	api.Use(middleware.RequestTimeout(deps.RequestTimeout))
	api.Use(middleware.AuthMiddleware(deps.JWT))
	if deps.RateLimiter != nil {
		api.Use(middleware.RateLimitMiddleware(deps.RateLimiter, deps.RateLimitConfig))
	}

	alerts := api.Group("/alerts")
	{
		alerts.POST("", alertHandler.CreateAlert)
		alerts.GET("", alertHandler.GetAlerts)
		alerts.GET("/mine", alertHandler.GetMyAlerts)
		alerts.GET("/:id", alertHandler.GetAlert)
		alerts.PUT("/:id", alertHandler.UpdateAlert)
		alerts.DELETE("/:id", alertHandler.DeleteAlert)
	}
}
