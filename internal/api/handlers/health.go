package handlers

import (
	"context"
	"net/http"
	"time"

	"safewatch-backend/pkg/database"
	"safewatch-backend/pkg/media"
	"safewatch-backend/pkg/redis"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
)

type HealthHandler struct {
	db          *mongo.Database
	redisClient *redis.Client
	store       media.Store
}

type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Services  map[string]interface{} `json:"services"`
}

// NewHealthHandler builds the handler. db and redisClient may be nil when the
// in-memory store or the in-process rate limiter is used.
func NewHealthHandler(db *mongo.Database, redisClient *redis.Client, store media.Store) *HealthHandler {
	return &HealthHandler{
		db:          db,
		redisClient: redisClient,
		store:       store,
	}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Timestamp: time.Now(),
		Services:  make(map[string]interface{}),
	}

	overallHealthy := true
	for name, check := range map[string]func(context.Context) map[string]interface{}{
		"mongodb": h.checkMongoDB,
		"redis":   h.checkRedis,
		"media":   h.checkMedia,
	} {
		status := check(c.Request.Context())
		response.Services[name] = status
		if !status["healthy"].(bool) {
			overallHealthy = false
		}
	}

	if overallHealthy {
		response.Status = "healthy"
		c.JSON(http.StatusOK, response)
	} else {
		response.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
	}
}

func (h *HealthHandler) checkMongoDB(ctx context.Context) map[string]interface{} {
	status := map[string]interface{}{
		"service": "mongodb",
		"healthy": false,
	}

	if h.db == nil {
		status["healthy"] = true
		status["message"] = "In-memory store"
		return status
	}

	if err := database.Health(ctx, h.db); err != nil {
		status["error"] = err.Error()
		return status
	}
	status["healthy"] = true
	status["message"] = "Connected"
	return status
}

func (h *HealthHandler) checkRedis(_ context.Context) map[string]interface{} {
	status := map[string]interface{}{
		"service": "redis",
		"healthy": false,
	}

	if h.redisClient == nil {
		status["healthy"] = true
		status["message"] = "Disabled"
		return status
	}

	healthStatus := h.redisClient.HealthCheck()
	status["healthy"] = healthStatus.IsConnected
	status["connectionInfo"] = healthStatus.ConnectionInfo
	status["responseTime"] = healthStatus.ResponseTime.String()
	status["lastPing"] = healthStatus.LastPing
	status["connectionStats"] = h.redisClient.GetConnectionStats()
	if healthStatus.Error != "" {
		status["error"] = healthStatus.Error
	}
	return status
}

func (h *HealthHandler) checkMedia(ctx context.Context) map[string]interface{} {
	status := map[string]interface{}{
		"service": "media",
		"healthy": false,
	}

	if h.store == nil {
		status["error"] = "Media store not initialized"
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := h.store.Check(ctx); err != nil {
		status["error"] = err.Error()
		return status
	}
	status["healthy"] = true
	return status
}
