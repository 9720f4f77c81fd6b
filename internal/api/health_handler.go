package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"call-screener/internal/cache"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db     *pgxpool.Pool
	cache  *cache.ResultCache
	logger *zap.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *pgxpool.Pool, results *cache.ResultCache, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		cache:  results,
		logger: logger,
	}
}

// Health returns basic health status
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "call-screener",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// Ready checks if the service is ready to handle requests
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	start := time.Now()

	checks := make(map[string]interface{})
	allHealthy := true

	dbCtx, dbCancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer dbCancel()

	dbStart := time.Now()
	if err := h.db.Ping(dbCtx); err != nil {
		checks["database"] = map[string]interface{}{
			"status":   "unhealthy",
			"error":    err.Error(),
			"duration": time.Since(dbStart).Milliseconds(),
		}
		allHealthy = false
		h.logger.Warn("database health check failed", zap.Error(err))
	} else {
		checks["database"] = map[string]interface{}{
			"status":   "healthy",
			"duration": time.Since(dbStart).Milliseconds(),
		}
	}

	cacheCtx, cacheCancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cacheCancel()

	cacheStart := time.Now()
	if err := h.cache.Ping(cacheCtx); err != nil {
		checks["cache"] = map[string]interface{}{
			"status":   "unhealthy",
			"error":    err.Error(),
			"duration": time.Since(cacheStart).Milliseconds(),
		}
		allHealthy = false
		h.logger.Warn("cache health check failed", zap.Error(err))
	} else {
		checks["cache"] = map[string]interface{}{
			"status":   "healthy",
			"duration": time.Since(cacheStart).Milliseconds(),
		}
	}

	status := http.StatusOK
	overallStatus := "ready"
	if !allHealthy {
		status = http.StatusServiceUnavailable
		overallStatus = "not_ready"
	}

	c.JSON(status, gin.H{
		"status":         overallStatus,
		"service":        "call-screener",
		"checks":         checks,
		"total_duration": time.Since(start).Milliseconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// Live checks if the service is alive (minimal check)
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"service":   "call-screener",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
