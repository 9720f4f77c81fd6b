package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"call-screener/internal/models"
	"call-screener/internal/repository"
	"call-screener/internal/reputation"
	"call-screener/internal/stats"
)

// historyStore is the history repository surface the handler needs.
type historyStore interface {
	List(ctx context.Context, limit int) ([]models.HistoryEntry, error)
	GetByTimestamp(ctx context.Context, timestamp int64) (*models.HistoryEntry, error)
	UpdateResult(ctx context.Context, timestamp int64, text string, status models.ReputationStatus) error
	Clear(ctx context.Context) error
}

// statsSource computes aggregate screening statistics.
type statsSource interface {
	Summary(ctx context.Context) (*models.HistoryStats, error)
}

// reanalysisQueue schedules cache-bypassing reputation analyses.
type reanalysisQueue interface {
	EnqueueFresh(number string, timestamp int64)
}

// HistoryHandler handles the decision history endpoints
type HistoryHandler struct {
	history  historyStore
	stats    statsSource
	analyzer reanalysisQueue
	logger   *zap.Logger
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(
	history *repository.HistoryRepository,
	statsService *stats.Service,
	analyzer *reputation.Analyzer,
	logger *zap.Logger,
) *HistoryHandler {
	return &HistoryHandler{
		history:  history,
		stats:    statsService,
		analyzer: analyzer,
		logger:   logger,
	}
}

// ListHistory returns recent screening decisions, newest first
// GET /api/v1/history
func (h *HistoryHandler) ListHistory(c *gin.Context) {
	limit := 0
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	entries, err := h.history.List(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve history"})
		return
	}

	if entries == nil {
		entries = []models.HistoryEntry{}
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// ClearHistory removes all history entries
// DELETE /api/v1/history
func (h *HistoryHandler) ClearHistory(c *gin.Context) {
	if err := h.history.Clear(c.Request.Context()); err != nil {
		h.logger.Error("failed to clear history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "History cleared successfully"})
}

// Reanalyze re-runs the reputation analysis for one history entry
// POST /api/v1/history/:timestamp/reanalyze
func (h *HistoryHandler) Reanalyze(c *gin.Context) {
	timestamp, err := strconv.ParseInt(c.Param("timestamp"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid timestamp"})
		return
	}

	entry, err := h.history.GetByTimestamp(c.Request.Context(), timestamp)
	if err != nil {
		h.logger.Error("failed to get history entry", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve history entry"})
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "History entry not found"})
		return
	}
	if entry.Number == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Withheld numbers cannot be analyzed"})
		return
	}

	// Reset to pending so the UI shows the analysis in flight.
	if err := h.history.UpdateResult(c.Request.Context(), timestamp, "", models.ReputationPending); err != nil {
		h.logger.Error("failed to reset history entry", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset history entry"})
		return
	}

	// Bypass the result cache: re-running against the cached verdict would
	// just reproduce it.
	h.analyzer.EnqueueFresh(entry.Number, timestamp)

	h.logger.Info("reanalysis queued", zap.Int64("timestamp", timestamp))
	c.JSON(http.StatusAccepted, gin.H{"message": "Analysis queued"})
}

// GetStats returns aggregate screening statistics
// GET /api/v1/stats
func (h *HistoryHandler) GetStats(c *gin.Context) {
	summary, err := h.stats.Summary(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to compute stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute statistics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": summary})
}
