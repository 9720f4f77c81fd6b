// Package api exposes the call screening service over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"call-screener/internal/metrics"
	"call-screener/internal/models"
	"call-screener/internal/repository"
	"call-screener/internal/reputation"
	"call-screener/internal/screening"
)

// decider is the screening engine surface the handler needs.
type decider interface {
	Decide(ctx context.Context, rawNumber string) *models.Decision
	Representative(rawNumber string) string
}

// historyWriter records screening decisions.
type historyWriter interface {
	Add(ctx context.Context, entry *models.HistoryEntry) error
}

// enqueuer schedules background reputation analyses.
type enqueuer interface {
	Enqueue(number string, timestamp int64)
}

// ScreenHandler handles the incoming-call decision endpoint
type ScreenHandler struct {
	engine   decider
	history  historyWriter
	analyzer enqueuer
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewScreenHandler creates a new screen handler
func NewScreenHandler(
	engine *screening.Engine,
	history *repository.HistoryRepository,
	analyzer *reputation.Analyzer,
	collector *metrics.Collector,
	logger *zap.Logger,
) *ScreenHandler {
	return &ScreenHandler{
		engine:   engine,
		history:  history,
		analyzer: analyzer,
		metrics:  collector,
		logger:   logger,
	}
}

// Screen decides whether an incoming call should be blocked
// POST /api/v1/screen
func (h *ScreenHandler) Screen(c *gin.Context) {
	var req models.ScreenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid screen request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	start := time.Now()
	decision := h.engine.Decide(c.Request.Context(), req.Number)
	timestamp := time.Now().UnixMilli()

	// History records the representative form, not the raw dial string, so
	// the entry shares one key with the analysis queue and the result cache:
	// LatestSuccess lookups and reanalysis find the same row the analyzer
	// updates regardless of how the caller's number was formatted.
	representative := h.engine.Representative(req.Number)

	entry := &models.HistoryEntry{
		Number:           representative,
		Timestamp:        timestamp,
		ReputationStatus: models.ReputationPending,
		BlockType:        decision.BlockType(),
	}
	if decision.Reason != "" {
		reason := decision.Reason
		entry.Reason = &reason
	}

	// Withheld callers have nothing to analyze.
	if representative == "" {
		entry.ReputationStatus = models.ReputationNone
	}

	if err := h.history.Add(c.Request.Context(), entry); err != nil {
		// The decision still stands; history is best-effort on this path.
		h.logger.Error("failed to record screening decision", zap.Error(err))
	} else if representative != "" {
		h.analyzer.Enqueue(representative, timestamp)
	}

	if h.metrics != nil {
		h.metrics.RecordDecision(string(decision.BlockType()), time.Since(start))
	}

	h.logger.Info("call screened",
		zap.Bool("should_block", decision.ShouldBlock),
		zap.String("block_type", string(decision.BlockType())),
		zap.Duration("duration", time.Since(start)))

	c.JSON(http.StatusOK, models.ScreenResponse{
		Decision:  *decision,
		Timestamp: timestamp,
	})
}
