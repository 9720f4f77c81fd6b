// Package stats summarizes recent screening activity.
package stats

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"call-screener/internal/models"
	"call-screener/internal/repository"
)

// HistorySource supplies the entries the summary is computed over.
type HistorySource interface {
	List(ctx context.Context, limit int) ([]models.HistoryEntry, error)
}

// Service computes aggregate statistics over the decision history.
type Service struct {
	history HistorySource
	logger  *zap.Logger
}

// NewService creates a new stats service
func NewService(history *repository.HistoryRepository, logger *zap.Logger) *Service {
	return &Service{
		history: history,
		logger:  logger,
	}
}

// Summary aggregates the retained history: outcome counts, block rate,
// analysis outcomes, and the mean and standard deviation of daily call
// volume across the days the history spans.
func (s *Service) Summary(ctx context.Context) (*models.HistoryStats, error) {
	entries, err := s.history.List(ctx, 0)
	if err != nil {
		return nil, err
	}

	stats := &models.HistoryStats{
		TotalCalls:  len(entries),
		LastUpdated: time.Now(),
	}

	perDay := make(map[string]float64)
	for i := range entries {
		e := &entries[i]

		switch e.BlockType {
		case models.BlockAllowed:
			stats.Allowed++
		case models.BlockRejected:
			stats.Rejected++
		case models.BlockSilenced:
			stats.Silenced++
		}

		switch e.ReputationStatus {
		case models.ReputationSuccess:
			stats.AnalysisSuccess++
		case models.ReputationError:
			stats.AnalysisError++
		}

		day := time.UnixMilli(e.Timestamp).Format("2006-01-02")
		perDay[day]++
	}

	if stats.TotalCalls > 0 {
		stats.BlockRate = float64(stats.Rejected+stats.Silenced) / float64(stats.TotalCalls)
	}

	if len(perDay) > 0 {
		volumes := make([]float64, 0, len(perDay))
		for _, v := range perDay {
			volumes = append(volumes, v)
		}
		stats.DailyMean = stat.Mean(volumes, nil)
		if len(volumes) > 1 {
			stats.DailyStdDev = stat.StdDev(volumes, nil)
		}
	}

	return stats, nil
}
