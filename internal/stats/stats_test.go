package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"call-screener/internal/models"
)

type fixedHistory struct {
	entries []models.HistoryEntry
	err     error
}

func (f *fixedHistory) List(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	return f.entries, f.err
}

func newTestService(entries []models.HistoryEntry) *Service {
	return &Service{
		history: &fixedHistory{entries: entries},
		logger:  zap.NewNop(),
	}
}

func entryAt(day time.Time, blockType models.BlockType, status models.ReputationStatus) models.HistoryEntry {
	return models.HistoryEntry{
		Number:           "0312345678",
		Timestamp:        day.UnixMilli(),
		BlockType:        blockType,
		ReputationStatus: status,
	}
}

func TestSummaryEmptyHistory(t *testing.T) {
	svc := newTestService(nil)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)

	assert.Zero(t, summary.TotalCalls)
	assert.Zero(t, summary.BlockRate)
	assert.Zero(t, summary.DailyMean)
}

func TestSummaryCountsOutcomes(t *testing.T) {
	day := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	svc := newTestService([]models.HistoryEntry{
		entryAt(day, models.BlockAllowed, models.ReputationSuccess),
		entryAt(day, models.BlockAllowed, models.ReputationError),
		entryAt(day, models.BlockRejected, models.ReputationSuccess),
		entryAt(day, models.BlockSilenced, models.ReputationNone),
	})

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.TotalCalls)
	assert.Equal(t, 2, summary.Allowed)
	assert.Equal(t, 1, summary.Rejected)
	assert.Equal(t, 1, summary.Silenced)
	assert.InDelta(t, 0.5, summary.BlockRate, 1e-9)
	assert.Equal(t, 2, summary.AnalysisSuccess)
	assert.Equal(t, 1, summary.AnalysisError)
}

func TestSummaryDailyVolumes(t *testing.T) {
	day1 := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	svc := newTestService([]models.HistoryEntry{
		entryAt(day1, models.BlockAllowed, models.ReputationSuccess),
		entryAt(day1, models.BlockAllowed, models.ReputationSuccess),
		entryAt(day1, models.BlockAllowed, models.ReputationSuccess),
		entryAt(day2, models.BlockAllowed, models.ReputationSuccess),
	})

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)

	// Volumes 3 and 1: mean 2, sample standard deviation sqrt(2).
	assert.InDelta(t, 2.0, summary.DailyMean, 1e-9)
	assert.InDelta(t, 1.4142135, summary.DailyStdDev, 1e-6)
}

func TestSummarySingleDayHasNoDeviation(t *testing.T) {
	day := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	svc := newTestService([]models.HistoryEntry{
		entryAt(day, models.BlockAllowed, models.ReputationSuccess),
	})

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 1.0, summary.DailyMean, 1e-9)
	assert.Zero(t, summary.DailyStdDev)
}

func TestSummaryPropagatesHistoryError(t *testing.T) {
	svc := &Service{
		history: &fixedHistory{err: assert.AnError},
		logger:  zap.NewNop(),
	}

	_, err := svc.Summary(context.Background())
	assert.Error(t, err)
}
