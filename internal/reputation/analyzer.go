package reputation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"call-screener/internal/config"
	"call-screener/internal/models"
	"call-screener/internal/repository"
)

// Lookuper is the lookup the analyzer runs for each queued job.
type Lookuper interface {
	Lookup(ctx context.Context, number string) *models.ReputationResult
	ForceLookup(ctx context.Context, number string) *models.ReputationResult
}

// HistoryUpdater writes completed analyses back onto history entries.
type HistoryUpdater interface {
	UpdateResult(ctx context.Context, timestamp int64, text string, status models.ReputationStatus) error
}

// job is one pending reputation analysis, tied to the history entry it will
// update. Fresh jobs bypass the result cache.
type job struct {
	Number    string
	Timestamp int64
	Fresh     bool
}

// Analyzer runs reputation lookups in the background so screening decisions
// return immediately. Jobs are fire-and-forget: when the queue is full the
// job is dropped and the history entry keeps its pending status.
type Analyzer struct {
	lookup     Lookuper
	history    HistoryUpdater
	queue      chan job
	jobTimeout time.Duration
	logger     *zap.Logger
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// NewAnalyzer creates the analyzer and starts its worker pool.
func NewAnalyzer(cfg *config.Config, client *Client, history *repository.HistoryRepository, logger *zap.Logger) *Analyzer {
	return newAnalyzer(&cfg.Analysis, client, history, logger)
}

func newAnalyzer(cfg *config.AnalysisConfig, lookup Lookuper, history HistoryUpdater, logger *zap.Logger) *Analyzer {
	a := &Analyzer{
		lookup:     lookup,
		history:    history,
		queue:      make(chan job, cfg.QueueSize),
		jobTimeout: cfg.JobTimeout,
		logger:     logger,
	}

	for i := 0; i < cfg.Workers; i++ {
		a.wg.Add(1)
		go a.worker(i)
	}

	logger.Info("reputation analyzer started",
		zap.Int("workers", cfg.Workers),
		zap.Int("queue_size", cfg.QueueSize))

	return a
}

// Enqueue schedules an analysis for the history entry at timestamp. It never
// blocks the caller; a full queue drops the job.
func (a *Analyzer) Enqueue(number string, timestamp int64) {
	a.enqueue(job{Number: number, Timestamp: timestamp})
}

// EnqueueFresh schedules an analysis that bypasses the result cache, for
// re-running an analysis whose cached verdict is suspect or stale.
func (a *Analyzer) EnqueueFresh(number string, timestamp int64) {
	a.enqueue(job{Number: number, Timestamp: timestamp, Fresh: true})
}

func (a *Analyzer) enqueue(j job) {
	select {
	case a.queue <- j:
		a.logger.Debug("analysis queued",
			zap.String("number", j.Number),
			zap.Int64("timestamp", j.Timestamp),
			zap.Bool("fresh", j.Fresh))
	default:
		a.logger.Warn("analysis queue full, dropping job",
			zap.Int64("timestamp", j.Timestamp))
	}
}

func (a *Analyzer) worker(id int) {
	defer a.wg.Done()

	for j := range a.queue {
		a.process(id, j)
	}
}

func (a *Analyzer) process(id int, j job) {
	ctx, cancel := context.WithTimeout(context.Background(), a.jobTimeout)
	defer cancel()

	var result *models.ReputationResult
	if j.Fresh {
		result = a.lookup.ForceLookup(ctx, j.Number)
	} else {
		result = a.lookup.Lookup(ctx, j.Number)
	}

	err := a.history.UpdateResult(ctx, j.Timestamp, result.Text, result.Status)
	if err != nil {
		if err == repository.ErrNotFound {
			// The entry was evicted while the analysis ran.
			a.logger.Debug("history entry gone before analysis finished",
				zap.Int64("timestamp", j.Timestamp))
			return
		}
		a.logger.Error("failed to record analysis result",
			zap.Error(err),
			zap.Int("worker", id),
			zap.Int64("timestamp", j.Timestamp))
		return
	}

	a.logger.Debug("analysis completed",
		zap.Int("worker", id),
		zap.Int64("timestamp", j.Timestamp),
		zap.String("status", string(result.Status)))
}

// Close drains the queue and stops the workers.
func (a *Analyzer) Close() {
	a.closeOnce.Do(func() {
		close(a.queue)
	})
	a.wg.Wait()
}
