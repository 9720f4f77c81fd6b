package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"call-screener/internal/config"
	"call-screener/internal/models"
	"call-screener/internal/repository"
)

// ResultCache serves reputation lookups cache-first: the Redis hot tier
// first, then the most recent successful history entry for the same number.
// Only status=success results are ever served as hits.
type ResultCache struct {
	cache   *RedisCache
	history *repository.HistoryRepository
	logger  *zap.Logger
}

// NewResultCache creates a result cache with history fallback
func NewResultCache(
	cache *RedisCache,
	history *repository.HistoryRepository,
	logger *zap.Logger,
) *ResultCache {
	return &ResultCache{
		cache:   cache,
		history: history,
		logger:  logger,
	}
}

// Close closes the underlying cache
func (s *ResultCache) Close() error {
	return s.cache.Close()
}

// Get returns the cached successful result for number, or nil on a miss.
// A Redis failure degrades to the history fallback rather than erroring.
func (s *ResultCache) Get(ctx context.Context, number string) (*models.ReputationResult, error) {
	if number == "" {
		return nil, nil
	}

	result, err := s.cache.GetResult(ctx, number)
	if err != nil {
		s.logger.Warn("cache lookup failed, falling back to history",
			zap.Error(err),
			zap.String("number", number))
	} else if result != nil && result.Status == models.ReputationSuccess {
		return result, nil
	}

	// History fallback: most recent successful analysis for this number.
	entry, err := s.history.LatestSuccess(ctx, number)
	if err != nil {
		return nil, err
	}
	if entry == nil || entry.ReputationText == nil {
		return nil, nil
	}

	result = &models.ReputationResult{
		Number:    number,
		Status:    models.ReputationSuccess,
		Text:      *entry.ReputationText,
		CheckedAt: time.UnixMilli(entry.Timestamp),
	}

	// Backfill the hot tier for future lookups.
	go func() {
		cacheCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cacheErr := s.cache.SetResult(cacheCtx, result); cacheErr != nil {
			s.logger.Warn("failed to backfill reputation cache", zap.Error(cacheErr))
		}
	}()

	return result, nil
}

// Set stores a successful result in the hot tier. The durable copy lives in
// the history log, written by the decision path itself.
func (s *ResultCache) Set(ctx context.Context, result *models.ReputationResult) error {
	if result.Status != models.ReputationSuccess {
		return nil
	}
	return s.cache.SetResult(ctx, result)
}

// Ping tests cache connectivity
func (s *ResultCache) Ping(ctx context.Context) error {
	return s.cache.Ping(ctx)
}

// NewRedisClient creates a new Redis client for dependency injection
func NewRedisClient(cfg *config.Config, logger *zap.Logger) (*RedisCache, error) {
	return NewRedisCache(&cfg.Redis, logger)
}
