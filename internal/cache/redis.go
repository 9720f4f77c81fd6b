package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"call-screener/internal/config"
	"call-screener/internal/models"
)

const (
	// Cache key prefixes
	ReputationPrefix = "rep:" // reputation:number
)

// RedisCache is the hot tier for reputation results, keyed by the
// representative candidate of each analyzed number.
type RedisCache struct {
	client *redis.Client
	config *config.RedisConfig
	logger *zap.Logger
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(cfg *config.RedisConfig, logger *zap.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.Database,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("connected to Redis",
		zap.String("addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		zap.Int("database", cfg.Database))

	return &RedisCache{
		client: client,
		config: cfg,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// GetResult retrieves a reputation result from cache
func (c *RedisCache) GetResult(ctx context.Context, number string) (*models.ReputationResult, error) {
	start := time.Now()
	key := ReputationPrefix + number

	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			c.logger.Debug("reputation cache miss",
				zap.String("key", key),
				zap.Duration("duration", time.Since(start)))
			return nil, nil // Cache miss
		}
		c.logger.Error("failed to get reputation result from cache",
			zap.Error(err),
			zap.String("key", key))
		return nil, fmt.Errorf("failed to get reputation result from cache: %w", err)
	}

	var result models.ReputationResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("failed to unmarshal reputation result from cache",
			zap.Error(err),
			zap.String("key", key))
		return nil, fmt.Errorf("failed to unmarshal reputation result: %w", err)
	}

	c.logger.Debug("reputation cache hit",
		zap.String("key", key),
		zap.Duration("duration", time.Since(start)))

	return &result, nil
}

// SetResult stores a reputation result in cache
func (c *RedisCache) SetResult(ctx context.Context, result *models.ReputationResult) error {
	key := ReputationPrefix + result.Number

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal reputation result: %w", err)
	}

	err = c.client.Set(ctx, key, data, c.config.ResultTTL).Err()
	if err != nil {
		c.logger.Error("failed to set reputation result in cache",
			zap.Error(err),
			zap.String("key", key))
		return fmt.Errorf("failed to set reputation result in cache: %w", err)
	}

	c.logger.Debug("reputation result cached",
		zap.String("key", key),
		zap.Duration("ttl", c.config.ResultTTL))

	return nil
}

// InvalidateResult removes a reputation result from cache
func (c *RedisCache) InvalidateResult(ctx context.Context, number string) error {
	key := ReputationPrefix + number

	err := c.client.Del(ctx, key).Err()
	if err != nil {
		c.logger.Error("failed to invalidate reputation cache",
			zap.Error(err),
			zap.String("key", key))
		return fmt.Errorf("failed to invalidate reputation cache: %w", err)
	}

	c.logger.Debug("reputation cache invalidated", zap.String("key", key))
	return nil
}

// Ping tests the Redis connection
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// FlushAll clears all cache (use with caution, mainly for testing)
func (c *RedisCache) FlushAll(ctx context.Context) error {
	return c.client.FlushDB(ctx).Err()
}
