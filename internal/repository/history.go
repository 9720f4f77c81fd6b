package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"call-screener/internal/config"
	"call-screener/internal/models"
)

// HistoryRepository persists the decision history: a prepend-style log
// capped at a bounded size, keyed by the decision timestamp. The most
// recent successful reputation result per number doubles as the reputation
// client's cache backing.
type HistoryRepository struct {
	db         *pgxpool.Pool
	maxEntries int
	logger     *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *pgxpool.Pool, cfg *config.Config, logger *zap.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:         db,
		maxEntries: cfg.History.MaxEntries,
		logger:     logger,
	}
}

const historyColumns = `number, ts, reason, reputation_text, reputation_status, block_type`

// Add records a screened call and evicts the oldest entries beyond the cap.
func (r *HistoryRepository) Add(ctx context.Context, entry *models.HistoryEntry) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin history transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO screening_history (` + historyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = tx.Exec(ctx, insert,
		entry.Number, entry.Timestamp, entry.Reason,
		entry.ReputationText, entry.ReputationStatus, entry.BlockType,
	)
	if err != nil {
		r.logger.Error("failed to add history entry",
			zap.Error(err),
			zap.Int64("timestamp", entry.Timestamp))
		return fmt.Errorf("failed to add history entry: %w", err)
	}

	evict := `
		DELETE FROM screening_history
		WHERE ts NOT IN (
			SELECT ts FROM screening_history ORDER BY ts DESC LIMIT $1
		)`

	if _, err := tx.Exec(ctx, evict, r.maxEntries); err != nil {
		return fmt.Errorf("failed to evict old history entries: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit history entry: %w", err)
	}

	r.logger.Debug("history entry added",
		zap.Int64("timestamp", entry.Timestamp),
		zap.String("block_type", string(entry.BlockType)),
		zap.String("reputation_status", string(entry.ReputationStatus)))

	return nil
}

// UpdateResult writes a completed reputation analysis back onto the entry
// identified by timestamp. Failed analyses are recorded too, so the history
// shows "analysis attempted, failed" rather than a silent gap.
func (r *HistoryRepository) UpdateResult(ctx context.Context, timestamp int64, text string, status models.ReputationStatus) error {
	query := `
		UPDATE screening_history
		SET reputation_text = $1, reputation_status = $2
		WHERE ts = $3`

	tag, err := r.db.Exec(ctx, query, text, status, timestamp)
	if err != nil {
		r.logger.Error("failed to update history result",
			zap.Error(err),
			zap.Int64("timestamp", timestamp))
		return fmt.Errorf("failed to update history result: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Entry may have been evicted while the analysis ran.
		return ErrNotFound
	}

	r.logger.Debug("history result updated",
		zap.Int64("timestamp", timestamp),
		zap.String("status", string(status)))

	return nil
}

// List returns the most recent entries, newest first. limit <= 0 means the
// configured cap.
func (r *HistoryRepository) List(ctx context.Context, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 || limit > r.maxEntries {
		limit = r.maxEntries
	}

	query := `
		SELECT ` + historyColumns + `
		FROM screening_history
		ORDER BY ts DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		r.logger.Error("failed to query history", zap.Error(err))
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		err := rows.Scan(
			&e.Number, &e.Timestamp, &e.Reason,
			&e.ReputationText, &e.ReputationStatus, &e.BlockType,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	return entries, nil
}

// GetByTimestamp returns one entry, or nil when it does not exist
func (r *HistoryRepository) GetByTimestamp(ctx context.Context, timestamp int64) (*models.HistoryEntry, error) {
	query := `
		SELECT ` + historyColumns + `
		FROM screening_history
		WHERE ts = $1`

	var e models.HistoryEntry
	err := r.db.QueryRow(ctx, query, timestamp).Scan(
		&e.Number, &e.Timestamp, &e.Reason,
		&e.ReputationText, &e.ReputationStatus, &e.BlockType,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get history entry: %w", err)
	}

	return &e, nil
}

// LatestSuccess returns the most recent entry for number whose reputation
// analysis completed successfully. Only successful analyses are eligible to
// serve as cache hits.
func (r *HistoryRepository) LatestSuccess(ctx context.Context, number string) (*models.HistoryEntry, error) {
	if number == "" {
		return nil, nil
	}

	query := `
		SELECT ` + historyColumns + `
		FROM screening_history
		WHERE number = $1 AND reputation_status = $2
		ORDER BY ts DESC
		LIMIT 1`

	var e models.HistoryEntry
	err := r.db.QueryRow(ctx, query, number, models.ReputationSuccess).Scan(
		&e.Number, &e.Timestamp, &e.Reason,
		&e.ReputationText, &e.ReputationStatus, &e.BlockType,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest success for number: %w", err)
	}

	return &e, nil
}

// Clear removes all history entries
func (r *HistoryRepository) Clear(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM screening_history`); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}

	r.logger.Info("screening history cleared")
	return nil
}
