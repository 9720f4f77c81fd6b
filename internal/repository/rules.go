package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"call-screener/internal/models"
)

// RuleRepository handles database operations for screening rules. Rules are
// kept in an explicit position order because the engine is first-match-wins.
type RuleRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db *pgxpool.Pool, logger *zap.Logger) *RuleRepository {
	return &RuleRepository{
		db:     db,
		logger: logger,
	}
}

const ruleColumns = `id, name, conditions, enabled, is_allow_rule, action, position, created_at, updated_at`

func scanRule(row pgx.Row) (*models.Rule, error) {
	var rule models.Rule
	var conditions []byte

	err := row.Scan(
		&rule.ID, &rule.Name, &conditions, &rule.Enabled,
		&rule.IsAllowRule, &rule.Action, &rule.Position,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
		return nil, fmt.Errorf("failed to decode rule conditions: %w", err)
	}
	rule.Conditions = models.PruneConditions(rule.Conditions)

	return &rule, nil
}

// List returns all rules in stored position order
func (r *RuleRepository) List(ctx context.Context) ([]models.Rule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM screening_rules
		ORDER BY position ASC`

	return r.queryRules(ctx, query)
}

// ListEnabled returns the enabled rules in stored position order. This is
// the snapshot the engine reads once per incoming call.
func (r *RuleRepository) ListEnabled(ctx context.Context) ([]models.Rule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM screening_rules
		WHERE enabled = true
		ORDER BY position ASC`

	return r.queryRules(ctx, query)
}

func (r *RuleRepository) queryRules(ctx context.Context, query string) ([]models.Rule, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("failed to query rules", zap.Error(err))
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []models.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}

	return rules, nil
}

// GetByID returns a single rule, or nil when it does not exist
func (r *RuleRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Rule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM screening_rules
		WHERE id = $1`

	rule, err := scanRule(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("failed to get rule",
			zap.Error(err),
			zap.String("rule_id", id.String()))
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	return rule, nil
}

// Save inserts or updates a rule. New rules are appended at the end of the
// list; evaluation order matters, so insertion never reorders existing rules.
func (r *RuleRepository) Save(ctx context.Context, rule *models.Rule) error {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("failed to encode rule conditions: %w", err)
	}

	now := time.Now()
	rule.UpdatedAt = now
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}

	query := `
		INSERT INTO screening_rules (
			id, name, conditions, enabled, is_allow_rule, action,
			position, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			COALESCE((SELECT MAX(position) + 1 FROM screening_rules), 0),
			$7, $8
		)
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			conditions = EXCLUDED.conditions,
			enabled = EXCLUDED.enabled,
			is_allow_rule = EXCLUDED.is_allow_rule,
			action = EXCLUDED.action,
			updated_at = EXCLUDED.updated_at
		RETURNING position, created_at`

	err = r.db.QueryRow(ctx, query,
		rule.ID, rule.Name, conditions, rule.Enabled,
		rule.IsAllowRule, rule.Action, rule.CreatedAt, rule.UpdatedAt,
	).Scan(&rule.Position, &rule.CreatedAt)

	if err != nil {
		r.logger.Error("failed to save rule",
			zap.Error(err),
			zap.String("rule_id", rule.ID.String()))
		return fmt.Errorf("failed to save rule: %w", err)
	}

	r.logger.Debug("rule saved",
		zap.String("rule_id", rule.ID.String()),
		zap.String("name", rule.Name),
		zap.Int("position", rule.Position))

	return nil
}

// Delete removes a rule by id
func (r *RuleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM screening_rules WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("failed to delete rule",
			zap.Error(err),
			zap.String("rule_id", id.String()))
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Reorder replaces the rule order wholesale. ids must contain every rule id
// exactly once; the new position of each rule is its index in ids.
func (r *RuleRepository) Reorder(ctx context.Context, ids []uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin reorder transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM screening_rules`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count rules: %w", err)
	}
	if count != len(ids) {
		return fmt.Errorf("%w: expected all %d rules, got %d", ErrInvalidReorder, count, len(ids))
	}

	for pos, id := range ids {
		tag, err := tx.Exec(ctx,
			`UPDATE screening_rules SET position = $1, updated_at = NOW() WHERE id = $2`,
			pos, id)
		if err != nil {
			return fmt.Errorf("failed to reposition rule %s: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: unknown rule id %s", ErrInvalidReorder, id)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit reorder: %w", err)
	}

	r.logger.Info("rules reordered", zap.Int("count", len(ids)))
	return nil
}
