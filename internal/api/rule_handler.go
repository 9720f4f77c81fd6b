package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"call-screener/internal/models"
	"call-screener/internal/repository"
)

// ruleStore is the rule repository surface the handler needs.
type ruleStore interface {
	List(ctx context.Context) ([]models.Rule, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Rule, error)
	Save(ctx context.Context, rule *models.Rule) error
	Delete(ctx context.Context, id uuid.UUID) error
	Reorder(ctx context.Context, ids []uuid.UUID) error
}

// RuleHandler handles CRUD and ordering of screening rules
type RuleHandler struct {
	rules  ruleStore
	logger *zap.Logger
}

// NewRuleHandler creates a new rule handler
func NewRuleHandler(rules *repository.RuleRepository, logger *zap.Logger) *RuleHandler {
	return &RuleHandler{
		rules:  rules,
		logger: logger,
	}
}

// ListRules returns all rules in evaluation order
// GET /api/v1/rules
func (h *RuleHandler) ListRules(c *gin.Context) {
	rules, err := h.rules.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list rules", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve rules"})
		return
	}

	if rules == nil {
		rules = []models.Rule{}
	}

	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

// CreateRule creates a new rule, appended at the end of the evaluation order
// POST /api/v1/rules
func (h *RuleHandler) CreateRule(c *gin.Context) {
	var req models.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid create rule request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	action := req.Action
	if action == "" {
		action = models.ActionReject
	}
	if action != models.ActionReject && action != models.ActionSilence {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid action"})
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	rule := &models.Rule{
		ID:          uuid.New(),
		Name:        req.Name,
		Conditions:  models.PruneConditions(req.Conditions),
		Enabled:     enabled,
		IsAllowRule: req.IsAllowRule,
		Action:      action,
	}

	if err := h.rules.Save(c.Request.Context(), rule); err != nil {
		h.logger.Error("failed to create rule", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create rule"})
		return
	}

	h.logger.Info("rule created",
		zap.String("rule_id", rule.ID.String()),
		zap.String("name", rule.Name))

	c.JSON(http.StatusCreated, gin.H{"rule": rule})
}

// UpdateRule updates an existing rule in place
// PUT /api/v1/rules/:id
func (h *RuleHandler) UpdateRule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid rule ID"})
		return
	}

	var req models.UpdateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid update rule request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	rule, err := h.rules.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("failed to get rule", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve rule"})
		return
	}
	if rule == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
		return
	}

	if req.Name != nil {
		rule.Name = *req.Name
	}
	if req.Conditions != nil {
		rule.Conditions = models.PruneConditions(*req.Conditions)
	}
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	if req.IsAllowRule != nil {
		rule.IsAllowRule = *req.IsAllowRule
	}
	if req.Action != nil {
		if *req.Action != models.ActionReject && *req.Action != models.ActionSilence {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid action"})
			return
		}
		rule.Action = *req.Action
	}

	if err := h.rules.Save(c.Request.Context(), rule); err != nil {
		h.logger.Error("failed to update rule", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update rule"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rule": rule})
}

// DeleteRule removes a rule
// DELETE /api/v1/rules/:id
func (h *RuleHandler) DeleteRule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid rule ID"})
		return
	}

	if err := h.rules.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
			return
		}
		h.logger.Error("failed to delete rule", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete rule"})
		return
	}

	h.logger.Info("rule deleted", zap.String("rule_id", id.String()))
	c.JSON(http.StatusOK, gin.H{"message": "Rule deleted successfully"})
}

// ReorderRules replaces the evaluation order wholesale
// PUT /api/v1/rules/reorder
func (h *RuleHandler) ReorderRules(c *gin.Context) {
	var req models.ReorderRulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid reorder request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.rules.Reorder(c.Request.Context(), req.IDs); err != nil {
		if errors.Is(err, repository.ErrInvalidReorder) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("failed to reorder rules", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reorder rules"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Rules reordered successfully"})
}
