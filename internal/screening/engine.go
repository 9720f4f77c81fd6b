package screening

import (
	"context"
	"time"

	"go.uber.org/zap"

	"call-screener/internal/contacts"
	"call-screener/internal/models"
	"call-screener/internal/normalize"
	"call-screener/internal/reputation"
	"call-screener/internal/repository"
)

// RuleSource supplies the enabled rules in evaluation order.
type RuleSource interface {
	ListEnabled(ctx context.Context) ([]models.Rule, error)
}

// CandidateSource derives the candidate representations of a raw number.
type CandidateSource interface {
	Candidates(raw string) []string
}

// Engine decides whether an incoming call should be blocked. Enabled rules
// are evaluated in position order against one snapshot taken at call time;
// the first matching rule wins. No match means the call goes through.
type Engine struct {
	rules      RuleSource
	normalizer CandidateSource
	contacts   ContactChecker
	reputation ReputationChecker
	logger     *zap.Logger

	// now is replaceable in tests.
	now func() time.Time
}

// NewEngine creates a new screening engine
func NewEngine(
	rules *repository.RuleRepository,
	normalizer *normalize.Normalizer,
	contacts *contacts.Client,
	reputation *reputation.Client,
	logger *zap.Logger,
) *Engine {
	return newEngine(rules, normalizer, contacts, reputation, logger)
}

func newEngine(
	rules RuleSource,
	normalizer CandidateSource,
	contacts ContactChecker,
	reputation ReputationChecker,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		rules:      rules,
		normalizer: normalizer,
		contacts:   contacts,
		reputation: reputation,
		logger:     logger,
		now:        time.Now,
	}
}

// Decide screens one incoming call. It always returns a decision: a rule
// store failure is logged and the call is allowed, because failing open is
// the only acceptable behavior for a call path.
func (e *Engine) Decide(ctx context.Context, rawNumber string) *models.Decision {
	start := time.Now()

	candidates := e.normalizer.Candidates(rawNumber)

	rules, err := e.rules.ListEnabled(ctx)
	if err != nil {
		e.logger.Error("failed to load rules, allowing call", zap.Error(err))
		return &models.Decision{ShouldBlock: false}
	}

	ev := &evaluator{
		candidates: candidates,
		now:        e.now(),
		contacts:   e.contacts,
		reputation: e.reputation,
		logger:     e.logger,
	}

	for i := range rules {
		rule := &rules[i]
		if !ev.ruleMatches(ctx, rule) {
			continue
		}

		decision := e.decisionFor(rule)
		e.logger.Info("rule matched",
			zap.String("rule", describeRule(rule)),
			zap.Bool("should_block", decision.ShouldBlock),
			zap.Duration("duration", time.Since(start)))
		return decision
	}

	e.logger.Debug("no rule matched, allowing call",
		zap.Int("rules_evaluated", len(rules)),
		zap.Duration("duration", time.Since(start)))

	return &models.Decision{ShouldBlock: false}
}

// decisionFor maps the first matching rule to a decision. A matching allow
// rule suppresses every later block rule, which is exactly first-match-wins
// with ShouldBlock=false.
func (e *Engine) decisionFor(rule *models.Rule) *models.Decision {
	if rule.IsAllowRule {
		return &models.Decision{
			ShouldBlock:     false,
			MatchedRuleName: rule.Name,
		}
	}

	action := rule.Action
	if action != models.ActionSilence {
		action = models.ActionReject
	}

	return &models.Decision{
		ShouldBlock:     true,
		MatchedRuleName: rule.Name,
		Reason:          rule.Name,
		Action:          action,
	}
}

// Candidates exposes the normalizer's candidate set for callers that need
// the representative number alongside the decision.
func (e *Engine) Candidates(rawNumber string) []string {
	return e.normalizer.Candidates(rawNumber)
}

// Representative returns the reputation-lookup representation of rawNumber.
func (e *Engine) Representative(rawNumber string) string {
	return normalize.Representative(e.normalizer.Candidates(rawNumber))
}
