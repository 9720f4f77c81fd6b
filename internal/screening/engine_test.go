package screening

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"call-screener/internal/models"
)

// stubRules serves a fixed snapshot.
type stubRules struct {
	rules []models.Rule
	err   error
}

func (s *stubRules) ListEnabled(ctx context.Context) ([]models.Rule, error) {
	return s.rules, s.err
}

// stubNormalizer returns the raw number as its only candidate.
type stubNormalizer struct{}

func (stubNormalizer) Candidates(raw string) []string {
	return []string{raw}
}

func newTestEngine(rules []models.Rule) *Engine {
	e := newEngine(
		&stubRules{rules: rules},
		stubNormalizer{},
		&stubContacts{},
		&stubReputation{},
		zap.NewNop(),
	)
	e.now = func() time.Time {
		return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	}
	return e
}

func blockRule(name, pattern string, action models.RuleAction) models.Rule {
	return models.Rule{
		Name:    name,
		Enabled: true,
		Action:  action,
		Conditions: []models.Condition{
			{Type: models.ConditionPattern, Pattern: pattern},
		},
	}
}

func TestDecideNoRulesAllows(t *testing.T) {
	engine := newTestEngine(nil)

	decision := engine.Decide(context.Background(), "0312345678")
	assert.False(t, decision.ShouldBlock)
	assert.Empty(t, decision.MatchedRuleName)
}

func TestDecideBlockingRuleMatches(t *testing.T) {
	engine := newTestEngine([]models.Rule{
		blockRule("block freephone", "^0800", models.ActionReject),
	})

	decision := engine.Decide(context.Background(), "0800123456")
	assert.True(t, decision.ShouldBlock)
	assert.Equal(t, "block freephone", decision.MatchedRuleName)
	assert.Equal(t, "block freephone", decision.Reason)
	assert.Equal(t, models.ActionReject, decision.Action)
	assert.Equal(t, models.BlockRejected, decision.BlockType())
}

func TestDecideSilenceAction(t *testing.T) {
	engine := newTestEngine([]models.Rule{
		blockRule("silence freephone", "^0800", models.ActionSilence),
	})

	decision := engine.Decide(context.Background(), "0800123456")
	assert.True(t, decision.ShouldBlock)
	assert.Equal(t, models.ActionSilence, decision.Action)
	assert.Equal(t, models.BlockSilenced, decision.BlockType())
}

func TestDecideFirstMatchWins(t *testing.T) {
	engine := newTestEngine([]models.Rule{
		blockRule("first", "^0800", models.ActionSilence),
		blockRule("second", "^0800", models.ActionReject),
	})

	decision := engine.Decide(context.Background(), "0800123456")
	assert.Equal(t, "first", decision.MatchedRuleName)
	assert.Equal(t, models.ActionSilence, decision.Action)
}

func TestDecideAllowRuleSuppressesLaterBlocks(t *testing.T) {
	allowContacts := models.Rule{
		Name:        "allow contacts",
		Enabled:     true,
		IsAllowRule: true,
		Conditions: []models.Condition{
			{Type: models.ConditionContact},
		},
	}
	blockAll := blockRule("block everything", ".*", models.ActionReject)

	engine := newTestEngine([]models.Rule{allowContacts, blockAll})
	engine.contacts = &stubContacts{known: map[string]bool{"0312345678": true}}

	// A saved contact hits the allow rule before the catch-all block.
	decision := engine.Decide(context.Background(), "0312345678")
	assert.False(t, decision.ShouldBlock)
	assert.Equal(t, "allow contacts", decision.MatchedRuleName)

	// Everyone else falls through to the block rule.
	decision = engine.Decide(context.Background(), "0999999999")
	assert.True(t, decision.ShouldBlock)
	assert.Equal(t, "block everything", decision.MatchedRuleName)
}

func TestDecideEmptyRuleNeverMatches(t *testing.T) {
	engine := newTestEngine([]models.Rule{
		{Name: "empty catch-all", Enabled: true, Action: models.ActionReject},
	})

	decision := engine.Decide(context.Background(), "0312345678")
	assert.False(t, decision.ShouldBlock)
}

func TestDecideRuleStoreFailureAllows(t *testing.T) {
	engine := newTestEngine(nil)
	engine.rules = &stubRules{err: assert.AnError}

	decision := engine.Decide(context.Background(), "0800123456")
	assert.False(t, decision.ShouldBlock, "a failing rule store must fail open")
}

func TestDecideMissingActionDefaultsToReject(t *testing.T) {
	engine := newTestEngine([]models.Rule{
		{
			Name:    "no action set",
			Enabled: true,
			Conditions: []models.Condition{
				{Type: models.ConditionPattern, Pattern: "^0800"},
			},
		},
	})

	decision := engine.Decide(context.Background(), "0800123456")
	assert.True(t, decision.ShouldBlock)
	assert.Equal(t, models.ActionReject, decision.Action)
}

func TestDecideIsDeterministic(t *testing.T) {
	engine := newTestEngine([]models.Rule{
		blockRule("block freephone", "^0800", models.ActionReject),
	})

	first := engine.Decide(context.Background(), "0800123456")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, engine.Decide(context.Background(), "0800123456"))
	}
}

func TestDecideWithheldCallerScreenedNormally(t *testing.T) {
	engine := newTestEngine([]models.Rule{
		{
			Name:    "block withheld",
			Enabled: true,
			Action:  models.ActionReject,
			Conditions: []models.Condition{
				{Type: models.ConditionPattern, Pattern: "^$"},
			},
		},
	})

	decision := engine.Decide(context.Background(), "")
	assert.True(t, decision.ShouldBlock)
	assert.Equal(t, "block withheld", decision.MatchedRuleName)
}
