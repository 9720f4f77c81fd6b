// Package screening evaluates ordered rules against incoming calls.
package screening

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"call-screener/internal/models"
	"call-screener/internal/normalize"
)

// ContactChecker answers whether a number belongs to a saved contact.
type ContactChecker interface {
	IsContact(ctx context.Context, number string) (bool, error)
}

// ReputationChecker performs a synchronous reputation lookup for rule
// evaluation.
type ReputationChecker interface {
	Lookup(ctx context.Context, number string) *models.ReputationResult
}

// evaluator holds the per-call state one rule evaluation needs: the
// candidate representations of the caller and the evaluation instant.
type evaluator struct {
	candidates []string
	now        time.Time
	contacts   ContactChecker
	reputation ReputationChecker
	logger     *zap.Logger
}

// matches evaluates one condition, applying the inverse flag last.
func (e *evaluator) matches(ctx context.Context, cond *models.Condition) bool {
	var matched bool

	switch cond.Type {
	case models.ConditionPattern:
		matched = e.matchesPattern(cond)
	case models.ConditionContact:
		matched = e.matchesContact(ctx)
	case models.ConditionTimeWindow:
		matched = e.matchesTimeWindow(cond)
	case models.ConditionReputation:
		matched = e.matchesReputation(ctx, cond)
	default:
		e.logger.Warn("unknown condition type, treating as no match",
			zap.String("type", string(cond.Type)))
		matched = false
	}

	if cond.Inverse {
		return !matched
	}
	return matched
}

// matchesPattern reports whether any candidate representation matches the
// condition's regular expression. An invalid expression never matches; the
// inverse flag still applies afterwards.
func (e *evaluator) matchesPattern(cond *models.Condition) bool {
	re, err := regexp.Compile(cond.Pattern)
	if err != nil {
		e.logger.Warn("invalid rule pattern",
			zap.String("pattern", cond.Pattern),
			zap.Error(err))
		return false
	}

	for _, candidate := range e.candidates {
		if re.MatchString(candidate) {
			return true
		}
	}
	return false
}

// matchesContact reports whether any candidate representation resolves to a
// saved contact. Lookup failures degrade to "not a contact".
func (e *evaluator) matchesContact(ctx context.Context) bool {
	for _, candidate := range e.candidates {
		found, err := e.contacts.IsContact(ctx, candidate)
		if err != nil {
			e.logger.Warn("contact lookup failed",
				zap.Error(err),
				zap.String("candidate", candidate))
			continue
		}
		if found {
			return true
		}
	}
	return false
}

// matchesTimeWindow reports whether the evaluation instant falls inside the
// condition's window. Absent fields are vacuously satisfied; a condition
// with no fields matches any instant. A time-of-day range whose start is
// after its end wraps past midnight.
func (e *evaluator) matchesTimeWindow(cond *models.Condition) bool {
	// Zero-padded ISO dates compare correctly as strings.
	date := e.now.Format("2006-01-02")
	if cond.StartDate != "" && date < cond.StartDate {
		return false
	}
	if cond.EndDate != "" && date > cond.EndDate {
		return false
	}

	if len(cond.DaysOfWeek) > 0 {
		day := e.now.Weekday()
		found := false
		for _, d := range cond.DaysOfWeek {
			if d == day {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if cond.HasTimeOfDay() {
		minute := e.now.Hour()*60 + e.now.Minute()
		start := *cond.StartHour*60 + *cond.StartMinute
		end := *cond.EndHour*60 + *cond.EndMinute

		if start > end {
			// Overnight window, e.g. 22:00-06:00.
			if minute < start && minute > end {
				return false
			}
		} else {
			if minute < start || minute > end {
				return false
			}
		}
	}

	return true
}

// matchesReputation reports whether the caller's reputation text contains
// the condition's keyword, case-insensitively. Only a completed, successful
// lookup can match. A condition without a keyword never matches; stores
// prune those before they reach the engine, so this also skips the lookup.
func (e *evaluator) matchesReputation(ctx context.Context, cond *models.Condition) bool {
	if cond.Keyword == "" {
		return false
	}

	number := normalize.Representative(e.candidates)
	result := e.reputation.Lookup(ctx, number)

	if result.Status != models.ReputationSuccess {
		return false
	}

	return strings.Contains(
		strings.ToLower(result.Text),
		strings.ToLower(cond.Keyword),
	)
}

// ruleMatches reports whether every condition of the rule holds. A rule
// with no conditions never matches; it would otherwise match every call.
func (e *evaluator) ruleMatches(ctx context.Context, rule *models.Rule) bool {
	if len(rule.Conditions) == 0 {
		return false
	}

	for i := range rule.Conditions {
		if !e.matches(ctx, &rule.Conditions[i]) {
			return false
		}
	}
	return true
}

// describeRule is used in decision logs.
func describeRule(rule *models.Rule) string {
	kind := "block"
	if rule.IsAllowRule {
		kind = "allow"
	}
	return fmt.Sprintf("%s (%s, %d conditions)", rule.Name, kind, len(rule.Conditions))
}
