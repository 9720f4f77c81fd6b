package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RuleAction is what happens to a call when a blocking rule matches
type RuleAction string

const (
	// ActionReject terminates the call
	ActionReject RuleAction = "reject"
	// ActionSilence suppresses the ringer without terminating the call
	ActionSilence RuleAction = "silence"
)

// BlockType records how a screened call was handled
type BlockType string

const (
	BlockAllowed  BlockType = "allowed"
	BlockRejected BlockType = "rejected"
	BlockSilenced BlockType = "silenced"
)

// ReputationStatus is the lifecycle state of a reputation lookup
type ReputationStatus string

const (
	ReputationPending ReputationStatus = "pending"
	ReputationSuccess ReputationStatus = "success"
	ReputationError   ReputationStatus = "error"
	// ReputationNone marks calls that were never analyzed (withheld
	// numbers, analysis disabled).
	ReputationNone ReputationStatus = "none"
)

// ConditionType discriminates the closed set of condition variants
type ConditionType string

const (
	ConditionPattern    ConditionType = "pattern"
	ConditionContact    ConditionType = "contact"
	ConditionTimeWindow ConditionType = "time"
	ConditionReputation ConditionType = "reputation"
)

// Condition is one predicate inside a rule. It is a tagged union over the
// four condition variants; only the fields belonging to Type are meaningful.
// Inverse negates the result (NOT semantics).
type Condition struct {
	Type    ConditionType `json:"type"`
	Inverse bool          `json:"inverse"`

	// pattern variant
	Pattern string `json:"pattern,omitempty"`

	// time variant. Dates are zero-padded ISO "2006-01-02"; times are
	// minute granularity and may wrap past midnight. Every field is
	// optional and vacuously satisfied when absent.
	StartDate   string         `json:"start_date,omitempty"`
	EndDate     string         `json:"end_date,omitempty"`
	StartHour   *int           `json:"start_hour,omitempty"`
	StartMinute *int           `json:"start_minute,omitempty"`
	EndHour     *int           `json:"end_hour,omitempty"`
	EndMinute   *int           `json:"end_minute,omitempty"`
	DaysOfWeek  []time.Weekday `json:"days_of_week,omitempty"`

	// reputation variant
	Keyword string `json:"keyword,omitempty"`
}

// HasTimeOfDay reports whether the time variant carries a complete
// time-of-day range.
func (c *Condition) HasTimeOfDay() bool {
	return c.StartHour != nil && c.StartMinute != nil && c.EndHour != nil && c.EndMinute != nil
}

// Describe returns a short human-readable description of the condition.
func (c *Condition) Describe() string {
	prefix := ""
	if c.Inverse {
		prefix = "NOT "
	}

	switch c.Type {
	case ConditionPattern:
		return prefix + "pattern: " + c.Pattern
	case ConditionContact:
		return prefix + "saved contact"
	case ConditionReputation:
		return prefix + "reputation contains: " + c.Keyword
	case ConditionTimeWindow:
		var parts []string
		if c.StartDate != "" || c.EndDate != "" {
			s, e := c.StartDate, c.EndDate
			if s == "" {
				s = "..."
			}
			if e == "" {
				e = "..."
			}
			parts = append(parts, fmt.Sprintf("dates %s to %s", s, e))
		}
		if len(c.DaysOfWeek) > 0 {
			days := make([]string, len(c.DaysOfWeek))
			for i, d := range c.DaysOfWeek {
				days[i] = d.String()[:3]
			}
			parts = append(parts, "days "+strings.Join(days, ","))
		}
		if c.HasTimeOfDay() {
			parts = append(parts, fmt.Sprintf("time %02d:%02d-%02d:%02d",
				*c.StartHour, *c.StartMinute, *c.EndHour, *c.EndMinute))
		}
		if len(parts) == 0 {
			parts = append(parts, "any time")
		}
		return prefix + strings.Join(parts, " / ")
	default:
		return prefix + "unknown"
	}
}

// conditionJSON mirrors Condition on the wire, plus fields kept for
// compatibility with rule sets exported by earlier versions: "regex" and
// "ai" type names and the boolean "isRegistered" contact flag.
type conditionJSON struct {
	Type         string         `json:"type"`
	Inverse      bool           `json:"inverse"`
	Pattern      string         `json:"pattern,omitempty"`
	StartDate    string         `json:"start_date,omitempty"`
	EndDate      string         `json:"end_date,omitempty"`
	StartHour    *int           `json:"start_hour,omitempty"`
	StartMinute  *int           `json:"start_minute,omitempty"`
	EndHour      *int           `json:"end_hour,omitempty"`
	EndMinute    *int           `json:"end_minute,omitempty"`
	DaysOfWeek   []time.Weekday `json:"days_of_week,omitempty"`
	Keyword      string         `json:"keyword,omitempty"`
	IsRegistered *bool          `json:"isRegistered,omitempty"`
}

// UnmarshalJSON decodes a condition, migrating legacy encodings in place.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var raw conditionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*c = Condition{
		Inverse:     raw.Inverse,
		Pattern:     raw.Pattern,
		StartDate:   raw.StartDate,
		EndDate:     raw.EndDate,
		StartHour:   raw.StartHour,
		StartMinute: raw.StartMinute,
		EndHour:     raw.EndHour,
		EndMinute:   raw.EndMinute,
		DaysOfWeek:  raw.DaysOfWeek,
		Keyword:     raw.Keyword,
	}

	switch raw.Type {
	case "pattern", "regex":
		c.Type = ConditionPattern
	case "contact":
		c.Type = ConditionContact
		// Legacy rule sets encoded "not registered" as isRegistered=false
		// rather than an inverse flag.
		if raw.IsRegistered != nil && !*raw.IsRegistered {
			c.Inverse = true
		}
	case "time":
		c.Type = ConditionTimeWindow
	case "reputation", "ai":
		c.Type = ConditionReputation
	default:
		c.Type = ConditionType(raw.Type)
	}

	return nil
}

// PruneConditions drops conditions the evaluator cannot act on: variants
// with a type outside the closed set (foreign or newer exports) and
// reputation conditions without a keyword. The remaining conditions still
// govern the rule, so a legacy rule keeps matching on what it can express.
func PruneConditions(conds []Condition) []Condition {
	kept := conds[:0:0]
	for _, c := range conds {
		switch c.Type {
		case ConditionPattern, ConditionContact, ConditionTimeWindow:
		case ConditionReputation:
			if c.Keyword == "" {
				continue
			}
		default:
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// Rule is one ordered screening rule. Order across rules is load-bearing:
// the engine evaluates enabled rules in position order and the first match
// wins. A rule with no conditions never matches.
type Rule struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	Conditions  []Condition `json:"conditions" db:"conditions"`
	Enabled     bool        `json:"enabled" db:"enabled"`
	IsAllowRule bool        `json:"is_allow_rule" db:"is_allow_rule"`
	Action      RuleAction  `json:"action" db:"action"`
	Position    int         `json:"position" db:"position"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

// Decision is the outcome of screening one incoming call
type Decision struct {
	ShouldBlock     bool       `json:"should_block"`
	MatchedRuleName string     `json:"matched_rule_name,omitempty"`
	Reason          string     `json:"reason,omitempty"`
	Action          RuleAction `json:"action"`
}

// BlockType maps the decision to the history record's block type.
func (d *Decision) BlockType() BlockType {
	if !d.ShouldBlock {
		return BlockAllowed
	}
	if d.Action == ActionSilence {
		return BlockSilenced
	}
	return BlockRejected
}

// ReputationResult is the outcome of a reputation lookup for one number
type ReputationResult struct {
	Number    string           `json:"number"`
	Status    ReputationStatus `json:"status"`
	Text      string           `json:"text,omitempty"`
	CheckedAt time.Time        `json:"checked_at"`
}

// HistoryEntry is one screened call in the decision history. Number is the
// caller's representative form, the same key the analyzer and result cache
// use. Timestamp is unix milliseconds and doubles as the entry's identity
// for updates.
type HistoryEntry struct {
	Number           string           `json:"number" db:"number"`
	Timestamp        int64            `json:"timestamp" db:"ts"`
	Reason           *string          `json:"reason,omitempty" db:"reason"`
	ReputationText   *string          `json:"reputation_text,omitempty" db:"reputation_text"`
	ReputationStatus ReputationStatus `json:"reputation_status" db:"reputation_status"`
	BlockType        BlockType        `json:"block_type" db:"block_type"`
}

// HistoryStats summarizes recent screening activity
type HistoryStats struct {
	TotalCalls      int       `json:"total_calls"`
	Allowed         int       `json:"allowed"`
	Rejected        int       `json:"rejected"`
	Silenced        int       `json:"silenced"`
	BlockRate       float64   `json:"block_rate"`
	DailyMean       float64   `json:"daily_mean"`
	DailyStdDev     float64   `json:"daily_std_dev"`
	AnalysisSuccess int       `json:"analysis_success"`
	AnalysisError   int       `json:"analysis_error"`
	LastUpdated     time.Time `json:"last_updated"`
}

// ScreenRequest asks for a screening decision for one incoming call. An
// empty number means a withheld/unknown caller and is screened normally.
type ScreenRequest struct {
	Number string `json:"number"`
}

// ScreenResponse carries the decision plus the history timestamp the
// background analysis will update.
type ScreenResponse struct {
	Decision  Decision `json:"decision"`
	Timestamp int64    `json:"timestamp"`
}

// CreateRuleRequest creates a new rule, appended at the end of the list
type CreateRuleRequest struct {
	Name        string      `json:"name" binding:"required"`
	Conditions  []Condition `json:"conditions"`
	Enabled     *bool       `json:"enabled,omitempty"`
	IsAllowRule bool        `json:"is_allow_rule"`
	Action      RuleAction  `json:"action"`
}

// UpdateRuleRequest updates an existing rule in place
type UpdateRuleRequest struct {
	Name        *string      `json:"name,omitempty"`
	Conditions  *[]Condition `json:"conditions,omitempty"`
	Enabled     *bool        `json:"enabled,omitempty"`
	IsAllowRule *bool        `json:"is_allow_rule,omitempty"`
	Action      *RuleAction  `json:"action,omitempty"`
}

// ReorderRulesRequest replaces the rule order wholesale
type ReorderRulesRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required,min=1"`
}

// VerifyKeyRequest checks an API credential against the reputation service
type VerifyKeyRequest struct {
	APIKey string `json:"api_key" binding:"required"`
	Model  string `json:"model"`
}
