// Package conflict evaluates a task set against construction trade rules
// and scores the resulting scheduling conflicts.
package conflict

import (
	"fmt"
	"strings"
)

// RuleType is the category of a rule.
type RuleType string

// Rule categories.
const (
	RuleSequence   RuleType = "sequence"
	RuleResource   RuleType = "resource"
	RuleSpace      RuleType = "space"
	RuleWeather    RuleType = "weather"
	RuleInspection RuleType = "inspection"
	RuleSafety     RuleType = "safety"
)

// AllRuleTypes lists every category in evaluation order.
var AllRuleTypes = []RuleType{RuleSequence, RuleResource, RuleSpace, RuleWeather, RuleInspection, RuleSafety}

// Severity ranks how disruptive a conflict is.
type Severity string

// Severities, lowest first.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Level orders severities: low=1 through critical=4. Unknown values are 0.
func (s Severity) Level() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// escalate raises a severity one step, stopping at critical.
func (s Severity) escalate() Severity {
	switch s {
	case SeverityLow:
		return SeverityMedium
	case SeverityMedium:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// Perspective controls which severities are surfaced.
type Perspective string

// Perspectives, most sensitive first.
const (
	PerspectiveStrict   Perspective = "strict"
	PerspectiveBalanced Perspective = "balanced"
	PerspectiveFlexible Perspective = "flexible"
)

// ParsePerspective validates a perspective name. The empty string means balanced.
func ParsePerspective(s string) (Perspective, error) {
	switch p := Perspective(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PerspectiveBalanced, nil
	case PerspectiveStrict, PerspectiveBalanced, PerspectiveFlexible:
		return p, nil
	}
	return "", fmt.Errorf("conflict: unknown perspective %q", s)
}

// MinSeverity is the lowest severity the perspective surfaces.
func (p Perspective) MinSeverity() Severity {
	switch p {
	case PerspectiveStrict:
		return SeverityLow
	case PerspectiveFlexible:
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// Surfaces reports whether a conflict of severity s is shown.
func (p Perspective) Surfaces(s Severity) bool {
	return s.Level() >= p.MinSeverity().Level()
}

// Rule identifies the constraint a conflict violates.
type Rule struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Type        RuleType `json:"type"`
	Description string   `json:"description"`
}

// Conflict is one rule violation between two tasks, or a single task for
// weather conflicts (TaskB empty).
type Conflict struct {
	TaskA      string   `json:"task_a"`
	TaskB      string   `json:"task_b,omitempty"`
	TitleA     string   `json:"title_a"`
	TitleB     string   `json:"title_b,omitempty"`
	Rule       Rule     `json:"rule"`
	Severity   Severity `json:"severity"`
	Suggestion string   `json:"suggestion"`
}

// Key identifies a conflict independent of the order of its tasks.
type Key struct {
	A      string `json:"a"`
	B      string `json:"b"`
	RuleID string `json:"rule_id"`
}

// String renders the key as "a|b|rule".
func (k Key) String() string {
	return k.A + "|" + k.B + "|" + k.RuleID
}

// NewKey builds a key with the task IDs in sorted order.
func NewKey(a, b, ruleID string) Key {
	if b != "" && b < a {
		a, b = b, a
	}
	return Key{A: a, B: b, RuleID: ruleID}
}

// Key returns the conflict's ignore key.
func (c Conflict) Key() Key {
	return NewKey(c.TaskA, c.TaskB, c.Rule.ID)
}

// Result is the outcome of an analysis.
type Result struct {
	Score       int        `json:"score"`
	Conflicts   []Conflict `json:"conflicts"`
	Suggestions []string   `json:"suggestions"`
}

// Counts tallies surfaced conflicts by severity.
func (r Result) Counts() map[Severity]int {
	out := make(map[Severity]int)
	for _, c := range r.Conflicts {
		out[c.Severity]++
	}
	return out
}
