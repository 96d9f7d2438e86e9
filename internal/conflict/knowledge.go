package conflict

import (
	"fmt"
	"strings"
)

// TradeInspection is the trade name used by inspection tasks.
const TradeInspection = "inspection"

// TradeDependency is the sequencing knowledge for one construction trade.
type TradeDependency struct {
	DependsOn          []string `yaml:"depends_on" json:"depends_on"`
	ConflictsWith      []string `yaml:"conflicts_with" json:"conflicts_with"`
	WeatherSensitive   bool     `yaml:"weather_sensitive" json:"weather_sensitive"`
	RequiresInspection bool     `yaml:"requires_inspection" json:"requires_inspection"`
}

// KnowledgeBase maps a trade name to its dependency knowledge.
type KnowledgeBase map[string]TradeDependency

// DefaultKnowledgeBase returns the built-in trade rules for residential and
// light commercial construction.
func DefaultKnowledgeBase() KnowledgeBase {
	return KnowledgeBase{
		"site_prep":  {WeatherSensitive: true},
		"excavation": {DependsOn: []string{"site_prep"}, WeatherSensitive: true},
		"foundation": {DependsOn: []string{"excavation"}, WeatherSensitive: true, RequiresInspection: true},
		"concrete":   {DependsOn: []string{"excavation"}, WeatherSensitive: true, RequiresInspection: true},
		"framing":    {DependsOn: []string{"foundation"}, WeatherSensitive: true, RequiresInspection: true},
		"roofing":    {DependsOn: []string{"framing"}, WeatherSensitive: true},
		"plumbing":   {DependsOn: []string{"framing"}, ConflictsWith: []string{"drywall"}},
		"electrical": {DependsOn: []string{"framing"}, ConflictsWith: []string{"drywall"}},
		"hvac":       {DependsOn: []string{"framing"}, ConflictsWith: []string{"drywall"}},
		"insulation": {DependsOn: []string{"plumbing", "electrical", "hvac"}, RequiresInspection: true},
		"drywall": {
			DependsOn:          []string{"insulation"},
			ConflictsWith:      []string{"plumbing", "electrical", "hvac", "painting", "flooring"},
			RequiresInspection: true,
		},
		"painting":      {DependsOn: []string{"drywall"}, ConflictsWith: []string{"flooring", "drywall"}},
		"flooring":      {DependsOn: []string{"drywall"}, ConflictsWith: []string{"painting", "drywall"}},
		"landscaping":   {DependsOn: []string{"roofing"}, WeatherSensitive: true},
		TradeInspection: {},
	}
}

// Merge returns a copy of kb with the overrides applied. An override replaces
// the whole entry for its trade.
func (kb KnowledgeBase) Merge(overrides KnowledgeBase) KnowledgeBase {
	out := make(KnowledgeBase, len(kb)+len(overrides))
	for k, v := range kb {
		out[k] = v
	}
	for k, v := range overrides {
		out[normalizeTrade(k)] = v
	}
	return out
}

// Lookup returns the entry for a trade. Trade names are matched
// case-insensitively with spaces and dashes treated as underscores.
func (kb KnowledgeBase) Lookup(trade string) (TradeDependency, error) {
	if trade == "" {
		return TradeDependency{}, fmt.Errorf("conflict: task has no trade")
	}
	td, ok := kb[normalizeTrade(trade)]
	if !ok {
		return TradeDependency{}, fmt.Errorf("conflict: unknown trade %q", trade)
	}
	return td, nil
}

// dependsOn reports whether trade a must precede trade b.
func (kb KnowledgeBase) dependsOn(b, a string) bool {
	td, err := kb.Lookup(b)
	if err != nil {
		return false
	}
	return containsTrade(td.DependsOn, a)
}

func containsTrade(list []string, trade string) bool {
	trade = normalizeTrade(trade)
	for _, t := range list {
		if normalizeTrade(t) == trade {
			return true
		}
	}
	return false
}

func normalizeTrade(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}
