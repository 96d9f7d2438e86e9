package conflict

import (
	"log"
	"sort"

	"github.com/zulandar/foreman/internal/models"
)

// DefaultWeights is the score deduction per surfaced conflict.
var DefaultWeights = map[Severity]int{
	SeverityCritical: 25,
	SeverityHigh:     15,
	SeverityMedium:   8,
	SeverityLow:      3,
}

// Settings scopes one analysis run.
type Settings struct {
	// ProjectID limits analysis to one project when set.
	ProjectID string
	Disabled  map[RuleType]bool
	Resources []models.Resource
	// Critical holds ids of tasks on the critical path. Sequence and
	// resource conflicts touching them are escalated one level.
	Critical map[string]bool
	Ignored  map[Key]bool
}

// Engine evaluates tasks against a trade knowledge base.
type Engine struct {
	Trades  KnowledgeBase
	Weights map[Severity]int
	// Verbose logs rules skipped because a pair could not be evaluated.
	Verbose bool
}

// NewEngine creates an engine over kb. A nil kb uses the built-in trades.
func NewEngine(kb KnowledgeBase) *Engine {
	if kb == nil {
		kb = DefaultKnowledgeBase()
	}
	return &Engine{Trades: kb, Weights: DefaultWeights}
}

// Analyze evaluates every rule category over every pair of live tasks and
// returns the conflicts the perspective surfaces, minus ignored ones.
// Output is deterministic for a given input.
func (e *Engine) Analyze(tasks []models.Task, p Perspective, w *Weather, s Settings) Result {
	live := scope(tasks, s.ProjectID)
	ignored := make(map[Key]bool, len(s.Ignored))
	for k, on := range s.Ignored {
		if on {
			ignored[NewKey(k.A, k.B, k.RuleID)] = true
		}
	}

	ec := &evalContext{
		kb:        e.Trades,
		resources: make(map[string]models.Resource, len(s.Resources)),
		critical:  s.Critical,
		weather:   w,
	}
	for _, r := range s.Resources {
		ec.resources[r.ID] = r
	}
	for _, t := range live {
		if normalizeTrade(t.Trade) == TradeInspection {
			ec.inspections = append(ec.inspections, t)
		}
	}

	var found []Conflict
	for _, rt := range AllRuleTypes {
		if s.Disabled[rt] {
			continue
		}
		if rt == RuleWeather {
			for _, t := range live {
				cs, err := weatherRule(ec, t)
				e.skipped(rt, t.ID, "", err)
				found = append(found, cs...)
			}
			continue
		}
		rule := pairRules[rt]
		for i := 0; i < len(live); i++ {
			for j := i + 1; j < len(live); j++ {
				cs, err := rule(ec, live[i], live[j])
				e.skipped(rt, live[i].ID, live[j].ID, err)
				found = append(found, cs...)
			}
		}
	}

	var out []Conflict
	for _, c := range found {
		if !p.Surfaces(c.Severity) || ignored[c.Key()] {
			continue
		}
		out = append(out, c)
	}
	sortConflicts(out)

	return Result{
		Score:       e.score(out),
		Conflicts:   out,
		Suggestions: suggestions(out),
	}
}

func (e *Engine) skipped(rt RuleType, a, b string, err error) {
	if err != nil && e.Verbose {
		log.Printf("conflict: skip %s rule for %s/%s: %v", rt, a, b, err)
	}
}

// scope drops soft-deleted tasks and tasks outside the project, sorted by id.
func scope(tasks []models.Task, projectID string) []*models.Task {
	live := make([]*models.Task, 0, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		if t.Deleted() {
			continue
		}
		if projectID != "" && t.ProjectID != "" && t.ProjectID != projectID {
			continue
		}
		live = append(live, t)
	}
	sort.SliceStable(live, func(i, j int) bool { return live[i].ID < live[j].ID })
	return live
}

func (e *Engine) score(cs []Conflict) int {
	weights := e.Weights
	if weights == nil {
		weights = DefaultWeights
	}
	score := 100
	for _, c := range cs {
		score -= weights[c.Severity]
	}
	if score < 0 {
		return 0
	}
	return score
}

func sortConflicts(cs []Conflict) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Severity.Level() != b.Severity.Level() {
			return a.Severity.Level() > b.Severity.Level()
		}
		ka, kb := a.Key(), b.Key()
		if ka.A != kb.A {
			return ka.A < kb.A
		}
		if ka.B != kb.B {
			return ka.B < kb.B
		}
		return ka.RuleID < kb.RuleID
	})
}

func suggestions(cs []Conflict) []string {
	seen := make(map[string]bool, len(cs))
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		if c.Suggestion == "" || seen[c.Suggestion] {
			continue
		}
		seen[c.Suggestion] = true
		out = append(out, c.Suggestion)
	}
	return out
}
