package conflict

import (
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/foreman/internal/models"
	"github.com/zulandar/foreman/internal/schedule"
)

// Rule catalogue.
var (
	ruleTradeOrder = Rule{ID: "SEQ-001", Name: "Trade order reversed", Type: RuleSequence,
		Description: "A prerequisite trade is scheduled to start after the trade that depends on it."}
	rulePrereqRunning = Rule{ID: "SEQ-002", Name: "Prerequisite still running", Type: RuleSequence,
		Description: "A dependent trade starts before its prerequisite trade has finished."}
	ruleLinkViolated = Rule{ID: "SEQ-003", Name: "Dependency link violated", Type: RuleSequence,
		Description: "Task dates break an explicit dependency link and its lag."}
	ruleOverAllocated = Rule{ID: "RES-001", Name: "Resource over-allocated", Type: RuleResource,
		Description: "Overlapping tasks draw more units of a resource than it can supply."}
	ruleSharedArea = Rule{ID: "SPC-001", Name: "Shared work area", Type: RuleSpace,
		Description: "Two tasks occupy the same location at the same time."}
	ruleIncompatibleTrades = Rule{ID: "SPC-002", Name: "Incompatible trades overlap", Type: RuleSpace,
		Description: "Trades that cannot work alongside each other overlap in the same area."}
	ruleAdverseWeather = Rule{ID: "WTH-001", Name: "Adverse weather", Type: RuleWeather,
		Description: "Weather-sensitive work is scheduled during adverse forecast conditions."}
	ruleMissingInspection = Rule{ID: "INS-001", Name: "Missing inspection", Type: RuleInspection,
		Description: "No inspection is scheduled between a prerequisite finishing and gated work starting."}
)

// hazard is a known-dangerous overlap between two trades at one location.
type hazard struct {
	a, b     string
	rule     Rule
	severity Severity
}

var hazards = []hazard{
	{"roofing", "painting", Rule{ID: "SAF-001", Name: "Overhead work", Type: RuleSafety,
		Description: "Crews working below active roofing are exposed to falling material."}, SeverityCritical},
	{"roofing", "flooring", Rule{ID: "SAF-001", Name: "Overhead work", Type: RuleSafety,
		Description: "Crews working below active roofing are exposed to falling material."}, SeverityCritical},
	{"roofing", "landscaping", Rule{ID: "SAF-001", Name: "Overhead work", Type: RuleSafety,
		Description: "Crews working below active roofing are exposed to falling material."}, SeverityCritical},
	{"framing", "site_prep", Rule{ID: "SAF-001", Name: "Overhead work", Type: RuleSafety,
		Description: "Crews working below active roofing are exposed to falling material."}, SeverityHigh},
	{"excavation", "concrete", Rule{ID: "SAF-002", Name: "Open excavation beside pour", Type: RuleSafety,
		Description: "Pouring beside an open excavation risks trench collapse."}, SeverityHigh},
	{"excavation", "foundation", Rule{ID: "SAF-002", Name: "Open excavation beside pour", Type: RuleSafety,
		Description: "Pouring beside an open excavation risks trench collapse."}, SeverityHigh},
	{"roofing", "insulation", Rule{ID: "SAF-003", Name: "Hot work near combustibles", Type: RuleSafety,
		Description: "Torch-applied roofing near exposed insulation is a fire hazard."}, SeverityHigh},
	{"electrical", "plumbing", Rule{ID: "SAF-004", Name: "Energised work near water", Type: RuleSafety,
		Description: "Live electrical work alongside open plumbing risks shock."}, SeverityMedium},
}

// evalContext carries the per-analysis lookups rules share.
type evalContext struct {
	kb          KnowledgeBase
	resources   map[string]models.Resource
	critical    map[string]bool
	inspections []*models.Task
	weather     *Weather
}

// pairRule evaluates one rule category for a pair of tasks. An error means
// the rule could not be evaluated for this pair and is skipped.
type pairRule func(ec *evalContext, a, b *models.Task) ([]Conflict, error)

var pairRules = map[RuleType]pairRule{
	RuleSequence:   sequenceRule,
	RuleResource:   resourceRule,
	RuleSpace:      spaceRule,
	RuleInspection: inspectionRule,
	RuleSafety:     safetyRule,
}

func sequenceRule(ec *evalContext, a, b *models.Task) ([]Conflict, error) {
	var out []Conflict
	for _, p := range [][2]*models.Task{{a, b}, {b, a}} {
		if c, ok := linkViolation(ec, p[0], p[1]); ok {
			out = append(out, c)
		}
	}
	if _, err := ec.kb.Lookup(a.Trade); err != nil {
		return out, err
	}
	if _, err := ec.kb.Lookup(b.Trade); err != nil {
		return out, err
	}
	for _, p := range [][2]*models.Task{{a, b}, {b, a}} {
		pre, dep := p[0], p[1]
		if !ec.kb.dependsOn(dep.Trade, pre.Trade) {
			continue
		}
		switch {
		case schedule.Day(pre.StartDate).After(schedule.Day(dep.StartDate)):
			out = append(out, ec.newConflict(pre, dep, ruleTradeOrder, ec.escalateCritical(SeverityHigh, pre, dep),
				fmt.Sprintf("Move %q to start after %q finishes (on or after %s).",
					dep.Title, pre.Title, fmtDay(schedule.AddDays(pre.EndDate, 1)))))
		case !schedule.Day(pre.EndDate).Before(schedule.Day(dep.StartDate)):
			out = append(out, ec.newConflict(pre, dep, rulePrereqRunning, ec.escalateCritical(SeverityMedium, pre, dep),
				fmt.Sprintf("Delay %q until %q finishes on %s.", dep.Title, pre.Title, fmtDay(pre.EndDate))))
		}
	}
	return out, nil
}

// linkViolation checks an explicit dependency of dep on pre.
func linkViolation(ec *evalContext, pre, dep *models.Task) (Conflict, bool) {
	for _, d := range dep.Deps {
		if d.DependsOn != pre.ID {
			continue
		}
		var earliest time.Time
		var broken bool
		switch d.Type {
		case models.DepStartToStart:
			earliest = schedule.AddDays(pre.StartDate, d.Lag)
			broken = schedule.Day(dep.StartDate).Before(earliest)
		case models.DepFinishToFinish:
			earliest = schedule.AddDays(pre.EndDate, d.Lag)
			broken = schedule.Day(dep.EndDate).Before(earliest)
		case models.DepStartToFinish:
			earliest = schedule.AddDays(pre.StartDate, d.Lag)
			broken = schedule.Day(dep.EndDate).Before(earliest)
		default:
			earliest = schedule.AddDays(pre.EndDate, d.Lag+1)
			broken = schedule.Day(dep.StartDate).Before(earliest)
		}
		if !broken {
			continue
		}
		typ := d.Type
		if typ == "" {
			typ = models.DepFinishToStart
		}
		edge := "start"
		if typ == models.DepFinishToFinish || typ == models.DepStartToFinish {
			edge = "finish"
		}
		return ec.newConflict(pre, dep, ruleLinkViolated, ec.escalateCritical(SeverityHigh, pre, dep),
			fmt.Sprintf("Move %q to %s on or after %s to honour its %s link (lag %d) with %q.",
				dep.Title, edge, fmtDay(earliest), typ, d.Lag, pre.Title)), true
	}
	return Conflict{}, false
}

func resourceRule(ec *evalContext, a, b *models.Task) ([]Conflict, error) {
	if !overlaps(a, b) {
		return nil, nil
	}
	units := make(map[string]float64, len(a.Resources))
	for _, r := range a.Resources {
		units[r.ResourceID] += unitsOf(r)
	}
	var missing []string
	for _, r := range b.Resources {
		ua, shared := units[r.ResourceID]
		if !shared {
			continue
		}
		res, ok := ec.resources[r.ResourceID]
		if !ok {
			missing = append(missing, r.ResourceID)
			continue
		}
		need := ua + unitsOf(r)
		if need <= res.Capacity() {
			continue
		}
		name := res.Name
		if name == "" {
			name = res.ID
		}
		return []Conflict{ec.newConflict(a, b, ruleOverAllocated, ec.escalateCritical(SeverityHigh, a, b),
			fmt.Sprintf("Stagger %q and %q or add capacity to %s (needs %.1f of %.1f units).",
				a.Title, b.Title, name, need, res.Capacity()))}, nil
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("conflict: unknown resources %s", strings.Join(missing, ", "))
	}
	return nil, nil
}

func unitsOf(a models.Assignment) float64 {
	if a.Units <= 0 {
		return 1
	}
	return a.Units
}

func spaceRule(ec *evalContext, a, b *models.Task) ([]Conflict, error) {
	if !overlaps(a, b) {
		return nil, nil
	}
	if a.Trade != "" && b.Trade != "" {
		ta, errA := ec.kb.Lookup(a.Trade)
		tb, errB := ec.kb.Lookup(b.Trade)
		incompatible := (errA == nil && containsTrade(ta.ConflictsWith, b.Trade)) ||
			(errB == nil && containsTrade(tb.ConflictsWith, a.Trade))
		if incompatible && sameArea(a, b) {
			return []Conflict{ec.newConflict(a, b, ruleIncompatibleTrades, SeverityHigh,
				fmt.Sprintf("Separate %q and %q in time; %s and %s cannot share a work area.",
					a.Title, b.Title, a.Trade, b.Trade))}, nil
		}
	}
	if a.Location != "" && strings.EqualFold(a.Location, b.Location) {
		return []Conflict{ec.newConflict(a, b, ruleSharedArea, SeverityLow,
			fmt.Sprintf("Coordinate access to %s between %q and %q.", a.Location, a.Title, b.Title))}, nil
	}
	return nil, nil
}

func inspectionRule(ec *evalContext, a, b *models.Task) ([]Conflict, error) {
	var out []Conflict
	for _, p := range [][2]*models.Task{{a, b}, {b, a}} {
		pre, gated := p[0], p[1]
		if gated.Trade == "" || normalizeTrade(pre.Trade) == TradeInspection {
			continue
		}
		td, err := ec.kb.Lookup(gated.Trade)
		if err != nil {
			return out, err
		}
		if !td.RequiresInspection || !precedes(ec, pre, gated) {
			continue
		}
		if schedule.Day(pre.EndDate).After(schedule.Day(gated.StartDate)) {
			continue
		}
		if ec.inspectedBetween(pre, gated) {
			continue
		}
		out = append(out, ec.newConflict(pre, gated, ruleMissingInspection, SeverityHigh,
			fmt.Sprintf("Schedule an inspection between %q finishing (%s) and %q starting (%s).",
				pre.Title, fmtDay(pre.EndDate), gated.Title, fmtDay(gated.StartDate))))
	}
	return out, nil
}

// precedes reports whether pre is a predecessor of gated, either through
// trade knowledge or an explicit dependency link.
func precedes(ec *evalContext, pre, gated *models.Task) bool {
	for _, d := range gated.Deps {
		if d.DependsOn == pre.ID {
			return true
		}
	}
	return pre.Trade != "" && ec.kb.dependsOn(gated.Trade, pre.Trade)
}

func (ec *evalContext) inspectedBetween(pre, gated *models.Task) bool {
	from, to := schedule.Day(pre.EndDate), schedule.Day(gated.StartDate)
	for _, in := range ec.inspections {
		s := schedule.Day(in.StartDate)
		if s.Before(from) || s.After(to) {
			continue
		}
		if in.Location == "" || gated.Location == "" || strings.EqualFold(in.Location, gated.Location) {
			return true
		}
	}
	return false
}

func safetyRule(ec *evalContext, a, b *models.Task) ([]Conflict, error) {
	if !overlaps(a, b) || !sameArea(a, b) {
		return nil, nil
	}
	ta, tb := normalizeTrade(a.Trade), normalizeTrade(b.Trade)
	for _, h := range hazards {
		if (ta == h.a && tb == h.b) || (ta == h.b && tb == h.a) {
			where := a.Location
			if where == "" {
				where = b.Location
			}
			if where == "" {
				where = "the site"
			}
			return []Conflict{ec.newConflict(a, b, h.rule, h.severity,
				fmt.Sprintf("Sequence %q and %q so they do not overlap at %s (%s).",
					a.Title, b.Title, where, strings.ToLower(h.rule.Name)))}, nil
		}
	}
	return nil, nil
}

// weatherRule evaluates a single task against the forecast.
func weatherRule(ec *evalContext, t *models.Task) ([]Conflict, error) {
	if ec.weather == nil {
		return nil, nil
	}
	td, err := ec.kb.Lookup(t.Trade)
	if err != nil {
		return nil, err
	}
	if !td.WeatherSensitive {
		return nil, nil
	}
	var worst Severity
	var worstDay time.Time
	var worstCond string
	end := schedule.Day(t.EndDate)
	for d := schedule.Day(t.StartDate); !d.After(end); d = d.AddDate(0, 0, 1) {
		cond := ec.weather.ConditionOn(d)
		sev, adverse := adverseSeverity(cond)
		if !adverse || sev.Level() <= worst.Level() {
			continue
		}
		worst, worstDay, worstCond = sev, d, cond
	}
	if worst == "" {
		return nil, nil
	}
	if worst == SeverityHigh && isFreezing(worstCond) && isPour(t.Trade) {
		worst = SeverityCritical
	}
	c := Conflict{
		TaskA:    t.ID,
		TitleA:   t.Title,
		Rule:     ruleAdverseWeather,
		Severity: worst,
		Suggestion: fmt.Sprintf("Reschedule %q outside the forecast %s on %s or plan weather protection.",
			t.Title, worstCond, fmtDay(worstDay)),
	}
	return []Conflict{c}, nil
}

func isFreezing(cond string) bool {
	c := strings.ToLower(cond)
	return c == "freezing" || c == "ice" || c == "snow" || c == "blizzard"
}

func isPour(trade string) bool {
	t := normalizeTrade(trade)
	return t == "concrete" || t == "foundation"
}

func (ec *evalContext) newConflict(a, b *models.Task, r Rule, sev Severity, suggestion string) Conflict {
	return Conflict{
		TaskA:      a.ID,
		TaskB:      b.ID,
		TitleA:     a.Title,
		TitleB:     b.Title,
		Rule:       r,
		Severity:   sev,
		Suggestion: suggestion,
	}
}

// escalateCritical raises severity one level when either task is on the
// critical path.
func (ec *evalContext) escalateCritical(sev Severity, a, b *models.Task) Severity {
	if ec.critical[a.ID] || ec.critical[b.ID] {
		return sev.escalate()
	}
	return sev
}

func overlaps(a, b *models.Task) bool {
	return !schedule.Day(a.EndDate).Before(schedule.Day(b.StartDate)) &&
		!schedule.Day(b.EndDate).Before(schedule.Day(a.StartDate))
}

// sameArea treats a missing location as site-wide.
func sameArea(a, b *models.Task) bool {
	return a.Location == "" || b.Location == "" || strings.EqualFold(a.Location, b.Location)
}

func fmtDay(t time.Time) string {
	return t.Format("Jan 2")
}
