// Package cpm computes the critical path of a task network with a forward
// and backward pass over the dependency graph.
package cpm

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zulandar/foreman/internal/models"
	"github.com/zulandar/foreman/internal/schedule"
)

// ErrCyclicDependency is returned when the dependency graph contains a cycle.
var ErrCyclicDependency = errors.New("cpm: cyclic dependency")

// CycleError lists the tasks that could not be ordered because they sit on
// or behind a dependency cycle.
type CycleError struct {
	TaskIDs []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cpm: cyclic dependency among %s", strings.Join(e.TaskIDs, ", "))
}

func (e *CycleError) Unwrap() error { return ErrCyclicDependency }

// Times holds a task's schedule as day offsets from the project start.
// Finish offsets are exclusive: a 3-day task starting at 0 finishes at 3.
type Times struct {
	EarlyStart  int `json:"early_start"`
	EarlyFinish int `json:"early_finish"`
	LateStart   int `json:"late_start"`
	LateFinish  int `json:"late_finish"`
	Float       int `json:"float"`
}

// Result is the outcome of a critical path computation.
type Result struct {
	Critical     []string         `json:"critical"`
	Float        map[string]int   `json:"float"`
	Times        map[string]Times `json:"times"`
	ProjectStart time.Time        `json:"project_start"`
	Length       int              `json:"length"`
}

// IsCritical reports whether the task has zero float.
func (r *Result) IsCritical(id string) bool {
	t, ok := r.Times[id]
	return ok && t.Float == 0
}

// ProjectFinish returns the last working day of the project.
func (r *Result) ProjectFinish() time.Time {
	if r.Length == 0 {
		return r.ProjectStart
	}
	return schedule.AddDays(r.ProjectStart, r.Length-1)
}

// Apply sets each task's CriticalPath flag from the result.
func (r *Result) Apply(tasks []models.Task) {
	for i := range tasks {
		tasks[i].CriticalPath = r.IsCritical(tasks[i].ID)
	}
}

// edge is a dependency between two arena slots.
type edge struct {
	pred, succ int
	typ        string
	lag        int
}

// Compute runs the critical path method over tasks. Dependencies that name
// unknown tasks are ignored. Tasks are held in an arena indexed by slot and
// processed in topological order, so long chains and diamonds cost O(n+e).
func Compute(tasks []models.Task) (*Result, error) {
	n := len(tasks)
	slot := make(map[string]int, n)
	for i := range tasks {
		slot[tasks[i].ID] = i
	}

	dur := make([]int, n)
	var projectStart time.Time
	for i := range tasks {
		dur[i] = durationOf(&tasks[i])
		if s := tasks[i].StartDate; !s.IsZero() && (projectStart.IsZero() || s.Before(projectStart)) {
			projectStart = s
		}
	}

	preds := make([][]edge, n)
	succs := make([][]edge, n)
	indeg := make([]int, n)
	for i := range tasks {
		for _, d := range tasks[i].Deps {
			p, ok := slot[d.DependsOn]
			if !ok {
				continue
			}
			e := edge{pred: p, succ: i, typ: d.Type, lag: d.Lag}
			preds[i] = append(preds[i], e)
			succs[p] = append(succs[p], e)
			indeg[i]++
		}
	}

	order, err := topoOrder(tasks, succs, indeg)
	if err != nil {
		return nil, err
	}

	es := make([]int, n)
	ef := make([]int, n)
	length := 0
	for _, i := range order {
		start := 0
		for _, e := range preds[i] {
			if v := earliestStart(e, es[e.pred], ef[e.pred], dur[i]); v > start {
				start = v
			}
		}
		es[i] = start
		ef[i] = start + dur[i]
		if ef[i] > length {
			length = ef[i]
		}
	}

	ls := make([]int, n)
	lf := make([]int, n)
	for k := len(order) - 1; k >= 0; k-- {
		i := order[k]
		finish := length
		for _, e := range succs[i] {
			if v := latestFinish(e, ls[e.succ], lf[e.succ], dur[i]); v < finish {
				finish = v
			}
		}
		lf[i] = finish
		ls[i] = finish - dur[i]
	}

	res := &Result{
		Float:        make(map[string]int, n),
		Times:        make(map[string]Times, n),
		ProjectStart: schedule.Day(projectStart),
		Length:       length,
	}
	for i := range tasks {
		t := Times{EarlyStart: es[i], EarlyFinish: ef[i], LateStart: ls[i], LateFinish: lf[i], Float: ls[i] - es[i]}
		id := tasks[i].ID
		res.Times[id] = t
		res.Float[id] = t.Float
		if t.Float == 0 {
			res.Critical = append(res.Critical, id)
		}
	}
	sort.Strings(res.Critical)
	return res, nil
}

// topoOrder orders slots with Kahn's algorithm. Slots left with unresolved
// predecessors are reported as a CycleError.
func topoOrder(tasks []models.Task, succs [][]edge, indeg []int) ([]int, error) {
	n := len(tasks)
	remaining := make([]int, n)
	copy(remaining, indeg)

	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if remaining[i] == 0 {
			queue = append(queue, i)
		}
	}
	order := make([]int, 0, n)
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, i)
		for _, e := range succs[i] {
			remaining[e.succ]--
			if remaining[e.succ] == 0 {
				queue = append(queue, e.succ)
			}
		}
	}
	if len(order) == n {
		return order, nil
	}

	var stuck []string
	for i := 0; i < n; i++ {
		if remaining[i] > 0 {
			stuck = append(stuck, tasks[i].ID)
		}
	}
	sort.Strings(stuck)
	return nil, &CycleError{TaskIDs: stuck}
}

// earliestStart is the earliest start the edge allows its successor.
func earliestStart(e edge, predES, predEF, succDur int) int {
	switch e.typ {
	case models.DepStartToStart:
		return predES + e.lag
	case models.DepFinishToFinish:
		return predEF + e.lag - succDur
	case models.DepStartToFinish:
		return predES + e.lag - succDur
	default:
		return predEF + e.lag
	}
}

// latestFinish is the latest finish the edge allows its predecessor.
func latestFinish(e edge, succLS, succLF, predDur int) int {
	switch e.typ {
	case models.DepStartToStart:
		return succLS - e.lag + predDur
	case models.DepFinishToFinish:
		return succLF - e.lag
	case models.DepStartToFinish:
		return succLF - e.lag + predDur
	default:
		return succLS - e.lag
	}
}

// durationOf returns a task's length in days. Milestones take no time.
func durationOf(t *models.Task) int {
	if t.Milestone {
		return 0
	}
	if t.Duration > 0 {
		return t.Duration
	}
	if !t.StartDate.IsZero() && !t.EndDate.IsZero() {
		return schedule.DurationDays(t.StartDate, t.EndDate)
	}
	return 1
}
