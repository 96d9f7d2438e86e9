// Package planner keeps the live schedule of one project: the task board,
// drag handling, pending deletions and the critical path and conflict
// analysis derived from them. Every board change triggers a recompute and
// an Update to subscribers.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/zulandar/foreman/internal/conflict"
	"github.com/zulandar/foreman/internal/cpm"
	"github.com/zulandar/foreman/internal/models"
	"github.com/zulandar/foreman/internal/notify"
	"github.com/zulandar/foreman/internal/reschedule"
	"github.com/zulandar/foreman/internal/schedule"
)

// ErrConflictNotFound is returned when feedback names a conflict that the
// current schedule does not have.
var ErrConflictNotFound = errors.New("planner: conflict not found")

// Update types.
const (
	UpdateChanged  = "changed"
	UpdateDeleted  = "deleted"
	UpdateRestored = "restored"
	UpdateError    = "error"
	UpdateAnalysis = "analysis"
)

// Update describes a change to the live schedule.
type Update struct {
	Type     string         `json:"type"`
	TaskID   string         `json:"task_id,omitempty"`
	Task     *models.Task   `json:"task,omitempty"`
	Error    string         `json:"error,omitempty"`
	Score    int            `json:"score"`
	Counts   map[string]int `json:"conflicts"`
	Critical []string       `json:"critical,omitempty"`
}

// Options configures a Planner.
type Options struct {
	Project     models.Project
	Engine      *conflict.Engine
	Perspective conflict.Perspective
	Weather     *conflict.Weather
	Disabled    map[conflict.RuleType]bool
	Resources   []models.Resource

	Persister reschedule.Persister
	Feedback  conflict.FeedbackSink

	Debounce           time.Duration
	DeletionGrace      time.Duration
	ActivationDistance float64

	// Watcher, when set, is handed every analysis to alert on new conflicts.
	Watcher *notify.Watcher
	Now     func() time.Time
}

// Snapshot is the derived state after the latest board change.
type Snapshot struct {
	// Tasks are the live tasks with CriticalPath set, ordered by start date.
	Tasks       []models.Task
	Critical    *cpm.Result
	CriticalErr error
	Analysis    conflict.Result
}

// Planner owns the live schedule for one project. It is safe for
// concurrent use.
type Planner struct {
	opts      Options
	board     *reschedule.Board
	handler   *reschedule.Handler
	deletions *reschedule.DeletionRegistry
	session   *conflict.Session
	reporter  *conflict.Reporter

	// recomputing serializes recomputes so snapshots are stored in board order.
	recomputing sync.Mutex

	mu     sync.RWMutex
	snap   Snapshot
	subs   map[int]func(Update)
	nextID int
}

// New creates a planner over tasks. Deleted tasks are dropped.
func New(ctx context.Context, tasks []models.Task, opts Options) *Planner {
	if opts.Engine == nil {
		opts.Engine = conflict.NewEngine(nil)
	}
	if opts.Perspective == "" {
		opts.Perspective = conflict.PerspectiveBalanced
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	live := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if !t.Deleted() {
			live = append(live, t)
		}
	}

	p := &Planner{
		opts:    opts,
		board:   reschedule.NewBoard(live),
		session: conflict.NewSession(opts.Engine),
		subs:    make(map[int]func(Update)),
	}
	errs := reschedule.ErrorReporterFunc(p.reportError)
	p.handler = reschedule.NewHandler(p.board, opts.Persister, reschedule.Options{
		Debounce:           opts.Debounce,
		ActivationDistance: opts.ActivationDistance,
		Now:                opts.Now,
		Errors:             errs,
		OnChange:           func(id string) { p.changed(UpdateChanged, id) },
	})
	p.deletions = reschedule.NewDeletionRegistry(ctx, p.board, opts.Persister, opts.DeletionGrace, errs)
	p.deletions.OnChange = func(id string) {
		kind := UpdateRestored
		if _, ok := p.board.Get(id); !ok {
			kind = UpdateDeleted
		}
		p.changed(kind, id)
	}
	p.reporter = &conflict.Reporter{
		Sink:     opts.Feedback,
		Trades:   func(id string) string { t, _ := p.board.Get(id); return t.Trade },
		Location: func(id string) string { t, _ := p.board.Get(id); return t.Location },
		Now:      opts.Now,
	}

	p.recompute()
	return p
}

// Project returns the project the planner schedules.
func (p *Planner) Project() models.Project { return p.opts.Project }

// Handler exposes the gesture handler for pointer-driven clients.
func (p *Planner) Handler() *reschedule.Handler { return p.handler }

// Snapshot returns the latest derived state.
func (p *Planner) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// Task returns the live task with id, including its critical flag.
func (p *Planner) Task(id string) (models.Task, bool) {
	for _, t := range p.Snapshot().Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return models.Task{}, false
}

// Tree returns the task hierarchy with WBS codes assigned.
func (p *Planner) Tree() *schedule.Tree {
	// The tree writes Level and WBS into its tasks; the snapshot is shared.
	tasks := append([]models.Task(nil), p.Snapshot().Tasks...)
	tree := schedule.BuildHierarchy(tasks)
	tree.AssignWBS()
	return tree
}

// Timeline holds the time axis and bar geometry for one scale.
type Timeline struct {
	Scale     schedule.Timescale           `json:"scale"`
	Headers   []time.Time                  `json:"headers"`
	Labels    []string                     `json:"labels"`
	Positions map[string]schedule.Position `json:"positions"`
}

// Timeline computes the time axis for scale and each task's position on it.
func (p *Planner) Timeline(scale schedule.Timescale) Timeline {
	tasks := p.Snapshot().Tasks
	headers := schedule.GenerateTimeHeaders(tasks, p.projectRange(), scale)
	labels := make([]string, len(headers))
	for i, h := range headers {
		labels[i] = schedule.HeaderLabel(h, scale)
	}
	return Timeline{
		Scale:     scale,
		Headers:   headers,
		Labels:    labels,
		Positions: schedule.Positions(tasks, headers),
	}
}

// Analyze runs the conflict engine from perspective persp over the live
// tasks, honoring the session ignore set.
func (p *Planner) Analyze(persp conflict.Perspective) conflict.Result {
	snap := p.Snapshot()
	return p.session.Analyze(snap.Tasks, persp, p.opts.Weather, p.settings(snap.Critical))
}

// Ignore hides a conflict for the rest of the session.
func (p *Planner) Ignore(k conflict.Key) {
	p.session.IgnoreKey(k)
	p.reanalyze()
}

// Unignore makes an ignored conflict visible again.
func (p *Planner) Unignore(k conflict.Key) {
	p.session.UnignoreKey(k)
	p.reanalyze()
}

// ClearIgnored empties the session ignore set.
func (p *Planner) ClearIgnored() {
	p.session.Clear()
	p.reanalyze()
}

// Ignored returns the ignored conflict keys, sorted.
func (p *Planner) Ignored() []conflict.Key {
	set := p.session.Ignored()
	out := make([]conflict.Key, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Feedback records the user's response to the conflict identified by k.
// An ignore response also hides the conflict.
func (p *Planner) Feedback(ctx context.Context, k conflict.Key, action string) error {
	k = conflict.NewKey(k.A, k.B, k.RuleID)
	snap := p.Snapshot()
	res := p.opts.Engine.Analyze(snap.Tasks, conflict.PerspectiveStrict, p.opts.Weather, p.settings(snap.Critical))
	for _, c := range res.Conflicts {
		if c.Key() != k {
			continue
		}
		if err := p.reporter.Report(ctx, c, action, p.opts.Weather); err != nil {
			return err
		}
		if action == conflict.ActionIgnore {
			p.Ignore(k)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrConflictNotFound, k)
}

// Reschedule moves a task to target and queues persistence.
func (p *Planner) Reschedule(ctx context.Context, id string, target reschedule.DropTarget) (models.Task, error) {
	return p.handler.Reschedule(ctx, id, target)
}

// Delete hides a task and deletes it once the grace window passes.
func (p *Planner) Delete(id string) error {
	return p.deletions.Schedule(id)
}

// Undo restores a task whose deletion is still pending.
func (p *Planner) Undo(id string) bool {
	return p.deletions.Undo(id)
}

// PendingDeletions returns ids awaiting deletion.
func (p *Planner) PendingDeletions() []string {
	return p.deletions.Pending()
}

// Subscribe registers fn for every Update. fn must not block. The returned
// function removes the subscription.
func (p *Planner) Subscribe(fn func(Update)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// Flush persists queued moves and commits pending deletions now.
func (p *Planner) Flush() {
	p.handler.Flush()
	p.deletions.Flush()
}

// Close flushes outstanding work and stops accepting changes.
func (p *Planner) Close() {
	p.handler.Close()
	p.deletions.Close()
}

func (p *Planner) projectRange() schedule.Range {
	var r schedule.Range
	if p.opts.Project.StartDate != nil {
		r.Start = *p.opts.Project.StartDate
	}
	if p.opts.Project.EndDate != nil {
		r.End = *p.opts.Project.EndDate
	}
	return r
}

func (p *Planner) settings(cp *cpm.Result) conflict.Settings {
	s := conflict.Settings{
		ProjectID: p.opts.Project.ID,
		Disabled:  p.opts.Disabled,
		Resources: p.opts.Resources,
	}
	if cp != nil {
		s.Critical = make(map[string]bool, len(cp.Critical))
		for _, id := range cp.Critical {
			s.Critical[id] = true
		}
	}
	return s
}

// recompute derives the critical path and analysis from the board.
func (p *Planner) recompute() Snapshot {
	p.recomputing.Lock()
	defer p.recomputing.Unlock()

	tasks := p.board.Tasks()
	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].StartDate.Equal(tasks[j].StartDate) {
			return tasks[i].StartDate.Before(tasks[j].StartDate)
		}
		return tasks[i].ID < tasks[j].ID
	})

	snap := Snapshot{Tasks: tasks}
	cp, err := cpm.Compute(tasks)
	if err != nil {
		snap.CriticalErr = err
	} else {
		cp.Apply(tasks)
		snap.Critical = cp
	}
	snap.Analysis = p.session.Analyze(tasks, p.opts.Perspective, p.opts.Weather, p.settings(snap.Critical))

	p.mu.Lock()
	p.snap = snap
	p.mu.Unlock()

	if p.opts.Watcher != nil {
		go func(res conflict.Result) {
			if _, err := p.opts.Watcher.Observe(context.Background(), res); err != nil {
				log.Printf("planner: conflict alerts: %v", err)
			}
		}(snap.Analysis)
	}
	return snap
}

func (p *Planner) reanalyze() {
	snap := p.recompute()
	p.publish(p.update(UpdateAnalysis, "", snap))
}

func (p *Planner) changed(kind, id string) {
	snap := p.recompute()
	p.publish(p.update(kind, id, snap))
}

func (p *Planner) reportError(id string, err error) {
	log.Printf("planner: %v", err)
	snap := p.Snapshot()
	u := p.update(UpdateError, id, snap)
	u.Error = err.Error()
	p.publish(u)
}

func (p *Planner) update(kind, id string, snap Snapshot) Update {
	u := Update{
		Type:   kind,
		TaskID: id,
		Score:  snap.Analysis.Score,
		Counts: make(map[string]int),
	}
	for sev, n := range snap.Analysis.Counts() {
		u.Counts[string(sev)] = n
	}
	if snap.Critical != nil {
		u.Critical = snap.Critical.Critical
	}
	if id != "" && kind != UpdateDeleted {
		for i := range snap.Tasks {
			if snap.Tasks[i].ID == id {
				t := snap.Tasks[i]
				u.Task = &t
				break
			}
		}
	}
	return u
}

func (p *Planner) publish(u Update) {
	p.mu.RLock()
	subs := make([]func(Update), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.RUnlock()
	for _, fn := range subs {
		fn(u)
	}
}
