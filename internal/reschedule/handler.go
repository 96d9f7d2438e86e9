package reschedule

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/zulandar/foreman/internal/models"
	"github.com/zulandar/foreman/internal/schedule"
)

// Defaults for Options.
const (
	DefaultDebounce           = 300 * time.Millisecond
	DefaultActivationDistance = 8.0
)

// ErrUnknownTask is returned for operations on a task that is not on the board.
var ErrUnknownTask = errors.New("reschedule: unknown task")

// Patch is a partial task update. Nil fields are left unchanged.
type Patch struct {
	Start    *time.Time `json:"start_date,omitempty"`
	End      *time.Time `json:"end_date,omitempty"`
	Status   *string    `json:"status,omitempty"`
	Progress *int       `json:"progress,omitempty"`
	Rank     *float64   `json:"rank,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Start == nil && p.End == nil && p.Status == nil && p.Progress == nil && p.Rank == nil
}

// Apply copies the set fields onto t.
func (p Patch) Apply(t *models.Task) {
	if p.Start != nil {
		t.StartDate = *p.Start
	}
	if p.End != nil {
		t.EndDate = *p.End
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Progress != nil {
		t.Progress = *p.Progress
	}
	if p.Rank != nil {
		t.Rank = *p.Rank
	}
	if p.Start != nil || p.End != nil {
		t.Duration = schedule.DurationDays(t.StartDate, t.EndDate)
	}
}

// schedulePatch captures every field a drop can change.
func schedulePatch(t models.Task) Patch {
	start, end, status, progress, rank := t.StartDate, t.EndDate, t.Status, t.Progress, t.Rank
	return Patch{Start: &start, End: &end, Status: &status, Progress: &progress, Rank: &rank}
}

func rankPatch(t models.Task) Patch {
	rank := t.Rank
	return Patch{Rank: &rank}
}

// Persister stores task changes.
type Persister interface {
	Update(ctx context.Context, id string, p Patch) error
	Delete(ctx context.Context, id string) error
}

// ErrorReporter surfaces failures to the user.
type ErrorReporter interface {
	ReportError(taskID string, err error)
}

// ErrorReporterFunc adapts a function to ErrorReporter.
type ErrorReporterFunc func(taskID string, err error)

// ReportError calls f.
func (f ErrorReporterFunc) ReportError(taskID string, err error) { f(taskID, err) }

// Options tunes a Handler.
type Options struct {
	Debounce           time.Duration
	ActivationDistance float64
	Now                func() time.Time
	Errors             ErrorReporter
	// OnChange is called after the board changes for id: optimistic apply,
	// confirmation, or rollback.
	OnChange func(id string)
}

// Handler turns pointer gestures into optimistic schedule changes.
type Handler struct {
	board    *Board
	persist  Persister
	opts     Options
	debounce *Debouncer

	mu       sync.Mutex
	gestures map[string]*gesture
	states   map[string]State
	seq      map[string]uint64
	// snapshots hold the last confirmed state of tasks with unconfirmed writes.
	snapshots map[string]models.Task
}

// NewHandler creates a handler updating board and writing through p.
func NewHandler(board *Board, p Persister, opts Options) *Handler {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.ActivationDistance <= 0 {
		opts.ActivationDistance = DefaultActivationDistance
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Handler{
		board:     board,
		persist:   p,
		opts:      opts,
		debounce:  NewDebouncer(opts.Debounce),
		gestures:  make(map[string]*gesture),
		states:    make(map[string]State),
		seq:       make(map[string]uint64),
		snapshots: make(map[string]models.Task),
	}
}

// Board returns the board the handler updates.
func (h *Handler) Board() *Board { return h.board }

// State returns the drag state of a task.
func (h *Handler) State(id string) State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.states[id]
}

// Begin records a pointer press on a task.
func (h *Handler) Begin(id string, origin Point) error {
	if _, ok := h.board.Get(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gestures[id] = &gesture{origin: origin}
	return nil
}

// Move reports pointer travel and returns the resulting state.
func (h *Handler) Move(id string, p Point) State {
	h.mu.Lock()
	defer h.mu.Unlock()
	g, ok := h.gestures[id]
	if !ok {
		return h.states[id]
	}
	s := g.move(p, h.opts.ActivationDistance)
	if s == Dragging {
		h.states[id] = Dragging
	}
	return s
}

// Cancel abandons a gesture without changing anything.
func (h *Handler) Cancel(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.endGesture(id)
}

func (h *Handler) endGesture(id string) {
	if g, ok := h.gestures[id]; ok {
		delete(h.gestures, id)
		if g.state == Dragging && h.states[id] == Dragging {
			delete(h.states, id)
		}
	}
}

// Drop releases a dragged task on target. It returns the optimistically
// updated task, or false when the gesture never became a drag or the
// target is unresolvable, in which case nothing changes.
func (h *Handler) Drop(ctx context.Context, id string, target DropTarget) (models.Task, bool) {
	h.mu.Lock()
	g, ok := h.gestures[id]
	dragging := ok && g.state == Dragging
	if !dragging || !target.resolvable() {
		h.endGesture(id)
		h.mu.Unlock()
		return models.Task{}, false
	}
	delete(h.gestures, id)
	h.mu.Unlock()

	t, err := h.commit(ctx, id, target)
	if err != nil {
		h.mu.Lock()
		delete(h.states, id)
		h.mu.Unlock()
		return models.Task{}, false
	}
	return t, true
}

// Reschedule moves a task without a pointer gesture, as from an API call.
func (h *Handler) Reschedule(ctx context.Context, id string, target DropTarget) (models.Task, error) {
	if !target.resolvable() {
		return models.Task{}, fmt.Errorf("reschedule: task %s: no target date or status", id)
	}
	return h.commit(ctx, id, target)
}

// commit resolves target, applies it to the board and queues persistence.
func (h *Handler) commit(ctx context.Context, id string, target DropTarget) (models.Task, error) {
	old, ok := h.board.Get(id)
	if !ok {
		return models.Task{}, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	next := h.resolve(old, target)

	h.mu.Lock()
	if _, pending := h.snapshots[id]; !pending {
		h.snapshots[id] = old
	}
	h.seq[id]++
	seq := h.seq[id]
	h.states[id] = Committing
	h.mu.Unlock()

	h.board.Put(next)
	h.board.SetUpdating(id, true)
	h.changed(id)

	bg := context.WithoutCancel(ctx)
	patch := schedulePatch(next)
	h.debounce.Do(id, func() { h.persistResult(bg, id, seq, patch) })

	if target.Status != "" || target.Prev != "" || target.Next != "" {
		h.renormalizeIfNeeded(bg, next)
	}
	return next, nil
}

// resolve computes the task's fields after a drop.
func (h *Handler) resolve(t models.Task, target DropTarget) models.Task {
	if target.Date != nil {
		days := schedule.DurationDays(t.StartDate, t.EndDate)
		t.StartDate = schedule.Day(*target.Date)
		t.EndDate = schedule.AddDays(t.StartDate, days-1)
		t.Duration = days
		t.Progress, t.Status = schedule.Derive(h.opts.Now(), t.StartDate, t.EndDate)
	}
	if target.Status != "" && target.Status != t.Status && schedule.ValidStatus(target.Status) {
		t.Status = target.Status
		switch t.Status {
		case models.StatusCompleted:
			t.Progress = 100
		case models.StatusNotStarted:
			t.Progress = 0
		}
	}
	if target.Status != "" || target.Prev != "" || target.Next != "" {
		t.Rank = h.rankFor(t, target)
	}
	return t
}

func (h *Handler) rankFor(t models.Task, target DropTarget) float64 {
	var prev, next *float64
	if p, ok := h.board.Get(target.Prev); ok && target.Prev != t.ID {
		r := p.Rank
		prev = &r
	}
	if n, ok := h.board.Get(target.Next); ok && target.Next != t.ID {
		r := n.Rank
		next = &r
	}
	if prev == nil && next == nil {
		prev = maxRank(without(h.board.Column(t.Status), t.ID))
	}
	return RankBetween(prev, next)
}

// renormalizeIfNeeded re-spaces t's column once neighbouring ranks get
// too close for further midpoint insertion.
func (h *Handler) renormalizeIfNeeded(ctx context.Context, t models.Task) {
	column := h.board.Column(t.Status)
	tight := false
	for i := 1; i < len(column); i++ {
		a, b := column[i-1].Rank, column[i].Rank
		if NeedsRenormalize(&a, &b) {
			tight = true
			break
		}
	}
	if !tight {
		return
	}
	for _, c := range Renormalize(column) {
		c := c
		h.board.Put(c)
		h.mu.Lock()
		seq := h.seq[c.ID]
		_, unconfirmed := h.snapshots[c.ID]
		h.mu.Unlock()
		if c.ID == t.ID || unconfirmed {
			patch := schedulePatch(c)
			h.debounce.Do(c.ID, func() { h.persistResult(ctx, c.ID, seq, patch) })
		} else {
			patch := rankPatch(c)
			h.debounce.Do(c.ID, func() {
				if err := h.persist.Update(ctx, c.ID, patch); err != nil {
					log.Printf("reschedule: renormalize rank for %s: %v", c.ID, err)
				}
			})
		}
		if c.ID != t.ID {
			h.changed(c.ID)
		}
	}
}

// persistResult writes a drop and reconciles the outcome. The newest
// request decides the final state; a superseded request that succeeded
// still moves the rollback point forward to what it stored.
func (h *Handler) persistResult(ctx context.Context, id string, seq uint64, p Patch) {
	err := h.persist.Update(ctx, id, p)

	h.mu.Lock()
	if h.seq[id] != seq {
		if snapshot, ok := h.snapshots[id]; ok && err == nil {
			p.Apply(&snapshot)
			h.snapshots[id] = snapshot
		}
		h.mu.Unlock()
		return
	}
	snapshot, hasSnapshot := h.snapshots[id]
	delete(h.snapshots, id)
	if err == nil {
		delete(h.states, id)
		h.mu.Unlock()
		h.board.SetUpdating(id, false)
		h.changed(id)
		return
	}
	h.states[id] = RollingBack
	h.mu.Unlock()

	// A task deleted while its write was pending stays off the board.
	if hasSnapshot {
		h.board.PutIfPresent(snapshot)
	}
	h.board.SetUpdating(id, false)
	h.changed(id)

	h.mu.Lock()
	if h.seq[id] == seq {
		delete(h.states, id)
	}
	h.mu.Unlock()

	err = fmt.Errorf("reschedule: save task %s: %w", id, err)
	if h.opts.Errors != nil {
		h.opts.Errors.ReportError(id, err)
	} else {
		log.Printf("%v", err)
	}
}

func (h *Handler) changed(id string) {
	if h.opts.OnChange != nil {
		h.opts.OnChange(id)
	}
}

// Flush persists every queued change now.
func (h *Handler) Flush() {
	h.debounce.Flush()
}

// Close flushes queued changes and stops accepting new ones.
func (h *Handler) Close() {
	h.debounce.Flush()
	h.debounce.Stop()
}

func without(ts []models.Task, id string) []models.Task {
	out := ts[:0:0]
	for _, t := range ts {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}
