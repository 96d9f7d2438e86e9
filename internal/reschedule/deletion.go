package reschedule

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/zulandar/foreman/internal/models"
)

// DefaultDeletionGrace is how long a deletion can be undone.
const DefaultDeletionGrace = 5 * time.Second

// ErrRegistryClosed is returned by Schedule after Close.
var ErrRegistryClosed = errors.New("reschedule: deletion registry closed")

type pendingDeletion struct {
	task  models.Task
	timer *time.Timer
}

// DeletionRegistry hides deleted tasks immediately and commits the
// deletion once the grace window passes without an Undo.
type DeletionRegistry struct {
	board   *Board
	persist Persister
	grace   time.Duration
	errs    ErrorReporter
	// OnChange is called after the board changes for id.
	OnChange func(id string)

	mu      sync.Mutex
	pending map[string]*pendingDeletion
	closed  bool
	ctx     context.Context
}

// NewDeletionRegistry creates a registry removing tasks from board.
func NewDeletionRegistry(ctx context.Context, board *Board, p Persister, grace time.Duration, errs ErrorReporter) *DeletionRegistry {
	if grace <= 0 {
		grace = DefaultDeletionGrace
	}
	return &DeletionRegistry{
		board:   board,
		persist: p,
		grace:   grace,
		errs:    errs,
		pending: make(map[string]*pendingDeletion),
		ctx:     context.WithoutCancel(ctx),
	}
}

// Schedule removes id from the board and deletes it for good after the
// grace window. Scheduling a task already pending is a no-op.
func (r *DeletionRegistry) Schedule(id string) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	if _, ok := r.pending[id]; ok {
		r.mu.Unlock()
		return nil
	}
	t, ok := r.board.Remove(id)
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	r.pending[id] = &pendingDeletion{
		task:  t,
		timer: time.AfterFunc(r.grace, func() { r.expire(id) }),
	}
	r.mu.Unlock()
	r.changed(id)
	return nil
}

// Undo cancels a pending deletion and restores the task. It reports false
// when the grace window has already passed.
func (r *DeletionRegistry) Undo(id string) bool {
	r.mu.Lock()
	p, ok := r.pending[id]
	if ok {
		delete(r.pending, id)
		p.timer.Stop()
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	r.board.Put(p.task)
	r.changed(id)
	return true
}

// Pending returns the ids awaiting deletion, sorted.
func (r *DeletionRegistry) Pending() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.pending))
	for id := range r.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *DeletionRegistry) expire(id string) {
	r.mu.Lock()
	p, ok := r.pending[id]
	delete(r.pending, id)
	r.mu.Unlock()
	if ok {
		r.commit(id, p)
	}
}

func (r *DeletionRegistry) commit(id string, p *pendingDeletion) {
	if err := r.persist.Delete(r.ctx, id); err != nil {
		r.board.Put(p.task)
		r.changed(id)
		err = fmt.Errorf("reschedule: delete task %s: %w", id, err)
		if r.errs != nil {
			r.errs.ReportError(id, err)
		} else {
			log.Printf("%v", err)
		}
	}
}

// Flush commits every pending deletion now.
func (r *DeletionRegistry) Flush() {
	r.mu.Lock()
	pending := r.pending
	r.pending = make(map[string]*pendingDeletion)
	r.mu.Unlock()

	ids := make([]string, 0, len(pending))
	for id, p := range pending {
		p.timer.Stop()
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		r.commit(id, pending[id])
	}
}

// Close commits pending deletions and rejects further scheduling.
func (r *DeletionRegistry) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.Flush()
}

func (r *DeletionRegistry) changed(id string) {
	if r.OnChange != nil {
		r.OnChange(id)
	}
}
