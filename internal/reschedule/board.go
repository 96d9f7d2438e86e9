// Package reschedule applies drag-and-drop schedule changes optimistically
// and reconciles them with persistent storage.
package reschedule

import (
	"sort"
	"sync"

	"github.com/zulandar/foreman/internal/models"
)

// Board is the local, in-memory view of a project's tasks.
type Board struct {
	mu       sync.RWMutex
	tasks    map[string]models.Task
	updating map[string]bool
}

// NewBoard creates a board holding tasks.
func NewBoard(tasks []models.Task) *Board {
	b := &Board{updating: make(map[string]bool)}
	b.Replace(tasks)
	return b
}

// Replace swaps the board contents, as after a refetch. Updating markers
// for tasks that no longer exist are dropped.
func (b *Board) Replace(tasks []models.Task) {
	m := make(map[string]models.Task, len(tasks))
	for _, t := range tasks {
		m[t.ID] = t
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tasks = m
	for id := range b.updating {
		if _, ok := m[id]; !ok {
			delete(b.updating, id)
		}
	}
}

// Get returns a copy of the task with id.
func (b *Board) Get(id string) (models.Task, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.tasks[id]
	return t, ok
}

// Put inserts or replaces a task.
func (b *Board) Put(t models.Task) {
	b.mu.Lock()
	b.tasks[t.ID] = t
	b.mu.Unlock()
}

// PutIfPresent replaces a task only if it is still on the board.
func (b *Board) PutIfPresent(t models.Task) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.tasks[t.ID]; !ok {
		return false
	}
	b.tasks[t.ID] = t
	return true
}

// Remove deletes a task and returns what was removed.
func (b *Board) Remove(id string) (models.Task, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tasks[id]
	delete(b.tasks, id)
	delete(b.updating, id)
	return t, ok
}

// Len returns the number of tasks on the board.
func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.tasks)
}

// Tasks returns every task ordered by id.
func (b *Board) Tasks() []models.Task {
	b.mu.RLock()
	out := make([]models.Task, 0, len(b.tasks))
	for _, t := range b.tasks {
		out = append(out, t)
	}
	b.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Column returns the tasks with status ordered by rank, then id.
func (b *Board) Column(status string) []models.Task {
	b.mu.RLock()
	var out []models.Task
	for _, t := range b.tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	b.mu.RUnlock()
	sortByRank(out)
	return out
}

// SetUpdating marks or clears the in-flight persistence marker for id.
func (b *Board) SetUpdating(id string, on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if on {
		b.updating[id] = true
	} else {
		delete(b.updating, id)
	}
}

// Updating reports whether a persistence request for id is outstanding.
func (b *Board) Updating(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updating[id]
}

func sortByRank(ts []models.Task) {
	sort.SliceStable(ts, func(i, j int) bool {
		if ts[i].Rank != ts[j].Rank {
			return ts[i].Rank < ts[j].Rank
		}
		return ts[i].ID < ts[j].ID
	})
}
