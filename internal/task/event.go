package task

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zulandar/foreman/internal/models"
	"github.com/zulandar/foreman/internal/schedule"
)

// Extra keys lifted into task fields. Anything else stays in Task.Extra.
const (
	extraParent      = "parent_id"
	extraPriority    = "priority"
	extraMilestone   = "milestone"
	extraDescription = "description"
)

// FromEvent converts a calendar-style event into a task. Defective fields
// fall back to defaults rather than failing the record: a missing id gets a
// fresh one, missing dates collapse onto each other, and progress and
// status are derived from now. Cancelled events become soft-deleted tasks.
func FromEvent(ev models.Event, now time.Time) models.Task {
	t := models.Task{
		ID:        ev.ID,
		ProjectID: ev.ProjectID,
		Title:     strings.TrimSpace(ev.Title),
		StartDate: ev.Start,
		EndDate:   ev.End,
		Trade:     ev.Trade,
		Location:  ev.Location,
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Title == "" {
		t.Title = "(untitled)"
	}
	if t.StartDate.IsZero() && t.EndDate.IsZero() {
		t.StartDate = now
	}

	extra := make(map[string]string, len(ev.Extra))
	for k, v := range ev.Extra {
		switch k {
		case extraParent:
			if v != "" {
				p := v
				t.ParentID = &p
			}
		case extraPriority:
			t.Priority = v
		case extraMilestone:
			t.Milestone, _ = strconv.ParseBool(v)
		case extraDescription:
			t.Description = v
		default:
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		if b, err := json.Marshal(extra); err == nil {
			t.Extra = string(b)
		}
	}

	seen := make(map[string]bool, len(ev.DependsOn))
	for _, d := range ev.DependsOn {
		if d == "" || d == t.ID || seen[d] {
			continue
		}
		seen[d] = true
		t.Deps = append(t.Deps, models.TaskDep{TaskID: t.ID, DependsOn: d, Type: models.DepFinishToStart})
	}
	for _, r := range ev.Resources {
		if r != "" {
			t.Resources = append(t.Resources, models.Assignment{TaskID: t.ID, ResourceID: r, Units: 1})
		}
	}

	schedule.Normalize(&t)
	t.Progress, t.Status = schedule.Derive(now, t.StartDate, t.EndDate)
	if ev.Cancelled {
		at := now
		t.DeletedAt = &at
	}
	return t
}

// FromEvents converts a batch of events, dropping links to events that are
// not in the batch.
func FromEvents(evs []models.Event, now time.Time) []models.Task {
	tasks := make([]models.Task, 0, len(evs))
	for _, ev := range evs {
		tasks = append(tasks, FromEvent(ev, now))
	}
	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.ID] = true
	}
	for i := range tasks {
		deps := tasks[i].Deps[:0]
		for _, d := range tasks[i].Deps {
			if known[d.DependsOn] {
				deps = append(deps, d)
			}
		}
		if len(deps) == 0 {
			deps = nil
		}
		tasks[i].Deps = deps
	}
	return tasks
}
