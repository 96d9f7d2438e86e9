// Package schedule derives the display-independent shape of a project:
// the task tree, the time axis and each task's position on it.
package schedule

import (
	"math"
	"time"

	"github.com/zulandar/foreman/internal/models"
)

// Day truncates t to a calendar date at UTC midnight. All day arithmetic in
// the scheduler happens on these values so DST shifts never produce
// fractional days.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(math.Round(Day(b).Sub(Day(a)).Hours() / 24))
}

// AddDays returns the date n calendar days after t.
func AddDays(t time.Time, n int) time.Time {
	return Day(t).AddDate(0, 0, n)
}

// DurationDays returns the inclusive length of the range in days.
func DurationDays(start, end time.Time) int {
	return DaysBetween(start, end) + 1
}

// Derive computes progress and status from the current date and a task's
// date range. Day counts are inclusive, so a task running Jun 1–5 is 60%
// done on Jun 3.
func Derive(now, start, end time.Time) (int, string) {
	today, s, e := Day(now), Day(start), Day(end)
	switch {
	case today.Before(s):
		return 0, models.StatusNotStarted
	case today.After(e):
		return 100, models.StatusCompleted
	}
	elapsed := DaysBetween(s, today) + 1
	total := DaysBetween(s, e) + 1
	return int(math.Round(100 * float64(elapsed) / float64(total))), models.StatusInProgress
}

// Refresh recomputes a task's derived progress and status. Tasks that were
// explicitly completed or put on hold keep their state.
func Refresh(t *models.Task, now time.Time) {
	if t.Status == models.StatusCompleted || t.Status == models.StatusOnHold {
		return
	}
	t.Progress, t.Status = Derive(now, t.StartDate, t.EndDate)
}

// Normalize repairs a task record in place: dates are truncated to days, an
// end before the start collapses to the start, the duration is recomputed
// and unknown enum values fall back to defaults. Records are never rejected.
func Normalize(t *models.Task) {
	if t.StartDate.IsZero() && !t.EndDate.IsZero() {
		t.StartDate = t.EndDate
	}
	if t.EndDate.IsZero() {
		t.EndDate = t.StartDate
	}
	t.StartDate, t.EndDate = Day(t.StartDate), Day(t.EndDate)
	if t.EndDate.Before(t.StartDate) {
		t.EndDate = t.StartDate
	}
	t.Duration = DurationDays(t.StartDate, t.EndDate)

	if !ValidStatus(t.Status) {
		t.Status = models.StatusNotStarted
	}
	if !ValidPriority(t.Priority) {
		t.Priority = models.PriorityMedium
	}
	if t.Progress < 0 {
		t.Progress = 0
	}
	if t.Progress > 100 {
		t.Progress = 100
	}
	if t.ParentID != nil && (*t.ParentID == "" || *t.ParentID == t.ID) {
		t.ParentID = nil
	}
	for i := range t.Deps {
		if !ValidDepType(t.Deps[i].Type) {
			t.Deps[i].Type = models.DepFinishToStart
		}
	}
}

// ValidStatus reports whether s is a known task status.
func ValidStatus(s string) bool {
	switch s {
	case models.StatusNotStarted, models.StatusInProgress, models.StatusCompleted, models.StatusOnHold:
		return true
	}
	return false
}

// ValidPriority reports whether p is a known task priority.
func ValidPriority(p string) bool {
	switch p {
	case models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityCritical:
		return true
	}
	return false
}

// ValidDepType reports whether d is a known dependency relationship.
func ValidDepType(d string) bool {
	switch d {
	case models.DepFinishToStart, models.DepStartToStart, models.DepFinishToFinish, models.DepStartToFinish:
		return true
	}
	return false
}
