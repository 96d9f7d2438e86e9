package schedule

import (
	"time"

	"github.com/zulandar/foreman/internal/models"
)

// MinWidth keeps very short tasks visible on long axes.
const MinWidth = 0.5

// Position is a task's horizontal placement as percentages of the axis.
type Position struct {
	Left  float64 `json:"left"`
	Width float64 `json:"width"`
}

// CalculateTaskPosition places a task against the axis spanned by headers.
// Left is clamped to [0, 99]; width is at least MinWidth and never carries
// the bar past 100%.
func CalculateTaskPosition(t *models.Task, headers []time.Time) Position {
	if len(headers) == 0 {
		return Position{Width: MinWidth}
	}
	first := headers[0]
	last := headers[len(headers)-1]
	total := last.Sub(first)
	if total <= 0 {
		total = 24 * time.Hour
	}

	start := Day(t.StartDate)
	days := t.Duration
	if days <= 0 {
		days = DurationDays(t.StartDate, t.EndDate)
	}
	if t.Milestone {
		days = 0
	}

	left := 100 * float64(start.Sub(first)) / float64(total)
	left = clamp(left, 0, 99)

	width := 100 * float64(time.Duration(days)*24*time.Hour) / float64(total)
	if width < MinWidth {
		width = MinWidth
	}
	if left+width > 100 {
		width = 100 - left
	}
	return Position{Left: left, Width: width}
}

// Positions maps every task ID to its placement.
func Positions(tasks []models.Task, headers []time.Time) map[string]Position {
	out := make(map[string]Position, len(tasks))
	for i := range tasks {
		out[tasks[i].ID] = CalculateTaskPosition(&tasks[i], headers)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
