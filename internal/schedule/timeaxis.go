package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/foreman/internal/models"
)

// Timescale is the granularity of the time axis.
type Timescale string

// Supported timescales.
const (
	ScaleHour    Timescale = "hour"
	ScaleDay     Timescale = "day"
	ScaleWeek    Timescale = "week"
	ScaleMonth   Timescale = "month"
	ScaleQuarter Timescale = "quarter"
	ScaleYear    Timescale = "year"
)

// MaxHeaders caps the number of buckets a single axis may contain.
const MaxHeaders = 200

// ParseTimescale validates a timescale name. The empty string means day.
func ParseTimescale(s string) (Timescale, error) {
	switch ts := Timescale(strings.ToLower(strings.TrimSpace(s))); ts {
	case "":
		return ScaleDay, nil
	case ScaleHour, ScaleDay, ScaleWeek, ScaleMonth, ScaleQuarter, ScaleYear:
		return ts, nil
	}
	return "", fmt.Errorf("schedule: unknown timescale %q", s)
}

// Range is a declared project window. A zero bound is ignored.
type Range struct {
	Start time.Time
	End   time.Time
}

// Span returns the earliest start and latest end across tasks, widened by
// the project range when it reaches further. ok is false when nothing has a date.
func Span(tasks []models.Task, project Range) (start, end time.Time, ok bool) {
	widen := func(s, e time.Time) {
		if s.IsZero() && e.IsZero() {
			return
		}
		if s.IsZero() {
			s = e
		}
		if e.IsZero() || e.Before(s) {
			e = s
		}
		if !ok || s.Before(start) {
			start = s
		}
		if !ok || e.After(end) {
			end = e
		}
		ok = true
	}
	for i := range tasks {
		widen(tasks[i].StartDate, tasks[i].EndDate)
	}
	widen(project.Start, project.End)
	return start, end, ok
}

// GenerateTimeHeaders returns the bucket start times covering every task and
// the project range, padded by a scale-dependent buffer. Output stops at
// MaxHeaders entries rather than failing on degenerate ranges.
func GenerateTimeHeaders(tasks []models.Task, project Range, scale Timescale) []time.Time {
	start, end, ok := Span(tasks, project)
	if !ok {
		return nil
	}
	start, end = pad(Day(start), Day(end).Add(24*time.Hour-time.Nanosecond), scale)

	cur := align(start, scale)
	headers := make([]time.Time, 0, 32)
	for !cur.After(end) && len(headers) < MaxHeaders {
		headers = append(headers, cur)
		cur = Step(cur, scale)
	}
	return headers
}

// pad widens a range by the buffer for the scale.
func pad(start, end time.Time, scale Timescale) (time.Time, time.Time) {
	switch scale {
	case ScaleHour:
		return start.AddDate(0, 0, -1), end.AddDate(0, 0, 1)
	case ScaleWeek:
		return start.AddDate(0, 0, -14), end.AddDate(0, 0, 14)
	case ScaleMonth:
		return start.AddDate(0, -1, 0), end.AddDate(0, 1, 0)
	case ScaleQuarter:
		return start.AddDate(0, -3, 0), end.AddDate(0, 3, 0)
	case ScaleYear:
		return start.AddDate(-1, 0, 0), end.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 0, -7), end.AddDate(0, 0, 7)
	}
}

// align moves t back to the start of its bucket.
func align(t time.Time, scale Timescale) time.Time {
	y, m, d := t.Date()
	switch scale {
	case ScaleHour:
		return t.Truncate(time.Hour)
	case ScaleWeek:
		offset := (int(t.Weekday()) + 6) % 7 // Monday-based
		return time.Date(y, m, d-offset, 0, 0, 0, 0, time.UTC)
	case ScaleMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	case ScaleQuarter:
		q := (int(m) - 1) / 3
		return time.Date(y, time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC)
	case ScaleYear:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
}

// Step advances t by one bucket.
func Step(t time.Time, scale Timescale) time.Time {
	switch scale {
	case ScaleHour:
		return t.Add(time.Hour)
	case ScaleWeek:
		return t.AddDate(0, 0, 7)
	case ScaleMonth:
		return t.AddDate(0, 1, 0)
	case ScaleQuarter:
		return t.AddDate(0, 3, 0)
	case ScaleYear:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// HeaderLabel formats a bucket start for display.
func HeaderLabel(t time.Time, scale Timescale) string {
	switch scale {
	case ScaleHour:
		return t.Format("15:04")
	case ScaleWeek:
		_, w := t.ISOWeek()
		return fmt.Sprintf("W%02d", w)
	case ScaleMonth:
		return t.Format("Jan 2006")
	case ScaleQuarter:
		return fmt.Sprintf("Q%d %d", (int(t.Month())-1)/3+1, t.Year())
	case ScaleYear:
		return t.Format("2006")
	default:
		return t.Format("Jan 02")
	}
}
