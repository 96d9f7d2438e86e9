package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zulandar/foreman/internal/conflict"
	"github.com/zulandar/foreman/internal/cpm"
	"github.com/zulandar/foreman/internal/models"
	"github.com/zulandar/foreman/internal/schedule"
)

// lookahead is how far ahead the digest lists upcoming starts.
const lookahead = 7

// maxListed caps the task lists in a digest body.
const maxListed = 5

// Report holds the computed metrics for a schedule digest.
type Report struct {
	Date          time.Time
	Total         int
	ByStatus      map[string]int
	Overdue       []models.Task
	StartingSoon  []models.Task
	Score         int
	Conflicts     map[conflict.Severity]int
	CriticalCount int
	Finish        time.Time
}

// BuildReport summarizes the live tasks of a schedule as of now. It returns
// nil when there is nothing to report. cp may be nil when the critical path
// could not be computed.
func BuildReport(tasks []models.Task, result conflict.Result, cp *cpm.Result, now time.Time) *Report {
	today := schedule.Day(now)
	horizon := schedule.AddDays(today, lookahead)
	r := &Report{
		Date:      today,
		ByStatus:  make(map[string]int),
		Score:     result.Score,
		Conflicts: result.Counts(),
	}
	for _, t := range tasks {
		if t.Deleted() {
			continue
		}
		r.Total++
		r.ByStatus[t.Status]++
		end := schedule.Day(t.EndDate)
		start := schedule.Day(t.StartDate)
		switch {
		case end.Before(today) && t.Status != models.StatusCompleted:
			r.Overdue = append(r.Overdue, t)
		case t.Status == models.StatusNotStarted && !start.Before(today) && start.Before(horizon):
			r.StartingSoon = append(r.StartingSoon, t)
		}
	}
	if r.Total == 0 {
		return nil
	}
	if cp != nil {
		r.CriticalCount = len(cp.Critical)
		r.Finish = cp.ProjectFinish()
	}
	sort.SliceStable(r.Overdue, func(i, j int) bool { return r.Overdue[i].EndDate.Before(r.Overdue[j].EndDate) })
	sort.SliceStable(r.StartingSoon, func(i, j int) bool { return r.StartingSoon[i].StartDate.Before(r.StartingSoon[j].StartDate) })
	return r
}

// FormatReport renders a report as an alert.
func FormatReport(project string, r *Report) Alert {
	var b strings.Builder
	fmt.Fprintf(&b, "%d tasks: %d not started, %d in progress, %d completed, %d on hold\n",
		r.Total,
		r.ByStatus[models.StatusNotStarted],
		r.ByStatus[models.StatusInProgress],
		r.ByStatus[models.StatusCompleted],
		r.ByStatus[models.StatusOnHold])
	writeTasks(&b, "Overdue", r.Overdue, func(t models.Task) string {
		return "due " + t.EndDate.Format("Jan 2")
	})
	writeTasks(&b, "Starting this week", r.StartingSoon, func(t models.Task) string {
		return "starts " + t.StartDate.Format("Jan 2")
	})

	a := Alert{
		Title: fmt.Sprintf("[%s] Schedule digest for %s", project, r.Date.Format("Mon Jan 2")),
		Body:  strings.TrimRight(b.String(), "\n"),
		Fields: []Field{
			{Name: "Health score", Value: fmt.Sprintf("%d/100", r.Score), Short: true},
			{Name: "Conflicts", Value: conflictSummary(r.Conflicts), Short: true},
		},
	}
	if !r.Finish.IsZero() {
		a.Fields = append(a.Fields, Field{
			Name:  "Critical path",
			Value: fmt.Sprintf("%d tasks, finish %s", r.CriticalCount, r.Finish.Format("Jan 2, 2006")),
		})
	}
	if r.Conflicts[conflict.SeverityCritical] > 0 {
		a.Severity = conflict.SeverityCritical
	}
	return a
}

func writeTasks(b *strings.Builder, heading string, tasks []models.Task, detail func(models.Task) string) {
	if len(tasks) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s (%d):\n", heading, len(tasks))
	for i, t := range tasks {
		if i == maxListed {
			fmt.Fprintf(b, "  ...and %d more\n", len(tasks)-maxListed)
			break
		}
		fmt.Fprintf(b, "  %s %s (%s)\n", t.ID, t.Title, detail(t))
	}
}

func conflictSummary(counts map[conflict.Severity]int) string {
	var parts []string
	for _, s := range []conflict.Severity{
		conflict.SeverityCritical, conflict.SeverityHigh, conflict.SeverityMedium, conflict.SeverityLow,
	} {
		if n := counts[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, s))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}
