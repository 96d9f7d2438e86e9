// Package export writes schedules in the Microsoft Project XML (MSPDI)
// interchange format.
package export

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/zulandar/foreman/internal/models"
	"github.com/zulandar/foreman/internal/schedule"
)

// Working day used for timestamps and durations.
const (
	HoursPerDay  = 8
	dayStartHour = 8
	dayEndHour   = 17
	// lagUnitsPerDay converts days to MSPDI lag units (tenths of a minute).
	lagUnitsPerDay = HoursPerDay * 60 * 10
)

const timeLayout = "2006-01-02T15:04:05"

// MSPDI link types.
const (
	linkFF = 0
	linkFS = 1
	linkSF = 2
	linkSS = 3
)

type projectXML struct {
	XMLName     xml.Name  `xml:"Project"`
	Xmlns       string    `xml:"xmlns,attr"`
	Name        string    `xml:"Name"`
	Title       string    `xml:"Title,omitempty"`
	StartDate   string    `xml:"StartDate,omitempty"`
	FinishDate  string    `xml:"FinishDate,omitempty"`
	MinutesDay  int       `xml:"MinutesPerDay"`
	CreationDay string    `xml:"CreationDate"`
	Tasks       []taskXML `xml:"Tasks>Task"`
}

type taskXML struct {
	UID             int               `xml:"UID"`
	ID              int               `xml:"ID"`
	Name            string            `xml:"Name"`
	WBS             string            `xml:"WBS,omitempty"`
	OutlineLevel    int               `xml:"OutlineLevel"`
	Start           string            `xml:"Start"`
	Finish          string            `xml:"Finish"`
	Duration        string            `xml:"Duration"`
	Milestone       int               `xml:"Milestone"`
	Critical        int               `xml:"Critical"`
	PercentComplete int               `xml:"PercentComplete"`
	Priority        int               `xml:"Priority"`
	Notes           string            `xml:"Notes,omitempty"`
	Predecessors    []predecessorLink `xml:"PredecessorLink"`
}

type predecessorLink struct {
	PredecessorUID int `xml:"PredecessorUID"`
	Type           int `xml:"Type"`
	LinkLag        int `xml:"LinkLag"`
	LagFormat      int `xml:"LagFormat"`
}

// Priority maps a task priority onto the MSPDI 0–1000 scale.
func Priority(p string) int {
	switch p {
	case models.PriorityCritical:
		return 1000
	case models.PriorityHigh:
		return 750
	}
	return 500
}

// Duration renders a day count as an ISO-8601 duration of working hours.
func Duration(days int) string {
	if days < 0 {
		days = 0
	}
	return fmt.Sprintf("PT%dH0M0S", days*HoursPerDay)
}

func linkType(t string) int {
	switch t {
	case models.DepFinishToFinish:
		return linkFF
	case models.DepStartToFinish:
		return linkSF
	case models.DepStartToStart:
		return linkSS
	}
	return linkFS
}

// WriteXML writes the project and its live tasks as an MSPDI document.
// Tasks are numbered in hierarchy order starting from UID 1.
func WriteXML(w io.Writer, p models.Project, tasks []models.Task, now time.Time) error {
	live := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if !t.Deleted() {
			live = append(live, t)
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		if !live[i].StartDate.Equal(live[j].StartDate) {
			return live[i].StartDate.Before(live[j].StartDate)
		}
		return live[i].ID < live[j].ID
	})

	tree := schedule.BuildHierarchy(live)
	tree.AssignWBS()
	nodes := tree.Flatten()

	uids := make(map[string]int, len(nodes))
	for i, n := range nodes {
		uids[n.Task.ID] = i + 1
	}

	doc := projectXML{
		Xmlns:       "http://schemas.microsoft.com/project",
		Name:        p.Name,
		Title:       p.Name,
		MinutesDay:  HoursPerDay * 60,
		CreationDay: stamp(now, now.Hour()),
	}
	if start, end, ok := schedule.Span(live, projectRange(p)); ok {
		doc.StartDate = stamp(start, dayStartHour)
		doc.FinishDate = stamp(end, dayEndHour)
	}

	for i, n := range nodes {
		t := n.Task
		days := t.Duration
		if days <= 0 {
			days = schedule.DurationDays(t.StartDate, t.EndDate)
		}
		if t.Milestone {
			days = 0
		}
		tx := taskXML{
			UID:             i + 1,
			ID:              i + 1,
			Name:            t.Title,
			WBS:             t.WBS,
			OutlineLevel:    n.Level + 1,
			Start:           stamp(t.StartDate, dayStartHour),
			Finish:          stamp(t.EndDate, dayEndHour),
			Duration:        Duration(days),
			Milestone:       boolInt(t.Milestone),
			Critical:        boolInt(t.CriticalPath),
			PercentComplete: t.Progress,
			Priority:        Priority(t.Priority),
			Notes:           t.Description,
		}
		for _, d := range t.Deps {
			uid, ok := uids[d.DependsOn]
			if !ok {
				continue
			}
			tx.Predecessors = append(tx.Predecessors, predecessorLink{
				PredecessorUID: uid,
				Type:           linkType(d.Type),
				LinkLag:        d.Lag * lagUnitsPerDay,
				LagFormat:      7, // days
			})
		}
		doc.Tasks = append(doc.Tasks, tx)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("export: encode project %s: %w", p.ID, err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("export: write trailer: %w", err)
	}
	return nil
}

func projectRange(p models.Project) schedule.Range {
	var r schedule.Range
	if p.StartDate != nil {
		r.Start = *p.StartDate
	}
	if p.EndDate != nil {
		r.End = *p.EndDate
	}
	return r
}

func stamp(t time.Time, hour int) string {
	d := schedule.Day(t)
	return d.Add(time.Duration(hour) * time.Hour).Format(timeLayout)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
