// Package notify delivers schedule alerts to chat and issue trackers.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/zulandar/foreman/internal/conflict"
)

// Severity colors shared by the chat adapters.
var severityColors = map[conflict.Severity]string{
	conflict.SeverityCritical: "#d00000",
	conflict.SeverityHigh:     "#e8590c",
	conflict.SeverityMedium:   "#f2c744",
	conflict.SeverityLow:      "#439fe0",
}

// defaultColor is used for alerts without a severity, such as digests.
const defaultColor = "#2eb886"

// Field is a labelled value rendered alongside an alert body.
type Field struct {
	Name  string
	Value string
	Short bool
}

// Alert is a platform-neutral notification.
type Alert struct {
	Title    string
	Body     string
	Severity conflict.Severity
	Fields   []Field
	// Key deduplicates alerts about the same conflict across deliveries.
	Key string
}

// Color returns the hex color for the alert's severity.
func (a Alert) Color() string {
	if c, ok := severityColors[a.Severity]; ok {
		return c
	}
	return defaultColor
}

// Notifier delivers an alert to one destination.
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// Multi fans an alert out to every notifier. All notifiers are attempted;
// failures are joined.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, a Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ConflictAlert renders a conflict for delivery.
func ConflictAlert(project string, c conflict.Conflict) Alert {
	title := fmt.Sprintf("[%s] %s: %s", project, c.Rule.ID, c.Rule.Name)
	tasks := c.TitleA
	if c.TaskB != "" {
		tasks = c.TitleA + " / " + c.TitleB
	}
	a := Alert{
		Title:    title,
		Body:     c.Rule.Description,
		Severity: c.Severity,
		Key:      c.Key().String(),
		Fields: []Field{
			{Name: "Tasks", Value: tasks},
			{Name: "Severity", Value: string(c.Severity), Short: true},
			{Name: "Type", Value: string(c.Rule.Type), Short: true},
		},
	}
	if c.Suggestion != "" {
		a.Fields = append(a.Fields, Field{Name: "Suggestion", Value: c.Suggestion})
	}
	return a
}

// Watcher alerts on conflicts the first time they appear in an analysis at
// or above MinSeverity. A conflict that disappears and later returns is
// alerted again.
type Watcher struct {
	Notifier    Notifier
	Project     string
	MinSeverity conflict.Severity

	mu   sync.Mutex
	seen map[string]bool
}

// Observe compares result against the previous observation and sends an
// alert per new conflict. It returns the number of alerts attempted.
func (w *Watcher) Observe(ctx context.Context, result conflict.Result) (int, error) {
	floor := w.MinSeverity
	if floor == "" {
		floor = conflict.SeverityHigh
	}

	w.mu.Lock()
	current := make(map[string]bool, len(result.Conflicts))
	var fresh []conflict.Conflict
	for _, c := range result.Conflicts {
		if c.Severity.Level() < floor.Level() {
			continue
		}
		k := c.Key().String()
		current[k] = true
		if !w.seen[k] {
			fresh = append(fresh, c)
		}
	}
	w.seen = current
	w.mu.Unlock()

	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].Severity.Level() > fresh[j].Severity.Level()
	})

	var errs []error
	for _, c := range fresh {
		if err := w.Notifier.Notify(ctx, ConflictAlert(w.Project, c)); err != nil {
			errs = append(errs, err)
		}
	}
	return len(fresh), errors.Join(errs...)
}
