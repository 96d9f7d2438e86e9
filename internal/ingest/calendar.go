// Package ingest imports schedule events from Google Calendar.
package ingest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/zulandar/foreman/internal/models"
)

// Private extended properties understood on calendar events.
const (
	PropTaskID    = "task_id"
	PropTrade     = "trade"
	PropLocation  = "location"
	PropDependsOn = "depends_on"
	PropResources = "resources"
)

// EventLister lists the events of one calendar in a time window.
type EventLister interface {
	ListEvents(ctx context.Context, calendarID string, from, to time.Time) ([]*calendar.Event, error)
}

// serviceLister pages through the Calendar API.
type serviceLister struct {
	srv *calendar.Service
}

func (l *serviceLister) ListEvents(ctx context.Context, calendarID string, from, to time.Time) ([]*calendar.Event, error) {
	var out []*calendar.Event
	call := l.srv.Events.List(calendarID).
		SingleEvents(true).
		ShowDeleted(true).
		OrderBy("startTime").
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339))
	err := call.Pages(ctx, func(page *calendar.Events) error {
		out = append(out, page.Items...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingest: list events of %s: %w", calendarID, err)
	}
	return out, nil
}

// Calendar reads construction events from one Google calendar.
type Calendar struct {
	Lister     EventLister
	CalendarID string
	ProjectID  string
}

// NewCalendar authenticates with a service-account key file and returns a
// reader for calendarID.
func NewCalendar(ctx context.Context, credentialsFile, calendarID, projectID string) (*Calendar, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("ingest: read credentials %s: %w", credentialsFile, err)
	}
	cfg, err := google.JWTConfigFromJSON(b, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("ingest: parse credentials: %w", err)
	}
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("ingest: create calendar service: %w", err)
	}
	return &Calendar{Lister: &serviceLister{srv: srv}, CalendarID: calendarID, ProjectID: projectID}, nil
}

// Events returns the calendar's events in [from, to) as scheduler events.
// Events without a usable start are skipped.
func (c *Calendar) Events(ctx context.Context, from, to time.Time) ([]models.Event, error) {
	items, err := c.Lister.ListEvents(ctx, c.CalendarID, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]models.Event, 0, len(items))
	for _, it := range items {
		if ev, ok := ConvertEvent(it, c.ProjectID); ok {
			out = append(out, ev)
		}
	}
	return out, nil
}

// ConvertEvent maps a calendar event onto a scheduler event. All-day
// events use the calendar's exclusive end date, so the last day is the
// day before it. ok is false when the event has no parseable start.
func ConvertEvent(e *calendar.Event, projectID string) (models.Event, bool) {
	if e == nil || e.Start == nil {
		return models.Event{}, false
	}
	start, allDay, ok := eventTime(e.Start)
	if !ok {
		return models.Event{}, false
	}
	end := start
	if e.End != nil {
		if t, _, ok := eventTime(e.End); ok {
			end = t
			if allDay && end.After(start) {
				end = end.AddDate(0, 0, -1)
			}
		}
	}

	ev := models.Event{
		ID:        e.Id,
		ProjectID: projectID,
		Title:     e.Summary,
		Start:     start,
		End:       end,
		Location:  e.Location,
		Cancelled: e.Status == "cancelled",
		Extra:     map[string]string{},
	}
	if e.Description != "" {
		ev.Extra["description"] = e.Description
	}
	if e.ExtendedProperties != nil {
		for k, v := range e.ExtendedProperties.Private {
			switch k {
			case PropTaskID:
				if v != "" {
					ev.ID = v
				}
			case PropTrade:
				ev.Trade = v
			case PropLocation:
				ev.Location = v
			case PropDependsOn:
				ev.DependsOn = splitList(v)
			case PropResources:
				ev.Resources = splitList(v)
			default:
				ev.Extra[k] = v
			}
		}
	}
	if len(ev.Extra) == 0 {
		ev.Extra = nil
	}
	return ev, true
}

func eventTime(dt *calendar.EventDateTime) (time.Time, bool, bool) {
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		return t.UTC(), false, err == nil
	}
	if dt.Date != "" {
		t, err := time.Parse("2006-01-02", dt.Date)
		return t, true, err == nil
	}
	return time.Time{}, false, false
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
