package ingest

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"google.golang.org/api/calendar/v3"
)

func TestConvertEvent(t *testing.T) {
	tests := []struct {
		name      string
		in        *calendar.Event
		wantOK    bool
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "all-day exclusive end",
			in:        &calendar.Event{Id: "e1", Start: &calendar.EventDateTime{Date: "2026-06-01"}, End: &calendar.EventDateTime{Date: "2026-06-06"}},
			wantOK:    true,
			wantStart: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 6, 5, 0, 0, 0, 0, time.UTC),
		},
		{
			name:      "timed event",
			in:        &calendar.Event{Id: "e2", Start: &calendar.EventDateTime{DateTime: "2026-06-01T09:00:00-04:00"}, End: &calendar.EventDateTime{DateTime: "2026-06-01T17:00:00-04:00"}},
			wantOK:    true,
			wantStart: time.Date(2026, 6, 1, 13, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 6, 1, 21, 0, 0, 0, time.UTC),
		},
		{
			name:      "missing end",
			in:        &calendar.Event{Id: "e3", Start: &calendar.EventDateTime{Date: "2026-06-01"}},
			wantOK:    true,
			wantStart: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		},
		{name: "no start", in: &calendar.Event{Id: "e4"}},
		{name: "bad date", in: &calendar.Event{Id: "e5", Start: &calendar.EventDateTime{Date: "June 1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := ConvertEvent(tt.in, "p1")
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if !ev.Start.Equal(tt.wantStart) || !ev.End.Equal(tt.wantEnd) {
				t.Errorf("range = %s..%s, want %s..%s", ev.Start, ev.End, tt.wantStart, tt.wantEnd)
			}
			if ev.ProjectID != "p1" {
				t.Errorf("ProjectID = %q", ev.ProjectID)
			}
		})
	}
}

func TestConvertEvent_Properties(t *testing.T) {
	ev, ok := ConvertEvent(&calendar.Event{
		Id:          "gcal-1",
		Summary:     "Rough plumbing",
		Location:    "123 Main St",
		Description: "Bring PEX",
		Status:      "cancelled",
		Start:       &calendar.EventDateTime{Date: "2026-06-01"},
		ExtendedProperties: &calendar.EventExtendedProperties{Private: map[string]string{
			PropTaskID:    "tsk-0a1b2",
			PropTrade:     "plumbing",
			PropLocation:  "Unit 2",
			PropDependsOn: "tsk-1, ,tsk-2",
			PropResources: "crew-a",
			"crew_lead":   "Dana",
		}},
	}, "")
	if !ok {
		t.Fatal("ConvertEvent failed")
	}
	if ev.ID != "tsk-0a1b2" || ev.Trade != "plumbing" || ev.Location != "Unit 2" || !ev.Cancelled {
		t.Errorf("event = %+v", ev)
	}
	if !reflect.DeepEqual(ev.DependsOn, []string{"tsk-1", "tsk-2"}) {
		t.Errorf("DependsOn = %v", ev.DependsOn)
	}
	want := map[string]string{"description": "Bring PEX", "crew_lead": "Dana"}
	if !reflect.DeepEqual(ev.Extra, want) {
		t.Errorf("Extra = %v", ev.Extra)
	}
}

type fakeLister struct {
	items []*calendar.Event
	err   error
}

func (f *fakeLister) ListEvents(context.Context, string, time.Time, time.Time) ([]*calendar.Event, error) {
	return f.items, f.err
}

func TestCalendar_Events(t *testing.T) {
	c := &Calendar{Lister: &fakeLister{items: []*calendar.Event{
		{Id: "a", Summary: "Dig", Start: &calendar.EventDateTime{Date: "2026-06-01"}},
		{Id: "b", Summary: "Broken"},
	}}, CalendarID: "site@example.com", ProjectID: "p1"}

	evs, err := c.Events(context.Background(), time.Now(), time.Now().AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(evs) != 1 || evs[0].ID != "a" {
		t.Errorf("events = %+v", evs)
	}

	c.Lister = &fakeLister{err: errors.New("quota exceeded")}
	if _, err := c.Events(context.Background(), time.Now(), time.Now()); err == nil {
		t.Error("lister error not returned")
	}
}

func TestNewCalendar_MissingCredentials(t *testing.T) {
	_, err := NewCalendar(context.Background(), t.TempDir()+"/missing.json", "cal", "p1")
	if err == nil {
		t.Error("expected error for missing credentials file")
	}
}
