package task

import (
	"strings"
	"testing"
	"time"

	"github.com/zulandar/foreman/internal/models"
)

func TestFromEvent_DerivesProgress(t *testing.T) {
	tests := []struct {
		name         string
		now          time.Time
		wantProgress int
		wantStatus   string
	}{
		{"before start", day(5, 30), 0, models.StatusNotStarted},
		{"midway", day(6, 3), 60, models.StatusInProgress},
		{"after end", day(6, 10), 100, models.StatusCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := FromEvent(models.Event{ID: "e1", Title: "Rough-in", Start: day(6, 1), End: day(6, 5)}, tt.now)
			if tk.Progress != tt.wantProgress || tk.Status != tt.wantStatus {
				t.Errorf("progress/status = %d/%s, want %d/%s", tk.Progress, tk.Status, tt.wantProgress, tt.wantStatus)
			}
			if tk.Duration != 5 {
				t.Errorf("Duration = %d, want 5", tk.Duration)
			}
		})
	}
}

func TestFromEvent_Defaults(t *testing.T) {
	now := day(6, 1)
	tk := FromEvent(models.Event{
		End:       day(6, 4),
		DependsOn: []string{"", "e0", "e0"},
		Extra: map[string]string{
			"parent_id": "",
			"priority":  "urgent",
			"milestone": "yes?",
			"crew":      "north",
		},
	}, now)

	if len(tk.ID) != 36 {
		t.Errorf("ID = %q, want generated uuid", tk.ID)
	}
	if tk.Title != "(untitled)" {
		t.Errorf("Title = %q", tk.Title)
	}
	if !tk.StartDate.Equal(day(6, 4)) || tk.Duration != 1 {
		t.Errorf("dates = %s..%s", tk.StartDate, tk.EndDate)
	}
	if tk.ParentID != nil {
		t.Errorf("ParentID = %v, want root", *tk.ParentID)
	}
	if tk.Priority != models.PriorityMedium || tk.Milestone {
		t.Errorf("priority/milestone = %s/%v", tk.Priority, tk.Milestone)
	}
	if len(tk.Deps) != 1 || tk.Deps[0].DependsOn != "e0" {
		t.Errorf("Deps = %+v", tk.Deps)
	}
	if !strings.Contains(tk.Extra, `"crew":"north"`) {
		t.Errorf("Extra = %q, want crew passed through", tk.Extra)
	}
}

func TestFromEvent_Cancelled(t *testing.T) {
	tk := FromEvent(models.Event{ID: "e1", Title: "x", Start: day(6, 1), Cancelled: true}, day(6, 2))
	if !tk.Deleted() {
		t.Error("cancelled event should be soft-deleted")
	}
}

func TestFromEvents_DropsUnknownLinks(t *testing.T) {
	tasks := FromEvents([]models.Event{
		{ID: "a", Title: "A", Start: day(6, 1)},
		{ID: "b", Title: "B", Start: day(6, 2), DependsOn: []string{"a", "ghost"}},
	}, day(6, 1))
	if len(tasks[1].Deps) != 1 || tasks[1].Deps[0].DependsOn != "a" {
		t.Errorf("Deps = %+v", tasks[1].Deps)
	}
	if tasks[0].Deps != nil {
		t.Errorf("a Deps = %+v, want nil", tasks[0].Deps)
	}
}
