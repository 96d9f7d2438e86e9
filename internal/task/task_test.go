package task

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/foreman/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDB creates an in-memory SQLite database with the task tables.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Task{}, &models.TaskDep{}, &models.Assignment{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func day(m time.Month, d int) time.Time {
	return time.Date(2026, m, d, 0, 0, 0, 0, time.UTC)
}

func mustCreate(t *testing.T, db *gorm.DB, opts CreateOpts) *models.Task {
	t.Helper()
	if opts.Now.IsZero() {
		opts.Now = day(1, 1)
	}
	tk, err := Create(db, opts)
	if err != nil {
		t.Fatalf("Create(%q): %v", opts.Title, err)
	}
	return tk
}

func TestGenerateID_Format(t *testing.T) {
	id, err := GenerateID()
	if err != nil {
		t.Fatalf("GenerateID() error: %v", err)
	}
	if !strings.HasPrefix(id, "tsk-") || len(id) != 9 {
		t.Errorf("ID = %q, want tsk- plus 5 hex chars", id)
	}
}

func TestCreate(t *testing.T) {
	db := testDB(t)
	tk := mustCreate(t, db, CreateOpts{
		Title:    "Pour footings",
		Start:    day(6, 1).Add(9 * time.Hour),
		Duration: 5,
		Trade:    "concrete",
		Now:      day(6, 3),
	})
	if !tk.EndDate.Equal(day(6, 5)) || tk.Duration != 5 {
		t.Errorf("dates = %s..%s (%d)", tk.StartDate, tk.EndDate, tk.Duration)
	}
	if tk.Progress != 60 || tk.Status != models.StatusInProgress {
		t.Errorf("progress/status = %d/%s, want 60/in_progress", tk.Progress, tk.Status)
	}
	if tk.Priority != models.PriorityMedium {
		t.Errorf("Priority = %q, want medium", tk.Priority)
	}
	if tk.Rank != 1 {
		t.Errorf("Rank = %v, want 1", tk.Rank)
	}

	second := mustCreate(t, db, CreateOpts{Title: "Strip forms", Start: day(6, 2), Duration: 2, Now: day(6, 3)})
	if second.Rank != 2 {
		t.Errorf("second Rank = %v, want 2", second.Rank)
	}

	got, err := Get(db, tk.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Pour footings" || got.Trade != "concrete" {
		t.Errorf("Get = %+v", got)
	}
}

func TestCreate_Validation(t *testing.T) {
	db := testDB(t)
	tests := []struct {
		name string
		opts CreateOpts
		want string
	}{
		{"no title", CreateOpts{Start: day(6, 1)}, "title is required"},
		{"no start", CreateOpts{Title: "x"}, "start date is required"},
		{"bad priority", CreateOpts{Title: "x", Start: day(6, 1), Priority: "urgent"}, "invalid priority"},
		{"missing parent", CreateOpts{Title: "x", Start: day(6, 1), ParentID: "tsk-nope"}, "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Create(db, tt.opts)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestGet_NotFound(t *testing.T) {
	db := testDB(t)
	_, err := Get(db, "tsk-00000")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestList_Filters(t *testing.T) {
	db := testDB(t)
	a := mustCreate(t, db, CreateOpts{Title: "A", Start: day(6, 5), Trade: "framing", ProjectID: "p1"})
	mustCreate(t, db, CreateOpts{Title: "B", Start: day(6, 1), Trade: "roofing", ProjectID: "p1"})
	mustCreate(t, db, CreateOpts{Title: "C", Start: day(6, 1), Trade: "framing", ProjectID: "p2"})

	all, err := List(db, ListFilters{ProjectID: "p1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 || all[0].Title != "B" {
		t.Errorf("List(p1) = %d tasks, first %q", len(all), all[0].Title)
	}

	framing, _ := List(db, ListFilters{Trade: "framing"})
	if len(framing) != 2 {
		t.Errorf("List(framing) = %d, want 2", len(framing))
	}

	if err := SoftDelete(db, a.ID, day(6, 2)); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	live, _ := List(db, ListFilters{ProjectID: "p1"})
	if len(live) != 1 {
		t.Errorf("after delete = %d, want 1", len(live))
	}
	withDeleted, _ := List(db, ListFilters{ProjectID: "p1", IncludeDeleted: true})
	if len(withDeleted) != 2 {
		t.Errorf("IncludeDeleted = %d, want 2", len(withDeleted))
	}
	if err := SoftDelete(db, a.ID, day(6, 2)); !errors.Is(err, ErrNotFound) {
		t.Errorf("second SoftDelete = %v, want ErrNotFound", err)
	}
	if err := Restore(db, a.ID); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if live, _ := List(db, ListFilters{ProjectID: "p1"}); len(live) != 2 {
		t.Errorf("after restore = %d, want 2", len(live))
	}
}

func TestUpdate(t *testing.T) {
	db := testDB(t)
	tk := mustCreate(t, db, CreateOpts{Title: "Frame walls", Start: day(6, 1), Duration: 3})

	if err := Update(db, tk.ID, map[string]interface{}{"end_date": day(6, 10)}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := Get(db, tk.ID)
	if got.Duration != 10 || !got.EndDate.Equal(day(6, 10)) {
		t.Errorf("after end change: %s..%s (%d)", got.StartDate, got.EndDate, got.Duration)
	}

	if err := Update(db, tk.ID, map[string]interface{}{"status": "paused"}); err == nil {
		t.Error("invalid status accepted")
	}
	if err := Update(db, tk.ID, map[string]interface{}{"parent_id": "x"}); err == nil {
		t.Error("parent change through Update accepted")
	}
	if err := Update(db, "tsk-none", map[string]interface{}{"title": "x"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) = %v", err)
	}
}

func TestSetParent(t *testing.T) {
	db := testDB(t)
	a := mustCreate(t, db, CreateOpts{Title: "Building", Start: day(6, 1)})
	b := mustCreate(t, db, CreateOpts{Title: "Floor 1", Start: day(6, 1), ParentID: a.ID})
	c := mustCreate(t, db, CreateOpts{Title: "Unit 101", Start: day(6, 1), ParentID: b.ID})

	if err := SetParent(db, a.ID, c.ID); err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Errorf("SetParent(a under c) = %v, want cycle error", err)
	}
	if err := SetParent(db, a.ID, a.ID); err == nil {
		t.Error("self parent accepted")
	}
	if err := SetParent(db, c.ID, a.ID); err != nil {
		t.Fatalf("SetParent(c under a): %v", err)
	}
	children, _ := List(db, ListFilters{ParentID: a.ID})
	if len(children) != 2 {
		t.Errorf("children of a = %d, want 2", len(children))
	}
	if err := SetParent(db, c.ID, ""); err != nil {
		t.Fatalf("SetParent(root): %v", err)
	}
	got, _ := Get(db, c.ID)
	if got.ParentID != nil {
		t.Errorf("ParentID = %v, want nil", *got.ParentID)
	}
}

func TestDeps(t *testing.T) {
	db := testDB(t)
	a := mustCreate(t, db, CreateOpts{Title: "Excavate", Start: day(6, 1)})
	b := mustCreate(t, db, CreateOpts{Title: "Footings", Start: day(6, 2)})
	c := mustCreate(t, db, CreateOpts{Title: "Walls", Start: day(6, 3)})

	if err := AddDep(db, b.ID, a.ID, "", 0); err != nil {
		t.Fatalf("AddDep(b→a): %v", err)
	}
	if err := AddDep(db, c.ID, b.ID, models.DepStartToStart, 2); err != nil {
		t.Fatalf("AddDep(c→b): %v", err)
	}

	tests := []struct {
		name         string
		from, on     string
		typ          string
		wantContains string
	}{
		{"self", a.ID, a.ID, "", "self-dependency"},
		{"cycle", a.ID, c.ID, "", "cycle"},
		{"bad type", c.ID, a.ID, "XX", "invalid type"},
		{"missing", c.ID, "tsk-zzzzz", "", "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AddDep(db, tt.from, tt.on, tt.typ, 0)
			if err == nil || !strings.Contains(err.Error(), tt.wantContains) {
				t.Errorf("err = %v, want %q", err, tt.wantContains)
			}
		})
	}

	preds, succs, err := ListDeps(db, b.ID)
	if err != nil {
		t.Fatalf("ListDeps: %v", err)
	}
	if len(preds) != 1 || preds[0].DependsOn != a.ID || preds[0].Type != models.DepFinishToStart {
		t.Errorf("preds = %+v", preds)
	}
	if len(succs) != 1 || succs[0].TaskID != c.ID || succs[0].Lag != 2 {
		t.Errorf("succs = %+v", succs)
	}

	got, _ := Get(db, c.ID)
	if len(got.Deps) != 1 || got.Deps[0].Type != models.DepStartToStart {
		t.Errorf("Get preloaded deps = %+v", got.Deps)
	}

	if err := RemoveDep(db, c.ID, b.ID); err != nil {
		t.Fatalf("RemoveDep: %v", err)
	}
	if err := RemoveDep(db, c.ID, b.ID); err == nil {
		t.Error("second RemoveDep should fail")
	}
	if err := AddDep(db, a.ID, c.ID, "", 0); err != nil {
		t.Errorf("AddDep after removing the link: %v", err)
	}
}

func TestAssignAndUpsert(t *testing.T) {
	db := testDB(t)
	tk := mustCreate(t, db, CreateOpts{Title: "Lift trusses", Start: day(6, 1)})
	if err := Assign(db, tk.ID, "crane", 0.5); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if err := Assign(db, tk.ID, "crane", 1); err != nil {
		t.Fatalf("Assign again: %v", err)
	}
	got, _ := Get(db, tk.ID)
	if len(got.Resources) != 1 || got.Resources[0].Units != 1 {
		t.Errorf("Resources = %+v", got.Resources)
	}

	ev := FromEvent(models.Event{
		ID: "evt-1", Title: "Inspect framing", Start: day(6, 8), End: day(6, 8),
		DependsOn: []string{tk.ID}, Resources: []string{"inspector"},
	}, day(6, 1))
	if err := Upsert(db, &ev); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	ev.Title = "Framing inspection"
	ev.Deps = nil
	if err := Upsert(db, &ev); err != nil {
		t.Fatalf("Upsert again: %v", err)
	}
	stored, err := Get(db, "evt-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Title != "Framing inspection" || len(stored.Deps) != 0 || len(stored.Resources) != 1 {
		t.Errorf("stored = %+v", stored)
	}
}
