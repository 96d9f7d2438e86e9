package models

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertFieldType checks that a struct field has the expected Go type.
func assertFieldType(t *testing.T, typ reflect.Type, fieldName, expectedType string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	got := f.Type.String()
	if got != expectedType {
		t.Errorf("%s.%s type = %q, want %q", typ.Name(), fieldName, got, expectedType)
	}
}

func TestTask_Fields(t *testing.T) {
	typ := reflect.TypeOf(Task{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "size:36")
	assertGormTag(t, typ, "ProjectID", "index")
	assertGormTag(t, typ, "Title", "not null")
	assertGormTag(t, typ, "Description", "type:text")
	assertGormTag(t, typ, "StartDate", "index")
	assertGormTag(t, typ, "Duration", "default:1")
	assertGormTag(t, typ, "Status", "default:not_started")
	assertGormTag(t, typ, "Status", "index")
	assertGormTag(t, typ, "Priority", "default:medium")
	assertGormTag(t, typ, "Trade", "index")
	assertGormTag(t, typ, "ParentID", "size:36")
	assertGormTag(t, typ, "Rank", "column:board_rank")
	assertGormTag(t, typ, "Extra", "type:text")
	assertGormTag(t, typ, "DeletedAt", "index")
	assertGormTag(t, typ, "Level", "-")

	assertFieldType(t, typ, "StartDate", "time.Time")
	assertFieldType(t, typ, "ParentID", "*string")
	assertFieldType(t, typ, "ConstraintDate", "*time.Time")
	assertFieldType(t, typ, "Cost", "*float64")
	assertFieldType(t, typ, "Rank", "float64")
	assertFieldType(t, typ, "DeletedAt", "*time.Time")
}

func TestTask_Relations(t *testing.T) {
	typ := reflect.TypeOf(Task{})

	assertGormTag(t, typ, "Deps", "foreignKey:TaskID")
	assertGormTag(t, typ, "Resources", "foreignKey:TaskID")

	assertFieldType(t, typ, "Deps", "[]models.TaskDep")
	assertFieldType(t, typ, "Resources", "[]models.Assignment")
}

func TestTask_Deleted(t *testing.T) {
	var task Task
	if task.Deleted() {
		t.Error("new task reports deleted")
	}
	now := time.Now()
	task.DeletedAt = &now
	if !task.Deleted() {
		t.Error("task with DeletedAt set should report deleted")
	}
}

func TestTaskDep_CompositeKey(t *testing.T) {
	typ := reflect.TypeOf(TaskDep{})

	assertGormTag(t, typ, "TaskID", "primaryKey")
	assertGormTag(t, typ, "DependsOn", "primaryKey")
	assertGormTag(t, typ, "Type", "default:FS")
	assertFieldType(t, typ, "Lag", "int")
}

func TestAssignment_CompositeKey(t *testing.T) {
	typ := reflect.TypeOf(Assignment{})

	assertGormTag(t, typ, "TaskID", "primaryKey")
	assertGormTag(t, typ, "ResourceID", "primaryKey")
	assertGormTag(t, typ, "Units", "default:1")
}

func TestResource_Fields(t *testing.T) {
	typ := reflect.TypeOf(Resource{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "Name", "not null")
	assertGormTag(t, typ, "Type", "default:labor")
	assertGormTag(t, typ, "MaxUnits", "default:1")
	assertGormTag(t, typ, "Skills", "type:text")
	assertGormTag(t, typ, "Windows", "foreignKey:ResourceID")

	assertFieldType(t, typ, "Windows", "[]models.AvailabilityWindow")
}

func TestResource_SkillList(t *testing.T) {
	tests := []struct {
		name   string
		skills string
		want   []string
	}{
		{"empty", "", nil},
		{"list", `["welding","rigging"]`, []string{"welding", "rigging"}},
		{"malformed", `welding`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Resource{Skills: tt.skills}
			if got := r.SkillList(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SkillList() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResource_Capacity(t *testing.T) {
	tests := []struct {
		max, allocated float64
		want           float64
	}{
		{0, 0, 1},
		{-2, 0, 1},
		{0.5, 0, 0.5},
		{3, 0, 3},
		{3, 1, 2},
		{0, 0.25, 0.75},
		{2, 5, 0},
	}
	for _, tt := range tests {
		r := Resource{MaxUnits: tt.max, AllocatedUnits: tt.allocated}
		if got := r.Capacity(); got != tt.want {
			t.Errorf("Capacity() with MaxUnits %v, AllocatedUnits %v = %v, want %v", tt.max, tt.allocated, got, tt.want)
		}
	}
}

func TestProject_Fields(t *testing.T) {
	typ := reflect.TypeOf(Project{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "size:64")
	assertGormTag(t, typ, "Name", "not null")
	assertFieldType(t, typ, "StartDate", "*time.Time")
	assertFieldType(t, typ, "EndDate", "*time.Time")
}

func TestFeedbackRecord_Fields(t *testing.T) {
	typ := reflect.TypeOf(FeedbackRecord{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "RuleID", "index")
	assertGormTag(t, typ, "Action", "not null")
	assertFieldType(t, typ, "CreatedAt", "time.Time")
}
