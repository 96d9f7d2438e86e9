package models

import "time"

// Task statuses.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusOnHold     = "on_hold"
)

// Task priorities.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Dependency relationship types.
const (
	DepFinishToStart  = "FS"
	DepStartToStart   = "SS"
	DepFinishToFinish = "FF"
	DepStartToFinish  = "SF"
)

// Task is a schedulable unit of construction work.
type Task struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	ProjectID      string     `gorm:"size:64;index" json:"project_id,omitempty"`
	Title          string     `gorm:"not null" json:"title"`
	Description    string     `gorm:"type:text" json:"description,omitempty"`
	StartDate      time.Time  `gorm:"index" json:"start_date"`
	EndDate        time.Time  `json:"end_date"`
	Duration       int        `gorm:"default:1" json:"duration"`
	Progress       int        `gorm:"default:0" json:"progress"`
	Status         string     `gorm:"size:16;default:not_started;index" json:"status"`
	Priority       string     `gorm:"size:16;default:medium" json:"priority"`
	Trade          string     `gorm:"size:32;index" json:"trade,omitempty"`
	Location       string     `gorm:"size:128" json:"location,omitempty"`
	Milestone      bool       `gorm:"default:false" json:"milestone"`
	CriticalPath   bool       `gorm:"default:false" json:"critical_path"`
	BaselineStart  *time.Time `json:"baseline_start,omitempty"`
	BaselineEnd    *time.Time `json:"baseline_end,omitempty"`
	ActualStart    *time.Time `json:"actual_start,omitempty"`
	ActualEnd      *time.Time `json:"actual_end,omitempty"`
	Cost           *float64   `json:"cost,omitempty"`
	Budget         *float64   `json:"budget,omitempty"`
	ParentID       *string    `gorm:"size:36;index" json:"parent_id,omitempty"`
	WBS            string     `gorm:"size:64" json:"wbs,omitempty"`
	ConstraintType string     `gorm:"size:32" json:"constraint_type,omitempty"`
	ConstraintDate *time.Time `json:"constraint_date,omitempty"`
	Level          int        `gorm:"-" json:"level"`
	Rank           float64    `gorm:"column:board_rank;default:0" json:"rank"`
	Extra          string     `gorm:"type:text" json:"extra,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `gorm:"index" json:"deleted_at,omitempty"`

	Deps      []TaskDep    `gorm:"foreignKey:TaskID" json:"deps,omitempty"`
	Resources []Assignment `gorm:"foreignKey:TaskID" json:"resources,omitempty"`
}

// Deleted reports whether the task has been soft-deleted.
func (t *Task) Deleted() bool {
	return t.DeletedAt != nil
}

// TaskDep links a dependent task to one of its predecessors.
type TaskDep struct {
	TaskID    string `gorm:"primaryKey;size:36" json:"task_id"`
	DependsOn string `gorm:"primaryKey;size:36" json:"depends_on"`
	Type      string `gorm:"size:2;default:FS" json:"type"`
	Lag       int    `gorm:"default:0" json:"lag"`
}

// Assignment allocates units of a resource to a task.
type Assignment struct {
	TaskID     string  `gorm:"primaryKey;size:36" json:"task_id"`
	ResourceID string  `gorm:"primaryKey;size:64" json:"resource_id"`
	Units      float64 `gorm:"default:1" json:"units"`
}
