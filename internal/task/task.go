// Package task provides task lifecycle operations.
package task

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/foreman/internal/models"
	"github.com/zulandar/foreman/internal/schedule"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a task id does not exist.
var ErrNotFound = errors.New("task: not found")

// CreateOpts holds parameters for creating a new task.
type CreateOpts struct {
	ProjectID   string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Duration    int // used when End is zero
	Priority    string
	Trade       string
	Location    string
	ParentID    string
	Milestone   bool
	Now         time.Time
}

// ListFilters holds optional filters for listing tasks.
type ListFilters struct {
	ProjectID      string
	Status         string
	Trade          string
	ParentID       string
	IncludeDeleted bool
}

// GenerateID creates a task ID in tsk-xxxxx format (5-char hex).
func GenerateID() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("task: generate ID: %w", err)
	}
	return "tsk-" + hex.EncodeToString(b)[:5], nil
}

// Create creates a new task with an auto-generated ID. Progress and status
// are derived from the dates, and the task is ranked last in its column.
func Create(db *gorm.DB, opts CreateOpts) (*models.Task, error) {
	if opts.Title == "" {
		return nil, fmt.Errorf("task: title is required")
	}
	if opts.Start.IsZero() {
		return nil, fmt.Errorf("task: start date is required")
	}
	if opts.Priority != "" && !schedule.ValidPriority(opts.Priority) {
		return nil, fmt.Errorf("task: invalid priority %q", opts.Priority)
	}
	if opts.End.IsZero() && opts.Duration > 0 {
		opts.End = schedule.AddDays(opts.Start, opts.Duration-1)
	}

	if opts.ParentID != "" {
		if err := exists(db, opts.ParentID); err != nil {
			return nil, fmt.Errorf("task: parent: %w", err)
		}
	}

	id, err := generateUniqueID(db)
	if err != nil {
		return nil, err
	}

	t := models.Task{
		ID:          id,
		ProjectID:   opts.ProjectID,
		Title:       opts.Title,
		Description: opts.Description,
		StartDate:   schedule.Day(opts.Start),
		EndDate:     schedule.Day(opts.End),
		Priority:    opts.Priority,
		Trade:       opts.Trade,
		Location:    opts.Location,
		Milestone:   opts.Milestone,
	}
	if opts.ParentID != "" {
		t.ParentID = &opts.ParentID
	}
	schedule.Normalize(&t)

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	t.Progress, t.Status = schedule.Derive(now, t.StartDate, t.EndDate)

	rank, err := nextRank(db, t.ProjectID, t.Status)
	if err != nil {
		return nil, err
	}
	t.Rank = rank

	if err := db.Create(&t).Error; err != nil {
		return nil, fmt.Errorf("task: create: %w", err)
	}
	return &t, nil
}

// Get retrieves a task by ID, preloading Deps and Resources.
func Get(db *gorm.DB, id string) (*models.Task, error) {
	var t models.Task
	if err := db.Preload("Deps").Preload("Resources").Where("id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("task: get %s: %w", id, err)
	}
	return &t, nil
}

// List returns tasks matching the given filters, ordered by start date then ID.
func List(db *gorm.DB, filters ListFilters) ([]models.Task, error) {
	q := db.Model(&models.Task{}).Preload("Deps").Preload("Resources")

	if filters.ProjectID != "" {
		q = q.Where("project_id = ?", filters.ProjectID)
	}
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.Trade != "" {
		q = q.Where("trade = ?", filters.Trade)
	}
	if filters.ParentID != "" {
		q = q.Where("parent_id = ?", filters.ParentID)
	}
	if !filters.IncludeDeleted {
		q = q.Where("deleted_at IS NULL")
	}

	var tasks []models.Task
	if err := q.Order("start_date ASC, id ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("task: list: %w", err)
	}
	return tasks, nil
}

// Update modifies task fields. Status and priority values are validated;
// when either date changes the duration is recomputed.
func Update(db *gorm.DB, id string, updates map[string]interface{}) error {
	var t models.Task
	if err := db.Where("id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("task: get %s for update: %w", id, err)
	}

	if s, ok := updates["status"].(string); ok && !schedule.ValidStatus(s) {
		return fmt.Errorf("task: invalid status %q", s)
	}
	if p, ok := updates["priority"].(string); ok && !schedule.ValidPriority(p) {
		return fmt.Errorf("task: invalid priority %q", p)
	}
	if _, ok := updates["parent_id"]; ok {
		return fmt.Errorf("task: use SetParent to change the parent of %s", id)
	}

	start, hasStart := updates["start_date"].(time.Time)
	end, hasEnd := updates["end_date"].(time.Time)
	if hasStart || hasEnd {
		if hasStart {
			t.StartDate = schedule.Day(start)
		}
		if hasEnd {
			t.EndDate = schedule.Day(end)
		}
		schedule.Normalize(&t)
		updates["start_date"] = t.StartDate
		updates["end_date"] = t.EndDate
		updates["duration"] = t.Duration
	}

	if err := db.Model(&models.Task{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("task: update %s: %w", id, err)
	}
	return nil
}

// SetParent moves a task under parentID, or to the root when parentID is
// empty. Moving a task beneath one of its own descendants is rejected.
func SetParent(db *gorm.DB, id, parentID string) error {
	if err := exists(db, id); err != nil {
		return err
	}
	if parentID == "" {
		if err := db.Model(&models.Task{}).Where("id = ?", id).Update("parent_id", nil).Error; err != nil {
			return fmt.Errorf("task: clear parent of %s: %w", id, err)
		}
		return nil
	}
	if parentID == id {
		return fmt.Errorf("task: %s cannot be its own parent", id)
	}
	if err := exists(db, parentID); err != nil {
		return fmt.Errorf("task: parent: %w", err)
	}

	// Walk up from the new parent; reaching id means a loop.
	seen := map[string]bool{}
	for cur := parentID; cur != ""; {
		if cur == id {
			return fmt.Errorf("task: moving %s under %s would create a cycle", id, parentID)
		}
		if seen[cur] {
			break
		}
		seen[cur] = true
		var p models.Task
		if err := db.Select("id", "parent_id").Where("id = ?", cur).First(&p).Error; err != nil {
			break
		}
		cur = ""
		if p.ParentID != nil {
			cur = *p.ParentID
		}
	}

	if err := db.Model(&models.Task{}).Where("id = ?", id).Update("parent_id", parentID).Error; err != nil {
		return fmt.Errorf("task: set parent of %s: %w", id, err)
	}
	return nil
}

// SoftDelete marks a task deleted without removing its row.
func SoftDelete(db *gorm.DB, id string, now time.Time) error {
	result := db.Model(&models.Task{}).Where("id = ? AND deleted_at IS NULL", id).Update("deleted_at", now)
	if result.Error != nil {
		return fmt.Errorf("task: delete %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Restore clears a soft delete.
func Restore(db *gorm.DB, id string) error {
	result := db.Model(&models.Task{}).Where("id = ?", id).Update("deleted_at", nil)
	if result.Error != nil {
		return fmt.Errorf("task: restore %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Assign allocates units of a resource to a task, replacing any existing
// allocation of the same resource.
func Assign(db *gorm.DB, taskID, resourceID string, units float64) error {
	if err := exists(db, taskID); err != nil {
		return err
	}
	if units <= 0 {
		units = 1
	}
	a := models.Assignment{TaskID: taskID, ResourceID: resourceID, Units: units}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "task_id"}, {Name: "resource_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"units"}),
	}).Create(&a).Error; err != nil {
		return fmt.Errorf("task: assign %s to %s: %w", resourceID, taskID, err)
	}
	return nil
}

// Upsert writes a task with its dependency links and assignments, replacing
// what was stored for it before.
func Upsert(db *gorm.DB, t *models.Task) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{UpdateAll: true}).Create(t).Error; err != nil {
			return fmt.Errorf("task: upsert %s: %w", t.ID, err)
		}
		if err := tx.Where("task_id = ?", t.ID).Delete(&models.TaskDep{}).Error; err != nil {
			return fmt.Errorf("task: clear deps of %s: %w", t.ID, err)
		}
		if err := tx.Where("task_id = ?", t.ID).Delete(&models.Assignment{}).Error; err != nil {
			return fmt.Errorf("task: clear assignments of %s: %w", t.ID, err)
		}
		for i := range t.Deps {
			t.Deps[i].TaskID = t.ID
		}
		for i := range t.Resources {
			t.Resources[i].TaskID = t.ID
		}
		if len(t.Deps) > 0 {
			if err := tx.Create(&t.Deps).Error; err != nil {
				return fmt.Errorf("task: write deps of %s: %w", t.ID, err)
			}
		}
		if len(t.Resources) > 0 {
			if err := tx.Create(&t.Resources).Error; err != nil {
				return fmt.Errorf("task: write assignments of %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

func exists(db *gorm.DB, id string) error {
	var count int64
	if err := db.Model(&models.Task{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("task: check %s: %w", id, err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// nextRank returns one past the highest rank in a status column.
func nextRank(db *gorm.DB, projectID, status string) (float64, error) {
	var max *float64
	q := db.Model(&models.Task{}).Select("MAX(board_rank)").Where("status = ? AND deleted_at IS NULL", status)
	if projectID != "" {
		q = q.Where("project_id = ?", projectID)
	}
	if err := q.Scan(&max).Error; err != nil {
		return 0, fmt.Errorf("task: rank column %s: %w", status, err)
	}
	if max == nil {
		return 1, nil
	}
	return *max + 1, nil
}

// generateUniqueID generates an ID and retries once on collision.
func generateUniqueID(db *gorm.DB) (string, error) {
	for range 2 {
		id, err := GenerateID()
		if err != nil {
			return "", err
		}
		var count int64
		if err := db.Model(&models.Task{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return "", fmt.Errorf("task: check ID uniqueness: %w", err)
		}
		if count == 0 {
			return id, nil
		}
	}
	return "", fmt.Errorf("task: failed to generate unique ID after retries")
}
