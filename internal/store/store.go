// Package store adapts the database to the interfaces the scheduler core
// depends on.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/foreman/internal/models"
	"github.com/zulandar/foreman/internal/reschedule"
	"github.com/zulandar/foreman/internal/task"
	"gorm.io/gorm"
)

// Tasks persists schedule changes for one database.
type Tasks struct {
	DB  *gorm.DB
	Now func() time.Time
}

// NewTasks creates a task store on db.
func NewTasks(db *gorm.DB) *Tasks {
	return &Tasks{DB: db, Now: time.Now}
}

var _ reschedule.Persister = (*Tasks)(nil)

// Update applies a partial schedule change to a task.
func (s *Tasks) Update(ctx context.Context, id string, p reschedule.Patch) error {
	if p.Empty() {
		return nil
	}
	updates := map[string]interface{}{}
	if p.Start != nil {
		updates["start_date"] = *p.Start
	}
	if p.End != nil {
		updates["end_date"] = *p.End
	}
	if p.Status != nil {
		updates["status"] = *p.Status
	}
	if p.Progress != nil {
		updates["progress"] = *p.Progress
	}
	if p.Rank != nil {
		updates["board_rank"] = *p.Rank
	}
	return task.Update(s.DB.WithContext(ctx), id, updates)
}

// Delete soft-deletes a task.
func (s *Tasks) Delete(ctx context.Context, id string) error {
	return task.SoftDelete(s.DB.WithContext(ctx), id, s.Now())
}

// Get loads one task.
func (s *Tasks) Get(ctx context.Context, id string) (models.Task, error) {
	t, err := task.Get(s.DB.WithContext(ctx), id)
	if err != nil {
		return models.Task{}, err
	}
	return *t, nil
}

// List loads the live tasks of a project. An empty projectID loads every project.
func (s *Tasks) List(ctx context.Context, projectID string) ([]models.Task, error) {
	return task.List(s.DB.WithContext(ctx), task.ListFilters{ProjectID: projectID})
}

// Project loads project metadata. A missing project yields a bare record
// carrying only the id.
func (s *Tasks) Project(ctx context.Context, id string) (models.Project, error) {
	var p models.Project
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Project{ID: id, Name: id}, nil
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("store: load project %s: %w", id, err)
	}
	return p, nil
}

// Resources loads every resource with its availability windows.
func (s *Tasks) Resources(ctx context.Context) ([]models.Resource, error) {
	var rs []models.Resource
	if err := s.DB.WithContext(ctx).Preload("Windows").Order("id ASC").Find(&rs).Error; err != nil {
		return nil, fmt.Errorf("store: load resources: %w", err)
	}
	return rs, nil
}
