package db

import (
	"encoding/json"
	"fmt"

	"github.com/zulandar/foreman/internal/config"
	"github.com/zulandar/foreman/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Project{},
		&models.Task{},
		&models.TaskDep{},
		&models.Assignment{},
		&models.Resource{},
		&models.AvailabilityWindow{},
		&models.FeedbackRecord{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedProject writes or updates the Project row from configuration.
func SeedProject(db *gorm.DB, cfg *config.Config) error {
	p := models.Project{ID: cfg.Project.ID, Name: cfg.Project.Name}
	r := cfg.ProjectRange()
	if !r.Start.IsZero() {
		p.StartDate = &r.Start
	}
	if !r.End.IsZero() {
		p.EndDate = &r.End
	}

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "start_date", "end_date"}),
	}).Create(&p)
	if result.Error != nil {
		return fmt.Errorf("db: seed project %q: %w", p.ID, result.Error)
	}
	return nil
}

// SeedResources upserts Resource rows from configuration. Allocated units
// are left untouched on existing rows.
func SeedResources(db *gorm.DB, resources []config.ResourceConfig) error {
	for _, rc := range resources {
		skills, err := marshalJSON(rc.Skills)
		if err != nil {
			return fmt.Errorf("db: marshal skills for resource %q: %w", rc.ID, err)
		}

		res := models.Resource{
			ID:       rc.ID,
			Name:     rc.Name,
			Type:     rc.Type,
			Rate:     rc.Rate,
			MaxUnits: rc.MaxUnits,
			Skills:   skills,
		}

		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "type", "rate", "max_units", "skills"}),
		}).Create(&res)
		if result.Error != nil {
			return fmt.Errorf("db: seed resource %q: %w", rc.ID, result.Error)
		}
	}
	return nil
}

// Init migrates the schema and seeds configured rows.
func Init(db *gorm.DB, cfg *config.Config) error {
	if err := AutoMigrate(db); err != nil {
		return err
	}
	if err := SeedProject(db, cfg); err != nil {
		return err
	}
	return SeedResources(db, cfg.Resources)
}

// marshalJSON marshals a value to a JSON string, returning empty string for nil.
func marshalJSON(v []string) (string, error) {
	if v == nil {
		return "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
