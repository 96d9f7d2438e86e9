package task

import (
	"fmt"

	"github.com/zulandar/foreman/internal/models"
	"github.com/zulandar/foreman/internal/schedule"
	"gorm.io/gorm"
)

// AddDep links taskID to a predecessor. Self links, unknown tasks and
// links that would close a cycle are rejected.
func AddDep(db *gorm.DB, taskID, dependsOn, depType string, lag int) error {
	if taskID == dependsOn {
		return fmt.Errorf("dep: cannot add self-dependency on %s", taskID)
	}
	if depType == "" {
		depType = models.DepFinishToStart
	}
	if !schedule.ValidDepType(depType) {
		return fmt.Errorf("dep: invalid type %q (want FS, SS, FF or SF)", depType)
	}

	for _, id := range []string{taskID, dependsOn} {
		if err := exists(db, id); err != nil {
			return fmt.Errorf("dep: %w", err)
		}
	}

	cyclic, err := reachable(db, dependsOn, taskID)
	if err != nil {
		return err
	}
	if cyclic {
		return fmt.Errorf("dep: adding %s → %s would create a cycle", taskID, dependsOn)
	}

	dep := models.TaskDep{TaskID: taskID, DependsOn: dependsOn, Type: depType, Lag: lag}
	if err := db.Create(&dep).Error; err != nil {
		return fmt.Errorf("dep: create %s → %s: %w", taskID, dependsOn, err)
	}
	return nil
}

// ListDeps returns the predecessors of a task and the tasks that depend on it.
func ListDeps(db *gorm.DB, taskID string) (preds []models.TaskDep, succs []models.TaskDep, err error) {
	if err := db.Where("task_id = ?", taskID).Order("depends_on ASC").Find(&preds).Error; err != nil {
		return nil, nil, fmt.Errorf("dep: list predecessors of %s: %w", taskID, err)
	}
	if err := db.Where("depends_on = ?", taskID).Order("task_id ASC").Find(&succs).Error; err != nil {
		return nil, nil, fmt.Errorf("dep: list successors of %s: %w", taskID, err)
	}
	return preds, succs, nil
}

// RemoveDep deletes a dependency link.
func RemoveDep(db *gorm.DB, taskID, dependsOn string) error {
	result := db.Where("task_id = ? AND depends_on = ?", taskID, dependsOn).Delete(&models.TaskDep{})
	if result.Error != nil {
		return fmt.Errorf("dep: remove %s → %s: %w", taskID, dependsOn, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("dep: dependency %s → %s not found", taskID, dependsOn)
	}
	return nil
}

// reachable walks predecessor links breadth-first from start and reports
// whether target can be reached. Each frontier is loaded in one query.
func reachable(db *gorm.DB, start, target string) (bool, error) {
	visited := map[string]bool{start: true}
	frontier := []string{start}
	for len(frontier) > 0 {
		if visited[target] {
			return true, nil
		}
		var deps []models.TaskDep
		if err := db.Where("task_id IN ?", frontier).Find(&deps).Error; err != nil {
			return false, fmt.Errorf("dep: walk from %s: %w", start, err)
		}
		frontier = frontier[:0]
		for _, d := range deps {
			if d.DependsOn == target {
				return true, nil
			}
			if !visited[d.DependsOn] {
				visited[d.DependsOn] = true
				frontier = append(frontier, d.DependsOn)
			}
		}
	}
	return false, nil
}
