package models

import (
	"encoding/json"
	"time"
)

// Resource types.
const (
	ResourceLabor     = "labor"
	ResourceMaterial  = "material"
	ResourceEquipment = "equipment"
)

// Resource is a crew, material stock or piece of equipment tasks draw on.
type Resource struct {
	ID             string  `gorm:"primaryKey;size:64" json:"id"`
	Name           string  `gorm:"size:128;not null" json:"name"`
	Type           string  `gorm:"size:16;default:labor" json:"type"`
	Rate           float64 `gorm:"default:0" json:"rate"`
	MaxUnits       float64 `gorm:"default:1" json:"max_units"`
	AllocatedUnits float64 `gorm:"default:0" json:"allocated_units"`
	Skills         string  `gorm:"type:text" json:"skills,omitempty"`

	Windows []AvailabilityWindow `gorm:"foreignKey:ResourceID" json:"windows,omitempty"`
}

// SkillList decodes the JSON skill tags. Malformed data yields no skills.
func (r *Resource) SkillList() []string {
	if r.Skills == "" {
		return nil
	}
	var skills []string
	if err := json.Unmarshal([]byte(r.Skills), &skills); err != nil {
		return nil
	}
	return skills
}

// Capacity returns the units still allocatable: the maximum (one unit when
// unset) less what is already allocated elsewhere, never below zero.
func (r *Resource) Capacity() float64 {
	limit := r.MaxUnits
	if limit <= 0 {
		limit = 1
	}
	if free := limit - r.AllocatedUnits; free > 0 {
		return free
	}
	return 0
}

// AvailabilityWindow is a period during which a resource can be allocated.
type AvailabilityWindow struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ResourceID string    `gorm:"size:64;index" json:"resource_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}
