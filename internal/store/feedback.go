package store

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/foreman/internal/conflict"
	"github.com/zulandar/foreman/internal/models"
	"gorm.io/gorm"
)

// Feedback records conflict feedback in the feedback_records table.
type Feedback struct {
	DB *gorm.DB
}

var _ conflict.FeedbackSink = (*Feedback)(nil)

// Record stores one feedback record.
func (f *Feedback) Record(ctx context.Context, rec models.FeedbackRecord) error {
	if err := f.DB.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("store: record feedback %s: %w", rec.ID, err)
	}
	return nil
}

// RuleStat summarises how users responded to one rule.
type RuleStat struct {
	RuleID string `json:"rule_id"`
	Action string `json:"action"`
	Count  int    `json:"count"`
}

// Summary counts feedback per rule and action since a point in time.
func (f *Feedback) Summary(ctx context.Context, since time.Time) ([]RuleStat, error) {
	var out []RuleStat
	if err := f.DB.WithContext(ctx).Model(&models.FeedbackRecord{}).
		Select("rule_id, action, COUNT(*) as count").
		Where("created_at >= ?", since).
		Group("rule_id, action").
		Order("rule_id ASC, action ASC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("store: summarise feedback: %w", err)
	}
	return out, nil
}
