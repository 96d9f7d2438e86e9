package models

import "time"

// FeedbackRecord captures a user's response to a surfaced conflict.
type FeedbackRecord struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	RuleID    string    `gorm:"size:32;index" json:"rule_id"`
	TaskA     string    `gorm:"size:36" json:"task_a"`
	TaskB     string    `gorm:"size:36" json:"task_b,omitempty"`
	TradeA    string    `gorm:"size:32" json:"trade_a,omitempty"`
	TradeB    string    `gorm:"size:32" json:"trade_b,omitempty"`
	Action    string    `gorm:"size:16;not null" json:"action"`
	Weather   string    `gorm:"size:32" json:"weather,omitempty"`
	Location  string    `gorm:"size:128" json:"location,omitempty"`
	Season    string    `gorm:"size:8" json:"season,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
