package conflict

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/zulandar/foreman/internal/models"
)

// Feedback actions.
const (
	ActionAccept = "accept"
	ActionIgnore = "ignore"
	ActionModify = "modify"
)

// FeedbackSink stores feedback records.
type FeedbackSink interface {
	Record(ctx context.Context, rec models.FeedbackRecord) error
}

// Reporter turns user responses to conflicts into feedback records.
type Reporter struct {
	Sink     FeedbackSink
	Trades   func(taskID string) string
	Location func(taskID string) string
	Now      func() time.Time
}

// Accept records that the suggestion for c was applied.
func (r *Reporter) Accept(ctx context.Context, c Conflict, w *Weather) {
	r.report(ctx, c, ActionAccept, w)
}

// Ignore records that c was dismissed.
func (r *Reporter) Ignore(ctx context.Context, c Conflict, w *Weather) {
	r.report(ctx, c, ActionIgnore, w)
}

// Modify records that c was resolved differently from the suggestion.
func (r *Reporter) Modify(ctx context.Context, c Conflict, w *Weather) {
	r.report(ctx, c, ActionModify, w)
}

// Report records action for c. Unknown actions are rejected.
func (r *Reporter) Report(ctx context.Context, c Conflict, action string, w *Weather) error {
	switch action {
	case ActionAccept, ActionIgnore, ActionModify:
	default:
		return fmt.Errorf("conflict: unknown feedback action %q", action)
	}
	r.report(ctx, c, action, w)
	return nil
}

// report is best-effort: sink failures are logged and dropped.
func (r *Reporter) report(ctx context.Context, c Conflict, action string, w *Weather) {
	if r == nil || r.Sink == nil {
		return
	}
	rec := r.record(c, action, w)
	if err := r.Sink.Record(ctx, rec); err != nil {
		log.Printf("conflict: record feedback %s for %s: %v", action, c.Rule.ID, err)
	}
}

func (r *Reporter) record(c Conflict, action string, w *Weather) models.FeedbackRecord {
	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}
	rec := models.FeedbackRecord{
		ID:        uuid.New().String(),
		RuleID:    c.Rule.ID,
		TaskA:     c.TaskA,
		TaskB:     c.TaskB,
		Action:    action,
		Season:    Season(now),
		CreatedAt: now,
	}
	if r.Trades != nil {
		rec.TradeA = r.Trades(c.TaskA)
		if c.TaskB != "" {
			rec.TradeB = r.Trades(c.TaskB)
		}
	}
	if r.Location != nil {
		rec.Location = r.Location(c.TaskA)
	}
	if w != nil {
		rec.Weather = w.ConditionOn(now)
	}
	return rec
}

// Season names the northern-hemisphere season for t.
func Season(t time.Time) string {
	switch t.Month() {
	case time.December, time.January, time.February:
		return "winter"
	case time.March, time.April, time.May:
		return "spring"
	case time.June, time.July, time.August:
		return "summer"
	default:
		return "autumn"
	}
}
