package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCron reports whether expr is a valid 5-field cron expression.
func ValidateCron(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("notify: invalid cron %q: %w", expr, err)
	}
	return nil
}

// nextCronDuration returns the duration from now until the next fire time
// of expr. Returns 0 on parse error.
func nextCronDuration(expr string, now time.Time) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	d := sched.Next(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// BuildFunc produces the alert for one digest run. ok is false when there
// is nothing to send.
type BuildFunc func(ctx context.Context, now time.Time) (a Alert, ok bool, err error)

// Scheduler sends a digest on a cron schedule.
type Scheduler struct {
	Cron     string
	Build    BuildFunc
	Notifier Notifier
	Now      func() time.Time
}

// Run blocks, sending a digest at every fire time until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := ValidateCron(s.Cron); err != nil {
		return err
	}
	now := s.Now
	if now == nil {
		now = time.Now
	}
	for {
		timer := time.NewTimer(nextCronDuration(s.Cron, now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if err := s.RunOnce(ctx); err != nil {
			log.Printf("notify: digest: %v", err)
		}
	}
}

// RunOnce builds and sends a single digest.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	a, ok, err := s.Build(ctx, now)
	if err != nil {
		return fmt.Errorf("notify: build digest: %w", err)
	}
	if !ok {
		return nil
	}
	return s.Notifier.Notify(ctx, a)
}
