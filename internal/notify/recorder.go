package notify

import (
	"context"
	"sync"
)

// Recorder is a Notifier that keeps every alert in memory. Err, when set,
// is returned from Notify after recording.
type Recorder struct {
	mu     sync.Mutex
	alerts []Alert
	Err    error
}

// Notify implements Notifier.
func (r *Recorder) Notify(ctx context.Context, a Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return r.Err
}

// Alerts returns a copy of the recorded alerts.
func (r *Recorder) Alerts() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Alert, len(r.alerts))
	copy(out, r.alerts)
	return out
}

// Len returns the number of recorded alerts.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}
