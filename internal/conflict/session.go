package conflict

import (
	"sync"

	"github.com/zulandar/foreman/internal/models"
)

// Session holds the ignore set for one user session. It is never persisted.
type Session struct {
	engine *Engine

	mu      sync.Mutex
	ignored map[Key]bool
}

// NewSession creates a session analysing with e.
func NewSession(e *Engine) *Session {
	return &Session{engine: e, ignored: make(map[Key]bool)}
}

// Ignore hides c from subsequent analyses.
func (s *Session) Ignore(c Conflict) {
	s.IgnoreKey(c.Key())
}

// IgnoreKey hides the conflict identified by k.
func (s *Session) IgnoreKey(k Key) {
	k = NewKey(k.A, k.B, k.RuleID)
	s.mu.Lock()
	s.ignored[k] = true
	s.mu.Unlock()
}

// Unignore makes c visible again.
func (s *Session) Unignore(c Conflict) {
	s.UnignoreKey(c.Key())
}

// UnignoreKey makes the conflict identified by k visible again.
func (s *Session) UnignoreKey(k Key) {
	k = NewKey(k.A, k.B, k.RuleID)
	s.mu.Lock()
	delete(s.ignored, k)
	s.mu.Unlock()
}

// Clear empties the ignore set.
func (s *Session) Clear() {
	s.mu.Lock()
	s.ignored = make(map[Key]bool)
	s.mu.Unlock()
}

// IsIgnored reports whether k is in the ignore set.
func (s *Session) IsIgnored(k Key) bool {
	k = NewKey(k.A, k.B, k.RuleID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ignored[k]
}

// Ignored returns a copy of the ignore set.
func (s *Session) Ignored() map[Key]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Key]bool, len(s.ignored))
	for k := range s.ignored {
		out[k] = true
	}
	return out
}

// Analyze runs the engine with the session's ignore set merged into settings.
func (s *Session) Analyze(tasks []models.Task, p Perspective, w *Weather, settings Settings) Result {
	ignored := s.Ignored()
	for k := range settings.Ignored {
		ignored[k] = true
	}
	settings.Ignored = ignored
	return s.engine.Analyze(tasks, p, w, settings)
}
