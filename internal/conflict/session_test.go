package conflict

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zulandar/foreman/internal/models"
)

func TestSession_IgnoreAndClear(t *testing.T) {
	s := NewSession(NewEngine(nil))
	tasks := []models.Task{
		mk("a", "foundation", "", day(6, 10), day(6, 12)),
		mk("b", "framing", "", day(6, 5), day(6, 8)),
	}

	first := s.Analyze(tasks, PerspectiveStrict, nil, Settings{})
	if len(first.Conflicts) != 1 {
		t.Fatalf("conflicts = %v, want 1", ruleIDs(first))
	}
	c := first.Conflicts[0]

	s.Ignore(c)
	if !s.IsIgnored(Key{A: "b", B: "a", RuleID: c.Rule.ID}) {
		t.Error("IsIgnored should match either task order")
	}
	ignored := s.Analyze(tasks, PerspectiveStrict, nil, Settings{})
	if len(ignored.Conflicts) != 0 {
		t.Errorf("after Ignore: %v", ruleIDs(ignored))
	}
	if ignored.Score != 100 {
		t.Errorf("Score = %d, want 100", ignored.Score)
	}

	s.Clear()
	restored := s.Analyze(tasks, PerspectiveStrict, nil, Settings{})
	if len(restored.Conflicts) != 1 || restored.Conflicts[0].Key() != c.Key() {
		t.Errorf("after Clear: %v", ruleIDs(restored))
	}

	s.Ignore(c)
	s.Unignore(c)
	if s.IsIgnored(c.Key()) {
		t.Error("Unignore did not remove key")
	}
}

func TestSession_ConcurrentIgnore(t *testing.T) {
	s := NewSession(NewEngine(nil))
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.IgnoreKey(Key{A: "a", B: "b", RuleID: "SEQ-001"})
			_ = s.IsIgnored(Key{A: "a", B: "b", RuleID: "SEQ-001"})
		}(i)
	}
	wg.Wait()
	if len(s.Ignored()) != 1 {
		t.Errorf("Ignored() = %v, want 1 key", s.Ignored())
	}
}

type recordingSink struct {
	mu   sync.Mutex
	recs []models.FeedbackRecord
	err  error
}

func (s *recordingSink) Record(_ context.Context, rec models.FeedbackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.recs = append(s.recs, rec)
	return nil
}

func TestReporter_Records(t *testing.T) {
	sink := &recordingSink{}
	trades := map[string]string{"a": "foundation", "b": "framing"}
	r := &Reporter{
		Sink:     sink,
		Trades:   func(id string) string { return trades[id] },
		Location: func(string) string { return "Lot 4" },
		Now:      func() time.Time { return time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC) },
	}
	c := Conflict{TaskA: "a", TaskB: "b", Rule: ruleTradeOrder, Severity: SeverityHigh}

	r.Accept(context.Background(), c, &Weather{Condition: "snow"})
	if err := r.Report(context.Background(), c, ActionModify, nil); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if err := r.Report(context.Background(), c, "shrug", nil); err == nil {
		t.Error("Report with unknown action should fail")
	}

	if len(sink.recs) != 2 {
		t.Fatalf("records = %d, want 2", len(sink.recs))
	}
	rec := sink.recs[0]
	if len(rec.ID) != 36 {
		t.Errorf("ID = %q, want uuid", rec.ID)
	}
	if rec.RuleID != "SEQ-001" || rec.Action != ActionAccept {
		t.Errorf("rule/action = %s/%s", rec.RuleID, rec.Action)
	}
	if rec.TradeA != "foundation" || rec.TradeB != "framing" {
		t.Errorf("trades = %s/%s", rec.TradeA, rec.TradeB)
	}
	if rec.Weather != "snow" || rec.Season != "winter" || rec.Location != "Lot 4" {
		t.Errorf("context = %+v", rec)
	}
	if sink.recs[0].ID == sink.recs[1].ID {
		t.Error("records share an ID")
	}
}

func TestReporter_SinkFailureSwallowed(t *testing.T) {
	r := &Reporter{Sink: &recordingSink{err: errors.New("unreachable")}}
	c := Conflict{TaskA: "a", Rule: ruleAdverseWeather}
	r.Ignore(context.Background(), c, nil)
	if err := r.Report(context.Background(), c, ActionIgnore, nil); err != nil {
		t.Errorf("Report returned sink error: %v", err)
	}

	var nilReporter *Reporter
	nilReporter.Modify(context.Background(), c, nil)
}

func TestSeason(t *testing.T) {
	tests := []struct {
		m    time.Month
		want string
	}{
		{time.December, "winter"},
		{time.April, "spring"},
		{time.July, "summer"},
		{time.October, "autumn"},
	}
	for _, tt := range tests {
		if got := Season(time.Date(2026, tt.m, 1, 0, 0, 0, 0, time.UTC)); got != tt.want {
			t.Errorf("Season(%s) = %q, want %q", tt.m, got, tt.want)
		}
	}
}
