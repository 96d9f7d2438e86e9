package reschedule

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/zulandar/foreman/internal/models"
)

func day(m time.Month, d int) time.Time {
	return time.Date(2026, m, d, 0, 0, 0, 0, time.UTC)
}

type update struct {
	id    string
	patch Patch
}

type fakePersister struct {
	mu      sync.Mutex
	updates []update
	deletes []string
	err     error
	deleted chan string
}

func (f *fakePersister) Update(_ context.Context, id string, p Patch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update{id, p})
	return f.err
}

func (f *fakePersister) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	f.deletes = append(f.deletes, id)
	err := f.err
	f.mu.Unlock()
	if f.deleted != nil {
		f.deleted <- id
	}
	return err
}

func (f *fakePersister) calls() ([]update, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]update(nil), f.updates...), append([]string(nil), f.deletes...)
}

type errorLog struct {
	mu   sync.Mutex
	errs map[string]error
}

func (e *errorLog) ReportError(id string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.errs == nil {
		e.errs = make(map[string]error)
	}
	e.errs[id] = err
}

func newHandler(p Persister, errs ErrorReporter, tasks ...models.Task) *Handler {
	return NewHandler(NewBoard(tasks), p, Options{
		Debounce: time.Hour,
		Now:      func() time.Time { return day(6, 3) },
		Errors:   errs,
	})
}

func drag(t *testing.T, h *Handler, id string) {
	t.Helper()
	if err := h.Begin(id, Point{}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if s := h.Move(id, Point{X: 20}); s != Dragging {
		t.Fatalf("Move state = %s, want dragging", s)
	}
}

func board(h *Handler, id string) models.Task {
	t, _ := h.Board().Get(id)
	return t
}

func TestRankBetween(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	tests := []struct {
		name       string
		prev, next *float64
		want       float64
	}{
		{"between siblings", f(1), f(2), 1.5},
		{"end of column", f(3), nil, 4},
		{"start of column", nil, f(1), 0},
		{"empty column", nil, nil, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RankBetween(tt.prev, tt.next); got != tt.want {
				t.Errorf("RankBetween = %v, want %v", got, tt.want)
			}
		})
	}

	prev, next := 1.0, 2.0
	for i := 0; i < 200 && !NeedsRenormalize(&prev, &next); i++ {
		mid := RankBetween(&prev, &next)
		if !(mid > prev && mid < next) {
			t.Fatalf("iteration %d: %v not strictly between %v and %v", i, mid, prev, next)
		}
		next = mid
	}
	if !NeedsRenormalize(&prev, &next) {
		t.Error("repeated midpoint insertion never required renormalization")
	}
}

func TestRenormalize(t *testing.T) {
	col := []models.Task{{ID: "a", Rank: 1}, {ID: "b", Rank: 1.0000000001}, {ID: "c", Rank: 3}}
	changed := Renormalize(col)
	if len(changed) != 1 || changed[0].ID != "b" || changed[0].Rank != 2 {
		t.Errorf("changed = %+v, want only b -> 2", changed)
	}
	for i, c := range col {
		if c.Rank != float64(i+1) {
			t.Errorf("%s rank = %v, want %d", c.ID, c.Rank, i+1)
		}
	}
}

func TestHandler_DropBetweenSiblings(t *testing.T) {
	p := &fakePersister{}
	h := newHandler(p, nil,
		models.Task{ID: "a", Status: models.StatusInProgress, Rank: 1, StartDate: day(6, 1), EndDate: day(6, 5)},
		models.Task{ID: "b", Status: models.StatusInProgress, Rank: 2, StartDate: day(6, 1), EndDate: day(6, 5)},
		models.Task{ID: "x", Status: models.StatusNotStarted, Rank: 1, StartDate: day(6, 1), EndDate: day(6, 5)},
	)
	drag(t, h, "x")
	got, ok := h.Drop(context.Background(), "x", DropTarget{Status: models.StatusInProgress, Prev: "a", Next: "b"})
	if !ok {
		t.Fatal("Drop was not applied")
	}
	if !(got.Rank > 1 && got.Rank < 2) {
		t.Errorf("Rank = %v, want strictly between 1 and 2", got.Rank)
	}
	if got.Status != models.StatusInProgress {
		t.Errorf("Status = %q", got.Status)
	}
	if board(h, "x").Rank != got.Rank {
		t.Error("board not updated optimistically")
	}
	if !h.Board().Updating("x") || h.State("x") != Committing {
		t.Errorf("updating = %v, state = %s", h.Board().Updating("x"), h.State("x"))
	}

	h.Flush()
	ups, _ := p.calls()
	if len(ups) != 1 || ups[0].id != "x" || *ups[0].patch.Rank != got.Rank {
		t.Fatalf("updates = %+v", ups)
	}
	if h.Board().Updating("x") || h.State("x") != Idle {
		t.Errorf("after confirm: updating = %v, state = %s", h.Board().Updating("x"), h.State("x"))
	}
}

func TestHandler_DropAtColumnEnd(t *testing.T) {
	h := newHandler(&fakePersister{}, nil,
		models.Task{ID: "a", Status: models.StatusCompleted, Rank: 1},
		models.Task{ID: "b", Status: models.StatusCompleted, Rank: 3},
		models.Task{ID: "x", Status: models.StatusInProgress, Rank: 7, Progress: 40},
	)
	drag(t, h, "x")
	got, ok := h.Drop(context.Background(), "x", DropTarget{Status: models.StatusCompleted})
	if !ok {
		t.Fatal("Drop was not applied")
	}
	if got.Rank <= 3 {
		t.Errorf("Rank = %v, want > 3", got.Rank)
	}
	if got.Progress != 100 {
		t.Errorf("Progress = %d, want 100", got.Progress)
	}
}

func TestHandler_DropOnDate(t *testing.T) {
	p := &fakePersister{}
	h := newHandler(p, nil, models.Task{
		ID: "x", StartDate: day(6, 1), EndDate: day(6, 5), Duration: 5,
		Status: models.StatusInProgress, Progress: 60,
	})
	drag(t, h, "x")
	target := day(6, 10).Add(15 * time.Hour)
	got, ok := h.Drop(context.Background(), "x", DropTarget{Date: &target})
	if !ok {
		t.Fatal("Drop was not applied")
	}
	if !got.StartDate.Equal(day(6, 10)) || !got.EndDate.Equal(day(6, 14)) || got.Duration != 5 {
		t.Errorf("dates = %s..%s (%d)", got.StartDate, got.EndDate, got.Duration)
	}
	if got.Progress != 0 || got.Status != models.StatusNotStarted {
		t.Errorf("progress/status = %d/%s, want 0/not_started", got.Progress, got.Status)
	}
	if got.Rank != 0 {
		t.Errorf("date-only drop changed rank to %v", got.Rank)
	}
}

func TestHandler_ClickDoesNotDrag(t *testing.T) {
	p := &fakePersister{}
	orig := models.Task{ID: "x", StartDate: day(6, 1), EndDate: day(6, 5)}
	h := newHandler(p, nil, orig)

	if err := h.Begin("x", Point{X: 10, Y: 10}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if s := h.Move("x", Point{X: 13, Y: 14}); s != Idle {
		t.Errorf("state after 5px = %s, want idle", s)
	}
	target := day(7, 1)
	if _, ok := h.Drop(context.Background(), "x", DropTarget{Date: &target}); ok {
		t.Error("click applied a drop")
	}
	h.Flush()
	if ups, _ := p.calls(); len(ups) != 0 {
		t.Errorf("persisted %d updates", len(ups))
	}
	if !reflect.DeepEqual(board(h, "x"), orig) {
		t.Error("board changed")
	}
}

func TestHandler_UnresolvableDropIsNoop(t *testing.T) {
	p := &fakePersister{}
	orig := models.Task{ID: "x", StartDate: day(6, 1), EndDate: day(6, 5)}
	h := newHandler(p, nil, orig)
	for _, target := range []DropTarget{{Prev: "nowhere"}, {Status: "archived"}, {Status: "archived", Next: "y"}} {
		drag(t, h, "x")
		if _, ok := h.Drop(context.Background(), "x", target); ok {
			t.Errorf("drop on %+v applied", target)
		}
	}
	h.Flush()
	if ups, _ := p.calls(); len(ups) != 0 {
		t.Errorf("persisted %d updates", len(ups))
	}
	if h.State("x") != Idle || !reflect.DeepEqual(board(h, "x"), orig) {
		t.Errorf("state = %s, task = %+v", h.State("x"), board(h, "x"))
	}

	if err := h.Begin("ghost", Point{}); !errors.Is(err, ErrUnknownTask) {
		t.Errorf("Begin(ghost) = %v, want ErrUnknownTask", err)
	}
}

func TestHandler_FailedPersistRollsBack(t *testing.T) {
	p := &fakePersister{err: errors.New("503 service unavailable")}
	errs := &errorLog{}
	orig := models.Task{
		ID: "x", StartDate: day(6, 1), EndDate: day(6, 5), Duration: 5,
		Status: models.StatusInProgress, Progress: 60, Rank: 2,
	}
	other := models.Task{ID: "y", StartDate: day(6, 2), EndDate: day(6, 3)}
	h := newHandler(p, errs, orig, other)

	drag(t, h, "x")
	target := day(6, 20)
	if _, ok := h.Drop(context.Background(), "x", DropTarget{Date: &target}); !ok {
		t.Fatal("Drop was not applied")
	}
	if board(h, "x").StartDate.Equal(orig.StartDate) {
		t.Fatal("optimistic update not visible")
	}

	h.Flush()
	if got := board(h, "x"); !reflect.DeepEqual(got, orig) {
		t.Errorf("after rollback = %+v, want %+v", got, orig)
	}
	if !reflect.DeepEqual(board(h, "y"), other) {
		t.Error("rollback touched another task")
	}
	if errs.errs["x"] == nil {
		t.Error("failure not reported")
	}
	if h.Board().Updating("x") || h.State("x") != Idle {
		t.Errorf("updating = %v, state = %s", h.Board().Updating("x"), h.State("x"))
	}
}

func TestHandler_DebouncedDropsKeepLastAndOldestSnapshot(t *testing.T) {
	p := &fakePersister{}
	orig := models.Task{ID: "x", StartDate: day(6, 1), EndDate: day(6, 5)}
	h := newHandler(p, nil, orig)

	for _, d := range []int{10, 12, 15} {
		drag(t, h, "x")
		target := day(6, d)
		if _, ok := h.Drop(context.Background(), "x", DropTarget{Date: &target}); !ok {
			t.Fatalf("drop to Jun %d not applied", d)
		}
	}
	h.Flush()
	ups, _ := p.calls()
	if len(ups) != 1 {
		t.Fatalf("updates = %d, want 1", len(ups))
	}
	if !ups[0].patch.Start.Equal(day(6, 15)) {
		t.Errorf("persisted start = %s, want Jun 15", ups[0].patch.Start)
	}

	// A failing write after several drops restores the state before the first.
	p.err = errors.New("conflict")
	for _, d := range []int{20, 22} {
		drag(t, h, "x")
		target := day(6, d)
		h.Drop(context.Background(), "x", DropTarget{Date: &target})
	}
	h.Flush()
	if got := board(h, "x"); !got.StartDate.Equal(day(6, 15)) {
		t.Errorf("rolled back to %s, want last confirmed Jun 15", got.StartDate)
	}
}

// scriptedPersister answers Update calls in order from results. When entered
// is set, the first call signals entered and waits for release.
type scriptedPersister struct {
	fakePersister
	results []error
	entered chan struct{}
	release chan struct{}
	n       int
}

func (s *scriptedPersister) Update(ctx context.Context, id string, p Patch) error {
	s.mu.Lock()
	n := s.n
	s.n++
	s.mu.Unlock()
	if n == 0 && s.entered != nil {
		close(s.entered)
		<-s.release
	}
	s.fakePersister.Update(ctx, id, p)
	if n < len(s.results) {
		return s.results[n]
	}
	return nil
}

func TestHandler_RollbackKeepsWriteConfirmedDuringNewerDrop(t *testing.T) {
	p := &scriptedPersister{
		results: []error{nil, errors.New("503 service unavailable")},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	errs := &errorLog{}
	h := newHandler(p, errs, models.Task{ID: "x", StartDate: day(6, 1), EndDate: day(6, 5), Duration: 5})

	drag(t, h, "x")
	first := day(6, 10)
	h.Drop(context.Background(), "x", DropTarget{Date: &first})
	done := make(chan struct{})
	go func() {
		h.Flush()
		close(done)
	}()
	<-p.entered

	// Second drop lands while the first write is in flight.
	drag(t, h, "x")
	second := day(6, 20)
	h.Drop(context.Background(), "x", DropTarget{Date: &second})
	close(p.release)
	<-done

	h.Flush()
	got := board(h, "x")
	if !got.StartDate.Equal(day(6, 10)) || !got.EndDate.Equal(day(6, 14)) {
		t.Errorf("rolled back to %s..%s, want stored Jun 10..Jun 14", got.StartDate, got.EndDate)
	}
	if errs.errs["x"] == nil {
		t.Error("failure not reported")
	}
	if h.Board().Updating("x") || h.State("x") != Idle {
		t.Errorf("updating = %v, state = %s", h.Board().Updating("x"), h.State("x"))
	}
}

func TestHandler_FailedWriteDoesNotResurrectDeletedTask(t *testing.T) {
	p := &fakePersister{err: errors.New("timeout")}
	orig := models.Task{ID: "a", Title: "Frame walls", StartDate: day(6, 1), EndDate: day(6, 5)}
	h := newHandler(p, &errorLog{}, orig)
	reg := NewDeletionRegistry(context.Background(), h.Board(), p, time.Hour, nil)

	drag(t, h, "a")
	target := day(6, 20)
	h.Drop(context.Background(), "a", DropTarget{Date: &target})
	if err := reg.Schedule("a"); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	h.Flush()

	if _, ok := h.Board().Get("a"); ok {
		t.Error("deleted task back on board after failed write")
	}
	if got := reg.Pending(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("Pending = %v, want [a]", got)
	}
	if !reg.Undo("a") {
		t.Fatal("Undo = false")
	}
	if got, ok := h.Board().Get("a"); !ok || got.Title != "Frame walls" {
		t.Error("undo did not restore the task")
	}
}

func TestHandler_Reschedule(t *testing.T) {
	p := &fakePersister{}
	h := newHandler(p, nil, models.Task{ID: "x", StartDate: day(6, 1), EndDate: day(6, 2)})
	if _, err := h.Reschedule(context.Background(), "x", DropTarget{}); err == nil {
		t.Error("Reschedule without target should fail")
	}
	target := day(5, 1)
	got, err := h.Reschedule(context.Background(), "x", DropTarget{Date: &target})
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if got.Status != models.StatusCompleted || got.Progress != 100 {
		t.Errorf("status/progress = %s/%d", got.Status, got.Progress)
	}
	h.Close()
	if ups, _ := p.calls(); len(ups) != 1 {
		t.Errorf("updates = %d, want 1", len(ups))
	}
}

func TestPatch_Apply(t *testing.T) {
	task := models.Task{StartDate: day(6, 1), EndDate: day(6, 1), Duration: 1, Status: models.StatusNotStarted}
	end := day(6, 4)
	status := models.StatusOnHold
	Patch{End: &end, Status: &status}.Apply(&task)
	if task.Duration != 4 || task.Status != models.StatusOnHold || !task.StartDate.Equal(day(6, 1)) {
		t.Errorf("task = %+v", task)
	}
	if !(Patch{}).Empty() {
		t.Error("zero Patch should be empty")
	}
}

func TestDebouncer(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	got := make(chan int, 3)
	for i := 1; i <= 3; i++ {
		i := i
		d.Do("k", func() { got <- i })
	}
	select {
	case v := <-got:
		if v != 3 {
			t.Errorf("ran call %d, want 3", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("debounced call never ran")
	}
	select {
	case v := <-got:
		t.Errorf("extra call %d ran", v)
	case <-time.After(50 * time.Millisecond):
	}

	d.Do("k", func() { got <- 4 })
	d.Stop()
	d.Do("k", func() { got <- 5 })
	select {
	case v := <-got:
		t.Errorf("call %d ran after Stop", v)
	case <-time.After(50 * time.Millisecond):
	}
	if d.Pending() != 0 {
		t.Errorf("Pending = %d", d.Pending())
	}
}

func TestDeletionRegistry_Undo(t *testing.T) {
	p := &fakePersister{}
	b := NewBoard([]models.Task{{ID: "x", Title: "Pour slab"}})
	r := NewDeletionRegistry(context.Background(), b, p, time.Hour, nil)

	if err := r.Schedule("x"); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if _, ok := b.Get("x"); ok {
		t.Error("task still on board")
	}
	if got := r.Pending(); !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("Pending = %v", got)
	}
	if !r.Undo("x") {
		t.Fatal("Undo = false")
	}
	if got, ok := b.Get("x"); !ok || got.Title != "Pour slab" {
		t.Error("task not restored")
	}
	if r.Undo("x") {
		t.Error("second Undo = true")
	}
	r.Close()
	if _, dels := p.calls(); len(dels) != 0 {
		t.Errorf("deletes = %v", dels)
	}
	if err := r.Schedule("x"); !errors.Is(err, ErrRegistryClosed) {
		t.Errorf("Schedule after Close = %v", err)
	}
}

func TestDeletionRegistry_Expires(t *testing.T) {
	p := &fakePersister{deleted: make(chan string, 1)}
	b := NewBoard([]models.Task{{ID: "x"}})
	r := NewDeletionRegistry(context.Background(), b, p, 10*time.Millisecond, nil)
	if err := r.Schedule("x"); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	select {
	case id := <-p.deleted:
		if id != "x" {
			t.Errorf("deleted %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("deletion never committed")
	}
	if r.Undo("x") {
		t.Error("Undo after expiry = true")
	}
	if err := r.Schedule("ghost"); !errors.Is(err, ErrUnknownTask) {
		t.Errorf("Schedule(ghost) = %v", err)
	}
}

func TestDeletionRegistry_FailedDeleteRestores(t *testing.T) {
	p := &fakePersister{err: errors.New("locked")}
	errs := &errorLog{}
	b := NewBoard([]models.Task{{ID: "x"}})
	r := NewDeletionRegistry(context.Background(), b, p, time.Hour, errs)
	if err := r.Schedule("x"); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	r.Flush()
	if _, ok := b.Get("x"); !ok {
		t.Error("task not restored after failed delete")
	}
	if errs.errs["x"] == nil {
		t.Error("failure not reported")
	}
}
