package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MMOSHII/Face-Attendance-System/internal/attendance"
	"github.com/MMOSHII/Face-Attendance-System/internal/database/mock"
	"github.com/MMOSHII/Face-Attendance-System/internal/recognition"
	"github.com/MMOSHII/Face-Attendance-System/internal/roster"
)

// testClock is a settable clock safe for concurrent reads.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(hour, minute, second int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = time.Date(2024, 3, 4, hour, minute, second, 0, time.UTC)
}

type fixture struct {
	pipeline *Pipeline
	clock    *testClock
	repo     *mock.MockRosterRepository
	ledger   *mock.MockLedger
	window   attendance.TimeWindow
	pred     recognition.Prediction
	predErr  error
	mu       sync.Mutex
}

func (f *fixture) setPrediction(p recognition.Prediction, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pred, f.predErr = p, err
}

func newFixture(t *testing.T, idents ...attendance.Identity) *fixture {
	t.Helper()
	f := &fixture{
		clock:  &testClock{},
		repo:   mock.NewMockRosterRepository(idents...),
		ledger: mock.NewMockLedger(),
	}
	rec := recognition.RecognizerFunc(func(ctx context.Context, s *recognition.Sample) (recognition.Prediction, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.pred, f.predErr
	})
	evaluator, err := recognition.NewEvaluator(rec, 60, time.Second)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	gate, err := attendance.NewGate(10 * time.Minute)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	store := roster.New(f.repo)
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	f.window, err = attendance.ParseTimeWindow("09:00", "23:59")
	if err != nil {
		t.Fatalf("ParseTimeWindow: %v", err)
	}
	f.pipeline = New(evaluator, store, f.ledger, gate, Options{
		Clock:    f.clock.Now,
		Location: time.UTC,
		Events:   NewBroadcaster(),
	})
	return f
}

func (f *fixture) detect(t *testing.T) Result {
	t.Helper()
	res, err := f.pipeline.ProcessDetection(context.Background(), &recognition.Sample{}, f.window, "test")
	if err != nil {
		t.Fatalf("ProcessDetection: %v", err)
	}
	return res
}

func TestProcessDetection_Scenario(t *testing.T) {
	f := newFixture(t, attendance.Identity{ID: "X", Name: "Ani"})
	f.setPrediction(recognition.Prediction{IdentityID: "X", Distance: 40}, nil)

	f.clock.Set(9, 5, 0)
	res := f.detect(t)
	if !res.Accepted() {
		t.Fatalf("09:05 expected accepted, got %+v", res)
	}
	if res.Identity.TotalAttendance != 1 || !res.Identity.LastAttendance.Equal(f.clock.Now()) {
		t.Errorf("unexpected identity after 09:05: %+v", res.Identity)
	}
	persisted, _ := f.repo.Identity("X")
	if persisted.TotalAttendance != 1 {
		t.Errorf("expected persisted count 1, got %d", persisted.TotalAttendance)
	}

	f.clock.Set(9, 7, 0)
	res = f.detect(t)
	if res.Outcome != OutcomeRejected || res.Reason != attendance.DecisionRejectDebounced {
		t.Fatalf("09:07 expected debounced, got %+v", res)
	}
	if res.Identity.TotalAttendance != 1 {
		t.Errorf("counter changed on debounced detection: %d", res.Identity.TotalAttendance)
	}

	f.clock.Set(9, 20, 0)
	res = f.detect(t)
	if !res.Accepted() || res.Identity.TotalAttendance != 2 {
		t.Fatalf("09:20 expected accepted with count 2, got %+v", res)
	}

	events := f.ledger.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 ledger events, got %d", len(events))
	}
	if !events[1].Timestamp.Equal(f.clock.Now()) || events[1].Name != "Ani" {
		t.Errorf("unexpected second event: %+v", events[1])
	}
}

func TestProcessDetection_BeforeWindow(t *testing.T) {
	last := time.Date(2024, 3, 3, 12, 0, 0, 0, time.UTC)
	for _, ident := range []attendance.Identity{
		{ID: "X"},
		{ID: "X", TotalAttendance: 3, LastAttendance: &last},
	} {
		f := newFixture(t, ident)
		f.setPrediction(recognition.Prediction{IdentityID: "X", Distance: 10}, nil)
		f.clock.Set(8, 59, 59)

		res := f.detect(t)
		if res.Outcome != OutcomeRejected || res.Reason != attendance.DecisionRejectOutsideWindow {
			t.Errorf("expected outside_window, got %+v", res)
		}
		if len(f.ledger.Events()) != 0 {
			t.Error("ledger must stay empty")
		}
	}
}

func TestProcessDetection_NoMatch(t *testing.T) {
	tests := []struct {
		name string
		pred recognition.Prediction
	}{
		{"distance above threshold", recognition.Prediction{IdentityID: "X", Distance: 65}},
		{"no candidate", recognition.Prediction{}},
		{"not in roster", recognition.Prediction{IdentityID: "ghost", Distance: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, attendance.Identity{ID: "X"})
			f.setPrediction(tt.pred, nil)
			f.clock.Set(10, 0, 0)

			res := f.detect(t)
			if res.Outcome != OutcomeNoMatch {
				t.Errorf("expected no_match, got %+v", res)
			}
			if len(f.ledger.Events()) != 0 {
				t.Error("no ledger append expected")
			}
			if f.repo.SaveCalls() != 0 {
				t.Error("no roster write expected")
			}
			ident, _ := f.pipeline.Roster().Get("X")
			if ident.TotalAttendance != 0 {
				t.Errorf("roster mutated: %+v", ident)
			}
		})
	}
}

func TestProcessDetection_NilSample(t *testing.T) {
	f := newFixture(t, attendance.Identity{ID: "X"})
	f.setPrediction(recognition.Prediction{IdentityID: "X", Distance: 1}, nil)
	f.clock.Set(10, 0, 0)

	res, err := f.pipeline.ProcessDetection(context.Background(), nil, f.window, "test")
	if err != nil {
		t.Fatalf("ProcessDetection: %v", err)
	}
	if res.Outcome != OutcomeNoMatch {
		t.Errorf("expected no_match for nil sample, got %+v", res)
	}
}

func TestProcessDetection_Errors(t *testing.T) {
	t.Run("recognizer unavailable", func(t *testing.T) {
		f := newFixture(t, attendance.Identity{ID: "X"})
		f.setPrediction(recognition.Prediction{}, recognition.ErrModelNotLoaded)
		f.clock.Set(10, 0, 0)

		_, err := f.pipeline.ProcessDetection(context.Background(), &recognition.Sample{}, f.window, "test")
		if !errors.Is(err, attendance.ErrRecognizerUnavailable) {
			t.Errorf("expected ErrRecognizerUnavailable, got %v", err)
		}
	})

	t.Run("invalid window", func(t *testing.T) {
		f := newFixture(t, attendance.Identity{ID: "X"})
		f.setPrediction(recognition.Prediction{IdentityID: "X", Distance: 1}, nil)
		bad := attendance.TimeWindow{Start: f.window.End, End: f.window.Start}

		_, err := f.pipeline.ProcessDetection(context.Background(), &recognition.Sample{}, bad, "test")
		if !errors.Is(err, attendance.ErrInvalidConfiguration) {
			t.Errorf("expected ErrInvalidConfiguration, got %v", err)
		}
	})

	t.Run("ledger failure", func(t *testing.T) {
		f := newFixture(t, attendance.Identity{ID: "X"})
		f.setPrediction(recognition.Prediction{IdentityID: "X", Distance: 1}, nil)
		f.ledger.AppendError = errors.New("disk full")
		f.clock.Set(10, 0, 0)

		res, err := f.pipeline.ProcessDetection(context.Background(), &recognition.Sample{}, f.window, "test")
		if !errors.Is(err, attendance.ErrPersistenceFailure) {
			t.Errorf("expected ErrPersistenceFailure, got %v", err)
		}
		if res.Accepted() {
			t.Error("must not report acceptance when the ledger append failed")
		}
	})

	t.Run("roster snapshot failure", func(t *testing.T) {
		f := newFixture(t, attendance.Identity{ID: "X"})
		f.setPrediction(recognition.Prediction{IdentityID: "X", Distance: 1}, nil)
		f.repo.SaveError = errors.New("connection refused")
		f.clock.Set(10, 0, 0)

		res, err := f.pipeline.ProcessDetection(context.Background(), &recognition.Sample{}, f.window, "test")
		if !errors.Is(err, attendance.ErrPersistenceFailure) {
			t.Errorf("expected ErrPersistenceFailure, got %v", err)
		}
		if res.Accepted() {
			t.Error("must not report acceptance before the roster is persisted")
		}
	})
}

func TestProcessDetection_ConcurrentSameIdentity(t *testing.T) {
	f := newFixture(t, attendance.Identity{ID: "X"})
	f.setPrediction(recognition.Prediction{IdentityID: "X", Distance: 30}, nil)
	f.clock.Set(9, 30, 0)

	const n = 32
	results := make([]Result, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.pipeline.ProcessDetection(context.Background(), &recognition.Sample{}, f.window, "test")
			if err != nil {
				t.Errorf("ProcessDetection: %v", err)
			}
			results[i] = res
		}()
	}
	wg.Wait()

	accepted, debounced := 0, 0
	for _, res := range results {
		switch {
		case res.Accepted():
			accepted++
		case res.Reason == attendance.DecisionRejectDebounced:
			debounced++
		}
	}
	if accepted != 1 || debounced != n-1 {
		t.Errorf("expected 1 accepted and %d debounced, got %d and %d", n-1, accepted, debounced)
	}
	ident, _ := f.pipeline.Roster().Get("X")
	if ident.TotalAttendance != 1 {
		t.Errorf("expected count 1, got %d", ident.TotalAttendance)
	}
	if len(f.ledger.Events()) != 1 {
		t.Errorf("expected 1 ledger event, got %d", len(f.ledger.Events()))
	}
}

func TestProcessDetection_ConcurrentDifferentIdentities(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	idents := make([]attendance.Identity, len(ids))
	for i, id := range ids {
		idents[i] = attendance.Identity{ID: id}
	}
	f := newFixture(t, idents...)
	f.clock.Set(12, 0, 0)

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.pipeline.RecordIdentity(context.Background(), id, f.window, "test")
			if err != nil || !res.Accepted() {
				t.Errorf("RecordIdentity(%s) = %+v, %v", id, res, err)
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		persisted, ok := f.repo.Identity(id)
		if !ok || persisted.TotalAttendance != 1 {
			t.Errorf("persisted %s = %+v", id, persisted)
		}
	}
}

// gatedLedger blocks appends for one identity until released.
type gatedLedger struct {
	*mock.MockLedger
	blockID string
	entered chan struct{}
	release chan struct{}
}

func (l *gatedLedger) AppendEvent(ctx context.Context, event attendance.AttendanceEvent) error {
	if event.IdentityID == l.blockID {
		close(l.entered)
		<-l.release
	}
	return l.MockLedger.AppendEvent(ctx, event)
}

func TestRecordIdentity_SlowLedgerDoesNotBlockOthers(t *testing.T) {
	repo := mock.NewMockRosterRepository(attendance.Identity{ID: "A"}, attendance.Identity{ID: "B"})
	store := roster.New(repo)
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ledger := &gatedLedger{
		MockLedger: mock.NewMockLedger(),
		blockID:    "B",
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	evaluator, _ := recognition.NewEvaluator(recognition.RecognizerFunc(
		func(ctx context.Context, s *recognition.Sample) (recognition.Prediction, error) {
			return recognition.Prediction{}, nil
		}), 60, time.Second)
	gate, _ := attendance.NewGate(10 * time.Minute)
	clock := &testClock{}
	clock.Set(12, 0, 0)
	window, _ := attendance.ParseTimeWindow("09:00", "23:59")
	p := New(evaluator, store, ledger, gate, Options{Clock: clock.Now, Location: time.UTC})

	bDone := make(chan error, 1)
	go func() {
		_, err := p.RecordIdentity(context.Background(), "B", window, "test")
		bDone <- err
	}()
	<-ledger.entered

	aDone := make(chan Result, 1)
	go func() {
		res, err := p.RecordIdentity(context.Background(), "A", window, "test")
		if err != nil {
			t.Errorf("RecordIdentity(A): %v", err)
		}
		aDone <- res
	}()

	select {
	case res := <-aDone:
		if !res.Accepted() {
			t.Errorf("expected A accepted, got %+v", res)
		}
	case <-time.After(2 * time.Second):
		t.Error("A waited on B's ledger write")
	}

	close(ledger.release)
	if err := <-bDone; err != nil {
		t.Errorf("RecordIdentity(B): %v", err)
	}
	if a, _ := repo.Identity("A"); a.TotalAttendance != 1 {
		t.Errorf("expected A persisted with 1, got %+v", a)
	}
	if b, _ := repo.Identity("B"); b.TotalAttendance != 1 {
		t.Errorf("expected B persisted with 1, got %+v", b)
	}
}

func TestRecordIdentity(t *testing.T) {
	f := newFixture(t, attendance.Identity{ID: "X"})
	f.clock.Set(9, 5, 0)

	res, err := f.pipeline.RecordIdentity(context.Background(), "X", f.window, "api")
	if err != nil || !res.Accepted() {
		t.Fatalf("RecordIdentity = %+v, %v", res, err)
	}

	_, err = f.pipeline.RecordIdentity(context.Background(), "ghost", f.window, "api")
	if !errors.Is(err, attendance.ErrUnknownIdentity) {
		t.Errorf("expected ErrUnknownIdentity, got %v", err)
	}
}

func TestMatch(t *testing.T) {
	f := newFixture(t, attendance.Identity{ID: "X", Name: "Ani"})
	f.setPrediction(recognition.Prediction{IdentityID: "X", Distance: 12}, nil)

	match, ident, err := f.pipeline.Match(context.Background(), &recognition.Sample{})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !match.Accepted || ident == nil || ident.Name != "Ani" || match.Distance != 12 {
		t.Errorf("unexpected match %+v identity %+v", match, ident)
	}
	if len(f.ledger.Events()) != 0 {
		t.Error("Match must not record attendance")
	}
}

func TestProcessDetection_PublishesEvents(t *testing.T) {
	f := newFixture(t, attendance.Identity{ID: "X"})
	f.setPrediction(recognition.Prediction{IdentityID: "X", Distance: 12}, nil)
	f.clock.Set(9, 5, 0)

	ch := f.pipeline.Events().AddListener()
	defer f.pipeline.Events().RemoveListener(ch)

	f.detect(t)

	select {
	case ev := <-ch:
		if ev.Type != "decision" || ev.Source != "test" || ev.Result == nil || !ev.Result.Accepted() {
			t.Errorf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}

func TestNow_TruncatesToSecond(t *testing.T) {
	f := newFixture(t, attendance.Identity{ID: "X"})
	f.clock.mu.Lock()
	f.clock.t = time.Date(2024, 3, 4, 9, 5, 0, 999_000_000, time.UTC)
	f.clock.mu.Unlock()

	res, err := f.pipeline.RecordIdentity(context.Background(), "X", f.window, "test")
	if err != nil {
		t.Fatalf("RecordIdentity: %v", err)
	}
	if res.Timestamp.Nanosecond() != 0 {
		t.Errorf("expected whole-second timestamp, got %v", res.Timestamp)
	}
}
