package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/excellencehub/proctor-backend/internal/clock"
	"github.com/excellencehub/proctor-backend/internal/model"
)

type saveRecorder struct {
	mu    sync.Mutex
	calls [][]model.Answer
	err   error
}

func (r *saveRecorder) save(ctx context.Context, answers []model.Answer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]model.Answer, len(answers))
	copy(cp, answers)
	r.calls = append(r.calls, cp)
	return r.err
}

func (r *saveRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *saveRecorder) last() []model.Answer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}

// flightFlag is an inFlight stand-in that counts how often it is
// consulted, so tests can tell a skipped tick from one that never ran.
type flightFlag struct {
	v       atomic.Bool
	queries atomic.Int32
}

func (f *flightFlag) get() bool {
	f.queries.Add(1)
	return f.v.Load()
}

func newTestAutosaver(t *testing.T, clk clock.Clock, rec *saveRecorder, flight *flightFlag) (*Autosaver, *AnswerStore) {
	t.Helper()
	store := NewAnswerStore(sessionAssessment().Questions)
	a := NewAutosaver(store, rec.save, flight.get, DefaultAutosaveInterval, clk, zerolog.Nop())
	a.Start()
	t.Cleanup(a.Stop)
	return a, store
}

func TestAutosaveTickPersistsLatestAnswers(t *testing.T) {
	clk := clock.NewFake(time.Now())
	rec := &saveRecorder{}
	_, store := newTestAutosaver(t, clk, rec, &flightFlag{})

	if err := store.Record(0, []string{"a"}); err != nil {
		t.Fatal(err)
	}
	clk.Advance(DefaultAutosaveInterval)
	waitUntil(t, func() bool { return rec.count() == 1 })

	saved := rec.last()
	if len(saved) != 3 {
		t.Fatalf("snapshot: got %d entries, want 3", len(saved))
	}
	if got := saved[0].Value; len(got) != 1 || got[0] != "a" {
		t.Errorf("first tick lost the recorded answer: %v", got)
	}

	if err := store.Record(1, []string{"true"}); err != nil {
		t.Fatal(err)
	}
	clk.Advance(DefaultAutosaveInterval)
	waitUntil(t, func() bool { return rec.count() == 2 })

	saved = rec.last()
	if got := saved[1].Value; len(got) != 1 || got[0] != "true" {
		t.Errorf("second tick missing the newer answer: %v", got)
	}
	if got := saved[0].Value; len(got) != 1 || got[0] != "a" {
		t.Errorf("second tick dropped the earlier answer: %v", got)
	}
}

func TestAutosaveTicksSuppressedWhileSubmitInFlight(t *testing.T) {
	clk := clock.NewFake(time.Now())
	rec := &saveRecorder{}
	flight := &flightFlag{}
	flight.v.Store(true)
	newTestAutosaver(t, clk, rec, flight)

	clk.Advance(DefaultAutosaveInterval)
	waitUntil(t, func() bool { return flight.queries.Load() >= 1 })
	if rec.count() != 0 {
		t.Fatalf("tick saved while a submit was in flight: %d calls", rec.count())
	}

	flight.v.Store(false)
	clk.Advance(DefaultAutosaveInterval)
	waitUntil(t, func() bool { return rec.count() >= 1 })
}

func TestAutosaveSaveNow(t *testing.T) {
	clk := clock.NewFake(time.Now())
	rec := &saveRecorder{err: errors.New("store unavailable")}
	flight := &flightFlag{}
	a, _ := newTestAutosaver(t, clk, rec, flight)

	if err := a.SaveNow(context.Background()); err == nil {
		t.Error("SaveNow must surface the save failure")
	}
	if rec.count() != 1 {
		t.Fatalf("SaveNow calls: got %d, want 1", rec.count())
	}

	flight.v.Store(true)
	if err := a.SaveNow(context.Background()); err != nil {
		t.Errorf("SaveNow during a submit must be a no-op, got %v", err)
	}
	if rec.count() != 1 {
		t.Error("SaveNow saved while a submit was in flight")
	}
}

func TestAutosaveStopSilencesTicks(t *testing.T) {
	clk := clock.NewFake(time.Now())
	rec := &saveRecorder{}
	a, _ := newTestAutosaver(t, clk, rec, &flightFlag{})

	a.Stop()
	a.Stop() // idempotent

	clk.Advance(3 * DefaultAutosaveInterval)
	time.Sleep(20 * time.Millisecond)
	if rec.count() != 0 {
		t.Errorf("tick fired after Stop: %d calls", rec.count())
	}
}
