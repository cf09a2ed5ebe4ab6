package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amishk599/simoradar/internal/model"
	"github.com/amishk599/simoradar/internal/pipeline"
)

// --- Mock implementations ---

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (r *countingRunner) RunPass(_ context.Context, _ model.Filters) (model.RunLog, *pipeline.Result, error) {
	r.calls.Add(1)
	return model.RunLog{ID: "run"}, &pipeline.Result{}, r.err
}

// orderRunner records the department of each pass it runs.
type orderRunner struct {
	mu    sync.Mutex
	order []string
}

func (r *orderRunner) RunPass(_ context.Context, f model.Filters) (model.RunLog, *pipeline.Result, error) {
	r.mu.Lock()
	r.order = append(r.order, f.Department)
	r.mu.Unlock()
	return model.RunLog{}, &pipeline.Result{}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Tests ---

func TestRun_CancelReturnsPromptly(t *testing.T) {
	r := &countingRunner{}
	s := NewScheduler(r, nil, time.Hour, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if c := r.calls.Load(); c != 1 {
		t.Errorf("expected one immediate pass, got %d", c)
	}
}

func TestRun_TicksOnInterval(t *testing.T) {
	r := &countingRunner{}
	s := NewScheduler(r, nil, 20*time.Millisecond, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 110*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if c := r.calls.Load(); c < 3 {
		t.Errorf("expected at least 3 passes, got %d", c)
	}
}

func TestRun_FailedPassDoesNotStopLoop(t *testing.T) {
	r := &countingRunner{err: errors.New("acquisition aborted")}
	s := NewScheduler(r, nil, 10*time.Millisecond, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	if c := r.calls.Load(); c < 2 {
		t.Errorf("expected the loop to keep going after failures, got %d passes", c)
	}
}

func TestRunAll_SearchesInOrder(t *testing.T) {
	r := &orderRunner{}
	s := NewScheduler(r, []Search{
		{Name: "valle", Filters: model.Filters{Department: "Valle del Cauca"}},
		{Name: "antioquia", Filters: model.Filters{Department: "Antioquia"}},
		{Name: "cundinamarca", Filters: model.Filters{Department: "Cundinamarca"}},
	}, time.Hour, discardLogger())
	s.pause = 0

	s.runAll(context.Background())

	want := []string{"Valle del Cauca", "Antioquia", "Cundinamarca"}
	if len(r.order) != len(want) {
		t.Fatalf("got %v, want %v", r.order, want)
	}
	for i := range want {
		if r.order[i] != want[i] {
			t.Errorf("pass %d: got %q, want %q", i, r.order[i], want[i])
		}
	}
}

func TestRunAll_StopsOnCancel(t *testing.T) {
	r := &countingRunner{}
	s := NewScheduler(r, []Search{{Name: "a"}, {Name: "b"}}, time.Hour, discardLogger())
	s.pause = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	s.runAll(ctx)

	if c := r.calls.Load(); c != 1 {
		t.Errorf("expected the pause to be interrupted after the first search, got %d passes", c)
	}
}
