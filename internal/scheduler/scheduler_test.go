package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type fakeRunner struct {
	runs    atomic.Int32
	started chan struct{}
	release chan struct{}
	err     error
	hasDL   atomic.Bool
}

func (r *fakeRunner) RunCycle(ctx context.Context) error {
	r.runs.Add(1)
	_, ok := ctx.Deadline()
	r.hasDL.Store(ok)

	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.release != nil {
		<-r.release
	}
	return r.err
}

func newTestScheduler(ctx context.Context, runner Runner) *Scheduler {
	return New(ctx, runner, time.Hour, time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestStartRunsImmediately(t *testing.T) {
	runner := &fakeRunner{err: errors.New("cycle failed")}
	s := newTestScheduler(context.Background(), runner)

	if err := s.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	s.Stop()

	if got := runner.runs.Load(); got != 1 {
		t.Errorf("expected 1 run, got %d", got)
	}
	if !runner.hasDL.Load() {
		t.Error("expected cycle context to have a deadline")
	}
}

func TestOverlappingRunIsSkipped(t *testing.T) {
	runner := &fakeRunner{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	s := newTestScheduler(context.Background(), runner)

	if err := s.Start(); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first cycle did not start")
	}

	s.job.Run()
	close(runner.release)
	s.Stop()

	if got := runner.runs.Load(); got != 1 {
		t.Errorf("expected overlapping run to be skipped, got %d runs", got)
	}
}

func TestCancelledContextSkipsCycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &fakeRunner{}
	s := newTestScheduler(ctx, runner)
	s.runCycle()

	if got := runner.runs.Load(); got != 0 {
		t.Errorf("expected no run, got %d", got)
	}
}

func TestStartRejectsInvalidInterval(t *testing.T) {
	s := New(context.Background(), &fakeRunner{}, 0, time.Minute,
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := s.Start(); err == nil {
		t.Fatal("expected an error")
	}
}
