package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

type Runner interface {
	RunCycle(ctx context.Context) error
}

type Scheduler struct {
	ctx      context.Context
	cron     *cron.Cron
	job      cron.Job
	runner   Runner
	interval time.Duration
	timeout  time.Duration
	wg       sync.WaitGroup
	log      *slog.Logger
}

// New returns a Scheduler running a cycle every interval, each bounded by
// timeout. A cycle still running when the next one is due causes that one to
// be skipped.
func New(
	ctx context.Context,
	runner Runner,
	interval time.Duration,
	timeout time.Duration,
	log *slog.Logger,
) *Scheduler {
	cronLog := cron.PrintfLogger(slog.NewLogLogger(log.Handler(), slog.LevelWarn))

	s := &Scheduler{
		ctx:      ctx,
		cron:     cron.New(cron.WithLogger(cronLog)),
		runner:   runner,
		interval: interval,
		timeout:  timeout,
		log:      log,
	}
	s.job = cron.NewChain(cron.SkipIfStillRunning(cronLog)).Then(cron.FuncJob(s.runCycle))

	return s
}

// Start schedules the cycle and runs the first one right away.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		return fmt.Errorf("invalid interval: %s", s.interval)
	}

	if _, err := s.cron.AddJob("@every "+s.interval.String(), s.job); err != nil {
		return fmt.Errorf("add cycle job: %w", err)
	}

	s.cron.Start()
	s.wg.Go(s.job.Run)

	return nil
}

// Stop waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
}

func (s *Scheduler) runCycle() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	start := time.Now()

	if err := s.runner.RunCycle(ctx); err != nil {
		s.log.ErrorContext(ctx, "Failed to run cycle",
			"error", err,
			"duration", time.Since(start))
		return
	}

	s.log.DebugContext(ctx, "Cycle is done",
		"duration", time.Since(start))
}
