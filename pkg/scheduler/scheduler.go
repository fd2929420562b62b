// Package scheduler runs named cron jobs with a per-run timeout.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// JobFunc is one scheduled unit of work.
type JobFunc func(ctx context.Context) error

// Scheduler wraps a cron engine with zap logging.
type Scheduler struct {
	engine *cron.Cron
	logger *zap.Logger
	jobs   map[string]cron.EntryID
}

// New builds a scheduler evaluating specs in loc. Overlapping runs of the same job are skipped.
func New(loc *time.Location, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	return &Scheduler{
		engine: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		logger: logger,
		jobs:   make(map[string]cron.EntryID),
	}
}

// Add registers fn under name. An empty spec leaves the job disabled.
func (s *Scheduler) Add(name, spec string, timeout time.Duration, fn JobFunc) error {
	if spec == "" {
		s.logger.Info("scheduled job disabled", zap.String("job", name))
		return nil
	}
	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("job %s already registered", name)
	}
	if timeout <= 0 {
		timeout = time.Minute
	}

	id, err := s.engine.AddFunc(spec, func() { s.Run(name, timeout, fn) })
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	s.jobs[name] = id
	s.logger.Info("scheduled job registered", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// Run executes fn once with the timeout applied, logging the outcome.
func (s *Scheduler) Run(name string, timeout time.Duration, fn JobFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	if err := fn(ctx); err != nil {
		s.logger.Error("scheduled job failed", zap.String("job", name), zap.Duration("took", time.Since(start)), zap.Error(err))
		return
	}
	s.logger.Info("scheduled job finished", zap.String("job", name), zap.Duration("took", time.Since(start)))
}

// Next reports the next activation of a registered job.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	id, ok := s.jobs[name]
	if !ok {
		return time.Time{}, false
	}
	return s.engine.Entry(id).Next, true
}

// Start begins firing jobs in the background.
func (s *Scheduler) Start() {
	s.engine.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.jobs)))
}

// Stop prevents new runs and waits for running jobs or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.engine.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out", zap.Error(ctx.Err()))
	}
}
