// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSweepTimeout bounds a single sweep.
const DefaultSweepTimeout = 30 * time.Minute

// SweepFunc processes the pending inbox once.
type SweepFunc func(ctx context.Context) error

// Scheduler runs the inbox sweep on a cron schedule. Sweeps never overlap:
// a tick that fires while the previous sweep is still running is skipped.
type Scheduler struct {
	cron    *cron.Cron
	spec    string
	sweep   SweepFunc
	timeout time.Duration
	mu      sync.Mutex
	logger  *slog.Logger
}

// NewScheduler creates a scheduler for spec, a standard 5-field cron
// expression or a descriptor such as "@every 15m".
func NewScheduler(spec string, sweep SweepFunc, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:    c,
		spec:    spec,
		sweep:   sweep,
		timeout: DefaultSweepTimeout,
		logger:  logger,
	}
}

// WithTimeout overrides DefaultSweepTimeout.
func (s *Scheduler) WithTimeout(d time.Duration) *Scheduler {
	s.timeout = d
	return s
}

// Start registers the sweep and begins the schedule.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.runSweep); err != nil {
		return fmt.Errorf("failed to schedule inbox sweep %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.String("schedule", s.spec),
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop stops the schedule. The returned context is done once a running
// sweep has finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow runs a sweep synchronously. It reports false when a sweep was
// already running.
func (s *Scheduler) RunNow() bool {
	return s.runSweep()
}

func (s *Scheduler) runSweep() bool {
	if !s.mu.TryLock() {
		s.logger.Warn("inbox sweep still running, skipping tick")
		return false
	}
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	s.logger.Info("starting inbox sweep")
	if err := s.sweep(ctx); err != nil {
		s.logger.Error("inbox sweep failed", slog.Any("error", err))
		return true
	}
	s.logger.Info("inbox sweep completed", slog.Duration("took", time.Since(start)))
	return true
}
