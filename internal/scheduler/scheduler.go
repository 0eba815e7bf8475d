// Package scheduler triggers a job on a fixed interval without overlapping runs.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Job is one scheduled unit of work
type Job func(ctx context.Context) error

// Scheduler runs a job every interval
type Scheduler struct {
	interval time.Duration
	job      Job
	logger   *slog.Logger

	running atomic.Bool
	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
}

// New creates a scheduler; it does nothing until Start
func New(interval time.Duration, job Job, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{interval: interval, job: job, logger: logger}
}

// Start begins ticking in the background. The first run happens
// immediately. A non-positive interval disables the scheduler.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.interval <= 0 || s.job == nil || s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(ctx, s.stop, s.done)
	s.logger.Info("scheduler started", "interval", s.interval)
}

func (s *Scheduler) loop(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Trigger(ctx)
	for {
		select {
		case <-ticker.C:
			s.Trigger(ctx)
		case <-ctx.Done():
			return
		case <-stop:
			return
		}
	}
}

// Trigger runs the job now unless a run is already in progress, and
// reports whether it ran.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous run still in progress, skipping")
		return false
	}
	defer s.running.Store(false)

	start := time.Now()
	if err := s.job(ctx); err != nil {
		s.logger.Error("scheduled run failed", "error", err, "duration", time.Since(start))
		return true
	}
	s.logger.Info("scheduled run finished", "duration", time.Since(start))
	return true
}

// Running reports whether a run is in progress
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Stop halts the ticker and waits for an in-flight run to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}
