package pipeline

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/gatherhub/eventdir/internal/errors"
	"github.com/gatherhub/eventdir/internal/logger"
	"github.com/gatherhub/eventdir/internal/models"
)

// Clock abstracts ticker creation so tests can drive the schedule
// deterministically instead of sleeping on wall-clock time.
type Clock interface {
	Tick(d time.Duration) (<-chan time.Time, func())
}

type realClock struct{}

func (realClock) Tick(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Runnable is the unit of work the scheduler invokes once per pass;
// satisfied by *Runner.
type Runnable interface {
	RunOnce(ctx context.Context) (models.Diagnostics, error)
}

// Scheduler triggers aggregation passes on a fixed interval and accepts
// out-of-band manual triggers. Its state machine is idle -> running ->
// idle; overlapping runs are forbidden, so a tick that fires while a run
// is still in flight is skipped, and a manual trigger during a run is
// rejected with ErrRunInProgress.
type Scheduler struct {
	runner   Runnable
	interval time.Duration
	clock    Clock

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a scheduler with the real wall clock.
func NewScheduler(runner Runnable, interval time.Duration) *Scheduler {
	return NewSchedulerWithClock(runner, interval, realClock{})
}

// NewSchedulerWithClock creates a scheduler with an injected clock.
func NewSchedulerWithClock(runner Runnable, interval time.Duration, clock Clock) *Scheduler {
	return &Scheduler{runner: runner, interval: interval, clock: clock}
}

// Start runs the scheduling loop until the context is cancelled. The
// first pass runs immediately; later passes fire on the interval.
func (s *Scheduler) Start(ctx context.Context) error {
	logger.Info("Starting aggregation scheduler", "interval", s.interval)

	s.runGuarded(ctx)

	ticks, stop := s.clock.Tick(s.interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Aggregation scheduler stopping")
			return ctx.Err()
		case <-ticks:
			s.runGuarded(ctx)
		}
	}
}

// TriggerNow runs one pass out of band. It is rejected, not queued, when
// a run is already in progress.
func (s *Scheduler) TriggerNow(ctx context.Context) (models.Diagnostics, error) {
	if !s.begin() {
		return models.Diagnostics{}, apperrors.ErrRunInProgress
	}
	defer s.end()

	return s.runner.RunOnce(ctx)
}

// IsRunning reports whether a pass is currently in flight.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// runGuarded executes one pass unless another is in flight, in which
// case the tick is a no-op.
func (s *Scheduler) runGuarded(ctx context.Context) {
	if !s.begin() {
		logger.Warn("Skipping scheduled run; previous run still in progress")
		return
	}
	defer s.end()

	if _, err := s.runner.RunOnce(ctx); err != nil {
		logger.Error("Aggregation run failed", "error", err)
	}
}

func (s *Scheduler) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Scheduler) end() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}
