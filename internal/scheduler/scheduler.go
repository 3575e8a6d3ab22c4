// Package scheduler runs a job repeatedly with a randomized pause between runs.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"os"
	"sync"
	"time"
)

// ErrAlreadyRunning is returned by Start while a previous Start is still active.
var ErrAlreadyRunning = errors.New("scheduler already running")

// Job is one unit of scheduled work. It should return promptly once ctx is done.
type Job func(ctx context.Context)

// Scheduler waits a uniformly random delay in [Min, Max) before each run.
// The delay is drawn again after every run, and runs never overlap.
type Scheduler struct {
	Min    time.Duration
	Max    time.Duration
	Rand   func(n int64) int64 // uniform in [0, n)
	Logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a stopped Scheduler.
func New(minDelay, maxDelay time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Scheduler{
		Min:    minDelay,
		Max:    maxDelay,
		Rand:   rand.Int64N,
		Logger: logger,
	}
}

// NextDelay draws the pause before the next run.
func (s *Scheduler) NextDelay() time.Duration {
	span := s.Max - s.Min
	if span <= 0 {
		return s.Min
	}
	return s.Min + time.Duration(s.Rand(int64(span)))
}

// Start launches the loop. It stops when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runningLocked() {
		return ErrAlreadyRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	go s.loop(loopCtx, job, done)
	return nil
}

// Stop cancels the pending timer and waits for an in-flight run to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runningLocked()
}

func (s *Scheduler) runningLocked() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *Scheduler) loop(ctx context.Context, job Job, done chan struct{}) {
	defer close(done)
	for {
		delay := s.NextDelay()
		s.Logger.DebugContext(ctx, "next cycle scheduled", "in", delay)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.Logger.InfoContext(ctx, "scheduler stopped")
			return
		case <-timer.C:
		}
		job(ctx)
	}
}
