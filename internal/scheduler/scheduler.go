// Package scheduler runs one-shot deferred actions after a random delay.
package scheduler

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/panics"
)

const (
	DefaultMinDelay = 1000 * time.Millisecond
	DefaultMaxDelay = 3000 * time.Millisecond
)

// Action is a deferred unit of work. A returned error is logged and does not
// affect any other action.
type Action func() error

// Scheduler runs each scheduled action once, after a delay drawn uniformly
// from [min, max). Scheduled actions cannot be cancelled.
type Scheduler struct {
	minDelay time.Duration
	maxDelay time.Duration
	logger   *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand

	wg      sync.WaitGroup
	pending atomic.Int64
}

// New creates a scheduler for delays in [minDelay, maxDelay). When maxDelay
// is not greater than minDelay every action waits exactly minDelay.
func New(minDelay, maxDelay time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if minDelay < 0 {
		minDelay = 0
	}
	return &Scheduler{
		minDelay: minDelay,
		maxDelay: maxDelay,
		logger:   logger,
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
	}
}

// SetRand replaces the random source. Intended for deterministic tests.
func (s *Scheduler) SetRand(r *rand.Rand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = r
}

// NextDelay draws a delay from [min, max).
func (s *Scheduler) NextDelay() time.Duration {
	span := s.maxDelay - s.minDelay
	if span <= 0 {
		return s.minDelay
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.minDelay + time.Duration(s.rng.Int64N(int64(span)))
}

// Schedule arranges for action to run once after a random delay and returns
// that delay.
func (s *Scheduler) Schedule(name string, action Action) time.Duration {
	delay := s.NextDelay()
	scheduledAt := time.Now()

	s.wg.Add(1)
	s.pending.Add(1)
	time.AfterFunc(delay, func() {
		defer s.wg.Done()
		defer s.pending.Add(-1)
		s.run(name, action, time.Since(scheduledAt))
	})

	s.logger.Debug("Action scheduled", "action", name, "delay", delay)
	return delay
}

// run executes one action, isolating its error or panic.
func (s *Scheduler) run(name string, action Action, waited time.Duration) {
	var err error
	var pc panics.Catcher
	pc.Try(func() { err = action() })

	if r := pc.Recovered(); r != nil {
		s.logger.Error("Scheduled action panicked",
			"action", name,
			"waited", waited,
			"panic", r.String(),
		)
		return
	}
	if err != nil {
		s.logger.Error("Scheduled action failed", "action", name, "waited", waited, "error", err)
		return
	}
	s.logger.Debug("Scheduled action completed", "action", name, "waited", waited)
}

// Pending returns the number of actions that have not finished yet.
func (s *Scheduler) Pending() int {
	return int(s.pending.Load())
}

// Wait blocks until every scheduled action has finished or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
