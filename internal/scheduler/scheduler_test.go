package scheduler

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextDelay_WithinBounds(t *testing.T) {
	s := New(DefaultMinDelay, DefaultMaxDelay, nil)
	s.SetRand(rand.New(rand.NewPCG(1, 2)))

	for i := 0; i < 10000; i++ {
		d := s.NextDelay()
		require.GreaterOrEqual(t, d, DefaultMinDelay)
		require.Less(t, d, DefaultMaxDelay)
	}
}

func TestNextDelay_EmptyRange(t *testing.T) {
	s := New(50*time.Millisecond, 50*time.Millisecond, nil)
	require.Equal(t, 50*time.Millisecond, s.NextDelay())
}

func TestSchedule_RunsAfterDelay(t *testing.T) {
	s := New(20*time.Millisecond, 40*time.Millisecond, nil)

	var mu sync.Mutex
	var ranAt time.Time
	start := time.Now()
	delay := s.Schedule("probe", func() error {
		mu.Lock()
		ranAt = time.Now()
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.False(t, ranAt.IsZero(), "action did not run")
	require.GreaterOrEqual(t, ranAt.Sub(start), delay)
	require.GreaterOrEqual(t, delay, 20*time.Millisecond)
	require.Less(t, delay, 40*time.Millisecond)
	require.Equal(t, 0, s.Pending())
}

func TestSchedule_EachActionRunsOnce(t *testing.T) {
	s := New(time.Millisecond, 10*time.Millisecond, nil)

	const n = 25
	var runs atomic.Int64
	for i := 0; i < n; i++ {
		s.Schedule("count", func() error {
			runs.Add(1)
			return nil
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
	require.Equal(t, int64(n), runs.Load())
}

func TestSchedule_FailuresAreIsolated(t *testing.T) {
	s := New(time.Millisecond, 5*time.Millisecond, nil)

	var ok atomic.Int64
	s.Schedule("fails", func() error { return errors.New("storage unavailable") })
	s.Schedule("panics", func() error { panic("boom") })
	for i := 0; i < 3; i++ {
		s.Schedule("succeeds", func() error {
			ok.Add(1)
			return nil
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
	require.Equal(t, int64(3), ok.Load())

	// The scheduler keeps working after a panic.
	done := make(chan struct{})
	s.Schedule("after-panic", func() error {
		close(done)
		return nil
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler stopped running actions after a panic")
	}
}

func TestWait_RespectsContext(t *testing.T) {
	s := New(time.Hour, 2*time.Hour, nil)
	s.Schedule("never", func() error { return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.Wait(ctx), context.DeadlineExceeded)
	require.Equal(t, 1, s.Pending())
}
