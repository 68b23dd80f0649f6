package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunAtStartupFiresImmediately(t *testing.T) {
	s, err := New("UTC")
	require.NoError(t, err)

	var calls atomic.Int64
	s.Register(Job{
		Name:         "test-job",
		Interval:     time.Hour,
		RunAtStartup: true,
		Func: func(ctx context.Context) error {
			calls.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	s.Start(ctx)
	s.Wait()

	require.Equal(t, int64(1), calls.Load())
}

func TestOverlappingTicksAreSkipped(t *testing.T) {
	s, err := New("UTC")
	require.NoError(t, err)

	var running atomic.Int64
	var maxConcurrent atomic.Int64
	var calls atomic.Int64

	s.Register(Job{
		Name:     "slow-job",
		Interval: 5 * time.Millisecond,
		Func: func(ctx context.Context) error {
			calls.Add(1)
			n := running.Add(1)
			if n > maxConcurrent.Load() {
				maxConcurrent.Store(n)
			}
			time.Sleep(40 * time.Millisecond)
			running.Add(-1)
			return nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	s.Start(ctx)
	s.Wait()

	require.LessOrEqual(t, maxConcurrent.Load(), int64(1))
}
