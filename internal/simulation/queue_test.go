package simulation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rpgo/loan-simulator/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_ProcessesAndRecoversPanics(t *testing.T) {
	pool := NewWorkerPool(2, 8, discardLogger())

	var handled atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)
	pool.Start(func(_ context.Context, task Task) {
		defer wg.Done()
		if task.SimulationID == "boom" {
			panic("engine exploded")
		}
		handled.Add(1)
	})

	ctx := context.Background()
	require.NoError(t, pool.Enqueue(ctx, Task{UserID: "u", SimulationID: "a"}))
	require.NoError(t, pool.Enqueue(ctx, Task{UserID: "u", SimulationID: "boom"}))
	require.NoError(t, pool.Enqueue(ctx, Task{UserID: "u", SimulationID: "b"}))
	wg.Wait()

	assert.Equal(t, int32(2), handled.Load())
	require.NoError(t, pool.Stop(ctx))
}

func TestWorkerPool_StopDrainsAndRejects(t *testing.T) {
	pool := NewWorkerPool(1, 4, discardLogger())
	var handled atomic.Int32
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, pool.Enqueue(ctx, Task{SimulationID: "sim"}))
	}
	pool.Start(func(context.Context, Task) { handled.Add(1) })

	require.NoError(t, pool.Stop(ctx))
	assert.Equal(t, int32(3), handled.Load())

	err := pool.Enqueue(ctx, Task{SimulationID: "late"})
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.NoError(t, pool.Stop(ctx), "second stop is a no-op")
}

func TestWorkerPool_StopTimeoutCancelsHandlers(t *testing.T) {
	pool := NewWorkerPool(1, 1, discardLogger())
	started := make(chan struct{})
	pool.Start(func(ctx context.Context, _ Task) {
		close(started)
		<-ctx.Done()
	})
	require.NoError(t, pool.Enqueue(context.Background(), Task{SimulationID: "slow"}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := pool.Stop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBackoff_Next(t *testing.T) {
	b := DefaultBackoff()
	var got []time.Duration
	var cur time.Duration
	for i := 0; i < 5; i++ {
		cur = b.Next(cur)
		got = append(got, cur)
	}
	assert.Equal(t, []time.Duration{
		1500 * time.Millisecond,
		2250 * time.Millisecond,
		3375 * time.Millisecond,
		5 * time.Second,
		5 * time.Second,
	}, got)
}

func TestPollUntilTerminal(t *testing.T) {
	fast := Backoff{Initial: time.Millisecond, Max: 2 * time.Millisecond, Multiplier: 2}

	t.Run("returns terminal status", func(t *testing.T) {
		calls := 0
		status, err := PollUntilTerminal(context.Background(), func(context.Context) (domain.SimulationStatus, error) {
			calls++
			if calls < 3 {
				return domain.StatusRunning, nil
			}
			return domain.StatusCompleted, nil
		}, fast)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, status)
		assert.Equal(t, 3, calls)
	})

	t.Run("propagates lookup errors", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := PollUntilTerminal(context.Background(), func(context.Context) (domain.SimulationStatus, error) {
			return "", boom
		}, fast)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("stops on context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		status, err := PollUntilTerminal(ctx, func(context.Context) (domain.SimulationStatus, error) {
			return domain.StatusRunning, nil
		}, fast)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, domain.StatusRunning, status)
	})
}
