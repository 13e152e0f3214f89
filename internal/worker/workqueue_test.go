package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testTask struct {
	ID int
}

func TestNewWorkQueue(t *testing.T) {
	t.Run("unlimited parallelism", func(t *testing.T) {
		wq := newWorkQueue[testTask](0, nil)

		require.NotNil(t, wq.tasks)
		require.Nil(t, wq.slots)
	})

	t.Run("limited parallelism", func(t *testing.T) {
		wq := newWorkQueue[testTask](5, nil)

		require.NotNil(t, wq.slots)
		require.Equal(t, 5, cap(wq.slots))
	})

	t.Run("negative max parallel tasks treated as unlimited", func(t *testing.T) {
		wq := newWorkQueue[testTask](-1, nil)

		require.Nil(t, wq.slots)
	})
}

func TestWorkQueue_Reserve(t *testing.T) {
	t.Run("unlimited parallelism", func(t *testing.T) {
		wq := newWorkQueue[testTask](0, nil)

		for i := 0; i < 100; i++ {
			require.NoError(t, wq.reserve(context.Background()))
		}
	})

	t.Run("blocks when full", func(t *testing.T) {
		wq := newWorkQueue[testTask](1, nil)
		require.NoError(t, wq.reserve(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		require.ErrorIs(t, wq.reserve(ctx), context.DeadlineExceeded)
	})

	t.Run("release frees slot", func(t *testing.T) {
		wq := newWorkQueue[testTask](1, nil)
		require.NoError(t, wq.reserve(context.Background()))

		wq.release()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		require.NoError(t, wq.reserve(ctx))
	})
}

func TestWorkQueue_Add(t *testing.T) {
	t.Run("delivers task", func(t *testing.T) {
		wq := newWorkQueue[testTask](0, nil)

		task := &testTask{ID: 1}

		go func() {
			require.NoError(t, wq.add(context.Background(), task))
		}()

		select {
		case got := <-wq.tasks:
			require.Equal(t, task, got)
		case <-time.After(time.Second):
			require.FailNow(t, "task not delivered")
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		wq := newWorkQueue[testTask](0, nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		require.ErrorIs(t, wq.add(ctx, &testTask{ID: 1}), context.Canceled)
	})
}

func TestWorkQueue_ReleaseUnlimited(t *testing.T) {
	wq := newWorkQueue[testTask](0, nil)

	require.NotPanics(t, func() {
		wq.release()
	})
}

func TestWorkQueue_ReportsInFlight(t *testing.T) {
	var reported []int64
	wq := newWorkQueue[testTask](2, func(n int64) {
		reported = append(reported, n)
	})

	require.NoError(t, wq.reserve(context.Background()))
	require.NoError(t, wq.reserve(context.Background()))
	wq.release()
	require.NoError(t, wq.reserve(context.Background()))
	wq.release()
	wq.release()

	require.Equal(t, []int64{1, 2, 1, 2, 1, 0}, reported)
	require.Equal(t, int64(0), wq.inFlight.Load())
}
