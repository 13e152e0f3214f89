package doubling

import (
	"context"
	"testing"
	"time"

	"github.com/cschleiden/go-orchestrator/backend/sqlite"
	"github.com/cschleiden/go-orchestrator/client"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/cschleiden/go-orchestrator/worker"
	"github.com/stretchr/testify/require"
)

func startWorker(t *testing.T, ctx context.Context, w *worker.Worker) {
	t.Helper()

	ctx, cancel := context.WithCancel(ctx)
	require.NoError(t, w.Start(ctx))

	t.Cleanup(func() {
		cancel()
		require.NoError(t, w.WaitForCompletion())
	})
}

func Test_RootWorkflow(t *testing.T) {
	ActivityDelay = 10 * time.Millisecond

	ctx := context.Background()

	b := sqlite.NewInMemoryBackend()
	t.Cleanup(func() { b.Close() })

	options := worker.DefaultOptions
	options.WorkflowPollingInterval = 10 * time.Millisecond
	options.ActivityPollingInterval = 10 * time.Millisecond

	w := worker.New(b, &options)
	require.NoError(t, Register(w))

	secondOptions := options
	secondOptions.AppID = core.Queue(SecondAppID)

	w2 := worker.New(b, &secondOptions)
	require.NoError(t, RegisterChildren(w2))

	startWorker(t, ctx, w)
	startWorker(t, ctx, w2)

	c := client.New(b, client.WithRegistry(w.Registry()))

	id, err := c.ScheduleNewWorkflow(ctx, RootWorkflow, "2026-10-19T00:00:00Z")
	require.NoError(t, err)

	result, err := client.GetWorkflowResult[string](ctx, c, id, 30*time.Second)
	require.NoError(t, err)
	require.Equal(t, "2026-10-19T00:00:00Z", result)
}

func Test_ChildWorkflowNTimes_ContinuesAsNew(t *testing.T) {
	ActivityDelay = 0

	ctx := context.Background()

	b := sqlite.NewInMemoryBackend()
	t.Cleanup(func() { b.Close() })

	options := worker.DefaultOptions
	options.WorkflowPollingInterval = 10 * time.Millisecond
	options.ActivityPollingInterval = 10 * time.Millisecond

	w := worker.New(b, &options)
	require.NoError(t, RegisterChildren(w))
	startWorker(t, ctx, w)

	c := client.New(b)

	id, err := c.ScheduleNewWorkflow(ctx, ChildWorkflowNTimes, NTimesInput{N: 1, Times: 4})
	require.NoError(t, err)

	result, err := client.GetWorkflowResult[int](ctx, c, id, 30*time.Second)
	require.NoError(t, err)
	require.Equal(t, 16, result)
}

func Test_ChildWorkflowAsyncActivities_FailsWhenActivitiesRunSequentially(t *testing.T) {
	if testing.Short() {
		t.Skip()
	}

	ActivityDelay = 1100 * time.Millisecond

	ctx := context.Background()

	b := sqlite.NewInMemoryBackend()
	t.Cleanup(func() { b.Close() })

	options := worker.DefaultOptions
	options.WorkflowPollingInterval = 10 * time.Millisecond
	options.ActivityPollingInterval = 10 * time.Millisecond
	options.MaxParallelActivityTasks = 1

	w := worker.New(b, &options)
	require.NoError(t, RegisterChildren(w))
	startWorker(t, ctx, w)

	c := client.New(b)

	id, err := c.ScheduleNewWorkflow(ctx, ChildWorkflowAsyncActivities, 2)
	require.NoError(t, err)

	_, err = client.GetWorkflowResult[int](ctx, c, id, 30*time.Second)
	require.ErrorContains(t, err, "activities did not run in parallel")
}
