package test

import (
	"context"
	"testing"
	"time"

	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/client"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/cschleiden/go-orchestrator/worker"
	"github.com/cschleiden/go-orchestrator/workflow"
	"github.com/stretchr/testify/require"
)

var e2eQueueTests = []backendTest{
	{
		name: "Queues/OnlyPullsWorkflowsFromOwnApp",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
			wf := func(ctx workflow.Context) (bool, error) {
				return true, nil
			}
			register(t, ctx, w, []any{wf}, nil)

			instanceID := runWorkflow(t, ctx, c, wf, nil, client.WithAppID("other"))

			s, err := c.WaitForCompletion(ctx, instanceID, 500*time.Millisecond)
			require.NoError(t, err)
			require.Equal(t, core.StatusTimedOut, s.Status)

			stop := startWorker(t, ctx, b, "other", []any{wf}, nil)
			defer stop()

			output, err := client.GetWorkflowResult[bool](ctx, c, instanceID, 10*time.Second)
			require.NoError(t, err)
			require.True(t, output)
		},
	},
	{
		name: "Queues/CrossAppSubWorkflow",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
			double := func(_ context.Context, i int) (int, error) {
				return i * 2, nil
			}
			swf := func(ctx workflow.Context, i int) (int, error) {
				return workflow.ExecuteActivity[int](ctx, double, i).Get(ctx)
			}
			wf := func(ctx workflow.Context, i int) (int, error) {
				return workflow.CreateSubWorkflowInstance[int](ctx, workflow.SubWorkflowOptions{
					AppID: "other",
				}, swf, i).Get(ctx)
			}

			// Sub-workflow and activity are only known to the other app
			register(t, ctx, w, []any{wf}, nil)

			stop := startWorker(t, ctx, b, "other", []any{swf}, []any{double})
			defer stop()

			output, err := runWorkflowWithResult[int](t, ctx, c, wf, 4)

			require.NoError(t, err)
			require.Equal(t, 8, output)
		},
	},
}
