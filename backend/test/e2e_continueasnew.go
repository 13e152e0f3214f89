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

type doubleInput struct {
	Value int `json:"value"`
	Times int `json:"times"`
}

var e2eContinueAsNewTests = []backendTest{
	{
		name: "ContinueAsNew/RestartsWorkflowInstance",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
			wf := func(ctx workflow.Context, run int) (int, error) {
				run = run + 1
				if run < 3 {
					return 0, workflow.ContinueAsNew(ctx, run)
				}

				return run, nil
			}
			register(t, ctx, w, []any{wf}, nil)

			instanceID := runWorkflow(t, ctx, c, wf, 0)

			r, err := client.GetWorkflowResult[int](ctx, c, instanceID, time.Second*10)
			require.NoError(t, err)
			require.Equal(t, 3, r)

			s, err := b.GetWorkflowInstanceState(ctx, instanceID)
			require.NoError(t, err)
			require.Equal(t, core.StatusCompleted, s.Status)
			require.Equal(t, "2", string(s.Input))
		},
	},
	{
		name: "ContinueAsNew/DoubleActivity",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
			double := func(_ context.Context, i int) (int, error) {
				return i * 2, nil
			}
			wf := func(ctx workflow.Context, in doubleInput) (int, error) {
				r, err := workflow.ExecuteActivity[int](ctx, double, in.Value).Get(ctx)
				if err != nil {
					return 0, err
				}

				if in.Times > 1 {
					return 0, workflow.ContinueAsNew(ctx, doubleInput{Value: r, Times: in.Times - 1})
				}

				return r, nil
			}
			register(t, ctx, w, []any{wf}, []any{double})

			output, err := runWorkflowWithResult[int](t, ctx, c, wf, doubleInput{Value: 3, Times: 4})

			require.NoError(t, err)
			require.Equal(t, 3*16, output)
		},
	},
	{
		name: "ContinueAsNew/SubWorkflow",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
			swf := func(ctx workflow.Context, run int) (int, error) {
				l := workflow.Logger(ctx)

				run = run + 1
				if run < 3 {
					l.Debug("continue as new", "run", run)
					return 0, workflow.ContinueAsNew(ctx, run)
				}

				return run, nil
			}
			wf := func(ctx workflow.Context) (int, error) {
				return workflow.CreateSubWorkflowInstance[int](ctx, workflow.DefaultSubWorkflowOptions, swf, 0).Get(ctx)
			}
			register(t, ctx, w, []any{wf, swf}, nil)

			output, err := runWorkflowWithResult[int](t, ctx, c, wf, nil)

			require.NoError(t, err)
			require.Equal(t, 3, output)
		},
	},
}
