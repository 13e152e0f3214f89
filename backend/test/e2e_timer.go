package test

import (
	"context"
	"testing"
	"time"

	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/client"
	"github.com/cschleiden/go-orchestrator/worker"
	"github.com/cschleiden/go-orchestrator/workflow"
	"github.com/stretchr/testify/require"
)

var e2eTimerTests = []backendTest{
	{
		name: "Timer/Fires",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
			wf := func(ctx workflow.Context) (time.Duration, error) {
				start := workflow.Now(ctx)

				if err := workflow.Sleep(ctx, 200*time.Millisecond); err != nil {
					return 0, err
				}

				return workflow.Now(ctx).Sub(start), nil
			}
			register(t, ctx, w, []any{wf}, nil)

			output, err := runWorkflowWithResult[time.Duration](t, ctx, c, wf, nil)

			require.NoError(t, err)
			require.GreaterOrEqual(t, output, 200*time.Millisecond)
		},
	},
	{
		name: "Timer/ParallelTimers",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
			wf := func(ctx workflow.Context) (int, error) {
				t1 := workflow.ScheduleTimer(ctx, 300*time.Millisecond)
				t2 := workflow.ScheduleTimer(ctx, 100*time.Millisecond)

				if _, err := t1.Get(ctx); err != nil {
					return 0, err
				}

				if _, err := t2.Get(ctx); err != nil {
					return 0, err
				}

				return 2, nil
			}
			register(t, ctx, w, []any{wf}, nil)

			output, err := runWorkflowWithResult[int](t, ctx, c, wf, nil)

			require.NoError(t, err)
			require.Equal(t, 2, output)
		},
	},
	{
		name: "Timer/WithActivity",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
			a := func(context.Context) (int, error) {
				return 21, nil
			}
			wf := func(ctx workflow.Context) (int, error) {
				timer := workflow.ScheduleTimer(ctx, 100*time.Millisecond)

				r, err := workflow.ExecuteActivity[int](ctx, a).Get(ctx)
				if err != nil {
					return 0, err
				}

				if _, err := timer.Get(ctx); err != nil {
					return 0, err
				}

				return r * 2, nil
			}
			register(t, ctx, w, []any{wf}, []any{a})

			output, err := runWorkflowWithResult[int](t, ctx, c, wf, nil)

			require.NoError(t, err)
			require.Equal(t, 42, output)
		},
	},
}
