package test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cschleiden/go-orchestrator/activity"
	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/client"
	"github.com/cschleiden/go-orchestrator/worker"
	"github.com/cschleiden/go-orchestrator/workflow"
	"github.com/stretchr/testify/require"
)

type CustomError struct {
	msg string
}

func (e *CustomError) Error() string {
	return e.msg
}

var e2eActivityTests = []backendTest{
	{
		name: "Activity_Simple",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
			double := func(_ context.Context, i int) (int, error) {
				return i * 2, nil
			}
			wf := func(ctx workflow.Context, i int) (int, error) {
				return workflow.ExecuteActivity[int](ctx, double, i).Get(ctx)
			}
			register(t, ctx, w, []any{wf}, []any{double})

			output, err := runWorkflowWithResult[int](t, ctx, c, wf, 4)

			require.NoError(t, err)
			require.Equal(t, 8, output)
		},
	},
	{
		name: "Activity_FanOut",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
			var running, maxRunning atomic.Int32

			double := func(_ context.Context, i int) (int, error) {
				n := running.Add(1)
				defer running.Add(-1)

				for {
					m := maxRunning.Load()
					if n <= m || maxRunning.CompareAndSwap(m, n) {
						break
					}
				}

				time.Sleep(200 * time.Millisecond)
				return i * 2, nil
			}
			wf := func(ctx workflow.Context, i int) (int, error) {
				f1 := workflow.ExecuteActivity[int](ctx, double, i)
				f2 := workflow.ExecuteActivity[int](ctx, double, i)

				r1, err := f1.Get(ctx)
				if err != nil {
					return 0, err
				}

				r2, err := f2.Get(ctx)
				if err != nil {
					return 0, err
				}

				return r1 + r2, nil
			}
			register(t, ctx, w, []any{wf}, []any{double})

			output, err := runWorkflowWithResult[int](t, ctx, c, wf, 4)

			require.NoError(t, err)
			require.Equal(t, 16, output)

			// Both doublings ran at the same time
			require.Equal(t, int32(2), maxRunning.Load())
		},
	},
	{
		name: "Activity_ResultsAreDeliveredInAwaitOrder",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
			a := func(_ context.Context, s string) (string, error) {
				if s == "a" {
					// Completes after b
					time.Sleep(300 * time.Millisecond)
				}

				return s, nil
			}
			wf := func(ctx workflow.Context) (string, error) {
				fa := workflow.ExecuteActivity[string](ctx, a, "a")
				fb := workflow.ExecuteActivity[string](ctx, a, "b")

				ra, err := fa.Get(ctx)
				if err != nil {
					return "", err
				}

				rb, err := fb.Get(ctx)
				if err != nil {
					return "", err
				}

				return ra + rb, nil
			}
			register(t, ctx, w, []any{wf}, []any{a})

			output, err := runWorkflowWithResult[string](t, ctx, c, wf, nil)

			require.NoError(t, err)
			require.Equal(t, "ab", output)
		},
	},
	{
		name: "Activity_Error",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
			a := func(context.Context) error {
				return &CustomError{msg: "custom error"}
			}
			wf := func(ctx workflow.Context) (string, error) {
				_, err := workflow.ExecuteActivity[any](ctx, a).Get(ctx)

				var werr *workflow.Error
				if errors.As(err, &werr) {
					return "caught: " + werr.Error(), nil
				}

				return "", err
			}
			register(t, ctx, w, []any{wf}, []any{a})

			output, err := runWorkflowWithResult[string](t, ctx, c, wf, nil)

			require.NoError(t, err)
			require.Equal(t, "caught: custom error", output)
		},
	},
	{
		name: "Activity_UncaughtErrorFailsWorkflow",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
			a := func(context.Context) (int, error) {
				return 0, errors.New("activity error")
			}
			wf := func(ctx workflow.Context) (int, error) {
				return workflow.ExecuteActivity[int](ctx, a).Get(ctx)
			}
			register(t, ctx, w, []any{wf}, []any{a})

			output, err := runWorkflowWithResult[int](t, ctx, c, wf, nil)

			require.Zero(t, output)
			require.EqualError(t, err, "activity error")
		},
	},
	{
		name: "Activity_Panic",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
			a := func(context.Context) error {
				panic("activity panic")
			}
			wf := func(ctx workflow.Context) (bool, error) {
				_, err := workflow.ExecuteActivity[int](ctx, a).Get(ctx)

				var perr *workflow.PanicError
				return errors.As(err, &perr), nil
			}
			register(t, ctx, w, []any{wf}, []any{a})

			output, err := runWorkflowWithResult[bool](t, ctx, c, wf, nil)

			require.NoError(t, err)
			require.True(t, output, "error should be PanicError")
		},
	},
	{
		name: "Activity_Unregistered",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
			a := func(context.Context) (int, error) { return 1, nil }
			wf := func(ctx workflow.Context) (int, error) {
				return workflow.ExecuteActivity[int](ctx, a).Get(ctx)
			}
			register(t, ctx, w, []any{wf}, nil)

			output, err := runWorkflowWithResult[int](t, ctx, c, wf, nil)

			require.Zero(t, output)
			require.ErrorContains(t, err, "unknown activity")
		},
	},
	{
		name: "Activity_ArgumentMismatch",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
			a := func(context.Context, int, int) error { return nil }
			wf := func(ctx workflow.Context) (int, error) {
				return workflow.ExecuteActivity[int](ctx, a, 42).Get(ctx)
			}
			register(t, ctx, w, []any{wf}, nil)

			output, err := runWorkflowWithResult[int](t, ctx, c, wf, nil)

			require.Zero(t, output)
			require.ErrorContains(t, err, "mismatched argument count: expected 2, got 1")
		},
	},
	{
		name: "Activity_ReceivesInstanceAndAttempt",
		f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
			var attempts atomic.Int32

			a := func(ctx context.Context) (string, error) {
				attempts.Store(int32(activity.Attempt(ctx)))
				return activity.Instance(ctx).InstanceID, nil
			}
			wf := func(ctx workflow.Context) (string, error) {
				return workflow.ExecuteActivity[string](ctx, a).Get(ctx)
			}
			register(t, ctx, w, []any{wf}, []any{a})

			instanceID := runWorkflow(t, ctx, c, wf, nil)

			output, err := client.GetWorkflowResult[string](ctx, c, instanceID, 10*time.Second)
			require.NoError(t, err)
			require.Equal(t, instanceID, output)
			require.Equal(t, int32(1), attempts.Load())
		},
	},
}
