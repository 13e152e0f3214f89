package test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/client"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/cschleiden/go-orchestrator/internal/workflowerrors"
	"github.com/cschleiden/go-orchestrator/worker"
	"github.com/cschleiden/go-orchestrator/workflow"
	"github.com/stretchr/testify/require"
)

type backendTest struct {
	name string
	f    func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend)
}

// EndToEndBackendTest runs workflows through a worker and a client on top of the backend returned by setup.
func EndToEndBackendTest(t *testing.T, setup func() backend.Backend, teardown func(b backend.Backend)) {
	tests := []backendTest{
		{
			name: "SimpleWorkflow",
			f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
				wf := func(ctx workflow.Context, msg string) (string, error) {
					return msg + " world", nil
				}
				register(t, ctx, w, []any{wf}, nil)

				output, err := runWorkflowWithResult[string](t, ctx, c, wf, "hello")

				require.NoError(t, err)
				require.Equal(t, "hello world", output)
			},
		},
		{
			name: "WorkflowWithoutInput",
			f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
				wf := func(ctx workflow.Context) (int, error) {
					return 42, nil
				}
				register(t, ctx, w, []any{wf}, nil)

				output, err := runWorkflowWithResult[int](t, ctx, c, wf, nil)

				require.NoError(t, err)
				require.Equal(t, 42, output)
			},
		},
		{
			name: "UnregisteredWorkflow",
			f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
				register(t, ctx, w, nil, nil)

				output, err := runWorkflowWithResult[string](t, ctx, c, "unknown", "hello")

				require.Zero(t, output)
				require.ErrorContains(t, err, "unknown workflow")
			},
		},
		{
			name: "UnregisteredWorkflow_RejectedByClientWithRegistry",
			f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
				register(t, ctx, w, nil, nil)

				rc := client.New(b, client.WithRegistry(w.Registry()))

				_, err := rc.ScheduleNewWorkflow(ctx, "unknown", nil)
				require.ErrorIs(t, err, client.ErrUnknownWorkflow)
			},
		},
		{
			name: "WorkflowError",
			f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
				wf := func(ctx workflow.Context) (int, error) {
					return 0, errors.New("workflow error")
				}
				register(t, ctx, w, []any{wf}, nil)

				instanceID := runWorkflow(t, ctx, c, wf, nil)

				s, err := c.WaitForCompletion(ctx, instanceID, 10*time.Second)
				require.NoError(t, err)
				require.Equal(t, core.StatusFailed, s.Status)
				require.EqualError(t, s.Error, "workflow error")
				require.Empty(t, s.Output)
			},
		},
		{
			name: "WorkflowPanic",
			f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
				wf := func(ctx workflow.Context) (int, error) {
					panic("workflow panic")
				}
				register(t, ctx, w, []any{wf}, nil)

				_, err := runWorkflowWithResult[int](t, ctx, c, wf, nil)

				var perr *workflow.PanicError
				require.ErrorAs(t, err, &perr)
			},
		},
		{
			name: "NonDeterminism_FailsInstance",
			f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
				a1 := func(context.Context) (int, error) { return 1, nil }
				a2 := func(context.Context) (int, error) { return 2, nil }

				passes := 0
				wf := func(ctx workflow.Context) (int, error) {
					passes++

					// Schedules a different activity when replayed
					if passes == 1 {
						return workflow.ExecuteActivity[int](ctx, a1).Get(ctx)
					}

					return workflow.ExecuteActivity[int](ctx, a2).Get(ctx)
				}
				register(t, ctx, w, []any{wf}, []any{a1, a2})

				instanceID := runWorkflow(t, ctx, c, wf, nil)

				s, err := c.WaitForCompletion(ctx, instanceID, 10*time.Second)
				require.NoError(t, err)
				require.Equal(t, core.StatusFailed, s.Status)

				var nderr *workflowerrors.NonDeterminismError
				require.ErrorAs(t, s.Error, &nderr)
			},
		},
		{
			name: "WaitForCompletion_TimesOut",
			f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
				wf := func(ctx workflow.Context) (int, error) {
					if err := workflow.Sleep(ctx, 2*time.Second); err != nil {
						return 0, err
					}

					return 1, nil
				}
				register(t, ctx, w, []any{wf}, nil)

				instanceID := runWorkflow(t, ctx, c, wf, nil)

				s, err := c.WaitForCompletion(ctx, instanceID, 500*time.Millisecond)
				require.NoError(t, err)
				require.Equal(t, core.StatusTimedOut, s.Status)

				// Waiting does not affect the instance
				s, err = c.WaitForCompletion(ctx, instanceID, 10*time.Second)
				require.NoError(t, err)
				require.Equal(t, core.StatusCompleted, s.Status)
				require.Equal(t, "1", string(s.Output))
			},
		},
		{
			name: "WaitForCompletion_NotFound",
			f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
				register(t, ctx, w, nil, nil)

				_, err := c.WaitForCompletion(ctx, "does-not-exist", time.Second)
				require.ErrorIs(t, err, client.ErrInstanceNotFound)
			},
		},
		{
			name: "SubWorkflow_Simple",
			f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
				swf := func(ctx workflow.Context, i int) (int, error) {
					return i * 2, nil
				}
				wf := func(ctx workflow.Context) (int, error) {
					return workflow.CreateSubWorkflowInstance[int](ctx, workflow.DefaultSubWorkflowOptions, swf, 21).Get(ctx)
				}
				register(t, ctx, w, []any{wf, swf}, nil)

				output, err := runWorkflowWithResult[int](t, ctx, c, wf, nil)

				require.NoError(t, err)
				require.Equal(t, 42, output)
			},
		},
		{
			name: "SubWorkflow_PropagatesError",
			f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
				swf := func(ctx workflow.Context) (int, error) {
					return 0, errors.New("sub-workflow error")
				}
				wf := func(ctx workflow.Context) (string, error) {
					_, err := workflow.CreateSubWorkflowInstance[int](ctx, workflow.DefaultSubWorkflowOptions, swf).Get(ctx)
					if err != nil {
						return "caught: " + err.Error(), nil
					}

					return "", nil
				}
				register(t, ctx, w, []any{wf, swf}, nil)

				output, err := runWorkflowWithResult[string](t, ctx, c, wf, nil)

				require.NoError(t, err)
				require.Equal(t, "caught: sub-workflow error", output)
			},
		},
		{
			name: "SubWorkflow_UnknownLocalWorkflowFailsFast",
			f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
				wf := func(ctx workflow.Context) (bool, error) {
					_, err := workflow.CreateSubWorkflowInstance[int](ctx, workflow.DefaultSubWorkflowOptions, "unknown").Get(ctx)
					return errors.Is(err, workflow.ErrUnknownWorkflow), nil
				}
				register(t, ctx, w, []any{wf}, nil)

				output, err := runWorkflowWithResult[bool](t, ctx, c, wf, nil)

				require.NoError(t, err)
				require.True(t, output)
			},
		},
		{
			name: "SubWorkflow_ExistingInstanceIDFails",
			f: func(t *testing.T, ctx context.Context, c *client.Client, w *worker.Worker, b backend.Backend) {
				swf := func(ctx workflow.Context) (int, error) {
					return 1, nil
				}
				wf := func(ctx workflow.Context, id string) (bool, error) {
					_, err := workflow.CreateSubWorkflowInstance[int](ctx, workflow.SubWorkflowOptions{InstanceID: id}, swf).Get(ctx)
					return err != nil, nil
				}
				register(t, ctx, w, []any{wf, swf}, nil)

				existing := runWorkflow(t, ctx, c, swf, nil)
				_, err := client.GetWorkflowResult[int](ctx, c, existing, 10*time.Second)
				require.NoError(t, err)

				output, err := runWorkflowWithResult[bool](t, ctx, c, wf, existing)

				require.NoError(t, err)
				require.True(t, output)
			},
		},
	}

	tests = append(tests, e2eActivityTests...)
	tests = append(tests, e2eTimerTests...)
	tests = append(tests, e2eContinueAsNewTests...)
	tests = append(tests, e2eQueueTests...)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := setup()
			ctx := context.Background()
			ctx, cancel := context.WithCancel(ctx)

			c := client.New(b)
			w := worker.New(b, testWorkerOptions(core.QueueDefault))

			tt.f(t, ctx, c, w, b)

			cancel()
			if err := w.WaitForCompletion(); err != nil {
				t.Log("Worker did not stop in time")
				t.FailNow()
			}

			if teardown != nil {
				teardown(b)
			}
		})
	}
}

func testWorkerOptions(appID core.Queue) *worker.Options {
	options := worker.DefaultOptions
	options.WorkflowPollingInterval = 20 * time.Millisecond
	options.ActivityPollingInterval = 20 * time.Millisecond
	options.AppID = appID

	return &options
}

func register(t *testing.T, ctx context.Context, w *worker.Worker, workflows []any, activities []any) {
	for _, wf := range workflows {
		require.NoError(t, w.RegisterWorkflow(wf))
	}

	for _, a := range activities {
		require.NoError(t, w.RegisterActivity(a))
	}

	err := w.Start(ctx)
	require.NoError(t, err)
}

// startWorker starts an additional worker for the given application. Call the returned function to stop it.
func startWorker(t *testing.T, ctx context.Context, b backend.Backend, appID core.Queue, workflows []any, activities []any) func() {
	ctx, cancel := context.WithCancel(ctx)

	w := worker.New(b, testWorkerOptions(appID))
	register(t, ctx, w, workflows, activities)

	return func() {
		cancel()
		require.NoError(t, w.WaitForCompletion())
	}
}

func runWorkflow(t *testing.T, ctx context.Context, c *client.Client, wf any, input any, opts ...client.ScheduleOption) string {
	instanceID, err := c.ScheduleNewWorkflow(ctx, wf, input, opts...)
	require.NoError(t, err)

	return instanceID
}

func runWorkflowWithResult[T any](t *testing.T, ctx context.Context, c *client.Client, wf any, input any, opts ...client.ScheduleOption) (T, error) {
	instanceID := runWorkflow(t, ctx, c, wf, input, opts...)
	return client.GetWorkflowResult[T](ctx, c, instanceID, time.Second*10)
}
