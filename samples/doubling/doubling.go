// Package doubling contains the demo workflows. RootWorkflow exercises activities, sub-workflows in the
// same and in a second application, and sub-workflows that continue as new.
package doubling

import (
	"context"
	"fmt"
	"time"

	"github.com/cschleiden/go-orchestrator/activity"
	"github.com/cschleiden/go-orchestrator/worker"
	"github.com/cschleiden/go-orchestrator/workflow"
)

// SecondAppID is the application RootWorkflow routes its cross-app sub-workflows to.
const SecondAppID = "doubling-2"

// ActivityDelay is how long DoubleActivity takes.
var ActivityDelay = time.Second

// Two sequential runs of DoubleActivity with the default delay take at least this long
const parallelLimit = 2 * time.Second

type NTimesInput struct {
	N     int `json:"n"`
	Times int `json:"times"`
}

// Register registers all workflows and activities of the root application with w.
func Register(w *worker.Worker) error {
	if err := w.RegisterWorkflow(RootWorkflow); err != nil {
		return err
	}

	return RegisterChildren(w)
}

// RegisterChildren registers what the second application needs to run sub-workflows of RootWorkflow.
func RegisterChildren(w *worker.Worker) error {
	if err := w.RegisterWorkflow(ChildWorkflowAsyncActivities); err != nil {
		return err
	}

	if err := w.RegisterWorkflow(ChildWorkflowNTimes); err != nil {
		return err
	}

	return w.RegisterActivity(DoubleActivity)
}

func RootWorkflow(ctx workflow.Context, input string) (string, error) {
	logger := workflow.Logger(ctx)
	logger.Debug("Starting root workflow", "input", input)

	steps := []struct {
		name     string
		expected int
		run      func() (int, error)
	}{
		{"activity", 8, func() (int, error) {
			return workflow.ExecuteActivity[int](ctx, DoubleActivity, 4).Get(ctx)
		}},
		{"sub-workflow", 16, func() (int, error) {
			return workflow.CreateSubWorkflowInstance[int](ctx, workflow.DefaultSubWorkflowOptions, ChildWorkflowAsyncActivities, 4).Get(ctx)
		}},
		{"cross-app sub-workflow", 20, func() (int, error) {
			return workflow.CreateSubWorkflowInstance[int](ctx, workflow.SubWorkflowOptions{
				AppID: SecondAppID,
			}, ChildWorkflowAsyncActivities, 5).Get(ctx)
		}},
		{"continued sub-workflow", 32, func() (int, error) {
			return workflow.CreateSubWorkflowInstance[int](ctx, workflow.DefaultSubWorkflowOptions, ChildWorkflowNTimes, NTimesInput{N: 4, Times: 3}).Get(ctx)
		}},
		{"continued cross-app sub-workflow", 40, func() (int, error) {
			return workflow.CreateSubWorkflowInstance[int](ctx, workflow.SubWorkflowOptions{
				AppID: SecondAppID,
			}, ChildWorkflowNTimes, NTimesInput{N: 5, Times: 3}).Get(ctx)
		}},
	}

	for _, step := range steps {
		n, err := step.run()
		if err != nil {
			return "", fmt.Errorf("%s: %w", step.name, err)
		}

		if n != step.expected {
			return "", fmt.Errorf("%s: expected %d, got %d", step.name, step.expected, n)
		}
	}

	return input, nil
}

// ChildWorkflowAsyncActivities doubles n twice in parallel and returns the sum. It fails if the two
// activities took parallelLimit or longer, so they cannot have run in parallel.
func ChildWorkflowAsyncActivities(ctx workflow.Context, n int) (int, error) {
	start := workflow.Now(ctx)

	f1 := workflow.ExecuteActivity[int](ctx, DoubleActivity, n)
	f2 := workflow.ExecuteActivity[int](ctx, DoubleActivity, n)

	n1, err := f1.Get(ctx)
	if err != nil {
		return 0, err
	}

	n2, err := f2.Get(ctx)
	if err != nil {
		return 0, err
	}

	if took := workflow.Now(ctx).Sub(start); took >= parallelLimit {
		return 0, fmt.Errorf("activities did not run in parallel, took %v", took)
	}

	return n1 + n2, nil
}

// ChildWorkflowNTimes doubles input.N input.Times times, continuing as new after every doubling
func ChildWorkflowNTimes(ctx workflow.Context, input NTimesInput) (int, error) {
	n, err := workflow.ExecuteActivity[int](ctx, DoubleActivity, input.N).Get(ctx)
	if err != nil {
		return 0, err
	}

	if input.Times > 1 {
		return 0, workflow.ContinueAsNew(ctx, NTimesInput{N: n, Times: input.Times - 1})
	}

	return n, nil
}

func DoubleActivity(ctx context.Context, n int) (int, error) {
	activity.Logger(ctx).Debug("Doubling", "n", n, "attempt", activity.Attempt(ctx))

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-time.After(ActivityDelay):
	}

	return n * 2, nil
}
