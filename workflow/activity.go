package workflow

import (
	"fmt"
	"reflect"

	"github.com/cschleiden/go-orchestrator/backend/history"
	a "github.com/cschleiden/go-orchestrator/internal/args"
	"github.com/cschleiden/go-orchestrator/internal/command"
	"github.com/cschleiden/go-orchestrator/internal/fn"
	"github.com/cschleiden/go-orchestrator/internal/workflowstate"
)

// ExecuteActivity schedules the given activity to be executed. activity is either the activity
// function or its registered name. Activities run in the application of the workflow instance.
//
// Unknown activities fail the returned future without scheduling anything.
func ExecuteActivity[TResult any](ctx Context, activity Activity, args ...any) Future[TResult] {
	// Check return type
	if err := fn.ReturnTypeMatch[TResult](activity); err != nil {
		return failedFuture[TResult](err)
	}

	// Check arguments
	if err := paramsMatch(activity, args...); err != nil {
		return failedFuture[TResult](err)
	}

	wfState := workflowstate.WorkflowState(ctx)

	name := fn.Name(activity)
	if _, err := wfState.Registry().GetActivity(name); err != nil {
		return failedFuture[TResult](err)
	}

	input, err := a.ArgsToInput(wfState.Converter(), args...)
	if err != nil {
		return failedFuture[TResult](fmt.Errorf("converting activity input: %w", err))
	}

	return schedule[TResult](ctx, history.EventType_TaskScheduled, name, func(wfState *workflowstate.WfState, scheduleEventID int64) command.Command {
		return command.NewScheduleActivityCommand(scheduleEventID, wfState.Instance(), name, input)
	})
}

// paramsMatch checks args against the parameters of f, skipping a leading context parameter
func paramsMatch(f any, args ...any) error {
	t := reflect.TypeOf(f)
	if t == nil || t.Kind() != reflect.Func {
		return nil
	}

	skip := 0
	if t.NumIn() > 0 && (a.IsContext(t.In(0)) || a.IsOwnContext(t.In(0))) {
		skip = 1
	}

	return fn.ParamsMatch(f, skip, args...)
}
