package workflow

import (
	"fmt"
	"time"

	"github.com/cschleiden/go-orchestrator/backend/converter"
	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/internal/command"
	"github.com/cschleiden/go-orchestrator/internal/sync"
	"github.com/cschleiden/go-orchestrator/internal/workflowerrors"
	"github.com/cschleiden/go-orchestrator/internal/workflowstate"
)

type Future[T any] interface {
	// Get returns the value if set. Otherwise the workflow is suspended until the result is available.
	Get(ctx Context) (T, error)
}

// schedule reserves the next schedule event id for the call and returns a future for its result. When
// the call is replayed the recorded result is used, otherwise cmd is added as a new decision.
func schedule[TResult any](
	ctx Context, eventType history.EventType, name string, cmd func(wfState *workflowstate.WfState, scheduleEventID int64) command.Command,
) Future[TResult] {
	wfState := workflowstate.WorkflowState(ctx)

	scheduleEventID, recorded, err := wfState.Schedule(eventType, name)
	if err != nil {
		// Does not return, non-determinism cannot be handled by workflow code
		sync.Abort(ctx, err)
	}

	if !recorded {
		wfState.AddCommand(cmd(wfState, scheduleEventID))
	}

	f := sync.NewFuture[TResult]()

	if event, isNew, ok := wfState.Completion(scheduleEventID); ok {
		f.Set(func() (TResult, error) {
			if isNew {
				// Result was not seen by a previous pass
				wfState.SetReplaying(false)
			}

			wfState.AdvanceTime(completedAt(event))

			return decodeCompletion[TResult](wfState.Converter(), event)
		})
	}

	return f
}

// completedAt is the time a result became available to the workflow
func completedAt(event *history.Event) time.Time {
	if a, ok := event.Attributes.(*history.TimerFiredAttributes); ok {
		return a.FireAt
	}

	return event.Timestamp
}

func decodeCompletion[TResult any](cv converter.Converter, event *history.Event) (TResult, error) {
	var r TResult

	switch a := event.Attributes.(type) {
	case *history.TaskCompletedAttributes:
		if err := cv.From(a.Result, &r); err != nil {
			return r, fmt.Errorf("converting activity result: %w", err)
		}

	case *history.TaskFailedAttributes:
		return r, workflowerrors.ToError(a.Error)

	case *history.SubOrchestrationCompletedAttributes:
		if err := cv.From(a.Result, &r); err != nil {
			return r, fmt.Errorf("converting sub-workflow result: %w", err)
		}

	case *history.SubOrchestrationFailedAttributes:
		return r, workflowerrors.NewSubWorkflowError(a.Error)

	case *history.TimerFiredAttributes:
		// No result

	default:
		return r, fmt.Errorf("unexpected completion event %v", event.Type)
	}

	return r, nil
}

func failedFuture[TResult any](err error) Future[TResult] {
	return sync.NewFailedFuture[TResult](err)
}
