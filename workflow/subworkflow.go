package workflow

import (
	"fmt"
	"strconv"

	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/core"
	a "github.com/cschleiden/go-orchestrator/internal/args"
	"github.com/cschleiden/go-orchestrator/internal/command"
	"github.com/cschleiden/go-orchestrator/internal/fn"
	"github.com/cschleiden/go-orchestrator/internal/workflowstate"
)

type SubWorkflowOptions struct {
	// InstanceID of the sub-workflow. Generated if empty.
	InstanceID string

	// AppID routes the sub-workflow to the workers of another application. If empty the sub-workflow
	// runs in the application of the parent and has to be registered locally.
	AppID string
}

var DefaultSubWorkflowOptions = SubWorkflowOptions{}

// CreateSubWorkflowInstance starts a sub-workflow and returns a future for its result. workflow is
// either the workflow function or its registered name.
func CreateSubWorkflowInstance[TResult any](ctx Context, options SubWorkflowOptions, workflow Workflow, args ...any) Future[TResult] {
	wfState := workflowstate.WorkflowState(ctx)

	name := fn.Name(workflow)

	queue := wfState.Instance().Queue
	if options.AppID != "" {
		queue = core.Queue(options.AppID)
		if err := core.ValidQueue(queue); err != nil {
			return failedFuture[TResult](fmt.Errorf("app id %q: %w", options.AppID, err))
		}
	} else {
		if _, err := wfState.Registry().GetWorkflow(name); err != nil {
			return failedFuture[TResult](err)
		}
	}

	if err := fn.ReturnTypeMatch[TResult](workflow); err != nil {
		return failedFuture[TResult](err)
	}

	if err := paramsMatch(workflow, args...); err != nil {
		return failedFuture[TResult](err)
	}

	input, err := a.ArgsToInput(wfState.Converter(), args...)
	if err != nil {
		return failedFuture[TResult](fmt.Errorf("converting workflow input: %w", err))
	}

	return schedule[TResult](ctx, history.EventType_SubOrchestrationScheduled, name, func(wfState *workflowstate.WfState, scheduleEventID int64) command.Command {
		parent := wfState.Instance()

		// Ids are derived from the parent's execution so that replays produce the same ids
		instanceID := options.InstanceID
		if instanceID == "" {
			instanceID = history.DeterministicID(parent.InstanceID, parent.ExecutionID, "sub", strconv.FormatInt(scheduleEventID, 10))
		}
		executionID := history.DeterministicID(instanceID, parent.ExecutionID, strconv.FormatInt(scheduleEventID, 10), "execution")

		subInstance := core.NewSubWorkflowInstance(instanceID, executionID, queue, parent, scheduleEventID)

		return command.NewScheduleSubWorkflowCommand(scheduleEventID, parent, subInstance, name, input, options.AppID)
	})
}
