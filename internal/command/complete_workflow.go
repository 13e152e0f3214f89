package command

import (
	"time"

	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/backend/payload"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/cschleiden/go-orchestrator/internal/workflowerrors"
)

type CompleteWorkflowCommand struct {
	command

	Result payload.Payload
	Error  *workflowerrors.Error
}

var _ Command = (*CompleteWorkflowCommand)(nil)

func NewCompleteWorkflowCommand(instance *core.WorkflowInstance, result payload.Payload, err *workflowerrors.Error) *CompleteWorkflowCommand {
	return &CompleteWorkflowCommand{
		command: command{
			state:    CommandState_Pending,
			instance: instance,
		},
		Result: result,
		Error:  err,
	}
}

func (*CompleteWorkflowCommand) Type() string {
	return "CompleteWorkflow"
}

func (c *CompleteWorkflowCommand) Commit(now time.Time) *CommandResult {
	c.commit()

	r := &CommandResult{}

	if c.Error != nil {
		r.Status = core.StatusFailed
		r.Events = []*history.Event{
			history.NewPendingEvent(
				now,
				history.EventType_ExecutionFailed,
				&history.ExecutionFailedAttributes{
					Error: c.Error,
				},
				history.WithID(c.eventID(history.EventType_ExecutionFailed)),
			),
		}
	} else {
		r.Status = core.StatusCompleted
		r.Events = []*history.Event{
			history.NewPendingEvent(
				now,
				history.EventType_ExecutionCompleted,
				&history.ExecutionCompletedAttributes{
					Result: c.Result,
				},
				history.WithID(c.eventID(history.EventType_ExecutionCompleted)),
			),
		}
	}

	if c.instance.SubWorkflow() {
		// Notify parent workflow instance at the schedule event id it reserved
		var historyEvent *history.Event

		if c.Error != nil {
			historyEvent = history.NewPendingEvent(
				now,
				history.EventType_SubOrchestrationFailed,
				&history.SubOrchestrationFailedAttributes{
					Error: c.Error,
				},
				history.ScheduleEventID(c.instance.ParentEventID),
				history.WithID(c.eventID(history.EventType_SubOrchestrationFailed)),
			)
		} else {
			historyEvent = history.NewPendingEvent(
				now,
				history.EventType_SubOrchestrationCompleted,
				&history.SubOrchestrationCompletedAttributes{
					Result: c.Result,
				},
				history.ScheduleEventID(c.instance.ParentEventID),
				history.WithID(c.eventID(history.EventType_SubOrchestrationCompleted)),
			)
		}

		r.WorkflowEvents = []*history.WorkflowEvent{
			{
				WorkflowInstance: c.instance.Parent,
				HistoryEvent:     historyEvent,
			},
		}
	}

	return r
}
