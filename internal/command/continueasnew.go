package command

import (
	"time"

	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/backend/payload"
	"github.com/cschleiden/go-orchestrator/core"
)

type ContinueAsNewCommand struct {
	command

	Name  string
	Input payload.Payload

	// ContinuedExecutionID is the execution id of the next history segment
	ContinuedExecutionID string
}

var _ Command = (*ContinueAsNewCommand)(nil)

func NewContinueAsNewCommand(instance *core.WorkflowInstance, name string, input payload.Payload) *ContinueAsNewCommand {
	return &ContinueAsNewCommand{
		command: command{
			state:    CommandState_Pending,
			instance: instance,
		},
		Name:                 name,
		Input:                input,
		ContinuedExecutionID: history.DeterministicID(instance.InstanceID, instance.ExecutionID, "continued"),
	}
}

func (*ContinueAsNewCommand) Type() string {
	return "ContinueAsNew"
}

func (c *ContinueAsNewCommand) Commit(now time.Time) *CommandResult {
	c.commit()

	continuedInstance := c.instance.Continued(c.ContinuedExecutionID)

	return &CommandResult{
		Status: core.StatusContinuedAsNew,
		Events: []*history.Event{
			history.NewPendingEvent(
				now,
				history.EventType_ContinueAsNew,
				&history.ContinueAsNewAttributes{
					Input:                c.Input,
					ContinuedExecutionID: c.ContinuedExecutionID,
				},
				history.WithID(c.eventID(history.EventType_ContinueAsNew)),
			),
		},
		// The new execution starts with a fresh history. The parent is only notified once an execution
		// completes or fails.
		WorkflowEvents: []*history.WorkflowEvent{
			{
				WorkflowInstance: continuedInstance,
				HistoryEvent: history.NewPendingEvent(
					now,
					history.EventType_OrchestratorStarted,
					&history.OrchestratorStartedAttributes{
						Name:  c.Name,
						Input: c.Input,
					},
					history.WithID(history.DeterministicID(continuedInstance.InstanceID, continuedInstance.ExecutionID, history.EventType_OrchestratorStarted.String())),
				),
			},
		},
	}
}
