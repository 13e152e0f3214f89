package command

import (
	"time"

	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/backend/payload"
	"github.com/cschleiden/go-orchestrator/core"
)

type ScheduleSubWorkflowCommand struct {
	command

	SubWorkflowInstance *core.WorkflowInstance

	Name  string
	Input payload.Payload

	// AppID routes the sub-workflow to another application, empty for the local one
	AppID string
}

var _ Command = (*ScheduleSubWorkflowCommand)(nil)

func NewScheduleSubWorkflowCommand(
	id int64, parentInstance *core.WorkflowInstance, subWorkflowInstance *core.WorkflowInstance, name string, input payload.Payload, appID string,
) *ScheduleSubWorkflowCommand {
	return &ScheduleSubWorkflowCommand{
		command: command{
			state:    CommandState_Pending,
			id:       id,
			instance: parentInstance,
		},
		SubWorkflowInstance: subWorkflowInstance,
		Name:                name,
		Input:               input,
		AppID:               appID,
	}
}

func (*ScheduleSubWorkflowCommand) Type() string {
	return "ScheduleSubWorkflow"
}

func (c *ScheduleSubWorkflowCommand) Commit(now time.Time) *CommandResult {
	c.commit()

	scheduledEvent := history.NewPendingEvent(
		now,
		history.EventType_SubOrchestrationScheduled,
		&history.SubOrchestrationScheduledAttributes{
			SubWorkflowInstance: c.SubWorkflowInstance,
			Name:                c.Name,
			Input:               c.Input,
			AppID:               c.AppID,
		},
		history.ScheduleEventID(c.id),
		history.WithID(c.eventID(history.EventType_SubOrchestrationScheduled)),
	)

	startedEvent := history.NewPendingEvent(
		now,
		history.EventType_OrchestratorStarted,
		&history.OrchestratorStartedAttributes{
			Name:  c.Name,
			Input: c.Input,
		},
		history.WithID(c.eventID(history.EventType_OrchestratorStarted)),
	)

	return &CommandResult{
		Status: core.StatusRunning,
		Events: []*history.Event{scheduledEvent},
		WorkflowEvents: []*history.WorkflowEvent{
			{
				WorkflowInstance: c.SubWorkflowInstance,
				HistoryEvent:     startedEvent,
			},
		},
	}
}
