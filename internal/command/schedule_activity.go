package command

import (
	"time"

	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/backend/payload"
	"github.com/cschleiden/go-orchestrator/core"
)

type ScheduleActivityCommand struct {
	command

	Name  string
	Input payload.Payload
}

var _ Command = (*ScheduleActivityCommand)(nil)

func NewScheduleActivityCommand(id int64, instance *core.WorkflowInstance, name string, input payload.Payload) *ScheduleActivityCommand {
	return &ScheduleActivityCommand{
		command: command{
			state:    CommandState_Pending,
			id:       id,
			instance: instance,
		},
		Name:  name,
		Input: input,
	}
}

func (*ScheduleActivityCommand) Type() string {
	return "ScheduleActivity"
}

func (c *ScheduleActivityCommand) Commit(now time.Time) *CommandResult {
	c.commit()

	event := history.NewPendingEvent(
		now,
		history.EventType_TaskScheduled,
		&history.TaskScheduledAttributes{
			Name:  c.Name,
			Input: c.Input,
		},
		history.ScheduleEventID(c.id),
		history.WithID(c.eventID(history.EventType_TaskScheduled)),
	)

	return &CommandResult{
		Status:         core.StatusRunning,
		Events:         []*history.Event{event},
		ActivityEvents: []*history.Event{event},
	}
}
