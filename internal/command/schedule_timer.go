package command

import (
	"time"

	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/core"
)

type ScheduleTimerCommand struct {
	command

	fireAt time.Time
}

var _ Command = (*ScheduleTimerCommand)(nil)

func NewScheduleTimerCommand(id int64, instance *core.WorkflowInstance, fireAt time.Time) *ScheduleTimerCommand {
	return &ScheduleTimerCommand{
		command: command{
			state:    CommandState_Pending,
			id:       id,
			instance: instance,
		},
		fireAt: fireAt,
	}
}

func (*ScheduleTimerCommand) Type() string {
	return "ScheduleTimer"
}

func (c *ScheduleTimerCommand) Commit(now time.Time) *CommandResult {
	c.commit()

	return &CommandResult{
		Status: core.StatusRunning,
		Events: []*history.Event{
			history.NewPendingEvent(
				now,
				history.EventType_TimerCreated,
				&history.TimerCreatedAttributes{
					FireAt: c.fireAt,
				},
				history.ScheduleEventID(c.id),
				history.WithID(c.eventID(history.EventType_TimerCreated)),
			),
		},
		// Timer fired event is delivered to the instance once the fire time is reached
		TimerEvents: []*history.Event{
			history.NewPendingEvent(
				now,
				history.EventType_TimerFired,
				&history.TimerFiredAttributes{
					ScheduledAt: now,
					FireAt:      c.fireAt,
				},
				history.ScheduleEventID(c.id),
				history.VisibleAt(c.fireAt),
				history.WithID(c.eventID(history.EventType_TimerFired)),
			),
		},
	}
}
