package workflow

import (
	"time"

	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/internal/command"
	"github.com/cschleiden/go-orchestrator/internal/workflowstate"
)

// ScheduleTimer schedules a timer that fires after the given delay, measured from the current workflow
// time.
func ScheduleTimer(ctx Context, delay time.Duration) Future[any] {
	fireAt := Now(ctx).Add(delay)

	return schedule[any](ctx, history.EventType_TimerCreated, "", func(wfState *workflowstate.WfState, scheduleEventID int64) command.Command {
		return command.NewScheduleTimerCommand(scheduleEventID, wfState.Instance(), fireAt)
	})
}

// Sleep suspends the workflow for the given duration.
func Sleep(ctx Context, d time.Duration) error {
	_, err := ScheduleTimer(ctx, d).Get(ctx)
	return err
}
