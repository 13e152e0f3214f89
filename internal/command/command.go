package command

import (
	"strconv"
	"time"

	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/core"
)

type CommandState int

// Pending -> Committed
const (
	CommandState_Pending CommandState = iota
	CommandState_Committed
)

func (cs CommandState) String() string {
	switch cs {
	case CommandState_Pending:
		return "Pending"
	case CommandState_Committed:
		return "Committed"
	default:
		return "Unknown"
	}
}

// Command is a decision taken by workflow code during a replay pass that has not been recorded yet.
type Command interface {
	// ID is the schedule event id reserved for the command, 0 for commands completing the workflow
	ID() int64

	// Commit turns the command into events. now is the time of the workflow task.
	Commit(now time.Time) *CommandResult

	State() CommandState

	Type() string
}

type CommandResult struct {
	// Status the workflow instance transitions to
	Status core.Status

	// Events to append to the history of the instance
	Events []*history.Event

	// ActivityEvents are events that are dispatched as activity tasks
	ActivityEvents []*history.Event

	// TimerEvents are delivered to the instance once they become visible
	TimerEvents []*history.Event

	// WorkflowEvents are delivered to other workflow instances
	WorkflowEvents []*history.WorkflowEvent
}

type command struct {
	state CommandState

	id int64

	instance *core.WorkflowInstance
}

func (c *command) commit() {
	if c.state != CommandState_Pending {
		panic("command already committed")
	}

	c.state = CommandState_Committed
}

func (c *command) ID() int64 {
	return c.id
}

func (c *command) State() CommandState {
	return c.state
}

// eventID returns the id of an event produced by the command. Replaying the same history yields the
// same ids.
func (c *command) eventID(eventType history.EventType) string {
	return history.DeterministicID(c.instance.InstanceID, c.instance.ExecutionID, strconv.FormatInt(c.id, 10), eventType.String())
}
