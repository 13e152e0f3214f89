package backend

import (
	"time"

	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/core"
)

// WorkflowTask represents work for one workflow execution slice.
type WorkflowTask struct {
	// ID is an identifier for this task. It's set by the backend
	ID string

	// WorkflowInstance is the workflow instance that this task is for
	WorkflowInstance *core.WorkflowInstance

	// LastSequenceID is the sequence ID of the newest event in the workflow instance's history
	LastSequenceID int64

	// NewEvents are new events since the last task execution. They are a snapshot taken when the task
	// was handed out, events arriving later are picked up by the next task.
	NewEvents []*history.Event

	// Backend specific data, only the producer of the task should rely on this.
	CustomData any
}

// ActivityTask represents one activity execution.
type ActivityTask struct {
	ID string

	WorkflowInstance *core.WorkflowInstance

	// Event is the TaskScheduled event of the activity
	Event *history.Event

	// Attempt counts how often the task has been handed out. Larger than 1 for redeliveries.
	Attempt int

	// Backend specific data, only the producer of the task should rely on this.
	CustomData any
}

// Checkpoint is the outcome of a workflow task as applied by the backend in a single atomic step.
type Checkpoint struct {
	// Status of the execution after the task
	Status core.Status

	// Executed are the events to append to the execution's history. They carry sequence ids.
	Executed []*history.Event

	// ActivityEvents are TaskScheduled events, each becomes an activity task
	ActivityEvents []*history.Event

	// TimerEvents are TimerFired events to deliver to the instance once they become visible
	TimerEvents []*history.Event

	// WorkflowEvents are events for other workflow executions: sub-workflow starts, completions for a
	// parent, and the start of a continued execution.
	WorkflowEvents []*history.WorkflowEvent

	// Output and Error are set for terminal executions
	Output []byte
	Error  []byte

	CompletedAt *time.Time
}

// Continuation returns the started event of the next execution if this checkpoint continues the
// instance as new.
func (c *Checkpoint) Continuation(instance *core.WorkflowInstance) *history.WorkflowEvent {
	if c.Status != core.StatusContinuedAsNew {
		return nil
	}

	for _, we := range c.WorkflowEvents {
		if we.WorkflowInstance.InstanceID == instance.InstanceID && we.HistoryEvent.Type == history.EventType_OrchestratorStarted {
			return we
		}
	}

	return nil
}
