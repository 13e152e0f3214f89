package core

import (
	"time"
)

type Status int

const (
	StatusRunning Status = iota
	StatusCompleted
	StatusFailed
	StatusContinuedAsNew

	// StatusTimedOut is only ever observed by clients waiting for an instance. It is never stored.
	StatusTimedOut
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "Running"
	case StatusCompleted:
		return "Completed"
	case StatusFailed:
		return "Failed"
	case StatusContinuedAsNew:
		return "ContinuedAsNew"
	case StatusTimedOut:
		return "TimedOut"
	default:
		return "Unknown"
	}
}

// Terminal returns true if an instance in this status will not make any more progress.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// InstanceState is the stored state of a workflow instance's current execution.
type InstanceState struct {
	Instance *WorkflowInstance

	WorkflowName string

	Status Status

	// Input of the current execution.
	Input []byte

	// Output of the workflow, set once the instance is completed.
	Output []byte

	// Error is the serialized workflow error, set once the instance failed.
	Error []byte

	CreatedAt   time.Time
	CompletedAt *time.Time
}
