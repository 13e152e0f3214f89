package registry

import "errors"

var (
	ErrUnknownWorkflow = errors.New("unknown workflow")
	ErrUnknownActivity = errors.New("unknown activity")

	// ErrRegistryFrozen is returned when registering with a registry that is already used by a worker.
	ErrRegistryFrozen = errors.New("registry is frozen")
)

type ErrInvalidWorkflow struct {
	msg string
}

func (e *ErrInvalidWorkflow) Error() string {
	return e.msg
}

type ErrWorkflowAlreadyRegistered struct {
	msg string
}

func (e *ErrWorkflowAlreadyRegistered) Error() string {
	return e.msg
}

type ErrInvalidActivity struct {
	msg string
}

func (e *ErrInvalidActivity) Error() string {
	return e.msg
}

type ErrActivityAlreadyRegistered struct {
	msg string
}

func (e *ErrActivityAlreadyRegistered) Error() string {
	return e.msg
}
