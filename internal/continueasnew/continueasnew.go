package continueasnew

import (
	"github.com/cschleiden/go-orchestrator/backend/payload"
)

type Error struct {
	Input payload.Payload
}

var _ error = (*Error)(nil)

func (e *Error) Error() string {
	return "ContinueAsNew"
}

func NewError(input payload.Payload) error {
	return &Error{
		Input: input,
	}
}
