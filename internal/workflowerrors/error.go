package workflowerrors

import (
	"errors"
)

// Error is the serializable form of an error raised by a workflow or an activity. It is what ends up in
// TaskFailed, SubOrchestrationFailed, and ExecutionFailed events.
type Error struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`

	Stacktrace string `json:"stacktrace,omitempty"`
	Cause      *Error `json:"cause,omitempty"`
}

func (we *Error) Error() string {
	return we.Message
}

func (we *Error) Unwrap() error {
	if we == nil || we.Cause == nil {
		return nil
	}

	return we.Cause
}

func (we *Error) Stack() string {
	return we.Stacktrace
}

var _ error = (*Error)(nil)

// FromError wraps the given error into a workflow error which can be persisted and restored
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	// If this is already a workflow error, just return it, do not wrap again
	if e, ok := err.(*Error); ok {
		return e
	}

	e := &Error{
		Type:    getErrorType(err),
		Message: err.Error(),
	}

	// The prefix is added again when the error is restored
	if nd, ok := err.(*NonDeterminismError); ok {
		e.Message = nd.Message
	}

	if stackTracer, ok := err.(interface{ Stack() string }); ok {
		e.Stacktrace = stackTracer.Stack()
	}

	if cause := errors.Unwrap(err); cause != nil {
		e.Cause = FromError(cause)
	}

	return e
}

// ToError converts the given workflow error back into a regular error. Known error types are restored,
// everything else stays an *Error.
func ToError(err *Error) error {
	if err == nil {
		return nil
	}

	e := *err

	switch err.Type {
	case getErrorType(&PanicError{}):
		return &PanicError{message: e.Message, stacktrace: e.Stacktrace}

	case getErrorType(&NonDeterminismError{}):
		return &NonDeterminismError{Message: e.Message}

	case getErrorType(&SubWorkflowError{}):
		if e.Cause != nil {
			return &SubWorkflowError{cause: ToError(e.Cause)}
		}

		return &e

	default:
		return &e
	}
}
