package workflowerrors

import "errors"

// NonDeterminismError signals that replaying a workflow did not produce the same commands as the
// recorded history. It is fatal for the instance and never surfaced to workflow code.
type NonDeterminismError struct {
	Message string
}

func (e *NonDeterminismError) Error() string {
	return "non-determinism detected: " + e.Message
}

// IsNonDeterminism reports whether err, or any error it wraps, is a non-determinism failure. This also
// covers the serialized form read back from history. Failures of sub-workflows are not looked into, the
// parent itself is deterministic.
func IsNonDeterminism(err error) bool {
	ndType := getErrorType(&NonDeterminismError{})
	swType := getErrorType(&SubWorkflowError{})

	for e := err; e != nil; e = errors.Unwrap(e) {
		switch t := e.(type) {
		case *NonDeterminismError:
			return true
		case *SubWorkflowError:
			return false
		case *Error:
			switch t.Type {
			case ndType:
				return true
			case swType:
				return false
			}
		}
	}

	return false
}

func NewNonDeterminismError(msg string) *NonDeterminismError {
	return &NonDeterminismError{Message: msg}
}
