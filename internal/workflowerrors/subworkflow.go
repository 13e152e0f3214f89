package workflowerrors

// SubWorkflowError is returned to a parent workflow when one of its sub-workflows failed. The error of
// the sub-workflow is its cause.
type SubWorkflowError struct {
	cause error
}

func (e *SubWorkflowError) Error() string {
	return e.cause.Error()
}

func (e *SubWorkflowError) Unwrap() error {
	return e.cause
}

// NewSubWorkflowError restores the recorded failure of a sub-workflow.
func NewSubWorkflowError(err *Error) error {
	if err == nil {
		return &SubWorkflowError{cause: &Error{Message: "sub-workflow failed"}}
	}

	return &SubWorkflowError{cause: ToError(err)}
}
