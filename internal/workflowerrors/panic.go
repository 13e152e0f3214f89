package workflowerrors

type PanicError struct {
	message    string
	stacktrace string
}

func (pe *PanicError) Error() string {
	return pe.message
}

func (pe *PanicError) Stack() string {
	return pe.stacktrace
}

// NewPanicError creates an error for a recovered panic, capturing the stack of the caller.
func NewPanicError(msg string) *PanicError {
	return &PanicError{
		message:    msg,
		stacktrace: stack(2),
	}
}
