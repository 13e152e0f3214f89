package workflow

import (
	"github.com/cschleiden/go-orchestrator/internal/workflowerrors"
	"github.com/cschleiden/go-orchestrator/registry"
)

type (
	Error            = workflowerrors.Error
	PanicError       = workflowerrors.PanicError
	SubWorkflowError = workflowerrors.SubWorkflowError
)

var (
	ErrUnknownWorkflow = registry.ErrUnknownWorkflow
	ErrUnknownActivity = registry.ErrUnknownActivity
)

// NewError wraps the given error into a workflow error
func NewError(err error) error {
	if err == nil {
		return nil
	}

	return workflowerrors.FromError(err)
}
