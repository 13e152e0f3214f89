package workflow

import (
	"fmt"

	a "github.com/cschleiden/go-orchestrator/internal/args"
	"github.com/cschleiden/go-orchestrator/internal/continueasnew"
	"github.com/cschleiden/go-orchestrator/internal/workflowstate"
)

// ContinueAsNew restarts the current workflow with the given input. The returned error has to be
// returned from the workflow function:
//
//	return 0, workflow.ContinueAsNew(ctx, times-1)
func ContinueAsNew(ctx Context, args ...any) error {
	wfState := workflowstate.WorkflowState(ctx)

	input, err := a.ArgsToInput(wfState.Converter(), args...)
	if err != nil {
		return fmt.Errorf("converting input for continuing workflow execution: %w", err)
	}

	return continueasnew.NewError(input)
}
