package workflow

import (
	"time"

	"github.com/cschleiden/go-orchestrator/internal/workflowstate"
)

// Now returns the current workflow time. It starts at the time the execution was started and moves
// forward to the completion time of every activity, timer, or sub-workflow result the workflow
// receives. Unlike time.Now it returns the same value at the same point when the workflow is replayed.
func Now(ctx Context) time.Time {
	wfState := workflowstate.WorkflowState(ctx)
	return wfState.Time()
}
