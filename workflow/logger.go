package workflow

import (
	"log/slog"

	"github.com/cschleiden/go-orchestrator/internal/workflowstate"
)

// Logger returns a logger for workflow code. Messages are dropped while the workflow is replaying.
func Logger(ctx Context) *slog.Logger {
	wfState := workflowstate.WorkflowState(ctx)
	return wfState.Logger()
}
