package activity

import (
	"context"

	"github.com/cschleiden/go-orchestrator/core"
	"github.com/cschleiden/go-orchestrator/internal/activity"
)

// Instance returns the workflow instance this activity is executed for, or nil if ctx does not belong to
// an activity execution.
func Instance(ctx context.Context) *core.WorkflowInstance {
	if as := activity.GetActivityState(ctx); as != nil {
		return as.Instance
	}

	return nil
}

// Attempt returns how often the activity task has been handed out. Activities are delivered at least
// once, an attempt larger than 1 means a previous execution did not complete.
func Attempt(ctx context.Context) int {
	if as := activity.GetActivityState(ctx); as != nil {
		return as.Attempt
	}

	return 0
}
