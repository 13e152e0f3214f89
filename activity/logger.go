package activity

import (
	"context"
	"log/slog"

	"github.com/cschleiden/go-orchestrator/internal/activity"
)

// Logger returns a logger with the workflow instance this activity is executed for set as default fields
func Logger(ctx context.Context) *slog.Logger {
	if as := activity.GetActivityState(ctx); as != nil {
		return as.Logger
	}

	return slog.Default()
}
