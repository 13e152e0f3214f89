package activity

import (
	"context"
	"log/slog"
	"testing"

	"github.com/cschleiden/go-orchestrator/core"
	"github.com/cschleiden/go-orchestrator/internal/activity"
	"github.com/stretchr/testify/require"
)

func Test_ActivityState(t *testing.T) {
	instance := core.NewWorkflowInstance("instanceID", "executionID", core.QueueDefault)
	ctx := activity.WithActivityState(context.Background(), activity.NewActivityState("id", "name", 2, instance, slog.Default()))

	require.Equal(t, instance, Instance(ctx))
	require.Equal(t, 2, Attempt(ctx))
	require.NotNil(t, Logger(ctx))
}

func Test_ActivityState_Missing(t *testing.T) {
	ctx := context.Background()

	require.Nil(t, Instance(ctx))
	require.Equal(t, 0, Attempt(ctx))
	require.Equal(t, slog.Default(), Logger(ctx))
}
