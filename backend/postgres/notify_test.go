package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/core"
	iworker "github.com/cschleiden/go-orchestrator/internal/worker"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNotifications_WorkflowTask(t *testing.T) {
	host := testHost(t)

	dbName := createDatabase(host)
	defer dropDatabase(host, dbName)

	b := newTestBackend(host, dbName, WithNotifications(true), WithNotificationTimeout(time.Minute))
	defer b.Close()

	require.Implements(t, (*iworker.BlockingBackend)(nil), b)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	instance := core.NewWorkflowInstance(uuid.NewString(), uuid.NewString(), core.QueueDefault)

	go func() {
		time.Sleep(200 * time.Millisecond)

		_ = b.CreateWorkflowInstance(context.Background(), instance, history.NewPendingEvent(
			time.Now(), history.EventType_OrchestratorStarted, &history.OrchestratorStartedAttributes{Name: "wf"}))
	}()

	start := time.Now()

	task, err := b.GetWorkflowTask(ctx, []core.Queue{core.QueueDefault})
	require.NoError(t, err)
	require.NotNil(t, task)
	require.Equal(t, instance.InstanceID, task.WorkflowInstance.InstanceID)
	require.Less(t, time.Since(start), 10*time.Second)
}

func TestNotifications_TimeoutReturnsNil(t *testing.T) {
	host := testHost(t)

	dbName := createDatabase(host)
	defer dropDatabase(host, dbName)

	b := newTestBackend(host, dbName, WithNotifications(true), WithNotificationTimeout(100*time.Millisecond))
	defer b.Close()

	task, err := b.GetActivityTask(context.Background(), []core.Queue{core.QueueDefault})
	require.NoError(t, err)
	require.Nil(t, task)
}

func TestWithoutNotifications_NotBlocking(t *testing.T) {
	host := testHost(t)

	dbName := createDatabase(host)
	defer dropDatabase(host, dbName)

	b := newTestBackend(host, dbName)
	defer b.Close()

	_, blocking := b.(iworker.BlockingBackend)
	require.False(t, blocking)
}
