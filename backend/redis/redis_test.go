package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/backend/test"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// Every backend gets its own key prefix, tests can share a database.

func testAddress(t *testing.T) string {
	address := os.Getenv("REDIS_ADDR")
	if testing.Short() || address == "" {
		t.Skip("REDIS_ADDR not set")
	}

	return address
}

func newTestBackend(t *testing.T, address string) *redisBackend {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{address},
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	b, err := NewRedisBackend(client,
		WithKeyPrefix("test-"+uuid.NewString()),
		WithBlockTimeout(50*time.Millisecond),
		WithBackendOptions(
			backend.WithWorkflowLockTimeout(5*time.Second),
			backend.WithActivityLockTimeout(10*time.Second),
		),
	)
	require.NoError(t, err)

	return b
}

func cleanup(b backend.Backend) {
	rb := b.(*redisBackend)
	ctx := context.Background()

	iter := rb.rdb.Scan(ctx, 0, rb.keys.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		rb.rdb.Del(ctx, iter.Val())
	}

	rb.Close()
}

func Test_RedisBackend(t *testing.T) {
	address := testAddress(t)

	test.BackendTest(t, func() backend.Backend {
		return newTestBackend(t, address)
	}, cleanup)
}

func Test_EndToEndRedisBackend(t *testing.T) {
	address := testAddress(t)

	test.EndToEndBackendTest(t, func() backend.Backend {
		return newTestBackend(t, address)
	}, cleanup)
}

func Test_RedisBackend_RecoversAbandonedWorkflowTask(t *testing.T) {
	address := testAddress(t)
	ctx := context.Background()

	b := newTestBackend(t, address)
	b.options.WorkflowLockTimeout = 100 * time.Millisecond
	defer cleanup(b)

	queues := []core.Queue{core.QueueDefault}
	instance := core.NewWorkflowInstance(uuid.NewString(), uuid.NewString(), core.QueueDefault)
	require.NoError(t, b.CreateWorkflowInstance(ctx, instance, history.NewPendingEvent(
		time.Now(), history.EventType_OrchestratorStarted, &history.OrchestratorStartedAttributes{Name: "wf"},
	)))

	task, err := b.GetWorkflowTask(ctx, queues)
	require.NoError(t, err)
	require.NotNil(t, task)

	time.Sleep(200 * time.Millisecond)

	recovered, err := b.GetWorkflowTask(ctx, queues)
	require.NoError(t, err)
	require.NotNil(t, recovered)
	require.Equal(t, instance.InstanceID, recovered.WorkflowInstance.InstanceID)
	require.NotEqual(t, task.ID, recovered.ID)

	// The original holder lost the task
	require.ErrorIs(t, b.ExtendWorkflowTask(ctx, task), backend.ErrTaskNotFound)
}
