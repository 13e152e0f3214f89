package historycache

import (
	"context"
	"testing"
	"time"

	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/cschleiden/go-orchestrator/internal/metrics"
	"github.com/stretchr/testify/require"
)

func events(n int) []*history.Event {
	r := make([]*history.Event, 0, n)
	for i := 1; i <= n; i++ {
		r = append(r, history.NewHistoryEvent(int64(i), time.Now(), history.EventType_TaskScheduled, &history.TaskScheduledAttributes{}))
	}
	return r
}

func Test_Cache_StoreAndGet(t *testing.T) {
	c := New(metrics.NewNoopMetricsClient(), 1, time.Second*10)

	i := core.NewWorkflowInstance("instanceID", "executionID", core.QueueDefault)
	i2 := core.NewWorkflowInstance("instanceID2", "executionID2", core.QueueDefault)

	h := events(2)
	c.Store(i, h)

	rh, ok := c.Get(i)
	require.True(t, ok)
	require.Equal(t, h, rh)

	// Store another history, this should evict the first one
	c.Store(i2, events(1))

	_, ok = c.Get(i)
	require.False(t, ok)

	_, ok = c.Get(i2)
	require.True(t, ok)
}

func Test_Cache_ExecutionsAreSeparate(t *testing.T) {
	c := New(metrics.NewNoopMetricsClient(), 8, time.Second*10)

	i := core.NewWorkflowInstance("instanceID", "executionID", core.QueueDefault)
	c.Store(i, events(3))

	_, ok := c.Get(i.Continued("executionID2"))
	require.False(t, ok)
}

func Test_Cache_Evict(t *testing.T) {
	c := New(metrics.NewNoopMetricsClient(), 128, time.Second*10)

	i := core.NewWorkflowInstance("instanceID", "executionID", core.QueueDefault)
	c.Store(i, events(1))
	require.Equal(t, 1, c.c.Len())

	c.Evict(i)
	require.Equal(t, 0, c.c.Len())

	h, ok := c.Get(i)
	require.False(t, ok)
	require.Nil(t, h)
}

func Test_Cache_AutoEviction(t *testing.T) {
	c := New(metrics.NewNoopMetricsClient(), 128, time.Millisecond)

	i := core.NewWorkflowInstance("instanceID", "executionID", core.QueueDefault)
	c.Store(i, events(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.StartEviction(ctx)

	require.Eventually(t, func() bool {
		_, ok := c.Get(i)
		return !ok
	}, time.Second, time.Millisecond*5)
}
