package instances

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/backend/converter"
	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/cschleiden/go-orchestrator/internal/historycache"
	"github.com/cschleiden/go-orchestrator/internal/metrics"
	"github.com/cschleiden/go-orchestrator/internal/workflowerrors"
	"github.com/cschleiden/go-orchestrator/registry"
	"github.com/cschleiden/go-orchestrator/workflow"
	"github.com/cschleiden/go-orchestrator/workflow/executor"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func DoubleActivity(ctx context.Context, n int) (int, error) {
	return n * 2, nil
}

func doubleWorkflow(ctx workflow.Context, n int) (int, error) {
	return workflow.ExecuteActivity[int](ctx, DoubleActivity, n).Get(ctx)
}

func newManager(t *testing.T) (*Manager, *backend.MockBackend, *historycache.Cache, *clock.Mock) {
	t.Helper()

	b := backend.NewMockBackend(t)
	b.On("Logger").Return(slog.New(slog.DiscardHandler))
	b.On("Metrics").Return(metrics.NewNoopMetricsClient())

	r := registry.New()
	require.NoError(t, r.RegisterWorkflow(doubleWorkflow))
	require.NoError(t, r.RegisterActivity(DoubleActivity))

	e := executor.NewExecutor(slog.New(slog.DiscardHandler), noop.NewTracerProvider().Tracer("test"), r, converter.DefaultConverter)
	c := historycache.New(metrics.NewNoopMetricsClient(), 16, time.Minute)
	clk := clock.NewMock()

	return NewManager(b, e, c, clk), b, c, clk
}

func startTask(t *testing.T, instance *core.WorkflowInstance, clk clock.Clock) *backend.WorkflowTask {
	input, err := converter.DefaultConverter.To(4)
	require.NoError(t, err)

	return &backend.WorkflowTask{
		ID:               "task-1",
		WorkflowInstance: instance,
		NewEvents: []*history.Event{
			history.NewPendingEvent(clk.Now(), history.EventType_OrchestratorStarted, &history.OrchestratorStartedAttributes{
				Name:  "doubleWorkflow",
				Input: input,
			}),
		},
	}
}

func completedTask(t *testing.T, instance *core.WorkflowInstance, lastSequenceID int64, clk clock.Clock) *backend.WorkflowTask {
	result, err := converter.DefaultConverter.To(8)
	require.NoError(t, err)

	return &backend.WorkflowTask{
		ID:               "task-2",
		WorkflowInstance: instance,
		LastSequenceID:   lastSequenceID,
		NewEvents: []*history.Event{
			history.NewPendingEvent(clk.Now(), history.EventType_TaskCompleted, &history.TaskCompletedAttributes{
				Result: result,
			}, history.ScheduleEventID(1)),
		},
	}
}

func Test_Manager_NewInstance(t *testing.T) {
	m, b, c, clk := newManager(t)
	instance := core.NewWorkflowInstance("instanceID", "executionID", core.QueueDefault)

	task := startTask(t, instance, clk)

	r, err := m.ExecuteTask(context.Background(), task)
	require.NoError(t, err)

	require.Equal(t, core.StatusRunning, r.Checkpoint.Status)
	require.Len(t, r.Checkpoint.Executed, 2)
	require.Len(t, r.Checkpoint.ActivityEvents, 1)
	require.Nil(t, r.Checkpoint.CompletedAt)
	require.Equal(t, r.Checkpoint.Executed, r.History)

	b.On("CompleteWorkflowTask", mock.Anything, task, r.Checkpoint).Return(nil).Once()
	require.NoError(t, m.CompleteTask(context.Background(), task, r))

	h, ok := c.Get(instance)
	require.True(t, ok)
	require.Len(t, h, 2)
}

func Test_Manager_UsesCachedHistory(t *testing.T) {
	m, b, _, clk := newManager(t)
	instance := core.NewWorkflowInstance("instanceID", "executionID", core.QueueDefault)

	task := startTask(t, instance, clk)
	r, err := m.ExecuteTask(context.Background(), task)
	require.NoError(t, err)

	b.On("CompleteWorkflowTask", mock.Anything, task, r.Checkpoint).Return(nil).Once()
	require.NoError(t, m.CompleteTask(context.Background(), task, r))

	clk.Add(time.Second)

	// No history is loaded from the backend
	task2 := completedTask(t, instance, 2, clk)
	r, err = m.ExecuteTask(context.Background(), task2)
	require.NoError(t, err)

	require.Equal(t, core.StatusCompleted, r.Checkpoint.Status)
	require.Equal(t, []byte("8"), []byte(r.Checkpoint.Output))
	require.NotNil(t, r.Checkpoint.CompletedAt)
	require.Equal(t, clk.Now(), *r.Checkpoint.CompletedAt)
}

func Test_Manager_LoadsHistoryOnCacheMiss(t *testing.T) {
	m, b, _, clk := newManager(t)
	instance := core.NewWorkflowInstance("instanceID", "executionID", core.QueueDefault)

	// Produce the history with another manager
	other, ob, _, _ := newManager(t)
	task := startTask(t, instance, clk)
	r, err := other.ExecuteTask(context.Background(), task)
	require.NoError(t, err)
	ob.AssertNotCalled(t, "CompleteWorkflowTask")

	b.On("GetWorkflowInstanceHistory", mock.Anything, instance, (*int64)(nil)).Return(r.History, nil).Once()

	r, err = m.ExecuteTask(context.Background(), completedTask(t, instance, 2, clk))
	require.NoError(t, err)
	require.Equal(t, core.StatusCompleted, r.Checkpoint.Status)
	require.Len(t, r.History, 4)
}

func Test_Manager_TopsUpCachedHistory(t *testing.T) {
	m, b, c, clk := newManager(t)
	instance := core.NewWorkflowInstance("instanceID", "executionID", core.QueueDefault)

	other, _, _, _ := newManager(t)
	r, err := other.ExecuteTask(context.Background(), startTask(t, instance, clk))
	require.NoError(t, err)

	// Cache only knows about the first event
	c.Store(instance, r.History[:1])

	b.On("GetWorkflowInstanceHistory", mock.Anything, instance, mock.MatchedBy(func(last *int64) bool {
		return last != nil && *last == 1
	})).Return(r.History[1:], nil).Once()

	r, err = m.ExecuteTask(context.Background(), completedTask(t, instance, 2, clk))
	require.NoError(t, err)
	require.Equal(t, core.StatusCompleted, r.Checkpoint.Status)
}

func Test_Manager_HistoryMismatch(t *testing.T) {
	m, b, _, clk := newManager(t)
	instance := core.NewWorkflowInstance("instanceID", "executionID", core.QueueDefault)

	other, _, _, _ := newManager(t)
	r, err := other.ExecuteTask(context.Background(), startTask(t, instance, clk))
	require.NoError(t, err)

	b.On("GetWorkflowInstanceHistory", mock.Anything, instance, (*int64)(nil)).Return(r.History[:1], nil).Once()

	_, err = m.ExecuteTask(context.Background(), completedTask(t, instance, 2, clk))
	require.ErrorContains(t, err, "task expects 2")
}

func Test_Manager_FailedWorkflowSerializesError(t *testing.T) {
	m, _, _, clk := newManager(t)
	instance := core.NewWorkflowInstance("instanceID", "executionID", core.QueueDefault)

	task := &backend.WorkflowTask{
		ID:               "task",
		WorkflowInstance: instance,
		NewEvents: []*history.Event{
			history.NewPendingEvent(clk.Now(), history.EventType_OrchestratorStarted, &history.OrchestratorStartedAttributes{
				Name: "unknown",
			}),
		},
	}

	r, err := m.ExecuteTask(context.Background(), task)
	require.NoError(t, err)
	require.Equal(t, core.StatusFailed, r.Checkpoint.Status)

	var wfErr workflowerrors.Error
	require.NoError(t, json.Unmarshal(r.Checkpoint.Error, &wfErr))
	require.Contains(t, wfErr.Message, "unknown workflow")
}

func Test_Manager_CompleteFailureEvictsCache(t *testing.T) {
	m, b, c, clk := newManager(t)
	instance := core.NewWorkflowInstance("instanceID", "executionID", core.QueueDefault)

	c.Store(instance, nil)

	task := startTask(t, instance, clk)
	r, err := m.ExecuteTask(context.Background(), task)
	require.NoError(t, err)

	b.On("CompleteWorkflowTask", mock.Anything, task, r.Checkpoint).Return(errors.New("storage unavailable")).Once()

	err = m.CompleteTask(context.Background(), task, r)
	require.ErrorContains(t, err, "storage unavailable")

	_, ok := c.Get(instance)
	require.False(t, ok)
}
