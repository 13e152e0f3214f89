package worker

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/backend/converter"
	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/cschleiden/go-orchestrator/internal/activity"
	"github.com/cschleiden/go-orchestrator/internal/metrics"
	"github.com/cschleiden/go-orchestrator/registry"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func DoubleActivity(ctx context.Context, n int) (int, error) {
	return n * 2, nil
}

func newActivityTaskWorker(t *testing.T) (*ActivityTaskWorker, *backend.MockBackend, *clock.Mock) {
	b := backend.NewMockBackend(t)
	b.On("Metrics").Return(metrics.NewNoopMetricsClient()).Maybe()

	r := registry.New()
	require.NoError(t, r.RegisterActivity(DoubleActivity))

	logger := slog.New(slog.DiscardHandler)
	clk := clock.NewMock()

	return &ActivityTaskWorker{
		backend:              b,
		activityTaskExecutor: activity.NewExecutor(logger, noop.NewTracerProvider().Tracer("test"), converter.DefaultConverter, r),
		clock:                clk,
		logger:               logger,
	}, b, clk
}

func activityTask(t *testing.T, name string, input any) *backend.ActivityTask {
	p, err := converter.DefaultConverter.To(input)
	require.NoError(t, err)

	return &backend.ActivityTask{
		ID:               "task",
		WorkflowInstance: core.NewWorkflowInstance("instanceID", "executionID", core.QueueDefault),
		Event: history.NewHistoryEvent(2, clock.NewMock().Now(), history.EventType_TaskScheduled, &history.TaskScheduledAttributes{
			Name:  name,
			Input: p,
		}, history.ScheduleEventID(1)),
		Attempt: 1,
	}
}

func TestActivityTaskWorker_Execute(t *testing.T) {
	atw, _, _ := newActivityTaskWorker(t)

	e, err := atw.Execute(context.Background(), activityTask(t, "DoubleActivity", 4))
	require.NoError(t, err)

	require.Equal(t, history.EventType_TaskCompleted, e.Type)
	require.Equal(t, int64(1), e.ScheduleEventID)
	require.Equal(t, []byte("8"), []byte(e.Attributes.(*history.TaskCompletedAttributes).Result))

	// Redelivered tasks produce the same event id
	e2, err := atw.Execute(context.Background(), activityTask(t, "DoubleActivity", 4))
	require.NoError(t, err)
	require.Equal(t, e.ID, e2.ID)
}

func TestActivityTaskWorker_ExecuteUnknownActivity(t *testing.T) {
	atw, _, _ := newActivityTaskWorker(t)

	e, err := atw.Execute(context.Background(), activityTask(t, "Unknown", 4))
	require.NoError(t, err)

	require.Equal(t, history.EventType_TaskFailed, e.Type)
	require.Contains(t, e.Attributes.(*history.TaskFailedAttributes).Error.Message, "unknown activity")
}

func TestActivityTaskWorker_CompleteDuplicate(t *testing.T) {
	atw, b, _ := newActivityTaskWorker(t)

	task := activityTask(t, "DoubleActivity", 4)
	e, err := atw.Execute(context.Background(), task)
	require.NoError(t, err)

	b.On("CompleteActivityTask", mock.Anything, task, e).Return(backend.ErrTaskNotFound).Once()

	require.NoError(t, atw.Complete(context.Background(), e, task))
}

func TestActivityTaskWorker_CompleteError(t *testing.T) {
	atw, b, _ := newActivityTaskWorker(t)

	task := activityTask(t, "DoubleActivity", 4)
	e, err := atw.Execute(context.Background(), task)
	require.NoError(t, err)

	b.On("CompleteActivityTask", mock.Anything, task, e).Return(errors.New("unavailable")).Once()

	require.ErrorContains(t, atw.Complete(context.Background(), e, task), "unavailable")
}
