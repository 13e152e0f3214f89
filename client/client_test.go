package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/backend/converter"
	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/cschleiden/go-orchestrator/internal/metrics"
	"github.com/cschleiden/go-orchestrator/internal/workflowerrors"
	"github.com/cschleiden/go-orchestrator/registry"
	"github.com/cschleiden/go-orchestrator/workflow"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func newMockBackend(t *testing.T) *backend.MockBackend {
	b := backend.NewMockBackend(t)
	b.On("Tracer").Return(noop.NewTracerProvider().Tracer("test")).Maybe()
	b.On("Converter").Return(converter.DefaultConverter).Maybe()
	b.On("Logger").Return(slog.New(slog.NewTextHandler(io.Discard, nil))).Maybe()
	b.On("Metrics").Return(metrics.NewNoopMetricsClient()).Maybe()
	return b
}

func wf(ctx workflow.Context, i int) (int, error) {
	return i, nil
}

func Test_Client_ScheduleNewWorkflow(t *testing.T) {
	b := newMockBackend(t)
	b.On("CreateWorkflowInstance", mock.Anything, mock.MatchedBy(func(i *core.WorkflowInstance) bool {
		return i.InstanceID == "id" && i.ExecutionID != "" && i.Queue == core.QueueDefault
	}), mock.MatchedBy(func(e *history.Event) bool {
		a, ok := e.Attributes.(*history.OrchestratorStartedAttributes)
		return ok && e.Type == history.EventType_OrchestratorStarted && a.Name == "wf" && string(a.Input) == "42"
	})).Return(nil)

	c := New(b)

	id, err := c.ScheduleNewWorkflow(context.Background(), wf, 42, WithInstanceID("id"))
	require.NoError(t, err)
	require.Equal(t, "id", id)
}

func Test_Client_ScheduleNewWorkflow_GeneratesID(t *testing.T) {
	b := newMockBackend(t)
	b.On("CreateWorkflowInstance", mock.Anything, mock.MatchedBy(func(i *core.WorkflowInstance) bool {
		return i.Queue == "billing"
	}), mock.Anything).Return(nil)

	c := New(b)

	id, err := c.ScheduleNewWorkflow(context.Background(), "wf", 42, WithAppID("billing"))
	require.NoError(t, err)
	require.NotEmpty(t, id)
}

func Test_Client_ScheduleNewWorkflow_ParamMismatch(t *testing.T) {
	b := newMockBackend(t)
	c := New(b)

	id, err := c.ScheduleNewWorkflow(context.Background(), wf, "foo")
	require.Empty(t, id)
	require.EqualError(t, err, "mismatched argument type: expected int, got string")
}

func Test_Client_ScheduleNewWorkflow_UnknownWorkflow(t *testing.T) {
	b := newMockBackend(t)

	r := registry.New()
	require.NoError(t, r.RegisterWorkflow(wf))

	c := New(b, WithRegistry(r))

	_, err := c.ScheduleNewWorkflow(context.Background(), "unknown", nil)
	require.ErrorIs(t, err, ErrUnknownWorkflow)
}

func Test_Client_ScheduleNewWorkflow_InvalidAppID(t *testing.T) {
	b := newMockBackend(t)
	c := New(b)

	_, err := c.ScheduleNewWorkflow(context.Background(), wf, 1, WithAppID("not valid"))
	require.Error(t, err)
}

func Test_Client_ScheduleNewWorkflow_AlreadyExists(t *testing.T) {
	b := newMockBackend(t)
	b.On("CreateWorkflowInstance", mock.Anything, mock.Anything, mock.Anything).Return(backend.ErrInstanceAlreadyExists)

	c := New(b)

	_, err := c.ScheduleNewWorkflow(context.Background(), wf, 1, WithInstanceID("id"))
	require.ErrorIs(t, err, backend.ErrInstanceAlreadyExists)
}

func state(status core.Status) *core.InstanceState {
	return &core.InstanceState{
		Instance:     core.NewWorkflowInstance("id", "exec", core.QueueDefault),
		WorkflowName: "wf",
		Status:       status,
		CreatedAt:    time.Now(),
	}
}

func Test_Client_WaitForCompletion_TimedOut(t *testing.T) {
	b := newMockBackend(t)
	b.On("GetWorkflowInstanceState", mock.Anything, "id").Return(state(core.StatusRunning), nil)

	c := New(b)

	s, err := c.WaitForCompletion(context.Background(), "id", time.Microsecond)
	require.NoError(t, err)
	require.Equal(t, core.StatusTimedOut, s.Status)
	require.Equal(t, "id", s.InstanceID)
}

func Test_Client_WaitForCompletion_NotFound(t *testing.T) {
	b := newMockBackend(t)
	b.On("GetWorkflowInstanceState", mock.Anything, "id").Return(nil, backend.ErrInstanceNotFound)

	c := New(b)

	s, err := c.WaitForCompletion(context.Background(), "id", time.Second)
	require.Nil(t, s)
	require.ErrorIs(t, err, ErrInstanceNotFound)
}

func Test_Client_WaitForCompletion_ContextCanceled(t *testing.T) {
	b := newMockBackend(t)
	b.On("GetWorkflowInstanceState", mock.Anything, "id").Return(state(core.StatusRunning), nil).Maybe()

	c := New(b)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.WaitForCompletion(ctx, "id", time.Second)
	require.ErrorIs(t, err, context.Canceled)
}

func Test_Client_GetWorkflowResult_Success(t *testing.T) {
	completed := state(core.StatusCompleted)
	completed.Output = []byte("42")

	b := newMockBackend(t)
	b.On("GetWorkflowInstanceState", mock.Anything, "id").Return(state(core.StatusRunning), nil).Once()
	b.On("GetWorkflowInstanceState", mock.Anything, "id").Return(completed, nil)

	c := New(b)

	r, err := GetWorkflowResult[int](context.Background(), c, "id", time.Second*5)
	require.NoError(t, err)
	require.Equal(t, 42, r)
}

func Test_Client_GetWorkflowResult_Failed(t *testing.T) {
	failed := state(core.StatusFailed)
	failed.Error, _ = json.Marshal(workflowerrors.FromError(errors.New("boom")))

	b := newMockBackend(t)
	b.On("GetWorkflowInstanceState", mock.Anything, "id").Return(failed, nil)

	c := New(b)

	r, err := GetWorkflowResult[int](context.Background(), c, "id", time.Second)
	require.Zero(t, r)
	require.EqualError(t, err, "boom")

	var werr *workflow.Error
	require.ErrorAs(t, err, &werr)
}

func Test_Client_GetWorkflowResult_NonDeterminism(t *testing.T) {
	failed := state(core.StatusFailed)
	failed.Error, _ = json.Marshal(workflowerrors.FromError(workflowerrors.NewNonDeterminismError("expected activity")))

	b := newMockBackend(t)
	b.On("GetWorkflowInstanceState", mock.Anything, "id").Return(failed, nil)

	c := New(b)

	_, err := GetWorkflowResult[int](context.Background(), c, "id", time.Second)

	var nderr *workflowerrors.NonDeterminismError
	require.ErrorAs(t, err, &nderr)
}

func Test_Client_GetWorkflowResult_TimedOut(t *testing.T) {
	b := newMockBackend(t)
	b.On("GetWorkflowInstanceState", mock.Anything, "id").Return(state(core.StatusRunning), nil)

	c := New(b)

	_, err := GetWorkflowResult[int](context.Background(), c, "id", time.Microsecond)
	require.ErrorIs(t, err, ErrWorkflowTimedOut)
}
