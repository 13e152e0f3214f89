package backend

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cschleiden/go-orchestrator/backend/converter"
	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/backend/metrics"
	"github.com/cschleiden/go-orchestrator/core"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrInstanceNotFound      = errors.New("workflow instance not found")
	ErrInstanceAlreadyExists = errors.New("workflow instance already exists")

	// ErrTaskNotFound is returned when completing or extending a task that is no longer owned by the
	// caller, for example because it was already completed by another worker.
	ErrTaskNotFound = errors.New("task not found")
)

const TracerName = "go-orchestrator"

// Backend is the history store and the task queues a worker operates on.
//
//go:generate mockery --name=Backend --inpackage
type Backend interface {
	// CreateWorkflowInstance creates a new workflow instance. event is the OrchestratorStarted event of
	// the first execution.
	CreateWorkflowInstance(ctx context.Context, instance *core.WorkflowInstance, event *history.Event) error

	// GetWorkflowInstanceState returns the state of the current execution of the given instance, or
	// ErrInstanceNotFound.
	GetWorkflowInstanceState(ctx context.Context, instanceID string) (*core.InstanceState, error)

	// GetWorkflowInstanceHistory returns the history of the given workflow execution. When lastSequenceID
	// is given, only events after that event are returned. Otherwise the full history is returned.
	GetWorkflowInstanceHistory(ctx context.Context, instance *core.WorkflowInstance, lastSequenceID *int64) ([]*history.Event, error)

	// GetWorkflowTask returns a pending workflow task or nil if there are no pending workflow executions
	// in the given queues. The instance is locked until the task is completed or the lock expires.
	GetWorkflowTask(ctx context.Context, queues []core.Queue) (*WorkflowTask, error)

	// ExtendWorkflowTask extends the lock of a workflow task
	ExtendWorkflowTask(ctx context.Context, task *WorkflowTask) error

	// CompleteWorkflowTask checkpoints a workflow task retrieved using GetWorkflowTask and releases the
	// instance lock.
	CompleteWorkflowTask(ctx context.Context, task *WorkflowTask, checkpoint *Checkpoint) error

	// GetActivityTask returns a pending activity task or nil if there are no pending activities
	GetActivityTask(ctx context.Context, queues []core.Queue) (*ActivityTask, error)

	// ExtendActivityTask extends the lock of an activity task
	ExtendActivityTask(ctx context.Context, task *ActivityTask) error

	// CompleteActivityTask completes an activity task retrieved using GetActivityTask. The result event
	// is delivered to the owning workflow instance. Returns ErrTaskNotFound if the task was already
	// completed.
	CompleteActivityTask(ctx context.Context, task *ActivityTask, result *history.Event) error

	// Logger returns the configured logger for the backend
	Logger() *slog.Logger

	// Tracer returns the configured tracer for the backend
	Tracer() trace.Tracer

	// Metrics returns the configured metrics client for the backend
	Metrics() metrics.Client

	// Converter returns the configured converter for the backend
	Converter() converter.Converter

	// Options returns the configured options for the backend
	Options() *Options

	// Close closes any underlying resources
	Close() error
}
