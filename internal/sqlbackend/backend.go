// Package sqlbackend implements the backend contract on top of database/sql. The sqlite, mysql, and
// postgres backends share it and only differ in their Dialect and schema migrations.
package sqlbackend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/backend/converter"
	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/backend/metrics"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/cschleiden/go-orchestrator/internal/metrickeys"
	"go.opentelemetry.io/otel/trace"
)

type Backend struct {
	db      *sql.DB
	dialect *Dialect
	options *backend.Options
}

var _ backend.Backend = (*Backend)(nil)

// New returns a backend operating on db. The schema has to exist. The backend takes ownership of db.
func New(db *sql.DB, dialect *Dialect, options *backend.Options) *Backend {
	return &Backend{
		db:      db,
		dialect: dialect,
		options: options,
	}
}

func (b *Backend) DB() *sql.DB {
	return b.db
}

func (b *Backend) Close() error {
	return b.db.Close()
}

func (b *Backend) Logger() *slog.Logger {
	return b.options.Logger
}

func (b *Backend) Tracer() trace.Tracer {
	return b.options.TracerProvider.Tracer(backend.TracerName)
}

func (b *Backend) Metrics() metrics.Client {
	return b.options.Metrics.WithTags(metrics.Tags{metrickeys.Backend: b.dialect.Name})
}

func (b *Backend) Converter() converter.Converter {
	return b.options.Converter
}

func (b *Backend) Options() *backend.Options {
	return b.options
}

func (b *Backend) begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := b.db.BeginTx(ctx, b.dialect.TxOptions)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}

	return tx, nil
}

func (b *Backend) CreateWorkflowInstance(ctx context.Context, instance *core.WorkflowInstance, event *history.Event) error {
	tx, err := b.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := b.createInstance(ctx, tx, instance, event); err != nil {
		return err
	}

	// Initial history is empty, store only new events
	if err := b.insertPendingEvents(ctx, tx, instance, []*history.Event{event}); err != nil {
		return fmt.Errorf("inserting new event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if b.dialect.uniqueViolation(err) {
			return backend.ErrInstanceAlreadyExists
		}

		return fmt.Errorf("creating workflow instance: %w", err)
	}

	return nil
}

// createInstance creates the first execution of a new instance. Instance ids are never reused.
func (b *Backend) createInstance(ctx context.Context, tx *sql.Tx, instance *core.WorkflowInstance, event *history.Event) error {
	err := tx.QueryRowContext(
		ctx,
		b.dialect.rebind("SELECT 1 FROM instances WHERE instance_id = ? LIMIT 1"),
		instance.InstanceID,
	).Scan(new(int))
	if err == nil {
		return backend.ErrInstanceAlreadyExists
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking for existing instance: %w", err)
	}

	return b.insertExecution(ctx, tx, instance, event)
}

func (b *Backend) insertExecution(ctx context.Context, tx *sql.Tx, instance *core.WorkflowInstance, event *history.Event) error {
	a, ok := event.Attributes.(*history.OrchestratorStartedAttributes)
	if !ok {
		return fmt.Errorf("expected %v event to start workflow execution, got %v", history.EventType_OrchestratorStarted, event.Type)
	}

	var parentInstanceID, parentExecutionID, parentQueue sql.NullString
	var parentEventID sql.NullInt64
	if instance.SubWorkflow() {
		parentInstanceID = sql.NullString{String: instance.Parent.InstanceID, Valid: true}
		parentExecutionID = sql.NullString{String: instance.Parent.ExecutionID, Valid: true}
		parentQueue = sql.NullString{String: string(instance.Parent.Queue), Valid: instance.Parent.Queue != ""}
		parentEventID = sql.NullInt64{Int64: instance.ParentEventID, Valid: true}
	}

	queue := instance.Queue
	if queue == "" {
		queue = core.QueueDefault
	}

	_, err := tx.ExecContext(
		ctx,
		b.dialect.rebind(`INSERT INTO instances
			(instance_id, execution_id, queue, workflow_name, parent_instance_id, parent_execution_id, parent_queue, parent_schedule_event_id, status, is_current, input, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`),
		instance.InstanceID,
		instance.ExecutionID,
		string(queue),
		a.Name,
		parentInstanceID,
		parentExecutionID,
		parentQueue,
		parentEventID,
		int(core.StatusRunning),
		[]byte(a.Input),
		toNanos(event.Timestamp),
	)
	if err != nil {
		if b.dialect.uniqueViolation(err) {
			return backend.ErrInstanceAlreadyExists
		}

		return fmt.Errorf("inserting workflow instance: %w", err)
	}

	return nil
}

func (b *Backend) GetWorkflowInstanceState(ctx context.Context, instanceID string) (*core.InstanceState, error) {
	row := b.db.QueryRowContext(
		ctx,
		b.dialect.rebind(`SELECT instance_id, execution_id, queue, workflow_name, parent_instance_id, parent_execution_id, parent_queue, parent_schedule_event_id,
			status, input, output, error, created_at, completed_at
			FROM instances WHERE instance_id = ? AND is_current = 1`),
		instanceID,
	)

	var (
		id, executionID, queue, workflowName             string
		parentInstanceID, parentExecutionID, parentQueue sql.NullString
		parentEventID                                    sql.NullInt64
		status                                           int
		input, output, errorData                         []byte
		createdAt                                        int64
		completedAt                                      sql.NullInt64
	)

	if err := row.Scan(
		&id, &executionID, &queue, &workflowName, &parentInstanceID, &parentExecutionID, &parentQueue, &parentEventID,
		&status, &input, &output, &errorData, &createdAt, &completedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, backend.ErrInstanceNotFound
		}

		return nil, fmt.Errorf("scanning instance state: %w", err)
	}

	return &core.InstanceState{
		Instance:     buildInstance(id, executionID, queue, parentInstanceID, parentExecutionID, parentQueue, parentEventID),
		WorkflowName: workflowName,
		Status:       core.Status(status),
		Input:        input,
		Output:       output,
		Error:        errorData,
		CreatedAt:    fromNanos(createdAt),
		CompletedAt:  fromNullableNanos(completedAt),
	}, nil
}

func (b *Backend) GetWorkflowInstanceHistory(ctx context.Context, instance *core.WorkflowInstance, lastSequenceID *int64) ([]*history.Event, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if lastSequenceID != nil {
		rows, err = b.db.QueryContext(
			ctx,
			b.dialect.rebind("SELECT "+eventColumns+" FROM history WHERE instance_id = ? AND execution_id = ? AND sequence_id > ? ORDER BY sequence_id"),
			instance.InstanceID,
			instance.ExecutionID,
			*lastSequenceID,
		)
	} else {
		rows, err = b.db.QueryContext(
			ctx,
			b.dialect.rebind("SELECT "+eventColumns+" FROM history WHERE instance_id = ? AND execution_id = ? ORDER BY sequence_id"),
			instance.InstanceID,
			instance.ExecutionID,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("getting history: %w", err)
	}

	return scanEvents(rows)
}

// executionRunning returns true if the given execution exists and is still running.
func (b *Backend) executionRunning(ctx context.Context, tx *sql.Tx, instance *core.WorkflowInstance) (bool, error) {
	var status int
	if err := tx.QueryRowContext(
		ctx,
		b.dialect.rebind("SELECT status FROM instances WHERE instance_id = ? AND execution_id = ?"),
		instance.InstanceID,
		instance.ExecutionID,
	).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}

		return false, fmt.Errorf("getting workflow execution status: %w", err)
	}

	return core.Status(status) == core.StatusRunning, nil
}

func buildInstance(
	instanceID, executionID, queue string, parentInstanceID, parentExecutionID, parentQueue sql.NullString, parentEventID sql.NullInt64,
) *core.WorkflowInstance {
	if parentInstanceID.Valid && parentExecutionID.Valid && parentEventID.Valid {
		return core.NewSubWorkflowInstance(
			instanceID,
			executionID,
			core.Queue(queue),
			core.NewWorkflowInstance(parentInstanceID.String, parentExecutionID.String, core.Queue(parentQueue.String)),
			parentEventID.Int64,
		)
	}

	return core.NewWorkflowInstance(instanceID, executionID, core.Queue(queue))
}
