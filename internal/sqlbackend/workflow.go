package sqlbackend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/cschleiden/go-orchestrator/internal/workflowerrors"
	"github.com/cschleiden/go-orchestrator/log"
	"github.com/google/uuid"
)

// GetWorkflowTask returns a pending workflow task or nil if there are no pending workflow executions
func (b *Backend) GetWorkflowTask(ctx context.Context, queues []core.Queue) (*backend.WorkflowTask, error) {
	if len(queues) == 0 {
		return nil, errors.New("no queues provided")
	}

	tx, err := b.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now()

	args := []any{
		int(core.StatusRunning), // status
		toNanos(now),            // locked_until
	}
	for _, q := range queues {
		args = append(args, string(q))
	}
	args = append(args, toNanos(now)) // visible_at

	// Lock next workflow task by finding an unlocked running execution with visible pending events
	row := tx.QueryRowContext(
		ctx,
		b.dialect.rebind(fmt.Sprintf(`SELECT i.id, i.instance_id, i.execution_id, i.queue, i.parent_instance_id, i.parent_execution_id, i.parent_queue, i.parent_schedule_event_id
			FROM instances i
			WHERE
				i.status = ?
				AND (i.locked_until IS NULL OR i.locked_until < ?)
				AND i.queue IN (%s)
				AND EXISTS (
					SELECT 1 FROM pending_events pe
					WHERE pe.instance_id = i.instance_id AND pe.execution_id = i.execution_id AND (pe.visible_at IS NULL OR pe.visible_at <= ?)
				)
			ORDER BY i.id
			LIMIT 1
			%s`, placeholders(len(queues)), b.dialect.LockClause)),
		args...,
	)

	var (
		id                                               int64
		instanceID, executionID, queue                   string
		parentInstanceID, parentExecutionID, parentQueue sql.NullString
		parentEventID                                    sql.NullInt64
	)
	if err := row.Scan(&id, &instanceID, &executionID, &queue, &parentInstanceID, &parentExecutionID, &parentQueue, &parentEventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("scanning workflow instance: %w", err)
	}

	token := uuid.NewString()

	res, err := tx.ExecContext(
		ctx,
		b.dialect.rebind("UPDATE instances SET locked_until = ?, worker = ? WHERE id = ? AND (locked_until IS NULL OR locked_until < ?)"),
		toNanos(now.Add(b.options.WorkflowLockTimeout)),
		token,
		id,
		toNanos(now),
	)
	if err != nil {
		return nil, fmt.Errorf("locking workflow instance: %w", err)
	}

	if affectedRows, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("locking workflow instance: %w", err)
	} else if affectedRows == 0 {
		// Locked by another worker in the meantime
		return nil, nil
	}

	instance := buildInstance(instanceID, executionID, queue, parentInstanceID, parentExecutionID, parentQueue, parentEventID)

	rows, err := tx.QueryContext(
		ctx,
		b.dialect.rebind("SELECT "+eventColumns+" FROM pending_events WHERE instance_id = ? AND execution_id = ? AND (visible_at IS NULL OR visible_at <= ?) ORDER BY id"),
		instanceID,
		executionID,
		toNanos(now),
	)
	if err != nil {
		return nil, fmt.Errorf("getting new events: %w", err)
	}

	newEvents, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}

	if len(newEvents) == 0 {
		return nil, nil
	}

	var lastSequenceID sql.NullInt64
	if err := tx.QueryRowContext(
		ctx,
		b.dialect.rebind("SELECT MAX(sequence_id) FROM history WHERE instance_id = ? AND execution_id = ?"),
		instanceID,
		executionID,
	).Scan(&lastSequenceID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("getting most recent sequence id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing workflow task lock: %w", err)
	}

	return &backend.WorkflowTask{
		ID:               token,
		WorkflowInstance: instance,
		LastSequenceID:   lastSequenceID.Int64,
		NewEvents:        newEvents,
		CustomData:       id,
	}, nil
}

func (b *Backend) ExtendWorkflowTask(ctx context.Context, task *backend.WorkflowTask) error {
	res, err := b.db.ExecContext(
		ctx,
		b.dialect.rebind("UPDATE instances SET locked_until = ? WHERE instance_id = ? AND execution_id = ? AND worker = ?"),
		toNanos(time.Now().Add(b.options.WorkflowLockTimeout)),
		task.WorkflowInstance.InstanceID,
		task.WorkflowInstance.ExecutionID,
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("extending workflow task lock: %w", err)
	}

	if rowsAffected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("determining if workflow task was extended: %w", err)
	} else if rowsAffected == 0 {
		return backend.ErrTaskNotFound
	}

	return nil
}

// CompleteWorkflowTask checkpoints a workflow task retrieved using GetWorkflowTask
//
// All changes are applied in a single transaction: the executed events are appended to the history,
// the events handed out with the task are removed from the inbox, activities and timers are scheduled,
// and events for other workflow instances are delivered.
func (b *Backend) CompleteWorkflowTask(ctx context.Context, task *backend.WorkflowTask, checkpoint *backend.Checkpoint) error {
	tx, err := b.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	instance := task.WorkflowInstance
	logger := b.options.Logger.With(log.TaskIDKey, task.ID)

	res, err := tx.ExecContext(
		ctx,
		b.dialect.rebind(`UPDATE instances SET locked_until = NULL, worker = NULL, status = ?, output = ?, error = ?, completed_at = ?
			WHERE instance_id = ? AND execution_id = ? AND worker = ?`),
		int(checkpoint.Status),
		checkpoint.Output,
		checkpoint.Error,
		nullableNanos(checkpoint.CompletedAt),
		instance.InstanceID,
		instance.ExecutionID,
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("unlocking workflow instance: %w", err)
	}

	if changedRows, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("checking for unlocked workflow instance: %w", err)
	} else if changedRows != 1 {
		return fmt.Errorf("unlocking workflow instance: %w", backend.ErrTaskNotFound)
	}

	// Remove the events handed out with the task, including the ones the executor discarded
	if len(task.NewEvents) > 0 {
		args := make([]any, 0, len(task.NewEvents)+2)
		args = append(args, instance.InstanceID, instance.ExecutionID)
		for _, e := range task.NewEvents {
			args = append(args, e.ID)
		}

		if _, err := tx.ExecContext(
			ctx,
			b.dialect.rebind(fmt.Sprintf("DELETE FROM pending_events WHERE instance_id = ? AND execution_id = ? AND event_id IN (%s)", placeholders(len(task.NewEvents)))),
			args...,
		); err != nil {
			return fmt.Errorf("deleting handled new events: %w", err)
		}
	}

	if err := b.insertHistoryEvents(ctx, tx, instance, checkpoint.Executed); err != nil {
		return fmt.Errorf("inserting new history events: %w", err)
	}

	for _, e := range checkpoint.ActivityEvents {
		if err := b.scheduleActivity(ctx, tx, instance, e); err != nil {
			return fmt.Errorf("scheduling activity: %w", err)
		}
	}

	if checkpoint.Status == core.StatusRunning {
		if err := b.insertPendingEvents(ctx, tx, instance, checkpoint.TimerEvents); err != nil {
			return fmt.Errorf("scheduling timers: %w", err)
		}
	} else {
		// Finished executions do not receive any more events
		if _, err := tx.ExecContext(
			ctx,
			b.dialect.rebind("DELETE FROM pending_events WHERE instance_id = ? AND execution_id = ?"),
			instance.InstanceID,
			instance.ExecutionID,
		); err != nil {
			return fmt.Errorf("deleting pending events of finished execution: %w", err)
		}
	}

	for target, events := range history.EventsByWorkflowInstance(checkpoint.WorkflowEvents) {
		historyEvents := make([]*history.Event, 0, len(events))
		for _, m := range events {
			historyEvents = append(historyEvents, m.HistoryEvent)
		}

		if historyEvents[0].Type == history.EventType_OrchestratorStarted {
			if target.InstanceID == instance.InstanceID {
				// Continued as new, the new execution becomes the current one
				if _, err := tx.ExecContext(
					ctx,
					b.dialect.rebind("UPDATE instances SET is_current = NULL WHERE instance_id = ? AND execution_id = ?"),
					instance.InstanceID,
					instance.ExecutionID,
				); err != nil {
					return fmt.Errorf("archiving continued execution: %w", err)
				}

				if err := b.insertExecution(ctx, tx, &target, historyEvents[0]); err != nil {
					return fmt.Errorf("creating continued execution: %w", err)
				}
			} else if err := b.createInstance(ctx, tx, &target, historyEvents[0]); err != nil {
				if !errors.Is(err, backend.ErrInstanceAlreadyExists) {
					return fmt.Errorf("creating sub-workflow instance: %w", err)
				}

				logger.Warn("Sub-workflow instance already exists, failing sub-workflow",
					log.InstanceIDKey, target.InstanceID,
					log.ParentIDKey, instance.InstanceID,
					log.ScheduleEventIDKey, target.ParentEventID,
				)

				if checkpoint.Status == core.StatusRunning {
					if err := b.insertPendingEvents(ctx, tx, instance, []*history.Event{
						history.NewPendingEvent(time.Now(), history.EventType_SubOrchestrationFailed, &history.SubOrchestrationFailedAttributes{
							Error: workflowerrors.FromError(backend.ErrInstanceAlreadyExists),
						}, history.ScheduleEventID(target.ParentEventID)),
					}); err != nil {
						return fmt.Errorf("inserting sub-workflow failed event: %w", err)
					}
				}

				continue
			}
		} else {
			running, err := b.executionRunning(ctx, tx, &target)
			if err != nil {
				return err
			}

			if !running {
				logger.Warn("Dropping events for workflow execution that is not running",
					log.InstanceIDKey, target.InstanceID,
					log.ExecutionIDKey, target.ExecutionID,
					log.NewEventsKey, len(historyEvents),
				)

				continue
			}
		}

		if err := b.insertPendingEvents(ctx, tx, &target, historyEvents); err != nil {
			return fmt.Errorf("inserting workflow events: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing complete workflow transaction: %w", err)
	}

	return nil
}
