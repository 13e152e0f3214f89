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
	"github.com/cschleiden/go-orchestrator/log"
	"github.com/google/uuid"
)

func (b *Backend) scheduleActivity(ctx context.Context, tx *sql.Tx, instance *core.WorkflowInstance, event *history.Event) error {
	a, err := history.SerializeAttributes(event.Attributes)
	if err != nil {
		return fmt.Errorf("serializing attributes: %w", err)
	}

	// Activities run in the application of the scheduling workflow instance
	queue := instance.Queue
	if queue == "" {
		queue = core.QueueDefault
	}

	_, err = tx.ExecContext(
		ctx,
		b.dialect.rebind(`INSERT INTO activities
			(activity_id, instance_id, execution_id, queue, event_type, timestamp, schedule_event_id, attributes, attempt)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`),
		event.ID,
		instance.InstanceID,
		instance.ExecutionID,
		string(queue),
		int(event.Type),
		toNanos(event.Timestamp),
		event.ScheduleEventID,
		a,
	)

	return err
}

// GetActivityTask returns a pending activity task or nil if there are no pending activities
func (b *Backend) GetActivityTask(ctx context.Context, queues []core.Queue) (*backend.ActivityTask, error) {
	if len(queues) == 0 {
		return nil, errors.New("no queues provided")
	}

	tx, err := b.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now()

	args := make([]any, 0, len(queues)+1)
	args = append(args, toNanos(now))
	for _, q := range queues {
		args = append(args, string(q))
	}

	row := tx.QueryRowContext(
		ctx,
		b.dialect.rebind(fmt.Sprintf(`SELECT id, activity_id, instance_id, execution_id, queue, event_type, timestamp, schedule_event_id, attributes, attempt
			FROM activities
			WHERE (locked_until IS NULL OR locked_until < ?) AND queue IN (%s)
			ORDER BY id
			LIMIT 1
			%s`, placeholders(len(queues)), b.dialect.LockClause)),
		args...,
	)

	var (
		id                             int64
		instanceID, executionID, queue string
		eventType                      int
		timestamp                      int64
		attributes                     []byte
		attempt                        int
	)

	event := &history.Event{}

	if err := row.Scan(
		&id, &event.ID, &instanceID, &executionID, &queue, &eventType, &timestamp, &event.ScheduleEventID, &attributes, &attempt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("finding activity task to lock: %w", err)
	}

	event.Type = history.EventType(eventType)
	event.Timestamp = fromNanos(timestamp)

	a, err := history.DeserializeAttributes(event.Type, attributes)
	if err != nil {
		return nil, fmt.Errorf("deserializing attributes: %w", err)
	}

	event.Attributes = a

	token := uuid.NewString()

	res, err := tx.ExecContext(
		ctx,
		b.dialect.rebind("UPDATE activities SET locked_until = ?, worker = ?, attempt = attempt + 1 WHERE id = ? AND (locked_until IS NULL OR locked_until < ?)"),
		toNanos(now.Add(b.options.ActivityLockTimeout)),
		token,
		id,
		toNanos(now),
	)
	if err != nil {
		return nil, fmt.Errorf("locking activity: %w", err)
	}

	if affectedRows, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("locking activity: %w", err)
	} else if affectedRows == 0 {
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing activity lock: %w", err)
	}

	return &backend.ActivityTask{
		ID:               token,
		WorkflowInstance: core.NewWorkflowInstance(instanceID, executionID, core.Queue(queue)),
		Event:            event,
		Attempt:          attempt + 1,
		CustomData:       id,
	}, nil
}

func (b *Backend) ExtendActivityTask(ctx context.Context, task *backend.ActivityTask) error {
	res, err := b.db.ExecContext(
		ctx,
		b.dialect.rebind("UPDATE activities SET locked_until = ? WHERE activity_id = ? AND worker = ?"),
		toNanos(time.Now().Add(b.options.ActivityLockTimeout)),
		task.Event.ID,
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("extending activity lock: %w", err)
	}

	if rowsAffected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("determining if activity task was extended: %w", err)
	} else if rowsAffected == 0 {
		return backend.ErrTaskNotFound
	}

	return nil
}

// CompleteActivityTask completes an activity task retrieved using GetActivityTask
func (b *Backend) CompleteActivityTask(ctx context.Context, task *backend.ActivityTask, result *history.Event) error {
	tx, err := b.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	instance := task.WorkflowInstance

	res, err := tx.ExecContext(
		ctx,
		b.dialect.rebind("DELETE FROM activities WHERE activity_id = ? AND instance_id = ? AND execution_id = ? AND worker = ?"),
		task.Event.ID,
		instance.InstanceID,
		instance.ExecutionID,
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("completing activity: %w", err)
	}

	if affected, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("checking for completed activity: %w", err)
	} else if affected == 0 {
		return backend.ErrTaskNotFound
	}

	running, err := b.executionRunning(ctx, tx, instance)
	if err != nil {
		return err
	}

	if running {
		if err := b.insertPendingEvents(ctx, tx, instance, []*history.Event{result}); err != nil {
			return fmt.Errorf("inserting new events for completed activity: %w", err)
		}
	} else {
		b.options.Logger.Debug("Dropping activity result for workflow execution that is not running",
			log.InstanceIDKey, instance.InstanceID,
			log.ExecutionIDKey, instance.ExecutionID,
			log.EventIDKey, result.ID,
		)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing activity completion: %w", err)
	}

	return nil
}
