package sqlbackend

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/core"
)

const eventColumns = "event_id, sequence_id, event_type, timestamp, schedule_event_id, attributes, visible_at"

func (b *Backend) insertPendingEvents(ctx context.Context, tx *sql.Tx, instance *core.WorkflowInstance, events []*history.Event) error {
	return b.insertEvents(ctx, tx, "pending_events", instance, events)
}

func (b *Backend) insertHistoryEvents(ctx context.Context, tx *sql.Tx, instance *core.WorkflowInstance, events []*history.Event) error {
	return b.insertEvents(ctx, tx, "history", instance, events)
}

func (b *Backend) insertEvents(ctx context.Context, tx *sql.Tx, tableName string, instance *core.WorkflowInstance, events []*history.Event) error {
	query := b.dialect.rebind("INSERT INTO " + tableName + " (instance_id, execution_id, " + eventColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)")

	for _, event := range events {
		a, err := history.SerializeAttributes(event.Attributes)
		if err != nil {
			return fmt.Errorf("serializing attributes: %w", err)
		}

		if _, err := tx.ExecContext(
			ctx,
			query,
			instance.InstanceID,
			instance.ExecutionID,
			event.ID,
			event.SequenceID,
			int(event.Type),
			toNanos(event.Timestamp),
			event.ScheduleEventID,
			a,
			nullableNanos(event.VisibleAt),
		); err != nil {
			return fmt.Errorf("inserting event: %w", err)
		}
	}

	return nil
}

func scanEvents(rows *sql.Rows) ([]*history.Event, error) {
	defer rows.Close()

	events := make([]*history.Event, 0)

	for rows.Next() {
		var (
			eventType  int
			timestamp  int64
			attributes []byte
			visibleAt  sql.NullInt64
		)

		event := &history.Event{}

		if err := rows.Scan(
			&event.ID,
			&event.SequenceID,
			&eventType,
			&timestamp,
			&event.ScheduleEventID,
			&attributes,
			&visibleAt,
		); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}

		event.Type = history.EventType(eventType)
		event.Timestamp = fromNanos(timestamp)
		event.VisibleAt = fromNullableNanos(visibleAt)

		a, err := history.DeserializeAttributes(event.Type, attributes)
		if err != nil {
			return nil, fmt.Errorf("deserializing attributes: %w", err)
		}

		event.Attributes = a

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// Times are stored as unix nanoseconds
func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullableNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}

	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNullableNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}

	t := fromNanos(n.Int64)
	return &t
}
