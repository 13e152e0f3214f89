package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/redis/go-redis/v9"
)

func marshalEvent(event *history.Event) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshaling event: %w", err)
	}

	return string(data), nil
}

func unmarshalEvent(data string) (*history.Event, error) {
	event := &history.Event{}
	if err := json.Unmarshal([]byte(data), event); err != nil {
		return nil, fmt.Errorf("unmarshaling event: %w", err)
	}

	return event, nil
}

// eventsFromMessages decodes the events of stream entries and returns them together with the entry ids
func eventsFromMessages(msgs []redis.XMessage) ([]*history.Event, []string, error) {
	events := make([]*history.Event, 0, len(msgs))
	ids := make([]string, 0, len(msgs))

	for _, msg := range msgs {
		data, _ := msg.Values["event"].(string)

		event, err := unmarshalEvent(data)
		if err != nil {
			return nil, nil, err
		}

		events = append(events, event)
		ids = append(ids, msg.ID)
	}

	return events, ids, nil
}

// addHistoryEventsP appends events to the history stream. Stream ids are derived from the sequence id
// so history can be read from a given sequence id on.
func (rb *redisBackend) addHistoryEventsP(ctx context.Context, p redis.Pipeliner, instance *core.WorkflowInstance, events []*history.Event) error {
	key := rb.keys.historyKey(instance)

	for _, event := range events {
		data, err := marshalEvent(event)
		if err != nil {
			return err
		}

		p.XAdd(ctx, &redis.XAddArgs{
			Stream: key,
			ID:     historyID(event.SequenceID),
			Values: map[string]interface{}{"event": data},
		})
	}

	return nil
}

// addPendingEventsP delivers events to the given execution and queues a workflow task for it. Events
// that are not visible yet are kept aside until they are due.
func (rb *redisBackend) addPendingEventsP(ctx context.Context, p redis.Pipeliner, instance *core.WorkflowInstance, queue core.Queue, events []*history.Event) error {
	now := time.Now()
	visible := 0

	for _, event := range events {
		data, err := marshalEvent(event)
		if err != nil {
			return err
		}

		if event.VisibleAt != nil && event.VisibleAt.After(now) {
			rb.addFutureEventP(ctx, p, instance, queue, event, data)
			continue
		}

		p.XAdd(ctx, &redis.XAddArgs{
			Stream: rb.keys.pendingEventsKey(instance),
			ID:     "*",
			Values: map[string]interface{}{"event": data},
		})
		visible++
	}

	if visible == 0 {
		return nil
	}

	if err := rb.workflowQueue.Enqueue(ctx, p, queue, instanceSegment(instance), nil); err != nil {
		return fmt.Errorf("queueing workflow task: %w", err)
	}

	return nil
}
