package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/redis/go-redis/v9"
)

// executionState is the stored state of a single execution of a workflow instance
type executionState struct {
	Instance       *core.WorkflowInstance `json:"instance"`
	WorkflowName   string                 `json:"name"`
	Status         core.Status            `json:"status"`
	Input          []byte                 `json:"input,omitempty"`
	Output         []byte                 `json:"output,omitempty"`
	Error          []byte                 `json:"error,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	CompletedAt    *time.Time             `json:"completed_at,omitempty"`
	LastSequenceID int64                  `json:"last_sequence_id"`
}

func (s *executionState) instanceState() *core.InstanceState {
	return &core.InstanceState{
		Instance:     s.Instance,
		WorkflowName: s.WorkflowName,
		Status:       s.Status,
		Input:        s.Input,
		Output:       s.Output,
		Error:        s.Error,
		CreatedAt:    s.CreatedAt,
		CompletedAt:  s.CompletedAt,
	}
}

func (rb *redisBackend) CreateWorkflowInstance(ctx context.Context, instance *core.WorkflowInstance, event *history.Event) error {
	instanceKey := rb.keys.instanceKey(instance.InstanceID)

	return rb.watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, instanceKey).Result()
		if err != nil {
			return fmt.Errorf("checking for existing instance: %w", err)
		}

		if exists > 0 {
			return backend.ErrInstanceAlreadyExists
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			return rb.createExecutionP(ctx, p, instance, event)
		})

		return err
	}, instanceKey)
}

// createExecutionP creates a new execution, makes it the current one of its instance, and delivers
// the OrchestratorStarted event to it.
func (rb *redisBackend) createExecutionP(ctx context.Context, p redis.Pipeliner, instance *core.WorkflowInstance, event *history.Event) error {
	a, ok := event.Attributes.(*history.OrchestratorStartedAttributes)
	if !ok {
		return fmt.Errorf("expected %v event to start workflow execution, got %v", history.EventType_OrchestratorStarted, event.Type)
	}

	stored := *instance
	if stored.Queue == "" {
		stored.Queue = core.QueueDefault
	}

	state := &executionState{
		Instance:     &stored,
		WorkflowName: a.Name,
		Status:       core.StatusRunning,
		Input:        a.Input,
		CreatedAt:    event.Timestamp,
	}

	p.Set(ctx, rb.keys.instanceKey(instance.InstanceID), instance.ExecutionID, 0)

	if err := rb.writeExecutionP(ctx, p, state); err != nil {
		return err
	}

	return rb.addPendingEventsP(ctx, p, &stored, stored.Queue, []*history.Event{event})
}

func (rb *redisBackend) writeExecutionP(ctx context.Context, p redis.Pipeliner, state *executionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling execution state: %w", err)
	}

	p.Set(ctx, rb.keys.executionKey(state.Instance), string(data), 0)

	return nil
}

// readExecution returns the state of the execution stored at key or backend.ErrInstanceNotFound
func readExecution(ctx context.Context, c redis.Cmdable, key string) (*executionState, error) {
	data, err := c.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, backend.ErrInstanceNotFound
		}

		return nil, fmt.Errorf("reading execution state: %w", err)
	}

	state := &executionState{}
	if err := json.Unmarshal([]byte(data), state); err != nil {
		return nil, fmt.Errorf("unmarshaling execution state: %w", err)
	}

	return state, nil
}

func (rb *redisBackend) GetWorkflowInstanceState(ctx context.Context, instanceID string) (*core.InstanceState, error) {
	executionID, err := rb.rdb.Get(ctx, rb.keys.instanceKey(instanceID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, backend.ErrInstanceNotFound
		}

		return nil, fmt.Errorf("reading current execution: %w", err)
	}

	state, err := readExecution(ctx, rb.rdb, rb.keys.executionKeyFromSegment(instanceSegment(&core.WorkflowInstance{
		InstanceID:  instanceID,
		ExecutionID: executionID,
	})))
	if err != nil {
		return nil, err
	}

	return state.instanceState(), nil
}

func (rb *redisBackend) GetWorkflowInstanceHistory(ctx context.Context, instance *core.WorkflowInstance, lastSequenceID *int64) ([]*history.Event, error) {
	start := "-"
	if lastSequenceID != nil {
		start = "(" + historyID(*lastSequenceID)
	}

	msgs, err := rb.rdb.XRange(ctx, rb.keys.historyKey(instance), start, "+").Result()
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	events, _, err := eventsFromMessages(msgs)
	if err != nil {
		return nil, err
	}

	return events, nil
}
