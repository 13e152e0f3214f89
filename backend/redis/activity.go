package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/cschleiden/go-orchestrator/log"
	"github.com/redis/go-redis/v9"
)

type activityData struct {
	Instance *core.WorkflowInstance `json:"instance,omitempty"`
	Event    string                 `json:"event,omitempty"`
}

type activityTaskData struct {
	Queue  core.Queue
	TaskID string
}

func (rb *redisBackend) GetActivityTask(ctx context.Context, queues []core.Queue) (*backend.ActivityTask, error) {
	if len(queues) == 0 {
		return nil, errors.New("no queues provided")
	}

	item, err := rb.activityQueue.Dequeue(ctx, queues, rb.options.ActivityLockTimeout, rb.options.BlockTimeout)
	if err != nil {
		return nil, fmt.Errorf("dequeueing activity task: %w", err)
	}

	if item == nil {
		return nil, nil
	}

	if item.Data == nil {
		return nil, fmt.Errorf("activity task %v without data", item.ID)
	}

	event, err := unmarshalEvent(item.Data.Event)
	if err != nil {
		return nil, err
	}

	return &backend.ActivityTask{
		ID:               item.Token,
		WorkflowInstance: item.Data.Instance,
		Event:            event,
		Attempt:          item.Attempt,
		CustomData: &activityTaskData{
			Queue:  item.Queue,
			TaskID: item.TaskID,
		},
	}, nil
}

func activityTaskDataFrom(task *backend.ActivityTask) (*activityTaskData, error) {
	data, ok := task.CustomData.(*activityTaskData)
	if !ok {
		return nil, fmt.Errorf("activity task not created by this backend: %w", backend.ErrTaskNotFound)
	}

	return data, nil
}

func (rb *redisBackend) ExtendActivityTask(ctx context.Context, task *backend.ActivityTask) error {
	data, err := activityTaskDataFrom(task)
	if err != nil {
		return err
	}

	return rb.watch(ctx, func(tx *redis.Tx) error {
		if err := rb.activityQueue.checkLock(ctx, tx, data.Queue, data.TaskID, task.ID); err != nil {
			return err
		}

		_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			return rb.activityQueue.Extend(ctx, p, data.Queue, data.TaskID)
		})

		return err
	}, rb.activityQueue.lockKey(data.Queue, data.TaskID))
}

func (rb *redisBackend) CompleteActivityTask(ctx context.Context, task *backend.ActivityTask, result *history.Event) error {
	data, err := activityTaskDataFrom(task)
	if err != nil {
		return err
	}

	instance := task.WorkflowInstance
	executionKey := rb.keys.executionKey(instance)

	return rb.watch(ctx, func(tx *redis.Tx) error {
		if err := rb.activityQueue.checkLock(ctx, tx, data.Queue, data.TaskID, task.ID); err != nil {
			return err
		}

		state, err := readExecution(ctx, tx, executionKey)
		if err != nil && !errors.Is(err, backend.ErrInstanceNotFound) {
			return err
		}

		running := state != nil && state.Status == core.StatusRunning
		if !running {
			rb.options.Logger.Debug("Dropping activity result for workflow execution that is not running",
				log.InstanceIDKey, instance.InstanceID,
				log.ExecutionIDKey, instance.ExecutionID,
				log.EventIDKey, result.ID,
			)
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			if running {
				if err := rb.addPendingEventsP(ctx, p, state.Instance, state.Instance.Queue, []*history.Event{result}); err != nil {
					return fmt.Errorf("delivering activity result: %w", err)
				}
			}

			return rb.activityQueue.Complete(ctx, p, data.Queue, data.TaskID, task.Event.ID, "")
		})

		return err
	}, rb.activityQueue.lockKey(data.Queue, data.TaskID), executionKey)
}
