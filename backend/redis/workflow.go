package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/cschleiden/go-orchestrator/internal/workflowerrors"
	"github.com/cschleiden/go-orchestrator/log"
	"github.com/redis/go-redis/v9"
)

type workflowTaskData struct {
	Queue  core.Queue
	TaskID string

	// PendingEventIDs are the stream ids of the events handed out with the task
	PendingEventIDs []string
}

func (rb *redisBackend) GetWorkflowTask(ctx context.Context, queues []core.Queue) (*backend.WorkflowTask, error) {
	if len(queues) == 0 {
		return nil, errors.New("no queues provided")
	}

	if err := rb.scheduleFutureEvents(ctx); err != nil {
		return nil, err
	}

	item, err := rb.workflowQueue.Dequeue(ctx, queues, rb.options.WorkflowLockTimeout, rb.options.BlockTimeout)
	if err != nil {
		return nil, fmt.Errorf("dequeueing workflow task: %w", err)
	}

	if item == nil {
		return nil, nil
	}

	state, err := readExecution(ctx, rb.rdb, rb.keys.executionKeyFromSegment(item.ID))
	if err != nil && !errors.Is(err, backend.ErrInstanceNotFound) {
		return nil, err
	}

	if state == nil || state.Status != core.StatusRunning {
		instanceID, executionID, _ := splitSegment(item.ID)
		rb.options.Logger.Debug("Dropping workflow task for execution that is not running",
			log.InstanceIDKey, instanceID,
			log.ExecutionIDKey, executionID,
		)

		_, err := rb.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, rb.keys.pendingEventsKeyFromSegment(item.ID))
			return rb.workflowQueue.Complete(ctx, p, item.Queue, item.TaskID, item.ID, "")
		})

		return nil, err
	}

	pendingKey := rb.keys.pendingEventsKey(state.Instance)

	msgs, err := rb.rdb.XRange(ctx, pendingKey, "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("reading pending events: %w", err)
	}

	newEvents, ids, err := eventsFromMessages(msgs)
	if err != nil {
		return nil, err
	}

	if len(newEvents) == 0 {
		// Events were handled by an earlier task
		_, err := rb.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
			return rb.workflowQueue.Complete(ctx, p, item.Queue, item.TaskID, item.ID, pendingKey)
		})

		return nil, err
	}

	return &backend.WorkflowTask{
		ID:               item.Token,
		WorkflowInstance: state.Instance,
		LastSequenceID:   state.LastSequenceID,
		NewEvents:        newEvents,
		CustomData: &workflowTaskData{
			Queue:           item.Queue,
			TaskID:          item.TaskID,
			PendingEventIDs: ids,
		},
	}, nil
}

func workflowTaskDataFrom(task *backend.WorkflowTask) (*workflowTaskData, error) {
	data, ok := task.CustomData.(*workflowTaskData)
	if !ok {
		return nil, fmt.Errorf("workflow task not created by this backend: %w", backend.ErrTaskNotFound)
	}

	return data, nil
}

func (rb *redisBackend) ExtendWorkflowTask(ctx context.Context, task *backend.WorkflowTask) error {
	data, err := workflowTaskDataFrom(task)
	if err != nil {
		return err
	}

	return rb.watch(ctx, func(tx *redis.Tx) error {
		if err := rb.workflowQueue.checkLock(ctx, tx, data.Queue, data.TaskID, task.ID); err != nil {
			return err
		}

		_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			return rb.workflowQueue.Extend(ctx, p, data.Queue, data.TaskID)
		})

		return err
	}, rb.workflowQueue.lockKey(data.Queue, data.TaskID))
}

type delivery struct {
	target *core.WorkflowInstance
	queue  core.Queue
	events []*history.Event

	// start creates a new execution for the target
	start bool
}

// CompleteWorkflowTask checkpoints a workflow task retrieved using GetWorkflowTask
//
// All changes are applied in a single transaction. The lock of the task, the state of the instance, and
// the state of all instances events are delivered to are watched, the transaction is retried when any
// of them changes.
func (rb *redisBackend) CompleteWorkflowTask(ctx context.Context, task *backend.WorkflowTask, checkpoint *backend.Checkpoint) error {
	data, err := workflowTaskDataFrom(task)
	if err != nil {
		return err
	}

	instance := task.WorkflowInstance
	logger := rb.options.Logger.With(log.TaskIDKey, task.ID)
	targets := history.EventsByWorkflowInstance(checkpoint.WorkflowEvents)

	watchKeys := []string{
		rb.workflowQueue.lockKey(data.Queue, data.TaskID),
		rb.keys.executionKey(instance),
	}
	for target, events := range targets {
		if events[0].HistoryEvent.Type == history.EventType_OrchestratorStarted {
			watchKeys = append(watchKeys, rb.keys.instanceKey(target.InstanceID))
		} else {
			watchKeys = append(watchKeys, rb.keys.executionKey(&target))
		}
	}

	return rb.watch(ctx, func(tx *redis.Tx) error {
		if err := rb.workflowQueue.checkLock(ctx, tx, data.Queue, data.TaskID, task.ID); err != nil {
			return err
		}

		state, err := readExecution(ctx, tx, rb.keys.executionKey(instance))
		if err != nil {
			return err
		}

		deliveries := make([]*delivery, 0, len(targets))
		var ownEvents []*history.Event

		for target, events := range targets {
			target := target

			historyEvents := make([]*history.Event, 0, len(events))
			for _, m := range events {
				historyEvents = append(historyEvents, m.HistoryEvent)
			}

			if historyEvents[0].Type == history.EventType_OrchestratorStarted {
				if target.InstanceID != instance.InstanceID {
					exists, err := tx.Exists(ctx, rb.keys.instanceKey(target.InstanceID)).Result()
					if err != nil {
						return fmt.Errorf("checking for existing sub-workflow instance: %w", err)
					}

					if exists > 0 {
						logger.Warn("Sub-workflow instance already exists, failing sub-workflow",
							log.InstanceIDKey, target.InstanceID,
							log.ParentIDKey, instance.InstanceID,
							log.ScheduleEventIDKey, target.ParentEventID,
						)

						ownEvents = append(ownEvents, history.NewPendingEvent(time.Now(), history.EventType_SubOrchestrationFailed, &history.SubOrchestrationFailedAttributes{
							Error: workflowerrors.FromError(backend.ErrInstanceAlreadyExists),
						}, history.ScheduleEventID(target.ParentEventID)))

						continue
					}
				}

				deliveries = append(deliveries, &delivery{target: &target, events: historyEvents, start: true})
				continue
			}

			targetState, err := readExecution(ctx, tx, rb.keys.executionKey(&target))
			if err != nil && !errors.Is(err, backend.ErrInstanceNotFound) {
				return err
			}

			if targetState == nil || targetState.Status != core.StatusRunning {
				logger.Warn("Dropping events for workflow execution that is not running",
					log.InstanceIDKey, target.InstanceID,
					log.ExecutionIDKey, target.ExecutionID,
					log.NewEventsKey, len(historyEvents),
				)

				continue
			}

			deliveries = append(deliveries, &delivery{target: targetState.Instance, queue: targetState.Instance.Queue, events: historyEvents})
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			return rb.completeWorkflowTaskP(ctx, p, data, state, checkpoint, deliveries, ownEvents)
		})

		return err
	}, watchKeys...)
}

func (rb *redisBackend) completeWorkflowTaskP(
	ctx context.Context, p redis.Pipeliner, data *workflowTaskData, state *executionState, checkpoint *backend.Checkpoint,
	deliveries []*delivery, ownEvents []*history.Event,
) error {
	instance := state.Instance
	pendingKey := rb.keys.pendingEventsKey(instance)

	if err := rb.addHistoryEventsP(ctx, p, instance, checkpoint.Executed); err != nil {
		return fmt.Errorf("adding history events: %w", err)
	}

	// Remove the events handed out with the task, including the ones the executor discarded
	if len(data.PendingEventIDs) > 0 {
		p.XDel(ctx, pendingKey, data.PendingEventIDs...)
	}

	state.Status = checkpoint.Status
	state.Output = checkpoint.Output
	state.Error = checkpoint.Error
	state.CompletedAt = checkpoint.CompletedAt
	if len(checkpoint.Executed) > 0 {
		state.LastSequenceID = checkpoint.Executed[len(checkpoint.Executed)-1].SequenceID
	}

	if err := rb.writeExecutionP(ctx, p, state); err != nil {
		return err
	}

	// Activities run in the application of the scheduling workflow instance
	for _, event := range checkpoint.ActivityEvents {
		eventData, err := marshalEvent(event)
		if err != nil {
			return err
		}

		if err := rb.activityQueue.Enqueue(ctx, p, instance.Queue, event.ID, &activityData{
			Instance: instance,
			Event:    eventData,
		}); err != nil {
			return fmt.Errorf("queueing activity task: %w", err)
		}
	}

	if checkpoint.Status == core.StatusRunning {
		events := make([]*history.Event, 0, len(checkpoint.TimerEvents)+len(ownEvents))
		events = append(events, checkpoint.TimerEvents...)
		events = append(events, ownEvents...)

		if err := rb.addPendingEventsP(ctx, p, instance, instance.Queue, events); err != nil {
			return fmt.Errorf("scheduling timers: %w", err)
		}
	} else {
		// Finished executions do not receive any more events
		p.Del(ctx, pendingKey)
	}

	for _, d := range deliveries {
		if d.start {
			if err := rb.createExecutionP(ctx, p, d.target, d.events[0]); err != nil {
				return fmt.Errorf("starting workflow execution: %w", err)
			}

			if len(d.events) > 1 {
				queue := d.target.Queue
				if queue == "" {
					queue = core.QueueDefault
				}

				if err := rb.addPendingEventsP(ctx, p, d.target, queue, d.events[1:]); err != nil {
					return fmt.Errorf("delivering workflow events: %w", err)
				}
			}

			continue
		}

		if err := rb.addPendingEventsP(ctx, p, d.target, d.queue, d.events); err != nil {
			return fmt.Errorf("delivering workflow events: %w", err)
		}
	}

	return rb.workflowQueue.Complete(ctx, p, data.Queue, data.TaskID, instanceSegment(instance), pendingKey)
}
