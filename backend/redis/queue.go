package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	workflowTaskType = "workflows"
	activityTaskType = "activities"
)

// taskQueue is a work queue per core.Queue built on a stream with a consumer group. A set next to the
// stream makes sure an id is only queued once at a time.
type taskQueue[T any] struct {
	keys       *keys
	tasktype   string
	rdb        redis.UniversalClient
	groupName  string
	workerName string

	groups sync.Map
}

type taskItem[T any] struct {
	Queue core.Queue

	// TaskID is the id of the stream entry
	TaskID string

	// ID is the provided id
	ID string

	// Token identifies the current holder of the task
	Token string

	Attempt int

	Data *T
}

func newTaskQueue[T any](rdb redis.UniversalClient, keys *keys, tasktype string) *taskQueue[T] {
	return &taskQueue[T]{
		keys:       keys,
		tasktype:   tasktype,
		rdb:        rdb,
		groupName:  "task-workers",
		workerName: uuid.NewString(),
	}
}

// KEYS[1] - task set
// KEYS[2] - task stream
// ARGV[1] - id
// ARGV[2] - data
var enqueueCmd = redis.NewScript(`
	if redis.call("SADD", KEYS[1], ARGV[1]) == 1 then
		redis.call("XADD", KEYS[2], "*", "id", ARGV[1], "data", ARGV[2])
	end

	return true
`)

// Removes a task from the queue and releases its lock. If the optional stream in KEYS[4] is not empty,
// the id is queued again.
//
// KEYS[1] - task set
// KEYS[2] - task stream
// KEYS[3] - task lock
// KEYS[4] - pending events stream (optional)
// ARGV[1] - task id
// ARGV[2] - group name
// ARGV[3] - id
var completeCmd = redis.NewScript(`
	redis.call("XACK", KEYS[2], ARGV[2], ARGV[1])
	redis.call("XDEL", KEYS[2], ARGV[1])
	redis.call("DEL", KEYS[3])
	redis.call("SREM", KEYS[1], ARGV[3])

	if KEYS[4] and redis.call("XLEN", KEYS[4]) > 0 then
		redis.call("SADD", KEYS[1], ARGV[3])
		redis.call("XADD", KEYS[2], "*", "id", ARGV[3], "data", "")
	end

	return true
`)

func (q *taskQueue[T]) Enqueue(ctx context.Context, p redis.Pipeliner, queue core.Queue, id string, data *T) error {
	var ds string
	if data != nil {
		d, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshaling task data: %w", err)
		}

		ds = string(d)
	}

	return enqueueCmd.EvalSha(
		ctx, p, []string{q.keys.taskSetKey(queue, q.tasktype), q.keys.taskStreamKey(queue, q.tasktype)}, id, ds,
	).Err()
}

// Dequeue returns the next task from any of the given queues. Abandoned tasks, whose lock expired, are
// recovered first. Otherwise waits up to timeout for a new task.
func (q *taskQueue[T]) Dequeue(ctx context.Context, queues []core.Queue, lockTimeout, timeout time.Duration) (*taskItem[T], error) {
	if err := q.ensureGroups(ctx, queues); err != nil {
		return nil, err
	}

	for _, queue := range queues {
		task, err := q.recover(ctx, queue, lockTimeout)
		if err != nil {
			return nil, fmt.Errorf("checking for abandoned tasks: %w", err)
		}

		if task != nil {
			return task, nil
		}
	}

	streamQueues := make(map[string]core.Queue, len(queues))
	streams := make([]string, 0, len(queues)*2)
	for _, queue := range queues {
		stream := q.keys.taskStreamKey(queue, q.tasktype)
		streamQueues[stream] = queue
		streams = append(streams, stream)
	}
	for range queues {
		streams = append(streams, ">")
	}

	// A block of zero would wait forever
	block := timeout
	if block < time.Millisecond {
		block = -1
	}

	res, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Streams:  streams,
		Group:    q.groupName,
		Consumer: q.workerName,
		Count:    1,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("dequeueing task: %w", err)
	}

	for _, stream := range res {
		if len(stream.Messages) == 0 {
			continue
		}

		return q.lock(ctx, streamQueues[stream.Stream], stream.Messages[0])
	}

	return nil, nil
}

func (q *taskQueue[T]) recover(ctx context.Context, queue core.Queue, lockTimeout time.Duration) (*taskItem[T], error) {
	stream := q.keys.taskStreamKey(queue, q.tasktype)

	msgs, _, err := q.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    q.groupName,
		Consumer: q.workerName,
		MinIdle:  lockTimeout,
		Start:    "0",
		Count:    1,
	}).Result()
	if err != nil {
		return nil, err
	}

	if len(msgs) == 0 {
		return nil, nil
	}

	msg := msgs[0]
	if _, ok := msg.Values["id"]; !ok {
		// Entry was deleted while it was pending
		return nil, q.rdb.XAck(ctx, stream, q.groupName, msg.ID).Err()
	}

	return q.lock(ctx, queue, msg)
}

// lock hands out a new token for the task. A previous holder can no longer extend or complete it.
func (q *taskQueue[T]) lock(ctx context.Context, queue core.Queue, msg redis.XMessage) (*taskItem[T], error) {
	id, _ := msg.Values["id"].(string)
	data, _ := msg.Values["data"].(string)

	token := uuid.NewString()
	lockKey := q.keys.taskLockKey(queue, q.tasktype, msg.ID)

	var attempt *redis.IntCmd
	if _, err := q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, lockKey, "token", token)
		attempt = p.HIncrBy(ctx, lockKey, "attempt", 1)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("locking task: %w", err)
	}

	item := &taskItem[T]{
		Queue:   queue,
		TaskID:  msg.ID,
		ID:      id,
		Token:   token,
		Attempt: int(attempt.Val()),
	}

	if data != "" {
		var t T
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, fmt.Errorf("unmarshaling task data: %w", err)
		}

		item.Data = &t
	}

	return item, nil
}

// checkLock returns backend.ErrTaskNotFound if the given token does not hold the task anymore. Call
// within a transaction watching the lock key.
func (q *taskQueue[T]) checkLock(ctx context.Context, c redis.Cmdable, queue core.Queue, taskID, token string) error {
	current, err := c.HGet(ctx, q.lockKey(queue, taskID), "token").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return backend.ErrTaskNotFound
		}

		return fmt.Errorf("checking task lock: %w", err)
	}

	if current != token {
		return backend.ErrTaskNotFound
	}

	return nil
}

func (q *taskQueue[T]) lockKey(queue core.Queue, taskID string) string {
	return q.keys.taskLockKey(queue, q.tasktype, taskID)
}

// Extend resets the idle time of the task, which keeps it from being recovered by another worker.
func (q *taskQueue[T]) Extend(ctx context.Context, p redis.Pipeliner, queue core.Queue, taskID string) error {
	return p.XClaimJustID(ctx, &redis.XClaimArgs{
		Stream:   q.keys.taskStreamKey(queue, q.tasktype),
		Group:    q.groupName,
		Consumer: q.workerName,
		MinIdle:  0,
		Messages: []string{taskID},
	}).Err()
}

// Complete removes the task. If requeueIfNotEmpty names a non-empty stream, the id is queued again.
func (q *taskQueue[T]) Complete(ctx context.Context, p redis.Pipeliner, queue core.Queue, taskID, id, requeueIfNotEmpty string) error {
	keys := []string{
		q.keys.taskSetKey(queue, q.tasktype),
		q.keys.taskStreamKey(queue, q.tasktype),
		q.lockKey(queue, taskID),
	}
	if requeueIfNotEmpty != "" {
		keys = append(keys, requeueIfNotEmpty)
	}

	return completeCmd.EvalSha(ctx, p, keys, taskID, q.groupName, id).Err()
}

func (q *taskQueue[T]) ensureGroups(ctx context.Context, queues []core.Queue) error {
	for _, queue := range queues {
		if _, ok := q.groups.Load(queue); ok {
			continue
		}

		stream := q.keys.taskStreamKey(queue, q.tasktype)
		if err := q.rdb.XGroupCreateMkStream(ctx, stream, q.groupName, "0").Err(); err != nil {
			// There is no upsert for consumer groups
			if !strings.Contains(err.Error(), "BUSYGROUP") {
				return fmt.Errorf("creating consumer group for %v: %w", stream, err)
			}
		}

		q.groups.Store(queue, struct{}{})
	}

	return nil
}
