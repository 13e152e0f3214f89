package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/redis/go-redis/v9"
)

// Moves due future events to the pending events of their execution and queues a workflow task for it.
// Keys are built in the script, they have to match the ones in keys.go.
//
// KEYS[1] - future events zset
// ARGV[1] - current timestamp in milliseconds
// ARGV[2] - key prefix
var futureEventsCmd = redis.NewScript(`
	local prefix = ARGV[2]
	local events = redis.call("ZRANGE", KEYS[1], "-inf", ARGV[1], "BYSCORE")

	for i = 1, #events do
		local segment = redis.call("HGET", events[i], "instance")
		local queue = redis.call("HGET", events[i], "queue")
		local event = redis.call("HGET", events[i], "event")

		if segment and queue and event then
			redis.call("XADD", prefix .. "pending-events:" .. segment, "*", "event", event)

			local setKey = prefix .. "task-set:" .. queue .. ":workflows"
			if redis.call("SADD", setKey, segment) == 1 then
				redis.call("XADD", prefix .. "task-stream:" .. queue .. ":workflows", "*", "id", segment, "data", "")
			end
		end

		redis.call("DEL", events[i])
		redis.call("ZREM", KEYS[1], events[i])
	end

	return #events
`)

func (rb *redisBackend) addFutureEventP(ctx context.Context, p redis.Pipeliner, instance *core.WorkflowInstance, queue core.Queue, event *history.Event, data string) {
	key := rb.keys.futureEventKey(instance, event.ID)

	p.HSet(ctx, key, "instance", instanceSegment(instance), "queue", string(queue), "event", data)
	p.ZAdd(ctx, rb.keys.futureEventsKey(), redis.Z{
		Score:  float64(event.VisibleAt.UnixMilli()),
		Member: key,
	})
}

func (rb *redisBackend) scheduleFutureEvents(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)

	if _, err := futureEventsCmd.Run(ctx, rb.rdb, []string{rb.keys.futureEventsKey()}, now, rb.keys.prefix).Result(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("checking future events: %w", err)
	}

	return nil
}
