// Package redis implements a backend on top of Redis. Task queues are streams with consumer groups,
// histories and pending events are streams per execution, and timers wait in a sorted set until due.
//
// The backend uses transactions across keys of different instances, it does not support Redis Cluster.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/backend/converter"
	"github.com/cschleiden/go-orchestrator/backend/metrics"
	"github.com/cschleiden/go-orchestrator/internal/metrickeys"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

// maxTxRetries is how often a transaction is retried when a watched key changed
const maxTxRetries = 10

var _ backend.Backend = (*redisBackend)(nil)

func NewRedisBackend(client redis.UniversalClient, opts ...RedisBackendOption) (*redisBackend, error) {
	options := &RedisOptions{
		Options:      backend.ApplyOptions(),
		BlockTimeout: time.Second * 2,
	}

	for _, opt := range opts {
		opt(options)
	}

	keys := newKeys(options.KeyPrefix)

	rb := &redisBackend{
		rdb:     client,
		options: options,
		keys:    keys,

		workflowQueue: newTaskQueue[any](client, keys, workflowTaskType),
		activityQueue: newTaskQueue[activityData](client, keys, activityTaskType),
	}

	// Preload scripts here. Usually redis-go attempts to execute them first, and the if redis doesn't know
	// them, loads them. This doesn't work when using (transactional) pipelines, so eagerly load them on startup.
	ctx := context.Background()
	cmds := map[string]*redis.StringCmd{
		"enqueueCmd":      enqueueCmd.Load(ctx, rb.rdb),
		"completeCmd":     completeCmd.Load(ctx, rb.rdb),
		"futureEventsCmd": futureEventsCmd.Load(ctx, rb.rdb),
	}
	for name, cmd := range cmds {
		if cmd.Err() != nil {
			return nil, fmt.Errorf("loading redis script: %v %w", name, cmd.Err())
		}
	}

	return rb, nil
}

type redisBackend struct {
	rdb     redis.UniversalClient
	options *RedisOptions
	keys    *keys

	workflowQueue *taskQueue[any]
	activityQueue *taskQueue[activityData]
}

// BlockOnGetTask marks the backend as blocking, getting a task waits up to BlockTimeout for new work.
func (rb *redisBackend) BlockOnGetTask() {}

func (rb *redisBackend) Logger() *slog.Logger {
	return rb.options.Logger
}

func (rb *redisBackend) Metrics() metrics.Client {
	return rb.options.Metrics.WithTags(metrics.Tags{metrickeys.Backend: "redis"})
}

func (rb *redisBackend) Tracer() trace.Tracer {
	return rb.options.TracerProvider.Tracer(backend.TracerName)
}

func (rb *redisBackend) Converter() converter.Converter {
	return rb.options.Converter
}

func (rb *redisBackend) Options() *backend.Options {
	return &rb.options.Options
}

func (rb *redisBackend) Close() error {
	return rb.rdb.Close()
}

// watch runs fn in an optimistic transaction watching keys. It is retried when any of the keys changes
// before the transaction is executed.
func (rb *redisBackend) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := rb.rdb.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}

	return fmt.Errorf("watched keys kept changing: %w", redis.TxFailedErr)
}
