package redis

import (
	"time"

	"github.com/cschleiden/go-orchestrator/backend"
)

type RedisOptions struct {
	backend.Options

	// BlockTimeout is how long a call to get a task blocks waiting for new work. Zero or less disables
	// blocking.
	BlockTimeout time.Duration

	KeyPrefix string
}

type RedisBackendOption func(*RedisOptions)

func WithBlockTimeout(timeout time.Duration) RedisBackendOption {
	return func(o *RedisOptions) {
		o.BlockTimeout = timeout
	}
}

func WithBackendOptions(opts ...backend.BackendOption) RedisBackendOption {
	return func(o *RedisOptions) {
		for _, opt := range opts {
			opt(&o.Options)
		}
	}
}

// WithKeyPrefix prefixes all keys the backend uses. Allows multiple backends to share a database.
func WithKeyPrefix(keyPrefix string) RedisBackendOption {
	return func(o *RedisOptions) {
		o.KeyPrefix = keyPrefix
	}
}
