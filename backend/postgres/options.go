package postgres

import (
	"database/sql"
	"time"

	"github.com/cschleiden/go-orchestrator/backend"
)

type options struct {
	*backend.Options

	PostgresOptions func(db *sql.DB)

	// ApplyMigrations automatically applies database migrations on startup.
	ApplyMigrations bool

	// SSLMode configures the sslmode parameter for the PostgreSQL connection.
	// Defaults to "disable" if not set.
	SSLMode string

	// Notifications enables LISTEN/NOTIFY based task polling. Workers are woken up as soon as new
	// work is enqueued instead of polling.
	Notifications bool

	// NotificationTimeout bounds how long a call to get a task waits for a notification. Timers become
	// visible without a notification, so they are picked up after at most this duration.
	NotificationTimeout time.Duration
}

type option func(*options)

// WithApplyMigrations automatically applies database migrations on startup.
func WithApplyMigrations(applyMigrations bool) option {
	return func(o *options) {
		o.ApplyMigrations = applyMigrations
	}
}

func WithPostgresOptions(f func(db *sql.DB)) option {
	return func(o *options) {
		o.PostgresOptions = f
	}
}

// WithSSLMode configures the sslmode parameter for the PostgreSQL connection string.
// Valid values include "disable", "require", "verify-ca", "verify-full", etc.
func WithSSLMode(sslmode string) option {
	return func(o *options) {
		o.SSLMode = sslmode
	}
}

// WithNotifications enables LISTEN/NOTIFY based task polling.
func WithNotifications(enabled bool) option {
	return func(o *options) {
		o.Notifications = enabled
	}
}

func WithNotificationTimeout(timeout time.Duration) option {
	return func(o *options) {
		o.NotificationTimeout = timeout
	}
}

// WithBackendOptions allows to pass generic backend options.
func WithBackendOptions(opts ...backend.BackendOption) option {
	return func(o *options) {
		for _, opt := range opts {
			opt(o.Options)
		}
	}
}
