package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/cschleiden/go-orchestrator/internal/sqlbackend"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed db/migrations/*.sql
var migrationsFS embed.FS

var dialect = &sqlbackend.Dialect{
	Name: "postgres",
	Placeholder: func(n int) string {
		return "$" + strconv.Itoa(n)
	},
	LockClause: "FOR UPDATE SKIP LOCKED",
	TxOptions: &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	},
	IsUniqueViolation: func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == "23505"
	},
}

// NewPostgresBackend returns a backend storing its data in the given Postgres database. With
// WithNotifications, the returned backend blocks on getting tasks until work is enqueued.
func NewPostgresBackend(host string, port int, user, password, database string, opts ...option) backend.Backend {
	backendOptions := backend.ApplyOptions()
	options := &options{
		Options:             &backendOptions,
		ApplyMigrations:     true,
		SSLMode:             "disable",
		NotificationTimeout: time.Second,
	}

	for _, opt := range opts {
		opt(options)
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", host, port, user, password, database, options.SSLMode)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		panic(err)
	}

	if options.PostgresOptions != nil {
		options.PostgresOptions(db)
	}

	b := &postgresBackend{
		Backend: sqlbackend.New(db, dialect, options.Options),
	}

	if options.ApplyMigrations {
		if err := b.Migrate(); err != nil {
			panic(err)
		}
	}

	if !options.Notifications {
		return b
	}

	listener, err := newNotificationListener(dsn, options.Logger)
	if err != nil {
		panic(err)
	}

	return &notifyingBackend{
		postgresBackend: b,
		listener:        listener,
		timeout:         options.NotificationTimeout,
	}
}

type postgresBackend struct {
	*sqlbackend.Backend
}

// Migrate applies any pending database migrations.
func (pb *postgresBackend) Migrate() error {
	dbi, err := postgres.WithInstance(pb.DB(), &postgres.Config{})
	if err != nil {
		return fmt.Errorf("creating migration instance: %w", err)
	}

	migrations, err := iofs.New(migrationsFS, "db/migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", migrations, "postgres", dbi)
	if err != nil {
		return fmt.Errorf("creating migration: %w", err)
	}

	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("running migrations: %w", err)
		}
	}

	return nil
}

// notifyingBackend waits for LISTEN/NOTIFY notifications when there are no tasks
type notifyingBackend struct {
	*postgresBackend

	listener *notificationListener
	timeout  time.Duration
}

func (nb *notifyingBackend) BlockOnGetTask() {}

func (nb *notifyingBackend) GetWorkflowTask(ctx context.Context, queues []core.Queue) (*backend.WorkflowTask, error) {
	if t, err := nb.postgresBackend.GetWorkflowTask(ctx, queues); t != nil || err != nil {
		return t, err
	}

	if !nb.wait(ctx, nb.listener.workflowNotify) {
		return nil, nil
	}

	return nb.postgresBackend.GetWorkflowTask(ctx, queues)
}

func (nb *notifyingBackend) GetActivityTask(ctx context.Context, queues []core.Queue) (*backend.ActivityTask, error) {
	if t, err := nb.postgresBackend.GetActivityTask(ctx, queues); t != nil || err != nil {
		return t, err
	}

	if !nb.wait(ctx, nb.listener.activityNotify) {
		return nil, nil
	}

	return nb.postgresBackend.GetActivityTask(ctx, queues)
}

func (nb *notifyingBackend) wait(ctx context.Context, notify <-chan struct{}) bool {
	t := time.NewTimer(nb.timeout)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return false
	case <-notify:
		return true
	}
}

func (nb *notifyingBackend) Close() error {
	return errors.Join(nb.listener.Close(), nb.postgresBackend.Close())
}
