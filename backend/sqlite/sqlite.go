package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/internal/sqlbackend"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed db/migrations/*.sql
var migrationsFS embed.FS

var dialect = &sqlbackend.Dialect{
	Name: "sqlite",
	IsUniqueViolation: func(err error) bool {
		var serr *sqlite.Error
		if !errors.As(err, &serr) {
			return false
		}

		return serr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || serr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	},
}

// NewInMemoryBackend returns a backend storing everything in an in-memory SQLite database. The data is
// lost when the backend is closed.
func NewInMemoryBackend(opts ...option) *sqliteBackend {
	return newSqliteBackend("file::memory:?_pragma=busy_timeout(5000)", opts...)
}

// NewSqliteBackend returns a backend storing its data in the SQLite database file at path.
func NewSqliteBackend(path string, opts ...option) *sqliteBackend {
	return newSqliteBackend(fmt.Sprintf("file:%v?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path), opts...)
}

func newSqliteBackend(dsn string, opts ...option) *sqliteBackend {
	backendOptions := backend.ApplyOptions()
	options := &options{
		Options:         &backendOptions,
		ApplyMigrations: true,
	}

	for _, opt := range opts {
		opt(options)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		panic(err)
	}

	// SQLite only allows a single writer, serialize all access through one connection. This also keeps
	// an in-memory database alive for the lifetime of the backend.
	db.SetMaxOpenConns(1)

	b := &sqliteBackend{
		Backend: sqlbackend.New(db, dialect, options.Options),
	}

	if options.ApplyMigrations {
		if err := b.Migrate(); err != nil {
			panic(err)
		}
	}

	return b
}

type sqliteBackend struct {
	*sqlbackend.Backend
}

// Migrate applies any pending database migrations.
func (sb *sqliteBackend) Migrate() error {
	dbi, err := migratesqlite.WithInstance(sb.DB(), &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating migration instance: %w", err)
	}

	migrations, err := iofs.New(migrationsFS, "db/migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", migrations, "sqlite", dbi)
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
