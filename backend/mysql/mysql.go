package mysql

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/internal/sqlbackend"
	"github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed db/migrations/*.sql
var migrationsFS embed.FS

// ER_DUP_ENTRY
const errDuplicateEntry = 1062

var dialect = &sqlbackend.Dialect{
	Name:       "mysql",
	LockClause: "FOR UPDATE SKIP LOCKED",
	TxOptions: &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	},
	IsUniqueViolation: func(err error) bool {
		var merr *mysql.MySQLError
		return errors.As(err, &merr) && merr.Number == errDuplicateEntry
	},
}

func NewMysqlBackend(host string, port int, user, password, database string, opts ...option) *mysqlBackend {
	backendOptions := backend.ApplyOptions()
	options := &options{
		Options:         &backendOptions,
		ApplyMigrations: true,
	}

	for _, opt := range opts {
		opt(options)
	}

	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", host, port)
	cfg.DBName = database
	cfg.InterpolateParams = true
	// Report matched instead of changed rows, lock extensions within the same timestamp still count
	cfg.ClientFoundRows = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		panic(err)
	}

	if options.MySQLOptions != nil {
		options.MySQLOptions(db)
	}

	b := &mysqlBackend{
		Backend: sqlbackend.New(db, dialect, options.Options),
		cfg:     cfg,
	}

	if options.ApplyMigrations {
		if err := b.Migrate(); err != nil {
			panic(err)
		}
	}

	return b
}

type mysqlBackend struct {
	*sqlbackend.Backend

	cfg *mysql.Config
}

// Migrate applies any pending database migrations.
func (mb *mysqlBackend) Migrate() error {
	// Migrations contain multiple statements, use a dedicated connection that allows them
	cfg := mb.cfg.Clone()
	cfg.MultiStatements = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return fmt.Errorf("opening schema database: %w", err)
	}

	dbi, err := migratemysql.WithInstance(db, &migratemysql.Config{})
	if err != nil {
		return fmt.Errorf("creating migration instance: %w", err)
	}

	migrations, err := iofs.New(migrationsFS, "db/migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", migrations, "mysql", dbi)
	if err != nil {
		return fmt.Errorf("creating migration: %w", err)
	}

	if err := m.Up(); err != nil {
		if !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("running migrations: %w", err)
		}
	}

	if err := db.Close(); err != nil {
		return fmt.Errorf("closing schema database: %w", err)
	}

	return nil
}
