package main

import (
	"fmt"
	"time"

	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/backend/monoprocess"
	"github.com/cschleiden/go-orchestrator/backend/mysql"
	"github.com/cschleiden/go-orchestrator/backend/postgres"
	"github.com/cschleiden/go-orchestrator/backend/redis"
	"github.com/cschleiden/go-orchestrator/backend/sqlite"
	redisv9 "github.com/redis/go-redis/v9"
)

func newBackend(cfg config, opts ...backend.BackendOption) (backend.Backend, error) {
	switch cfg.backend {
	case "memory":
		// Workers and client share the process, wake workers up as soon as work is queued
		return monoprocess.NewMonoprocessBackend(sqlite.NewInMemoryBackend(sqlite.WithBackendOptions(opts...)), 10, time.Second), nil

	case "sqlite":
		return monoprocess.NewMonoprocessBackend(sqlite.NewSqliteBackend(cfg.dbName+".sqlite", sqlite.WithBackendOptions(opts...)), 10, time.Second), nil

	case "mysql":
		return mysql.NewMysqlBackend(cfg.dbHost, portOrDefault(cfg.dbPort, 3306), cfg.dbUser, cfg.dbPassword, cfg.dbName,
			mysql.WithBackendOptions(opts...)), nil

	case "postgres":
		return postgres.NewPostgresBackend(cfg.dbHost, portOrDefault(cfg.dbPort, 5432), cfg.dbUser, cfg.dbPassword, cfg.dbName,
			postgres.WithNotifications(true),
			postgres.WithBackendOptions(opts...)), nil

	case "redis":
		client := redisv9.NewUniversalClient(&redisv9.UniversalOptions{
			Addrs:        []string{cfg.redisAddr},
			Password:     cfg.dbPassword,
			WriteTimeout: time.Second * 30,
			ReadTimeout:  time.Second * 30,
		})

		b, err := redis.NewRedisBackend(client, redis.WithBackendOptions(opts...))
		if err != nil {
			return nil, fmt.Errorf("creating redis backend: %w", err)
		}

		return b, nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.backend)
	}
}

func portOrDefault(port, defaultPort int) int {
	if port == 0 {
		return defaultPort
	}

	return port
}
