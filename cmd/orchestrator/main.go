// Command orchestrator runs the demo workflows. It serves an HTTP API to start workflows and query
// their status, or, with -stress, keeps starting workflows and reports the throughput.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/client"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/cschleiden/go-orchestrator/samples/doubling"
	"github.com/cschleiden/go-orchestrator/worker"
)

type config struct {
	backend  string
	addr     string
	appID    string
	trace    string
	stress   int
	children bool

	dbHost     string
	dbPort     int
	dbUser     string
	dbPassword string
	dbName     string
	redisAddr  string

	otlpEndpoint  string
	activityDelay time.Duration
}

func main() {
	var cfg config

	flag.StringVar(&cfg.backend, "backend", "memory", "backend to use: memory, sqlite, mysql, postgres, redis")
	flag.StringVar(&cfg.addr, "addr", ":6020", "address of the HTTP server")
	flag.StringVar(&cfg.appID, "app", "doubling", "app id of the root workflows")
	flag.StringVar(&cfg.trace, "trace", "none", "trace exporter: none, stdout, otlp")
	flag.IntVar(&cfg.stress, "stress", 0, "run N concurrent start and wait loops instead of the HTTP server")
	flag.BoolVar(&cfg.children, "children", true, "also run the workers of the second app in this process")
	flag.StringVar(&cfg.dbHost, "db-host", "localhost", "database host")
	flag.IntVar(&cfg.dbPort, "db-port", 0, "database port, defaults to the port of the backend")
	flag.StringVar(&cfg.dbUser, "db-user", "root", "database user")
	flag.StringVar(&cfg.dbPassword, "db-password", "root", "database password")
	flag.StringVar(&cfg.dbName, "db-name", "orchestrator", "database name, or file for sqlite")
	flag.StringVar(&cfg.redisAddr, "redis-addr", "localhost:6379", "redis address")
	flag.StringVar(&cfg.otlpEndpoint, "otlp-endpoint", "localhost:4318", "OTLP HTTP endpoint")
	flag.DurationVar(&cfg.activityDelay, "activity-delay", time.Second, "duration of the doubling activity")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := run(cfg, logger); err != nil {
		logger.Error("Orchestrator failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	doubling.ActivityDelay = cfg.activityDelay

	tp, err := newTracerProvider(ctx, cfg.trace, cfg.otlpEndpoint)
	if err != nil {
		return err
	}
	defer tp.Shutdown(context.Background())

	b, err := newBackend(cfg, backend.WithLogger(logger), backend.WithTracerProvider(tp))
	if err != nil {
		return err
	}
	defer b.Close()

	workers, err := startWorkers(ctx, b, cfg)
	if err != nil {
		return err
	}
	defer func() {
		for _, w := range workers {
			if err := w.WaitForCompletion(); err != nil {
				logger.Error("Stopping worker", "error", err)
			}
		}
	}()

	c := client.New(b, client.WithRegistry(workers[0].Registry()))

	if cfg.stress > 0 {
		return runStress(ctx, c, core.Queue(cfg.appID), cfg.stress, logger)
	}

	srv := &http.Server{
		Addr:    cfg.addr,
		Handler: newServer(c, cfg.appID, clock.New(), logger).routes(),
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Starting HTTP server", "addr", cfg.addr, "backend", cfg.backend)

	err = srv.ListenAndServe()

	// Stop the workers in case the server failed
	stop()

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// startWorkers starts the worker of the root app and, if configured, the worker of the second app.
// Workers stop when ctx is canceled.
func startWorkers(ctx context.Context, b backend.Backend, cfg config) ([]*worker.Worker, error) {
	options := worker.DefaultOptions
	options.AppID = core.Queue(cfg.appID)

	w := worker.New(b, &options)
	if err := doubling.Register(w); err != nil {
		return nil, err
	}

	workers := []*worker.Worker{w}

	if cfg.children {
		childOptions := worker.DefaultOptions
		childOptions.AppID = doubling.SecondAppID

		cw := worker.New(b, &childOptions)
		if err := doubling.RegisterChildren(cw); err != nil {
			return nil, err
		}

		workers = append(workers, cw)
	}

	for _, w := range workers {
		if err := w.Start(ctx); err != nil {
			return nil, err
		}
	}

	return workers, nil
}
