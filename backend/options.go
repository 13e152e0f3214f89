package backend

import (
	"log/slog"
	"time"

	"github.com/cschleiden/go-orchestrator/backend/converter"
	"github.com/cschleiden/go-orchestrator/backend/metrics"
	mi "github.com/cschleiden/go-orchestrator/internal/metrics"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Options are shared by all backends. Backends take them via their WithBackendOptions option.
type Options struct {
	Logger *slog.Logger

	Metrics metrics.Client

	TracerProvider trace.TracerProvider

	// Converter serializes workflow and activity inputs and results. Defaults to converter.DefaultConverter.
	Converter converter.Converter

	// WorkflowLockTimeout is how long a worker owns a workflow task. A task that is neither completed nor
	// extended within this time is handed out again. Workers extend tasks with heartbeats.
	WorkflowLockTimeout time.Duration

	// ActivityLockTimeout is how long a worker owns an activity task before it is handed out again.
	ActivityLockTimeout time.Duration
}

var DefaultOptions Options = Options{
	WorkflowLockTimeout: time.Minute,
	ActivityLockTimeout: time.Minute * 2,

	Logger:         slog.Default(),
	Metrics:        mi.NewNoopMetricsClient(),
	TracerProvider: noop.NewTracerProvider(),
	Converter:      converter.DefaultConverter,
}

type BackendOption func(*Options)

func WithLogger(logger *slog.Logger) BackendOption {
	return func(o *Options) {
		o.Logger = logger
	}
}

func WithMetrics(client metrics.Client) BackendOption {
	return func(o *Options) {
		o.Metrics = client
	}
}

func WithTracerProvider(tp trace.TracerProvider) BackendOption {
	return func(o *Options) {
		o.TracerProvider = tp
	}
}

func WithConverter(converter converter.Converter) BackendOption {
	return func(o *Options) {
		o.Converter = converter
	}
}

func WithWorkflowLockTimeout(timeout time.Duration) BackendOption {
	return func(o *Options) {
		o.WorkflowLockTimeout = timeout
	}
}

func WithActivityLockTimeout(timeout time.Duration) BackendOption {
	return func(o *Options) {
		o.ActivityLockTimeout = timeout
	}
}

func ApplyOptions(opts ...BackendOption) Options {
	options := DefaultOptions

	for _, opt := range opts {
		opt(&options)
	}

	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	return options
}
