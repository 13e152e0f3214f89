package worker

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/backend/metrics"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/cschleiden/go-orchestrator/internal/historycache"
	"github.com/cschleiden/go-orchestrator/internal/instances"
	"github.com/cschleiden/go-orchestrator/internal/metrickeys"
	"github.com/cschleiden/go-orchestrator/registry"
	"github.com/cschleiden/go-orchestrator/workflow/executor"
)

type WorkflowWorkerOptions struct {
	WorkerOptions

	HistoryCacheSize int
	HistoryCacheTTL  time.Duration
}

// WorkflowWorker processes workflow tasks.
type WorkflowWorker struct {
	*Worker[backend.WorkflowTask, instances.Result]

	cache *historycache.Cache

	evictionCtx    context.Context
	cancelEviction context.CancelFunc
}

func NewWorkflowWorker(
	b backend.Backend,
	registry *registry.Registry,
	clock clock.Clock,
	options WorkflowWorkerOptions,
) *WorkflowWorker {
	size := options.HistoryCacheSize
	if size <= 0 {
		size = 128
	}

	ttl := options.HistoryCacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}

	cache := historycache.New(b.Metrics(), size, ttl)
	e := executor.NewExecutor(b.Logger(), b.Tracer(), registry, b.Converter())

	tw := &WorkflowTaskWorker{
		backend: b,
		manager: instances.NewManager(b, e, cache, clock),
	}

	return &WorkflowWorker{
		Worker: NewWorker(b, tw, &options.WorkerOptions),
		cache:  cache,
	}
}

func (ww *WorkflowWorker) Start(ctx context.Context) error {
	ww.evictionCtx, ww.cancelEviction = context.WithCancel(context.Background())
	go ww.cache.StartEviction(ww.evictionCtx)

	return ww.Worker.Start(ctx)
}

func (ww *WorkflowWorker) WaitForCompletion() error {
	err := ww.Worker.WaitForCompletion()

	if ww.cancelEviction != nil {
		ww.cancelEviction()
	}

	return err
}

type WorkflowTaskWorker struct {
	backend backend.Backend
	manager *instances.Manager
}

func (wtw *WorkflowTaskWorker) Get(ctx context.Context, queues []core.Queue) (*backend.WorkflowTask, error) {
	return wtw.backend.GetWorkflowTask(ctx, queues)
}

func (wtw *WorkflowTaskWorker) Extend(ctx context.Context, task *backend.WorkflowTask) error {
	return wtw.backend.ExtendWorkflowTask(ctx, task)
}

func (wtw *WorkflowTaskWorker) Execute(ctx context.Context, task *backend.WorkflowTask) (*instances.Result, error) {
	timer := metrics.Timer(wtw.backend.Metrics(), metrickeys.WorkflowTaskProcessed, metrics.Tags{})
	defer timer.Stop()

	return wtw.manager.ExecuteTask(ctx, task)
}

func (wtw *WorkflowTaskWorker) Complete(ctx context.Context, result *instances.Result, task *backend.WorkflowTask) error {
	return wtw.manager.CompleteTask(ctx, task, result)
}
