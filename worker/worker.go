package worker

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/core"
	internal "github.com/cschleiden/go-orchestrator/internal/worker"
	"github.com/cschleiden/go-orchestrator/registry"
	"github.com/cschleiden/go-orchestrator/workflow"
)

type Worker struct {
	backend backend.Backend

	registry *registry.Registry

	workers []worker
}

type worker interface {
	Start(context.Context) error
	WaitForCompletion() error
}

// New creates a worker that processes workflows and activities of one application.
func New(backend backend.Backend, options *Options) *Worker {
	return newWorker(backend, options, clock.New())
}

func newWorker(backend backend.Backend, options *Options, clock clock.Clock) *Worker {
	if options == nil {
		options = &DefaultOptions
	}

	queue := options.AppID
	if queue == "" {
		queue = core.QueueDefault
	}

	registry := registry.New()

	workflowWorker := internal.NewWorkflowWorker(backend, registry, clock, internal.WorkflowWorkerOptions{
		WorkerOptions: internal.WorkerOptions{
			Kind:              "workflow",
			Pollers:           options.WorkflowPollers,
			PollingInterval:   options.WorkflowPollingInterval,
			MaxParallelTasks:  options.MaxParallelWorkflowTasks,
			HeartbeatInterval: options.WorkflowHeartbeatInterval,
			Queues:            []core.Queue{queue},
		},
		HistoryCacheSize: options.HistoryCacheSize,
		HistoryCacheTTL:  options.HistoryCacheTTL,
	})

	activityWorker := internal.NewActivityWorker(backend, registry, clock, internal.WorkerOptions{
		Kind:              "activity",
		Pollers:           options.ActivityPollers,
		PollingInterval:   options.ActivityPollingInterval,
		MaxParallelTasks:  options.MaxParallelActivityTasks,
		HeartbeatInterval: options.ActivityHeartbeatInterval,
		Queues:            []core.Queue{queue},
	})

	return &Worker{
		backend:  backend,
		registry: registry,
		workers:  []worker{workflowWorker, activityWorker},
	}
}

// Start starts the worker. The registry is frozen from now on.
//
// To stop the worker, cancel the context passed to Start. To wait for completion of the active
// tasks, call `WaitForCompletion`.
func (w *Worker) Start(ctx context.Context) error {
	w.registry.Freeze()

	for _, worker := range w.workers {
		if err := worker.Start(ctx); err != nil {
			return fmt.Errorf("starting worker: %w", err)
		}
	}

	return nil
}

// WaitForCompletion waits for all active tasks to complete.
func (w *Worker) WaitForCompletion() error {
	for _, worker := range w.workers {
		if err := worker.WaitForCompletion(); err != nil {
			return fmt.Errorf("waiting for worker completion: %w", err)
		}
	}

	return nil
}

// RegisterWorkflow registers a workflow with the worker's registry.
func (w *Worker) RegisterWorkflow(wf workflow.Workflow, opts ...registry.RegisterOption) error {
	return w.registry.RegisterWorkflow(wf, opts...)
}

// RegisterActivity registers an activity with the worker's registry.
func (w *Worker) RegisterActivity(a workflow.Activity, opts ...registry.RegisterOption) error {
	return w.registry.RegisterActivity(a, opts...)
}

// Registry returns the worker's registry, for example to let a client in the same process validate
// workflow names.
func (w *Worker) Registry() *registry.Registry {
	return w.registry
}
