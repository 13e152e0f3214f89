package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/backend/metrics"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/cschleiden/go-orchestrator/internal/metrickeys"
)

// TaskWorker is the task specific part of a worker: where tasks come from, how they are executed, and
// how their results are handed back.
type TaskWorker[Task, Result any] interface {
	Get(ctx context.Context, queues []core.Queue) (*Task, error)
	Extend(ctx context.Context, task *Task) error
	Execute(ctx context.Context, task *Task) (*Result, error)
	Complete(ctx context.Context, result *Result, task *Task) error
}

type WorkerOptions struct {
	// Kind of tasks, used to tag the in-flight gauge. No gauge is reported when empty.
	Kind string

	Pollers int

	// MaxParallelTasks limits the number of tasks executed at the same time. 0 means no limit.
	MaxParallelTasks int

	HeartbeatInterval time.Duration

	PollingInterval time.Duration

	// Queues to poll. Defaults to the default queue.
	Queues []core.Queue
}

// Worker polls for tasks with a number of pollers and dispatches them for execution.
type Worker[Task, TaskResult any] struct {
	options *WorkerOptions

	tw TaskWorker[Task, TaskResult]

	taskQueue *workQueue[Task]

	logger *slog.Logger

	blocking bool

	pollersWg sync.WaitGroup

	dispatcherDone chan struct{}
}

func NewWorker[Task, TaskResult any](
	b backend.Backend, tw TaskWorker[Task, TaskResult], options *WorkerOptions,
) *Worker[Task, TaskResult] {
	if len(options.Queues) == 0 {
		options.Queues = []core.Queue{core.QueueDefault}
	}

	if options.Pollers <= 0 {
		options.Pollers = 1
	}

	_, blocking := b.(BlockingBackend)

	var report func(int64)
	if options.Kind != "" {
		m := b.Metrics()
		tags := metrics.Tags{metrickeys.TaskKind: options.Kind}
		report = func(inFlight int64) {
			m.Gauge(metrickeys.WorkerTasksInFlight, tags, inFlight)
		}
	}

	return &Worker[Task, TaskResult]{
		tw:             tw,
		options:        options,
		taskQueue:      newWorkQueue[Task](options.MaxParallelTasks, report),
		logger:         b.Logger(),
		blocking:       blocking,
		dispatcherDone: make(chan struct{}, 1),
	}
}

// Start starts the pollers and the dispatcher. Cancel ctx to stop polling.
func (w *Worker[Task, TaskResult]) Start(ctx context.Context) error {
	w.pollersWg.Add(w.options.Pollers)

	for i := 0; i < w.options.Pollers; i++ {
		go w.poller(ctx)
	}

	go w.dispatcher()

	return nil
}

// WaitForCompletion waits until polling stopped and all dispatched tasks are done.
func (w *Worker[Task, TaskResult]) WaitForCompletion() error {
	// Wait for task pollers to finish
	w.pollersWg.Wait()

	// Wait for tasks to finish
	close(w.taskQueue.tasks)
	<-w.dispatcherDone

	return nil
}

func (w *Worker[Task, TaskResult]) poller(ctx context.Context) {
	defer w.pollersWg.Done()

	var tick <-chan time.Time
	if w.options.PollingInterval > 0 {
		ticker := time.NewTicker(w.options.PollingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		// Only poll if there is capacity to execute the task
		if err := w.taskQueue.reserve(ctx); err != nil {
			return
		}

		task, err := w.poll(ctx, 30*time.Second)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				w.logger.ErrorContext(ctx, "error polling task", "error", err)
			}
		} else if task != nil {
			if err := w.taskQueue.add(ctx, task); err != nil {
				w.taskQueue.release()
				return
			}

			continue // check for new tasks right away
		}

		w.taskQueue.release()

		if ctx.Err() != nil {
			return
		}

		// Blocking backends already waited for a task
		if (err == nil && w.blocking) || tick == nil {
			continue
		}

		select {
		case <-tick:
		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker[Task, TaskResult]) dispatcher() {
	var wg sync.WaitGroup

	for t := range w.taskQueue.tasks {
		wg.Add(1)

		go func() {
			defer wg.Done()
			defer w.taskQueue.release()

			// Create new context to allow tasks to complete when root context is canceled
			taskCtx := context.Background()
			if err := w.handle(taskCtx, t); err != nil {
				w.logger.ErrorContext(taskCtx, "could not handle task", "error", err)
			}
		}()
	}

	wg.Wait()

	w.dispatcherDone <- struct{}{}
}

func (w *Worker[Task, TaskResult]) handle(ctx context.Context, t *Task) error {
	result, err := func() (*TaskResult, error) {
		if w.options.HeartbeatInterval > 0 {
			// Start heartbeat while processing task
			heartbeatCtx, cancelHeartbeat := context.WithCancel(ctx)
			defer cancelHeartbeat()
			go w.heartbeatTask(heartbeatCtx, t)
		}

		return w.tw.Execute(ctx, t)
	}()
	if err != nil {
		return fmt.Errorf("executing task: %w", err)
	}

	return w.tw.Complete(ctx, result, t)
}

func (w *Worker[Task, TaskResult]) heartbeatTask(ctx context.Context, task *Task) {
	t := time.NewTicker(w.options.HeartbeatInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := w.tw.Extend(ctx, task); err != nil {
				w.logger.ErrorContext(ctx, "could not heartbeat task", "error", err)
			}
		}
	}
}

func (w *Worker[Task, TaskResult]) poll(ctx context.Context, timeout time.Duration) (*Task, error) {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	task, err := w.tw.Get(ctx, w.options.Queues)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}

		return nil, err
	}

	return task, nil
}
