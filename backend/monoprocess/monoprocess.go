// Package monoprocess wraps a backend for deployments where workers and the backend share one process.
// Instead of polling, waiting workers are woken up whenever a task is enqueued for one of their queues.
package monoprocess

import (
	"context"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/core"
)

type monoprocessBackend struct {
	backend.Backend

	workflowSignals *signals
	activitySignals *signals
	signalTimeout   time.Duration

	logger *slog.Logger
}

// NewMonoprocessBackend wraps b and notifies waiting workers every time a task becomes available on
// one of their queues. Only one worker per queue is notified for each task, signals that cannot be
// delivered within signalTimeout are dropped and the task is picked up on the next poll.
//
// Only use this if all workers using the backend run in this process.
func NewMonoprocessBackend(b backend.Backend, signalBufferSize int, signalTimeout time.Duration) *monoprocessBackend {
	if signalTimeout <= 0 {
		signalTimeout = time.Second
	}

	return &monoprocessBackend{
		Backend:         b,
		workflowSignals: newSignals(signalBufferSize),
		activitySignals: newSignals(signalBufferSize),
		signalTimeout:   signalTimeout,
		logger:          b.Logger(),
	}
}

// BlockOnGetTask marks the backend as blocking until a task is available
func (b *monoprocessBackend) BlockOnGetTask() {}

func (b *monoprocessBackend) GetWorkflowTask(ctx context.Context, queues []core.Queue) (*backend.WorkflowTask, error) {
	for {
		if t, err := b.Backend.GetWorkflowTask(ctx, queues); t != nil || err != nil {
			return t, err
		}

		b.logger.DebugContext(ctx, "Waiting for workflow task signal", "queues", queues)

		if err := b.workflowSignals.wait(ctx, queues); err != nil {
			return nil, err
		}
	}
}

func (b *monoprocessBackend) GetActivityTask(ctx context.Context, queues []core.Queue) (*backend.ActivityTask, error) {
	for {
		if t, err := b.Backend.GetActivityTask(ctx, queues); t != nil || err != nil {
			return t, err
		}

		b.logger.DebugContext(ctx, "Waiting for activity task signal", "queues", queues)

		if err := b.activitySignals.wait(ctx, queues); err != nil {
			return nil, err
		}
	}
}

func (b *monoprocessBackend) CreateWorkflowInstance(ctx context.Context, instance *core.WorkflowInstance, event *history.Event) error {
	if err := b.Backend.CreateWorkflowInstance(ctx, instance, event); err != nil {
		return err
	}

	b.notify(ctx, b.workflowSignals, instance.Queue, "workflow")

	return nil
}

func (b *monoprocessBackend) CompleteWorkflowTask(ctx context.Context, task *backend.WorkflowTask, checkpoint *backend.Checkpoint) error {
	if err := b.Backend.CompleteWorkflowTask(ctx, task, checkpoint); err != nil {
		return err
	}

	queue := task.WorkflowInstance.Queue

	for range checkpoint.ActivityEvents {
		if !b.notify(ctx, b.activitySignals, queue, "activity") {
			break
		}
	}

	for _, e := range checkpoint.TimerEvents {
		fireAt := e.Timestamp
		if e.VisibleAt != nil {
			fireAt = *e.VisibleAt
		} else if attr, ok := e.Attributes.(*history.TimerFiredAttributes); ok {
			fireAt = attr.FireAt
		} else {
			b.logger.WarnContext(ctx, "Unexpected attributes in timer event", "type", reflect.TypeOf(e.Attributes).String())
		}

		// The task context is gone once the timer fires
		time.AfterFunc(time.Until(fireAt), func() {
			b.notify(context.Background(), b.workflowSignals, queue, "workflow")
		})
	}

	for _, we := range checkpoint.WorkflowEvents {
		if !b.notify(ctx, b.workflowSignals, we.WorkflowInstance.Queue, "workflow") {
			break
		}
	}

	return nil
}

func (b *monoprocessBackend) CompleteActivityTask(ctx context.Context, task *backend.ActivityTask, result *history.Event) error {
	if err := b.Backend.CompleteActivityTask(ctx, task, result); err != nil {
		return err
	}

	b.notify(ctx, b.workflowSignals, task.WorkflowInstance.Queue, "workflow")

	return nil
}

func (b *monoprocessBackend) notify(ctx context.Context, s *signals, queue core.Queue, kind string) bool {
	ctx, cancel := context.WithTimeout(ctx, b.signalTimeout)
	defer cancel()

	if err := s.signal(ctx, queue); err != nil {
		// The task is picked up on the next poll
		b.logger.DebugContext(ctx, "Could not signal task to worker", "kind", kind, "queue", queue, "reason", err)
		return false
	}

	b.logger.DebugContext(ctx, "Signalled task to worker", "kind", kind, "queue", queue)
	return true
}

// signals holds one channel per queue. Channels are created on first use by either side.
type signals struct {
	mu         sync.Mutex
	bufferSize int
	channels   map[core.Queue]chan struct{}
}

func newSignals(bufferSize int) *signals {
	return &signals{
		bufferSize: bufferSize,
		channels:   make(map[core.Queue]chan struct{}),
	}
}

func (s *signals) channel(queue core.Queue) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.channels[queue]
	if !ok {
		c = make(chan struct{}, s.bufferSize)
		s.channels[queue] = c
	}

	return c
}

func (s *signals) signal(ctx context.Context, queue core.Queue) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case s.channel(queue) <- struct{}{}:
		return nil
	}
}

// wait blocks until one of the given queues is signalled or ctx is done.
func (s *signals) wait(ctx context.Context, queues []core.Queue) error {
	if len(queues) == 1 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.channel(queues[0]):
			return nil
		}
	}

	cases := make([]reflect.SelectCase, 0, len(queues)+1)
	cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())})
	for _, q := range queues {
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(s.channel(q))})
	}

	if chosen, _, _ := reflect.Select(cases); chosen == 0 {
		return ctx.Err()
	}

	return nil
}
