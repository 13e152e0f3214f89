package monoprocess

import (
	"context"
	"testing"
	"time"

	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/backend/sqlite"
	"github.com/cschleiden/go-orchestrator/backend/test"
	"github.com/cschleiden/go-orchestrator/core"
	iworker "github.com/cschleiden/go-orchestrator/internal/worker"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func Test_MonoprocessBackend(t *testing.T) {
	if testing.Short() {
		t.Skip()
	}

	test.BackendTest(t, func() backend.Backend {
		return NewMonoprocessBackend(sqlite.NewInMemoryBackend(), 0, time.Millisecond)
	}, func(b backend.Backend) {
		b.Close()
	})
}

func Test_EndToEndMonoprocessBackend(t *testing.T) {
	if testing.Short() {
		t.Skip()
	}

	test.EndToEndBackendTest(t, func() backend.Backend {
		return NewMonoprocessBackend(sqlite.NewInMemoryBackend(), 10, 0)
	}, func(b backend.Backend) {
		b.Close()
	})
}

func Test_MonoprocessBackend_IsBlocking(t *testing.T) {
	b := NewMonoprocessBackend(sqlite.NewInMemoryBackend(), 0, 0)
	defer b.Close()

	require.Implements(t, (*iworker.BlockingBackend)(nil), b)
}

func Test_MonoprocessBackend_WakesUpWaitingWorker(t *testing.T) {
	b := NewMonoprocessBackend(sqlite.NewInMemoryBackend(), 0, time.Second)
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	instance := core.NewWorkflowInstance(uuid.NewString(), uuid.NewString(), core.QueueDefault)

	type result struct {
		task *backend.WorkflowTask
		err  error
	}

	tasks := make(chan result, 1)
	go func() {
		task, err := b.GetWorkflowTask(ctx, []core.Queue{core.QueueDefault})
		tasks <- result{task, err}
	}()

	// Give the worker time to block waiting for a signal
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, b.CreateWorkflowInstance(ctx, instance, history.NewPendingEvent(
		time.Now(), history.EventType_OrchestratorStarted, &history.OrchestratorStartedAttributes{Name: "wf"})))

	r := <-tasks
	require.NoError(t, r.err)
	require.NotNil(t, r.task)
	require.Equal(t, instance.InstanceID, r.task.WorkflowInstance.InstanceID)
}

func Test_MonoprocessBackend_ReturnsOnContextDone(t *testing.T) {
	b := NewMonoprocessBackend(sqlite.NewInMemoryBackend(), 0, 0)
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	task, err := b.GetActivityTask(ctx, []core.Queue{core.QueueDefault})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Nil(t, task)
}

func Test_MonoprocessBackend_WakesUpWorkerOfQueue(t *testing.T) {
	b := NewMonoprocessBackend(sqlite.NewInMemoryBackend(), 0, 100*time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	otherCtx, otherCancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer otherCancel()

	other := make(chan error, 1)
	go func() {
		_, err := b.GetWorkflowTask(otherCtx, []core.Queue{"other"})
		other <- err
	}()

	tasks := make(chan *backend.WorkflowTask, 1)
	go func() {
		task, err := b.GetWorkflowTask(ctx, []core.Queue{core.QueueDefault, "app"})
		require.NoError(t, err)
		tasks <- task
	}()

	time.Sleep(50 * time.Millisecond)

	instance := core.NewWorkflowInstance(uuid.NewString(), uuid.NewString(), "app")
	require.NoError(t, b.CreateWorkflowInstance(ctx, instance, history.NewPendingEvent(
		time.Now(), history.EventType_OrchestratorStarted, &history.OrchestratorStartedAttributes{Name: "wf"})))

	select {
	case task := <-tasks:
		require.NotNil(t, task)
		require.Equal(t, instance.InstanceID, task.WorkflowInstance.InstanceID)
	case <-ctx.Done():
		require.FailNow(t, "worker for app was not woken up")
	}

	// The worker for the other queue keeps waiting
	require.ErrorIs(t, <-other, context.DeadlineExceeded)
}

func Test_Signals_DropsWhenNobodyWaits(t *testing.T) {
	s := newSignals(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	// Buffered
	require.NoError(t, s.signal(ctx, "q"))

	// Buffer full
	require.ErrorIs(t, s.signal(ctx, "q"), context.DeadlineExceeded)

	// Buffered signal is consumed by the next wait
	require.NoError(t, s.wait(context.Background(), []core.Queue{"q"}))
}

func Test_MonoprocessBackend_WakesUpParentOfSubWorkflow(t *testing.T) {
	b := NewMonoprocessBackend(sqlite.NewInMemoryBackend(), 10, time.Second)
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	parentQueue, childQueue := core.Queue("parent-app"), core.Queue("child-app")

	parent := core.NewWorkflowInstance(uuid.NewString(), uuid.NewString(), parentQueue)
	require.NoError(t, b.CreateWorkflowInstance(ctx, parent, history.NewPendingEvent(
		time.Now(), history.EventType_OrchestratorStarted, &history.OrchestratorStartedAttributes{Name: "parent"})))

	task, err := b.GetWorkflowTask(ctx, []core.Queue{parentQueue})
	require.NoError(t, err)

	started := task.NewEvents[0]
	started.SequenceID = 1

	sub := core.NewSubWorkflowInstance(uuid.NewString(), uuid.NewString(), childQueue, task.WorkflowInstance, 1)
	require.NoError(t, b.CompleteWorkflowTask(ctx, task, &backend.Checkpoint{
		Status: core.StatusRunning,
		Executed: []*history.Event{
			started,
			history.NewHistoryEvent(2, time.Now(), history.EventType_SubOrchestrationScheduled, &history.SubOrchestrationScheduledAttributes{
				SubWorkflowInstance: sub,
				Name:                "child",
				AppID:               string(childQueue),
			}, history.ScheduleEventID(1)),
		},
		WorkflowEvents: []*history.WorkflowEvent{
			{WorkflowInstance: sub, HistoryEvent: history.NewPendingEvent(
				time.Now(), history.EventType_OrchestratorStarted, &history.OrchestratorStartedAttributes{Name: "child"})},
		},
	}))

	childTask, err := b.GetWorkflowTask(ctx, []core.Queue{childQueue})
	require.NoError(t, err)
	require.Equal(t, sub.InstanceID, childTask.WorkflowInstance.InstanceID)

	// Shorter than the wait of the parent's worker, only a signal for its queue completes it in time
	parentCtx, parentCancel := context.WithTimeout(ctx, 2*time.Second)
	defer parentCancel()

	parentTasks := make(chan *backend.WorkflowTask, 1)
	parentErrs := make(chan error, 1)
	go func() {
		task, err := b.GetWorkflowTask(parentCtx, []core.Queue{parentQueue})
		parentErrs <- err
		parentTasks <- task
	}()

	time.Sleep(50 * time.Millisecond)

	childStarted := childTask.NewEvents[0]
	childStarted.SequenceID = 1
	completedAt := time.Now()

	require.NoError(t, b.CompleteWorkflowTask(ctx, childTask, &backend.Checkpoint{
		Status: core.StatusCompleted,
		Executed: []*history.Event{
			childStarted,
			history.NewHistoryEvent(2, time.Now(), history.EventType_ExecutionCompleted, &history.ExecutionCompletedAttributes{}),
		},
		WorkflowEvents: []*history.WorkflowEvent{
			{
				WorkflowInstance: childTask.WorkflowInstance.Parent,
				HistoryEvent: history.NewPendingEvent(time.Now(), history.EventType_SubOrchestrationCompleted,
					&history.SubOrchestrationCompletedAttributes{}, history.ScheduleEventID(1)),
			},
		},
		CompletedAt: &completedAt,
	}))

	require.NoError(t, <-parentErrs)
	parentTask := <-parentTasks
	require.NotNil(t, parentTask)
	require.Equal(t, parent.InstanceID, parentTask.WorkflowInstance.InstanceID)
	require.Equal(t, history.EventType_SubOrchestrationCompleted, parentTask.NewEvents[0].Type)
}
