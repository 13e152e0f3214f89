package test

import (
	"context"
	"testing"
	"time"

	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/backend/payload"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/cschleiden/go-orchestrator/internal/workflowerrors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var defaultQueues = []core.Queue{core.QueueDefault}

// BackendTest runs the conformance tests every backend has to pass. setup is called for every test and
// has to return a backend with an empty store.
func BackendTest(t *testing.T, setup func() backend.Backend, teardown func(b backend.Backend)) {
	tests := []struct {
		name string
		f    func(t *testing.T, ctx context.Context, b backend.Backend)
	}{
		{
			name: "GetWorkflowTask_ReturnsNilWhenTimeout",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				requireNoWorkflowTask(t, ctx, b, defaultQueues)
			},
		},
		{
			name: "GetActivityTask_ReturnsNilWhenTimeout",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				requireNoActivityTask(t, ctx, b, defaultQueues)
			},
		},
		{
			name: "CreateWorkflowInstance_DoesNotError",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				err := b.CreateWorkflowInstance(ctx, newInstance(core.QueueDefault), startedEvent("wf", "42"))
				require.NoError(t, err)
			},
		},
		{
			name: "CreateWorkflowInstance_SameInstanceIDErrors",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				instanceID := uuid.NewString()

				err := b.CreateWorkflowInstance(ctx, core.NewWorkflowInstance(instanceID, uuid.NewString(), core.QueueDefault), startedEvent("wf", ""))
				require.NoError(t, err)

				err = b.CreateWorkflowInstance(ctx, core.NewWorkflowInstance(instanceID, uuid.NewString(), core.QueueDefault), startedEvent("wf", ""))
				require.ErrorIs(t, err, backend.ErrInstanceAlreadyExists)
			},
		},
		{
			name: "GetWorkflowInstanceState_NotFound",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				s, err := b.GetWorkflowInstanceState(ctx, uuid.NewString())
				require.Nil(t, s)
				require.ErrorIs(t, err, backend.ErrInstanceNotFound)
			},
		},
		{
			name: "GetWorkflowInstanceState_ReturnsRunningInstance",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				wfi := newInstance(core.QueueDefault)
				require.NoError(t, b.CreateWorkflowInstance(ctx, wfi, startedEvent("wf", "42")))

				s, err := b.GetWorkflowInstanceState(ctx, wfi.InstanceID)
				require.NoError(t, err)
				require.Equal(t, wfi.InstanceID, s.Instance.InstanceID)
				require.Equal(t, wfi.ExecutionID, s.Instance.ExecutionID)
				require.Equal(t, core.QueueDefault, s.Instance.Queue)
				require.Equal(t, core.StatusRunning, s.Status)
				require.Equal(t, "wf", s.WorkflowName)
				require.Equal(t, "42", string(s.Input))
				require.Nil(t, s.CompletedAt)
				require.False(t, s.CreatedAt.IsZero())
			},
		},
		{
			name: "GetWorkflowTask_ReturnsTask",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				wfi := newInstance(core.QueueDefault)
				event := startedEvent("wf", "42")
				require.NoError(t, b.CreateWorkflowInstance(ctx, wfi, event))

				task := requireWorkflowTask(t, ctx, b, defaultQueues)
				require.Equal(t, wfi.InstanceID, task.WorkflowInstance.InstanceID)
				require.Equal(t, wfi.ExecutionID, task.WorkflowInstance.ExecutionID)
				require.Equal(t, int64(0), task.LastSequenceID)
				require.Len(t, task.NewEvents, 1)
				require.Equal(t, event.ID, task.NewEvents[0].ID)
				require.Equal(t, history.EventType_OrchestratorStarted, task.NewEvents[0].Type)

				a, ok := task.NewEvents[0].Attributes.(*history.OrchestratorStartedAttributes)
				require.True(t, ok)
				require.Equal(t, "wf", a.Name)
				require.Equal(t, "42", string(a.Input))
			},
		},
		{
			name: "GetWorkflowTask_OnlyReturnsTasksForGivenQueues",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				wfi := newInstance("other")
				require.NoError(t, b.CreateWorkflowInstance(ctx, wfi, startedEvent("wf", "")))

				requireNoWorkflowTask(t, ctx, b, defaultQueues)

				task := requireWorkflowTask(t, ctx, b, []core.Queue{core.QueueDefault, "other"})
				require.Equal(t, wfi.InstanceID, task.WorkflowInstance.InstanceID)
				require.Equal(t, core.Queue("other"), task.WorkflowInstance.Queue)
			},
		},
		{
			name: "GetWorkflowTask_LocksTask",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				require.NoError(t, b.CreateWorkflowInstance(ctx, newInstance(core.QueueDefault), startedEvent("wf", "")))

				requireWorkflowTask(t, ctx, b, defaultQueues)

				// First task is locked, second call should return nil
				requireNoWorkflowTask(t, ctx, b, defaultQueues)
			},
		},
		{
			name: "ExtendWorkflowTask_ReturnsErrorIfNotLocked",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				require.NoError(t, b.CreateWorkflowInstance(ctx, newInstance(core.QueueDefault), startedEvent("wf", "")))

				task := requireWorkflowTask(t, ctx, b, defaultQueues)
				require.NoError(t, b.ExtendWorkflowTask(ctx, task))

				other := *task
				other.ID = uuid.NewString()
				require.ErrorIs(t, b.ExtendWorkflowTask(ctx, &other), backend.ErrTaskNotFound)
			},
		},
		{
			name: "CompleteWorkflowTask_ReturnsErrorIfNotLocked",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				require.NoError(t, b.CreateWorkflowInstance(ctx, newInstance(core.QueueDefault), startedEvent("wf", "")))

				task := requireWorkflowTask(t, ctx, b, defaultQueues)

				other := *task
				other.ID = uuid.NewString()

				err := b.CompleteWorkflowTask(ctx, &other, &backend.Checkpoint{
					Status:   core.StatusRunning,
					Executed: []*history.Event{sequenced(task.NewEvents[0], 1)},
				})
				require.ErrorIs(t, err, backend.ErrTaskNotFound)

				// The original lock holder can still complete the task
				require.NoError(t, b.CompleteWorkflowTask(ctx, task, &backend.Checkpoint{
					Status:   core.StatusRunning,
					Executed: []*history.Event{sequenced(task.NewEvents[0], 1)},
				}))
			},
		},
		{
			name: "CompleteWorkflowTask_AddsHistoryAndSchedulesActivities",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				wfi := newInstance(core.QueueDefault)
				require.NoError(t, b.CreateWorkflowInstance(ctx, wfi, startedEvent("wf", "")))

				task := requireWorkflowTask(t, ctx, b, defaultQueues)

				scheduled := activityScheduledEvent(2, 1)
				require.NoError(t, b.CompleteWorkflowTask(ctx, task, &backend.Checkpoint{
					Status:         core.StatusRunning,
					Executed:       []*history.Event{sequenced(task.NewEvents[0], 1), scheduled},
					ActivityEvents: []*history.Event{scheduled},
				}))

				h, err := b.GetWorkflowInstanceHistory(ctx, wfi, nil)
				require.NoError(t, err)
				require.Len(t, h, 2)
				require.Equal(t, history.EventType_OrchestratorStarted, h[0].Type)
				require.Equal(t, int64(1), h[0].SequenceID)
				require.Equal(t, history.EventType_TaskScheduled, h[1].Type)
				require.Equal(t, int64(2), h[1].SequenceID)
				require.Equal(t, int64(1), h[1].ScheduleEventID)

				last := int64(1)
				h, err = b.GetWorkflowInstanceHistory(ctx, wfi, &last)
				require.NoError(t, err)
				require.Len(t, h, 1)
				require.Equal(t, scheduled.ID, h[0].ID)

				// Inbox is empty now
				requireNoWorkflowTask(t, ctx, b, defaultQueues)

				at := requireActivityTask(t, ctx, b, defaultQueues)
				require.Equal(t, wfi.InstanceID, at.WorkflowInstance.InstanceID)
				require.Equal(t, wfi.ExecutionID, at.WorkflowInstance.ExecutionID)
				require.Equal(t, core.QueueDefault, at.WorkflowInstance.Queue)
				require.Equal(t, scheduled.ID, at.Event.ID)
				require.Equal(t, int64(1), at.Event.ScheduleEventID)
				require.Equal(t, 1, at.Attempt)

				a, ok := at.Event.Attributes.(*history.TaskScheduledAttributes)
				require.True(t, ok)
				require.Equal(t, "activity", a.Name)

				// Activity is locked
				requireNoActivityTask(t, ctx, b, defaultQueues)
			},
		},
		{
			name: "CompleteActivityTask_DeliversResultOnce",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				wfi := newInstance(core.QueueDefault)
				require.NoError(t, b.CreateWorkflowInstance(ctx, wfi, startedEvent("wf", "")))

				task := requireWorkflowTask(t, ctx, b, defaultQueues)

				scheduled := activityScheduledEvent(2, 1)
				require.NoError(t, b.CompleteWorkflowTask(ctx, task, &backend.Checkpoint{
					Status:         core.StatusRunning,
					Executed:       []*history.Event{sequenced(task.NewEvents[0], 1), scheduled},
					ActivityEvents: []*history.Event{scheduled},
				}))

				at := requireActivityTask(t, ctx, b, defaultQueues)
				require.NoError(t, b.ExtendActivityTask(ctx, at))

				result := activityCompletedEvent(1, "23")
				require.NoError(t, b.CompleteActivityTask(ctx, at, result))

				// Duplicate completion
				require.ErrorIs(t, b.CompleteActivityTask(ctx, at, activityCompletedEvent(1, "23")), backend.ErrTaskNotFound)
				require.ErrorIs(t, b.ExtendActivityTask(ctx, at), backend.ErrTaskNotFound)

				task = requireWorkflowTask(t, ctx, b, defaultQueues)
				require.Equal(t, int64(2), task.LastSequenceID)
				require.Len(t, task.NewEvents, 1)
				require.Equal(t, result.ID, task.NewEvents[0].ID)
				require.Equal(t, history.EventType_TaskCompleted, task.NewEvents[0].Type)
				require.Equal(t, int64(1), task.NewEvents[0].ScheduleEventID)

				a, ok := task.NewEvents[0].Attributes.(*history.TaskCompletedAttributes)
				require.True(t, ok)
				require.Equal(t, "23", string(a.Result))
			},
		},
		{
			name: "ExtendActivityTask_ReturnsErrorIfNotLocked",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				require.NoError(t, b.CreateWorkflowInstance(ctx, newInstance(core.QueueDefault), startedEvent("wf", "")))

				task := requireWorkflowTask(t, ctx, b, defaultQueues)

				scheduled := activityScheduledEvent(2, 1)
				require.NoError(t, b.CompleteWorkflowTask(ctx, task, &backend.Checkpoint{
					Status:         core.StatusRunning,
					Executed:       []*history.Event{sequenced(task.NewEvents[0], 1), scheduled},
					ActivityEvents: []*history.Event{scheduled},
				}))

				at := requireActivityTask(t, ctx, b, defaultQueues)

				other := *at
				other.ID = uuid.NewString()
				require.ErrorIs(t, b.ExtendActivityTask(ctx, &other), backend.ErrTaskNotFound)
				require.ErrorIs(t, b.CompleteActivityTask(ctx, &other, activityCompletedEvent(1, "")), backend.ErrTaskNotFound)
			},
		},
		{
			name: "CompleteWorkflowTask_TimerEventsBecomeVisibleLater",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				wfi := newInstance(core.QueueDefault)
				require.NoError(t, b.CreateWorkflowInstance(ctx, wfi, startedEvent("wf", "")))

				task := requireWorkflowTask(t, ctx, b, defaultQueues)

				now := time.Now()
				fireAt := now.Add(time.Second)

				created := history.NewHistoryEvent(2, now, history.EventType_TimerCreated, &history.TimerCreatedAttributes{
					FireAt: fireAt,
				}, history.ScheduleEventID(1))
				fired := history.NewPendingEvent(now, history.EventType_TimerFired, &history.TimerFiredAttributes{
					ScheduledAt: now,
					FireAt:      fireAt,
				}, history.ScheduleEventID(1), history.VisibleAt(fireAt))

				require.NoError(t, b.CompleteWorkflowTask(ctx, task, &backend.Checkpoint{
					Status:      core.StatusRunning,
					Executed:    []*history.Event{sequenced(task.NewEvents[0], 1), created},
					TimerEvents: []*history.Event{fired},
				}))

				requireNoWorkflowTask(t, ctx, b, defaultQueues)

				time.Sleep(time.Until(fireAt))

				task = requireWorkflowTask(t, ctx, b, defaultQueues)
				require.Len(t, task.NewEvents, 1)
				require.Equal(t, fired.ID, task.NewEvents[0].ID)
				require.Equal(t, history.EventType_TimerFired, task.NewEvents[0].Type)
				require.NotNil(t, task.NewEvents[0].VisibleAt)
				require.WithinDuration(t, fireAt, *task.NewEvents[0].VisibleAt, time.Millisecond)
			},
		},
		{
			name: "CompleteWorkflowTask_CompletesInstance",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				wfi := newInstance(core.QueueDefault)
				require.NoError(t, b.CreateWorkflowInstance(ctx, wfi, startedEvent("wf", "")))

				task := requireWorkflowTask(t, ctx, b, defaultQueues)

				// Activity scheduled but never awaited
				scheduled := activityScheduledEvent(2, 1)
				completedAt := time.Now()
				require.NoError(t, b.CompleteWorkflowTask(ctx, task, &backend.Checkpoint{
					Status: core.StatusCompleted,
					Executed: []*history.Event{
						sequenced(task.NewEvents[0], 1),
						scheduled,
						history.NewHistoryEvent(3, time.Now(), history.EventType_ExecutionCompleted, &history.ExecutionCompletedAttributes{
							Result: payload.Payload("42"),
						}),
					},
					ActivityEvents: []*history.Event{scheduled},
					Output:         []byte("42"),
					CompletedAt:    &completedAt,
				}))

				s, err := b.GetWorkflowInstanceState(ctx, wfi.InstanceID)
				require.NoError(t, err)
				require.Equal(t, core.StatusCompleted, s.Status)
				require.Equal(t, "42", string(s.Output))
				require.NotNil(t, s.CompletedAt)
				require.WithinDuration(t, completedAt, *s.CompletedAt, time.Millisecond)

				// The result of the orphaned activity is dropped
				at := requireActivityTask(t, ctx, b, defaultQueues)
				require.NoError(t, b.CompleteActivityTask(ctx, at, activityCompletedEvent(1, "1")))

				requireNoWorkflowTask(t, ctx, b, defaultQueues)

				// Instance ids are not reused
				err = b.CreateWorkflowInstance(ctx, core.NewWorkflowInstance(wfi.InstanceID, uuid.NewString(), core.QueueDefault), startedEvent("wf", ""))
				require.ErrorIs(t, err, backend.ErrInstanceAlreadyExists)
			},
		},
		{
			name: "CompleteWorkflowTask_FailsInstance",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				wfi := newInstance(core.QueueDefault)
				require.NoError(t, b.CreateWorkflowInstance(ctx, wfi, startedEvent("wf", "")))

				task := requireWorkflowTask(t, ctx, b, defaultQueues)

				completedAt := time.Now()
				require.NoError(t, b.CompleteWorkflowTask(ctx, task, &backend.Checkpoint{
					Status: core.StatusFailed,
					Executed: []*history.Event{
						sequenced(task.NewEvents[0], 1),
						history.NewHistoryEvent(2, time.Now(), history.EventType_ExecutionFailed, &history.ExecutionFailedAttributes{
							Error: &workflowerrors.Error{Message: "boom"},
						}),
					},
					Error:       []byte(`{"message":"boom"}`),
					CompletedAt: &completedAt,
				}))

				s, err := b.GetWorkflowInstanceState(ctx, wfi.InstanceID)
				require.NoError(t, err)
				require.Equal(t, core.StatusFailed, s.Status)
				require.JSONEq(t, `{"message":"boom"}`, string(s.Error))
				require.Empty(t, s.Output)
			},
		},
		{
			name: "CompleteWorkflowTask_ContinueAsNewStartsNewExecution",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				wfi := newInstance(core.QueueDefault)
				require.NoError(t, b.CreateWorkflowInstance(ctx, wfi, startedEvent("wf", "1")))

				task := requireWorkflowTask(t, ctx, b, defaultQueues)

				continued := wfi.Continued(uuid.NewString())
				continuedStarted := startedEvent("wf", "2")

				require.NoError(t, b.CompleteWorkflowTask(ctx, task, &backend.Checkpoint{
					Status: core.StatusContinuedAsNew,
					Executed: []*history.Event{
						sequenced(task.NewEvents[0], 1),
						history.NewHistoryEvent(2, time.Now(), history.EventType_ContinueAsNew, &history.ContinueAsNewAttributes{
							Input:                payload.Payload("2"),
							ContinuedExecutionID: continued.ExecutionID,
						}),
					},
					WorkflowEvents: []*history.WorkflowEvent{
						{WorkflowInstance: continued, HistoryEvent: continuedStarted},
					},
				}))

				s, err := b.GetWorkflowInstanceState(ctx, wfi.InstanceID)
				require.NoError(t, err)
				require.Equal(t, core.StatusRunning, s.Status)
				require.Equal(t, continued.ExecutionID, s.Instance.ExecutionID)
				require.Equal(t, "2", string(s.Input))

				task = requireWorkflowTask(t, ctx, b, defaultQueues)
				require.Equal(t, continued.ExecutionID, task.WorkflowInstance.ExecutionID)
				require.Equal(t, int64(0), task.LastSequenceID)
				require.Len(t, task.NewEvents, 1)
				require.Equal(t, continuedStarted.ID, task.NewEvents[0].ID)

				// History of the previous execution is kept
				h, err := b.GetWorkflowInstanceHistory(ctx, wfi, nil)
				require.NoError(t, err)
				require.Len(t, h, 2)
				require.Equal(t, history.EventType_ContinueAsNew, h[1].Type)

				h, err = b.GetWorkflowInstanceHistory(ctx, continued, nil)
				require.NoError(t, err)
				require.Empty(t, h)
			},
		},
		{
			name: "CompleteWorkflowTask_SubWorkflowLifecycle",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				parent := newInstance(core.QueueDefault)
				require.NoError(t, b.CreateWorkflowInstance(ctx, parent, startedEvent("parent", "")))

				task := requireWorkflowTask(t, ctx, b, defaultQueues)

				sub := core.NewSubWorkflowInstance(uuid.NewString(), uuid.NewString(), core.QueueDefault, parent, 1)
				require.NoError(t, b.CompleteWorkflowTask(ctx, task, &backend.Checkpoint{
					Status: core.StatusRunning,
					Executed: []*history.Event{
						sequenced(task.NewEvents[0], 1),
						history.NewHistoryEvent(2, time.Now(), history.EventType_SubOrchestrationScheduled, &history.SubOrchestrationScheduledAttributes{
							SubWorkflowInstance: sub,
							Name:                "child",
						}, history.ScheduleEventID(1)),
					},
					WorkflowEvents: []*history.WorkflowEvent{
						{WorkflowInstance: sub, HistoryEvent: startedEvent("child", "")},
					},
				}))

				s, err := b.GetWorkflowInstanceState(ctx, sub.InstanceID)
				require.NoError(t, err)
				require.Equal(t, "child", s.WorkflowName)
				require.True(t, s.Instance.SubWorkflow())
				require.Equal(t, parent.InstanceID, s.Instance.Parent.InstanceID)
				require.Equal(t, parent.ExecutionID, s.Instance.Parent.ExecutionID)
				require.Equal(t, int64(1), s.Instance.ParentEventID)

				childTask := requireWorkflowTask(t, ctx, b, defaultQueues)
				require.Equal(t, sub.InstanceID, childTask.WorkflowInstance.InstanceID)
				require.True(t, childTask.WorkflowInstance.SubWorkflow())

				subCompleted := history.NewPendingEvent(time.Now(), history.EventType_SubOrchestrationCompleted, &history.SubOrchestrationCompletedAttributes{
					Result: payload.Payload("7"),
				}, history.ScheduleEventID(1))

				completedAt := time.Now()
				require.NoError(t, b.CompleteWorkflowTask(ctx, childTask, &backend.Checkpoint{
					Status: core.StatusCompleted,
					Executed: []*history.Event{
						sequenced(childTask.NewEvents[0], 1),
						history.NewHistoryEvent(2, time.Now(), history.EventType_ExecutionCompleted, &history.ExecutionCompletedAttributes{
							Result: payload.Payload("7"),
						}),
					},
					WorkflowEvents: []*history.WorkflowEvent{
						{WorkflowInstance: childTask.WorkflowInstance.Parent, HistoryEvent: subCompleted},
					},
					Output:      []byte("7"),
					CompletedAt: &completedAt,
				}))

				parentTask := requireWorkflowTask(t, ctx, b, defaultQueues)
				require.Equal(t, parent.InstanceID, parentTask.WorkflowInstance.InstanceID)
				require.Len(t, parentTask.NewEvents, 1)
				require.Equal(t, subCompleted.ID, parentTask.NewEvents[0].ID)
				require.Equal(t, int64(1), parentTask.NewEvents[0].ScheduleEventID)
			},
		},
		{
			name: "CompleteWorkflowTask_SubWorkflowKeepsParentQueue",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				parentQueue, childQueue := core.Queue("parent-app"), core.Queue("child-app")

				parent := newInstance(parentQueue)
				require.NoError(t, b.CreateWorkflowInstance(ctx, parent, startedEvent("parent", "")))

				task := requireWorkflowTask(t, ctx, b, []core.Queue{parentQueue})
				require.Equal(t, parentQueue, task.WorkflowInstance.Queue)

				sub := core.NewSubWorkflowInstance(uuid.NewString(), uuid.NewString(), childQueue, task.WorkflowInstance, 1)
				require.NoError(t, b.CompleteWorkflowTask(ctx, task, &backend.Checkpoint{
					Status: core.StatusRunning,
					Executed: []*history.Event{
						sequenced(task.NewEvents[0], 1),
						history.NewHistoryEvent(2, time.Now(), history.EventType_SubOrchestrationScheduled, &history.SubOrchestrationScheduledAttributes{
							SubWorkflowInstance: sub,
							Name:                "child",
							AppID:               string(childQueue),
						}, history.ScheduleEventID(1)),
					},
					WorkflowEvents: []*history.WorkflowEvent{
						{WorkflowInstance: sub, HistoryEvent: startedEvent("child", "")},
					},
				}))

				s, err := b.GetWorkflowInstanceState(ctx, sub.InstanceID)
				require.NoError(t, err)
				require.Equal(t, childQueue, s.Instance.Queue)
				require.Equal(t, parentQueue, s.Instance.Parent.Queue)

				// Completions of the child are routed to the queue of the parent
				childTask := requireWorkflowTask(t, ctx, b, []core.Queue{childQueue})
				require.Equal(t, sub.InstanceID, childTask.WorkflowInstance.InstanceID)
				require.Equal(t, parentQueue, childTask.WorkflowInstance.Parent.Queue)
			},
		},
		{
			name: "CompleteWorkflowTask_SubWorkflowWithExistingIDFails",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				existing := newInstance(core.QueueDefault)
				require.NoError(t, b.CreateWorkflowInstance(ctx, existing, startedEvent("other", "")))

				existingTask := requireWorkflowTask(t, ctx, b, defaultQueues)
				completedAt := time.Now()
				require.NoError(t, b.CompleteWorkflowTask(ctx, existingTask, &backend.Checkpoint{
					Status:      core.StatusCompleted,
					Executed:    []*history.Event{sequenced(existingTask.NewEvents[0], 1)},
					CompletedAt: &completedAt,
				}))

				parent := newInstance(core.QueueDefault)
				require.NoError(t, b.CreateWorkflowInstance(ctx, parent, startedEvent("parent", "")))

				task := requireWorkflowTask(t, ctx, b, defaultQueues)

				sub := core.NewSubWorkflowInstance(existing.InstanceID, uuid.NewString(), core.QueueDefault, parent, 1)
				require.NoError(t, b.CompleteWorkflowTask(ctx, task, &backend.Checkpoint{
					Status: core.StatusRunning,
					Executed: []*history.Event{
						sequenced(task.NewEvents[0], 1),
						history.NewHistoryEvent(2, time.Now(), history.EventType_SubOrchestrationScheduled, &history.SubOrchestrationScheduledAttributes{
							SubWorkflowInstance: sub,
							Name:                "child",
						}, history.ScheduleEventID(1)),
					},
					WorkflowEvents: []*history.WorkflowEvent{
						{WorkflowInstance: sub, HistoryEvent: startedEvent("child", "")},
					},
				}))

				parentTask := requireWorkflowTask(t, ctx, b, defaultQueues)
				require.Equal(t, parent.InstanceID, parentTask.WorkflowInstance.InstanceID)
				require.Len(t, parentTask.NewEvents, 1)
				require.Equal(t, history.EventType_SubOrchestrationFailed, parentTask.NewEvents[0].Type)
				require.Equal(t, int64(1), parentTask.NewEvents[0].ScheduleEventID)

				// Existing instance is untouched
				s, err := b.GetWorkflowInstanceState(ctx, existing.InstanceID)
				require.NoError(t, err)
				require.Equal(t, core.StatusCompleted, s.Status)
				require.Equal(t, existing.ExecutionID, s.Instance.ExecutionID)
			},
		},
		{
			name: "CompleteWorkflowTask_DropsEventsForFinishedInstances",
			f: func(t *testing.T, ctx context.Context, b backend.Backend) {
				finished := newInstance(core.QueueDefault)
				require.NoError(t, b.CreateWorkflowInstance(ctx, finished, startedEvent("wf", "")))

				task := requireWorkflowTask(t, ctx, b, defaultQueues)
				completedAt := time.Now()
				require.NoError(t, b.CompleteWorkflowTask(ctx, task, &backend.Checkpoint{
					Status:      core.StatusCompleted,
					Executed:    []*history.Event{sequenced(task.NewEvents[0], 1)},
					CompletedAt: &completedAt,
				}))

				sender := newInstance(core.QueueDefault)
				require.NoError(t, b.CreateWorkflowInstance(ctx, sender, startedEvent("wf", "")))

				task = requireWorkflowTask(t, ctx, b, defaultQueues)
				require.NoError(t, b.CompleteWorkflowTask(ctx, task, &backend.Checkpoint{
					Status:      core.StatusCompleted,
					Executed:    []*history.Event{sequenced(task.NewEvents[0], 1)},
					CompletedAt: &completedAt,
					WorkflowEvents: []*history.WorkflowEvent{
						{
							WorkflowInstance: finished,
							HistoryEvent: history.NewPendingEvent(time.Now(), history.EventType_SubOrchestrationCompleted, &history.SubOrchestrationCompletedAttributes{},
								history.ScheduleEventID(1)),
						},
					},
				}))

				requireNoWorkflowTask(t, ctx, b, defaultQueues)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := setup()
			ctx := context.Background()

			tt.f(t, ctx, b)

			if teardown != nil {
				teardown(b)
			}
		})
	}
}

func newInstance(queue core.Queue) *core.WorkflowInstance {
	return core.NewWorkflowInstance(uuid.NewString(), uuid.NewString(), queue)
}

func startedEvent(name, input string) *history.Event {
	return history.NewPendingEvent(time.Now(), history.EventType_OrchestratorStarted, &history.OrchestratorStartedAttributes{
		Name:  name,
		Input: payload.Payload(input),
	})
}

func activityScheduledEvent(sequenceID, scheduleEventID int64) *history.Event {
	return history.NewHistoryEvent(sequenceID, time.Now(), history.EventType_TaskScheduled, &history.TaskScheduledAttributes{
		Name: "activity",
	}, history.ScheduleEventID(scheduleEventID))
}

func activityCompletedEvent(scheduleEventID int64, result string) *history.Event {
	return history.NewPendingEvent(time.Now(), history.EventType_TaskCompleted, &history.TaskCompletedAttributes{
		Result: payload.Payload(result),
	}, history.ScheduleEventID(scheduleEventID))
}

// sequenced returns a copy of the given new event with its place in the history assigned
func sequenced(event *history.Event, sequenceID int64) *history.Event {
	e := *event
	e.SequenceID = sequenceID
	return &e
}

func requireWorkflowTask(t *testing.T, ctx context.Context, b backend.Backend, queues []core.Queue) *backend.WorkflowTask {
	t.Helper()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for {
		task, err := b.GetWorkflowTask(ctx, queues)
		if task != nil {
			require.NoError(t, err)
			return task
		}

		if ctx.Err() != nil {
			require.FailNow(t, "no workflow task available")
		}

		require.NoError(t, err)

		time.Sleep(10 * time.Millisecond)
	}
}

func requireNoWorkflowTask(t *testing.T, ctx context.Context, b backend.Backend, queues []core.Queue) {
	t.Helper()

	ctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()

	task, _ := b.GetWorkflowTask(ctx, queues)
	require.Nil(t, task)
}

func requireActivityTask(t *testing.T, ctx context.Context, b backend.Backend, queues []core.Queue) *backend.ActivityTask {
	t.Helper()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for {
		task, err := b.GetActivityTask(ctx, queues)
		if task != nil {
			require.NoError(t, err)
			return task
		}

		if ctx.Err() != nil {
			require.FailNow(t, "no activity task available")
		}

		require.NoError(t, err)

		time.Sleep(10 * time.Millisecond)
	}
}

func requireNoActivityTask(t *testing.T, ctx context.Context, b backend.Backend, queues []core.Queue) {
	t.Helper()

	ctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()

	task, _ := b.GetActivityTask(ctx, queues)
	require.Nil(t, task)
}
