package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/benbjohnson/clock"
	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/backend/metrics"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/cschleiden/go-orchestrator/internal/activity"
	"github.com/cschleiden/go-orchestrator/internal/metrickeys"
	"github.com/cschleiden/go-orchestrator/internal/workflowerrors"
	"github.com/cschleiden/go-orchestrator/log"
	"github.com/cschleiden/go-orchestrator/registry"
)

func NewActivityWorker(
	b backend.Backend,
	registry *registry.Registry,
	clock clock.Clock,
	options WorkerOptions,
) *Worker[backend.ActivityTask, history.Event] {
	ate := activity.NewExecutor(b.Logger(), b.Tracer(), b.Converter(), registry)

	tw := &ActivityTaskWorker{
		backend:              b,
		activityTaskExecutor: ate,
		clock:                clock,
		logger:               b.Logger(),
	}

	return NewWorker(b, tw, &options)
}

type ActivityTaskWorker struct {
	backend              backend.Backend
	activityTaskExecutor *activity.Executor
	clock                clock.Clock
	logger               *slog.Logger
}

func (atw *ActivityTaskWorker) Get(ctx context.Context, queues []core.Queue) (*backend.ActivityTask, error) {
	return atw.backend.GetActivityTask(ctx, queues)
}

func (atw *ActivityTaskWorker) Extend(ctx context.Context, task *backend.ActivityTask) error {
	return atw.backend.ExtendActivityTask(ctx, task)
}

// Execute runs the activity and returns the completion event for it.
func (atw *ActivityTaskWorker) Execute(ctx context.Context, task *backend.ActivityTask) (*history.Event, error) {
	a := task.Event.Attributes.(*history.TaskScheduledAttributes)
	ametrics := atw.backend.Metrics().WithTags(metrics.Tags{metrickeys.ActivityName: a.Name})

	// Record how long this task was in the queue
	scheduledAt := task.Event.Timestamp
	timeInQueue := atw.clock.Since(scheduledAt)
	ametrics.Distribution(metrickeys.ActivityTaskDelay, metrics.Tags{}, float64(timeInQueue.Milliseconds()))

	timer := metrics.Timer(ametrics, metrickeys.ActivityTaskProcessed, metrics.Tags{})
	defer timer.Stop()

	result, err := atw.activityTaskExecutor.ExecuteActivity(ctx, task)

	instance := task.WorkflowInstance
	seid := task.Event.ScheduleEventID

	if err != nil {
		atw.logger.Debug("Activity failed",
			log.ActivityNameKey, a.Name,
			log.InstanceIDKey, instance.InstanceID,
			log.ScheduleEventIDKey, seid,
			"error", err,
		)

		return history.NewPendingEvent(
			atw.clock.Now(),
			history.EventType_TaskFailed,
			&history.TaskFailedAttributes{
				Error: workflowerrors.FromError(err),
			},
			history.ScheduleEventID(seid),
			history.WithID(completionID(instance, seid, history.EventType_TaskFailed)),
		), nil
	}

	return history.NewPendingEvent(
		atw.clock.Now(),
		history.EventType_TaskCompleted,
		&history.TaskCompletedAttributes{
			Result: result,
		},
		history.ScheduleEventID(seid),
		history.WithID(completionID(instance, seid, history.EventType_TaskCompleted)),
	), nil
}

// Complete delivers the activity result to the workflow instance. A task that is gone was completed
// already, by this or another worker, and the result is dropped.
func (atw *ActivityTaskWorker) Complete(ctx context.Context, event *history.Event, task *backend.ActivityTask) error {
	if err := atw.backend.CompleteActivityTask(ctx, task, event); err != nil {
		if errors.Is(err, backend.ErrTaskNotFound) {
			atw.logger.Debug("Activity task already completed, dropping result",
				log.TaskIDKey, task.ID,
				log.InstanceIDKey, task.WorkflowInstance.InstanceID,
				log.ScheduleEventIDKey, task.Event.ScheduleEventID,
			)

			atw.backend.Metrics().Counter(metrickeys.ActivityTaskDuplicate, metrics.Tags{}, 1)

			return nil
		}

		return fmt.Errorf("completing activity task: %w", err)
	}

	return nil
}

// Each activity execution produces the same event id for its result
func completionID(instance *core.WorkflowInstance, scheduleEventID int64, eventType history.EventType) string {
	return history.DeterministicID(instance.InstanceID, instance.ExecutionID, fmt.Sprint(scheduleEventID), eventType.String(), "completion")
}
