package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/cschleiden/go-orchestrator/backend/converter"
	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/backend/payload"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/cschleiden/go-orchestrator/internal/args"
	"github.com/cschleiden/go-orchestrator/internal/command"
	"github.com/cschleiden/go-orchestrator/internal/continueasnew"
	"github.com/cschleiden/go-orchestrator/internal/sync"
	"github.com/cschleiden/go-orchestrator/internal/tracing"
	"github.com/cschleiden/go-orchestrator/internal/workflowerrors"
	"github.com/cschleiden/go-orchestrator/internal/workflowstate"
	"github.com/cschleiden/go-orchestrator/log"
	"github.com/cschleiden/go-orchestrator/registry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrMissingStartedEvent = errors.New("workflow execution has no OrchestratorStarted event")

// Decision is the outcome of advancing a workflow execution.
type Decision struct {
	WorkflowName string

	// Status of the workflow execution after the pass
	Status core.Status

	// Executed are the events to append to the history, with sequence ids assigned
	Executed []*history.Event

	// Activities that were scheduled
	ActivityEvents []*history.Event

	// Timers that were scheduled
	TimerEvents []*history.Event

	// Events for other workflow instances
	WorkflowEvents []*history.WorkflowEvent

	// Output is set for completed executions
	Output payload.Payload

	// Error is set for failed executions
	Error *workflowerrors.Error
}

type Executor struct {
	registry *registry.Registry
	cv       converter.Converter
	logger   *slog.Logger
	tracer   trace.Tracer
}

func NewExecutor(logger *slog.Logger, tracer trace.Tracer, r *registry.Registry, cv converter.Converter) *Executor {
	return &Executor{
		registry: r,
		cv:       cv,
		logger:   logger,
		tracer:   tracer,
	}
}

// Advance replays the workflow function of the given execution from the start against the recorded
// history h and the new events, and returns the decisions taken by the pass.
//
// Advance does not modify history and keeps no state across calls. Calling it twice with the same
// arguments yields the same decision.
func (e *Executor) Advance(ctx context.Context, instance *core.WorkflowInstance, h []*history.Event, newEvents []*history.Event) (*Decision, error) {
	logger := e.logger.With(
		log.InstanceIDKey, instance.InstanceID,
		log.ExecutionIDKey, instance.ExecutionID,
	)

	var lastSequenceID int64
	if len(h) > 0 {
		last := h[len(h)-1]
		lastSequenceID = last.SequenceID

		if last.Type.Terminal() {
			// This could happen if completions are delivered after the execution finished
			logger.Warn("Received events for finished workflow execution, discarding", log.NewEventsKey, len(newEvents))

			return &Decision{
				Status: terminalStatus(last),
			}, nil
		}
	}

	started := startedEvent(h, newEvents)
	if started == nil {
		return nil, ErrMissingStartedEvent
	}

	startedAttributes := started.Attributes.(*history.OrchestratorStartedAttributes)
	logger = logger.With(log.WorkflowNameKey, startedAttributes.Name)

	ctx, span := e.tracer.Start(ctx, tracing.WorkflowSpanName(startedAttributes.Name), trace.WithAttributes(
		tracing.InstanceAttributes(instance)...,
	), trace.WithAttributes(
		attribute.String(tracing.WorkflowName, startedAttributes.Name),
		attribute.Int(tracing.WorkflowTaskEvents, len(newEvents)),
	))
	defer span.End()

	// Timestamp of the events added by this pass
	now := passTime(h, newEvents)

	wfState := workflowstate.NewWorkflowState(instance, startedAttributes.Name, e.registry, e.cv, logger, started.Timestamp)
	wfState.SetReplaying(len(h) > 0)

	for _, event := range h {
		switch {
		case event.Type.Scheduling():
			wfState.AddScheduled(event)
		case event.Type.Completion():
			wfState.AddCompletion(event, false)
		}
	}

	executed := make([]*history.Event, 0, len(newEvents))
	for _, event := range newEvents {
		if !e.acceptNewEvent(logger, wfState, started, len(h) > 0, event) {
			continue
		}

		ev := *event
		executed = append(executed, &ev)
	}

	logger.Debug("Advancing workflow execution",
		log.TaskLastSequenceIDKey, lastSequenceID,
		log.NewEventsKey, len(executed),
	)

	if err := e.run(ctx, logger, wfState, startedAttributes); err != nil {
		return nil, tracing.WithSpanError(span, err)
	}

	d := &Decision{
		WorkflowName: startedAttributes.Name,
		Status:       core.StatusRunning,
	}

	for _, c := range wfState.Commands() {
		r := c.Commit(now)

		if r.Status != core.StatusRunning {
			d.Status = r.Status
		}

		executed = append(executed, r.Events...)
		d.ActivityEvents = append(d.ActivityEvents, r.ActivityEvents...)
		d.TimerEvents = append(d.TimerEvents, r.TimerEvents...)
		d.WorkflowEvents = append(d.WorkflowEvents, r.WorkflowEvents...)

		if cwc, ok := c.(*command.CompleteWorkflowCommand); ok {
			d.Output = cwc.Result
			d.Error = cwc.Error
		}
	}

	for _, event := range executed {
		lastSequenceID++
		event.SequenceID = lastSequenceID
	}
	d.Executed = executed

	span.SetAttributes(attribute.String(tracing.WorkflowStatus, d.Status.String()))

	logger.Debug("Advanced workflow execution",
		log.ExecutedEventsKey, len(d.Executed),
		log.TaskLastSequenceIDKey, lastSequenceID,
		log.StatusKey, d.Status.String(),
	)

	return d, nil
}

// acceptNewEvent filters events that cannot be applied to the execution: duplicate starts, completions
// for unknown schedule event ids, and duplicate completions.
func (e *Executor) acceptNewEvent(logger *slog.Logger, wfState *workflowstate.WfState, started *history.Event, hasHistory bool, event *history.Event) bool {
	fields := []any{
		log.EventIDKey, event.ID,
		log.EventTypeKey, event.Type.String(),
		log.ScheduleEventIDKey, event.ScheduleEventID,
	}

	switch {
	case event.Type == history.EventType_OrchestratorStarted:
		if hasHistory || event != started {
			logger.Warn("Discarding duplicate started event", fields...)
			return false
		}

	case event.Type.Completion():
		scheduled, ok := wfState.Scheduled(event.ScheduleEventID)
		if !ok || scheduled.Type != event.Type.SchedulingType() {
			logger.Warn("Discarding completion without matching scheduling event", fields...)
			return false
		}

		if !wfState.AddCompletion(event, true) {
			logger.Debug("Discarding duplicate completion", fields...)
			return false
		}

	default:
		logger.Warn("Discarding unexpected event", fields...)
		return false
	}

	return true
}

func (e *Executor) run(ctx context.Context, logger *slog.Logger, wfState *workflowstate.WfState, a *history.OrchestratorStartedAttributes) error {
	instance := wfState.Instance()

	wfFn, err := e.registry.GetWorkflow(a.Name)
	if err != nil {
		logger.Error("Workflow not registered, failing execution", "error", err)

		wfState.AddCommand(command.NewCompleteWorkflowCommand(instance, nil, workflowerrors.FromError(err)))

		return nil
	}

	fnv := reflect.ValueOf(wfFn)

	var result payload.Payload

	wfCtx := workflowstate.WithWorkflowState(sync.Background(), wfState)
	co := sync.NewCoroutine(wfCtx, func(ctx sync.Context) error {
		fnArgs, addContext, err := args.InputToArgs(e.cv, fnv, a.Input)
		if err != nil {
			return fmt.Errorf("converting workflow input: %w", err)
		}

		if !addContext {
			return errors.New("workflow must accept context as first argument")
		}

		fnArgs[0] = reflect.ValueOf(ctx)

		r := fnv.Call(fnArgs)

		result, err = args.ResultFromReturn(e.cv, r)
		return err
	})

	if err := co.Execute(); err != nil {
		return fmt.Errorf("executing workflow %s: %w", a.Name, err)
	}

	if abortErr := co.Aborted(); abortErr != nil {
		e.nonDeterministic(logger, wfState, abortErr)
		return nil
	}

	if !co.Finished() {
		// Suspended, waiting for results
		return nil
	}

	if unreached := wfState.Unreached(); len(unreached) > 0 {
		e.nonDeterministic(logger, wfState, workflowerrors.NewNonDeterminismError(
			fmt.Sprintf("workflow finished without reaching recorded schedule event ids %v", unreached)))
		return nil
	}

	wfErr := co.Error()

	var canErr *continueasnew.Error
	if errors.As(wfErr, &canErr) {
		wfState.AddCommand(command.NewContinueAsNewCommand(instance, a.Name, canErr.Input))
		return nil
	}

	if wfErr != nil {
		logger.Debug("Workflow failed", "error", wfErr)
		result = nil
	}

	wfState.AddCommand(command.NewCompleteWorkflowCommand(instance, result, workflowerrors.FromError(wfErr)))

	return nil
}

// nonDeterministic discards all decisions of the pass and fails the execution
func (e *Executor) nonDeterministic(logger *slog.Logger, wfState *workflowstate.WfState, err error) {
	logger.Error("Non-determinism detected, failing workflow execution", "error", err)

	wfState.ClearCommands()
	wfState.AddCommand(command.NewCompleteWorkflowCommand(wfState.Instance(), nil, workflowerrors.FromError(err)))
}

func startedEvent(h []*history.Event, newEvents []*history.Event) *history.Event {
	if len(h) > 0 {
		if h[0].Type == history.EventType_OrchestratorStarted {
			return h[0]
		}

		return nil
	}

	for _, event := range newEvents {
		if event.Type == history.EventType_OrchestratorStarted {
			return event
		}
	}

	return nil
}

// passTime is the time of the workflow task: the newest timestamp of its events.
func passTime(h []*history.Event, newEvents []*history.Event) time.Time {
	var t time.Time

	for _, event := range newEvents {
		if event.Timestamp.After(t) {
			t = event.Timestamp
		}

		if event.VisibleAt != nil && event.VisibleAt.After(t) {
			t = *event.VisibleAt
		}
	}

	if t.IsZero() && len(h) > 0 {
		t = h[len(h)-1].Timestamp
	}

	return t
}

func terminalStatus(event *history.Event) core.Status {
	switch event.Type {
	case history.EventType_ExecutionCompleted:
		return core.StatusCompleted
	case history.EventType_ContinueAsNew:
		return core.StatusContinuedAsNew
	default:
		return core.StatusFailed
	}
}
