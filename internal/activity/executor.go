package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/backend/converter"
	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/backend/payload"
	"github.com/cschleiden/go-orchestrator/internal/args"
	"github.com/cschleiden/go-orchestrator/internal/tracing"
	"github.com/cschleiden/go-orchestrator/internal/workflowerrors"
	"github.com/cschleiden/go-orchestrator/registry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Executor struct {
	logger    *slog.Logger
	tracer    trace.Tracer
	converter converter.Converter
	r         *registry.Registry
}

func NewExecutor(logger *slog.Logger, tracer trace.Tracer, converter converter.Converter, r *registry.Registry) *Executor {
	return &Executor{
		logger:    logger,
		tracer:    tracer,
		converter: converter,
		r:         r,
	}
}

// ExecuteActivity runs the activity of the given task. Errors returned by the activity, and panics
// raised by it, are returned as the activity's error.
func (e *Executor) ExecuteActivity(ctx context.Context, task *backend.ActivityTask) (payload.Payload, error) {
	a := task.Event.Attributes.(*history.TaskScheduledAttributes)

	activity, err := e.r.GetActivity(a.Name)
	if err != nil {
		return nil, err
	}

	activityFn := reflect.ValueOf(activity)
	if activityFn.Type().Kind() != reflect.Func {
		return nil, errors.New("activity not a function")
	}

	fnArgs, addContext, err := args.InputToArgs(e.converter, activityFn, a.Input)
	if err != nil {
		return nil, fmt.Errorf("converting activity input: %w", err)
	}

	as := NewActivityState(task.Event.ID, a.Name, task.Attempt, task.WorkflowInstance, e.logger)
	activityCtx := WithActivityState(ctx, as)

	activityCtx, span := e.tracer.Start(activityCtx, tracing.ActivitySpanName(a.Name), trace.WithAttributes(
		tracing.InstanceAttributes(task.WorkflowInstance)...,
	), trace.WithAttributes(
		attribute.String(tracing.ActivityName, a.Name),
		attribute.String(tracing.ActivityTaskID, task.ID),
		attribute.Int64(tracing.ScheduleEventID, task.Event.ScheduleEventID),
	))
	defer span.End()

	if addContext {
		fnArgs[0] = reflect.ValueOf(activityCtx)
	}

	r, err := call(activityFn, fnArgs)
	if err != nil {
		return nil, tracing.WithSpanError(span, err)
	}

	result, err := args.ResultFromReturn(e.converter, r)
	return result, tracing.WithSpanError(span, err)
}

func call(fn reflect.Value, fnArgs []reflect.Value) (r []reflect.Value, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = workflowerrors.NewPanicError(fmt.Sprintf("panic: %v", rec))
		}
	}()

	return fn.Call(fnArgs), nil
}
