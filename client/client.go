package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/backend/metrics"
	"github.com/cschleiden/go-orchestrator/backend/payload"
	"github.com/cschleiden/go-orchestrator/core"
	a "github.com/cschleiden/go-orchestrator/internal/args"
	"github.com/cschleiden/go-orchestrator/internal/fn"
	"github.com/cschleiden/go-orchestrator/internal/metrickeys"
	"github.com/cschleiden/go-orchestrator/internal/tracing"
	"github.com/cschleiden/go-orchestrator/internal/workflowerrors"
	"github.com/cschleiden/go-orchestrator/log"
	"github.com/cschleiden/go-orchestrator/registry"
	"github.com/cschleiden/go-orchestrator/workflow"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultWaitTimeout is used when waiting for an instance without a timeout.
const DefaultWaitTimeout = 30 * time.Second

var (
	ErrInstanceNotFound = backend.ErrInstanceNotFound
	ErrUnknownWorkflow  = registry.ErrUnknownWorkflow

	// ErrWorkflowTimedOut is returned by GetWorkflowResult if the instance did not finish in time.
	ErrWorkflowTimedOut = errors.New("workflow did not finish in time")
)

type Client struct {
	backend  backend.Backend
	registry *registry.Registry
	clock    clock.Clock
}

type Option func(*Client)

// WithRegistry lets the client validate workflow names before scheduling instances. Without a registry
// every name is accepted and unknown workflows fail once a worker picks them up.
func WithRegistry(r *registry.Registry) Option {
	return func(c *Client) {
		c.registry = r
	}
}

func WithClock(clock clock.Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

func New(backend backend.Backend, opts ...Option) *Client {
	c := &Client{
		backend: backend,
		clock:   clock.New(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type scheduleOptions struct {
	instanceID string
	appID      core.Queue
}

type ScheduleOption func(*scheduleOptions)

// WithInstanceID sets the id of the new instance. A random id is generated otherwise.
func WithInstanceID(id string) ScheduleOption {
	return func(o *scheduleOptions) {
		o.instanceID = id
	}
}

// WithAppID routes the new instance to the workers of the given application.
func WithAppID(appID string) ScheduleOption {
	return func(o *scheduleOptions) {
		o.appID = core.Queue(appID)
	}
}

// ScheduleNewWorkflow creates a new instance of the given workflow and returns its id. wf is either the
// workflow function or its registered name. A nil input starts the workflow without input.
func (c *Client) ScheduleNewWorkflow(ctx context.Context, wf workflow.Workflow, input any, opts ...ScheduleOption) (string, error) {
	o := scheduleOptions{
		appID: core.QueueDefault,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := core.ValidQueue(o.appID); err != nil {
		return "", fmt.Errorf("app id %q: %w", o.appID, err)
	}

	var args []any
	if input != nil {
		args = append(args, input)
	}

	workflowName := fn.Name(wf)
	if _, ok := wf.(string); !ok {
		// Check arguments if the actual workflow function is given
		if err := fn.ParamsMatch(wf, 1, args...); err != nil {
			return "", err
		}
	}

	if c.registry != nil {
		if _, err := c.registry.GetWorkflow(workflowName); err != nil {
			return "", err
		}
	}

	in, err := a.ArgsToInput(c.backend.Converter(), args...)
	if err != nil {
		return "", fmt.Errorf("converting arguments: %w", err)
	}

	instanceID := o.instanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	wfi := core.NewWorkflowInstance(instanceID, uuid.NewString(), o.appID)

	ctx, span := c.backend.Tracer().Start(ctx, fmt.Sprintf("ScheduleNewWorkflow: %s", workflowName), trace.WithAttributes(
		append(tracing.InstanceAttributes(wfi), attribute.String(tracing.WorkflowName, workflowName))...,
	))
	defer span.End()

	startedEvent := history.NewPendingEvent(
		c.clock.Now(),
		history.EventType_OrchestratorStarted,
		&history.OrchestratorStartedAttributes{
			Name:  workflowName,
			Input: in,
		})

	if err := c.backend.CreateWorkflowInstance(ctx, wfi, startedEvent); err != nil {
		return "", tracing.WithSpanError(span, fmt.Errorf("creating workflow instance: %w", err))
	}

	c.backend.Logger().Debug(
		"Created workflow instance",
		log.InstanceIDKey, wfi.InstanceID,
		log.ExecutionIDKey, wfi.ExecutionID,
		log.WorkflowNameKey, workflowName,
		log.QueueKey, string(wfi.Queue),
	)

	c.backend.Metrics().Counter(metrickeys.WorkflowInstanceCreated, metrics.Tags{metrickeys.WorkflowName: workflowName}, 1)

	return wfi.InstanceID, nil
}

// WorkflowState is an instance's state as observed by a client.
type WorkflowState struct {
	InstanceID   string
	WorkflowName string

	// Status is StatusTimedOut if a wait for the instance expired.
	Status core.Status

	// Output of a completed instance
	Output payload.Payload

	// Error of a failed instance. A non-determinism failure is a *workflowerrors.NonDeterminismError.
	Error error

	CreatedAt   time.Time
	CompletedAt *time.Time
}

// GetStatus returns the current state of the given instance without waiting.
func (c *Client) GetStatus(ctx context.Context, instanceID string) (*WorkflowState, error) {
	s, err := c.backend.GetWorkflowInstanceState(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	state := &WorkflowState{
		InstanceID:   s.Instance.InstanceID,
		WorkflowName: s.WorkflowName,
		Status:       s.Status,
		Output:       s.Output,
		CreatedAt:    s.CreatedAt,
		CompletedAt:  s.CompletedAt,
	}

	if len(s.Error) > 0 {
		var werr workflowerrors.Error
		if err := json.Unmarshal(s.Error, &werr); err != nil {
			return nil, fmt.Errorf("unmarshaling workflow error: %w", err)
		}

		state.Error = workflowerrors.ToError(&werr)
	}

	return state, nil
}

// WaitForCompletion waits until the given instance is completed or failed. If that does not happen within
// timeout, the returned state has StatusTimedOut. Waiting does not affect the instance.
func (c *Client) WaitForCompletion(ctx context.Context, instanceID string, timeout time.Duration) (*WorkflowState, error) {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}

	ctx, span := c.backend.Tracer().Start(ctx, "WaitForCompletion", trace.WithAttributes(
		attribute.String(tracing.WorkflowInstanceID, instanceID),
	))
	defer span.End()

	b := backoff.ExponentialBackOff{
		InitialInterval:     time.Millisecond * 1,
		MaxInterval:         time.Second * 1,
		Multiplier:          1.5,
		RandomizationFactor: 0.5,
		MaxElapsedTime:      timeout,
		Stop:                backoff.Stop,
		Clock:               c.clock,
	}
	b.Reset()

	ticker := backoff.NewTicker(backoff.WithContext(&b, ctx))
	defer ticker.Stop()

	var last *WorkflowState

	for range ticker.C {
		s, err := c.GetStatus(ctx, instanceID)
		if err != nil {
			if errors.Is(err, ErrInstanceNotFound) {
				return nil, err
			}

			return nil, tracing.WithSpanError(span, fmt.Errorf("getting workflow state: %w", err))
		}

		if s.Status.Terminal() {
			span.SetAttributes(attribute.String(tracing.WorkflowStatus, s.Status.String()))
			return s, nil
		}

		last = s
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if last == nil {
		last = &WorkflowState{InstanceID: instanceID}
	}

	last.Status = core.StatusTimedOut
	last.Output = nil
	span.SetAttributes(attribute.String(tracing.WorkflowStatus, last.Status.String()))

	return last, nil
}

// GetWorkflowResult waits for the given instance and returns its typed result. A failed instance returns
// its error, one that does not finish within timeout returns ErrWorkflowTimedOut.
func GetWorkflowResult[T any](ctx context.Context, c *Client, instanceID string, timeout time.Duration) (T, error) {
	var r T

	s, err := c.WaitForCompletion(ctx, instanceID, timeout)
	if err != nil {
		return r, err
	}

	switch s.Status {
	case core.StatusCompleted:
		if err := c.backend.Converter().From(s.Output, &r); err != nil {
			return r, fmt.Errorf("converting result: %w", err)
		}

		return r, nil

	case core.StatusFailed:
		return r, s.Error

	default:
		return r, ErrWorkflowTimedOut
	}
}
