package instances

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cschleiden/go-orchestrator/backend"
	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/backend/metrics"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/cschleiden/go-orchestrator/internal/historycache"
	"github.com/cschleiden/go-orchestrator/internal/metrickeys"
	"github.com/cschleiden/go-orchestrator/internal/workflowerrors"
	"github.com/cschleiden/go-orchestrator/log"
	"github.com/cschleiden/go-orchestrator/workflow/executor"
)

// Result of executing a workflow task.
type Result struct {
	Checkpoint *backend.Checkpoint

	// History of the execution after the checkpoint is applied
	History []*history.Event
}

// Manager drives workflow executions through their lifecycle. It advances an execution for a claimed
// workflow task and turns the decision into a checkpoint the backend applies atomically. The backend's
// workflow task lock makes it the single writer per instance.
type Manager struct {
	b        backend.Backend
	executor *executor.Executor
	cache    *historycache.Cache
	logger   *slog.Logger
	metrics  metrics.Client
	clock    clock.Clock
}

func NewManager(b backend.Backend, e *executor.Executor, cache *historycache.Cache, clock clock.Clock) *Manager {
	return &Manager{
		b:        b,
		executor: e,
		cache:    cache,
		logger:   b.Logger(),
		metrics:  b.Metrics(),
		clock:    clock,
	}
}

// ExecuteTask advances the execution of the given task.
func (m *Manager) ExecuteTask(ctx context.Context, t *backend.WorkflowTask) (*Result, error) {
	logger := m.logger.With(
		log.TaskIDKey, t.ID,
		log.InstanceIDKey, t.WorkflowInstance.InstanceID,
		log.ExecutionIDKey, t.WorkflowInstance.ExecutionID,
	)

	m.recordDelay(t)

	h, err := m.history(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	d, err := m.executor.Advance(ctx, t.WorkflowInstance, h, t.NewEvents)
	if err != nil {
		return nil, fmt.Errorf("advancing workflow: %w", err)
	}

	cp := &backend.Checkpoint{
		Status:         d.Status,
		Executed:       d.Executed,
		ActivityEvents: d.ActivityEvents,
		TimerEvents:    d.TimerEvents,
		WorkflowEvents: d.WorkflowEvents,
	}

	if d.Status.Terminal() {
		now := m.clock.Now()
		cp.CompletedAt = &now
		cp.Output = d.Output

		if d.Error != nil {
			cp.Error, err = json.Marshal(d.Error)
			if err != nil {
				return nil, fmt.Errorf("marshaling workflow error: %w", err)
			}

			if workflowerrors.IsNonDeterminism(d.Error) {
				m.metrics.Counter(metrickeys.WorkflowNonDeterminism, metrics.Tags{metrickeys.WorkflowName: d.WorkflowName}, 1)
			}
		}
	}

	logger.Debug("Executed workflow task",
		log.WorkflowNameKey, d.WorkflowName,
		log.StatusKey, d.Status.String(),
		log.ExecutedEventsKey, len(d.Executed),
	)

	nh := make([]*history.Event, 0, len(h)+len(d.Executed))
	nh = append(nh, h...)
	nh = append(nh, d.Executed...)

	return &Result{
		Checkpoint: cp,
		History:    nh,
	}, nil
}

// CompleteTask hands the checkpoint to the backend and releases the task.
func (m *Manager) CompleteTask(ctx context.Context, t *backend.WorkflowTask, r *Result) error {
	instance := t.WorkflowInstance

	if err := m.b.CompleteWorkflowTask(ctx, t, r.Checkpoint); err != nil {
		// History in the store is unknown now
		m.cache.Evict(instance)

		return fmt.Errorf("completing workflow task: %w", err)
	}

	switch r.Checkpoint.Status {
	case core.StatusRunning:
		m.cache.Store(instance, r.History)

	case core.StatusContinuedAsNew:
		m.cache.Evict(instance)
		m.metrics.Counter(metrickeys.WorkflowInstanceContinuedAsNew, metrics.Tags{}, 1)

	default:
		m.cache.Evict(instance)
		m.metrics.Counter(metrickeys.WorkflowInstanceFinished, metrics.Tags{
			metrickeys.SubWorkflow: fmt.Sprint(instance.SubWorkflow()),
			metrickeys.Status:      r.Checkpoint.Status.String(),
		}, 1)
	}

	return nil
}

// history returns the history of the task's execution up to the task's last sequence id. Cached histories
// are topped up with the events the worker has not seen yet.
func (m *Manager) history(ctx context.Context, t *backend.WorkflowTask) ([]*history.Event, error) {
	instance := t.WorkflowInstance

	if h, ok := m.cache.Get(instance); ok {
		var last int64
		if len(h) > 0 {
			last = h[len(h)-1].SequenceID
		}

		switch {
		case last == t.LastSequenceID:
			return h, nil

		case last < t.LastSequenceID:
			missing, err := m.b.GetWorkflowInstanceHistory(ctx, instance, &last)
			if err != nil {
				return nil, err
			}

			r := make([]*history.Event, 0, len(h)+len(missing))
			r = append(r, h...)
			return append(r, missing...), nil
		}

		m.logger.Warn("Cached history ahead of task, reloading",
			log.InstanceIDKey, instance.InstanceID,
			log.TaskLastSequenceIDKey, t.LastSequenceID,
		)
		m.cache.Evict(instance)
	}

	if t.LastSequenceID == 0 {
		return nil, nil
	}

	h, err := m.b.GetWorkflowInstanceHistory(ctx, instance, nil)
	if err != nil {
		return nil, err
	}

	if len(h) > 0 && h[len(h)-1].SequenceID != t.LastSequenceID {
		return nil, fmt.Errorf("history ends at sequence id %d, task expects %d", h[len(h)-1].SequenceID, t.LastSequenceID)
	}

	return h, nil
}

func (m *Manager) recordDelay(t *backend.WorkflowTask) {
	if len(t.NewEvents) == 0 {
		return
	}

	var oldest time.Time
	for i, e := range t.NewEvents {
		ts := e.Timestamp
		if e.VisibleAt != nil {
			ts = *e.VisibleAt
		}

		if i == 0 || ts.Before(oldest) {
			oldest = ts
		}
	}

	m.metrics.Distribution(metrickeys.WorkflowTaskDelay, metrics.Tags{}, float64(m.clock.Since(oldest).Milliseconds()))
}
