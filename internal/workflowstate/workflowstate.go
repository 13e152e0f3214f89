package workflowstate

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/cschleiden/go-orchestrator/backend/converter"
	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/cschleiden/go-orchestrator/internal/command"
	"github.com/cschleiden/go-orchestrator/internal/sync"
	"github.com/cschleiden/go-orchestrator/internal/workflowerrors"
	"github.com/cschleiden/go-orchestrator/registry"
)

type key int

var workflowCtxKey key

type completion struct {
	event *history.Event

	// new is set for completions that are not part of the recorded history yet
	new bool
}

// WfState is the state of a single replay pass of a workflow instance.
type WfState struct {
	instance     *core.WorkflowInstance
	workflowName string

	scheduleEventID int64

	// Scheduling events recorded in the history, by schedule event id
	scheduled map[int64]*history.Event
	reached   map[int64]bool

	// Completions by schedule event id
	completions map[int64]*completion

	commands []command.Command

	replaying bool

	// Workflow time, starts at the start of the execution and advances with every result the workflow
	// receives
	time time.Time

	registry  *registry.Registry
	converter converter.Converter
	logger    *slog.Logger
}

func NewWorkflowState(
	instance *core.WorkflowInstance, workflowName string, r *registry.Registry, cv converter.Converter, logger *slog.Logger, startedAt time.Time,
) *WfState {
	state := &WfState{
		instance:        instance,
		workflowName:    workflowName,
		scheduleEventID: 1,
		scheduled:       map[int64]*history.Event{},
		reached:         map[int64]bool{},
		completions:     map[int64]*completion{},
		commands:        []command.Command{},
		time:            startedAt.UTC(),
		registry:        r,
		converter:       cv,
	}

	state.logger = NewReplayLogger(state, logger)

	return state
}

func WorkflowState(ctx sync.Context) *WfState {
	return ctx.Value(workflowCtxKey).(*WfState)
}

func WithWorkflowState(ctx sync.Context, wfState *WfState) sync.Context {
	return sync.WithValue(ctx, workflowCtxKey, wfState)
}

// AddScheduled records a scheduling event from the history.
func (wf *WfState) AddScheduled(event *history.Event) {
	wf.scheduled[event.ScheduleEventID] = event
}

// Scheduled returns the recorded scheduling event for the given schedule event id.
func (wf *WfState) Scheduled(scheduleEventID int64) (*history.Event, bool) {
	e, ok := wf.scheduled[scheduleEventID]
	return e, ok
}

// AddCompletion buffers the completion for a schedule event id. Returns false if there already is a
// completion for that id.
func (wf *WfState) AddCompletion(event *history.Event, isNew bool) bool {
	if _, ok := wf.completions[event.ScheduleEventID]; ok {
		return false
	}

	wf.completions[event.ScheduleEventID] = &completion{event, isNew}

	return true
}

// Completion returns the buffered completion for the given schedule event id, and whether it is new.
func (wf *WfState) Completion(scheduleEventID int64) (event *history.Event, isNew bool, ok bool) {
	c, ok := wf.completions[scheduleEventID]
	if !ok {
		return nil, false, false
	}

	return c.event, c.new, true
}

// Schedule reserves the next schedule event id for a call to schedule an activity, a sub-workflow, or a
// timer. If the history has a scheduling event at that id it has to match the call. recorded is true
// if the call is replayed from history.
func (wf *WfState) Schedule(eventType history.EventType, name string) (scheduleEventID int64, recorded bool, err error) {
	scheduleEventID = wf.scheduleEventID
	wf.scheduleEventID++

	e, ok := wf.scheduled[scheduleEventID]
	if !ok {
		// New decision, everything from here on is executed for the first time
		wf.replaying = false
		return scheduleEventID, false, nil
	}

	wf.reached[scheduleEventID] = true

	if e.Type != eventType {
		return 0, false, workflowerrors.NewNonDeterminismError(
			fmt.Sprintf("expected %v at schedule event id %d, found %v", eventType, scheduleEventID, e.Type))
	}

	if recordedName := scheduledName(e); recordedName != name {
		return 0, false, workflowerrors.NewNonDeterminismError(
			fmt.Sprintf("expected %v %q at schedule event id %d, found %q", eventType, name, scheduleEventID, recordedName))
	}

	return scheduleEventID, true, nil
}

// Unreached returns the schedule event ids of recorded scheduling events the current pass did not reach.
func (wf *WfState) Unreached() []int64 {
	var r []int64
	for id := range wf.scheduled {
		if !wf.reached[id] {
			r = append(r, id)
		}
	}

	slices.Sort(r)

	return r
}

func scheduledName(e *history.Event) string {
	switch a := e.Attributes.(type) {
	case *history.TaskScheduledAttributes:
		return a.Name
	case *history.SubOrchestrationScheduledAttributes:
		return a.Name
	}

	return ""
}

func (wf *WfState) Commands() []command.Command {
	return wf.commands
}

func (wf *WfState) AddCommand(cmd command.Command) {
	wf.commands = append(wf.commands, cmd)
}

// ClearCommands discards all decisions of the current pass
func (wf *WfState) ClearCommands() {
	wf.commands = []command.Command{}
}

func (wf *WfState) SetReplaying(replaying bool) {
	wf.replaying = replaying
}

func (wf *WfState) Replaying() bool {
	return wf.replaying
}

// Time is the current workflow time. It only depends on the recorded events the workflow has
// observed so far, so every pass sees the same time at the same point of the workflow.
func (wf *WfState) Time() time.Time {
	return wf.time
}

// AdvanceTime moves the workflow time forward to t. Earlier times are ignored.
func (wf *WfState) AdvanceTime(t time.Time) {
	if t.After(wf.time) {
		wf.time = t.UTC()
	}
}

func (wf *WfState) Instance() *core.WorkflowInstance {
	return wf.instance
}

func (wf *WfState) WorkflowName() string {
	return wf.workflowName
}

func (wf *WfState) Registry() *registry.Registry {
	return wf.registry
}

func (wf *WfState) Converter() converter.Converter {
	return wf.converter
}

func (wf *WfState) Logger() *slog.Logger {
	return wf.logger
}
