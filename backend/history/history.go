package history

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type EventType uint

const (
	_ EventType = iota

	EventType_OrchestratorStarted

	EventType_TaskScheduled
	EventType_TaskCompleted
	EventType_TaskFailed

	EventType_SubOrchestrationScheduled
	EventType_SubOrchestrationCompleted
	EventType_SubOrchestrationFailed

	EventType_TimerCreated
	EventType_TimerFired

	EventType_ContinueAsNew
	EventType_ExecutionCompleted
	EventType_ExecutionFailed
)

func (et EventType) String() string {
	switch et {
	case EventType_OrchestratorStarted:
		return "OrchestratorStarted"

	case EventType_TaskScheduled:
		return "TaskScheduled"
	case EventType_TaskCompleted:
		return "TaskCompleted"
	case EventType_TaskFailed:
		return "TaskFailed"

	case EventType_SubOrchestrationScheduled:
		return "SubOrchestrationScheduled"
	case EventType_SubOrchestrationCompleted:
		return "SubOrchestrationCompleted"
	case EventType_SubOrchestrationFailed:
		return "SubOrchestrationFailed"

	case EventType_TimerCreated:
		return "TimerCreated"
	case EventType_TimerFired:
		return "TimerFired"

	case EventType_ContinueAsNew:
		return "ContinueAsNew"
	case EventType_ExecutionCompleted:
		return "ExecutionCompleted"
	case EventType_ExecutionFailed:
		return "ExecutionFailed"

	default:
		return "Unknown"
	}
}

// Scheduling returns true for events that reserve a schedule event id.
func (et EventType) Scheduling() bool {
	return et == EventType_TaskScheduled || et == EventType_SubOrchestrationScheduled || et == EventType_TimerCreated
}

// Completion returns true for events that resolve a previously reserved schedule event id.
func (et EventType) Completion() bool {
	switch et {
	case EventType_TaskCompleted, EventType_TaskFailed,
		EventType_SubOrchestrationCompleted, EventType_SubOrchestrationFailed,
		EventType_TimerFired:
		return true
	}

	return false
}

// Terminal returns true for events that end a history segment.
func (et EventType) Terminal() bool {
	return et == EventType_ContinueAsNew || et == EventType_ExecutionCompleted || et == EventType_ExecutionFailed
}

// SchedulingType returns the event type that reserved the schedule event id a completion event resolves.
func (et EventType) SchedulingType() EventType {
	switch et {
	case EventType_TaskCompleted, EventType_TaskFailed:
		return EventType_TaskScheduled
	case EventType_SubOrchestrationCompleted, EventType_SubOrchestrationFailed:
		return EventType_SubOrchestrationScheduled
	case EventType_TimerFired:
		return EventType_TimerCreated
	}

	return 0
}

type Event struct {
	// ID is a unique identifier for this event
	ID string `json:"id,omitempty"`

	Type EventType `json:"t,omitempty"`

	Timestamp time.Time `json:"ts,omitempty"`

	// SequenceID is the position of the event in its instance's history. Strictly increasing, it is only
	// assigned once the event is appended to the history.
	SequenceID int64 `json:"sid,omitempty"`

	// ScheduleEventID correlates events belonging together. It is assigned when an activity, sub-workflow,
	// or timer is scheduled, and the scheduling event and its completion share it.
	ScheduleEventID int64 `json:"seid,omitempty"`

	// Attributes are event type specific attributes
	Attributes interface{} `json:"attr,omitempty"`

	// VisibleAt delays delivery of the event, used for timers.
	VisibleAt *time.Time `json:"vat,omitempty"`
}

func (e *Event) String() string {
	return e.Type.String()
}

type HistoryEventOption func(e *Event)

func ScheduleEventID(scheduleEventID int64) HistoryEventOption {
	return func(e *Event) {
		e.ScheduleEventID = scheduleEventID
	}
}

func VisibleAt(visibleAt time.Time) HistoryEventOption {
	return func(e *Event) {
		e.VisibleAt = &visibleAt
	}
}

// WithID overrides the generated event id.
func WithID(id string) HistoryEventOption {
	return func(e *Event) {
		e.ID = id
	}
}

// NewHistoryEvent creates an event that already has its place in a history.
func NewHistoryEvent(sequenceID int64, timestamp time.Time, eventType EventType, attributes interface{}, opts ...HistoryEventOption) *Event {
	e := NewPendingEvent(timestamp, eventType, attributes, opts...)
	e.SequenceID = sequenceID
	return e
}

// NewPendingEvent creates an event that has not been added to a history yet.
func NewPendingEvent(timestamp time.Time, eventType EventType, attributes interface{}, opts ...HistoryEventOption) *Event {
	event := &Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Timestamp:  timestamp,
		Attributes: attributes,
	}

	for _, opt := range opts {
		opt(event)
	}

	return event
}

var idNamespace = uuid.MustParse("4b6f0bd8-7c33-4a0c-8a4b-3e0b4f6d51a2")

// DeterministicID derives a stable id from the given parts. Replaying the same history produces the same
// ids for new events and sub-workflow instances.
func DeterministicID(parts ...string) string {
	return uuid.NewSHA1(idNamespace, []byte(strings.Join(parts, "/"))).String()
}
