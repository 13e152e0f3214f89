package workflowstate

import (
	"log/slog"
	"testing"
	"time"

	"github.com/cschleiden/go-orchestrator/backend/history"
	"github.com/cschleiden/go-orchestrator/internal/workflowerrors"
	"github.com/stretchr/testify/require"
)

func scheduled(id int64, et history.EventType, name string) *history.Event {
	var attr any
	switch et {
	case history.EventType_TaskScheduled:
		attr = &history.TaskScheduledAttributes{Name: name}
	case history.EventType_SubOrchestrationScheduled:
		attr = &history.SubOrchestrationScheduledAttributes{Name: name}
	case history.EventType_TimerCreated:
		attr = &history.TimerCreatedAttributes{}
	}

	return history.NewHistoryEvent(id, time.Now(), et, attr, history.ScheduleEventID(id))
}

func Test_Schedule_NewDecisions(t *testing.T) {
	s := newState(slog.Default())
	s.SetReplaying(true)

	id, recorded, err := s.Schedule(history.EventType_TaskScheduled, "a")
	require.NoError(t, err)
	require.False(t, recorded)
	require.Equal(t, int64(1), id)
	require.False(t, s.Replaying())

	id, _, err = s.Schedule(history.EventType_TimerCreated, "")
	require.NoError(t, err)
	require.Equal(t, int64(2), id)
}

func Test_Schedule_Recorded(t *testing.T) {
	s := newState(slog.Default())
	s.SetReplaying(true)
	s.AddScheduled(scheduled(1, history.EventType_TaskScheduled, "a"))
	s.AddScheduled(scheduled(2, history.EventType_SubOrchestrationScheduled, "b"))

	require.Equal(t, []int64{1, 2}, s.Unreached())

	id, recorded, err := s.Schedule(history.EventType_TaskScheduled, "a")
	require.NoError(t, err)
	require.True(t, recorded)
	require.Equal(t, int64(1), id)
	require.True(t, s.Replaying())

	require.Equal(t, []int64{2}, s.Unreached())
}

func Test_Schedule_Mismatch(t *testing.T) {
	tests := []struct {
		name      string
		eventType history.EventType
		fnName    string
	}{
		{"type", history.EventType_TimerCreated, ""},
		{"name", history.EventType_TaskScheduled, "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newState(slog.Default())
			s.AddScheduled(scheduled(1, history.EventType_TaskScheduled, "a"))

			_, _, err := s.Schedule(tt.eventType, tt.fnName)
			require.True(t, workflowerrors.IsNonDeterminism(err))
		})
	}
}

func Test_AddCompletion_Duplicate(t *testing.T) {
	s := newState(slog.Default())

	e := history.NewPendingEvent(time.Now(), history.EventType_TaskCompleted, &history.TaskCompletedAttributes{}, history.ScheduleEventID(1))

	require.True(t, s.AddCompletion(e, false))
	require.False(t, s.AddCompletion(e, true))

	c, isNew, ok := s.Completion(1)
	require.True(t, ok)
	require.False(t, isNew)
	require.Same(t, e, c)

	_, _, ok = s.Completion(2)
	require.False(t, ok)
}

func Test_AdvanceTime(t *testing.T) {
	s := newState(slog.Default())
	begin := s.Time()

	s.AdvanceTime(begin.Add(time.Minute))
	require.Equal(t, begin.Add(time.Minute), s.Time())

	// Results can be observed out of completion order
	s.AdvanceTime(begin.Add(time.Second))
	require.Equal(t, begin.Add(time.Minute), s.Time())
}
