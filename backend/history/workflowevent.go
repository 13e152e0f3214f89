package history

import "github.com/cschleiden/go-orchestrator/core"

// WorkflowEvent is an event addressed to a specific workflow instance
type WorkflowEvent struct {
	WorkflowInstance *core.WorkflowInstance

	HistoryEvent *Event
}

func EventsByWorkflowInstance(events []*WorkflowEvent) map[core.WorkflowInstance][]*WorkflowEvent {
	groupedEvents := make(map[core.WorkflowInstance][]*WorkflowEvent)

	for _, m := range events {
		instance := *m.WorkflowInstance

		groupedEvents[instance] = append(groupedEvents[instance], m)
	}

	return groupedEvents
}
