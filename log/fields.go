package log

const (
	NamespaceKey = "workflows"

	ActivityNameKey = NamespaceKey + ".activity.name"
	InstanceIDKey   = NamespaceKey + ".instance.id"
	ExecutionIDKey  = NamespaceKey + ".execution.id"
	ParentIDKey     = NamespaceKey + ".instance.parent_id"
	QueueKey        = NamespaceKey + ".queue"
	AppIDKey        = NamespaceKey + ".app_id"

	WorkflowNameKey = NamespaceKey + ".workflow.name"
	StatusKey       = NamespaceKey + ".workflow.status"

	IsReplayingKey = NamespaceKey + ".is_replaying"

	EventTypeKey       = NamespaceKey + ".event.type"
	EventIDKey         = NamespaceKey + ".event.id"
	ScheduleEventIDKey = NamespaceKey + ".event.schedule_event_id"

	TaskIDKey             = NamespaceKey + ".task.id"
	TaskLastSequenceIDKey = NamespaceKey + ".task.last_sequence_id"
	ExecutedEventsKey     = NamespaceKey + ".task.executed_events"
	NewEventsKey          = NamespaceKey + ".task.new_events"

	ContinuedExecutionIDKey = NamespaceKey + ".continued.execution.id"

	DurationKey = NamespaceKey + ".duration_ms"
)
