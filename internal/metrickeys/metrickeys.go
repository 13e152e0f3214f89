package metrickeys

const (
	Prefix = "workflows."

	// Workflows
	WorkflowInstanceCreated        = Prefix + "workflow.created"
	WorkflowInstanceFinished       = Prefix + "workflow.finished"
	WorkflowInstanceContinuedAsNew = Prefix + "workflow.continued_as_new"
	WorkflowNonDeterminism         = Prefix + "workflow.non_determinism"

	WorkflowTaskProcessed = Prefix + "workflow.task.processed"
	WorkflowTaskDelay     = Prefix + "workflow.task.time_in_queue"

	HistoryCacheSize     = Prefix + "workflow.history_cache.size"
	HistoryCacheHit      = Prefix + "workflow.history_cache.hit"
	HistoryCacheEviction = Prefix + "workflow.history_cache.eviction"

	// Activities
	ActivityTaskProcessed = Prefix + "activity.task.processed"
	ActivityTaskDelay     = Prefix + "activity.task.time_in_queue"
	ActivityTaskDuplicate = Prefix + "activity.task.duplicate"

	// Workers
	WorkerTasksInFlight = Prefix + "worker.tasks.in_flight"
)

// Tag names
const (
	// Reason for evicting an entry from the history cache
	EvictionReason = "reason"

	SubWorkflow    = "subworkflow"
	ContinuedAsNew = "continued_as_new"

	// Backend the metric is reported by
	Backend = "backend"

	WorkflowName = "workflow"
	ActivityName = "activity"
	Status       = "status"

	// Kind of tasks a worker processes, "workflow" or "activity"
	TaskKind = "kind"
)
