package tracing

import (
	"github.com/cschleiden/go-orchestrator/core"
	"go.opentelemetry.io/otel/attribute"
)

const (
	WorkflowInstanceID  = "workflow.instance_id"
	WorkflowExecutionID = "workflow.execution_id"
	WorkflowName        = "workflow.name"
	WorkflowStatus      = "workflow.status"
	Queue               = "workflow.queue"

	WorkflowTaskID     = "workflow_task.id"
	WorkflowTaskEvents = "workflow_task.events"
	IsReplaying        = "workflow_task.replaying"

	ActivityTaskID = "activity_task.id"
	ActivityName   = "activity.name"

	ScheduleEventID = "schedule_event_id"
)

func InstanceAttributes(instance *core.WorkflowInstance) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(WorkflowInstanceID, instance.InstanceID),
		attribute.String(WorkflowExecutionID, instance.ExecutionID),
		attribute.String(Queue, string(instance.Queue)),
	}
}
