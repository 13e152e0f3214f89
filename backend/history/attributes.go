package history

import (
	"time"

	"github.com/cschleiden/go-orchestrator/backend/payload"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/cschleiden/go-orchestrator/internal/workflowerrors"
)

type OrchestratorStartedAttributes struct {
	Name string `json:"name,omitempty"`

	Input payload.Payload `json:"input,omitempty"`
}

type TaskScheduledAttributes struct {
	Name string `json:"name,omitempty"`

	Input payload.Payload `json:"input,omitempty"`
}

type TaskCompletedAttributes struct {
	Result payload.Payload `json:"result,omitempty"`
}

type TaskFailedAttributes struct {
	Error *workflowerrors.Error `json:"error,omitempty"`
}

type SubOrchestrationScheduledAttributes struct {
	SubWorkflowInstance *core.WorkflowInstance `json:"sub_workflow_instance,omitempty"`

	Name string `json:"name,omitempty"`

	Input payload.Payload `json:"input,omitempty"`

	// AppID is the routing hint for the target application, empty for the local one.
	AppID string `json:"app_id,omitempty"`
}

type SubOrchestrationCompletedAttributes struct {
	Result payload.Payload `json:"result,omitempty"`
}

type SubOrchestrationFailedAttributes struct {
	Error *workflowerrors.Error `json:"error,omitempty"`
}

type TimerCreatedAttributes struct {
	FireAt time.Time `json:"fire_at,omitempty"`
}

type TimerFiredAttributes struct {
	ScheduledAt time.Time `json:"scheduled_at,omitempty"`
	FireAt      time.Time `json:"fire_at,omitempty"`
}

type ContinueAsNewAttributes struct {
	Input payload.Payload `json:"input,omitempty"`

	ContinuedExecutionID string `json:"continued_execution_id,omitempty"`
}

type ExecutionCompletedAttributes struct {
	Result payload.Payload `json:"result,omitempty"`
}

type ExecutionFailedAttributes struct {
	Error *workflowerrors.Error `json:"error,omitempty"`
}
