package core

type WorkflowInstance struct {
	// InstanceID is the stable identity of the workflow instance. It is preserved across continue-as-new.
	InstanceID string `json:"instance_id,omitempty"`

	// ExecutionID identifies the current history segment of the instance. Every continue-as-new starts
	// a new execution.
	ExecutionID string `json:"execution_id,omitempty"`

	// Queue is the application the instance is routed to.
	Queue Queue `json:"queue,omitempty"`

	// Parent refers to the parent workflow instance if this instance is a sub-workflow.
	Parent *WorkflowInstance `json:"parent,omitempty"`

	// ParentEventID is the schedule event id in the parent workflow that started this sub-workflow.
	ParentEventID int64 `json:"parent_event_id,omitempty"`
}

func NewWorkflowInstance(instanceID, executionID string, queue Queue) *WorkflowInstance {
	return &WorkflowInstance{
		InstanceID:  instanceID,
		ExecutionID: executionID,
		Queue:       queue,
	}
}

func NewSubWorkflowInstance(instanceID, executionID string, queue Queue, parentInstance *WorkflowInstance, parentEventID int64) *WorkflowInstance {
	return &WorkflowInstance{
		InstanceID:    instanceID,
		ExecutionID:   executionID,
		Queue:         queue,
		Parent:        parentInstance,
		ParentEventID: parentEventID,
	}
}

func (wi *WorkflowInstance) SubWorkflow() bool {
	return wi.Parent != nil
}

// Continued returns the instance for the next execution of a continued-as-new workflow. Identity,
// queue, and the link to the parent are preserved.
func (wi *WorkflowInstance) Continued(executionID string) *WorkflowInstance {
	return &WorkflowInstance{
		InstanceID:    wi.InstanceID,
		ExecutionID:   executionID,
		Queue:         wi.Queue,
		Parent:        wi.Parent,
		ParentEventID: wi.ParentEventID,
	}
}
