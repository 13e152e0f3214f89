package history

import (
	"encoding/json"
	"fmt"
)

func (e *Event) UnmarshalJSON(data []byte) error {
	type Aevent Event
	a := &struct {
		// Attributes allows us to defer unmarshaling the events. Has to match the struct tag in Event
		Attributes json.RawMessage `json:"attr,omitempty"`
		*Aevent
	}{
		Aevent: (*Aevent)(e),
	}

	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}

	attributes, err := DeserializeAttributes(e.Type, a.Attributes)
	if err != nil {
		return err
	}

	e.Attributes = attributes

	return nil
}

func SerializeAttributes(attributes interface{}) ([]byte, error) {
	return json.Marshal(attributes)
}

func DeserializeAttributes(eventType EventType, attributes []byte) (attr interface{}, err error) {
	switch eventType {
	case EventType_OrchestratorStarted:
		attr = &OrchestratorStartedAttributes{}

	case EventType_TaskScheduled:
		attr = &TaskScheduledAttributes{}
	case EventType_TaskCompleted:
		attr = &TaskCompletedAttributes{}
	case EventType_TaskFailed:
		attr = &TaskFailedAttributes{}

	case EventType_SubOrchestrationScheduled:
		attr = &SubOrchestrationScheduledAttributes{}
	case EventType_SubOrchestrationCompleted:
		attr = &SubOrchestrationCompletedAttributes{}
	case EventType_SubOrchestrationFailed:
		attr = &SubOrchestrationFailedAttributes{}

	case EventType_TimerCreated:
		attr = &TimerCreatedAttributes{}
	case EventType_TimerFired:
		attr = &TimerFiredAttributes{}

	case EventType_ContinueAsNew:
		attr = &ContinueAsNewAttributes{}
	case EventType_ExecutionCompleted:
		attr = &ExecutionCompletedAttributes{}
	case EventType_ExecutionFailed:
		attr = &ExecutionFailedAttributes{}

	default:
		return nil, fmt.Errorf("unknown event type %d when deserializing attributes", eventType)
	}

	if len(attributes) == 0 {
		return attr, nil
	}

	err = json.Unmarshal(attributes, attr)
	return attr, err
}
