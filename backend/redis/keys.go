package redis

import (
	"fmt"
	"strings"

	"github.com/cschleiden/go-orchestrator/core"
)

// keys builds all keys the backend uses. The Lua scripts build some of the same keys, keep both in sync.
type keys struct {
	prefix string
}

func newKeys(prefix string) *keys {
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}

	return &keys{prefix: prefix}
}

// instanceKey holds the id of the current execution of an instance. It is never removed, instance ids
// are not reused.
func (k *keys) instanceKey(instanceID string) string {
	return fmt.Sprintf("%vinstance:%v", k.prefix, instanceID)
}

func instanceSegment(instance *core.WorkflowInstance) string {
	return fmt.Sprintf("%v:%v", instance.InstanceID, instance.ExecutionID)
}

// executionKey holds the state of a single execution of an instance
func (k *keys) executionKey(instance *core.WorkflowInstance) string {
	return k.executionKeyFromSegment(instanceSegment(instance))
}

func (k *keys) executionKeyFromSegment(segment string) string {
	return fmt.Sprintf("%vexecution:%v", k.prefix, segment)
}

func (k *keys) pendingEventsKey(instance *core.WorkflowInstance) string {
	return k.pendingEventsKeyFromSegment(instanceSegment(instance))
}

func (k *keys) pendingEventsKeyFromSegment(segment string) string {
	return fmt.Sprintf("%vpending-events:%v", k.prefix, segment)
}

func (k *keys) historyKey(instance *core.WorkflowInstance) string {
	return fmt.Sprintf("%vhistory:%v", k.prefix, instanceSegment(instance))
}

func historyID(sequenceID int64) string {
	return fmt.Sprintf("%v-0", sequenceID)
}

func (k *keys) futureEventsKey() string {
	return k.prefix + "future-events"
}

func (k *keys) futureEventKey(instance *core.WorkflowInstance, eventID string) string {
	return fmt.Sprintf("%vfuture-event:%v:%v", k.prefix, instanceSegment(instance), eventID)
}

func (k *keys) taskSetKey(queue core.Queue, taskType string) string {
	return fmt.Sprintf("%vtask-set:%v:%v", k.prefix, queue, taskType)
}

func (k *keys) taskStreamKey(queue core.Queue, taskType string) string {
	return fmt.Sprintf("%vtask-stream:%v:%v", k.prefix, queue, taskType)
}

// taskLockKey holds the lock token and attempt of a dequeued task
func (k *keys) taskLockKey(queue core.Queue, taskType string, taskID string) string {
	return fmt.Sprintf("%vtask-lock:%v:%v:%v", k.prefix, queue, taskType, taskID)
}

// splitSegment splits an instance segment into instance and execution id. Execution ids never contain a
// colon, instance ids might.
func splitSegment(segment string) (instanceID, executionID string, ok bool) {
	i := strings.LastIndex(segment, ":")
	if i < 0 {
		return "", "", false
	}

	return segment[:i], segment[i+1:], true
}
