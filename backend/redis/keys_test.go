package redis

import (
	"testing"

	"github.com/cschleiden/go-orchestrator/core"
	"github.com/stretchr/testify/require"
)

func Test_newKeys(t *testing.T) {
	t.Run("WithEmptyPrefix", func(t *testing.T) {
		k := newKeys("")
		require.Empty(t, k.prefix)
	})

	t.Run("WithNonEmptyPrefixWithoutColon", func(t *testing.T) {
		k := newKeys("prefix")
		require.Equal(t, "prefix:", k.prefix)
	})

	t.Run("WithNonEmptyPrefixWithColon", func(t *testing.T) {
		k := newKeys("prefix:")
		require.Equal(t, "prefix:", k.prefix)
	})
}

func Test_Keys(t *testing.T) {
	k := newKeys("p")
	instance := core.NewWorkflowInstance("instance", "execution", core.QueueDefault)

	require.Equal(t, "p:instance:instance", k.instanceKey(instance.InstanceID))
	require.Equal(t, "p:execution:instance:execution", k.executionKey(instance))
	require.Equal(t, "p:pending-events:instance:execution", k.pendingEventsKey(instance))
	require.Equal(t, "p:history:instance:execution", k.historyKey(instance))
	require.Equal(t, "p:task-stream:default:workflows", k.taskStreamKey(core.QueueDefault, workflowTaskType))
	require.Equal(t, "p:task-set:default:activities", k.taskSetKey(core.QueueDefault, activityTaskType))
	require.Equal(t, "42-0", historyID(42))
}

func Test_SegmentRoundTrip(t *testing.T) {
	instance := core.NewWorkflowInstance("order:1234", "execution", core.QueueDefault)

	instanceID, executionID, ok := splitSegment(instanceSegment(instance))
	require.True(t, ok)
	require.Equal(t, "order:1234", instanceID)
	require.Equal(t, "execution", executionID)

	_, _, ok = splitSegment("nocolon")
	require.False(t, ok)
}
