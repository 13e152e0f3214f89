package workflowstate

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/cschleiden/go-orchestrator/backend/converter"
	"github.com/cschleiden/go-orchestrator/core"
	"github.com/cschleiden/go-orchestrator/registry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newState(logger *slog.Logger) *WfState {
	i := core.NewWorkflowInstance(uuid.NewString(), uuid.NewString(), core.QueueDefault)
	return NewWorkflowState(i, "wf", registry.New(), converter.DefaultConverter, logger, time.Now())
}

func Test_ReplayLogger_With(t *testing.T) {
	wfState := newState(slog.Default())

	with := wfState.Logger().With(slog.String("foo", "bar"))
	require.IsType(t, &replayHandler{}, with.Handler())
}

func Test_ReplayLogger_WithGroup(t *testing.T) {
	wfState := newState(slog.Default())

	with := wfState.Logger().WithGroup("group_name")
	require.IsType(t, &replayHandler{}, with.Handler())
}

func Test_ReplayLogger_SuppressedWhileReplaying(t *testing.T) {
	var buf bytes.Buffer
	wfState := newState(slog.New(slog.NewTextHandler(&buf, nil)))

	wfState.SetReplaying(true)
	wfState.Logger().Info("replayed")
	require.Empty(t, buf.String())

	wfState.SetReplaying(false)
	wfState.Logger().With("foo", "bar").Info("executed")
	require.Contains(t, buf.String(), "executed")
	require.Contains(t, buf.String(), "foo=bar")
	require.NotContains(t, buf.String(), "replayed")
}
