package backend

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_ApplyOptions(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	o := ApplyOptions(WithLogger(logger), WithActivityLockTimeout(time.Second))

	require.Same(t, logger, o.Logger)
	require.Equal(t, time.Second, o.ActivityLockTimeout)
	require.Equal(t, DefaultOptions.WorkflowLockTimeout, o.WorkflowLockTimeout)
	require.NotNil(t, o.Converter)
}

func Test_ApplyOptions_NilLogger(t *testing.T) {
	o := ApplyOptions(WithLogger(nil))

	require.NotNil(t, o.Logger)
}
