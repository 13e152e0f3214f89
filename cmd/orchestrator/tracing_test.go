package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_NewTracerProvider(t *testing.T) {
	ctx := context.Background()

	for _, mode := range []string{"none", "stdout", "otlp"} {
		t.Run(mode, func(t *testing.T) {
			tp, err := newTracerProvider(ctx, mode, "localhost:4318")
			require.NoError(t, err)
			require.NotNil(t, tp)

			_, span := tp.Tracer("test").Start(ctx, "span")
			span.End()

			// Nothing listens on the otlp endpoint, only give the exporter a moment
			shutdownCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		})
	}

	_, err := newTracerProvider(ctx, "jaeger", "")
	require.ErrorContains(t, err, `unknown trace exporter "jaeger"`)
}
