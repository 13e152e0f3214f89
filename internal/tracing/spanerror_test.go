package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func Test_WithSpanError(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	_, span := tp.Tracer("test").Start(context.Background(), "span")
	err := WithSpanError(span, errors.New("failed"))
	span.End()

	require.EqualError(t, err, "failed")

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Equal(t, codes.Error, spans[0].Status.Code)
	require.Equal(t, "failed", spans[0].Status.Description)
}

func Test_WithSpanError_Nil(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	_, span := tp.Tracer("test").Start(context.Background(), "span")
	require.NoError(t, WithSpanError(span, nil))
	span.End()

	require.Equal(t, codes.Unset, exporter.GetSpans()[0].Status.Code)
}
