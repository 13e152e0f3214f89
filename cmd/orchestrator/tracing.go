package main

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// newTracerProvider returns a tracer provider exporting spans as configured by mode. With mode none,
// spans are recorded but not exported.
func newTracerProvider(ctx context.Context, mode, otlpEndpoint string) (*sdktrace.TracerProvider, error) {
	r := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName("go-orchestrator"),
		attribute.String("environment", "demo"),
	)

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(r)}

	switch mode {
	case "none":

	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("creating stdout exporter: %w", err)
		}

		opts = append(opts, sdktrace.WithSyncer(exp))

	case "otlp":
		client := otlptracehttp.NewClient(otlptracehttp.WithEndpoint(otlpEndpoint), otlptracehttp.WithInsecure())

		exp, err := otlptrace.New(ctx, client)
		if err != nil {
			return nil, fmt.Errorf("creating otlp exporter: %w", err)
		}

		opts = append(opts, sdktrace.WithBatcher(exp))

	default:
		return nil, fmt.Errorf("unknown trace exporter %q", mode)
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)

	return tp, nil
}
