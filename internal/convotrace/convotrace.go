// Package convotrace wires OpenTelemetry tracing around the engine:
// one span per plan/execute cycle and one child span per action or bus
// call. With telemetry disabled the helpers are no-ops via the global
// no-op tracer provider.
package convotrace

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/neuralux/convoengine"

// Setup installs an OTLP-exporting tracer provider and returns its
// shutdown function. protocol selects the exporter transport: "http" or
// the default "grpc".
func Setup(ctx context.Context, endpoint, protocol, serviceName string) (func(context.Context) error, error) {
	var client otlptrace.Client
	if protocol == "http" {
		client = otlptracehttp.NewClient(otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	} else {
		client = otlptracegrpc.NewClient(otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptrace.New(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("convotrace: creating otlp exporter: %w", err)
	}

	res, err := sdkresource.New(ctx,
		sdkresource.WithAttributes(attribute.String("service.name", serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("convotrace: building resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartTurn opens the root span for one process/approve cycle.
func StartTurn(ctx context.Context, sessionID string, actionCount int) (context.Context, trace.Span) {
	return tracer().Start(ctx, "conversation.turn",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.Int("plan.actions", actionCount),
		),
	)
}

// StartAction opens a child span for a single action execution.
func StartAction(ctx context.Context, kind string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "action."+kind,
		trace.WithAttributes(attribute.String("action.kind", kind)),
	)
}

// StartBusCall opens a child span for one bus request/publish.
func StartBusCall(ctx context.Context, subject string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "bus."+subject,
		trace.WithAttributes(attribute.String("bus.subject", subject)),
	)
}

// EndWith records the outcome on span and ends it.
func EndWith(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
