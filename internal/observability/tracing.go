package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the OpenTelemetry tracer for the cycle orchestrator.
// Grounded on the teacher's tracing.go package-level Tracer var,
// narrowed from its compliance-control span-attribute helpers to the
// one kind of span this domain produces: one cycle, with its fired
// rules as child events.
var Tracer = otel.Tracer("pulsar-beacon.orchestrator")

// InitTracing installs an in-process TracerProvider. Unlike the
// teacher's otel.go (which dials an OTLP/gRPC collector), no exporter
// is wired here — spec.md's cycle orchestrator has no network service
// boundary (DESIGN.md's "Dropped teacher dependencies" explains why),
// so there is nowhere for a trace to be shipped to. The SDK is still
// exercised for real: AlwaysSample plus the resource attributes below
// are what a caller wiring in a real exporter later would build on.
func InitTracing(serviceName, serviceVersion string) (shutdown func(context.Context) error, err error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

// StartCycleSpan begins a span covering one evaluation cycle.
func StartCycleSpan(ctx context.Context, cycleSeq int64) (context.Context, trace.Span) {
	return Tracer.Start(ctx, "cycle.run",
		trace.WithAttributes(attribute.Int64("cycle.seq", cycleSeq)),
	)
}

// RecordRuleFired adds an event to the active cycle span for a rule
// whose condition evaluated true this cycle.
func RecordRuleFired(span trace.Span, ruleName string) {
	span.AddEvent("rule.fired", trace.WithAttributes(attribute.String("rule.name", ruleName)))
}

// EndCycleSpan records the cycle's outcome and closes the span.
func EndCycleSpan(span trace.Span, duration time.Duration, err error) {
	span.SetAttributes(attribute.Float64("cycle.duration_ms", float64(duration.Microseconds())/1000.0))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
