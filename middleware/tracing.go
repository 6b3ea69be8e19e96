package middleware

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for pysoa tracing.
const tracerName = "github.com/arareko/pysoa"

// Tracing returns middleware that wraps action execution in an OpenTelemetry span.
// If no TracerProvider is configured globally, the default noop tracer is used
// and this middleware becomes a pass-through with zero overhead.
//
// Span attributes include: pysoa.action.name, pysoa.action.index,
// pysoa.correlation_id, pysoa.switches. A declared action error records the
// outcome attribute but leaves the span status unset; a crash sets
// codes.Error.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
// This variant allows injecting a specific TracerProvider for testing or
// when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, c *Call, next Handler) (map[string]any, error) {
		ctx, span := tracer.Start(ctx, "pysoa.action.execute",
			trace.WithAttributes(
				attribute.String("pysoa.action.name", c.Action.Action),
				attribute.Int("pysoa.action.index", c.Index),
				attribute.String("pysoa.correlation_id", c.Control.CorrelationID),
				attribute.String("pysoa.switches", strings.Join(c.Control.Switches, ",")),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		body, err := next(ctx)
		outcome := Outcome(err)
		span.SetAttributes(attribute.String("pysoa.action.outcome", outcome))
		switch outcome {
		case "ok":
			span.SetStatus(codes.Ok, "")
		case "action_error":
			span.AddEvent("action error", trace.WithAttributes(attribute.String("error", err.Error())))
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		return body, err
	}
}
