package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for pysoa metrics.
const meterName = "github.com/arareko/pysoa"

// Metrics returns middleware that records per-action execution metrics using
// the global OTel MeterProvider. If no MeterProvider is configured, noop
// instruments are used and this middleware becomes a pass-through.
//
// Instruments:
//   - pysoa.action.duration (Float64Histogram): execution time in seconds,
//     with attributes: action, status ("ok", "action_error" or "fault")
//   - pysoa.action.executions (Int64Counter): total executions,
//     with attributes: action, status
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// On error the API returns noop instruments, so the middleware still works.
	duration, _ := meter.Float64Histogram(
		"pysoa.action.duration",
		metric.WithDescription("Duration of action execution in seconds"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter(
		"pysoa.action.executions",
		metric.WithDescription("Total number of action executions"),
		metric.WithUnit("{execution}"),
	)

	return func(ctx context.Context, c *Call, next Handler) (map[string]any, error) {
		start := time.Now()
		body, err := next(ctx)
		elapsed := time.Since(start).Seconds()

		attrs := metric.WithAttributes(
			attribute.String("action", c.Action.Action),
			attribute.String("status", Outcome(err)),
		)
		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)

		return body, err
	}
}
