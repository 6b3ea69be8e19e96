// Package observability provides a Prometheus metrics extension for pysoa.
// The MetricsExtension implements lifecycle hooks to record server-wide
// counters for received, rejected and completed jobs, and per-action
// completion, failure and crash counts.
//
// For per-execution tracing and OTel metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
