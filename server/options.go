package server

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/arareko/pysoa"
	"github.com/arareko/pysoa/control"
	"github.com/arareko/pysoa/ext"
	mw "github.com/arareko/pysoa/middleware"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger for the server and its executor.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPolicy sets the control validation policy.
// If not set, control.DefaultPolicy() is used.
func WithPolicy(p control.Policy) Option {
	return func(s *Server) {
		s.policy = p
	}
}

// WithConfig applies the control policy and service name from cfg.
func WithConfig(cfg pysoa.Config) Option {
	return func(s *Server) {
		s.policy = cfg.Policy()
		s.serviceName = cfg.ServiceName
	}
}

// WithIDGenerator overrides how correlation ids are generated under
// control.CorrelationGenerate.
func WithIDGenerator(fn func() string) Option {
	return func(s *Server) {
		s.idGenerator = fn
	}
}

// WithExtension registers an extension with the server.
func WithExtension(e ext.Extension) Option {
	return func(s *Server) {
		s.pendingExts = append(s.pendingExts, e)
	}
}

// WithMiddleware adds middleware after the default stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(s *Server) {
		s.mws = append(s.mws, m)
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the server.
// When set, both the job span and the tracing middleware use this provider
// instead of the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) {
		s.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the metrics
// middleware. If not set, the global otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Server) {
		s.meterProvider = mp
	}
}
