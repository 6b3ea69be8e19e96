// Package server wires the pysoa subsystems together and runs the job
// orchestrator. A Server validates a request's control header, dispatches
// each action in order through the executor, and assembles the response.
//
// This package sits above control, worker, ext and middleware and below
// the transport layer, which only needs its ProcessRequest method.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/arareko/pysoa"
	"github.com/arareko/pysoa/action"
	"github.com/arareko/pysoa/control"
	"github.com/arareko/pysoa/ext"
	"github.com/arareko/pysoa/job"
	mw "github.com/arareko/pysoa/middleware"
	"github.com/arareko/pysoa/worker"
)

const instrumentationName = "github.com/arareko/pysoa"

// Server processes job requests. It keeps no state between requests, so
// one Server may serve many requests concurrently.
type Server struct {
	registry    *action.Registry
	validator   *control.Validator
	executor    *worker.Executor
	extensions  *ext.Registry
	tracer      trace.Tracer
	logger      *slog.Logger
	serviceName string
	closed      atomic.Bool

	// Collected by options, consumed by New.
	policy         control.Policy
	idGenerator    func() string
	pendingExts    []ext.Extension
	mws            []mw.Middleware
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// New creates a Server dispatching to the actions in registry.
func New(registry *action.Registry, opts ...Option) (*Server, error) {
	if registry == nil {
		return nil, pysoa.ErrNoRegistry
	}

	s := &Server{
		registry:    registry,
		logger:      slog.Default(),
		policy:      control.DefaultPolicy(),
		serviceName: pysoa.DefaultConfig().ServiceName,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.policy.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", pysoa.ErrInvalidConfig, err)
	}

	var vopts []control.Option
	if s.idGenerator != nil {
		vopts = append(vopts, control.WithIDGenerator(s.idGenerator))
	}
	s.validator = control.NewValidator(s.policy, vopts...)

	s.extensions = ext.NewRegistry(s.logger)
	for _, e := range s.pendingExts {
		s.extensions.Register(e)
	}

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if s.tracerProvider != nil {
		s.tracer = s.tracerProvider.Tracer(instrumentationName)
		tracingMw = mw.TracingWithTracer(s.tracer)
	} else {
		s.tracer = otel.Tracer(instrumentationName)
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if s.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(s.meterProvider.Meter(instrumentationName))
	} else {
		metricsMw = mw.Metrics()
	}

	// Default middleware stack: recover → tracing → metrics → logging → scope.
	defaultMws := []mw.Middleware{
		mw.Recover(s.logger),
		tracingMw,
		metricsMw,
		mw.Logging(s.logger),
		mw.Scope(),
	}
	allMws := make([]mw.Middleware, 0, len(defaultMws)+len(s.mws))
	allMws = append(allMws, defaultMws...)
	allMws = append(allMws, s.mws...)

	s.executor = worker.NewExecutor(s.registry, s.extensions, s.logger, allMws...)

	return s, nil
}

// ProcessRequest validates req and runs its actions in order.
//
// It returns a *job.JobError when the request is rejected, in which case
// no action ran, or a *job.HandlerFault when a handler crashed, in which
// case processing stopped at that action. Otherwise it returns a response
// holding one entry per attempted action. When the control header's
// continue_on_error is false, processing stops after the first action whose
// response carries errors.
func (s *Server) ProcessRequest(ctx context.Context, req *job.Request) (*job.Response, error) {
	if s.closed.Load() {
		return nil, pysoa.ErrServerClosed
	}

	ctx, span := s.tracer.Start(ctx, "pysoa.job.process",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("pysoa.service", s.serviceName)),
	)
	defer span.End()

	if req == nil {
		req = &job.Request{}
	}
	s.extensions.EmitJobReceived(ctx, req)

	// Validating.
	header, jobErr := s.validate(req)
	if jobErr != nil {
		s.logger.Info("job rejected",
			slog.String("state", string(job.StateRejected)),
			slog.Int("errors", len(jobErr.Errors)),
			slog.String("error", jobErr.Error()),
		)
		span.SetAttributes(attribute.String("pysoa.job.state", string(job.StateRejected)))
		span.SetStatus(codes.Error, "job rejected")
		s.extensions.EmitJobRejected(ctx, req, jobErr)
		return nil, jobErr
	}

	span.SetAttributes(
		attribute.String("pysoa.correlation_id", header.CorrelationID),
		attribute.Int("pysoa.job.actions", len(req.Actions)),
		attribute.Bool("pysoa.job.continue_on_error", header.ContinueOnError),
	)

	// Dispatching.
	start := time.Now()
	resp := &job.Response{Actions: make([]job.ActionResponse, 0, len(req.Actions))}
	for i, a := range req.Actions {
		call := &mw.Call{Index: i, Action: a, Control: header}
		ar, err := s.executor.Execute(ctx, call)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		resp.Actions = append(resp.Actions, ar)
		if ar.Failed() && !header.ContinueOnError {
			break
		}
	}
	elapsed := time.Since(start)

	// Completed.
	s.logger.Info("job completed",
		slog.String("state", string(job.StateCompleted)),
		slog.String("correlation_id", header.CorrelationID),
		slog.Int("requested", len(req.Actions)),
		slog.Int("attempted", len(resp.Actions)),
		slog.Bool("failed", resp.Failed()),
		slog.Duration("elapsed", elapsed),
	)
	span.SetAttributes(
		attribute.String("pysoa.job.state", string(job.StateCompleted)),
		attribute.Int("pysoa.job.attempted", len(resp.Actions)),
	)
	s.extensions.EmitJobCompleted(ctx, req, resp, elapsed)

	return resp, nil
}

// validate runs the control validator and checks the action list, folding
// every problem into one JobError.
func (s *Server) validate(req *job.Request) (job.ControlHeader, *job.JobError) {
	header, errs := s.validator.Validate(req.Control)
	if len(req.Actions) == 0 {
		errs = append(errs, job.NewError(job.CodeInvalid, "at least one action is required", "actions"))
	}
	if len(errs) > 0 {
		return job.ControlHeader{}, job.NewJobError(errs...)
	}
	return header, nil
}

// Shutdown stops accepting requests and notifies extensions.
// Requests already in flight run to completion.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.closed.Swap(true) {
		return nil
	}
	s.logger.Info("server shutting down", slog.String("service", s.serviceName))
	s.extensions.EmitShutdown(ctx)
	return nil
}

// Registry returns the action registry.
func (s *Server) Registry() *action.Registry { return s.registry }

// Extensions returns the extension registry.
func (s *Server) Extensions() *ext.Registry { return s.extensions }

// Policy returns the control validation policy.
func (s *Server) Policy() control.Policy { return s.policy }

// ServiceName returns the configured service name.
func (s *Server) ServiceName() string { return s.serviceName }
