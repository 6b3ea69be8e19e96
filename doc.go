// Package pysoa is the request-processing core of a service-oriented RPC
// framework. A client sends a job: a control header plus an ordered list of
// named action invocations. The server validates the header, dispatches each
// action to a registered handler, and assembles one job response holding a
// body or a list of errors per action.
//
// The root package holds configuration and sentinel errors shared by the
// subsystem packages:
//
//   - job: request/response data model and the error model
//   - control: control header validation policy
//   - action: the action registry and handler helpers
//   - worker: the per-action executor
//   - server: the job orchestrator (ProcessRequest)
//   - middleware, ext: per-action middleware and lifecycle hooks
//   - observability, audit: Prometheus metrics and audit trail extensions
//   - serializer, transport, client: byte-level hosting of the core
//
// # Quick Start
//
//	reg := action.NewRegistry()
//	reg.RegisterFunc("echo", func(_ context.Context, body map[string]any) (map[string]any, error) {
//	    return body, nil
//	})
//
//	srv, err := server.New(reg)
//	resp, err := srv.ProcessRequest(ctx, job.NewRequest(
//	    job.ControlHeader{Switches: []string{}},
//	    job.ActionRequest{Action: "echo", Body: map[string]any{"x": 1}},
//	))
//
// Per-action failures are data in the response. ProcessRequest only fails
// with a *job.JobError (the request was rejected) or a *job.HandlerFault
// (a handler crashed).
package pysoa
