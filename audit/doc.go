// Package audit records an audit trail of job processing.
//
// The Extension implements the ext lifecycle hooks and turns each one into
// an Event handed to a Recorder. Recorder failures are logged and never
// affect the job.
//
//	srv, _ := server.New(registry,
//	    server.WithExtension(audit.New(audit.LogRecorder(logger))),
//	)
//
// Events emitted:
//
//	job.received      info      a request reached the server
//	job.rejected      warning   control validation failed
//	job.completed     info      a response was assembled
//	action.completed  info      an action returned a body
//	action.failed     warning   an action reported errors
//	action.faulted    critical  a handler crashed
package audit
