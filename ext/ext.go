// Package ext defines the extension system for pysoa.
// Extensions are notified of request lifecycle events (job received,
// rejected, completed, action failed, etc.) and can react to them.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/arareko/pysoa/job"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// JobReceived is called when the server accepts a request for processing,
// before the control header is validated.
type JobReceived interface {
	OnJobReceived(ctx context.Context, req *job.Request) error
}

// JobRejected is called when a request fails validation and no action runs.
type JobRejected interface {
	OnJobRejected(ctx context.Context, req *job.Request, jobErr *job.JobError) error
}

// JobCompleted is called after a response has been assembled, whether or
// not individual actions carried errors.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, req *job.Request, resp *job.Response, elapsed time.Duration) error
}

// ──────────────────────────────────────────────────
// Action lifecycle hooks
// ──────────────────────────────────────────────────

// ActionCompleted is called after an action produced a body without errors.
type ActionCompleted interface {
	OnActionCompleted(ctx context.Context, index int, resp job.ActionResponse, elapsed time.Duration) error
}

// ActionFailed is called after an action response carried errors, including
// an unknown action name.
type ActionFailed interface {
	OnActionFailed(ctx context.Context, index int, resp job.ActionResponse) error
}

// HandlerFaulted is called when a handler crashed and the job was aborted.
type HandlerFaulted interface {
	OnHandlerFaulted(ctx context.Context, index int, fault *job.HandlerFault) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
