package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/arareko/pysoa/job"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type jobReceivedEntry struct {
	name string
	hook JobReceived
}

type jobRejectedEntry struct {
	name string
	hook JobRejected
}

type jobCompletedEntry struct {
	name string
	hook JobCompleted
}

type actionCompletedEntry struct {
	name string
	hook ActionCompleted
}

type actionFailedEntry struct {
	name string
	hook ActionFailed
}

type handlerFaultedEntry struct {
	name string
	hook HandlerFaulted
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
//
// Register is not safe to call concurrently with the emit methods;
// register every extension before the server starts taking requests.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	jobReceived     []jobReceivedEntry
	jobRejected     []jobRejectedEntry
	jobCompleted    []jobCompletedEntry
	actionCompleted []actionCompletedEntry
	actionFailed    []actionFailedEntry
	handlerFaulted  []handlerFaultedEntry
	shutdown        []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(JobReceived); ok {
		r.jobReceived = append(r.jobReceived, jobReceivedEntry{name, h})
	}
	if h, ok := e.(JobRejected); ok {
		r.jobRejected = append(r.jobRejected, jobRejectedEntry{name, h})
	}
	if h, ok := e.(JobCompleted); ok {
		r.jobCompleted = append(r.jobCompleted, jobCompletedEntry{name, h})
	}
	if h, ok := e.(ActionCompleted); ok {
		r.actionCompleted = append(r.actionCompleted, actionCompletedEntry{name, h})
	}
	if h, ok := e.(ActionFailed); ok {
		r.actionFailed = append(r.actionFailed, actionFailedEntry{name, h})
	}
	if h, ok := e.(HandlerFaulted); ok {
		r.handlerFaulted = append(r.handlerFaulted, handlerFaultedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Job event emitters
// ──────────────────────────────────────────────────

// EmitJobReceived notifies all extensions that implement JobReceived.
func (r *Registry) EmitJobReceived(ctx context.Context, req *job.Request) {
	for _, e := range r.jobReceived {
		if err := e.hook.OnJobReceived(ctx, req); err != nil {
			r.logHookError("OnJobReceived", e.name, err)
		}
	}
}

// EmitJobRejected notifies all extensions that implement JobRejected.
func (r *Registry) EmitJobRejected(ctx context.Context, req *job.Request, jobErr *job.JobError) {
	for _, e := range r.jobRejected {
		if err := e.hook.OnJobRejected(ctx, req, jobErr); err != nil {
			r.logHookError("OnJobRejected", e.name, err)
		}
	}
}

// EmitJobCompleted notifies all extensions that implement JobCompleted.
func (r *Registry) EmitJobCompleted(ctx context.Context, req *job.Request, resp *job.Response, elapsed time.Duration) {
	for _, e := range r.jobCompleted {
		if err := e.hook.OnJobCompleted(ctx, req, resp, elapsed); err != nil {
			r.logHookError("OnJobCompleted", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Action event emitters
// ──────────────────────────────────────────────────

// EmitActionCompleted notifies all extensions that implement ActionCompleted.
func (r *Registry) EmitActionCompleted(ctx context.Context, index int, resp job.ActionResponse, elapsed time.Duration) {
	for _, e := range r.actionCompleted {
		if err := e.hook.OnActionCompleted(ctx, index, resp, elapsed); err != nil {
			r.logHookError("OnActionCompleted", e.name, err)
		}
	}
}

// EmitActionFailed notifies all extensions that implement ActionFailed.
func (r *Registry) EmitActionFailed(ctx context.Context, index int, resp job.ActionResponse) {
	for _, e := range r.actionFailed {
		if err := e.hook.OnActionFailed(ctx, index, resp); err != nil {
			r.logHookError("OnActionFailed", e.name, err)
		}
	}
}

// EmitHandlerFaulted notifies all extensions that implement HandlerFaulted.
func (r *Registry) EmitHandlerFaulted(ctx context.Context, index int, fault *job.HandlerFault) {
	for _, e := range r.handlerFaulted {
		if err := e.hook.OnHandlerFaulted(ctx, index, fault); err != nil {
			r.logHookError("OnHandlerFaulted", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Other event emitters
// ──────────────────────────────────────────────────

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Hook errors never change the job's outcome.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
