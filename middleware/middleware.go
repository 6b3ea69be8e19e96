// Package middleware provides composable middleware for action execution.
// Middleware wraps handler calls synchronously and can observe or modify
// execution (recover from panics, restore scope, log, trace, etc.).
package middleware

import (
	"context"

	"github.com/arareko/pysoa/job"
)

// Call describes the action being executed.
type Call struct {
	// Index is the action's position in the job request.
	Index int
	// Action is the request being served.
	Action job.ActionRequest
	// Control is the job's validated control header.
	Control job.ControlHeader
}

// Handler is the terminal function that executes action logic.
type Handler func(ctx context.Context) (map[string]any, error)

// Middleware wraps a Handler with cross-cutting logic.
// It receives the current context, the call being executed, and the
// next handler to call. Middleware MUST call next to continue the chain
// (unless short-circuiting on error).
type Middleware func(ctx context.Context, c *Call, next Handler) (map[string]any, error)

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(recover, logging, scope) executes as:
//
//	recover → logging → scope → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, c *Call, next Handler) (map[string]any, error) {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) (map[string]any, error) {
				return mw(ctx, c, prev)
			}
		}
		return h(ctx)
	}
}

// Outcome labels a handler result: "ok", "action_error" or "fault".
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case job.IsActionError(err):
		return "action_error"
	default:
		return "fault"
	}
}
