// Package middleware provides composable middleware for action execution.
//
// A [Middleware] is a function that wraps an action handler. Middleware are
// composed into a chain using [Chain] and applied around every action the
// executor invokes. They are applied right-to-left: the first middleware in
// the slice is the outermost wrapper.
//
//	// recover → logging → handler
//	chain := middleware.Chain(middleware.Recover(logger), middleware.Logging(logger))
//
// # Built-in Middleware
//
//   - [Recover]: turns panics into *job.HandlerFault errors
//   - [Logging]: logs action name, correlation id, duration, and outcome
//   - [Tracing]: wraps execution in an OpenTelemetry span
//   - [Metrics]: records per-action duration and outcome counters
//   - [Scope]: restores the job's control header into the context
//
// # Writing Custom Middleware
//
//	func MyMiddleware() middleware.Middleware {
//	    return func(ctx context.Context, c *middleware.Call, next middleware.Handler) (map[string]any, error) {
//	        // pre-processing
//	        body, err := next(ctx)
//	        // post-processing
//	        return body, err
//	    }
//	}
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting, in which case it should return a *job.ActionError so
// the outcome stays an action-level failure.
package middleware
