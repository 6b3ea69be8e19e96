// Package scope carries the validated control header of the job being
// processed on a context.Context, so action handlers can read switches and
// the correlation id without them being part of the action body.
package scope

import (
	"context"

	"github.com/arareko/pysoa/job"
)

type contextKey struct{}

// Restore attaches the control header to the context.
func Restore(ctx context.Context, header job.ControlHeader) context.Context {
	return context.WithValue(ctx, contextKey{}, header)
}

// Capture extracts the control header from the context.
// Returns false if no header is present.
func Capture(ctx context.Context) (job.ControlHeader, bool) {
	h, ok := ctx.Value(contextKey{}).(job.ControlHeader)
	return h, ok
}

// HasSwitch reports whether the job on ctx has switch s active.
func HasSwitch(ctx context.Context, s string) bool {
	h, ok := Capture(ctx)
	return ok && h.HasSwitch(s)
}

// CorrelationID returns the job's correlation id, or "".
func CorrelationID(ctx context.Context) string {
	h, _ := Capture(ctx)
	return h.CorrelationID
}
