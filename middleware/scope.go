package middleware

import (
	"context"

	"github.com/arareko/pysoa/scope"
)

// Scope returns middleware that restores the job's control header into the
// context, so handlers can read switches and the correlation id through the
// scope package.
func Scope() Middleware {
	return func(ctx context.Context, c *Call, next Handler) (map[string]any, error) {
		ctx = scope.Restore(ctx, c.Control)
		return next(ctx)
	}
}
