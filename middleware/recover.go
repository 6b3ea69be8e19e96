package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/arareko/pysoa/job"
)

// Recover returns middleware that recovers from panics in the handler chain.
// A panic becomes a *job.HandlerFault carrying the panic value and stack,
// so it still propagates as a crash rather than an action error.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, c *Call, next Handler) (body map[string]any, retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("action handler panicked",
					slog.String("action", c.Action.Action),
					slog.String("correlation_id", c.Control.CorrelationID),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				body = nil
				retErr = &job.HandlerFault{
					Action: c.Action.Action,
					Cause:  fmt.Errorf("panic: %v", r),
					Panic:  r,
					Stack:  stack,
				}
			}
		}()
		return next(ctx)
	}
}
