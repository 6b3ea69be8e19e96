package middleware

import (
	"context"
	"log/slog"
	"time"
)

// Logging returns middleware that logs action start and completion.
// Declared action errors are logged at warn level, crashes at error level.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, c *Call, next Handler) (map[string]any, error) {
		logger.Debug("action started",
			slog.String("action", c.Action.Action),
			slog.Int("index", c.Index),
			slog.String("correlation_id", c.Control.CorrelationID),
		)

		start := time.Now()
		body, err := next(ctx)
		elapsed := time.Since(start)

		switch Outcome(err) {
		case "ok":
			logger.Info("action completed",
				slog.String("action", c.Action.Action),
				slog.String("correlation_id", c.Control.CorrelationID),
				slog.Duration("elapsed", elapsed),
			)
		case "action_error":
			logger.Warn("action returned errors",
				slog.String("action", c.Action.Action),
				slog.String("correlation_id", c.Control.CorrelationID),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		default:
			logger.Error("action failed",
				slog.String("action", c.Action.Action),
				slog.String("correlation_id", c.Control.CorrelationID),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		}
		return body, err
	}
}
