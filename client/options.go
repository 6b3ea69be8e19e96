package client

import (
	"log/slog"

	"github.com/arareko/pysoa/backoff"
)

// Option configures a Client.
type Option func(*Client)

// WithFormat sets the wire format for frame encoding.
// Supported values: "json" (default), "msgpack".
func WithFormat(format string) Option {
	return func(c *Client) { c.format = format }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithReconnect enables automatic reconnection, giving up after maxRetries
// failed dials.
func WithReconnect(maxRetries int) Option {
	return func(c *Client) {
		c.reconnect = true
		c.maxRetries = maxRetries
	}
}

// WithBackoff sets the delay strategy between reconnect attempts.
// Default is backoff.DefaultStrategy().
func WithBackoff(s backoff.Strategy) Option {
	return func(c *Client) {
		if s != nil {
			c.backoff = s
		}
	}
}
