package pysoa

import "errors"

var (
	// Configuration errors.
	ErrInvalidConfig = errors.New("pysoa: invalid configuration")
	ErrNoRegistry    = errors.New("pysoa: no action registry configured")

	// Lifecycle errors.
	ErrServerClosed = errors.New("pysoa: server closed")
	ErrClientClosed = errors.New("pysoa: client closed")
	ErrNotConnected = errors.New("pysoa: not connected")

	// Transport errors.
	ErrRateLimited     = errors.New("pysoa: rate limit exceeded")
	ErrMessageTooLarge = errors.New("pysoa: message too large")
	ErrUnknownFrame    = errors.New("pysoa: unknown frame type")
)
