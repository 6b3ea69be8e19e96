package transport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/arareko/pysoa"
	"github.com/arareko/pysoa/serializer"
)

// Option configures a transport Server.
type Option func(*Server)

// WithConfig applies the transport section and shutdown timeout of cfg.
func WithConfig(cfg pysoa.Config) Option {
	return func(s *Server) {
		s.address = cfg.Transport.Address
		s.basePath = cfg.Transport.Path
		s.codec = serializer.Get(cfg.Transport.Codec)
		s.rateLimit = cfg.Transport.RateLimit
		s.rateBurst = cfg.Transport.RateBurst
		s.maxMessageBytes = cfg.Transport.MaxMessageBytes
		s.shutdownTimeout = cfg.ShutdownTimeout
	}
}

// WithLogger sets the logger for the transport.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAddress sets the listen address used by Run.
func WithAddress(addr string) Option {
	return func(s *Server) { s.address = addr }
}

// WithPath sets the base path for transport endpoints.
// Default is "/soa".
func WithPath(path string) Option {
	return func(s *Server) { s.basePath = path }
}

// WithSerializer sets the codec used by WebSocket peers that do not ask
// for one and by HTTP requests without a Content-Type.
func WithSerializer(codec serializer.Serializer) Option {
	return func(s *Server) { s.codec = codec }
}

// WithRateLimit limits each peer to rps requests per second with the given
// burst. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		s.rateLimit = rps
		s.rateBurst = burst
	}
}

// WithMaxMessageBytes caps the size of one inbound message.
func WithMaxMessageBytes(n int64) Option {
	return func(s *Server) { s.maxMessageBytes = n }
}

// WithShutdownTimeout bounds how long Run waits for in-flight requests.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) { s.shutdownTimeout = d }
}

// WithRoute mounts an extra handler next to the transport endpoints, such
// as a metrics exporter. The pattern uses http.ServeMux syntax.
func WithRoute(pattern string, h http.Handler) Option {
	return func(s *Server) {
		s.routes = append(s.routes, route{pattern: pattern, handler: h})
	}
}
