package pysoa

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arareko/pysoa/control"
)

// Config holds configuration for a pysoa service.
type Config struct {
	// ServiceName identifies the service in logs and metrics.
	ServiceName string `yaml:"service_name"`

	// Control configures how the control header is validated.
	Control ControlConfig `yaml:"control"`

	// Transport configures the network host.
	Transport TransportConfig `yaml:"transport"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ControlConfig names the control validation policy modes.
type ControlConfig struct {
	// CorrelationID is one of "optional", "required" or "generate".
	CorrelationID string `yaml:"correlation_id"`
	// ContinueOnError is one of "default" or "required".
	ContinueOnError string `yaml:"continue_on_error"`
}

// TransportConfig configures the HTTP and WebSocket endpoints.
type TransportConfig struct {
	// Address is the listen address, e.g. ":8080".
	Address string `yaml:"address"`
	// Path is the WebSocket endpoint; one-shot requests are served at Path+"/rpc".
	Path string `yaml:"path"`
	// Codec is the default serializer name, "json" or "msgpack".
	Codec string `yaml:"codec"`
	// RateLimit is the sustained request rate per peer. Zero disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	// RateBurst is the burst size allowed per peer.
	RateBurst int `yaml:"rate_burst"`
	// MaxMessageBytes bounds a single inbound message.
	MaxMessageBytes int64 `yaml:"max_message_bytes"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ServiceName: "pysoa",
		Control: ControlConfig{
			CorrelationID:   string(control.CorrelationOptional),
			ContinueOnError: string(control.ContinueDefault),
		},
		Transport: TransportConfig{
			Address:         ":8080",
			Path:            "/soa",
			Codec:           "json",
			RateLimit:       0,
			RateBurst:       20,
			MaxMessageBytes: 1 << 20,
		},
		ShutdownTimeout: 30 * time.Second,
	}
}

// Policy returns the control policy named by the config.
func (c Config) Policy() control.Policy {
	return control.Policy{
		CorrelationID:   control.CorrelationPolicy(c.Control.CorrelationID),
		ContinueOnError: control.ContinuePolicy(c.Control.ContinueOnError),
	}
}

// Validate checks the config for values the service cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("%w: service_name is empty", ErrInvalidConfig)
	}
	if err := c.Policy().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Transport.Address == "" {
		return fmt.Errorf("%w: transport.address is empty", ErrInvalidConfig)
	}
	if !strings.HasPrefix(c.Transport.Path, "/") {
		return fmt.Errorf("%w: transport.path %q must start with /", ErrInvalidConfig, c.Transport.Path)
	}
	switch c.Transport.Codec {
	case "json", "msgpack":
	default:
		return fmt.Errorf("%w: unknown transport.codec %q", ErrInvalidConfig, c.Transport.Codec)
	}
	if c.Transport.RateLimit < 0 || c.Transport.RateBurst < 0 {
		return fmt.Errorf("%w: rate limits must not be negative", ErrInvalidConfig)
	}
	if c.Transport.MaxMessageBytes <= 0 {
		return fmt.Errorf("%w: transport.max_message_bytes must be positive", ErrInvalidConfig)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: shutdown_timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads a YAML config file over DefaultConfig, applies PYSOA_*
// environment overrides and validates the result. An empty path skips the
// file and only applies the environment.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("pysoa: read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
		}
	}

	if err := ApplyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnvOverrides overwrites fields from PYSOA_* environment variables.
// Unset or blank variables leave the field unchanged.
func ApplyEnvOverrides(cfg *Config) error {
	if v := envString("PYSOA_SERVICE_NAME"); v != "" {
		cfg.ServiceName = v
	}
	if v := envString("PYSOA_CORRELATION_ID_POLICY"); v != "" {
		cfg.Control.CorrelationID = v
	}
	if v := envString("PYSOA_CONTINUE_ON_ERROR_POLICY"); v != "" {
		cfg.Control.ContinueOnError = v
	}
	if v := envString("PYSOA_ADDRESS"); v != "" {
		cfg.Transport.Address = v
	}
	if v := envString("PYSOA_PATH"); v != "" {
		cfg.Transport.Path = v
	}
	if v := envString("PYSOA_CODEC"); v != "" {
		cfg.Transport.Codec = strings.ToLower(v)
	}
	if v := envString("PYSOA_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: PYSOA_RATE_LIMIT: %v", ErrInvalidConfig, err)
		}
		cfg.Transport.RateLimit = f
	}
	if v := envString("PYSOA_RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PYSOA_RATE_BURST: %v", ErrInvalidConfig, err)
		}
		cfg.Transport.RateBurst = n
	}
	if v := envString("PYSOA_MAX_MESSAGE_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: PYSOA_MAX_MESSAGE_BYTES: %v", ErrInvalidConfig, err)
		}
		cfg.Transport.MaxMessageBytes = n
	}
	if v := envString("PYSOA_SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: PYSOA_SHUTDOWN_TIMEOUT: %v", ErrInvalidConfig, err)
		}
		cfg.ShutdownTimeout = d
	}
	return nil
}

func envString(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
