package web

import (
	"fmt"
	"time"
)

// HTTPConfig holds configuration parameters for the DICOMweb HTTP server.
//
// Default values (applied by New if zero):
//   - Port: 4006
//   - ReadTimeout: 30s
//   - WriteTimeout: 2m
//   - IdleTimeout: 2m
//   - ShutdownTimeout: 30s
//   - CORSOrigins: any origin
type HTTPConfig struct {
	// Enabled controls whether the HTTP adapter is started.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the TCP port to listen on. 0 selects the default.
	Port int `mapstructure:"port" validate:"min=0,max=65535" yaml:"port"`

	// ReadTimeout bounds reading a whole request, headers included.
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"min=0" yaml:"read_timeout"`

	// WriteTimeout bounds writing a response. Frame and series metadata
	// responses of large series take a while; keep it generous.
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0" yaml:"write_timeout"`

	// IdleTimeout closes keep-alive connections without requests.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"min=0" yaml:"idle_timeout"`

	// ShutdownTimeout is how long in-flight requests may run after shutdown starts.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0" yaml:"shutdown_timeout"`

	// CORSOrigins lists the origins allowed to call the API. Empty or "*"
	// allows any origin (viewers are usually served from another host).
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`

	// RateLimit throttles requests per client IP.
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig configures per-client throttling. A zero rate disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"min=0" yaml:"requests_per_second"`
	Burst             int     `mapstructure:"burst" validate:"min=0" yaml:"burst"`
}

// DefaultPort is the port the DICOMweb server listens on by default.
const DefaultPort = 4006

func (c *HTTPConfig) applyDefaults() {
	// Enabled defaults live in pkg/config so that an explicit false survives.
	if c.Port <= 0 {
		c.Port = DefaultPort
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 2 * time.Minute
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 2 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = int(2 * c.RateLimit.RequestsPerSecond)
	}
}

func (c *HTTPConfig) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.IdleTimeout < 0 {
		return fmt.Errorf("invalid timeouts: must be >= 0")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("invalid rate limit: must be >= 0")
	}
	return nil
}
