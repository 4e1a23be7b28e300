package config

import (
	"strings"
	"time"

	"github.com/fnndsc/pypx-dicomweb/pkg/adapter/web"
	"github.com/fnndsc/pypx-dicomweb/pkg/dicomweb"
	"github.com/fnndsc/pypx-dicomweb/pkg/pypx"
)

// Archive locations used when neither the file nor the environment names them.
// They match a stock pypx installation where reader and writer share a mount.
const (
	DefaultLogDir  = "/home/dicom/log"
	DefaultDataDir = "/home/dicom/data"
)

// DefaultMetricsPort is the port of the Prometheus metrics server.
const DefaultMetricsPort = 9464

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyArchiveDefaults(&cfg.Archive)
	applyDICOMwebDefaults(&cfg.DICOMweb)
	applyAdaptersDefaults(&cfg.Adapters)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyServerDefaults sets server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = DefaultMetricsPort
	}
}

// applyArchiveDefaults sets archive location defaults.
func applyArchiveDefaults(cfg *ArchiveConfig) {
	if cfg.LogDir == "" {
		cfg.LogDir = DefaultLogDir
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	// The writer usually mounts the data directory where the reader does.
	if cfg.WriterDataMountpoint == "" {
		cfg.WriterDataMountpoint = cfg.DataDir
	}
	if cfg.FanoutWidth == 0 {
		cfg.FanoutWidth = pypx.DefaultFanoutWidth
	}

	// Trailing separators would break prefix stripping of writer paths.
	cfg.LogDir = trimDir(cfg.LogDir)
	cfg.DataDir = trimDir(cfg.DataDir)
	cfg.WriterDataMountpoint = trimDir(cfg.WriterDataMountpoint)
}

func trimDir(dir string) string {
	if len(dir) > 1 {
		return strings.TrimRight(dir, "/")
	}
	return dir
}

// applyDICOMwebDefaults sets response encoding defaults.
func applyDICOMwebDefaults(cfg *DICOMwebConfig) {
	if cfg.MultipartBoundary == "" {
		cfg.MultipartBoundary = dicomweb.DefaultBoundary
	}
}

// applyAdaptersDefaults sets adapter defaults.
func applyAdaptersDefaults(cfg *AdaptersConfig) {
	// Enable the HTTP adapter when it looks unconfigured (no port given), so
	// that a config loaded without a file passes validation. An explicit
	// enabled: false with a port set stays disabled.
	if !cfg.HTTP.Enabled && cfg.HTTP.Port == 0 {
		cfg.HTTP.Enabled = true
	}

	applyHTTPDefaults(&cfg.HTTP)
}

// applyHTTPDefaults sets DICOMweb HTTP adapter defaults.
func applyHTTPDefaults(cfg *web.HTTPConfig) {
	if cfg.Port == 0 {
		cfg.Port = web.DefaultPort
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.CORSOrigins == nil {
		cfg.CORSOrigins = []string{"*"}
	}
	if cfg.RateLimit.RequestsPerSecond > 0 && cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = int(2 * cfg.RateLimit.RequestsPerSecond)
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
func GetDefaultConfig() *Config {
	cfg := &Config{
		Adapters: AdaptersConfig{
			HTTP: web.HTTPConfig{
				Enabled: true,
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
