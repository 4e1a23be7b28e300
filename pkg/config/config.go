package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fnndsc/pypx-dicomweb/pkg/adapter/web"
	"github.com/spf13/viper"
)

// Config represents the complete pypx-dicomweb configuration.
//
// This structure captures all configurable aspects of the server including:
//   - Logging configuration
//   - Server-wide settings (shutdown, metrics endpoint)
//   - Location of the pypx archive
//   - Worker pool sizing
//   - DICOMweb encoding options
//   - Protocol adapter configurations
//
// Configuration sources (in order of precedence):
//  1. Environment variables (PYPX_DICOMWEB_*, plus the legacy PYPX_LOG_DIR,
//     PYPX_DATA_DIR, PYPX_REPACK_DATA_MOUNTPOINT and PORT)
//  2. Configuration file (YAML or TOML)
//  3. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Archive locates the pypx archive
	Archive ArchiveConfig `mapstructure:"archive" yaml:"archive"`

	// Workers sizes the pool that parses DICOM files
	Workers WorkersConfig `mapstructure:"workers" yaml:"workers"`

	// DICOMweb contains response encoding options
	DICOMweb DICOMwebConfig `mapstructure:"dicomweb" yaml:"dicomweb"`

	// Adapters contains protocol adapter configurations
	Adapters AdaptersConfig `mapstructure:"adapters" yaml:"adapters"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// MetricsConfig configures the Prometheus metrics server.
type MetricsConfig struct {
	// Enabled starts a metrics server on Port
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the TCP port of the metrics server
	Port int `mapstructure:"port" validate:"min=0,max=65535" yaml:"port"`
}

// ArchiveConfig locates the pypx archive.
type ArchiveConfig struct {
	// LogDir contains the studyData and seriesData trees
	LogDir string `mapstructure:"log_dir" validate:"required" yaml:"log_dir"`

	// DataDir is where this process sees the archive's data directory
	DataDir string `mapstructure:"data_dir" validate:"required" yaml:"data_dir"`

	// WriterDataMountpoint is the data directory as seen by the process that
	// wrote the archive (pypx repack)
	WriterDataMountpoint string `mapstructure:"writer_data_mountpoint" validate:"required" yaml:"writer_data_mountpoint"`

	// FanoutWidth bounds concurrent metadata file loads per request
	FanoutWidth int `mapstructure:"fanout_width" validate:"min=0" yaml:"fanout_width"`
}

// WorkersConfig sizes the DICOM parsing pool.
type WorkersConfig struct {
	// Size is the number of worker goroutines (0 = GOMAXPROCS)
	Size int `mapstructure:"size" validate:"min=0" yaml:"size"`

	// Queue is the number of jobs that may wait for a worker (0 = 4 per worker)
	Queue int `mapstructure:"queue" validate:"min=0" yaml:"queue"`
}

// DICOMwebConfig contains response encoding options.
type DICOMwebConfig struct {
	// MultipartBoundary separates parts of frame responses
	MultipartBoundary string `mapstructure:"multipart_boundary" validate:"required,max=70" yaml:"multipart_boundary"`
}

// AdaptersConfig contains all protocol adapter configurations.
type AdaptersConfig struct {
	// HTTP contains DICOMweb HTTP configuration.
	// Uses the web.HTTPConfig type directly to avoid duplication.
	HTTP web.HTTPConfig `mapstructure:"http" yaml:"http"`
}

// legacyEnv maps environment variable names used by earlier deployments to
// configuration keys. They are read in addition to the PYPX_DICOMWEB_ names.
var legacyEnv = map[string]string{
	"archive.log_dir":                "PYPX_LOG_DIR",
	"archive.data_dir":               "PYPX_DATA_DIR",
	"archive.writer_data_mountpoint": "PYPX_REPACK_DATA_MOUNTPOINT",
	"adapters.http.port":             "PORT",
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if err := setupViper(v, configPath); err != nil {
		return nil, err
	}

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) error {
	// An explicit "enabled: false" must survive ApplyDefaults, so this
	// default lives in viper rather than in the struct.
	v.SetDefault("adapters.http.enabled", true)

	// Environment variables use the PYPX_DICOMWEB_ prefix and underscores
	// Example: PYPX_DICOMWEB_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("PYPX_DICOMWEB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only sees keys viper already knows about, so every key
	// gets a binding. Legacy names are looked up before the prefixed one.
	for _, key := range configKeys() {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	for key, env := range legacyEnv {
		prefixed := "PYPX_DICOMWEB_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, env, prefixed); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/pypx-dicomweb/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	return nil
}

// configKeys lists the dotted keys of scalar settings that may come from the
// environment.
func configKeys() []string {
	return []string{
		"logging.level",
		"logging.format",
		"logging.output",
		"server.shutdown_timeout",
		"server.metrics.enabled",
		"server.metrics.port",
		"archive.fanout_width",
		"workers.size",
		"workers.queue",
		"dicomweb.multipart_boundary",
		"adapters.http.enabled",
		"adapters.http.read_timeout",
		"adapters.http.write_timeout",
		"adapters.http.idle_timeout",
		"adapters.http.shutdown_timeout",
		"adapters.http.cors_origins",
		"adapters.http.rate_limit.requests_per_second",
		"adapters.http.rate_limit.burst",
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			// Config file not found is acceptable - use defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "pypx-dicomweb")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "pypx-dicomweb")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
