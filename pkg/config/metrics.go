package config

import (
	"github.com/fnndsc/pypx-dicomweb/pkg/metrics"
	promMetrics "github.com/fnndsc/pypx-dicomweb/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// ArchiveMetrics records archive reads (never nil, uses noop if disabled)
	ArchiveMetrics metrics.ArchiveMetrics

	// HTTPMetrics records DICOMweb requests (never nil, uses noop if disabled)
	HTTPMetrics metrics.HTTPMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op metrics implementations (zero overhead)
//
// Parameters:
//   - cfg: Loaded configuration; only server.metrics is read
//
// Returns a MetricsResult whose metrics fields are never nil.
//
// Must be called at most once per process with metrics enabled, since
// collectors register with the global registry.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return &MetricsResult{
			ArchiveMetrics: metrics.NewNoopArchiveMetrics(),
			HTTPMetrics:    metrics.NewNoopHTTPMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Server.Metrics.Port,
	})

	return &MetricsResult{
		Server:         server,
		ArchiveMetrics: promMetrics.NewArchiveMetrics(),
		HTTPMetrics:    promMetrics.NewHTTPMetrics(),
	}
}
