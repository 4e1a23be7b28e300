// Package metrics defines the metrics interfaces of the archive reader and
// the HTTP adapter, and owns the process-wide Prometheus registry.
//
// All metrics are optional: when InitRegistry has not been called the
// constructors in pkg/metrics/prometheus return no-op implementations.
//
// Usage:
//
//	metrics.InitRegistry()
//	archiveMetrics := prometheus.NewArchiveMetrics()
//	httpMetrics := prometheus.NewHTTPMetrics()
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// registry is written once by InitRegistry and read by everything else
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry with the Go runtime
// and process collectors. Subsequent calls are ignored.
func InitRegistry() {
	registryOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: "pypx_dicomweb"}),
		)
		registry = reg
	})
}

// GetRegistry returns the global Prometheus registry, or nil when metrics
// are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled returns true if InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
