package prometheus

import (
	"time"

	"github.com/fnndsc/pypx-dicomweb/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// archiveMetrics is the Prometheus implementation of metrics.ArchiveMetrics.
type archiveMetrics struct {
	loadsTotal   *prometheus.CounterVec
	loadDuration *prometheus.HistogramVec
	droppedTotal *prometheus.CounterVec
	framesTotal  *prometheus.CounterVec
	frameSize    prometheus.Histogram
}

// NewArchiveMetrics creates a Prometheus-backed ArchiveMetrics registered on
// the global registry.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewArchiveMetrics() metrics.ArchiveMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopArchiveMetrics()
	}
	return NewArchiveMetricsWith(metrics.GetRegistry())
}

// NewArchiveMetricsWith creates a Prometheus-backed ArchiveMetrics registered on reg.
//
// Parameters:
//   - reg: Registerer receiving the collectors (a fresh registry in tests)
//
// Returns an ArchiveMetrics whose collectors are all registered on reg.
// Panics if reg already holds collectors with the same names.
func NewArchiveMetricsWith(reg prometheus.Registerer) metrics.ArchiveMetrics {
	return &archiveMetrics{
		loadsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pypx_dicomweb_metadata_loads_total",
				Help: "Total number of archive metadata file loads by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		loadDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "pypx_dicomweb_metadata_load_duration_seconds",
				Help: "Duration of archive metadata file loads in seconds",
				Buckets: []float64{
					0.0005, // 500us
					0.001,  // 1ms
					0.005,  // 5ms
					0.025,  // 25ms
					0.1,    // 100ms
					0.5,    // 500ms
					2.5,    // 2.5s
				},
			},
			[]string{"kind"},
		),
		droppedTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pypx_dicomweb_listing_entries_dropped_total",
				Help: "Total number of listing entries skipped because they failed to load",
			},
			[]string{"kind"},
		),
		framesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pypx_dicomweb_frames_total",
				Help: "Total number of frames extracted by transfer syntax",
			},
			[]string{"transfer_syntax"},
		),
		frameSize: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "pypx_dicomweb_frame_size_bytes",
				Help: "Distribution of extracted frame sizes",
				Buckets: []float64{
					65536,    // 64KB
					524288,   // 512KB
					2097152,  // 2MB
					8388608,  // 8MB
					33554432, // 32MB
				},
			},
		),
	}
}

func (m *archiveMetrics) RecordLoad(kind string, duration time.Duration, outcome string) {
	m.loadsTotal.WithLabelValues(kind, outcome).Inc()
	m.loadDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (m *archiveMetrics) RecordDropped(kind string) {
	m.droppedTotal.WithLabelValues(kind).Inc()
}

func (m *archiveMetrics) RecordFrame(transferSyntax string, bytes int) {
	m.framesTotal.WithLabelValues(transferSyntax).Inc()
	m.frameSize.Observe(float64(bytes))
}
