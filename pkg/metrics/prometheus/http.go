package prometheus

import (
	"strconv"
	"time"

	"github.com/fnndsc/pypx-dicomweb/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// httpMetrics is the Prometheus implementation of metrics.HTTPMetrics.
type httpMetrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec
	rateLimited      prometheus.Counter
}

// NewHTTPMetrics creates a Prometheus-backed HTTPMetrics registered on the
// global registry.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewHTTPMetrics() metrics.HTTPMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopHTTPMetrics()
	}
	return NewHTTPMetricsWith(metrics.GetRegistry())
}

// NewHTTPMetricsWith creates a Prometheus-backed HTTPMetrics registered on reg.
func NewHTTPMetricsWith(reg prometheus.Registerer) metrics.HTTPMetrics {
	return &httpMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "pypx_dicomweb_http_requests_total",
				Help: "Total number of DICOMweb HTTP requests by route and status",
			},
			[]string{"route", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "pypx_dicomweb_http_request_duration_seconds",
				Help: "Duration of DICOMweb HTTP requests in seconds",
				Buckets: []float64{
					0.005, // 5ms
					0.025, // 25ms
					0.1,   // 100ms
					0.5,   // 500ms
					1.0,   // 1s
					5.0,   // 5s
					15.0,  // 15s
				},
			},
			[]string{"route"},
		),
		requestsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pypx_dicomweb_http_requests_in_flight",
				Help: "Current number of DICOMweb HTTP requests being served",
			},
			[]string{"route"},
		),
		rateLimited: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "pypx_dicomweb_http_rate_limited_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
		),
	}
}

func (m *httpMetrics) RecordRequest(route string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func (m *httpMetrics) RecordRequestStart(route string) {
	m.requestsInFlight.WithLabelValues(route).Inc()
}

func (m *httpMetrics) RecordRequestEnd(route string) {
	m.requestsInFlight.WithLabelValues(route).Dec()
}

func (m *httpMetrics) RecordRateLimited() {
	m.rateLimited.Inc()
}
