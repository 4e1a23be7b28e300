package metrics

import "time"

// HTTPMetrics provides observability for the DICOMweb HTTP adapter.
//
// Example usage:
//
//	// With metrics enabled
//	m := prometheus.NewHTTPMetrics()
//	adapter := web.New(config, m)
//
//	// Without metrics (no-op)
//	adapter := web.New(config, nil)
type HTTPMetrics interface {
	// RecordRequest records a completed request.
	//
	// Parameters:
	//   - route: matched route template (e.g. "/dicomweb/studies/:study/series")
	//   - status: HTTP status code written
	//   - duration: time taken to serve the request
	RecordRequest(route string, status int, duration time.Duration)

	// RecordRequestStart increments the in-flight gauge of route.
	RecordRequestStart(route string)

	// RecordRequestEnd decrements the in-flight gauge of route.
	RecordRequestEnd(route string)

	// RecordRateLimited counts a request rejected by the rate limiter.
	RecordRateLimited()
}

// NewNoopHTTPMetrics returns an HTTPMetrics that records nothing.
func NewNoopHTTPMetrics() HTTPMetrics {
	return noopHTTPMetrics{}
}

type noopHTTPMetrics struct{}

func (noopHTTPMetrics) RecordRequest(route string, status int, duration time.Duration) {}
func (noopHTTPMetrics) RecordRequestStart(route string)                                {}
func (noopHTTPMetrics) RecordRequestEnd(route string)                                  {}
func (noopHTTPMetrics) RecordRateLimited()                                             {}
