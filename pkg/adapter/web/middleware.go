package web

import (
	"net/http"
	"time"

	"github.com/fnndsc/pypx-dicomweb/internal/logger"
	"github.com/fnndsc/pypx-dicomweb/internal/ratelimiter"
	"github.com/fnndsc/pypx-dicomweb/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// routeOf returns the matched route template, or "unmatched".
func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}

// requestID tags every request with an ID, reusing the client's when sent.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// requestLogger emits one structured event per request.
func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		event := log.Debug()
		if status >= 500 {
			event = log.Error()
		} else if status >= 400 && status != http.StatusNotFound {
			event = log.Warn()
		} else if c.Request.URL.Path != "/readyz" {
			event = log.Info()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Str("uri", c.Request.URL.RequestURI()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int("bytes", c.Writer.Size()).
			Str("request_id", c.GetString(requestIDKey)).
			Msg("http_request")
	}
}

func requestMetrics(m metrics.HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := routeOf(c)
		start := time.Now()
		m.RecordRequestStart(route)
		defer m.RecordRequestEnd(route)

		c.Next()

		m.RecordRequest(route, c.Writer.Status(), time.Since(start))
	}
}

// rateLimit rejects clients exceeding their token bucket with 429.
func rateLimit(limiter *ratelimiter.PerClient, m metrics.HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			m.RecordRateLimited()
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// recovery turns a handler panic into a 500 instead of a dropped connection.
func recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err any) {
		logger.Error("Panic serving %s %s (request %s): %v",
			c.Request.Method, c.Request.URL.Path, c.GetString(requestIDKey), err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	})
}
