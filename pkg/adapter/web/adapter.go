package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/fnndsc/pypx-dicomweb/internal/logger"
	"github.com/fnndsc/pypx-dicomweb/internal/ratelimiter"
	"github.com/fnndsc/pypx-dicomweb/pkg/adapter"
	"github.com/fnndsc/pypx-dicomweb/pkg/dicomweb"
	"github.com/fnndsc/pypx-dicomweb/pkg/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// HTTPAdapter serves the DICOMweb API (QIDO-RS searches, WADO-RS metadata
// and frames) over HTTP.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. Listener closed (no new connections)
//  3. In-flight requests get up to ShutdownTimeout to finish
//  4. Remaining connections are closed
//
// Thread safety:
// All methods are safe for concurrent use. Stop() is idempotent.
type HTTPAdapter struct {
	config  HTTPConfig
	service *dicomweb.Service
	metrics metrics.HTTPMetrics
	limiter *ratelimiter.PerClient

	engineOnce sync.Once
	engine     *gin.Engine

	mu       sync.Mutex
	server   *http.Server
	port     int
	stopped  bool
	stopOnce sync.Once
	stopErr  error
}

var _ adapter.Adapter = (*HTTPAdapter)(nil)

// New creates an HTTPAdapter. Zero values in config are replaced with
// defaults; a nil httpMetrics records nothing.
//
// Panics if config validation fails.
func New(config HTTPConfig, httpMetrics metrics.HTTPMetrics) *HTTPAdapter {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid HTTP config: %v", err))
	}

	if httpMetrics == nil {
		httpMetrics = metrics.NewNoopHTTPMetrics()
	}

	return &HTTPAdapter{
		config:  config,
		metrics: httpMetrics,
		limiter: ratelimiter.NewPerClient(config.RateLimit.RequestsPerSecond, config.RateLimit.Burst, 0),
	}
}

// SetService injects the service answering requests.
func (a *HTTPAdapter) SetService(svc *dicomweb.Service) {
	a.service = svc
	logger.Debug("HTTP adapter service configured")
}

// Handler returns the HTTP handler of the API. SetService must have been
// called.
func (a *HTTPAdapter) Handler() http.Handler {
	a.engineOnce.Do(func() {
		gin.SetMode(gin.ReleaseMode)

		r := gin.New()
		r.Use(recovery())
		r.Use(requestID())
		r.Use(requestLogger(logger.Logger()))
		r.Use(requestMetrics(a.metrics))
		r.Use(cors.New(a.corsConfig()))
		if a.limiter.Enabled() {
			r.Use(rateLimit(a.limiter, a.metrics))
		}
		a.registerRoutes(r)
		a.engine = r
	})
	return a.engine
}

func (a *HTTPAdapter) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Accept", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders: []string{"Content-Type", "Content-Length", requestIDHeader},
		MaxAge:        12 * time.Hour,
	}

	origins := make([]string, 0, len(a.config.CORSOrigins))
	for _, o := range a.config.CORSOrigins {
		if o == "*" {
			origins = nil
			break
		}
		if o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// Serve listens on the configured port and blocks until ctx is cancelled or
// the listener fails.
func (a *HTTPAdapter) Serve(ctx context.Context) error {
	if a.service == nil {
		return errors.New("HTTP adapter has no service")
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", a.config.Port))
	if err != nil {
		return fmt.Errorf("failed to create HTTP listener on port %d: %w", a.config.Port, err)
	}

	srv := &http.Server{
		Handler:           a.Handler(),
		ReadTimeout:       a.config.ReadTimeout,
		ReadHeaderTimeout: a.config.ReadTimeout,
		WriteTimeout:      a.config.WriteTimeout,
		IdleTimeout:       a.config.IdleTimeout,
	}

	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		_ = listener.Close()
		return nil
	}
	a.server = srv
	a.port = listener.Addr().(*net.TCPAddr).Port
	a.mu.Unlock()

	logger.Info("DICOMweb server listening on port %d", a.Port())
	logger.Debug("HTTP config: read_timeout=%v write_timeout=%v idle_timeout=%v rate_limit=%v/s burst=%d",
		a.config.ReadTimeout, a.config.WriteTimeout, a.config.IdleTimeout,
		a.config.RateLimit.RequestsPerSecond, a.config.RateLimit.Burst)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server failed: %w", err)

	case <-ctx.Done():
		logger.Info("HTTP shutdown signal received: %v", ctx.Err())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
		defer cancel()
		return a.Stop(shutdownCtx)
	}
}

// Stop shuts the server down gracefully, closing connections that are still
// busy when ctx ends.
func (a *HTTPAdapter) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() {
		a.mu.Lock()
		a.stopped = true
		srv := a.server
		a.mu.Unlock()

		if srv == nil {
			return
		}

		logger.Debug("HTTP shutdown initiated")
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("HTTP graceful shutdown incomplete: %v - forcing closure", err)
			_ = srv.Close()
			a.stopErr = fmt.Errorf("HTTP shutdown: %w", err)
			return
		}
		logger.Info("HTTP graceful shutdown complete")
	})
	return a.stopErr
}

// Protocol returns "DICOMweb".
func (a *HTTPAdapter) Protocol() string {
	return "DICOMweb"
}

// Port returns the port being listened on, or the configured port before Serve().
func (a *HTTPAdapter) Port() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.port != 0 {
		return a.port
	}
	return a.config.Port
}
