package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fnndsc/pypx-dicomweb/internal/logger"
	"github.com/fnndsc/pypx-dicomweb/pkg/adapter"
	"github.com/fnndsc/pypx-dicomweb/pkg/dicomweb"
	"github.com/fnndsc/pypx-dicomweb/pkg/worker"
)

// DefaultShutdownTimeout bounds adapter shutdown when none is configured.
const DefaultShutdownTimeout = 30 * time.Second

// Server manages the lifecycle of the protocol adapters exposing one
// dicomweb.Service, and of the worker pool behind it.
//
// Lifecycle:
//  1. Creation: New() with the service and its worker pool
//  2. Registration: AddAdapter() for each protocol
//  3. Startup: Serve() starts all adapters concurrently
//  4. Shutdown: context cancellation or an adapter failure stops every
//     adapter in reverse registration order, then the worker pool
//
// Thread safety:
// AddAdapter() may be called concurrently before Serve(). Serve() must only
// be called once.
type Server struct {
	service         *dicomweb.Service
	pool            *worker.Pool
	shutdownTimeout time.Duration

	mu       sync.Mutex
	adapters []adapter.Adapter
	served   bool
}

// New creates a Server.
//
// Parameters:
//   - service: The DICOMweb service handed to every adapter (required)
//   - pool: Worker pool stopped once Serve() returns (nil when the caller owns it)
//   - shutdownTimeout: Deadline shared by all adapters on shutdown (0 = DefaultShutdownTimeout)
//
// Returns a configured but not yet started Server. Call AddAdapter() to
// register protocols, then Serve() to start the server.
//
// Panics if service is nil (indicates programmer error).
func New(service *dicomweb.Service, pool *worker.Pool, shutdownTimeout time.Duration) *Server {
	if service == nil {
		panic("service cannot be nil")
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	return &Server{
		service:         service,
		pool:            pool,
		shutdownTimeout: shutdownTimeout,
		adapters:        make([]adapter.Adapter, 0, 2),
	}
}

// AddAdapter injects the service into a and registers it.
//
// Parameters:
//   - a: The protocol adapter to register (must not be nil)
//
// Returns:
//   - error if another adapter already serves the same protocol or port
//
// Panics if:
//   - a is nil (programmer error)
//   - Serve() has already been called (server is running)
func (s *Server) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		panic("cannot add adapter after Serve() has been called")
	}

	protocol, port := a.Protocol(), a.Port()
	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter", port, existing.Protocol())
		}
	}

	a.SetService(s.service)
	s.adapters = append(s.adapters, a)

	logger.Info("Registered %s adapter on port %d", protocol, port)
	return nil
}

// Adapters returns a snapshot of the registered adapters.
func (s *Server) Adapters() []adapter.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]adapter.Adapter(nil), s.adapters...)
}

type adapterError struct {
	protocol string
	err      error
}

// Serve starts all registered adapters and blocks until ctx is cancelled or
// one of them fails; every adapter is then stopped and waited for.
//
// Parameters:
//   - ctx: Controls server lifecycle. Cancellation triggers graceful shutdown.
//
// Returns:
//   - ctx.Err() when shutdown was triggered by the context
//   - the failing adapter's error otherwise
//
// Panics if called more than once.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		panic("Serve() has already been called on this server instance")
	}
	s.served = true
	adapters := append([]adapter.Adapter(nil), s.adapters...)
	s.mu.Unlock()

	if s.pool != nil {
		defer s.pool.Stop()
	}

	if len(adapters) == 0 {
		return errors.New("no adapters registered; call AddAdapter() before Serve()")
	}

	logger.Info("Starting server with %d adapter(s)", len(adapters))

	errChan := make(chan adapterError, len(adapters))
	var wg sync.WaitGroup

	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			protocol := a.Protocol()
			logger.Info("Starting %s adapter on port %d", protocol, a.Port())

			err := a.Serve(ctx)
			switch {
			case err != nil && ctx.Err() == nil && !errors.Is(err, context.Canceled):
				logger.Error("%s adapter failed: %v", protocol, err)
				errChan <- adapterError{protocol: protocol, err: err}
			case err != nil:
				logger.Debug("%s adapter stopped: %v", protocol, err)
			default:
				logger.Info("%s adapter stopped", protocol)
			}
		}(adp)
	}

	// An adapter returning nil before cancellation also ends the server.
	allDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(allDone)
	}()

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		shutdownErr = ctx.Err()

	case ae := <-errChan:
		logger.Error("Adapter %s failed: %v - initiating shutdown of all adapters", ae.protocol, ae.err)
		shutdownErr = fmt.Errorf("%s adapter error: %w", ae.protocol, ae.err)

	case <-allDone:
		// Adapters also return when ctx was cancelled before they started
		shutdownErr = ctx.Err()
		if shutdownErr == nil {
			logger.Warn("All adapters exited on their own")
		}
	}

	s.stopAllAdapters(adapters)
	<-allDone

	logger.Info("Server stopped")
	return shutdownErr
}

// stopAllAdapters signals every adapter to stop, in reverse registration
// order, sharing one shutdown deadline.
func (s *Server) stopAllAdapters(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		if err := adp.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", adp.Protocol(), err)
		} else {
			logger.Debug("%s adapter stop signal sent", adp.Protocol())
		}
	}
}
