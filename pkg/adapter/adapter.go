package adapter

import (
	"context"

	"github.com/fnndsc/pypx-dicomweb/pkg/dicomweb"
)

// Adapter represents a protocol front end managed by server.Server.
//
// Each adapter exposes the DICOMweb operations of a shared dicomweb.Service
// over one transport.
//
// Lifecycle:
//  1. Creation: Adapter is created with protocol-specific configuration
//  2. Service injection: SetService() provides the shared service
//  3. Startup: Serve() starts the protocol server and blocks until shutdown
//  4. Shutdown: Stop() initiates graceful shutdown with timeout
//
// Thread safety:
// Implementations must be safe for concurrent use. SetService() is called
// once before Serve(), but Stop() may be called concurrently with Serve().
type Adapter interface {
	// Serve starts the protocol server and blocks until the context is cancelled
	// or an unrecoverable error occurs.
	//
	// When the context is cancelled, Serve must stop accepting requests, wait
	// for in-flight ones (bounded by its shutdown timeout) and return nil.
	//
	// If Serve returns before context cancellation, the server treats it as
	// a fatal error and stops all other adapters.
	Serve(ctx context.Context) error

	// SetService injects the service answering requests.
	//
	// Called exactly once before Serve(), no synchronization needed.
	SetService(svc *dicomweb.Service)

	// Stop initiates graceful shutdown of the protocol server.
	//
	// Implementations must be idempotent, safe to call concurrently with
	// Serve(), and respect the context deadline.
	Stop(ctx context.Context) error

	// Protocol returns the human-readable protocol name for logging.
	Protocol() string

	// Port returns the TCP port the adapter listens on. Before Serve() this is
	// the configured port.
	Port() int
}
