// Package e2e runs the complete server (configuration, archive reader on the
// operating system filesystem, worker pool, HTTP adapter) against a pypx
// archive written to a temporary directory, and talks to it over TCP.
package e2e

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/fnndsc/pypx-dicomweb/internal/dicomtest"
	"github.com/fnndsc/pypx-dicomweb/internal/logger"
	"github.com/fnndsc/pypx-dicomweb/pkg/config"
	"github.com/fnndsc/pypx-dicomweb/pkg/server"
	"github.com/spf13/afero"
)

// TestContext provides a complete testing environment with:
// - an archive on disk
// - a running server listening on a free port
// - cleanup registered on the test
type TestContext struct {
	T       *testing.T
	Archive *dicomtest.Archive
	Config  *config.Config
	Port    int

	cancel     context.CancelFunc
	serverDone chan error
}

// NewTestContext creates the archive. populate writes its content before the
// server starts; the server keeps no state so later writes are visible too.
func NewTestContext(t *testing.T, populate func(a *dicomtest.Archive)) *TestContext {
	t.Helper()

	root := t.TempDir()
	archive := dicomtest.NewArchiveOn(t, afero.NewBasePathFs(afero.NewOsFs(), root))
	if populate != nil {
		populate(archive)
	}

	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = "ERROR"
	cfg.Archive.LogDir = filepath.Join(root, dicomtest.LogDir)
	cfg.Archive.DataDir = filepath.Join(root, dicomtest.DataDir)
	cfg.Archive.WriterDataMountpoint = dicomtest.WriterRoot
	cfg.Workers.Size = 2
	cfg.Adapters.HTTP.Port = findFreePort(t)
	cfg.Adapters.HTTP.ShutdownTimeout = 5 * time.Second
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("Invalid test configuration: %v", err)
	}

	tc := &TestContext{
		T:       t,
		Archive: archive,
		Config:  cfg,
		Port:    cfg.Adapters.HTTP.Port,
	}
	tc.startServer()
	t.Cleanup(tc.Cleanup)
	return tc
}

func (tc *TestContext) startServer() {
	tc.T.Helper()

	// Functional tests, not debugging sessions
	logger.SetLevel(tc.Config.Logging.Level)

	metricsResult := config.InitializeMetrics(tc.Config)

	service, pool, err := config.CreateService(tc.Config, nil, metricsResult.ArchiveMetrics)
	if err != nil {
		tc.T.Fatalf("Failed to create service: %v", err)
	}

	srv := server.New(service, pool, tc.Config.Server.ShutdownTimeout)
	adapters, err := config.CreateAdapters(tc.Config, metricsResult.HTTPMetrics)
	if err != nil {
		pool.Stop()
		tc.T.Fatalf("Failed to create adapters: %v", err)
	}
	for _, a := range adapters {
		if err := srv.AddAdapter(a); err != nil {
			pool.Stop()
			tc.T.Fatalf("Failed to add adapter: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	tc.cancel = cancel
	tc.serverDone = make(chan error, 1)
	go func() {
		tc.serverDone <- srv.Serve(ctx)
	}()

	tc.waitForServer()
}

// waitForServer polls /readyz until the server answers.
func (tc *TestContext) waitForServer() {
	tc.T.Helper()

	timeout := time.After(10 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			tc.T.Fatal("Timeout waiting for server to start")
		case err := <-tc.serverDone:
			tc.T.Fatalf("Server exited during startup: %v", err)
		case <-ticker.C:
			resp, err := http.Get(tc.URL("/readyz"))
			if err == nil {
				_ = resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return
				}
			}
		}
	}
}

// Cleanup stops the server and waits for it to exit.
func (tc *TestContext) Cleanup() {
	if tc.cancel == nil {
		return
	}
	tc.cancel()
	select {
	case <-tc.serverDone:
	case <-time.After(10 * time.Second):
		tc.T.Error("Timeout waiting for server to stop")
	}
	tc.cancel = nil
}

// URL returns the absolute URL of path on the test server.
func (tc *TestContext) URL(path string) string {
	return fmt.Sprintf("http://127.0.0.1:%d%s", tc.Port, path)
}

// Get fetches path and returns the response with its body read.
func (tc *TestContext) Get(path string) (*http.Response, []byte) {
	tc.T.Helper()

	resp, err := http.Get(tc.URL(path))
	if err != nil {
		tc.T.Fatalf("GET %s: %v", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tc.T.Fatalf("Reading %s: %v", path, err)
	}
	return resp, body
}

func findFreePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to find free port: %v", err)
	}
	defer func() { _ = listener.Close() }()

	return listener.Addr().(*net.TCPAddr).Port
}
