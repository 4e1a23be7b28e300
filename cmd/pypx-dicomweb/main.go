package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fnndsc/pypx-dicomweb/internal/logger"
	"github.com/fnndsc/pypx-dicomweb/pkg/config"
	"github.com/fnndsc/pypx-dicomweb/pkg/server"
)

// Set at build time with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

const usage = `pypx-dicomweb - DICOMweb server for pypx archives

Usage:
  pypx-dicomweb <command> [flags]

Commands:
  start     Start the server
  init      Write a configuration file with default values
  version   Print version information

Run 'pypx-dicomweb <command> -h' for command flags.
`

func main() {
	if len(os.Args) < 2 {
		// The container image runs the binary without arguments
		os.Args = append(os.Args, "start")
	}

	var err error
	switch os.Args[1] {
	case "start":
		err = runStart(os.Args[2:])
	case "init":
		err = runInit(os.Args[2:])
	case "version":
		fmt.Printf("pypx-dicomweb %s (commit %s)\n", version, commit)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing configuration file")
	path := fs.String("config", "", "Write to this path instead of the default location")
	_ = fs.Parse(args)

	if *path != "" {
		if err := config.InitConfigToPath(*path, *force); err != nil {
			return err
		}
		fmt.Printf("Configuration written to %s\n", *path)
		return nil
	}

	written, err := config.InitConfig(*force)
	if err != nil {
		return err
	}
	fmt.Printf("Configuration written to %s\n", written)
	return nil
}

func runStart(args []string) error {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/pypx-dicomweb/config.yaml)")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}

	logger.Info("pypx-dicomweb %s starting", version)
	logger.Info("Archive: log_dir=%s data_dir=%s writer_data_mountpoint=%s",
		cfg.Archive.LogDir, cfg.Archive.DataDir, cfg.Archive.WriterDataMountpoint)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsResult := config.InitializeMetrics(cfg)

	service, pool, err := config.CreateService(cfg, nil, metricsResult.ArchiveMetrics)
	if err != nil {
		return err
	}
	logger.Info("Worker pool: %d workers", pool.Size())

	srv := server.New(service, pool, cfg.Server.ShutdownTimeout)

	adapters, err := config.CreateAdapters(cfg, metricsResult.HTTPMetrics)
	if err != nil {
		pool.Stop()
		return err
	}
	for _, a := range adapters {
		if err := srv.AddAdapter(a); err != nil {
			pool.Stop()
			return err
		}
	}

	if metricsResult.Server != nil {
		go func() {
			if err := metricsResult.Server.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info("Received %s, initiating graceful shutdown...", sig)
		cancel()

		if err := <-serverDone; err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("Server stopped")
	}

	return nil
}
