package config

import (
	"fmt"

	"github.com/fnndsc/pypx-dicomweb/pkg/dicomweb"
	"github.com/fnndsc/pypx-dicomweb/pkg/metrics"
	"github.com/fnndsc/pypx-dicomweb/pkg/pypx"
	"github.com/fnndsc/pypx-dicomweb/pkg/worker"
	"github.com/spf13/afero"
)

// CreateReader opens the archive described by cfg.Archive.
//
// Parameters:
//   - cfg: The complete configuration
//   - fsys: Filesystem holding the archive (nil = read-only OS filesystem)
//   - archiveMetrics: Optional archive metrics collector (nil = no metrics)
//
// Returns:
//   - *pypx.Reader: Reader over the archive's log and data directories
//   - error: The archive directories are missing or not directories
func CreateReader(cfg *Config, fsys afero.Fs, archiveMetrics metrics.ArchiveMetrics) (*pypx.Reader, error) {
	reader, err := pypx.New(pypx.Config{
		LogDir:               cfg.Archive.LogDir,
		DataDir:              cfg.Archive.DataDir,
		WriterDataMountpoint: cfg.Archive.WriterDataMountpoint,
		FanoutWidth:          cfg.Archive.FanoutWidth,
	}, fsys, archiveMetrics)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return reader, nil
}

// CreateService builds the DICOMweb service and the worker pool backing it.
//
// The caller owns the pool; server.Server stops it when Serve returns.
//
// Parameters:
//   - cfg: The complete configuration
//   - fsys: Filesystem holding the archive (nil = read-only OS filesystem)
//   - archiveMetrics: Optional archive metrics collector (nil = no metrics)
//
// Returns:
//   - *dicomweb.Service: Service ready to be handed to server.New
//   - *worker.Pool: Running worker pool sized by cfg.Workers
//   - error: The archive could not be opened
func CreateService(cfg *Config, fsys afero.Fs, archiveMetrics metrics.ArchiveMetrics) (*dicomweb.Service, *worker.Pool, error) {
	reader, err := CreateReader(cfg, fsys, archiveMetrics)
	if err != nil {
		return nil, nil, err
	}

	pool := worker.New(cfg.Workers.Size, cfg.Workers.Queue)
	service := dicomweb.NewService(reader, pool, cfg.DICOMweb.MultipartBoundary, archiveMetrics)
	return service, pool, nil
}
