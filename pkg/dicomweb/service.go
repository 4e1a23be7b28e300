package dicomweb

import (
	"context"
	"sort"

	"github.com/fnndsc/pypx-dicomweb/internal/logger"
	"github.com/fnndsc/pypx-dicomweb/pkg/dicomfile"
	"github.com/fnndsc/pypx-dicomweb/pkg/metrics"
	"github.com/fnndsc/pypx-dicomweb/pkg/pypx"
	"github.com/fnndsc/pypx-dicomweb/pkg/worker"
)

// Service implements the DICOMweb operations over an archive.
//
// Metadata queries run on the caller's goroutine with bounded fan-out;
// DICOM parsing is handed to the worker pool.
type Service struct {
	reader   *pypx.Reader
	pool     *worker.Pool
	boundary string
	metrics  metrics.ArchiveMetrics
}

// NewService creates a Service.
//
// Parameters:
//   - reader: The archive to serve (required)
//   - pool: Worker pool running DICOM parsing (required)
//   - boundary: Multipart boundary of frame responses ("" = DefaultBoundary)
//   - archiveMetrics: Optional metrics collector (nil = no metrics)
func NewService(reader *pypx.Reader, pool *worker.Pool, boundary string, archiveMetrics metrics.ArchiveMetrics) *Service {
	if boundary == "" {
		boundary = DefaultBoundary
	}
	if archiveMetrics == nil {
		archiveMetrics = metrics.NewNoopArchiveMetrics()
	}
	return &Service{
		reader:   reader,
		pool:     pool,
		boundary: boundary,
		metrics:  archiveMetrics,
	}
}

// Boundary returns the multipart boundary used by GetFrame.
func (s *Service) Boundary() string {
	return s.boundary
}

// QueryStudies searches studies (QIDO-RS).
func (s *Service) QueryStudies(ctx context.Context, q pypx.Query, limit int) ([]Object, error) {
	studies, err := s.reader.QueryStudies(ctx, q, limit)
	if err != nil {
		return nil, err
	}

	objects := make([]Object, 0, len(studies))
	for _, study := range studies {
		objects = append(objects, StudyObject(study))
	}
	return objects, nil
}

// ListSeries searches the series of a study (QIDO-RS).
func (s *Service) ListSeries(ctx context.Context, study string) ([]Object, error) {
	listings, err := s.reader.ListSeries(ctx, study)
	if err != nil {
		return nil, err
	}

	objects := make([]Object, 0, len(listings))
	for _, l := range listings {
		objects = append(objects, SeriesObject(l.Record, l.NumInstances))
	}
	return objects, nil
}

type instanceObject struct {
	path   string
	object Object
}

// SeriesMetadata returns the full metadata of every instance file of a
// series (WADO-RS), ordered by file name. Files that cannot be parsed are
// skipped.
func (s *Service) SeriesMetadata(ctx context.Context, study, series string) ([]Object, error) {
	files, err := s.reader.SeriesInstanceFiles(study, series)
	if err != nil {
		return nil, err
	}

	fsys := s.reader.Fs()
	parsed, err := pypx.FanOut(ctx, s.reader.FanoutWidth(), files,
		func(ctx context.Context, path string) (instanceObject, error) {
			return worker.Submit(ctx, s.pool, path, func() (instanceObject, error) {
				ds, err := dicomfile.ReadMetadata(fsys, path)
				if err != nil {
					return instanceObject{}, err
				}
				return instanceObject{path: path, object: DataSetObject(ds)}, nil
			})
		},
		func(path string, err error) {
			s.metrics.RecordDropped("instance")
			logger.Warn("Skipping instance file %s: %v", path, err)
		},
	)
	if err != nil {
		return nil, err
	}

	sort.Slice(parsed, func(i, j int) bool { return parsed[i].path < parsed[j].path })

	objects := make([]Object, len(parsed))
	for i, p := range parsed {
		objects[i] = p.object
	}
	return objects, nil
}

// GetFrame returns frame number frame (one-based) of an instance as a
// multipart/related body (WADO-RS).
//
// Errors:
//   - ErrInvalidArgument if frame < 1
//   - the errors of pypx.Reader.LocateInstance and dicomfile.ExtractFrame
//   - ErrRuntime if the extraction could not be run on the worker pool
func (s *Service) GetFrame(ctx context.Context, series, sop string, frame int) ([]byte, error) {
	if frame < 1 {
		return nil, pypx.InvalidArgument("frame numbers start at 1")
	}

	path, err := s.reader.LocateInstance(ctx, series, sop)
	if err != nil {
		return nil, err
	}

	fsys := s.reader.Fs()
	f, err := worker.Submit(ctx, s.pool, path, func() (dicomfile.Frame, error) {
		return dicomfile.ExtractFrame(fsys, path, frame-1)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordFrame(f.TransferSyntaxUID, len(f.Data))
	return EncodeFrames(s.boundary, FramePart{TransferSyntaxUID: f.TransferSyntaxUID, Data: f.Data}), nil
}
