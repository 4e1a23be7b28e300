package pypx

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fnndsc/pypx-dicomweb/internal/logger"
	"github.com/fnndsc/pypx-dicomweb/pkg/metrics"
	"github.com/spf13/afero"
)

// Config locates the archive. It is built once at startup and never mutated.
type Config struct {
	// LogDir contains the studyData and seriesData trees
	LogDir string

	// DataDir is where this process sees the archive's data directory
	DataDir string

	// WriterDataMountpoint is where the archive writer saw the data directory
	// when it recorded SeriesBaseDir and FSlocation values
	WriterDataMountpoint string

	// FanoutWidth bounds concurrent metadata loads per operation (0 = default)
	FanoutWidth int
}

// Reader answers queries against a pypx archive.
//
// A Reader holds no mutable state: every call loads what it needs from disk
// and discards it on return, so one Reader serves any number of concurrent
// requests. Files may appear, disappear or be half-written while a call runs;
// per-entry failures during listings are logged and the entry skipped.
type Reader struct {
	fs         afero.Fs
	layout     Layout
	dataDir    string
	writerRoot string
	width      int
	schemas    *Schemas
	metrics    metrics.ArchiveMetrics
}

// New creates a Reader over fsys and checks that the studyData and
// seriesData directories exist.
//
// Parameters:
//   - cfg: Archive roots and fan-out width
//   - fsys: Filesystem to read from (nil = read-only OS filesystem)
//   - archiveMetrics: Optional metrics collector (nil = no metrics)
//
// Returns:
//   - *Reader: Reader ready for concurrent use
//   - error: A root is unset or an archive directory is missing
func New(cfg Config, fsys afero.Fs, archiveMetrics metrics.ArchiveMetrics) (*Reader, error) {
	if fsys == nil {
		fsys = afero.NewReadOnlyFs(afero.NewOsFs())
	}
	if archiveMetrics == nil {
		archiveMetrics = metrics.NewNoopArchiveMetrics()
	}

	schemas, err := LoadSchemas()
	if err != nil {
		return nil, err
	}

	layout := NewLayout(cfg.LogDir)
	for _, dir := range []string{layout.StudyDataDir, layout.SeriesDataDir} {
		ok, err := afero.IsDir(fsys, dir)
		if err != nil || !ok {
			return nil, fmt.Errorf("pypx archive: %s is not a directory", dir)
		}
	}

	width := cfg.FanoutWidth
	if width <= 0 {
		width = DefaultFanoutWidth
	}

	return &Reader{
		fs:         fsys,
		layout:     layout,
		dataDir:    cfg.DataDir,
		writerRoot: cfg.WriterDataMountpoint,
		width:      width,
		schemas:    schemas,
		metrics:    archiveMetrics,
	}, nil
}

// Fs returns the filesystem the Reader reads from.
func (r *Reader) Fs() afero.Fs {
	return r.fs
}

// FanoutWidth returns the number of concurrent loads per operation.
func (r *Reader) FanoutWidth() int {
	return r.width
}

// QueryStudies returns the studies matching q, at most limit of them
// (NoLimit for all). Results are ordered by StudyInstanceUID.
//
// A limit of 0 returns immediately without touching the filesystem. When
// q.StudyInstanceUID is set only that study is loaded and its absence yields
// an empty result. Otherwise every study metadata file is loaded and files
// that fail to load are skipped.
func (r *Reader) QueryStudies(ctx context.Context, q Query, limit int) ([]StudyRecord, error) {
	if err := CheckUIDs(q.StudyInstanceUID); err != nil {
		return nil, err
	}
	if limit == 0 {
		return []StudyRecord{}, nil
	}

	var studies []StudyRecord
	if q.StudyInstanceUID != "" {
		study, err := r.LoadStudy(q.StudyInstanceUID)
		if err != nil {
			if IsNotFound(err) {
				return []StudyRecord{}, nil
			}
			return nil, err
		}
		studies = []StudyRecord{study}
	} else {
		var err error
		studies, err = r.loadAllStudies(ctx)
		if err != nil {
			return nil, err
		}
	}

	matched := studies[:0]
	for _, s := range studies {
		if q.Matches(s) {
			matched = append(matched, s)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StudyInstanceUID < matched[j].StudyInstanceUID
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// LoadStudy loads the metadata of one study.
func (r *Reader) LoadStudy(study string) (StudyRecord, error) {
	return r.loadStudyFile(r.layout.StudyMetaFile(study))
}

func (r *Reader) loadStudyFile(path string) (StudyRecord, error) {
	start := time.Now()
	rec, err := LoadSingle[StudyRecord](r.fs, path, r.schemas.Study)
	r.metrics.RecordLoad("study", time.Since(start), outcome(err))
	if err != nil {
		return rec, err
	}

	if expected := StudyUIDFromMetaName(filepath.Base(path)); rec.StudyInstanceUID != expected {
		logger.Warn("Study metadata %s names StudyInstanceUID %q", path, rec.StudyInstanceUID)
	}
	return rec, nil
}

func (r *Reader) loadAllStudies(ctx context.Context) ([]StudyRecord, error) {
	dir := r.layout.StudyDataDir
	files, err := r.listFiles(dir, MetaSuffix)
	if err != nil {
		return nil, ParentDirNotReadable(dir, err)
	}

	return FanOut(ctx, r.width, files,
		func(_ context.Context, path string) (StudyRecord, error) {
			return r.loadStudyFile(path)
		},
		r.dropper("study"),
	)
}

// ListSeries returns every series of a study together with its instance count.
// Series metadata files that fail to load are skipped; a failed instance count
// is reported as zero. Results are ordered by SeriesInstanceUID.
func (r *Reader) ListSeries(ctx context.Context, study string) ([]SeriesListing, error) {
	if err := CheckUIDs(study); err != nil {
		return nil, err
	}
	dir := r.layout.SeriesMetaDir(study)
	files, err := r.listFiles(dir, MetaSuffix)
	if err != nil {
		return nil, ParentDirNotReadable(dir, err)
	}

	listings, err := FanOut(ctx, r.width, files,
		func(_ context.Context, path string) (SeriesListing, error) {
			rec, err := r.loadSeriesFile(path)
			if err != nil {
				return SeriesListing{}, err
			}
			count, err := r.CountInstances(rec.SeriesInstanceUID)
			if err != nil {
				logger.Debug("Counting instances of series %s: %v", rec.SeriesInstanceUID, err)
				count = 0
			}
			return SeriesListing{Record: rec, NumInstances: count}, nil
		},
		r.dropper("series"),
	)
	if err != nil {
		return nil, err
	}

	sort.Slice(listings, func(i, j int) bool {
		return listings[i].Record.SeriesInstanceUID < listings[j].Record.SeriesInstanceUID
	})
	return listings, nil
}

// loadSeries loads the metadata of one series of a study.
func (r *Reader) loadSeries(study, series string) (SeriesRecord, error) {
	return r.loadSeriesFile(r.layout.SeriesMetaFile(study, series))
}

func (r *Reader) loadSeriesFile(path string) (SeriesRecord, error) {
	start := time.Now()
	rec, err := LoadSingle[SeriesRecord](r.fs, path, r.schemas.Series)
	r.metrics.RecordLoad("series", time.Since(start), outcome(err))
	return rec, err
}

// CountInstances counts the instance JSON files of a series without loading them.
func (r *Reader) CountInstances(series string) (int, error) {
	dir := r.layout.InstancesDir(series)
	files, err := r.listFiles(dir, InstanceJSONSuffix)
	if err != nil {
		return 0, ParentDirNotReadable(dir, err)
	}
	return len(files), nil
}

// SeriesInstanceFiles lists the binary instance files of a series, as seen by
// this process. The series' SeriesBaseDir is re-rooted onto the data directory.
func (r *Reader) SeriesInstanceFiles(study, series string) ([]string, error) {
	if err := CheckUIDs(study, series); err != nil {
		return nil, err
	}

	metaPath := r.layout.SeriesMetaFile(study, series)
	rec, err := r.loadSeries(study, series)
	if err != nil {
		return nil, err
	}

	dir, err := r.ToReaderPath(metaPath, rec.SeriesBaseDir)
	if err != nil {
		return nil, err
	}

	files, err := r.listFiles(dir, DicomSuffix)
	if err != nil {
		return nil, Malformed(metaPath, fmt.Sprintf("SeriesBaseDir %s is not readable", dir), err)
	}
	return files, nil
}

// ToReaderPath re-roots a writer path found in the metadata file source.
// A path outside the writer's data mountpoint is a Malformed source.
func (r *Reader) ToReaderPath(source, writerPath string) (string, error) {
	p, ok := Translate(writerPath, r.writerRoot, r.dataDir)
	if !ok {
		logger.Error("%s is not inside the writer data mountpoint %s (referenced by %s)", writerPath, r.writerRoot, source)
		return "", Malformed(source, fmt.Sprintf("%s is not relative to %s", writerPath, r.writerRoot), nil)
	}
	return p, nil
}

// listFiles returns the paths of the non-directory entries of dir whose name
// ends with suffix.
func (r *Reader) listFiles(dir, suffix string) ([]string, error) {
	entries, err := afero.ReadDir(r.fs, dir)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

func (r *Reader) dropper(kind string) func(string, error) {
	return func(path string, err error) {
		r.metrics.RecordDropped(kind)
		if IsNotFound(err) {
			logger.Debug("Skipping %s metadata %s: removed while listing", kind, path)
			return
		}
		logger.Warn("Skipping %s metadata %s: %v", kind, path, err)
	}
}

var outcomeLabels = strings.NewReplacer(" ", "_", "/", "")

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if code, ok := CodeOf(err); ok {
		return outcomeLabels.Replace(code.String())
	}
	return "error"
}
