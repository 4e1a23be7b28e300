package dicomtest

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/fnndsc/pypx-dicomweb/pkg/pypx"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// Roots of archives built by NewArchive.
const (
	LogDir     = "/archive/log"
	DataDir    = "/mnt/reader/data"
	WriterRoot = "/home/dicom/data"
)

// Archive builds a pypx archive in an in-memory filesystem.
type Archive struct {
	T      *testing.T
	Fs     afero.Fs
	Layout pypx.Layout
}

// NewArchive creates an empty archive with its studyData and seriesData
// directories in memory.
func NewArchive(t *testing.T) *Archive {
	t.Helper()
	return NewArchiveOn(t, afero.NewMemMapFs())
}

// NewArchiveOn creates an empty archive on fs. Wrap a directory with
// afero.NewBasePathFs to build an archive on disk.
func NewArchiveOn(t *testing.T, fs afero.Fs) *Archive {
	t.Helper()
	layout := pypx.NewLayout(LogDir)
	require.NoError(t, fs.MkdirAll(layout.StudyDataDir, 0o755))
	require.NoError(t, fs.MkdirAll(layout.SeriesDataDir, 0o755))
	return &Archive{T: t, Fs: fs, Layout: layout}
}

// Config returns the reader configuration matching the archive's roots.
func (a *Archive) Config() pypx.Config {
	return pypx.Config{LogDir: LogDir, DataDir: DataDir, WriterDataMountpoint: WriterRoot}
}

// Reader opens the archive.
func (a *Archive) Reader() *pypx.Reader {
	a.T.Helper()
	r, err := pypx.New(a.Config(), a.Fs, nil)
	require.NoError(a.T, err)
	return r
}

// WriteFile writes data at path, creating parent directories.
func (a *Archive) WriteFile(path string, data []byte) {
	a.T.Helper()
	require.NoError(a.T, a.Fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(a.T, afero.WriteFile(a.Fs, path, data, 0o644))
}

// WriteWrapped writes record as a single-member JSON document.
func (a *Archive) WriteWrapped(path string, record any) {
	a.T.Helper()
	data, err := json.Marshal(map[string]any{"data": record})
	require.NoError(a.T, err)
	a.WriteFile(path, data)
}

// AddStudy writes a study metadata file.
func (a *Archive) AddStudy(uid, patientID string) {
	a.WriteWrapped(a.Layout.StudyMetaFile(uid), map[string]any{
		"PatientID":               patientID,
		"StudyDescription":        "Brain",
		"StudyDate":               "20200101",
		"StudyInstanceUID":        uid,
		"PerformedStationAETitle": "AE1",
	})
}

// SeriesDir returns the writer-side directory of a series' instance files.
func SeriesDir(study, series string) string {
	return filepath.Join(WriterRoot, "P1", study, series)
}

// ReaderPath re-roots a writer path the way the archive reader does.
func ReaderPath(writerPath string) string {
	p, _ := pypx.Translate(writerPath, WriterRoot, DataDir)
	return p
}

// AddSeries writes a series metadata file with the given DICOM attributes.
func (a *Archive) AddSeries(study, series string, attrs map[string]string) {
	bag := map[string]any{}
	for k, v := range attrs {
		bag[k] = map[string]any{"value": v, "label": k}
	}
	a.WriteWrapped(a.Layout.SeriesMetaFile(study, series), map[string]any{
		"SeriesInstanceUID": series,
		"SeriesBaseDir":     SeriesDir(study, series),
		"DICOM":             bag,
	})
}

// AddInstance writes the instance JSON of sop, pointing at its binary file
// in the series directory, and the binary file itself when dcm is not nil.
// It returns the path of the binary file as seen by the reader.
func (a *Archive) AddInstance(study, series string, index int, sop string, dcm []byte) string {
	name := fmt.Sprintf("%04d-%s", index, sop)
	location := filepath.Join(SeriesDir(study, series), name+pypx.DicomSuffix)

	a.WriteWrapped(filepath.Join(a.Layout.InstancesDir(series), name+pypx.InstanceJSONSuffix), map[string]any{
		"PatientID":         "P1",
		"StudyInstanceUID":  study,
		"SeriesInstanceUID": series,
		"SeriesNumber":      "3",
		"imageObj": map[string]any{
			name + pypx.DicomSuffix: map[string]any{"FSlocation": location},
		},
	})

	readerPath := ReaderPath(location)
	if dcm != nil {
		a.WriteFile(readerPath, dcm)
	}
	return readerPath
}
