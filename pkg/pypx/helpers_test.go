package pypx

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const (
	testLogDir     = "/archive/log"
	testDataDir    = "/mnt/reader/data"
	testWriterRoot = "/home/dicom/data"
)

// testArchive builds a pypx archive in an in-memory filesystem.
type testArchive struct {
	t      *testing.T
	fs     afero.Fs
	layout Layout
}

func newTestArchive(t *testing.T) *testArchive {
	t.Helper()
	fs := afero.NewMemMapFs()
	layout := NewLayout(testLogDir)
	require.NoError(t, fs.MkdirAll(layout.StudyDataDir, 0755))
	require.NoError(t, fs.MkdirAll(layout.SeriesDataDir, 0755))
	return &testArchive{t: t, fs: fs, layout: layout}
}

func (a *testArchive) reader() *Reader {
	a.t.Helper()
	r, err := New(Config{
		LogDir:               testLogDir,
		DataDir:              testDataDir,
		WriterDataMountpoint: testWriterRoot,
	}, a.fs, nil)
	require.NoError(a.t, err)
	return r
}

func (a *testArchive) writeFile(path string, data []byte) {
	a.t.Helper()
	require.NoError(a.t, a.fs.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(a.t, afero.WriteFile(a.fs, path, data, 0644))
}

func (a *testArchive) writeWrapped(path string, record any) {
	a.t.Helper()
	data, err := json.Marshal(map[string]any{"wrapper": record})
	require.NoError(a.t, err)
	a.writeFile(path, data)
}

func (a *testArchive) addStudy(uid, patientID string) {
	a.writeWrapped(a.layout.StudyMetaFile(uid), map[string]any{
		"PatientID":               patientID,
		"StudyDescription":        "Study " + uid,
		"StudyDate":               "20200101",
		"StudyInstanceUID":        uid,
		"PerformedStationAETitle": "AE1",
	})
}

func (a *testArchive) addSeries(study, series string, attrs map[string]string) {
	bag := map[string]any{}
	for k, v := range attrs {
		bag[k] = map[string]any{"value": v, "label": k}
	}
	a.writeWrapped(a.layout.SeriesMetaFile(study, series), map[string]any{
		"SeriesInstanceUID": series,
		"SeriesBaseDir":     filepath.Join(testWriterRoot, "P1", study, series),
		"DICOM":             bag,
	})
}

func (a *testArchive) addInstance(series string, index int, sop, fsLocation string) {
	name := fmt.Sprintf("%04d-%s%s", index, sop, InstanceJSONSuffix)
	a.writeWrapped(filepath.Join(a.layout.InstancesDir(series), name), map[string]any{
		"PatientID":         "P1",
		"SeriesInstanceUID": series,
		"SeriesNumber":      3,
		"imageObj": map[string]any{
			sop: map[string]any{"FSlocation": fsLocation},
		},
	})
}

// untouchableFs fails every access and remembers that it was touched.
type untouchableFs struct {
	afero.Fs
	touched bool
}

func (f *untouchableFs) Open(name string) (afero.File, error) {
	f.touched = true
	return nil, os.ErrPermission
}

func (f *untouchableFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	f.touched = true
	return nil, os.ErrPermission
}

func (f *untouchableFs) Stat(name string) (os.FileInfo, error) {
	f.touched = true
	return nil, os.ErrPermission
}
