package pypx

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresArchiveDirs(t *testing.T) {
	memFs := afero.NewMemMapFs()
	require.NoError(t, memFs.MkdirAll("/archive/log/studyData", 0755))

	_, err := New(Config{LogDir: "/archive/log"}, memFs, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "seriesData")
}

func TestQueryStudies_ZeroLimitTouchesNothing(t *testing.T) {
	r := newTestArchive(t).reader()
	stub := &untouchableFs{}
	r.fs = stub

	studies, err := r.QueryStudies(context.Background(), Query{}, 0)
	require.NoError(t, err)
	assert.Empty(t, studies)

	studies, err = r.QueryStudies(context.Background(), Query{StudyInstanceUID: "1.2.3"}, 0)
	require.NoError(t, err)
	assert.Empty(t, studies)
	assert.False(t, stub.touched)
}

func TestQueryStudies_ByUID(t *testing.T) {
	a := newTestArchive(t)
	a.addStudy("1.2.3", "P1")
	a.addStudy("4.5.6", "P2")
	r := a.reader()

	studies, err := r.QueryStudies(context.Background(), Query{StudyInstanceUID: "1.2.3"}, 10)
	require.NoError(t, err)
	require.Len(t, studies, 1)
	assert.Equal(t, "1.2.3", studies[0].StudyInstanceUID)
	assert.Equal(t, "P1", studies[0].PatientID)
}

func TestQueryStudies_ByUIDMissingIsEmpty(t *testing.T) {
	r := newTestArchive(t).reader()

	studies, err := r.QueryStudies(context.Background(), Query{StudyInstanceUID: "9.9.9"}, NoLimit)
	require.NoError(t, err)
	assert.Empty(t, studies)
}

func TestQueryStudies_ByUIDMalformedPropagates(t *testing.T) {
	a := newTestArchive(t)
	a.writeFile(a.layout.StudyMetaFile("1.2.3"), []byte(`{"a":1,"b":2}`))
	r := a.reader()

	_, err := r.QueryStudies(context.Background(), Query{StudyInstanceUID: "1.2.3"}, 1)
	requireCode(t, err, ErrMalformed)
}

func TestQueryStudies_RejectsUIDsLeavingStudyData(t *testing.T) {
	a := newTestArchive(t)
	a.writeFile("/archive/secret-meta.json", []byte(`{"x":{"StudyInstanceUID":"s","PatientID":"P0"}}`))
	r := a.reader()

	_, err := r.QueryStudies(context.Background(), Query{StudyInstanceUID: "../secret"}, NoLimit)
	requireCode(t, err, ErrInvalidArgument)

	_, err = r.ListSeries(context.Background(), "../../x")
	requireCode(t, err, ErrInvalidArgument)

	_, err = r.SeriesInstanceFiles("1.2.3", "a/b")
	requireCode(t, err, ErrInvalidArgument)

	_, err = r.LocateInstance(context.Background(), "1.2.3.4", `..\x`)
	requireCode(t, err, ErrInvalidArgument)
}

func TestQueryStudies_ListingDropsCorruptEntries(t *testing.T) {
	a := newTestArchive(t)
	a.addStudy("1.1", "P1")
	a.addStudy("1.2", "P2")
	a.addStudy("1.3", "P1")
	a.writeFile(a.layout.StudyMetaFile("1.4"), []byte(`not json`))
	a.writeFile(filepath.Join(a.layout.StudyDataDir, "notes.txt"), []byte(`ignored`))
	require.NoError(t, a.fs.MkdirAll(a.layout.SeriesMetaDir("1.1"), 0755))
	r := a.reader()

	studies, err := r.QueryStudies(context.Background(), Query{}, NoLimit)
	require.NoError(t, err)
	require.Len(t, studies, 3)
	assert.Equal(t, "1.1", studies[0].StudyInstanceUID)
	assert.Equal(t, "1.2", studies[1].StudyInstanceUID)
	assert.Equal(t, "1.3", studies[2].StudyInstanceUID)
}

func TestQueryStudies_PatientFilterAndLimit(t *testing.T) {
	a := newTestArchive(t)
	a.addStudy("1.1", "P1")
	a.addStudy("1.2", "P2")
	a.addStudy("1.3", "P1")
	a.addStudy("1.4", "P1")
	r := a.reader()

	studies, err := r.QueryStudies(context.Background(), Query{PatientID: "P1"}, NoLimit)
	require.NoError(t, err)
	assert.Len(t, studies, 3)
	for _, s := range studies {
		assert.Equal(t, "P1", s.PatientID)
	}

	studies, err = r.QueryStudies(context.Background(), Query{PatientID: "P1"}, 2)
	require.NoError(t, err)
	assert.Len(t, studies, 2)

	studies, err = r.QueryStudies(context.Background(), Query{StudyInstanceUID: "1.2", PatientID: "P1"}, NoLimit)
	require.NoError(t, err)
	assert.Empty(t, studies)
}

func TestListSeries(t *testing.T) {
	a := newTestArchive(t)
	a.addStudy("1.2.3", "P1")
	a.addSeries("1.2.3", "1.2.3.1", map[string]string{"Modality": "MR"})
	a.addSeries("1.2.3", "1.2.3.2", map[string]string{"Modality": "CT"})
	a.addSeries("1.2.3", "1.2.3.3", nil)
	a.writeFile(a.layout.SeriesMetaFile("1.2.3", "1.2.3.4"), []byte(`{"x":{"SeriesInstanceUID":"1.2.3.4"}}`))
	a.writeFile(a.layout.SeriesMetaFile("1.2.3", "1.2.3.5"), []byte(`{`))
	a.addInstance("1.2.3.1", 1, "9.1", testWriterRoot+"/a.dcm")
	a.addInstance("1.2.3.1", 2, "9.2", testWriterRoot+"/b.dcm")
	a.addInstance("1.2.3.2", 1, "9.3", testWriterRoot+"/c.dcm")
	r := a.reader()

	listings, err := r.ListSeries(context.Background(), "1.2.3")
	require.NoError(t, err)
	require.Len(t, listings, 3)

	assert.Equal(t, "1.2.3.1", listings[0].Record.SeriesInstanceUID)
	assert.Equal(t, "MR", listings[0].Record.Attr("Modality"))
	assert.Equal(t, 2, listings[0].NumInstances)
	assert.Equal(t, 1, listings[1].NumInstances)
	// no instance directory at all
	assert.Equal(t, 0, listings[2].NumInstances)
}

func TestListSeries_MissingStudyDir(t *testing.T) {
	r := newTestArchive(t).reader()

	_, err := r.ListSeries(context.Background(), "nope")
	requireCode(t, err, ErrParentDirNotReadable)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestLocateInstance(t *testing.T) {
	a := newTestArchive(t)
	a.addInstance("4.5", 1, "6.7.1", testWriterRoot+"/P1/4.5/0001.dcm")
	a.addInstance("4.5", 2, "6.7.2", testWriterRoot+"/P1/4.5/0002.dcm")
	r := a.reader()

	path, err := r.LocateInstance(context.Background(), "4.5", "6.7.2")
	require.NoError(t, err)
	assert.Equal(t, testDataDir+"/P1/4.5/0002.dcm", path)
}

func TestLocateInstance_NotFoundNamesGlob(t *testing.T) {
	a := newTestArchive(t)
	a.addInstance("4.5", 1, "6.7.1", testWriterRoot+"/P1/4.5/0001.dcm")
	r := a.reader()

	_, err := r.LocateInstance(context.Background(), "4.5", "6.7.9")
	requireCode(t, err, ErrNotFound)

	var archiveErr *Error
	require.True(t, errors.As(err, &archiveErr))
	assert.Equal(t, a.layout.InstanceGlob("4.5", "6.7.9"), archiveErr.Path)
}

func TestLocateInstance_MissingSeriesDir(t *testing.T) {
	r := newTestArchive(t).reader()

	_, err := r.LocateInstance(context.Background(), "4.5", "6.7.1")
	requireCode(t, err, ErrParentDirNotReadable)
}

func TestLocateInstance_OutsideWriterMount(t *testing.T) {
	a := newTestArchive(t)
	a.addInstance("4.5", 1, "6.7.1", "/somewhere/else/0001.dcm")
	r := a.reader()

	_, err := r.LocateInstance(context.Background(), "4.5", "6.7.1")
	requireCode(t, err, ErrMalformed)
}

func TestSeriesInstanceFiles(t *testing.T) {
	a := newTestArchive(t)
	a.addSeries("1.2.3", "1.2.3.1", nil)
	seriesDir := filepath.Join(testDataDir, "P1", "1.2.3", "1.2.3.1")
	a.writeFile(filepath.Join(seriesDir, "0001.dcm"), []byte("x"))
	a.writeFile(filepath.Join(seriesDir, "0002.dcm"), []byte("y"))
	a.writeFile(filepath.Join(seriesDir, "README"), []byte("z"))
	r := a.reader()

	files, err := r.SeriesInstanceFiles("1.2.3", "1.2.3.1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(seriesDir, "0001.dcm"),
		filepath.Join(seriesDir, "0002.dcm"),
	}, files)
}

func TestSeriesInstanceFiles_Errors(t *testing.T) {
	a := newTestArchive(t)
	a.addSeries("1.2.3", "1.2.3.1", nil)
	r := a.reader()

	_, err := r.SeriesInstanceFiles("1.2.3", "missing")
	requireCode(t, err, ErrNotFound)

	// series metadata present but its base directory is not
	_, err = r.SeriesInstanceFiles("1.2.3", "1.2.3.1")
	requireCode(t, err, ErrMalformed)
}
