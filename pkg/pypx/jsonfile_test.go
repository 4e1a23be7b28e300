package pypx

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
}

func requireCode(t *testing.T, err error, want ErrorCode) {
	t.Helper()
	require.Error(t, err)
	code, ok := CodeOf(err)
	require.True(t, ok, "not an archive error: %v", err)
	assert.Equal(t, want, code, "error: %v", err)
}

func TestLoadSingle_Study(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeJSON(t, fs, "/s.json", `{"x":{"PatientID":"P1","StudyDescription":"Brain","StudyDate":"20200101","StudyInstanceUID":"1.2.3","PerformedStationAETitle":"AE1"}}`)

	rec, err := LoadSingle[StudyRecord](fs, "/s.json", MustLoadSchemas().Study)
	require.NoError(t, err)
	assert.Equal(t, StudyRecord{
		PatientID:               "P1",
		StudyDescription:        "Brain",
		StudyDate:               "20200101",
		StudyInstanceUID:        "1.2.3",
		PerformedStationAETitle: "AE1",
	}, rec)
}

func TestLoadSingle_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    ErrorCode
	}{
		{"two members", `{"a":{"StudyInstanceUID":"1"},"b":{"StudyInstanceUID":"2"}}`, ErrMalformed},
		{"no members", `{}`, ErrMalformed},
		{"array", `[{"StudyInstanceUID":"1"}]`, ErrMalformed},
		{"truncated", `{"a":{"StudyInstanceUID":"1"`, ErrMalformed},
		{"trailing garbage", `{"a":{"StudyInstanceUID":"1"}} {}`, ErrMalformed},
		{"payload not object", `{"a":"1.2.3"}`, ErrMalformed},
		{"schema violation", `{"a":{"StudyInstanceUID":42}}`, ErrMalformed},
		{"missing required", `{"a":{"PatientID":"P1"}}`, ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			writeJSON(t, fs, "/f.json", tt.content)

			_, err := LoadSingle[StudyRecord](fs, "/f.json", MustLoadSchemas().Study)
			requireCode(t, err, tt.want)
		})
	}
}

func TestLoadSingle_NotFound(t *testing.T) {
	_, err := LoadSingle[StudyRecord](afero.NewMemMapFs(), "/missing.json", nil)
	requireCode(t, err, ErrNotFound)
	assert.True(t, IsNotFound(err))
}

func TestLoadSingle_IOError(t *testing.T) {
	_, err := LoadSingle[StudyRecord](&untouchableFs{}, "/any.json", nil)
	requireCode(t, err, ErrIO)
}

func TestLoadSingle_InstanceSeriesNumber(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeJSON(t, fs, "/numeric.json", `{"k":{"SeriesNumber":12,"imageObj":{"a":{"FSlocation":"/w/a.dcm"}}}}`)
	writeJSON(t, fs, "/text.json", `{"k":{"SeriesNumber":"12b","imageObj":{}}}`)

	rec, err := LoadSingle[InstanceRecord](fs, "/numeric.json", MustLoadSchemas().Instance)
	require.NoError(t, err)
	assert.Equal(t, "12", rec.SeriesNumber)
	loc, err := rec.Location("/numeric.json")
	require.NoError(t, err)
	assert.Equal(t, "/w/a.dcm", loc)

	rec, err = LoadSingle[InstanceRecord](fs, "/text.json", MustLoadSchemas().Instance)
	require.NoError(t, err)
	assert.Equal(t, "12b", rec.SeriesNumber)
	_, err = rec.Location("/text.json")
	requireCode(t, err, ErrMalformed)
}

func TestInstanceRecordLocation_SkipsEmptyEntries(t *testing.T) {
	rec := InstanceRecord{ImageObj: map[string]FileStat{
		"a": {},
		"b": {FSlocation: "/w/b.dcm"},
		"c": {FSlocation: "/w/c.dcm"},
	}}

	// map order varies between runs
	for i := 0; i < 20; i++ {
		loc, err := rec.Location("/r.json")
		require.NoError(t, err)
		assert.Equal(t, "/w/b.dcm", loc)
	}

	_, err := InstanceRecord{ImageObj: map[string]FileStat{"a": {}, "b": {}}}.Location("/r.json")
	requireCode(t, err, ErrMalformed)
}

func TestLoadSingle_SeriesAttributeBag(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeJSON(t, fs, "/series.json", `{"1.2":{"SeriesInstanceUID":"1.2","SeriesBaseDir":"/w/P1","DICOM":{"Modality":{"value":"MR","label":"Modality"},"SeriesNumber":{"value":5,"label":"Series Number"}}}}`)

	rec, err := LoadSingle[SeriesRecord](fs, "/series.json", MustLoadSchemas().Series)
	require.NoError(t, err)
	assert.Equal(t, "MR", rec.Attr("Modality"))
	assert.Equal(t, "5", rec.Attr("SeriesNumber"))
	assert.Equal(t, "", rec.Attr("SeriesDescription"))
}

func TestLoadPlain(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeJSON(t, fs, "/plain.json", `{"StudyInstanceUID":"9.9","PatientID":"P9"}`)

	rec, err := LoadPlain[StudyRecord](fs, "/plain.json", MustLoadSchemas().Study)
	require.NoError(t, err)
	assert.Equal(t, "9.9", rec.StudyInstanceUID)
	assert.Equal(t, "P9", rec.PatientID)

	_, err = LoadSingle[StudyRecord](fs, "/plain.json", MustLoadSchemas().Study)
	requireCode(t, err, ErrMalformed)
}
