package pypx

import "sort"

// StudyRecord is the content of studyData/{StudyInstanceUID}-meta.json.
type StudyRecord struct {
	PatientID               string `mapstructure:"PatientID"`
	StudyDescription        string `mapstructure:"StudyDescription"`
	StudyDate               string `mapstructure:"StudyDate"`
	StudyInstanceUID        string `mapstructure:"StudyInstanceUID"`
	PerformedStationAETitle string `mapstructure:"PerformedStationAETitle"`
}

// ValueAndLabel is one entry of a series' DICOM attribute bag.
type ValueAndLabel struct {
	Value string `mapstructure:"value"`
	Label string `mapstructure:"label"`
}

// SeriesRecord is the content of studyData/{Study}-series/{Series}-meta.json.
//
// Apart from the two identifying fields, series attributes are kept in a
// name-keyed bag since the writer emits whatever it found in the headers.
type SeriesRecord struct {
	SeriesInstanceUID string                   `mapstructure:"SeriesInstanceUID"`
	SeriesBaseDir     string                   `mapstructure:"SeriesBaseDir"`
	DICOM             map[string]ValueAndLabel `mapstructure:"DICOM"`
}

// Attr returns the value of a DICOM attribute, or "" when absent.
func (r SeriesRecord) Attr(name string) string {
	return r.DICOM[name].Value
}

// FileStat describes where an instance's binary file was written.
type FileStat struct {
	FSlocation string `mapstructure:"FSlocation"`
}

// InstanceRecord is the content of seriesData/{Series}-img/{NNNN}-{SOP}.dcm.json.
type InstanceRecord struct {
	PatientID         string              `mapstructure:"PatientID"`
	StudyInstanceUID  string              `mapstructure:"StudyInstanceUID"`
	SeriesInstanceUID string              `mapstructure:"SeriesInstanceUID"`
	SeriesDescription string              `mapstructure:"SeriesDescription"`
	SeriesNumber      string              `mapstructure:"SeriesNumber"`
	SeriesDate        string              `mapstructure:"SeriesDate"`
	Modality          string              `mapstructure:"Modality"`
	ImageObj          map[string]FileStat `mapstructure:"imageObj"`
}

// Location returns the FSlocation of the record's file. Exactly one FileStat
// is expected; when several are present the non-empty one with the smallest
// key is used.
func (r InstanceRecord) Location(path string) (string, error) {
	keys := make([]string, 0, len(r.ImageObj))
	for k := range r.ImageObj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if loc := r.ImageObj[k].FSlocation; loc != "" {
			return loc, nil
		}
	}
	return "", Malformed(path, "instance record has no imageObj FSlocation", nil)
}

// Query filters QueryStudies. Empty fields match everything.
type Query struct {
	StudyInstanceUID string
	PatientID        string
}

// Matches reports whether the study satisfies the attribute filters.
func (q Query) Matches(study StudyRecord) bool {
	if q.PatientID != "" && q.PatientID != study.PatientID {
		return false
	}
	return true
}

// NoLimit disables result truncation in QueryStudies.
const NoLimit = -1

// SeriesListing pairs a series record with the number of instance JSON files
// found for it.
type SeriesListing struct {
	Record       SeriesRecord
	NumInstances int
}
