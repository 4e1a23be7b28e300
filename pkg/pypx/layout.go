package pypx

import (
	"fmt"
	"path/filepath"
	"strings"
)

// File and directory naming convention of a pypx archive:
//
//	log/studyData/{StudyInstanceUID}-meta.json
//	log/studyData/{StudyInstanceUID}-series/{SeriesInstanceUID}-meta.json
//	log/seriesData/{SeriesInstanceUID}-img/{4-digit-index}-{SOPInstanceUID}.dcm.json
const (
	StudyDataDirName  = "studyData"
	SeriesDataDirName = "seriesData"

	MetaSuffix         = "-meta.json"
	SeriesDirSuffix    = "-series"
	InstanceDirSuffix  = "-img"
	InstanceJSONSuffix = ".dcm.json"
	DicomSuffix        = ".dcm"

	// InstancePrefixLen is the width of the "0000-" index prefix of instance JSON files.
	InstancePrefixLen = len("0000-")
)

// Layout resolves archive identifiers to paths. All methods are pure.
type Layout struct {
	StudyDataDir  string
	SeriesDataDir string
}

// NewLayout returns the Layout of the archive whose log directory is logDir.
func NewLayout(logDir string) Layout {
	return Layout{
		StudyDataDir:  filepath.Join(logDir, StudyDataDirName),
		SeriesDataDir: filepath.Join(logDir, SeriesDataDirName),
	}
}

// StudyMetaFile returns studyData/{study}-meta.json.
func (l Layout) StudyMetaFile(study string) string {
	return filepath.Join(l.StudyDataDir, study+MetaSuffix)
}

// SeriesMetaDir returns studyData/{study}-series.
func (l Layout) SeriesMetaDir(study string) string {
	return filepath.Join(l.StudyDataDir, study+SeriesDirSuffix)
}

// SeriesMetaFile returns studyData/{study}-series/{series}-meta.json.
func (l Layout) SeriesMetaFile(study, series string) string {
	return filepath.Join(l.SeriesMetaDir(study), series+MetaSuffix)
}

// InstancesDir returns seriesData/{series}-img.
func (l Layout) InstancesDir(series string) string {
	return filepath.Join(l.SeriesDataDir, series+InstanceDirSuffix)
}

// InstanceGlob is the wildcard form of an instance JSON path, used in diagnostics.
func (l Layout) InstanceGlob(series, sop string) string {
	return filepath.Join(l.InstancesDir(series), "????-"+sop+InstanceJSONSuffix)
}

// SOPInstanceUIDFromName extracts the SOPInstanceUID embedded in an instance
// JSON file name ("0001-1.2.3.dcm.json" -> "1.2.3").
func SOPInstanceUIDFromName(name string) (string, bool) {
	if !strings.HasSuffix(name, InstanceJSONSuffix) {
		return "", false
	}
	end := len(name) - len(InstanceJSONSuffix)
	if end < InstancePrefixLen {
		return "", false
	}
	return name[InstancePrefixLen:end], true
}

// StudyUIDFromMetaName returns the StudyInstanceUID encoded in a study
// metadata file name.
func StudyUIDFromMetaName(name string) string {
	return strings.TrimSuffix(name, MetaSuffix)
}

// CheckUIDs rejects identifiers that would leave their directory once joined
// into a path. Errors are ErrInvalidArgument.
func CheckUIDs(uids ...string) error {
	for _, uid := range uids {
		if strings.ContainsAny(uid, `/\`) || strings.Contains(uid, "..") {
			return InvalidArgument(fmt.Sprintf("invalid UID %q", uid))
		}
	}
	return nil
}
