package dicomweb

import "github.com/fnndsc/pypx-dicomweb/pkg/pypx"

// StudyObject encodes a study record for QIDO-RS study searches.
func StudyObject(s pypx.StudyRecord) Object {
	o := Object{}
	o.setString(TagPatientID, "LO", s.PatientID)
	o.setString(TagStudyDescription, "LO", s.StudyDescription)
	o.setString(TagStudyDate, "DA", s.StudyDate)
	o.setString(TagStudyInstanceUID, "UI", s.StudyInstanceUID)
	o.setString(TagPerformedStationAETitle, "AE", s.PerformedStationAETitle)
	return o
}

// SeriesObject encodes a series record for QIDO-RS series searches.
// numInstances is reported as NumberOfSeriesRelatedInstances.
func SeriesObject(s pypx.SeriesRecord, numInstances int) Object {
	o := Object{}
	o.setString(TagSeriesDate, "DA", s.Attr("SeriesDate"))
	o.setString(TagSeriesTime, "TM", s.Attr("SeriesTime"))
	o.setString(TagModality, "CS", s.Attr("Modality"))
	o.setString(TagSeriesDescription, "LO", s.Attr("SeriesDescription"))
	o.setString(TagStudyInstanceUID, "UI", s.Attr("StudyInstanceUID"))

	uid := s.SeriesInstanceUID
	if uid == "" {
		uid = s.Attr("SeriesInstanceUID")
	}
	o.setString(TagSeriesInstanceUID, "UI", uid)

	o.setNumberOrString(TagSeriesNumber, "IS", s.Attr("SeriesNumber"))
	o[TagNumberOfSeriesRelatedInstances] = Attribute{VR: "IS", Value: []any{numInstances}}
	return o
}
