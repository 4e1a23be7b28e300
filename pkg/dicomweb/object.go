// Package dicomweb encodes archive records into the DICOM JSON model and
// multipart/related frame payloads, and serves the QIDO-RS and WADO-RS
// operations on top of a pypx.Reader.
package dicomweb

import "strconv"

// Attribute is one DICOM JSON attribute: a value representation and its
// values. Value is omitted when empty.
type Attribute struct {
	VR    string `json:"vr"`
	Value []any  `json:"Value,omitempty"`
}

// Object is a DICOM JSON object keyed by 8-hex-digit tag.
type Object map[string]Attribute

// Tags emitted for studies and series.
const (
	TagStudyDate                      = "00080020"
	TagSeriesDate                     = "00080021"
	TagSeriesTime                     = "00080031"
	TagModality                       = "00080060"
	TagStudyDescription               = "00081030"
	TagSeriesDescription              = "0008103E"
	TagPatientID                      = "00100020"
	TagStudyInstanceUID               = "0020000D"
	TagSeriesInstanceUID              = "0020000E"
	TagSeriesNumber                   = "00200011"
	TagNumberOfSeriesRelatedInstances = "00201209"
	TagPerformedStationAETitle        = "00400241"
)

// setString adds a single-valued text attribute, skipping empty values.
func (o Object) setString(tag, vr, value string) {
	if value == "" {
		return
	}
	o[tag] = Attribute{VR: vr, Value: []any{value}}
}

// setNumberOrString adds a single-valued IS attribute as a JSON number when
// value parses as an integer, as the original text otherwise.
func (o Object) setNumberOrString(tag, vr, value string) {
	if value == "" {
		return
	}
	if n, err := strconv.Atoi(value); err == nil {
		o[tag] = Attribute{VR: vr, Value: []any{n}}
		return
	}
	o[tag] = Attribute{VR: vr, Value: []any{value}}
}
