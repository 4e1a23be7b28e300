// Package dicomfile reads DICOM Part 10 instance files from the archive's
// data directory.
package dicomfile

// Tags of the elements this package inspects, as group<<16 | element.
const (
	TagTransferSyntaxUID = 0x00020010
	TagSamplesPerPixel   = 0x00280002
	TagNumberOfFrames    = 0x00280008
	TagRows              = 0x00280010
	TagColumns           = 0x00280011
	TagBitsAllocated     = 0x00280100
	TagPixelData         = 0x7FE00010
)

// Transfer syntax UIDs of the uncompressed encodings.
const (
	ImplicitVRLittleEndian         = "1.2.840.10008.1.2"
	ExplicitVRLittleEndian         = "1.2.840.10008.1.2.1"
	DeflatedExplicitVRLittleEndian = "1.2.840.10008.1.2.1.99"
	ExplicitVRBigEndian            = "1.2.840.10008.1.2.2"
)

// undefinedLength marks a value field terminated by a delimiter, which for
// pixel data means the encapsulated (compressed) format.
const undefinedLength = 0xFFFFFFFF

// IsNative reports whether uid names an uncompressed transfer syntax.
func IsNative(uid string) bool {
	switch uid {
	case ImplicitVRLittleEndian, ExplicitVRLittleEndian, DeflatedExplicitVRLittleEndian, ExplicitVRBigEndian:
		return true
	}
	return false
}
