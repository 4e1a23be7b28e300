// Package dicomtest builds small DICOM Part 10 files and pypx archives for
// tests.
package dicomtest

import (
	"bytes"
	"fmt"

	"github.com/GoogleCloudPlatform/go-dicom-parser/dicom"
)

const transferSyntaxUIDTag = 0x00020010

// File serializes elems with dicom.Construct, preceded by a file meta group
// naming transferSyntax. It panics if the data set cannot be written, which
// only happens for elements built with the wrong value type.
func File(transferSyntax string, elems ...*dicom.DataElement) []byte {
	ds := &dicom.DataSet{Elements: map[dicom.DataElementTag]*dicom.DataElement{}}
	ds.Elements[transferSyntaxUIDTag] = UI(transferSyntaxUIDTag, transferSyntax)
	for _, e := range elems {
		ds.Elements[e.Tag] = e
	}

	var buf bytes.Buffer
	if err := dicom.Construct(&buf, ds); err != nil {
		panic(fmt.Sprintf("constructing DICOM file: %v", err))
	}
	return buf.Bytes()
}

// Text builds a text element (LO, CS, DA, IS, DS, PN...) holding values.
func Text(tag uint32, vr *dicom.VR, values ...string) *dicom.DataElement {
	return &dicom.DataElement{Tag: dicom.DataElementTag(tag), VR: vr, ValueField: values}
}

// UI builds a unique identifier element.
func UI(tag uint32, uid string) *dicom.DataElement {
	return Text(tag, dicom.UIVR, uid)
}

// US builds an unsigned short element.
func US(tag uint32, values ...uint16) *dicom.DataElement {
	return &dicom.DataElement{Tag: dicom.DataElementTag(tag), VR: dicom.USVR, ValueField: values}
}

// FL builds a single precision float element.
func FL(tag uint32, values ...float32) *dicom.DataElement {
	return &dicom.DataElement{Tag: dicom.DataElementTag(tag), VR: dicom.FLVR, ValueField: values}
}

// Bytes builds a native bulk data element (OB or OW). data must have an
// even length.
func Bytes(tag uint32, vr *dicom.VR, data []byte) *dicom.DataElement {
	return &dicom.DataElement{Tag: dicom.DataElementTag(tag), VR: vr, ValueField: [][]byte{data}}
}

// Encapsulated builds undefined-length OB pixel data with one item per
// fragment. The first fragment is the basic offset table.
func Encapsulated(tag uint32, fragments ...[]byte) *dicom.DataElement {
	return &dicom.DataElement{
		Tag:         dicom.DataElementTag(tag),
		VR:          dicom.OBVR,
		ValueField:  fragments,
		ValueLength: dicom.UndefinedLength,
	}
}
