package dicomfile

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/GoogleCloudPlatform/go-dicom-parser/dicom"
	"github.com/fnndsc/pypx-dicomweb/pkg/pypx"
	"github.com/spf13/afero"
)

// ReadMetadata parses the whole instance file at path.
//
// Errors:
//   - ErrNotFound if the file does not exist
//   - ErrIO if it cannot be opened for another reason
//   - ErrMalformed if it is not a parseable DICOM Part 10 file
func ReadMetadata(fsys afero.Fs, path string) (*dicom.DataSet, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, pypx.FromOpenError(path, err)
	}
	defer func() { _ = f.Close() }()

	ds, err := dicom.Parse(bufio.NewReader(f))
	if err != nil {
		return nil, pypx.Malformed(path, "cannot parse DICOM file", err)
	}
	return ds, nil
}

// find returns the element with the given tag, or nil.
func find(ds *dicom.DataSet, tag uint32) *dicom.DataElement {
	for _, elem := range ds.Elements {
		if uint32(elem.Tag) == tag {
			return elem
		}
	}
	return nil
}

// stringValue returns the first value of a text element.
func stringValue(ds *dicom.DataSet, tag uint32) (string, bool) {
	elem := find(ds, tag)
	if elem == nil {
		return "", false
	}
	values, ok := elem.ValueField.([]string)
	if !ok || len(values) == 0 {
		return "", false
	}
	return strings.TrimRight(values[0], " \x00"), true
}

// intValue returns the first value of a binary or IS-encoded integer element.
func intValue(ds *dicom.DataSet, tag uint32) (int, bool) {
	elem := find(ds, tag)
	if elem == nil {
		return 0, false
	}

	switch v := elem.ValueField.(type) {
	case []uint16:
		if len(v) > 0 {
			return int(v[0]), true
		}
	case []int16:
		if len(v) > 0 {
			return int(v[0]), true
		}
	case []uint32:
		if len(v) > 0 {
			return int(v[0]), true
		}
	case []int32:
		if len(v) > 0 {
			return int(v[0]), true
		}
	case []string:
		if len(v) > 0 {
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimRight(v[0], "\x00")))
			if err == nil {
				return n, true
			}
		}
	}
	return 0, false
}
