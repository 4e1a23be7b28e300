package dicomweb

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/GoogleCloudPlatform/go-dicom-parser/dicom"
)

// DataSetObject encodes a parsed instance as a DICOM JSON object for
// WADO-RS metadata. File meta elements and bulk data are left out.
func DataSetObject(ds *dicom.DataSet) Object {
	o := Object{}
	if ds == nil {
		return o
	}

	for _, elem := range ds.Elements {
		tag := uint32(elem.Tag)
		if tag>>16 == 0x0002 || elem.VR == nil {
			continue
		}

		vr := elem.VR.Name
		if isBulkVR(vr) {
			continue
		}
		o[fmt.Sprintf("%08X", tag)] = Attribute{VR: vr, Value: jsonValues(vr, elem.ValueField)}
	}
	return o
}

func isBulkVR(vr string) bool {
	switch vr {
	case "OB", "OD", "OF", "OL", "OV", "OW", "UN":
		return true
	}
	return false
}

func jsonValues(vr string, field any) []any {
	switch v := field.(type) {
	case []string:
		return textValues(vr, v)
	case *dicom.Sequence:
		items := make([]any, 0, len(v.Items))
		for _, item := range v.Items {
			items = append(items, DataSetObject(item))
		}
		return items
	case []uint32:
		if vr == "AT" {
			return mapValues(v, func(t uint32) any { return fmt.Sprintf("%08X", t) })
		}
		return mapValues(v, func(n uint32) any { return n })
	case []uint16:
		return mapValues(v, func(n uint16) any { return n })
	case []int16:
		return mapValues(v, func(n int16) any { return n })
	case []int32:
		return mapValues(v, func(n int32) any { return n })
	case []float32:
		return mapValues(v, func(n float32) any { return finite(n) })
	case []float64:
		return mapValues(v, func(n float64) any { return finite(n) })
	}
	return nil
}

// finite returns f, or nil for NaN and infinities, which JSON cannot carry.
func finite[T float32 | float64](f T) any {
	if !isFinite(float64(f)) {
		return nil
	}
	return f
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func mapValues[T any](in []T, f func(T) any) []any {
	if len(in) == 0 {
		return nil
	}
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = f(v)
	}
	return out
}

// textValues converts string values per DICOM JSON (PS3.18 F.2): person
// names become objects, IS and DS become numbers, empty values become null.
func textValues(vr string, values []string) []any {
	if len(values) == 0 || (len(values) == 1 && values[0] == "") {
		return nil
	}

	out := make([]any, len(values))
	for i, s := range values {
		s = strings.TrimRight(s, " \x00")
		if s == "" {
			continue
		}
		switch vr {
		case "PN":
			out[i] = map[string]string{"Alphabetic": s}
		case "IS":
			if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
				out[i] = n
			} else {
				out[i] = s
			}
		case "DS":
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && isFinite(f) {
				out[i] = f
			} else {
				out[i] = s
			}
		default:
			out[i] = s
		}
	}
	return out
}
