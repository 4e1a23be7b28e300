package dicomweb

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/GoogleCloudPlatform/go-dicom-parser/dicom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dataSet(elems ...*dicom.DataElement) *dicom.DataSet {
	ds := &dicom.DataSet{Elements: map[dicom.DataElementTag]*dicom.DataElement{}}
	for _, e := range elems {
		ds.Elements[e.Tag] = e
	}
	return ds
}

func element(tag uint32, vr *dicom.VR, value any) *dicom.DataElement {
	return &dicom.DataElement{Tag: dicom.DataElementTag(tag), VR: vr, ValueField: value}
}

func TestDataSetObject(t *testing.T) {
	o := DataSetObject(dataSet(
		element(0x00020010, dicom.UIVR, []string{"1.2.840.10008.1.2.1"}),
		element(0x00080060, dicom.CSVR, []string{"CT"}),
		element(0x00081030, dicom.LOVR, []string{""}),
		element(0x00280030, dicom.DSVR, []string{"0.5", "0.25"}),
		element(0x00181041, dicom.FLVR, []float32{1.5}),
		element(0x7FE00010, dicom.OWVR, [][]byte{{1, 2}}),
	))

	data, err := json.Marshal(o)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"00080060": {"vr": "CS", "Value": ["CT"]},
		"00081030": {"vr": "LO"},
		"00280030": {"vr": "DS", "Value": [0.5, 0.25]},
		"00181041": {"vr": "FL", "Value": [1.5]}
	}`, string(data))
}

func TestDataSetObject_NonFiniteNumbers(t *testing.T) {
	o := DataSetObject(dataSet(
		element(0x00280030, dicom.DSVR, []string{"NaN", "-infinity", "0.5"}),
		element(0x00181041, dicom.FLVR, []float32{float32(math.NaN()), 2}),
		element(0x00189087, dicom.FDVR, []float64{math.Inf(1)}),
	))

	data, err := json.Marshal(o)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"00280030": {"vr": "DS", "Value": ["NaN", "-infinity", 0.5]},
		"00181041": {"vr": "FL", "Value": [null, 2]},
		"00189087": {"vr": "FD", "Value": [null]}
	}`, string(data))
}

func TestDataSetObject_Nil(t *testing.T) {
	assert.Empty(t, DataSetObject(nil))
}
