package dicomfile

import (
	"encoding/binary"
	"errors"
	"io/fs"
	"os"
	"testing"

	"github.com/GoogleCloudPlatform/go-dicom-parser/dicom"
	"github.com/fnndsc/pypx-dicomweb/internal/dicomtest"
	"github.com/fnndsc/pypx-dicomweb/pkg/pypx"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jpegBaseline = "1.2.840.10008.1.2.4.50"

func requireCode(t *testing.T, err error, want pypx.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	code, ok := pypx.CodeOf(err)
	require.True(t, ok, "not an archive error: %v", err)
	assert.Equal(t, want, code, "error: %v", err)
}

func writeFile(t *testing.T, fsys afero.Fs, path string, data []byte) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fsys, path, data, 0o644))
}

// twoFrameNative is a 2x2, 8-bit, 2-frame image whose pixel values are 1..8.
func twoFrameNative(syntax string) []byte {
	return dicomtest.File(syntax,
		dicomtest.US(TagSamplesPerPixel, 1),
		dicomtest.Text(TagNumberOfFrames, dicom.ISVR, "2"),
		dicomtest.US(TagRows, 2),
		dicomtest.US(TagColumns, 2),
		dicomtest.US(TagBitsAllocated, 8),
		dicomtest.Bytes(TagPixelData, dicom.OWVR, []byte{1, 2, 3, 4, 5, 6, 7, 8}),
	)
}

func TestExtractFrame_Native(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/data/a.dcm", twoFrameNative(ExplicitVRLittleEndian))

	first, err := ExtractFrame(fsys, "/data/a.dcm", 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, first.Data)
	assert.Equal(t, ExplicitVRLittleEndian, first.TransferSyntaxUID)
	assert.False(t, first.Encapsulated)

	second, err := ExtractFrame(fsys, "/data/a.dcm", 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 6, 7, 8}, second.Data)
}

func TestExtractFrame_OutOfRange(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/data/a.dcm", twoFrameNative(ExplicitVRLittleEndian))

	_, err := ExtractFrame(fsys, "/data/a.dcm", 2)
	requireCode(t, err, pypx.ErrMalformed)
	assert.Contains(t, err.Error(), "frame 2")

	_, err = ExtractFrame(fsys, "/data/a.dcm", -1)
	requireCode(t, err, pypx.ErrMalformed)
}

func TestExtractFrame_Encapsulated(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/data/c.dcm", dicomtest.File(jpegBaseline,
		dicomtest.Text(TagNumberOfFrames, dicom.ISVR, "2"),
		dicomtest.Encapsulated(TagPixelData,
			[]byte{},
			[]byte{0xFF, 0xD8, 0xAA, 0xD9},
			[]byte{0xFF, 0xD8, 0xBB, 0xD9},
		),
	))

	frame, err := ExtractFrame(fsys, "/data/c.dcm", 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xBB, 0xD9}, frame.Data)
	assert.Equal(t, jpegBaseline, frame.TransferSyntaxUID)
	assert.True(t, frame.Encapsulated)
}

func TestExtractFrame_FileErrors(t *testing.T) {
	fsys := afero.NewMemMapFs()

	_, err := ExtractFrame(fsys, "/data/missing.dcm", 0)
	requireCode(t, err, pypx.ErrNotFound)

	writeFile(t, fsys, "/data/junk.dcm", []byte("not a dicom file"))
	_, err = ExtractFrame(fsys, "/data/junk.dcm", 0)
	requireCode(t, err, pypx.ErrMalformed)

	writeFile(t, fsys, "/data/nopixels.dcm", dicomtest.File(ExplicitVRLittleEndian,
		dicomtest.US(TagRows, 2),
	))
	_, err = ExtractFrame(fsys, "/data/nopixels.dcm", 0)
	requireCode(t, err, pypx.ErrMalformed)
	assert.Contains(t, err.Error(), "no pixel data")
}

type deniedFs struct{ afero.Fs }

func (deniedFs) Open(name string) (afero.File, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: os.ErrPermission}
}

func TestReadMetadata_OpenErrorIsIO(t *testing.T) {
	_, err := ReadMetadata(deniedFs{afero.NewMemMapFs()}, "/data/a.dcm")
	requireCode(t, err, pypx.ErrIO)
	assert.True(t, errors.Is(err, os.ErrPermission))
}

func TestEncapsulatedFrame(t *testing.T) {
	a, b, c := []byte{1, 2}, []byte{3, 4}, []byte{5, 6}

	t.Run("one fragment per frame", func(t *testing.T) {
		data, err := encapsulatedFrame([][]byte{{}, a, b}, 2, 0)
		require.NoError(t, err)
		assert.Equal(t, a, data)
	})

	t.Run("offset table groups fragments", func(t *testing.T) {
		// frame 0 = a+b (two items of 8+2 bytes), frame 1 = c
		table := binary.LittleEndian.AppendUint32(binary.LittleEndian.AppendUint32(nil, 0), 20)
		data, err := encapsulatedFrame([][]byte{table, a, b, c}, 2, 0)
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3, 4}, data)

		data, err = encapsulatedFrame([][]byte{table, a, b, c}, 2, 1)
		require.NoError(t, err)
		assert.Equal(t, c, data)
	})

	t.Run("single frame concatenates", func(t *testing.T) {
		data, err := encapsulatedFrame([][]byte{{}, a, b, c}, 1, 0)
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, data)
	})

	t.Run("ambiguous", func(t *testing.T) {
		_, err := encapsulatedFrame([][]byte{{}, a, b, c}, 2, 0)
		assert.Error(t, err)
	})

	t.Run("no fragments", func(t *testing.T) {
		_, err := encapsulatedFrame([][]byte{{}}, 1, 0)
		assert.Error(t, err)
	})
}

func TestBitPackedFrame(t *testing.T) {
	// 3 frames of 4 samples: 1010 | 1100 | 0111, least significant bit first
	data := []byte{0b00110101, 0b00001110}

	frame, err := bitPackedFrame(data, 4, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0b0101}, frame)

	frame, err = bitPackedFrame(data, 4, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0b0011}, frame)

	frame, err = bitPackedFrame(data, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0b1110}, frame)

	_, err = bitPackedFrame(data, 4, 4)
	assert.Error(t, err)
}

func TestSwapWords(t *testing.T) {
	in := make([]byte, 4)
	binary.BigEndian.PutUint16(in, 0x0102)
	binary.BigEndian.PutUint16(in[2:], 0x0304)

	out := swapWords(in, 2)
	assert.Equal(t, uint16(0x0102), binary.LittleEndian.Uint16(out))
	assert.Equal(t, uint16(0x0304), binary.LittleEndian.Uint16(out[2:]))
	assert.Equal(t, []byte{1, 2, 3, 4}, in, "input untouched")

	assert.Equal(t, in, swapWords(in, 1))
}

func TestIsNative(t *testing.T) {
	assert.True(t, IsNative(ImplicitVRLittleEndian))
	assert.True(t, IsNative(ExplicitVRBigEndian))
	assert.False(t, IsNative(jpegBaseline))
}
