package dicomfile

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/GoogleCloudPlatform/go-dicom-parser/dicom"
	"github.com/fnndsc/pypx-dicomweb/pkg/pypx"
	"github.com/spf13/afero"
)

// Frame is the pixel data of one frame of an instance.
type Frame struct {
	// Data holds the frame bytes. Encapsulated frames are returned exactly as
	// stored; native frames are little-endian.
	Data []byte

	// TransferSyntaxUID is the encoding of Data
	TransferSyntaxUID string

	// Encapsulated is true when Data is a compressed bitstream
	Encapsulated bool
}

// ExtractFrame returns frame index (zero-based) of the instance file at path.
//
// Errors:
//   - ErrNotFound if the file does not exist
//   - ErrIO if it cannot be opened for another reason
//   - ErrMalformed if the file cannot be parsed, has no usable pixel data, or
//     has no frame index
func ExtractFrame(fsys afero.Fs, path string, index int) (Frame, error) {
	ds, err := ReadMetadata(fsys, path)
	if err != nil {
		return Frame{}, err
	}
	return FrameOf(ds, path, index)
}

// FrameOf returns frame index of an already parsed data set. path is only
// used in errors.
func FrameOf(ds *dicom.DataSet, path string, index int) (Frame, error) {
	pixels := find(ds, TagPixelData)
	if pixels == nil {
		return Frame{}, pypx.Malformed(path, "no pixel data", nil)
	}

	fragments, ok := pixelFragments(pixels.ValueField)
	if !ok {
		return Frame{}, pypx.Malformed(path, fmt.Sprintf("undecodable pixel data (%T)", pixels.ValueField), nil)
	}

	syntax, _ := stringValue(ds, TagTransferSyntaxUID)
	numFrames := 1
	if n, ok := intValue(ds, TagNumberOfFrames); ok && n > 0 {
		numFrames = n
	}

	if index < 0 || index >= numFrames {
		return Frame{}, pypx.Malformed(path, fmt.Sprintf("frame %d out of range (%d frames)", index, numFrames), nil)
	}

	if pixels.ValueLength == undefinedLength || (syntax != "" && !IsNative(syntax)) {
		data, err := encapsulatedFrame(fragments, numFrames, index)
		if err != nil {
			return Frame{}, pypx.Malformed(path, fmt.Sprintf("frame %d: %v", index, err), nil)
		}
		return Frame{Data: data, TransferSyntaxUID: syntax, Encapsulated: true}, nil
	}

	data, err := nativeFrame(ds, bytes.Join(fragments, nil), index)
	if err != nil {
		return Frame{}, pypx.Malformed(path, fmt.Sprintf("frame %d: %v", index, err), nil)
	}
	if syntax == ExplicitVRBigEndian {
		bits, _ := intValue(ds, TagBitsAllocated)
		data = swapWords(data, bits/8)
	}
	return Frame{Data: data, TransferSyntaxUID: ExplicitVRLittleEndian}, nil
}

// pixelFragments normalizes the buffered forms the parser produces for
// OB/OW/UN values.
func pixelFragments(value any) ([][]byte, bool) {
	switch v := value.(type) {
	case []byte:
		return [][]byte{v}, true
	case [][]byte:
		return v, true
	case interface{ Data() [][]byte }:
		return v.Data(), true
	}
	return nil, false
}

func nativeFrame(ds *dicom.DataSet, data []byte, index int) ([]byte, error) {
	rows, _ := intValue(ds, TagRows)
	cols, _ := intValue(ds, TagColumns)
	bits, _ := intValue(ds, TagBitsAllocated)
	spp, ok := intValue(ds, TagSamplesPerPixel)
	if !ok || spp <= 0 {
		spp = 1
	}
	if rows <= 0 || cols <= 0 || bits <= 0 {
		return nil, fmt.Errorf("missing image geometry (rows=%d columns=%d bits=%d)", rows, cols, bits)
	}

	samples := rows * cols * spp
	if bits == 1 {
		return bitPackedFrame(data, samples, index)
	}
	if bits%8 != 0 {
		return nil, fmt.Errorf("unsupported BitsAllocated %d", bits)
	}

	size := samples * bits / 8
	start := index * size
	if start+size > len(data) {
		return nil, fmt.Errorf("pixel data holds %d bytes, frame needs [%d, %d)", len(data), start, start+size)
	}
	return data[start : start+size], nil
}

// bitPackedFrame copies the samples of one frame of 1-bit pixel data. Frames
// are contiguous in the bit stream and need not start on a byte boundary.
func bitPackedFrame(data []byte, samples, index int) ([]byte, error) {
	first := index * samples
	if (first+samples+7)/8 > len(data) {
		return nil, fmt.Errorf("pixel data holds %d bytes, frame needs %d bits from bit %d", len(data), samples, first)
	}
	if first%8 == 0 {
		return data[first/8 : (first+samples+7)/8], nil
	}

	out := make([]byte, (samples+7)/8)
	for i := 0; i < samples; i++ {
		src := first + i
		if data[src/8]>>(src%8)&1 == 1 {
			out[i/8] |= 1 << (i % 8)
		}
	}
	return out, nil
}

// encapsulatedFrame assembles one frame from the fragments of encapsulated
// pixel data, the first of which is the basic offset table.
func encapsulatedFrame(fragments [][]byte, numFrames, index int) ([]byte, error) {
	if len(fragments) < 2 {
		return nil, fmt.Errorf("encapsulated pixel data has no fragments")
	}
	table, items := fragments[0], fragments[1:]

	if len(items) == numFrames {
		return items[index], nil
	}

	if offsets := offsetTable(table); len(offsets) == numFrames {
		begin := uint64(offsets[index])
		end := uint64(1<<63 - 1)
		if index+1 < numFrames {
			end = uint64(offsets[index+1])
		}

		var (
			pos   uint64
			frame [][]byte
		)
		for _, item := range items {
			if pos >= begin && pos < end {
				frame = append(frame, item)
			}
			// item tag and length precede each fragment
			pos += 8 + uint64(len(item))
		}
		if len(frame) == 0 {
			return nil, fmt.Errorf("offset table points past the last fragment")
		}
		return bytes.Join(frame, nil), nil
	}

	if numFrames == 1 {
		return bytes.Join(items, nil), nil
	}
	return nil, fmt.Errorf("cannot map %d fragments onto %d frames", len(items), numFrames)
}

func offsetTable(table []byte) []uint32 {
	offsets := make([]uint32, len(table)/4)
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint32(table[i*4:])
	}
	return offsets
}

func swapWords(data []byte, width int) []byte {
	if width < 2 {
		return data
	}
	out := make([]byte, len(data))
	copy(out, data)
	for i := 0; i+width <= len(out); i += width {
		for a, b := i, i+width-1; a < b; a, b = a+1, b-1 {
			out[a], out[b] = out[b], out[a]
		}
	}
	return out
}
