package thumbnail

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// lasHeader carries the subset of the LAS public header the renderer needs.
type lasHeader struct {
	pointOffset  uint32
	pointFormat  uint8
	recordLength uint16
	pointCount   uint32

	scale  [3]float64
	offset [3]float64
	min    [3]float64
	max    [3]float64
}

// point is one decoded coordinate triple in file units.
type point struct {
	x, y, z float64
}

var errNotLAS = errors.New("not a LAS file")

const lasMinHeaderSize = 227

func readHeader(r io.ReaderAt) (lasHeader, error) {
	raw := make([]byte, lasMinHeaderSize)
	if _, err := r.ReadAt(raw, 0); err != nil {
		return lasHeader{}, fmt.Errorf("read header: %w", err)
	}
	if string(raw[0:4]) != "LASF" {
		return lasHeader{}, errNotLAS
	}

	var h lasHeader
	headerSize := binary.LittleEndian.Uint16(raw[94:])
	if headerSize < lasMinHeaderSize {
		return lasHeader{}, fmt.Errorf("header size %d too small", headerSize)
	}
	h.pointOffset = binary.LittleEndian.Uint32(raw[96:])
	h.pointFormat = raw[104]
	h.recordLength = binary.LittleEndian.Uint16(raw[105:])
	h.pointCount = binary.LittleEndian.Uint32(raw[107:])

	// Formats 6+ keep their counts in the LAS 1.4 header extension, so the
	// legacy count read above would be zero or wrong.
	if h.pointFormat > 5 {
		return lasHeader{}, fmt.Errorf("unsupported point format %d", h.pointFormat)
	}

	f64 := func(offset int) float64 {
		return math.Float64frombits(binary.LittleEndian.Uint64(raw[offset:]))
	}
	h.scale = [3]float64{f64(131), f64(139), f64(147)}
	h.offset = [3]float64{f64(155), f64(163), f64(171)}
	h.max = [3]float64{f64(179), f64(195), f64(211)}
	h.min = [3]float64{f64(187), f64(203), f64(219)}

	if h.recordLength < 12 {
		return lasHeader{}, fmt.Errorf("point record length %d too small", h.recordLength)
	}
	if h.pointCount == 0 {
		return lasHeader{}, errors.New("file contains no points")
	}
	return h, nil
}

// readPoints decodes at most budget points, striding evenly across the file
// so the sample covers the whole cloud rather than its first rows.
func readPoints(r io.ReaderAt, h lasHeader, budget int) ([]point, error) {
	total := int(h.pointCount)
	if budget <= 0 || budget > total {
		budget = total
	}
	stride := total / budget
	if stride < 1 {
		stride = 1
	}

	record := make([]byte, h.recordLength)
	points := make([]point, 0, budget)
	for i := 0; i < total && len(points) < budget; i += stride {
		pos := int64(h.pointOffset) + int64(i)*int64(h.recordLength)
		if _, err := r.ReadAt(record, pos); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read point %d: %w", i, err)
		}
		rawX := int32(binary.LittleEndian.Uint32(record[0:]))
		rawY := int32(binary.LittleEndian.Uint32(record[4:]))
		rawZ := int32(binary.LittleEndian.Uint32(record[8:]))
		points = append(points, point{
			x: float64(rawX)*h.scale[0] + h.offset[0],
			y: float64(rawY)*h.scale[1] + h.offset[1],
			z: float64(rawZ)*h.scale[2] + h.offset[2],
		})
	}
	if len(points) == 0 {
		return nil, errors.New("no points decoded")
	}
	return points, nil
}

func openLAS(path string) (*os.File, lasHeader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, lasHeader{}, err
	}
	header, err := readHeader(file)
	if err != nil {
		_ = file.Close()
		return nil, lasHeader{}, err
	}
	return file, header, nil
}
