package testsupport

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"testing"
)

const (
	lasHeaderSize  = 227
	lasPointLength = 20
)

// WriteLAS writes a minimal LAS 1.2 file containing the given points so that
// readers and renderers can run against real bytes. Coordinates use a fixed
// 0.001 scale with the minimum corner as offset.
func WriteLAS(t testing.TB, path string, points [][3]float64) {
	t.Helper()
	if len(points) == 0 {
		t.Fatal("WriteLAS requires at least one point")
	}

	minC := [3]float64{math.MaxFloat64, math.MaxFloat64, math.MaxFloat64}
	maxC := [3]float64{-math.MaxFloat64, -math.MaxFloat64, -math.MaxFloat64}
	for _, p := range points {
		for axis := 0; axis < 3; axis++ {
			if p[axis] < minC[axis] {
				minC[axis] = p[axis]
			}
			if p[axis] > maxC[axis] {
				maxC[axis] = p[axis]
			}
		}
	}

	const scale = 0.001
	header := make([]byte, lasHeaderSize)
	copy(header[0:4], "LASF")
	header[24] = 1 // version major
	header[25] = 2 // version minor
	binary.LittleEndian.PutUint16(header[94:], lasHeaderSize)
	binary.LittleEndian.PutUint32(header[96:], lasHeaderSize)
	header[104] = 0 // point data record format
	binary.LittleEndian.PutUint16(header[105:], lasPointLength)
	binary.LittleEndian.PutUint32(header[107:], uint32(len(points)))
	putFloat := func(offset int, value float64) {
		binary.LittleEndian.PutUint64(header[offset:], math.Float64bits(value))
	}
	putFloat(131, scale)
	putFloat(139, scale)
	putFloat(147, scale)
	putFloat(155, minC[0])
	putFloat(163, minC[1])
	putFloat(171, minC[2])
	putFloat(179, maxC[0])
	putFloat(187, minC[0])
	putFloat(195, maxC[1])
	putFloat(203, minC[1])
	putFloat(211, maxC[2])
	putFloat(219, minC[2])

	var buf bytes.Buffer
	buf.Write(header)
	record := make([]byte, lasPointLength)
	for _, p := range points {
		binary.LittleEndian.PutUint32(record[0:], uint32(int32(math.Round((p[0]-minC[0])/scale))))
		binary.LittleEndian.PutUint32(record[4:], uint32(int32(math.Round((p[1]-minC[1])/scale))))
		binary.LittleEndian.PutUint32(record[8:], uint32(int32(math.Round((p[2]-minC[2])/scale))))
		buf.Write(record)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write las file: %v", err)
	}
}
