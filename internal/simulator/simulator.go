// Package simulator synthesizes CBF detector frames for debug runs
// and tests: concentric diffraction rings around the beam centre with
// Poisson-ish noise, encoded as genuine byte-offset CBF payloads.
package simulator

import (
	"fmt"
	"math"
	"math/rand"

	"cbf-map-go/internal/cbf"
)

// Batch returns n encoded frames of the given square dimensions. Ring
// radii drift from frame to frame so a composite shows structure.
func Batch(n, width, height int) [][]byte {
	batch := make([][]byte, n)
	for i := range batch {
		batch[i] = EncodeFrame(width, height, float64(i)/float64(n))
	}
	return batch
}

// EncodeFrame builds one synthetic diffraction pattern and wraps it
// in a CBF binary section. phase in [0,1) shifts the ring positions.
func EncodeFrame(width, height int, phase float64) []byte {
	pixels := make([]int32, width*height)
	centerX := float64(width) / 2.0
	centerY := float64(height) / 2.0
	ringSpacing := float64(width) / 8.0

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx := float64(x) - centerX
			dy := float64(y) - centerY
			distance := math.Sqrt(dx*dx + dy*dy)

			ring := math.Cos(2*math.Pi*(distance/ringSpacing+phase)) + 1
			base := 100 + 500*ring*math.Exp(-distance/float64(width))
			noise := rand.NormFloat64() * math.Sqrt(base)
			value := base + noise
			if value < 0 {
				value = 0
			}
			pixels[y*width+x] = int32(value)
		}
	}

	return Encode(width, height, pixels)
}

// Encode wraps pixel data in a minimal CBF container the decoder
// accepts.
func Encode(width, height int, pixels []int32) []byte {
	encoded := cbf.AppendByteOffset(nil, pixels)

	var buf []byte
	buf = append(buf, "--CIF-BINARY-FORMAT-SECTION--\r\n"...)
	buf = append(buf, "Content-Type: application/octet-stream;\r\n"...)
	buf = append(buf, "     conversions=\"x-CBF_BYTE_OFFSET\"\r\n"...)
	buf = append(buf, "Content-Transfer-Encoding: BINARY\r\n"...)
	buf = append(buf, "X-Binary-Element-Type: \"signed 32-bit integer\"\r\n"...)
	buf = append(buf, "X-Binary-Element-Byte-Order: LITTLE_ENDIAN\r\n"...)
	buf = append(buf, fmt.Sprintf("X-Binary-Number-of-Elements: %d\r\n", len(pixels))...)
	buf = append(buf, fmt.Sprintf("X-Binary-Size-Fastest-Dimension: %d\r\n", width)...)
	buf = append(buf, fmt.Sprintf("X-Binary-Size-Second-Dimension: %d\r\n", height)...)
	buf = append(buf, fmt.Sprintf("X-Binary-Size: %d\r\n", len(encoded))...)
	buf = append(buf, "\r\n"...)
	buf = append(buf, 0x0C, 0x1A, 0x04, 0xD5)
	buf = append(buf, encoded...)
	buf = append(buf, "\r\n--CIF-BINARY-FORMAT-SECTION----\r\n"...)
	return buf
}
