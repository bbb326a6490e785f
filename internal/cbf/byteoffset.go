package cbf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// CBF byte-offset conversion: each pixel is stored as a delta against
// the previous pixel. A delta is one signed byte unless it is the
// escape value 0x80, in which case it widens to two bytes, then four,
// then eight, each level guarded by its own escape value.

func readByteOffset[P pixel](r *bufio.Reader, out []P) error {
	var base int64
	for i := range out {
		delta, err := readDelta(r)
		if err != nil {
			return fmt.Errorf("byte-offset value %d: %w", i, err)
		}
		base += delta
		out[i] = P(base)
	}
	return nil
}

func readDelta(r *bufio.Reader) (int64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if b != 0x80 {
		return int64(int8(b)), nil
	}

	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:2]); err != nil {
		return 0, err
	}
	if v := binary.LittleEndian.Uint16(buf[:2]); v != 0x8000 {
		return int64(int16(v)), nil
	}

	if _, err := io.ReadFull(r, buf[:4]); err != nil {
		return 0, err
	}
	if v := binary.LittleEndian.Uint32(buf[:4]); v != 0x80000000 {
		return int64(int32(v)), nil
	}

	if _, err := io.ReadFull(r, buf[:8]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(buf[:8])), nil
}

// AppendByteOffset encodes values with the byte-offset conversion,
// appending to dst. The inverse of the decoder above; used by the
// simulator and by tests.
func AppendByteOffset(dst []byte, values []int32) []byte {
	var base int64
	for _, v := range values {
		delta := int64(v) - base
		base = int64(v)
		switch {
		case delta >= math.MinInt8 && delta <= math.MaxInt8 && delta != -0x80:
			dst = append(dst, byte(int8(delta)))
		case delta >= math.MinInt16 && delta <= math.MaxInt16 && delta != -0x8000:
			dst = append(dst, 0x80)
			dst = binary.LittleEndian.AppendUint16(dst, uint16(int16(delta)))
		case delta >= math.MinInt32 && delta <= math.MaxInt32 && delta != -0x80000000:
			dst = append(dst, 0x80)
			dst = binary.LittleEndian.AppendUint16(dst, 0x8000)
			dst = binary.LittleEndian.AppendUint32(dst, uint32(int32(delta)))
		default:
			// A delta between two int32 values can exceed int32 range.
			dst = append(dst, 0x80)
			dst = binary.LittleEndian.AppendUint16(dst, 0x8000)
			dst = binary.LittleEndian.AppendUint32(dst, 0x80000000)
			dst = binary.LittleEndian.AppendUint64(dst, uint64(delta))
		}
	}
	return dst
}
