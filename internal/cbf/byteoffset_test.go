package cbf

import (
	"bufio"
	"bytes"
	"math"
	"strings"
	"testing"
)

func TestReadDelta(t *testing.T) {
	cases := []struct {
		name  string
		input []byte
		want  int64
	}{
		{"positive byte", []byte{0x42}, 0x42},
		{"negative byte", []byte{0xFF}, -1},
		{"two byte", []byte{0x80, 0x20, 0x04}, 0x0420},
		{"two byte negative", []byte{0x80, 0x00, 0xFF}, -256},
		{"four byte", []byte{0x80, 0x00, 0x80, 0x78, 0x56, 0x34, 0x12}, 0x12345678},
		{"eight byte", []byte{
			0x80, 0x00, 0x80, 0x00, 0x00, 0x00, 0x80,
			0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00,
		}, 0x200000001},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := readDelta(bufio.NewReader(bytes.NewReader(tc.input)))
			if err != nil {
				t.Fatalf("readDelta: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %#x, want %#x", got, tc.want)
			}
		})
	}
}

func TestReadDeltaTruncated(t *testing.T) {
	if _, err := readDelta(bufio.NewReader(bytes.NewReader([]byte{0x80, 0x01}))); err == nil {
		t.Fatal("expected error on truncated wide delta")
	}
}

func TestByteOffsetRoundTrip(t *testing.T) {
	// Deltas crossing every escape boundary, including the escape
	// values themselves (-128 and -32768 must widen).
	values := []int32{0, 127, -1, -129, 126, 32767, -32768, 0, 1 << 20, -(1 << 20), 42}

	encoded := AppendByteOffset(nil, values)
	decoded := make([]int32, len(values))
	if err := readByteOffset(bufio.NewReader(bytes.NewReader(encoded)), decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := range values {
		if decoded[i] != values[i] {
			t.Fatalf("value %d: got %d, want %d", i, decoded[i], values[i])
		}
	}
}

func TestByteOffsetRoundTripWideDeltas(t *testing.T) {
	// Deltas between int32 extremes exceed int32 range and need the
	// 8-byte level, as does the 4-byte escape value itself.
	values := []int32{0, math.MinInt32, 0, math.MaxInt32, math.MinInt32, -1}

	encoded := AppendByteOffset(nil, values)
	decoded := make([]int32, len(values))
	if err := readByteOffset(bufio.NewReader(bytes.NewReader(encoded)), decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := range values {
		if decoded[i] != values[i] {
			t.Fatalf("value %d: got %d, want %d", i, decoded[i], values[i])
		}
	}
}

func TestByteOffsetShortInput(t *testing.T) {
	out := make([]int32, 4)
	err := readByteOffset(bufio.NewReader(bytes.NewReader([]byte{0x01, 0x02})), out)
	if err == nil {
		t.Fatal("expected error when input runs out before the element count")
	}
}

func TestReadHeadersFoldsContinuations(t *testing.T) {
	input := "Content-Type: application/octet-stream;\r\n" +
		"     conversions=\"x-CBF_BYTE_OFFSET\"\r\n" +
		"Content-Transfer-Encoding: BINARY\r\n" +
		"X-Binary-Element-Type: \"signed 32-bit integer\"\r\n" +
		"\r\n"

	headers, err := readHeaders(bufio.NewReader(strings.NewReader(input)))
	if err != nil {
		t.Fatalf("readHeaders: %v", err)
	}
	if got := headers["content-type"]; got != "application/octet-stream;conversions=x-CBF_BYTE_OFFSET" {
		t.Fatalf("content-type = %q", got)
	}
	if got := headers["content-transfer-encoding"]; got != "BINARY" {
		t.Fatalf("content-transfer-encoding = %q", got)
	}
	if got := headers["x-binary-element-type"]; got != "signed 32-bit integer" {
		t.Fatalf("element type not unquoted: %q", got)
	}
}

func TestParseMetadata(t *testing.T) {
	headers := map[string]string{
		"content-type":                    "application/octet-stream;conversions=x-CBF_BYTE_OFFSET",
		"content-transfer-encoding":       "BINARY",
		"x-binary-element-type":           "signed 32-bit integer",
		"x-binary-element-byte-order":     "LITTLE_ENDIAN",
		"x-binary-number-of-elements":     "6",
		"x-binary-size-fastest-dimension": "3",
		"x-binary-size-second-dimension":  "2",
	}
	md, err := parseMetadata(headers)
	if err != nil {
		t.Fatalf("parseMetadata: %v", err)
	}
	if md.conversion != "x-cbf_byte_offset" {
		t.Fatalf("conversion = %q", md.conversion)
	}
	if md.byteOrder != "little_endian" || md.encoding != "binary" {
		t.Fatalf("byte order %q, encoding %q", md.byteOrder, md.encoding)
	}
	if md.elementType != elementI32 || md.elementCount != 6 {
		t.Fatalf("element type %v, count %d", md.elementType, md.elementCount)
	}
	if md.width != 3 || md.height != 2 {
		t.Fatalf("dimensions %dx%d", md.width, md.height)
	}
}

func TestParseMetadataRejectsUnknownElementType(t *testing.T) {
	headers := map[string]string{
		"content-type":                "application/octet-stream",
		"content-transfer-encoding":   "BINARY",
		"x-binary-element-byte-order": "LITTLE_ENDIAN",
		"x-binary-element-type":       "ieee 64-bit real",
		"x-binary-number-of-elements": "1",
	}
	if _, err := parseMetadata(headers); err == nil {
		t.Fatal("expected error for unsupported element type")
	}
}
