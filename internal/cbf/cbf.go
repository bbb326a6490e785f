// Package cbf reads CBF (crystallographic binary file) detector
// images: MIME-style metadata headers followed by a byte-offset
// compressed binary section per image.
package cbf

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"cbf-map-go/internal/analysis"
)

const (
	sectionStart = "--CIF-BINARY-FORMAT-SECTION--"
	sectionEnd   = "--CIF-BINARY-FORMAT-SECTION----"
)

// The four-byte marker that separates the header block from the
// binary pixel data.
var binaryMarker = []byte{0x0C, 0x1A, 0x04, 0xD5}

var (
	// ErrNoImage reports an input without any binary section.
	ErrNoImage = errors.New("no image found")

	ErrUnsupportedCompression  = errors.New("unsupported compression")
	ErrUnsupportedByteOrder    = errors.New("unsupported byte order")
	ErrUnsupportedPixelFormat  = errors.New("unsupported pixel format")
	ErrUnsupportedContentType  = errors.New("unsupported content type")
	ErrUnsupportedEncoding     = errors.New("unsupported encoding")
	ErrUnrecognisedBinaryEntry = errors.New("unrecognised binary header")
	ErrMissingDimension        = errors.New("missing dimension")
)

// Decoder decodes CBF files. The zero value is ready to use; it
// satisfies the analysis package's Decoder interface.
type Decoder struct{}

func (Decoder) Decode(data []byte) (analysis.Frame, error) {
	frame, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return frame, nil
}

// Decode reads the first image from a CBF file.
func Decode(data []byte) (*Frame, error) {
	return Read(bufio.NewReader(bytes.NewReader(data)))
}

// ReadAll reads every image in the file.
func ReadAll(data []byte) ([]*Frame, error) {
	r := bufio.NewReader(bytes.NewReader(data))
	var frames []*Frame
	for {
		frame, err := Read(r)
		if errors.Is(err, ErrNoImage) {
			return frames, nil
		}
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
}

// Read reads the next image from the reader, leaving the reader
// positioned after the image's closing section boundary.
func Read(r *bufio.Reader) (*Frame, error) {
	if err := skipToLine(r, sectionStart); err != nil {
		return nil, err
	}

	headers, err := readHeaders(r)
	if err != nil {
		return nil, err
	}
	md, err := parseMetadata(headers)
	if err != nil {
		return nil, err
	}

	if err := readBinaryMarker(r); err != nil {
		return nil, err
	}
	pixels, err := readPixels(r, md)
	if err != nil {
		return nil, err
	}

	if err := skipToLineOrEOF(r, sectionEnd); err != nil {
		return nil, err
	}

	if md.width == 0 || md.height == 0 {
		return nil, ErrMissingDimension
	}
	return &Frame{width: md.width, height: md.height, pixels: pixels}, nil
}

func readPixels(r *bufio.Reader, md metadata) (any, error) {
	if md.byteOrder != "little_endian" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedByteOrder, md.byteOrder)
	}
	if md.encoding != "binary" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, md.encoding)
	}
	if md.conversion != "x-cbf_byte_offset" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCompression, md.conversion)
	}

	switch md.elementType {
	case elementU8:
		return decodePixels[uint8](r, md.elementCount)
	case elementI8:
		return decodePixels[int8](r, md.elementCount)
	case elementU16:
		return decodePixels[uint16](r, md.elementCount)
	case elementI16:
		return decodePixels[int16](r, md.elementCount)
	case elementU32:
		return decodePixels[uint32](r, md.elementCount)
	case elementI32:
		return decodePixels[int32](r, md.elementCount)
	default:
		return nil, ErrUnsupportedPixelFormat
	}
}

func decodePixels[P pixel](r *bufio.Reader, count int) ([]P, error) {
	pixels := make([]P, count)
	if err := readByteOffset(r, pixels); err != nil {
		return nil, err
	}
	return pixels, nil
}

func readBinaryMarker(r *bufio.Reader) error {
	var marker [4]byte
	if _, err := io.ReadFull(r, marker[:]); err != nil {
		return err
	}
	if !bytes.Equal(marker[:], binaryMarker) {
		return ErrUnrecognisedBinaryEntry
	}
	return nil
}

// skipToLine advances the reader past the first line equal to needle.
// Reaching EOF first means the file holds no (further) image.
func skipToLine(r *bufio.Reader, needle string) error {
	for {
		line, err := r.ReadString('\n')
		if strings.TrimRight(line, "\r\n") == needle {
			return nil
		}
		if err != nil {
			return ErrNoImage
		}
	}
}

func skipToLineOrEOF(r *bufio.Reader, needle string) error {
	for {
		line, err := r.ReadString('\n')
		if strings.TrimRight(line, "\r\n") == needle {
			return nil
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
