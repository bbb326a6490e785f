package cbf

import (
	"fmt"
	"strconv"
	"strings"
)

type elementType int

const (
	elementUnknown elementType = iota
	elementU8
	elementI8
	elementU16
	elementI16
	elementU32
	elementI32
)

type metadata struct {
	conversion   string
	encoding     string
	byteOrder    string
	elementType  elementType
	elementCount int
	width        int
	height       int
}

func parseMetadata(headers map[string]string) (metadata, error) {
	var md metadata

	contentType, ok := headers["content-type"]
	if !ok {
		return md, fmt.Errorf("%w: missing content-type", ErrUnsupportedContentType)
	}
	mime, params, _ := strings.Cut(contentType, ";")
	if !strings.EqualFold(strings.TrimSpace(mime), "application/octet-stream") {
		return md, fmt.Errorf("%w: %q", ErrUnsupportedContentType, mime)
	}
	for _, param := range strings.Split(params, ";") {
		param = strings.TrimSpace(param)
		if rest, found := strings.CutPrefix(strings.ToLower(param), "conversions="); found {
			md.conversion = strings.ToLower(strings.Trim(rest, `" `))
		}
	}

	encoding, ok := headers["content-transfer-encoding"]
	if !ok {
		return md, fmt.Errorf("%w: missing content-transfer-encoding", ErrUnsupportedEncoding)
	}
	md.encoding, _, _ = strings.Cut(strings.ToLower(encoding), ";")
	md.encoding = strings.TrimSpace(md.encoding)

	md.byteOrder = strings.ToLower(headers["x-binary-element-byte-order"])
	if md.byteOrder == "" {
		return md, fmt.Errorf("%w: missing x-binary-element-byte-order", ErrUnsupportedByteOrder)
	}

	var err error
	md.elementType, err = parseElementType(headers["x-binary-element-type"])
	if err != nil {
		return md, err
	}

	count, ok := headers["x-binary-number-of-elements"]
	if !ok {
		return md, fmt.Errorf("missing x-binary-number-of-elements")
	}
	md.elementCount, err = strconv.Atoi(strings.TrimSpace(count))
	if err != nil || md.elementCount < 0 {
		return md, fmt.Errorf("invalid x-binary-number-of-elements %q", count)
	}

	md.width, err = optionalInt(headers, "x-binary-size-fastest-dimension")
	if err != nil {
		return md, err
	}
	md.height, err = optionalInt(headers, "x-binary-size-second-dimension")
	if err != nil {
		return md, err
	}

	return md, nil
}

func parseElementType(value string) (elementType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "unsigned 8-bit integer":
		return elementU8, nil
	case "signed 8-bit integer":
		return elementI8, nil
	case "unsigned 16-bit integer":
		return elementU16, nil
	case "signed 16-bit integer":
		return elementI16, nil
	case "unsigned 32-bit integer":
		return elementU32, nil
	case "signed 32-bit integer":
		return elementI32, nil
	case "":
		return elementUnknown, fmt.Errorf("%w: missing x-binary-element-type", ErrUnsupportedPixelFormat)
	default:
		return elementUnknown, fmt.Errorf("%w: %q", ErrUnsupportedPixelFormat, value)
	}
}

func optionalInt(headers map[string]string, key string) (int, error) {
	value, ok := headers[key]
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, value)
	}
	return n, nil
}
