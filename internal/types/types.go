package types

import (
	"fmt"
	"strings"
)

// Transform selects how accumulated values are remapped to display
// intensities during global normalization.
type Transform int

const (
	TransformLinear Transform = iota
	TransformCircular
	TransformLogarithmic
)

func (t Transform) String() string {
	switch t {
	case TransformLinear:
		return "linear"
	case TransformCircular:
		return "circular"
	case TransformLogarithmic:
		return "logarithmic"
	default:
		return fmt.Sprintf("transform(%d)", int(t))
	}
}

func ParseTransform(s string) (Transform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linear", "":
		return TransformLinear, nil
	case "circular":
		return TransformCircular, nil
	case "logarithmic", "log":
		return TransformLogarithmic, nil
	default:
		return TransformLinear, fmt.Errorf("unknown transform %q", s)
	}
}

// NormalizationParams are the user-adjustable rendering parameters.
// Changing them re-normalizes the retained accumulation buffer; raw
// files are never re-read.
type NormalizationParams struct {
	Transform      Transform
	RowDuplication int
}

func (p NormalizationParams) Normalized() NormalizationParams {
	if p.RowDuplication < 1 {
		p.RowDuplication = 1
	}
	return p
}

// PartialResult is one frame's reduction output. Index is the frame's
// position in the submitted batch and the only ordering key; results
// from different frames arrive in arbitrary completion order.
//
// A frame that fails to decode still produces a result, with Err set
// and Raw/Scaled zeroed, so its row stays blank in the composite.
type PartialResult struct {
	Index  int
	Width  int
	Raw    []float64
	Scaled []byte
	Err    error
}
