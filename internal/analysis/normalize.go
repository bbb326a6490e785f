package analysis

import (
	"fmt"
	"image"
	"math"

	"cbf-map-go/internal/types"
)

// Normalize remaps a fully populated accumulation buffer into a final
// grayscale raster. buffer is laid out [frameIndex][column] with cols
// values per frame; the output raster is cols wide and
// frames*RowDuplication tall. Large statistic values render dark
// (inverted grayscale).
//
// Degenerate range policy: when every value is equal, each value maps
// to the transform's output at argument 0, i.e. intensity 255 (full
// white). The logarithmic transform requires a strictly positive
// minimum and fails with ErrNonPositiveValues otherwise; no output is
// produced in that case.
func Normalize(buffer []float64, cols int, params types.NormalizationParams) (*image.RGBA, error) {
	if cols < 1 {
		return nil, fmt.Errorf("invalid column count %d", cols)
	}
	params = params.Normalized()
	frames := len(buffer) / cols

	min, max := minMax(buffer)
	if params.Transform == types.TransformLogarithmic && min <= 0 {
		return nil, ErrNonPositiveValues
	}

	rowDup := params.RowDuplication
	raster := image.NewRGBA(image.Rect(0, 0, cols, frames*rowDup))
	for i, v := range buffer {
		out := remap(v, min, max, params.Transform)
		intensity := 255 - uint8(math.Round(out*255))

		col := i % cols
		row := (i / cols) * rowDup
		for d := 0; d < rowDup; d++ {
			offset := (row+d)*raster.Stride + col*4
			raster.Pix[offset+0] = intensity
			raster.Pix[offset+1] = intensity
			raster.Pix[offset+2] = intensity
			raster.Pix[offset+3] = 255
		}
	}
	return raster, nil
}

// remap maps v's position in [min,max] to a display value in [0,1].
func remap(v, min, max float64, transform types.Transform) float64 {
	if transform == types.TransformLogarithmic {
		if max == min {
			return 0
		}
		return clamp01((math.Log(v) - math.Log(min)) / (math.Log(max) - math.Log(min)))
	}

	var t float64
	if max != min {
		t = (v - min) / (max - min)
	}
	if transform == types.TransformCircular {
		// Quarter-circle ease: compresses high values, expands low
		// ones to emphasize near-background detail.
		return clamp01(math.Sqrt(1 - (t-1)*(t-1)))
	}
	return clamp01(t)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func minMax(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}
