// Package reduce folds decoded frames into per-radius diffraction
// profiles: polar samples around the frame centre averaged into one
// value per radius step.
package reduce

import (
	"math"

	"cbf-map-go/internal/analysis"
)

const defaultAngleSamples = 720

// sampler is the pixel access a frame must offer to be reducible.
// Frames without it contribute nothing to the profile.
type sampler interface {
	At(x, y int) (float64, bool)
}

// Radial accumulates a per-radius average over width/2 radius steps,
// sampling nearest-neighbour pixels along angleSamples directions
// across a half turn. Satisfies the analysis package's Reducer
// interface.
type Radial struct {
	angleSamples int
	radius       float64
	sum          []float64
	count        []int64
}

// Factory returns a fresh-reducer constructor for the analysis
// session. angleSamples <= 0 selects the default.
func Factory(angleSamples int) func() analysis.Reducer {
	return func() analysis.Reducer {
		return NewRadial(angleSamples)
	}
}

func NewRadial(angleSamples int) *Radial {
	if angleSamples <= 0 {
		angleSamples = defaultAngleSamples
	}
	// Sample out to the frame corners.
	return &Radial{angleSamples: angleSamples, radius: math.Sqrt2}
}

func (r *Radial) Accumulate(frame analysis.Frame) {
	src, ok := frame.(sampler)
	if !ok {
		return
	}

	steps := frame.Width() / 2
	if r.sum == nil {
		r.sum = make([]float64, steps)
		r.count = make([]int64, steps)
	} else if len(r.sum) != steps {
		return
	}

	rot := math.Pi / float64(r.angleSamples)
	rad := r.radius / float64(steps) * float64(frame.Width()) / 2.0
	for i := 0; i < r.angleSamples; i++ {
		sin, cos := math.Sincos(float64(i) * rot)
		for j := 0; j < steps; j++ {
			distance := float64(j) * rad
			x := int(math.Round(distance * cos))
			y := int(math.Round(distance * sin))
			if v, ok := src.At(x, y); ok {
				r.sum[j] += v
				r.count[j]++
			}
		}
	}
}

// RawValues returns the per-radius averages accumulated so far.
func (r *Radial) RawValues() []float64 {
	values := make([]float64, len(r.sum))
	for i, s := range r.sum {
		if r.count[i] > 0 {
			values[i] = s / float64(r.count[i])
		}
	}
	return values
}

// ScaledPreview returns the profile as one locally scaled RGBA row.
func (r *Radial) ScaledPreview() []byte {
	dst := make([]byte, len(r.sum)*4)
	r.WriteFinalRGBA(dst)
	return dst
}

// WriteFinalRGBA writes the profile into dst as one RGBA row with
// local min/max scaling and inverted grayscale.
func (r *Radial) WriteFinalRGBA(dst []byte) {
	values := r.RawValues()
	if len(values) == 0 {
		return
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
	var scale float64
	if max != min {
		scale = 255.0 / (max - min)
	}

	n := len(dst) / 4
	if n > len(values) {
		n = len(values)
	}
	for i := 0; i < n; i++ {
		v := uint8((values[i] - min) * scale)
		dst[i*4+0] = 255 - v
		dst[i*4+1] = 255 - v
		dst[i*4+2] = 255 - v
		dst[i*4+3] = 255
	}
}

func (r *Radial) Release() {
	r.sum = nil
	r.count = nil
}
