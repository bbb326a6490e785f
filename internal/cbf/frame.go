package cbf

// pixel covers the element types the byte-offset conversion can
// produce.
type pixel interface {
	~uint8 | ~int8 | ~uint16 | ~int16 | ~uint32 | ~int32
}

// Frame is one decoded detector image. It satisfies the analysis
// package's Frame interface.
type Frame struct {
	width  int
	height int
	pixels any
}

func (f *Frame) Width() int {
	return f.width
}

func (f *Frame) Height() int {
	return f.height
}

// WriteRGBA renders the frame into dst with local min/max scaling and
// inverted grayscale: the largest pixel value renders black. dst must
// hold at least Width*Height*4 bytes.
func (f *Frame) WriteRGBA(dst []byte) {
	switch pixels := f.pixels.(type) {
	case []uint8:
		writeScaled(pixels, dst)
	case []int8:
		writeScaled(pixels, dst)
	case []uint16:
		writeScaled(pixels, dst)
	case []int16:
		writeScaled(pixels, dst)
	case []uint32:
		writeScaled(pixels, dst)
	case []int32:
		writeScaled(pixels, dst)
	}
}

// At returns the pixel value at centered coordinates: (0,0) is the
// middle of the frame. Reports false outside the frame bounds.
func (f *Frame) At(x, y int) (float64, bool) {
	col := x + f.width/2
	row := y + f.height/2
	if col < 0 || row < 0 || col >= f.width || row >= f.height {
		return 0, false
	}
	index := row*f.width + col

	switch pixels := f.pixels.(type) {
	case []uint8:
		return float64(pixels[index]), true
	case []int8:
		return float64(pixels[index]), true
	case []uint16:
		return float64(pixels[index]), true
	case []int16:
		return float64(pixels[index]), true
	case []uint32:
		return float64(pixels[index]), true
	case []int32:
		return float64(pixels[index]), true
	default:
		return 0, false
	}
}

func writeScaled[P pixel](pixels []P, dst []byte) {
	if len(pixels) == 0 {
		return
	}

	min, max := pixels[0], pixels[0]
	for _, p := range pixels[1:] {
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}

	var scale float64
	if max != min {
		scale = 255.0 / (float64(max) - float64(min))
	}

	n := len(dst) / 4
	if n > len(pixels) {
		n = len(pixels)
	}
	for i := 0; i < n; i++ {
		v := uint8((float64(pixels[i]) - float64(min)) * scale)
		dst[i*4+0] = 255 - v
		dst[i*4+1] = 255 - v
		dst[i*4+2] = 255 - v
		dst[i*4+3] = 255
	}
}
