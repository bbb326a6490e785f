package analysis

import (
	"fmt"
	"image"

	"cbf-map-go/internal/types"
)

// assembler places arriving preview rows into the shared composite
// raster. The raster is allocated on the first successful result,
// which also fixes the expected frame width for the rest of the batch.
type assembler struct {
	frames int
	rowDup int
	width  int
	raster *image.RGBA
}

func newAssembler(frames, rowDup int) *assembler {
	if rowDup < 1 {
		rowDup = 1
	}
	return &assembler{frames: frames, rowDup: rowDup}
}

// place writes one result's preview into its row block. Results that
// carry a decode error leave their rows blank. A frame too narrow to
// carry a column and a width disagreement with the established width
// are both fatal.
func (a *assembler) place(res types.PartialResult) error {
	if res.Err != nil {
		return nil
	}

	if a.raster == nil {
		if res.Width < 2 {
			return fmt.Errorf("frame %d width %d: %w", res.Index, res.Width, ErrFrameTooNarrow)
		}
		a.width = res.Width
		a.raster = image.NewRGBA(image.Rect(0, 0, res.Width/2, a.frames*a.rowDup))
	} else if res.Width != a.width {
		return &DimensionMismatchError{Index: res.Index, Want: a.width, Got: res.Width}
	}

	cols := a.width / 2
	rowBytes := cols * 4
	if len(res.Scaled) < rowBytes {
		rowBytes = len(res.Scaled)
	}
	for d := 0; d < a.rowDup; d++ {
		row := res.Index*a.rowDup + d
		offset := row * a.raster.Stride
		copy(a.raster.Pix[offset:offset+rowBytes], res.Scaled[:rowBytes])
	}
	return nil
}
