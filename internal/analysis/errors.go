package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyBatch rejects a batch submission with zero files.
	ErrEmptyBatch = errors.New("empty batch")

	// ErrNonPositiveValues reports a logarithmic normalization over a
	// buffer whose minimum is not strictly positive.
	ErrNonPositiveValues = errors.New("logarithmic transform requires strictly positive values")

	// ErrIncomplete reports a re-normalization request before every
	// frame of the current batch has completed.
	ErrIncomplete = errors.New("accumulation buffer not fully populated")

	// ErrFrameTooNarrow reports a frame whose width yields no reduced
	// columns. The composite needs at least one column per row, so
	// such a frame cannot establish the batch geometry.
	ErrFrameTooNarrow = errors.New("frame width yields no columns")
)

// DecodeError wraps a per-frame decode failure. It does not abort the
// rest of the batch; the failed frame's row stays blank.
type DecodeError struct {
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode frame %d: %v", e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DimensionMismatchError reports a frame whose width disagrees with
// the width established by the batch's first completed frame. Fatal to
// the batch, since the raster geometry is already fixed.
type DimensionMismatchError struct {
	Index int
	Want  int
	Got   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("frame %d width %d does not match established width %d", e.Index, e.Got, e.Want)
}
