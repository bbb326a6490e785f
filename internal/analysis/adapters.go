package analysis

// Decoder turns the raw bytes of one detector file into a decoded frame.
type Decoder interface {
	Decode(data []byte) (Frame, error)
}

// Frame is one decoded detector image. Whichever stage holds a frame
// owns it exclusively; frames are dropped as soon as their data has
// been written to a raster or folded into a reducer.
type Frame interface {
	Width() int
	Height() int
	// WriteRGBA fills dst with a locally scaled RGBA rendering of the
	// frame. dst must hold at least Width()*Height()*4 bytes.
	WriteRGBA(dst []byte)
}

// Reducer folds frames into a compact per-column statistic plus a
// quick preview row. The reduction formula is the adapter's business;
// the pipeline only relies on RawValues having length Width/2 for a
// frame of width Width.
type Reducer interface {
	Accumulate(frame Frame)
	// RawValues returns the accumulated per-column statistic.
	RawValues() []float64
	// ScaledPreview returns a locally scaled RGBA row over the
	// accumulated state, 4 bytes per raw value.
	ScaledPreview() []byte
	// WriteFinalRGBA writes the accumulated state into dst as one
	// RGBA row.
	WriteFinalRGBA(dst []byte)
	Release()
}
