package simulator

import (
	"testing"

	"cbf-map-go/internal/cbf"
)

func TestBatchSize(t *testing.T) {
	batch := Batch(5, 32, 32)
	if len(batch) != 5 {
		t.Fatalf("got %d frames, want 5", len(batch))
	}
	for i, data := range batch {
		frame, err := cbf.Decode(data)
		if err != nil {
			t.Fatalf("frame %d does not decode: %v", i, err)
		}
		if frame.Width() != 32 || frame.Height() != 32 {
			t.Fatalf("frame %d is %dx%d, want 32x32", i, frame.Width(), frame.Height())
		}
	}
}

func TestFramesHaveRingStructure(t *testing.T) {
	data := EncodeFrame(64, 64, 0)
	frame, err := cbf.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Counts are clamped at zero and the centre carries signal.
	var centre float64
	for y := -32; y < 32; y++ {
		for x := -32; x < 32; x++ {
			v, ok := frame.At(x, y)
			if !ok {
				t.Fatalf("At(%d,%d) out of bounds", x, y)
			}
			if v < 0 {
				t.Fatalf("negative count %v at (%d,%d)", v, x, y)
			}
			if x == 0 && y == 0 {
				centre = v
			}
		}
	}
	if centre == 0 {
		t.Fatal("centre pixel carries no signal")
	}
}
