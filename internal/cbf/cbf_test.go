package cbf_test

import (
	"errors"
	"testing"

	"cbf-map-go/internal/cbf"
	"cbf-map-go/internal/simulator"
)

func TestDecodeRoundTrip(t *testing.T) {
	pixels := []int32{
		10, 20, 30, 40,
		50, 60, 70, 80,
		90, 100, 110, 120,
	}
	data := simulator.Encode(4, 3, pixels)

	frame, err := cbf.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if frame.Width() != 4 || frame.Height() != 3 {
		t.Fatalf("frame %dx%d, want 4x3", frame.Width(), frame.Height())
	}

	// At uses centered coordinates: (0,0) maps to column width/2,
	// row height/2.
	if v, ok := frame.At(0, 0); !ok || v != 70 {
		t.Fatalf("At(0,0) = %v %v, want 70", v, ok)
	}
	if v, ok := frame.At(-2, -1); !ok || v != 10 {
		t.Fatalf("At(-2,-1) = %v %v, want 10", v, ok)
	}
	if v, ok := frame.At(1, 1); !ok || v != 120 {
		t.Fatalf("At(1,1) = %v %v, want 120", v, ok)
	}
	if _, ok := frame.At(2, 0); ok {
		t.Fatal("At past the right edge should report false")
	}
}

func TestWriteRGBAInvertedGrayscale(t *testing.T) {
	pixels := []int32{0, 100, 200, 400}
	data := simulator.Encode(2, 2, pixels)

	frame, err := cbf.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	dst := make([]byte, 2*2*4)
	frame.WriteRGBA(dst)

	// Local minimum renders white, local maximum black.
	if dst[0] != 255 {
		t.Fatalf("min pixel = %d, want 255", dst[0])
	}
	if dst[3*4] != 0 {
		t.Fatalf("max pixel = %d, want 0", dst[3*4])
	}
	for i := 0; i < len(dst); i += 4 {
		if dst[i] != dst[i+1] || dst[i] != dst[i+2] {
			t.Fatalf("pixel %d not gray: %v", i/4, dst[i:i+3])
		}
		if dst[i+3] != 255 {
			t.Fatalf("pixel %d not opaque", i/4)
		}
	}
}

func TestReadAllMultipleSections(t *testing.T) {
	first := simulator.Encode(2, 2, []int32{1, 2, 3, 4})
	second := simulator.Encode(2, 2, []int32{5, 6, 7, 8})
	data := append(append([]byte{}, first...), second...)

	frames, err := cbf.ReadAll(data)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if v, _ := frames[1].At(-1, -1); v != 5 {
		t.Fatalf("second frame top-left = %v, want 5", v)
	}
}

func TestDecodeNoBinarySection(t *testing.T) {
	_, err := cbf.Decode([]byte("###CBF: VERSION 1.5\r\nplain text only\r\n"))
	if !errors.Is(err, cbf.ErrNoImage) {
		t.Fatalf("expected ErrNoImage, got %v", err)
	}
}

func TestDecodeSimulatedFrame(t *testing.T) {
	data := simulator.EncodeFrame(64, 64, 0.25)
	frame, err := cbf.Decode(data)
	if err != nil {
		t.Fatalf("decode simulated frame: %v", err)
	}
	if frame.Width() != 64 || frame.Height() != 64 {
		t.Fatalf("frame %dx%d, want 64x64", frame.Width(), frame.Height())
	}
	if v, ok := frame.At(0, 0); !ok || v < 0 {
		t.Fatalf("centre pixel %v %v", v, ok)
	}
}
