package ingest

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	payload, err := cbor.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return payload
}

func TestDecodeStartMessage(t *testing.T) {
	payload := mustMarshal(t, map[string]any{"type": "start", "number_of_images": 64})

	msg, err := decodeMessage(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.kind != "start" || msg.count != 64 {
		t.Fatalf("got kind=%q count=%d", msg.kind, msg.count)
	}
}

func TestDecodeImageMessage(t *testing.T) {
	payload := mustMarshal(t, map[string]any{
		"type":     "image",
		"image_id": 7,
		"data":     []byte{0x0C, 0x1A, 0x04, 0xD5},
	})

	msg, err := decodeMessage(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.kind != "image" || msg.imageID != 7 || len(msg.data) != 4 {
		t.Fatalf("got kind=%q id=%d len=%d", msg.kind, msg.imageID, len(msg.data))
	}
}

func TestDecodeImageMessageWithoutData(t *testing.T) {
	payload := mustMarshal(t, map[string]any{"type": "image", "image_id": 3})
	if _, err := decodeMessage(payload); err == nil {
		t.Fatal("expected error for image without data")
	}
}

func TestDecodeMalformedPayload(t *testing.T) {
	if _, err := decodeMessage([]byte{0xFF, 0xFF}); err == nil {
		t.Fatal("expected error for malformed CBOR")
	}
}

func TestDecodeEndMessage(t *testing.T) {
	msg, err := decodeMessage(mustMarshal(t, map[string]any{"type": "end"}))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.kind != "end" {
		t.Fatalf("got kind %q", msg.kind)
	}
}

func TestRunCollectorOrdersByImageID(t *testing.T) {
	c := newRunCollector(3)
	c.add(2, []byte("c"))
	c.add(0, []byte("a"))
	if c.complete() {
		t.Fatal("collector complete with a frame missing")
	}
	c.add(1, []byte("b"))
	if !c.complete() {
		t.Fatal("collector not complete after all frames")
	}

	run := c.run()
	if len(run.Frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(run.Frames))
	}
	for i, want := range []string{"a", "b", "c"} {
		if string(run.Frames[i]) != want {
			t.Fatalf("frame %d = %q, want %q", i, run.Frames[i], want)
		}
	}
}

func TestRunCollectorDroppedFrameStaysNil(t *testing.T) {
	c := newRunCollector(0)
	c.add(0, []byte("a"))
	c.add(2, []byte("c"))

	run := c.run()
	if len(run.Frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(run.Frames))
	}
	if run.Frames[1] != nil {
		t.Fatalf("missing frame should stay nil, got %q", run.Frames[1])
	}
}

func TestRunCollectorDuplicateCountsOnce(t *testing.T) {
	c := newRunCollector(2)
	c.add(0, []byte("first"))
	c.add(0, []byte("second"))
	if c.complete() {
		t.Fatal("duplicate image_id must not complete the run")
	}
	if got := string(c.run().Frames[0]); got != "second" {
		t.Fatalf("duplicate should overwrite, got %q", got)
	}
}

func TestRunCollectorIgnoresNegativeID(t *testing.T) {
	c := newRunCollector(1)
	c.add(-1, []byte("x"))
	if len(c.run().Frames) != 0 {
		t.Fatal("negative image_id must be dropped")
	}
}

func TestToInt(t *testing.T) {
	for _, v := range []any{int(5), int64(5), uint64(5), uint32(5), float64(5)} {
		n, err := toInt(v)
		if err != nil || n != 5 {
			t.Fatalf("toInt(%T) = %d, %v", v, n, err)
		}
	}
	if _, err := toInt("5"); err == nil {
		t.Fatal("expected error for string input")
	}
}
