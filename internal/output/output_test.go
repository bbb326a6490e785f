package output

import (
	"bufio"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
)

func TestWriteRasterPNG(t *testing.T) {
	dir := t.TempDir()
	raster := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for i := range raster.Pix {
		raster.Pix[i] = byte(i)
	}

	path, err := WriteRasterPNG(dir, "20260823_120000", raster)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Base(path) != "20260823_120000_composite.png" {
		t.Fatalf("unexpected filename %q", path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Bounds().Dx() != 4 || decoded.Bounds().Dy() != 3 {
		t.Fatalf("decoded %v, want 4x3", decoded.Bounds())
	}
}

func TestWriteRasterPNGNilRaster(t *testing.T) {
	if _, err := WriteRasterPNG(t.TempDir(), "ts", nil); err == nil {
		t.Fatal("expected error for nil raster")
	}
}

func TestWriteProfiles(t *testing.T) {
	dir := t.TempDir()
	buffer := []float64{1, 2, 3, 4, 5, 6}

	path, err := WriteProfiles(dir, "20260823_120000", 3, buffer)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.HasSuffix(path, "_profiles.csv.zst") {
		t.Fatalf("unexpected filename %q", path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()

	scanner := bufio.NewScanner(dec)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(lines) != 7 {
		t.Fatalf("got %d lines, want header plus 6 values", len(lines))
	}
	if lines[0] != "frame, column, value" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != "0, 0, 1.000000" {
		t.Fatalf("first value line = %q", lines[1])
	}
	// Index 4 is frame 1, column 1.
	if lines[5] != "1, 1, 5.000000" {
		t.Fatalf("wrap line = %q", lines[5])
	}
}

func TestWriteProfilesRejectsBadColumns(t *testing.T) {
	if _, err := WriteProfiles(t.TempDir(), "ts", 0, []float64{1}); err == nil {
		t.Fatal("expected error for zero columns")
	}
}

func TestRawLogRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewRawLogWriter(dir, "raw_ingest")
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	payloads := [][]byte{
		[]byte("start message"),
		{0x0C, 0x1A, 0x04, 0xD5, 0x00},
		[]byte("end"),
	}
	before := time.Now().Add(-time.Second)
	for _, p := range payloads {
		if err := writer.Record(p); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*_raw_ingest.zst"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("log file not found: %v %v", matches, err)
	}

	var records []RawLogRecord
	err = ReadRawLog(matches[0], func(record RawLogRecord) error {
		records = append(records, record)
		return nil
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if len(records) != len(payloads) {
		t.Fatalf("got %d records, want %d", len(records), len(payloads))
	}
	for i, record := range records {
		if string(record.Payload) != string(payloads[i]) {
			t.Fatalf("record %d payload = %q, want %q", i, record.Payload, payloads[i])
		}
		if record.Timestamp.Before(before) || record.Timestamp.After(time.Now()) {
			t.Fatalf("record %d timestamp %v out of range", i, record.Timestamp)
		}
	}
}

func TestRawLogWriterClosedRejectsRecords(t *testing.T) {
	writer, err := NewRawLogWriter(t.TempDir(), "raw_ingest")
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := writer.Record([]byte("late")); err == nil {
		t.Fatal("expected error after close")
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestReadRawLogRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.zst")
	if err := os.WriteFile(path, []byte("not a rawlog at all"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ReadRawLog(path, func(RawLogRecord) error { return nil }); err == nil {
		t.Fatal("expected error for bad magic")
	}
}
