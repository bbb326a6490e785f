package output

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
)

func Timestamp() string {
	return time.Now().Format("20060102_150405")
}

// WriteRasterPNG writes the composite raster as a PNG.
func WriteRasterPNG(outputDir, runTimestamp string, raster *image.RGBA) (string, error) {
	if raster == nil {
		return "", fmt.Errorf("no raster to write")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}

	filename := filepath.Join(outputDir, fmt.Sprintf("%s_composite.png", runTimestamp))
	f, err := os.Create(filename)
	if err != nil {
		return "", err
	}
	if err := png.Encode(f, raster); err != nil {
		_ = f.Close()
		return "", err
	}
	return filename, f.Close()
}

// WriteProfiles writes the accumulation buffer as a zstd-compressed
// CSV, one line per (frame, column) value.
func WriteProfiles(outputDir, runTimestamp string, cols int, buffer []float64) (string, error) {
	if cols <= 0 {
		return "", fmt.Errorf("invalid column count %d", cols)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}

	filename := filepath.Join(outputDir, fmt.Sprintf("%s_profiles.csv.zst", runTimestamp))
	f, err := os.Create(filename)
	if err != nil {
		return "", err
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		_ = f.Close()
		return "", err
	}

	if _, err := fmt.Fprintln(enc, "frame, column, value"); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return "", err
	}
	for i, v := range buffer {
		if _, err := fmt.Fprintf(enc, "%d, %d, %.6f\n", i/cols, i%cols, v); err != nil {
			_ = enc.Close()
			_ = f.Close()
			return "", err
		}
	}

	if err := enc.Close(); err != nil {
		_ = f.Close()
		return "", err
	}
	return filename, f.Close()
}
