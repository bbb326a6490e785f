package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"

	"cbf-map-go/internal/output"
)

func main() {
	var (
		path    = flag.String("path", "", "Path to a raw ingest log (.zst)")
		limit   = flag.Int("limit", 5, "Max number of image records to summarize")
		extract = flag.String("extract", "", "Directory to extract CBF payloads into (optional)")
	)
	flag.Parse()

	if *path == "" {
		log.Fatal("missing -path")
	}
	if *extract != "" {
		if err := os.MkdirAll(*extract, 0o755); err != nil {
			log.Fatalf("create extract dir: %v", err)
		}
	}

	var recordCount, imageCount, startCount, endCount int
	err := output.ReadRawLog(*path, func(record output.RawLogRecord) error {
		recordCount++

		var payload map[string]any
		if err := cbor.Unmarshal(record.Payload, &payload); err != nil {
			log.Printf("record %d: decode error: %v", recordCount, err)
			return nil
		}

		msgType, _ := payload["type"].(string)
		switch msgType {
		case "start":
			startCount++
			fmt.Printf("start @ %s: number_of_images=%v\n", record.Timestamp.Format("15:04:05.000"), payload["number_of_images"])
		case "end":
			endCount++
		case "image":
			imageCount++
			data, _ := payload["data"].([]byte)
			if imageCount <= *limit {
				fmt.Printf("image @ %s: image_id=%v size=%d\n", record.Timestamp.Format("15:04:05.000"), payload["image_id"], len(data))
			}
			if *extract != "" && len(data) > 0 {
				name := filepath.Join(*extract, fmt.Sprintf("frame_%v.cbf", payload["image_id"]))
				if err := os.WriteFile(name, data, 0o644); err != nil {
					return fmt.Errorf("extract %s: %w", name, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("read rawlog: %v", err)
	}

	fmt.Printf("summary: records=%d start=%d image=%d end=%d\n", recordCount, startCount, imageCount, endCount)
}
