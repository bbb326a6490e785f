package output

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const rawLogMagic = "CBFRAW1\n"

// RawLogWriter appends timestamped raw ingest payloads to a
// zstd-compressed log file. Safe for concurrent use.
type RawLogWriter struct {
	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
}

func NewRawLogWriter(outputDir, prefix string) (*RawLogWriter, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}
	filename := filepath.Join(outputDir, fmt.Sprintf("%s_%s.zst", Timestamp(), prefix))
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	if _, err := f.WriteString(rawLogMagic); err != nil {
		_ = f.Close()
		return nil, err
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &RawLogWriter{f: f, enc: enc}, nil
}

func (r *RawLogWriter) Record(payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enc == nil {
		return fmt.Errorf("raw log writer is closed")
	}
	var header [12]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(time.Now().UnixNano()))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(payload)))
	if _, err := r.enc.Write(header[:]); err != nil {
		return err
	}
	if _, err := r.enc.Write(payload); err != nil {
		return err
	}
	return nil
}

func (r *RawLogWriter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.enc == nil {
		return nil
	}
	encErr := r.enc.Close()
	r.enc = nil
	closeErr := r.f.Close()
	if encErr != nil {
		return encErr
	}
	return closeErr
}

// RawLogRecord is one replayed ingest payload.
type RawLogRecord struct {
	Timestamp time.Time
	Payload   []byte
}

// ReadRawLog replays a raw log, calling fn for every record.
func ReadRawLog(path string, fn func(RawLogRecord) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	magic := make([]byte, len(rawLogMagic))
	if _, err := io.ReadFull(f, magic); err != nil {
		return fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != rawLogMagic {
		return fmt.Errorf("unexpected rawlog magic %q", string(magic))
	}

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	var header [12]byte
	for {
		if _, err := io.ReadFull(dec, header[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		nanos := binary.LittleEndian.Uint64(header[:8])
		size := binary.LittleEndian.Uint32(header[8:12])
		payload := make([]byte, size)
		if _, err := io.ReadFull(dec, payload); err != nil {
			return err
		}
		if err := fn(RawLogRecord{
			Timestamp: time.Unix(0, int64(nanos)),
			Payload:   payload,
		}); err != nil {
			return err
		}
	}
}
