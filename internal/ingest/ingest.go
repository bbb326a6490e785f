// Package ingest receives CBF frame payloads from a detector push
// stream and assembles them into complete runs for batch analysis.
package ingest

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"
	"github.com/rs/zerolog"
)

// Run is one acquisition's worth of frame payloads, ordered by
// image_id. Nil entries mark frames the stream never delivered.
type Run struct {
	Frames [][]byte
}

// RawRecorder taps every raw message before decoding, for replay.
type RawRecorder interface {
	Record(payload []byte) error
}

// Stream connects a PULL socket to the endpoint and returns a channel
// of completed runs. Expects CBOR messages shaped like:
//
//	{ "type": "start", "number_of_images": <int> }
//	{ "type": "image", "image_id": <int>, "data": <bytes> }
//	{ "type": "end" }
//
// A run is emitted when its end message arrives or every announced
// image has been received, whichever comes first. Malformed messages
// are skipped with rate-limited logging.
func Stream(ctx context.Context, endpoint string, logEvery int, recorder RawRecorder, log zerolog.Logger) (<-chan Run, error) {
	if logEvery < 1 {
		logEvery = 1
	}
	log = log.With().Str("component", "ingest").Logger()

	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return nil, err
	}
	if err := socket.Connect(endpoint); err != nil {
		_ = socket.Close()
		return nil, err
	}

	out := make(chan Run, 1)
	go func() {
		defer close(out)
		defer socket.Close()

		var collector *runCollector
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msg, err := socket.RecvBytes(0)
			if err != nil {
				logEveryN(logEvery, log, "recv error: %v", err)
				continue
			}
			if recorder != nil {
				if err := recorder.Record(msg); err != nil {
					log.Warn().Err(err).Msg("raw record failed")
				}
			}

			decoded, err := decodeMessage(msg)
			if err != nil {
				decodeFailures.Add(1)
				logEveryN(logEvery, log, "decode error: %v", err)
				continue
			}

			switch decoded.kind {
			case "start":
				collector = newRunCollector(decoded.count)
				log.Info().Int("frames", decoded.count).Msg("run started")
			case "image":
				if collector == nil {
					// Mid-run attach: size unknown, grow as needed.
					collector = newRunCollector(0)
				}
				collector.add(decoded.imageID, decoded.data)
				if collector.complete() {
					emit(ctx, out, collector, log)
					collector = nil
				}
			case "end":
				if collector != nil {
					emit(ctx, out, collector, log)
					collector = nil
				}
			default:
				logEveryN(logEvery, log, "ignoring message type %q", decoded.kind)
			}
		}
	}()

	return out, nil
}

func emit(ctx context.Context, out chan<- Run, collector *runCollector, log zerolog.Logger) {
	run := collector.run()
	if len(run.Frames) == 0 {
		return
	}
	log.Info().Int("frames", len(run.Frames)).Msg("run complete")
	select {
	case <-ctx.Done():
	case out <- run:
	}
}

type runCollector struct {
	expected int
	received int
	frames   [][]byte
}

func newRunCollector(expected int) *runCollector {
	frames := make([][]byte, 0, expected)
	return &runCollector{expected: expected, frames: frames}
}

func (c *runCollector) add(imageID int, data []byte) {
	if imageID < 0 {
		return
	}
	for len(c.frames) <= imageID {
		c.frames = append(c.frames, nil)
	}
	if c.frames[imageID] == nil {
		c.received++
	}
	c.frames[imageID] = data
}

func (c *runCollector) complete() bool {
	return c.expected > 0 && c.received >= c.expected
}

func (c *runCollector) run() Run {
	return Run{Frames: c.frames}
}

type message struct {
	kind    string
	imageID int
	count   int
	data    []byte
}

func decodeMessage(payload []byte) (message, error) {
	var raw map[string]any
	if err := cbor.Unmarshal(payload, &raw); err != nil {
		return message{}, err
	}

	kind, _ := raw["type"].(string)
	msg := message{kind: kind}

	switch kind {
	case "start":
		if v, ok := raw["number_of_images"]; ok {
			n, err := toInt(v)
			if err != nil {
				return message{}, fmt.Errorf("invalid number_of_images: %w", err)
			}
			msg.count = n
		}
	case "image":
		id, err := toInt(raw["image_id"])
		if err != nil {
			return message{}, fmt.Errorf("invalid image_id: %w", err)
		}
		msg.imageID = id
		data, ok := raw["data"].([]byte)
		if !ok || len(data) == 0 {
			return message{}, fmt.Errorf("image %d has no data", id)
		}
		msg.data = data
	}
	return msg, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case uint32:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("unsupported int type %T", v)
	}
}

var decodeFailures atomic.Uint64

// DecodeFailures reports the number of messages dropped by decoding.
func DecodeFailures() uint64 {
	return decodeFailures.Load()
}

var logCounter atomic.Uint64

func logEveryN(n int, log zerolog.Logger, format string, args ...any) {
	if logCounter.Add(1)%uint64(n) == 0 {
		log.Warn().Msgf(format, args...)
	}
}
