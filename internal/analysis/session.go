package analysis

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/rs/zerolog"

	"cbf-map-go/internal/types"
)

// Session is the analysis boundary exposed to the presentation layer.
// It owns at most one batch at a time: submitting a new batch tears
// down all units of the previous one and discards their unfinished
// work. The accumulation buffer and raster are only ever touched by
// the session's collector goroutine and by parameter changes, all
// serialized through one mutex.
type Session struct {
	decoder    Decoder
	newReducer func() Reducer
	log        zerolog.Logger

	mu         sync.Mutex
	params     types.NormalizationParams
	cancel     context.CancelFunc
	generation uint64

	frames    int
	completed int
	cols      int
	accum     []float64
	raster    *image.RGBA
	batchErr  error
	done      bool
}

func NewSession(decoder Decoder, newReducer func() Reducer, params types.NormalizationParams, log zerolog.Logger) *Session {
	return &Session{
		decoder:    decoder,
		newReducer: newReducer,
		params:     params.Normalized(),
		log:        log.With().Str("component", "analysis").Logger(),
	}
}

// AnalyzeBatch submits a batch for concurrent decode+reduce. The
// returned channel delivers exactly one PartialResult per frame in
// arbitrary completion order and is closed once the batch is finished
// or torn down. After the channel closes, Err reports any fatal batch
// error and Raster the final normalized composite.
func (s *Session) AnalyzeBatch(ctx context.Context, batch [][]byte) (<-chan types.PartialResult, error) {
	if len(batch) == 0 {
		return nil, ErrEmptyBatch
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	batchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.generation++
	gen := s.generation

	s.frames = len(batch)
	s.completed = 0
	s.cols = 0
	s.accum = nil
	s.raster = nil
	s.batchErr = nil
	s.done = false
	params := s.params
	s.mu.Unlock()

	workers := poolSize(len(batch))
	s.log.Info().Int("frames", len(batch)).Int("workers", workers).Msg("batch submitted")

	results := runPool(batchCtx, batch, s.decoder, s.newReducer, workers)
	out := make(chan types.PartialResult, len(batch))
	go s.collect(cancel, gen, newAssembler(len(batch), params.RowDuplication), results, out)
	return out, nil
}

// collect is the single consumer of worker results. It routes every
// mutation of the accumulation buffer and raster through the session
// mutex and forwards each result to the caller's stream.
func (s *Session) collect(cancel context.CancelFunc, gen uint64, asm *assembler, results <-chan types.PartialResult, out chan<- types.PartialResult) {
	defer close(out)
	defer cancel()

	for res := range results {
		s.mu.Lock()
		if s.generation != gen {
			// Superseded by a newer batch; discard everything.
			s.mu.Unlock()
			return
		}

		if err := asm.place(res); err != nil {
			s.batchErr = err
			s.done = true
			s.mu.Unlock()
			s.log.Error().Err(err).Msg("batch aborted")
			return
		}
		if res.Err == nil {
			if s.accum == nil {
				s.cols = res.Width / 2
				s.accum = make([]float64, s.cols*s.frames)
			}
			copy(s.accum[res.Index*s.cols:(res.Index+1)*s.cols], res.Raw)
		} else {
			s.log.Warn().Int("index", res.Index).Err(res.Err).Msg("frame skipped")
		}
		s.completed++
		s.raster = asm.raster
		complete := s.completed == s.frames
		s.mu.Unlock()

		// Buffered for the whole batch; never blocks.
		out <- res

		if complete {
			s.finalize(gen)
		}
	}
}

// finalize runs the global normalization pass once every frame has
// completed. A logarithmic transform over a buffer with non-positive
// values falls back to linear here; an explicit SetParams call
// surfaces that error to the caller instead.
func (s *Session) finalize(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return
	}
	s.done = true
	if s.accum == nil {
		// Every frame failed to decode; keep whatever preview exists.
		return
	}

	params := s.params
	raster, err := Normalize(s.accum, s.cols, params)
	if errors.Is(err, ErrNonPositiveValues) {
		s.log.Warn().Msg("logarithmic transform not applicable, falling back to linear")
		params.Transform = types.TransformLinear
		raster, err = Normalize(s.accum, s.cols, params)
	}
	if err != nil {
		s.batchErr = err
		return
	}
	s.raster = raster
}

// SetParams installs new normalization parameters and synchronously
// re-normalizes the retained accumulation buffer. On any error the
// previous parameters and raster stay installed: an update before the
// batch has completed fails with ErrIncomplete, and a logarithmic
// transform over non-positive values fails with ErrNonPositiveValues.
func (s *Session) SetParams(params types.NormalizationParams) (*image.RGBA, error) {
	params = params.Normalized()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.done || s.accum == nil {
		return nil, ErrIncomplete
	}

	raster, err := Normalize(s.accum, s.cols, params)
	if err != nil {
		return nil, err
	}
	s.params = params
	s.raster = raster
	return cloneRGBA(raster), nil
}

// Params returns the currently installed normalization parameters.
func (s *Session) Params() types.NormalizationParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// Raster returns a copy of the current composite raster, which may be
// a partially filled preview while the batch is still in flight. Nil
// until the first frame of the batch has completed.
func (s *Session) Raster() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneRGBA(s.raster)
}

// Accumulation returns a copy of the accumulation buffer and its
// column count. The buffer is only fully defined once the batch has
// completed; ok reports that.
func (s *Session) Accumulation() (buffer []float64, cols int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accum == nil {
		return nil, 0, false
	}
	buffer = make([]float64, len(s.accum))
	copy(buffer, s.accum)
	return buffer, s.cols, s.done && s.batchErr == nil
}

// Err reports the batch's fatal error, if any, once the result stream
// has closed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batchErr
}

// Progress reports completed and total frame counts for the current
// batch.
func (s *Session) Progress() (completed, frames int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed, s.frames
}

// RenderSingle decodes one file and renders it directly at the
// frame's exact dimensions. No pooling, no reduction, and no state
// shared with the batch path.
func (s *Session) RenderSingle(data []byte) (*image.RGBA, error) {
	frame, err := s.decoder.Decode(data)
	if err != nil {
		return nil, &DecodeError{Index: 0, Err: err}
	}
	raster := image.NewRGBA(image.Rect(0, 0, frame.Width(), frame.Height()))
	frame.WriteRGBA(raster.Pix)
	return raster, nil
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	if src == nil {
		return nil
	}
	dst := image.NewRGBA(src.Rect)
	copy(dst.Pix, src.Pix)
	return dst
}
