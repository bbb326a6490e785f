package analysis

import (
	"context"
	"runtime"
	"sync"

	"cbf-map-go/internal/types"
)

// poolSize derives the number of concurrent units from host
// parallelism, capped by the batch size. Never spawns more units than
// frames to process.
func poolSize(batchSize int) int {
	n := runtime.GOMAXPROCS(0)
	if n > batchSize {
		n = batchSize
	}
	if n < 1 {
		n = 1
	}
	return n
}

// runPool fans a batch out over a fixed number of units. Frame i is
// assigned to unit i mod workers; each unit works through its frames
// strictly sequentially and emits one PartialResult per frame. The
// results channel is buffered for the whole batch so a slow consumer
// never blocks a unit, and is closed once every unit has finished.
// Cancelling ctx stops every unit at its next frame boundary.
func runPool(ctx context.Context, batch [][]byte, decoder Decoder, newReducer func() Reducer, workers int) <-chan types.PartialResult {
	results := make(chan types.PartialResult, len(batch))

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(unit int) {
			defer wg.Done()
			for i := unit; i < len(batch); i += workers {
				select {
				case <-ctx.Done():
					return
				default:
				}
				results <- processFrame(i, batch[i], decoder, newReducer)
			}
		}(w)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// processFrame runs the decode+reduce sequence for a single frame.
// A decode failure is reported on the result itself so the batch can
// carry on without that frame.
func processFrame(index int, data []byte, decoder Decoder, newReducer func() Reducer) types.PartialResult {
	frame, err := decoder.Decode(data)
	if err != nil {
		return types.PartialResult{Index: index, Err: &DecodeError{Index: index, Err: err}}
	}

	reducer := newReducer()
	defer reducer.Release()
	reducer.Accumulate(frame)

	raw := reducer.RawValues()
	rawCopy := make([]float64, len(raw))
	copy(rawCopy, raw)

	scaled := reducer.ScaledPreview()
	scaledCopy := make([]byte, len(scaled))
	copy(scaledCopy, scaled)

	return types.PartialResult{
		Index:  index,
		Width:  frame.Width(),
		Raw:    rawCopy,
		Scaled: scaledCopy,
	}
}
