package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"cbf-map-go/internal/analysis"
	"cbf-map-go/internal/cbf"
	"cbf-map-go/internal/config"
	"cbf-map-go/internal/ingest"
	"cbf-map-go/internal/output"
	"cbf-map-go/internal/reduce"
	"cbf-map-go/internal/server"
	"cbf-map-go/internal/simulator"
	"cbf-map-go/internal/types"
)

type metrics struct {
	batchesTotal    atomic.Uint64
	framesProcessed atomic.Uint64
	frameErrors     atomic.Uint64
	batchErrors     atomic.Uint64
	rowsBroadcast   atomic.Uint64
	rastersTotal    atomic.Uint64
	outputWriteOK   atomic.Uint64
	outputWriteErr  atomic.Uint64
	reduceNanos     atomic.Uint64
}

func (m *metrics) snapshot() map[string]any {
	return map[string]any{
		"batches_total":          m.batchesTotal.Load(),
		"frames_processed_total": m.framesProcessed.Load(),
		"frame_errors_total":     m.frameErrors.Load(),
		"batch_errors_total":     m.batchErrors.Load(),
		"rows_broadcast_total":   m.rowsBroadcast.Load(),
		"rasters_total":          m.rastersTotal.Load(),
		"output_write_ok_total":  m.outputWriteOK.Load(),
		"output_write_err_total": m.outputWriteErr.Load(),
		"reduce_nanos_total":     m.reduceNanos.Load(),
		"ingest_decode_failures": ingest.DecodeFailures(),
	}
}

func main() {
	var (
		port           = flag.Int("port", 8888, "HTTP port for the web UI")
		endpoint       = flag.String("endpoint", "tcp://localhost:31001", "ZMQ endpoint of the detector push stream")
		transformName  = flag.String("transform", "linear", "Normalization transform: linear, circular or logarithmic")
		rowDuplication = flag.Int("row-dup", 1, "Vertical duplication factor per composite row")
		angleSamples   = flag.Int("angle-samples", 720, "Polar angle samples per frame reduction")
		debug          = flag.Bool("debug", false, "Analyze simulated frames instead of a detector stream")
		debugFrames    = flag.Int("debug-frames", 64, "Number of simulated frames per debug batch")
		debugWidth     = flag.Int("debug-width", 256, "Simulated frame width and height in pixels")
		outputDir      = flag.String("output-dir", "output", "Directory for composite and profile outputs")
		rawLogEnabled  = flag.Bool("raw-log", false, "Write raw ingest messages to disk")
		rawLogDir      = flag.String("raw-log-dir", "rawlog", "Directory for raw ingest logs")
		ingestLogEvery = flag.Int("ingest-log-every", 100, "Log every Nth ingest error")
		verbose        = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(level).With().Timestamp().Logger()

	transform, err := types.ParseTransform(*transformName)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid transform")
	}

	cfg := config.AppConfig{
		Port:           *port,
		Endpoint:       *endpoint,
		Workers:        runtime.GOMAXPROCS(0),
		Transform:      transform,
		RowDuplication: *rowDuplication,
		AngleSamples:   *angleSamples,
		Debug:          *debug,
		DebugFrames:    *debugFrames,
		DebugWidth:     *debugWidth,
		OutputDir:      *outputDir,
		RawLogEnabled:  *rawLogEnabled,
		RawLogDir:      *rawLogDir,
		IngestLogEvery: *ingestLogEvery,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	params := types.NormalizationParams{
		Transform:      cfg.Transform,
		RowDuplication: cfg.RowDuplication,
	}
	session := analysis.NewSession(cbf.Decoder{}, reduce.Factory(cfg.AngleSamples), params, log)

	var m metrics
	uiMessages := make(chan any, 64)

	var runs <-chan ingest.Run
	if cfg.Debug {
		out := make(chan ingest.Run, 1)
		runs = out
		go func() {
			defer close(out)
			log.Info().Int("frames", cfg.DebugFrames).Int("width", cfg.DebugWidth).Msg("simulating batch")
			batch := simulator.Batch(cfg.DebugFrames, cfg.DebugWidth, cfg.DebugWidth)
			select {
			case <-ctx.Done():
			case out <- ingest.Run{Frames: batch}:
			}
		}()
	} else {
		var recorder ingest.RawRecorder
		if cfg.RawLogEnabled {
			writer, err := output.NewRawLogWriter(cfg.RawLogDir, "raw_ingest")
			if err != nil {
				log.Fatal().Err(err).Msg("failed to start raw log")
			}
			recorder = writer
			go func() {
				<-ctx.Done()
				if err := writer.Close(); err != nil {
					log.Error().Err(err).Msg("raw log close failed")
				}
			}()
		}
		stream, err := ingest.Stream(ctx, cfg.Endpoint, cfg.IngestLogEvery, recorder, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start ingest")
		}
		runs = stream
	}

	go func() {
		for run := range runs {
			analyzeBatch(ctx, session, run.Frames, &m, uiMessages, cfg, log)
		}
	}()

	statusFn := func() map[string]any {
		completed, frames := session.Progress()
		payload := map[string]any{
			"frames_completed": completed,
			"frames_expected":  frames,
			"transform":        session.Params().Transform.String(),
			"metrics":          m.snapshot(),
		}
		if cfg.Debug {
			payload["source"] = "simulator"
		} else {
			payload["source"] = cfg.Endpoint
		}
		return payload
	}

	snapshotFn := func() any {
		raster := session.Raster()
		if raster == nil {
			return nil
		}
		return types.UIRaster{
			Type:   "raster",
			Width:  raster.Rect.Dx(),
			Height: raster.Rect.Dy(),
			RGBA:   raster.Pix,
		}
	}

	configFn := func() any {
		p := session.Params()
		return types.UIConfig{
			Type:           "config",
			Transform:      p.Transform.String(),
			RowDuplication: p.RowDuplication,
			Workers:        cfg.Workers,
		}
	}

	paramsFn := func(req server.ParamsRequest) error {
		transform, err := types.ParseTransform(req.Transform)
		if err != nil {
			return err
		}
		raster, err := session.SetParams(types.NormalizationParams{
			Transform:      transform,
			RowDuplication: req.RowDuplication,
		})
		if err != nil {
			return err
		}
		m.rastersTotal.Add(1)
		select {
		case uiMessages <- types.UIRaster{
			Type:   "raster",
			Width:  raster.Rect.Dx(),
			Height: raster.Rect.Dy(),
			RGBA:   raster.Pix,
		}:
		default:
		}
		return nil
	}

	log.Info().Str("url", fmt.Sprintf("http://localhost:%d", cfg.Port)).Msg("starting web UI")
	if err := server.Run(ctx, cfg, log, uiMessages, statusFn, snapshotFn, configFn, paramsFn); err != nil {
		log.Info().Err(err).Msg("server stopped")
	}
}

// analyzeBatch runs one batch through the session, forwarding
// incremental rows to UI clients and writing outputs on completion.
func analyzeBatch(ctx context.Context, session *analysis.Session, batch [][]byte, m *metrics, uiMessages chan<- any, cfg config.AppConfig, log zerolog.Logger) {
	m.batchesTotal.Add(1)
	start := time.Now()

	stream, err := session.AnalyzeBatch(ctx, batch)
	if err != nil {
		m.batchErrors.Add(1)
		log.Error().Err(err).Msg("batch rejected")
		return
	}

	for res := range stream {
		m.framesProcessed.Add(1)
		if res.Err != nil {
			m.frameErrors.Add(1)
			select {
			case uiMessages <- types.UIError{Type: "error", Index: res.Index, Message: res.Err.Error()}:
			default:
			}
			continue
		}
		m.rowsBroadcast.Add(1)
		select {
		case uiMessages <- types.UIRow{Type: "row", Index: res.Index, Width: res.Width, RGBA: res.Scaled}:
		default:
		}
	}
	m.reduceNanos.Add(uint64(time.Since(start).Nanoseconds()))

	if err := session.Err(); err != nil {
		m.batchErrors.Add(1)
		log.Error().Err(err).Msg("batch failed")
		select {
		case uiMessages <- types.UIError{Type: "error", Message: err.Error()}:
		default:
		}
		return
	}

	raster := session.Raster()
	if raster == nil {
		return
	}
	m.rastersTotal.Add(1)
	select {
	case uiMessages <- types.UIRaster{
		Type:   "raster",
		Width:  raster.Rect.Dx(),
		Height: raster.Rect.Dy(),
		RGBA:   raster.Pix,
	}:
	default:
	}

	timestamp := output.Timestamp()
	if _, err := output.WriteRasterPNG(cfg.OutputDir, timestamp, raster); err != nil {
		m.outputWriteErr.Add(1)
		log.Error().Err(err).Msg("composite write failed")
	} else {
		m.outputWriteOK.Add(1)
	}
	if buffer, cols, ok := session.Accumulation(); ok {
		if _, err := output.WriteProfiles(cfg.OutputDir, timestamp, cols, buffer); err != nil {
			m.outputWriteErr.Add(1)
			log.Error().Err(err).Msg("profile write failed")
		} else {
			m.outputWriteOK.Add(1)
		}
	}
	log.Info().Int("frames", len(batch)).Dur("elapsed", time.Since(start)).Msg("batch complete")
}
