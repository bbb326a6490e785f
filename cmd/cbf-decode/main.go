package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/rs/zerolog"

	"cbf-map-go/internal/analysis"
	"cbf-map-go/internal/cbf"
	"cbf-map-go/internal/reduce"
	"cbf-map-go/internal/types"
)

func main() {
	var (
		out            = flag.String("o", "composite.png", "Output PNG path")
		transformName  = flag.String("transform", "linear", "Normalization transform: linear, circular or logarithmic")
		rowDuplication = flag.Int("row-dup", 1, "Vertical duplication factor per composite row")
		angleSamples   = flag.Int("angle-samples", 720, "Polar angle samples per frame reduction")
		quiet          = flag.Bool("q", false, "Suppress progress output")
	)
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: cbf-decode [flags] <file.cbf> [more.cbf ...]")
		os.Exit(1)
	}

	level := zerolog.InfoLevel
	if *quiet {
		level = zerolog.ErrorLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(level).With().Timestamp().Logger()

	transform, err := types.ParseTransform(*transformName)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid transform")
	}
	params := types.NormalizationParams{Transform: transform, RowDuplication: *rowDuplication}
	session := analysis.NewSession(cbf.Decoder{}, reduce.Factory(*angleSamples), params, log)

	var raster *image.RGBA
	if len(files) == 1 {
		raster = renderSingle(session, files[0], log)
	} else {
		raster = analyzeBatch(session, files, log)
	}

	if err := writePNG(*out, raster); err != nil {
		log.Fatal().Err(err).Msg("write output")
	}
	log.Info().Str("path", *out).
		Int("width", raster.Rect.Dx()).Int("height", raster.Rect.Dy()).
		Msg("wrote raster")
}

func renderSingle(session *analysis.Session, path string, log zerolog.Logger) *image.RGBA {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatal().Err(err).Msg("read input")
	}
	raster, err := session.RenderSingle(data)
	if err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("render failed")
	}
	return raster
}

func analyzeBatch(session *analysis.Session, files []string, log zerolog.Logger) *image.RGBA {
	batch := make([][]byte, len(files))
	for i, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatal().Err(err).Str("file", path).Msg("read input")
		}
		batch[i] = data
	}

	stream, err := session.AnalyzeBatch(context.Background(), batch)
	if err != nil {
		log.Fatal().Err(err).Msg("batch rejected")
	}
	for res := range stream {
		if res.Err != nil {
			log.Warn().Int("index", res.Index).Str("file", files[res.Index]).Err(res.Err).Msg("frame skipped")
			continue
		}
		log.Debug().Int("index", res.Index).Str("file", files[res.Index]).Msg("frame reduced")
	}
	if err := session.Err(); err != nil {
		log.Fatal().Err(err).Msg("batch failed")
	}

	raster := session.Raster()
	if raster == nil {
		log.Fatal().Msg("no frame decoded successfully")
	}
	return raster
}

func writePNG(path string, raster *image.RGBA) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, raster); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
