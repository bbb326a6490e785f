package config

import (
	"cbf-map-go/internal/types"
)

type AppConfig struct {
	Port           int
	Endpoint       string
	Workers        int
	Transform      types.Transform
	RowDuplication int
	AngleSamples   int
	Debug          bool
	DebugFrames    int
	DebugWidth     int
	OutputDir      string
	RawLogEnabled  bool
	RawLogDir      string
	IngestLogEvery int
}
