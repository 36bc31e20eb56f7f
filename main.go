package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	Md "github.com/corveau/fermata/display"
	Fe "github.com/corveau/fermata/engine"
	Fo "github.com/corveau/fermata/obvy"
	Fp "github.com/corveau/fermata/plugin"
)

func init() {
	User := Fe.FillEnvVar("USER")
	fmt.Printf("Fermata initializing for ... %s\n", User)
}

func main() {
	// Configuration file is optional, a bare process runs on defaults
	cf := Fe.DefaultConfig()
	if fileName := os.Getenv("FERMATA_CONFIG"); fileName != "" {
		loaded, err := Fe.LoadConfigFileName(fileName)
		if err != nil {
			slog.Error("Could not load config, using defaults",
				slog.String("file", fileName), slog.Any("Error", err))
		} else {
			cf = loaded
			slog.Info("Configuration loaded", slog.String("file", fileName))
		}
	}

	// Tracing backend is chosen by which environment is present
	switch {
	case os.Getenv("HONEYCOMB_API_KEY") != "":
		otelShutdown, err := Fo.InitOTelHNY()
		if err != nil {
			slog.Error("Problem starting OpenTelemetry", slog.Any("Error", err))
			panic("Failed to configure OpenTelemetry")
		}
		defer otelShutdown()
	case os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "":
		tp, err := Fo.InitOTelGRF()
		if err != nil {
			slog.Error("Problem starting OpenTelemetry", slog.Any("Error", err))
			panic("Failed to configure OpenTelemetry")
		}
		defer tp.Shutdown(context.Background())
	}

	store, err := Fp.NewBadgerOutput(cf.DBPath, 8)
	if err != nil {
		slog.Error("Problem opening database", slog.Any("Error", err))
		panic("Failed to open database")
	}
	defer store.Close()

	cat := Fe.DefaultCatalog()
	Fe.ImportPatterns(cat, cf)

	e := Fe.NewEngine(cat, store)
	e.Output = store
	e.Seed(cf)
	e.Restore()

	if cf.Sink == "midi" {
		if err := Md.InitMIDISink(e); err != nil {
			slog.Error("Problem starting MIDI sink, running silent",
				slog.Any("Error", err))
		}
	}
	if e.Sink == nil {
		e.Sink = Fp.NewSilentSink()
	}

	err = Md.StartFermata(cf, e)
	if err != nil {
		slog.Error("Problem starting BreathView", slog.Any("Error", err))
		panic("Failed to start breath view")
	}
}
