//go:build !nomidi

package fermata

import (
	"log/slog"
	"strconv"
	"strings"

	Fe "github.com/corveau/fermata/engine"
	Fp "github.com/corveau/fermata/plugin"
)

// InitMIDISink wires a MIDI feedback sink onto the engine.
// Every knob comes from the environment so a headless build can
// still reach a hardware or virtual synth.
func InitMIDISink(e *Fe.Engine) error {
	midiPort := Fe.FillEnvVarInt("FERMATA_PLUGIN_MIDI_PORT", 0)
	midiRoot := uint8(Fe.FillEnvVarInt("FERMATA_PLUGIN_MIDI_ROOT", 60))
	midiTone := Fe.FillEnvVarInt("FERMATA_PLUGIN_MIDI_TONE_MS", 300)
	midiArpD := Fe.FillEnvVarInt("FERMATA_PLUGIN_MIDI_ARP_DELAY", 120)
	midiScale := Fe.FillEnvVar("FERMATA_PLUGIN_MIDI_SCALE")

	slog.Info("Configuration found:",
		slog.Int("Port", midiPort),
		slog.Any("Root", midiRoot),
		slog.Int("ToneMS", midiTone),
		slog.Int("ArpDelay", midiArpD),
		slog.String("Scale", midiScale),
	)

	var scaleI []uint8
	var scaleS []string
	scaleS = strings.Split(midiScale, ",")
	for _, s := range scaleS {
		interval, err := strconv.Atoi(s)
		if err != nil {
			slog.Error("Could not read MIDI_SCALE value, using default", slog.Any("error", err), slog.String("value", s))
			scaleI = []uint8{0, 4, 3, 5}
			break
		}
		scaleI = append(scaleI, uint8(interval))
	}

	sink, err := Fp.NewMIDISink(midiPort, midiRoot, scaleI, midiTone, midiArpD)
	if err != nil {
		slog.Error("Failed to create sink", slog.Any("error", err))
		return err
	}

	e.Sink = sink
	slog.Info("MIDI Sink Enabled", slog.String("type", sink.Type()))
	return nil
}
