//go:build nomidi

package plugin

import (
	"fmt"

	Ft "github.com/corveau/fermata/types"
)

type MIDISink struct{}

func (ms *MIDISink) PlayPhaseTone(cue *Ft.CueEvent) error {
	return fmt.Errorf("MIDI support not compiled in this build")
}

func (ms *MIDISink) PlayCompletionCue() error {
	return fmt.Errorf("MIDI support not compiled in this build")
}

func (ms *MIDISink) Vibrate(intensity float64) error {
	return fmt.Errorf("MIDI support not compiled in this build")
}

func (ms *MIDISink) Flush() error { return nil }
func (ms *MIDISink) Close() error { return nil }
func (ms *MIDISink) Type() string { return "midi-disabled" }
