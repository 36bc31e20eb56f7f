package plugin

import (
	Ft "github.com/corveau/fermata/types"
)

// SilentSink is the default FeedbackSink: every cue lands, nothing sounds.
// It keeps the engine's cue path identical whether or not a real
// sink is configured.
type SilentSink struct{}

func NewSilentSink() *SilentSink {
	return &SilentSink{}
}

func (ss *SilentSink) PlayPhaseTone(cue *Ft.CueEvent) error { return nil }
func (ss *SilentSink) PlayCompletionCue() error             { return nil }
func (ss *SilentSink) Vibrate(intensity float64) error      { return nil }
func (ss *SilentSink) Flush() error                         { return nil }
func (ss *SilentSink) Close() error                         { return nil }
func (ss *SilentSink) Type() string                         { return "SILENT" }
