package plugin_test

import (
	"testing"
	"time"

	Fp "github.com/corveau/fermata/plugin"
	Ft "github.com/corveau/fermata/types"
)

func TestSilentSink(t *testing.T) {
	sink := Fp.NewSilentSink()

	t.Run("Swallows every cue without error", func(t *testing.T) {
		cue := &Ft.CueEvent{
			Label:     "Inhale",
			Index:     0,
			Timestamp: time.Now().UnixNano(),
		}

		assertError(t, sink.PlayPhaseTone(cue), nil)
		assertError(t, sink.PlayCompletionCue(), nil)
		assertError(t, sink.Vibrate(0.5), nil)
		assertError(t, sink.Flush(), nil)
		assertError(t, sink.Close(), nil)
	})

	t.Run("Identifies itself", func(t *testing.T) {
		assertStringContains(t, sink.Type(), "SILENT")
	})
}
