package plugin

/*

	The Adapter sits aside /fermata/
	Contains core interfaces for Plugin

*/

import (
	"time"

	Ft "github.com/corveau/fermata/types"
)

// ProgressCurve shapes the raw linear phase progress into the
// value the host animates the breathing orb with.
// Shape receives the phase label so a curve can treat
// inhale, hold and exhale segments differently.
type ProgressCurve interface {
	Shape(label string, progress float64) float64 // progress in, shaped progress out, both [0,1]
	Type() string                                 // Unique ID for the curve
}

// FeedbackSink is the capability interface for audio/haptic cues.
// Mute and haptics gating happens in the engine, never here:
// a sink that is called always sounds.
type FeedbackSink interface {
	PlayPhaseTone(cue *Ft.CueEvent) error // Sound the cue for an entered phase
	PlayCompletionCue() error             // Sound the end-of-session cue
	Vibrate(intensity float64) error      // Haptic pulse, intensity [0,1]
	Flush() error                         // Silence anything still sounding
	Close() error                         // Close the sink and release resources
	Type() string                         // ID for the sink
}

// ConfigStore persists the engine's semantic state key by key.
// The engine holds only in-memory state and calls Set on each change,
// so a fake store makes the whole engine deterministic under test.
type ConfigStore interface {
	Get(key string) ([]byte, error)     // Read one key, ErrKeyNotFound style errors pass through
	Set(key string, value []byte) error // Write one key
}

// OutputAdapter can be used to define a place for completed-session
// records to go, record-by-record or in batches if supported.
type OutputAdapter interface {
	WriteSession(rec *Ft.SessionRecord) error                     // Write singleton session data
	WriteBatch(recs []*Ft.SessionRecord) error                    // Write batches of sessions
	QueryRange(start, end time.Time) ([]*Ft.SessionRecord, error) // Time range query tool
	Flush() error                                                 // Flush any buffered data
	Close() error                                                 // Close the adapter and release resources
	Type() string                                                 // ID for output
}

// HostNotifier is the collaborator contract from engine to host.
// Calls arrive synchronously from inside phase advance and
// completion logic and must return quickly.
type HostNotifier interface {
	OnPhaseChanged(label string, index int)
	OnCycleReset()
	OnSessionComplete()
	OnPatternChanged(id string)
}
