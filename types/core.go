package types

/*

	These are the "immutable" core types of Fermata,
	provided for cross-package use (e.g. Plugins) and testing.

	There are no functions defined here.
	Struct constructors are housed in their own packages.
	Methods taking these types should create local aliases,
	for example: type SessionRecords []Ft.SessionRecord

*/

import "time"

// The CueEvent is the building block of feedback.
// Every phase transition produces one, whether or not
// any sink is configured to sound it.
type CueEvent struct {
	Label     string // phase label entering ("Inhale", "Hold", ...)
	Index     int    // phase index entering
	Timestamp int64  // Unix nanosecond timestamp
}

// PhaseDef is one named segment of a breathing cycle
// paired with its relative duration weight.
type PhaseDef struct {
	Label string
	Ratio float64
}

// SessionRecord is the archival record of one completed session.
// Minutes is always the configured session length, never a partial.
type SessionRecord struct {
	Pattern   string // pattern id in use when the session completed
	Minutes   int
	Completed time.Time // This is a Primary Key
}

// ZenState tracks the idle-fade sub-state machine.
// The engine only flags targets and timing,
// the animation itself belongs to the host.
type ZenState int

const (
	ZenVisible ZenState = iota // opacity target 1, no fade pending
	ZenFading                  // fade armed and fired, opacity target 0
	ZenHidden                  // fade window elapsed
)

// These glyphs mark the four box-breathing corners in the UI.
// Mostly these are unused constants, but here for reference.
const (
	inhale  = "◜" // U+25DC rising
	holdIn  = "◝" // U+25DD held at the top
	exhale  = "◞" // U+25DE falling
	holdOut = "◟" // U+25DF held at the bottom
)
