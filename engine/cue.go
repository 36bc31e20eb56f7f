package fermata

import (
	"time"

	Ft "github.com/corveau/fermata/types"
)

// NewCue builds the metadata for a phase-entry cue.
// There is no boolean, the existence of a CueEvent is always true;
// whether anything sounds it is the sink's concern.
func NewCue(label string, index int) *Ft.CueEvent {
	return &Ft.CueEvent{
		Label:     label,
		Index:     index,
		Timestamp: time.Now().UnixNano(),
	}
}
