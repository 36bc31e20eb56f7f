//go:build !nomidi

package plugin

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	Ft "github.com/corveau/fermata/types"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

type MIDISink struct {
	Port     drivers.Out
	Send     func(msg midi.Message) error
	WG       sync.WaitGroup
	Channel  uint8
	Root     uint8         // root note for the phase scale
	Scale    []uint8       // intervals above the root
	ScNotes  []uint8       // resolved scale notes, one per step
	ToneLen  time.Duration // how long a phase tone rings
	ArpDelay time.Duration // gap between completion arpeggio notes
}

func NewMIDISink(port int, root uint8, scale []uint8, toneMS, arpMS int) (*MIDISink, error) {
	out, err := midi.OutPort(port)
	if err != nil {
		slog.Error("Error opening MIDI port", slog.Int("port", port))
		return nil, fmt.Errorf("error opening MIDI port: %q", err)
	}

	send, err := midi.SendTo(out)
	if err != nil {
		slog.Error("Error sending to MIDI port", slog.Int("port", port))
		return nil, fmt.Errorf("error sending to MIDI port: %q", err)
	}

	initmidi := &MIDISink{
		Port:     out,
		Send:     send,
		WG:       sync.WaitGroup{},
		Channel:  0,
		Root:     root,
		Scale:    scale,
		ScNotes:  ScaleNotes(root, scale),
		ToneLen:  time.Duration(toneMS) * time.Millisecond,
		ArpDelay: time.Duration(arpMS) * time.Millisecond,
	}

	return initmidi, nil
}

// ScaleNotes resolves interval steps into absolute notes,
// walking up from the root one interval at a time
func ScaleNotes(root uint8, scale []uint8) []uint8 {
	notes := make([]uint8, 0, len(scale))
	note := root
	for _, interval := range scale {
		note += interval
		notes = append(notes, note)
	}
	if len(notes) == 0 {
		notes = []uint8{root}
	}
	return notes
}

// PhaseNote picks the scale note for a phase index,
// wrapping with modulo so any pattern length lands in the scale
func (ms *MIDISink) PhaseNote(index int) uint8 {
	if index < 0 {
		index = 0
	}
	return ms.ScNotes[index%len(ms.ScNotes)]
}

func (ms *MIDISink) SendNoteOnMIDI(midic, midin, midiv uint8) error {
	return ms.Send(midi.NoteOn(midic, midin, midiv))
}

func (ms *MIDISink) SendNoteOffMIDI(midic, midin uint8) error {
	return ms.Send(midi.NoteOff(midic, midin))
}

// PlayPhaseTone sounds the scale note for the phase being entered.
// The NoteOff trails on its own goroutine so the tick is never held up.
func (ms *MIDISink) PlayPhaseTone(cue *Ft.CueEvent) error {
	note := ms.PhaseNote(cue.Index)
	var velocity uint8 = 100

	ms.WG.Add(1)
	go func() {
		defer ms.WG.Done()
		if err := ms.SendNoteOnMIDI(ms.Channel, note, velocity); err != nil {
			slog.Error("NoteOn event failed", slog.String("label", cue.Label))
		}
		time.Sleep(ms.ToneLen)
		if err := ms.SendNoteOffMIDI(ms.Channel, note); err != nil {
			slog.Error("NoteOff event failed, attempting Flush")
			ms.Flush()
		}
	}()

	return nil
}

// PlayCompletionCue walks the whole scale upward as a closing arpeggio
func (ms *MIDISink) PlayCompletionCue() error {
	notes := make([]uint8, len(ms.ScNotes))
	copy(notes, ms.ScNotes)

	ms.WG.Add(1)
	go func() {
		defer ms.WG.Done()
		for _, note := range notes {
			if err := ms.SendNoteOnMIDI(ms.Channel, note, 90); err != nil {
				slog.Error("NoteOn event failed in completion cue")
				return
			}
			time.Sleep(ms.ArpDelay)
			if err := ms.SendNoteOffMIDI(ms.Channel, note); err != nil {
				slog.Error("NoteOff event failed in completion cue, attempting Flush")
				ms.Flush()
				return
			}
		}
	}()

	return nil
}

// Vibrate maps haptic intensity onto channel aftertouch
func (ms *MIDISink) Vibrate(intensity float64) error {
	if intensity < 0 {
		intensity = 0
	}
	if intensity > 1 {
		intensity = 1
	}
	return ms.Send(midi.AfterTouch(ms.Channel, uint8(intensity*127)))
}

func (ms *MIDISink) Flush() error {
	return ms.Send(midi.ControlChange(0, midi.AllNotesOff, midi.Off))
}

func (ms *MIDISink) Close() error {
	ms.WG.Wait()

	if ms.Port != nil {
		ms.Port.Close()
		midi.CloseDriver()
	}
	return nil
}

func (ms *MIDISink) Type() string { return "MIDI" }
