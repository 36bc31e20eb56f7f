package fermata_test

import (
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	Fe "github.com/corveau/fermata/engine"
	Ft "github.com/corveau/fermata/types"
)

func TestNewEngine(t *testing.T) {
	e, _, _, _ := makeTestEngine()

	t.Run("Starts idle on the default pattern", func(t *testing.T) {
		if e.Running {
			t.Error("new engine is running, want idle")
		}
		assertString(t, e.Pattern.ID, "box")
		assertString(t, e.Label, "Box Breathing")
		assertInt(t, e.Remaining, 600)
		assertString(t, e.Countdown, "10:00")
		assertFloat(t, e.ZenOpacity, 1.0)
	})
}

func TestEngine_Start(t *testing.T) {
	t0 := time.Now()

	t.Run("Enters phase zero immediately", func(t *testing.T) {
		e, _, sink, notify := makeTestEngine()
		e.Start(t0)

		if !e.Running {
			t.Fatal("engine not running after Start")
		}
		assertInt(t, e.PhaseIndex, 0)
		assertString(t, e.Label, "Inhale")
		assertInt(t, e.Remaining, 600)
		assertInt(t, len(notify.Phases), 1)
		assertString(t, notify.Phases[0], "Inhale")
		assertInt(t, len(sink.Tones), 1)

		// the very first phase-zero entry is not a cycle wrap
		assertInt(t, notify.Resets, 0)
	})

	t.Run("Start while running is a no-op", func(t *testing.T) {
		e, _, _, notify := makeTestEngine()
		e.Start(t0)
		end := e.SessionEnd

		e.Start(t0.Add(5 * time.Second))

		if !e.SessionEnd.Equal(end) {
			t.Errorf("SessionEnd moved to %v, want %v", e.SessionEnd, end)
		}
		assertInt(t, len(notify.Phases), 1)
	})
}

func TestEngine_Advance(t *testing.T) {
	t0 := time.Now()

	t.Run("Progress climbs within a phase", func(t *testing.T) {
		e, _, _, _ := makeTestEngine()
		e.SetPattern("478", t0)
		e.Start(t0)

		e.Advance(t0.Add(2 * time.Second))

		assertFloat(t, e.PhaseProgress, 0.5)
		assertFloat(t, e.CycleProgress, 2.0/19.0)
		assertString(t, e.Countdown, "2")
		assertInt(t, e.Remaining, 598)
	})

	t.Run("Transition lands progress at zero exactly", func(t *testing.T) {
		e, _, _, notify := makeTestEngine()
		e.SetPattern("478", t0)
		e.Start(t0)

		e.Advance(t0.Add(4 * time.Second))

		assertInt(t, e.PhaseIndex, 1)
		assertString(t, e.Label, "Hold")
		assertFloat(t, e.PhaseProgress, 0)
		assertFloat(t, e.CycleProgress, 4.0/19.0)
		assertString(t, notify.Phases[len(notify.Phases)-1], "Hold")
	})

	t.Run("Cycle progress never decreases within a cycle", func(t *testing.T) {
		e, _, _, _ := makeTestEngine()
		e.SetPattern("478", t0)
		e.Start(t0)

		last := 0.0
		for s := 1; s <= 18; s++ {
			e.Advance(t0.Add(time.Duration(s) * time.Second))
			if e.CycleProgress < last {
				t.Fatalf("CycleProgress fell from %v to %v at second %d", last, e.CycleProgress, s)
			}
			last = e.CycleProgress
		}
	})

	t.Run("Wrap snaps cycle progress back and fires the pulse", func(t *testing.T) {
		e, _, _, notify := makeTestEngine()
		e.PulseLen = 10 * time.Millisecond
		e.SetPattern("478", t0)
		e.Start(t0)

		e.Advance(t0.Add(4 * time.Second))
		e.Advance(t0.Add(11 * time.Second))
		e.Advance(t0.Add(19 * time.Second))

		assertInt(t, e.PhaseIndex, 0)
		assertFloat(t, e.CycleProgress, 0)
		assertInt(t, notify.Resets, 1)

		snap := e.Snapshot(t0.Add(19 * time.Second))
		if !snap.CycleReset {
			t.Error("CycleReset not raised at wrap")
		}

		// the pulse clears itself shortly after
		time.Sleep(50 * time.Millisecond)
		snap = e.Snapshot(t0.Add(19 * time.Second))
		if snap.CycleReset {
			t.Error("CycleReset still raised after the pulse window")
		}
	})

	t.Run("Advance while idle changes nothing", func(t *testing.T) {
		e, _, _, notify := makeTestEngine()
		e.Advance(t0.Add(time.Hour))

		if e.Running {
			t.Error("idle engine started itself")
		}
		assertInt(t, e.PhaseIndex, 0)
		assertInt(t, len(notify.Phases), 0)
	})
}

func TestEngine_Completion(t *testing.T) {
	t0 := time.Now()

	t.Run("Fires exactly once and credits full minutes", func(t *testing.T) {
		e, store, sink, notify := makeTestEngine()
		output := &fakeOutput{}
		e.Output = output
		e.SessionMinutes = 1
		e.Start(t0)

		e.Advance(t0.Add(30 * time.Second))
		if !e.Running {
			t.Fatal("session ended early")
		}

		e.Advance(t0.Add(60 * time.Second))

		if e.Running {
			t.Error("engine still running after completion")
		}
		assertInt(t, notify.Completes, 1)
		assertInt(t, sink.Completions, 1)
		assertInt(t, e.Stats.Days[Fe.DayKey(t0.Add(60*time.Second))], 1)
		assertInt(t, len(output.Records), 1)
		assertInt(t, output.Records[0].Minutes, 1)
		assertString(t, output.Records[0].Pattern, "box")

		if _, err := store.Get("stats"); err != nil {
			t.Errorf("ledger not persisted: %v", err)
		}

		// once stopped, nothing re-fires
		e.Advance(t0.Add(61 * time.Second))
		e.Stop(t0.Add(62 * time.Second))
		assertInt(t, notify.Completes, 1)
		assertInt(t, sink.Completions, 1)
	})
}

func TestEngine_Stop(t *testing.T) {
	t0 := time.Now()

	t.Run("Resets every field to its idle value", func(t *testing.T) {
		e, _, _, _ := makeTestEngine()
		e.Start(t0)
		e.Advance(t0.Add(2 * time.Second))

		e.Stop(t0.Add(2 * time.Second))

		if e.Running {
			t.Error("engine still running after Stop")
		}
		assertInt(t, e.PhaseIndex, 0)
		assertFloat(t, e.PhaseProgress, 0)
		assertFloat(t, e.CycleProgress, 0)
		assertInt(t, e.Remaining, 600)
		assertString(t, e.Countdown, "10:00")
		assertString(t, e.Label, "Box Breathing")
		assertFloat(t, e.ZenOpacity, 1.0)

		snap := e.Snapshot(t0.Add(2 * time.Second))
		if snap.ZenState != Ft.ZenVisible {
			t.Errorf("ZenState = %v, want visible", snap.ZenState)
		}
	})
}

func TestEngine_Toggle(t *testing.T) {
	t0 := time.Now()
	e, _, _, _ := makeTestEngine()

	t.Run("Starts when idle", func(t *testing.T) {
		e.Toggle(t0)
		if !e.Running {
			t.Error("Toggle did not start the engine")
		}
	})

	t.Run("Stops when running", func(t *testing.T) {
		e.Toggle(t0.Add(time.Second))
		if e.Running {
			t.Error("Toggle did not stop the engine")
		}
	})
}

func TestEngine_SetPattern(t *testing.T) {
	t0 := time.Now()

	t.Run("Switching while running stops the session", func(t *testing.T) {
		e, store, _, notify := makeTestEngine()
		e.Start(t0)

		e.SetPattern("478", t0.Add(5*time.Second))

		if e.Running {
			t.Error("engine still running after pattern switch")
		}
		assertString(t, e.Pattern.ID, "478")
		assertString(t, e.Label, "4-7-8 Relax")
		assertString(t, notify.Patterns[0], "478")

		raw, err := store.Get("pattern")
		assertError(t, err, nil)
		assertString(t, string(raw), "478")
	})

	t.Run("Unknown id falls back to the default", func(t *testing.T) {
		e, _, _, _ := makeTestEngine()
		e.SetPattern("craquelure", t0)
		assertString(t, e.Pattern.ID, "box")
	})

	t.Run("Selection haptic fires when enabled", func(t *testing.T) {
		e, _, sink, _ := makeTestEngine()
		e.SetPattern("coherent", t0)
		assertInt(t, len(sink.Vibes), 1)
	})
}

func TestEngine_SetBaseDuration(t *testing.T) {
	t0 := time.Now()

	t.Run("Preserves fractional progress mid-phase", func(t *testing.T) {
		e, store, _, _ := makeTestEngine()
		e.Start(t0)
		e.Advance(t0.Add(2 * time.Second))
		assertFloat(t, e.PhaseProgress, 0.5)

		e.SetBaseDuration(8, t0.Add(2*time.Second))
		e.Advance(t0.Add(2 * time.Second))

		// halfway stays halfway, only the clock stretches
		assertInt(t, e.PhaseIndex, 0)
		assertFloat(t, e.PhaseProgress, 0.5)
		assertFloat(t, e.BaseDuration, 8)

		// the stretched phase ends 8s after its rescaled start
		e.Advance(t0.Add(6 * time.Second))
		assertInt(t, e.PhaseIndex, 1)

		raw, err := store.Get("base_duration")
		assertError(t, err, nil)
		assertString(t, string(raw), "8")
	})

	t.Run("Rejects a non-positive duration", func(t *testing.T) {
		e, _, _, _ := makeTestEngine()
		e.SetBaseDuration(0, t0)
		assertFloat(t, e.BaseDuration, 4.0)
		e.SetBaseDuration(-3, t0)
		assertFloat(t, e.BaseDuration, 4.0)
	})
}

func TestEngine_AdjustSessionMinutes(t *testing.T) {
	t0 := time.Now()

	t.Run("Clamps to one minute while idle", func(t *testing.T) {
		e, _, _, _ := makeTestEngine()
		e.AdjustSessionMinutes(-999, t0)

		assertInt(t, e.SessionMinutes, 1)
		assertInt(t, e.Remaining, 60)
		assertString(t, e.Countdown, "01:00")
	})

	t.Run("Never lands the end closer than ten seconds", func(t *testing.T) {
		e, _, _, _ := makeTestEngine()
		e.Start(t0)

		e.AdjustSessionMinutes(-999, t0.Add(5*time.Second))

		assertInt(t, e.SessionMinutes, 1)
		assertInt(t, e.Remaining, 10)
		if e.SessionEnd.Before(t0.Add(15 * time.Second)) {
			t.Errorf("SessionEnd %v landed before the floor", e.SessionEnd)
		}
	})

	t.Run("Extends a running session", func(t *testing.T) {
		e, store, _, _ := makeTestEngine()
		e.Start(t0)

		e.AdjustSessionMinutes(5, t0.Add(time.Second))

		assertInt(t, e.SessionMinutes, 15)
		assertInt(t, e.Remaining, 899)

		raw, err := store.Get("session_minutes")
		assertError(t, err, nil)
		assertString(t, string(raw), "15")
	})
}

func TestEngine_TimerOnly(t *testing.T) {
	t0 := time.Now()

	t.Run("Counts down without phase machinery", func(t *testing.T) {
		e, _, sink, notify := makeTestEngine()
		e.SetPattern("timer", t0)
		tones := len(sink.Tones)
		e.Start(t0)

		// no phase entry happens, the index keeps its sentinel
		assertInt(t, e.PhaseIndex, -1)
		assertString(t, e.Label, "Open Timer")
		assertInt(t, len(notify.Phases), 0)
		assertInt(t, len(sink.Tones), tones)

		e.Advance(t0.Add(300 * time.Second))

		assertInt(t, e.Remaining, 300)
		assertFloat(t, e.CycleProgress, 0.5)
		assertFloat(t, e.PhaseProgress, 0)
		assertString(t, e.Countdown, "05:00")

		e.Advance(t0.Add(600 * time.Second))

		if e.Running {
			t.Error("timer session still running past its end")
		}
		assertInt(t, notify.Completes, 1)
	})
}

func TestEngine_Gating(t *testing.T) {
	t0 := time.Now()

	t.Run("Mute silences tones but not the notifier", func(t *testing.T) {
		e, store, sink, notify := makeTestEngine()
		e.SetMuted(true)
		e.Start(t0)

		assertInt(t, len(sink.Tones), 0)
		assertInt(t, len(notify.Phases), 1)

		// haptics ride their own switch
		assertInt(t, len(sink.Vibes), 1)

		raw, err := store.Get("muted")
		assertError(t, err, nil)
		assertString(t, string(raw), "true")
	})

	t.Run("Disabled haptics never vibrate", func(t *testing.T) {
		e, _, sink, _ := makeTestEngine()
		e.SetHaptics(false)
		e.Start(t0)

		assertInt(t, len(sink.Vibes), 0)
		assertInt(t, len(sink.Tones), 1)
	})
}

func TestEngine_Restore(t *testing.T) {
	t.Run("Applies persisted settings over defaults", func(t *testing.T) {
		store := newFakeStore()
		store.Data["pattern"] = []byte("478")
		store.Data["base_duration"] = []byte("6.5")
		store.Data["session_minutes"] = []byte("15")
		store.Data["zen"] = []byte("false")
		store.Data["muted"] = []byte("true")
		store.Data["haptics"] = []byte("false")

		e := Fe.NewEngine(Fe.DefaultCatalog(), store)
		e.Restore()

		assertString(t, e.Pattern.ID, "478")
		assertFloat(t, e.BaseDuration, 6.5)
		assertInt(t, e.SessionMinutes, 15)
		assertInt(t, e.Remaining, 900)
		if e.ZenEnabled {
			t.Error("ZenEnabled not restored to false")
		}
		if !e.Muted {
			t.Error("Muted not restored to true")
		}
		if e.Haptics {
			t.Error("Haptics not restored to false")
		}
	})

	t.Run("Corrupt values keep their defaults", func(t *testing.T) {
		store := newFakeStore()
		store.Data["base_duration"] = []byte("soup")
		store.Data["session_minutes"] = []byte("0")
		store.Data["pattern"] = []byte("craquelure")

		e := Fe.NewEngine(Fe.DefaultCatalog(), store)
		e.Restore()

		assertFloat(t, e.BaseDuration, 4.0)
		assertInt(t, e.SessionMinutes, 10)
		assertString(t, e.Pattern.ID, "box")
	})

	t.Run("No store means construction defaults", func(t *testing.T) {
		e := Fe.NewEngine(Fe.DefaultCatalog(), nil)
		e.Restore()
		assertFloat(t, e.BaseDuration, 4.0)
	})
}

func TestEngine_Snapshot(t *testing.T) {
	t0 := time.Now()
	e, _, _, _ := makeTestEngine()
	e.SetPattern("478", t0)
	e.Start(t0)
	e.Advance(t0.Add(2 * time.Second))

	t.Run("Mirrors the published fields", func(t *testing.T) {
		snap := e.Snapshot(t0.Add(2 * time.Second))

		if !snap.Running {
			t.Error("snapshot not running")
		}
		assertString(t, snap.PatternID, "478")
		assertString(t, snap.PatternName, "4-7-8 Relax")
		assertString(t, snap.Label, "Inhale")
		assertInt(t, snap.PhaseIndex, 0)
		assertFloat(t, snap.PhaseProgress, 0.5)
		assertInt(t, snap.Remaining, 598)
		assertInt(t, snap.SessionMinutes, 10)
		assertFloat(t, snap.BaseDuration, 4.0)
		assertInt(t, snap.WeekMinutes, 0)
		assertInt(t, snap.Streak, 0)
	})
}

// Helpers //

var errKeyMissing = errors.New("key not found")

// fakeStore is an in-memory ConfigStore
type fakeStore struct {
	MU   sync.Mutex
	Data map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{Data: make(map[string][]byte)}
}

func (fs *fakeStore) Get(key string) ([]byte, error) {
	fs.MU.Lock()
	defer fs.MU.Unlock()
	v, ok := fs.Data[key]
	if !ok {
		return nil, errKeyMissing
	}
	return v, nil
}

func (fs *fakeStore) Set(key string, value []byte) error {
	fs.MU.Lock()
	defer fs.MU.Unlock()
	fs.Data[key] = value
	return nil
}

// fakeSink records every cue the engine lets through
type fakeSink struct {
	Tones       []string
	Completions int
	Vibes       []float64
}

func (s *fakeSink) PlayPhaseTone(cue *Ft.CueEvent) error {
	s.Tones = append(s.Tones, cue.Label)
	return nil
}

func (s *fakeSink) PlayCompletionCue() error {
	s.Completions++
	return nil
}

func (s *fakeSink) Vibrate(intensity float64) error {
	s.Vibes = append(s.Vibes, intensity)
	return nil
}

func (s *fakeSink) Flush() error { return nil }
func (s *fakeSink) Close() error { return nil }
func (s *fakeSink) Type() string { return "fake" }

// fakeNotify records the collaborator callbacks
type fakeNotify struct {
	Phases    []string
	Indexes   []int
	Resets    int
	Completes int
	Patterns  []string
}

func (n *fakeNotify) OnPhaseChanged(label string, index int) {
	n.Phases = append(n.Phases, label)
	n.Indexes = append(n.Indexes, index)
}

func (n *fakeNotify) OnCycleReset()      { n.Resets++ }
func (n *fakeNotify) OnSessionComplete() { n.Completes++ }
func (n *fakeNotify) OnPatternChanged(id string) {
	n.Patterns = append(n.Patterns, id)
}

// fakeOutput collects session records
type fakeOutput struct {
	Records []*Ft.SessionRecord
}

func (o *fakeOutput) WriteSession(rec *Ft.SessionRecord) error {
	o.Records = append(o.Records, rec)
	return nil
}

func (o *fakeOutput) WriteBatch(recs []*Ft.SessionRecord) error {
	o.Records = append(o.Records, recs...)
	return nil
}

func (o *fakeOutput) QueryRange(start, end time.Time) ([]*Ft.SessionRecord, error) {
	return o.Records, nil
}

func (o *fakeOutput) Flush() error { return nil }
func (o *fakeOutput) Close() error { return nil }
func (o *fakeOutput) Type() string { return "fake" }

// makeTestEngine wires an engine to in-memory fakes
func makeTestEngine() (*Fe.Engine, *fakeStore, *fakeSink, *fakeNotify) {
	store := newFakeStore()
	sink := &fakeSink{}
	notify := &fakeNotify{}

	e := Fe.NewEngine(Fe.DefaultCatalog(), store)
	e.Sink = sink
	e.Notify = notify

	return e, store, sink, notify
}

func assertError(t testing.TB, got, want error) {
	t.Helper()
	if !errors.Is(got, want) {
		t.Errorf("Error got %v, want %v", got, want)
	}
}

func assertGotError(t testing.TB, got error) {
	t.Helper()
	if got == nil {
		t.Error("wanted an error but didn't get one")
	}
}

func assertString(t *testing.T, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func assertStringContains(t *testing.T, full, want string) {
	t.Helper()
	if !strings.Contains(full, want) {
		t.Errorf("got %q, missing %q", full, want)
	}
}

func assertInt(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

func assertFloat(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("got %v, want %v", got, want)
	}
}
