package fermata

import (
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	Fp "github.com/corveau/fermata/plugin"
	Ft "github.com/corveau/fermata/types"
)

// The Engine is the breathing cycle state machine.
// It converts wall-clock time into the current phase, progress
// within that phase, progress within the whole cycle, and the
// remaining-session countdown. It owns no ticker of its own:
// the host drives it by calling Advance with the current time,
// which keeps every derived value a pure function of timestamps
// and makes missed frames self-correcting.

type Engine struct {
	MU      sync.RWMutex
	Catalog *Catalog
	Pattern *BreathingPattern

	Running        bool
	BaseDuration   float64 // seconds for the phase carrying Ratios[0]
	SessionMinutes int
	SessionEnd     time.Time // zero value while idle
	PhaseIndex     int       // -1 between Start and the first phase entry
	PhaseStart     time.Time
	PhaseProgress  float64 // within the current phase, 0..1
	CycleProgress  float64 // within the whole cycle, 0..1
	Remaining      int     // whole seconds left in the session
	Countdown      string  // phase seconds, or MM:SS for timer-only
	Label          string  // phase label running, pattern name idle
	FirstCycle     bool    // suppresses the reset pulse on first entry
	CycleReset     bool    // one-shot pulse for the host snap-back cue

	ZenEnabled bool
	Muted      bool
	Haptics    bool
	ZenOpacity float64 // target opacity, the host animates toward it
	ZenState   Ft.ZenState

	// timing knobs, fields so tests can shrink them
	ZenDelay   time.Duration // idle time before the fade arms
	FadeWindow time.Duration // fade duration before landing hidden
	PulseLen   time.Duration // how long the reset pulse stays up

	Stats *Ledger

	Store  Fp.ConfigStore   // may be nil, persistence becomes a no-op
	Output Fp.OutputAdapter // may be nil, no session history kept
	Sink   Fp.FeedbackSink  // may be nil, silent
	Notify Fp.HostNotifier  // may be nil

	// one-shot invalidation tokens, bumped by every superseding
	// transition so a stale callback can recognize itself
	resetSeq   uint64
	resetTimer *time.Timer
	zenSeq     uint64
	zenTimer   *time.Timer
	fadeTimer  *time.Timer
}

// Published is a consistent copy of everything a host may read,
// taken under the read lock in one piece
type Published struct {
	Running        bool
	PatternID      string
	PatternName    string
	TimerOnly      bool
	Label          string
	PhaseIndex     int
	PhaseProgress  float64
	CycleProgress  float64
	Remaining      int
	Countdown      string
	CycleReset     bool
	BaseDuration   float64
	SessionMinutes int
	ZenEnabled     bool
	ZenOpacity     float64
	ZenState       Ft.ZenState
	Muted          bool
	Haptics        bool
	WeekMinutes    int
	Streak         int
}

// NewEngine wires the state machine to its catalog and store.
// Collaborators (Sink, Output, Notify) are plain fields,
// assign them before the first Start.
func NewEngine(cat *Catalog, store Fp.ConfigStore) *Engine {
	bp := cat.Lookup(cat.DefaultID)

	e := &Engine{
		Catalog:        cat,
		Pattern:        bp,
		BaseDuration:   4.0,
		SessionMinutes: 10,
		PhaseIndex:     0,
		ZenEnabled:     true,
		Haptics:        true,
		ZenOpacity:     1.0,
		ZenState:       Ft.ZenVisible,
		ZenDelay:       5 * time.Second,
		FadeWindow:     3 * time.Second,
		PulseLen:       100 * time.Millisecond,
		Stats:          NewLedger(),
		Store:          store,
	}

	if bp != nil {
		e.Label = bp.Name
	}
	e.Remaining = e.SessionMinutes * 60
	e.Countdown = clockText(e.Remaining)

	return e
}

// Start begins a session at the given instant.
// A second Start while running is a no-op, so a re-entrant
// caller can never spawn a second timeline.
func (e *Engine) Start(now time.Time) {
	e.MU.Lock()
	defer e.MU.Unlock()
	e.start(now)
}

func (e *Engine) start(now time.Time) {
	if e.Running || e.Pattern == nil {
		return
	}

	e.Running = true
	e.SessionEnd = now.Add(time.Duration(e.SessionMinutes) * time.Minute)
	e.Remaining = e.SessionMinutes * 60
	e.PhaseIndex = -1
	e.FirstCycle = true
	e.PhaseProgress = 0
	e.CycleProgress = 0

	if e.Pattern.TimerOnly {
		// no phase machinery, only the countdown fills
		e.PhaseStart = now
		e.Countdown = clockText(e.Remaining)
	} else {
		// enter phase 0 right away rather than waiting a frame
		e.nextPhase(now)
	}

	e.armZenFade()

	slog.Debug("Session started",
		slog.String("pattern", e.Pattern.ID),
		slog.Int("minutes", e.SessionMinutes))
}

// Stop ends the session and resets every progress field to its
// idle value. Stopping twice is harmless.
func (e *Engine) Stop(now time.Time) {
	e.MU.Lock()
	defer e.MU.Unlock()
	e.stop(now)
}

func (e *Engine) stop(now time.Time) {
	e.Running = false
	e.SessionEnd = time.Time{}

	// invalidate every pending one-shot before touching state
	e.resetSeq++
	if e.resetTimer != nil {
		e.resetTimer.Stop()
	}
	e.cancelZen()

	e.PhaseIndex = 0
	e.PhaseProgress = 0
	e.CycleProgress = 0
	e.CycleReset = false
	e.FirstCycle = false
	e.Remaining = e.SessionMinutes * 60
	e.Countdown = clockText(e.Remaining)
	if e.Pattern != nil {
		e.Label = e.Pattern.Name
	}
}

// Toggle stops a running session, otherwise starts one
func (e *Engine) Toggle(now time.Time) {
	e.MU.Lock()
	defer e.MU.Unlock()

	if e.Running {
		e.stop(now)
	} else {
		e.start(now)
	}
}

// Advance is one cooperative tick. The host calls it every frame
// with the current time; everything below derives from absolute
// timestamps so a missed frame costs nothing.
func (e *Engine) Advance(now time.Time) {
	e.MU.Lock()
	defer e.MU.Unlock()
	e.advance(now)
}

func (e *Engine) advance(now time.Time) {
	if !e.Running {
		return
	}

	e.Remaining = remainingSeconds(e.SessionEnd, now)

	if e.Pattern.TimerOnly {
		total := float64(e.SessionMinutes) * 60
		e.CycleProgress = clampUnit(1 - float64(e.Remaining)/total)
		e.Countdown = clockText(e.Remaining)
		e.checkComplete(now)
		return
	}

	elapsed := now.Sub(e.PhaseStart).Seconds()
	phaseDur := e.Pattern.PhaseSeconds(e.BaseDuration, e.PhaseIndex)

	if elapsed >= phaseDur {
		e.nextPhase(now)
	} else {
		e.PhaseProgress = clampUnit(elapsed / phaseDur)
		e.Countdown = strconv.Itoa(int(math.Ceil(phaseDur - elapsed)))
		e.CycleProgress = clampUnit((e.priorSeconds() + elapsed) / e.Pattern.CycleSeconds(e.BaseDuration))
	}

	e.checkComplete(now)
}

// nextPhase moves to the following phase with modulo wraparound.
// Progress is zeroed in the same step as the index moves so no
// reader ever sees the old phase's 1.0 against the new label.
func (e *Engine) nextPhase(now time.Time) {
	e.PhaseIndex = (e.PhaseIndex + 1) % len(e.Pattern.Phases)

	if e.PhaseIndex == 0 {
		if e.FirstCycle {
			// entering phase 0 for the first time is not a wrap
			e.FirstCycle = false
		} else {
			e.firePulse()
		}
	}

	e.PhaseStart = now
	e.PhaseProgress = 0
	e.CycleProgress = clampUnit(e.priorSeconds() / e.Pattern.CycleSeconds(e.BaseDuration))

	if !e.Pattern.TimerOnly {
		e.Label = e.Pattern.Phases[e.PhaseIndex]
		e.Countdown = strconv.Itoa(int(math.Ceil(e.Pattern.PhaseSeconds(e.BaseDuration, e.PhaseIndex))))

		if e.Notify != nil {
			e.Notify.OnPhaseChanged(e.Label, e.PhaseIndex)
		}

		// mute and haptics gating lives here, never in the sink
		if e.Sink != nil {
			if !e.Muted {
				if err := e.Sink.PlayPhaseTone(NewCue(e.Label, e.PhaseIndex)); err != nil {
					slog.Error("Phase cue failed", slog.Any("Error", err))
				}
			}
			if e.Haptics {
				if err := e.Sink.Vibrate(0.5); err != nil {
					slog.Error("Phase vibration failed", slog.Any("Error", err))
				}
			}
		}
	}
}

// firePulse raises the one-shot cycle-reset flag and schedules
// its own clearing. The token survives into the callback so a
// pulse superseded by stop or a later wrap never clears the
// wrong session's flag.
func (e *Engine) firePulse() {
	e.CycleReset = true

	if e.Notify != nil {
		e.Notify.OnCycleReset()
	}

	e.resetSeq++
	seq := e.resetSeq
	if e.resetTimer != nil {
		e.resetTimer.Stop()
	}
	e.resetTimer = time.AfterFunc(e.PulseLen, func() {
		e.MU.Lock()
		defer e.MU.Unlock()
		if seq != e.resetSeq {
			return
		}
		e.CycleReset = false
	})
}

// checkComplete fires the end of the session exactly once.
// Credit always goes to the configured minutes, a completed
// session is never a partial.
func (e *Engine) checkComplete(now time.Time) {
	if !e.Running || e.Remaining > 0 {
		return
	}

	minutes := e.SessionMinutes

	e.Stats.Record(minutes, now)
	if e.Store != nil {
		if err := e.Stats.Persist(e.Store); err != nil {
			slog.Error("Could not persist ledger", slog.Any("Error", err))
		}
	}

	if e.Output != nil {
		rec := &Ft.SessionRecord{
			Pattern:   e.Pattern.ID,
			Minutes:   minutes,
			Completed: now,
		}
		if err := e.Output.WriteSession(rec); err != nil {
			slog.Error("Could not write session record", slog.Any("Error", err))
		}
	}

	e.stop(now)

	if e.Notify != nil {
		e.Notify.OnSessionComplete()
	}
	if e.Sink != nil {
		if !e.Muted {
			if err := e.Sink.PlayCompletionCue(); err != nil {
				slog.Error("Completion cue failed", slog.Any("Error", err))
			}
		}
		if e.Haptics {
			if err := e.Sink.Vibrate(1.0); err != nil {
				slog.Error("Completion vibration failed", slog.Any("Error", err))
			}
		}
	}

	slog.Info("Session complete",
		slog.String("pattern", e.Pattern.ID),
		slog.Int("minutes", minutes))
}

// SetPattern switches the active pattern by id.
// A running session is fully stopped first, phase indexes from
// one pattern are meaningless against another's ratios. Unknown
// ids resolve to the catalog default.
func (e *Engine) SetPattern(id string, now time.Time) {
	e.MU.Lock()
	defer e.MU.Unlock()

	bp := e.Catalog.Lookup(id)
	if bp == nil {
		return
	}

	if e.Running {
		e.stop(now)
	}

	e.Pattern = bp
	e.Label = bp.Name
	e.Countdown = clockText(e.Remaining)
	e.persist("pattern", bp.ID)

	if e.Haptics && e.Sink != nil {
		// light selection tap
		if err := e.Sink.Vibrate(0.3); err != nil {
			slog.Error("Selection vibration failed", slog.Any("Error", err))
		}
	}

	if e.Notify != nil {
		e.Notify.OnPatternChanged(bp.ID)
	}
}

// SetBaseDuration rescales the pattern against a new first-phase
// duration. Mid-phase the start timestamp shifts so the fraction
// already traveled is preserved under the new length, the orb
// never jumps.
func (e *Engine) SetBaseDuration(seconds float64, now time.Time) {
	e.MU.Lock()
	defer e.MU.Unlock()

	if seconds <= 0 {
		slog.Error("Ignoring non-positive base duration", slog.Float64("seconds", seconds))
		return
	}

	e.BaseDuration = seconds

	if e.Running && !e.Pattern.TimerOnly && e.PhaseIndex >= 0 {
		newDur := e.Pattern.PhaseSeconds(seconds, e.PhaseIndex)
		offset := time.Duration(e.PhaseProgress * newDur * float64(time.Second))
		e.PhaseStart = now.Add(-offset)
	}

	e.persist("base_duration", strconv.FormatFloat(seconds, 'f', -1, 64))
}

// AdjustSessionMinutes moves the session target by a signed delta.
// The floor is one minute. A running session's end shifts with it
// but never lands closer than ten seconds out, a big decrement
// must not complete the session on the spot.
func (e *Engine) AdjustSessionMinutes(delta int, now time.Time) {
	e.MU.Lock()
	defer e.MU.Unlock()

	minutes := e.SessionMinutes + delta
	if minutes < 1 {
		minutes = 1
	}
	e.SessionMinutes = minutes

	if e.Running {
		e.SessionEnd = e.SessionEnd.Add(time.Duration(delta) * time.Minute)
		if floor := now.Add(10 * time.Second); e.SessionEnd.Before(floor) {
			e.SessionEnd = floor
		}
		e.Remaining = remainingSeconds(e.SessionEnd, now)
	} else {
		e.Remaining = e.SessionMinutes * 60
		e.Countdown = clockText(e.Remaining)
	}

	e.persist("session_minutes", strconv.Itoa(minutes))
}

// SetMuted flips audio cue gating
func (e *Engine) SetMuted(muted bool) {
	e.MU.Lock()
	defer e.MU.Unlock()

	e.Muted = muted
	e.persist("muted", strconv.FormatBool(muted))
}

// SetHaptics flips vibration gating
func (e *Engine) SetHaptics(enabled bool) {
	e.MU.Lock()
	defer e.MU.Unlock()

	e.Haptics = enabled
	e.persist("haptics", strconv.FormatBool(enabled))
}

// Snapshot copies the published state in one consistent read
func (e *Engine) Snapshot(now time.Time) Published {
	e.MU.RLock()
	defer e.MU.RUnlock()

	p := Published{
		Running:        e.Running,
		Label:          e.Label,
		PhaseIndex:     e.PhaseIndex,
		PhaseProgress:  e.PhaseProgress,
		CycleProgress:  e.CycleProgress,
		Remaining:      e.Remaining,
		Countdown:      e.Countdown,
		CycleReset:     e.CycleReset,
		BaseDuration:   e.BaseDuration,
		SessionMinutes: e.SessionMinutes,
		ZenEnabled:     e.ZenEnabled,
		ZenOpacity:     e.ZenOpacity,
		ZenState:       e.ZenState,
		Muted:          e.Muted,
		Haptics:        e.Haptics,
		WeekMinutes:    e.Stats.WeekMinutes(now),
		Streak:         e.Stats.DisplayStreak(now),
	}

	if e.Pattern != nil {
		p.PatternID = e.Pattern.ID
		p.PatternName = e.Pattern.Name
		p.TimerOnly = e.Pattern.TimerOnly
	}

	return p
}

// Restore applies persisted settings over the construction
// defaults. Anything missing or unreadable keeps its default,
// a corrupt store must never stop the boot.
func (e *Engine) Restore() {
	if e.Store == nil {
		return
	}

	e.MU.Lock()
	defer e.MU.Unlock()

	if raw, err := e.Store.Get("pattern"); err == nil {
		if bp := e.Catalog.Lookup(string(raw)); bp != nil {
			e.Pattern = bp
			e.Label = bp.Name
		}
	}
	if raw, err := e.Store.Get("base_duration"); err == nil {
		if f, err := strconv.ParseFloat(string(raw), 64); err == nil && f > 0 {
			e.BaseDuration = f
		}
	}
	if raw, err := e.Store.Get("session_minutes"); err == nil {
		if m, err := strconv.Atoi(string(raw)); err == nil && m >= 1 {
			e.SessionMinutes = m
			e.Remaining = m * 60
			e.Countdown = clockText(e.Remaining)
		}
	}
	if raw, err := e.Store.Get("zen"); err == nil {
		if b, err := strconv.ParseBool(string(raw)); err == nil {
			e.ZenEnabled = b
		}
	}
	if raw, err := e.Store.Get("muted"); err == nil {
		if b, err := strconv.ParseBool(string(raw)); err == nil {
			e.Muted = b
		}
	}
	if raw, err := e.Store.Get("haptics"); err == nil {
		if b, err := strconv.ParseBool(string(raw)); err == nil {
			e.Haptics = b
		}
	}

	e.Stats = LoadLedger(e.Store)
}

// persist writes one setting through the store.
// Failures are logged and swallowed, a dead store must not
// take the session down with it.
func (e *Engine) persist(key, value string) {
	if e.Store == nil {
		return
	}
	if err := e.Store.Set(key, []byte(value)); err != nil {
		slog.Error("Could not persist setting",
			slog.String("key", key), slog.Any("Error", err))
	}
}

// priorSeconds sums the durations of the phases already finished
// in this cycle
func (e *Engine) priorSeconds() float64 {
	var sum float64
	for i := 0; i < e.PhaseIndex; i++ {
		sum += e.Pattern.PhaseSeconds(e.BaseDuration, i)
	}
	return sum
}

// remainingSeconds derives the countdown from the end timestamp,
// rounded up so the display reaches zero only at the end itself
func remainingSeconds(end, now time.Time) int {
	r := int(math.Ceil(end.Sub(now).Seconds()))
	if r < 0 {
		r = 0
	}
	return r
}

// clockText renders whole seconds as MM:SS
func clockText(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return pad2(seconds/60) + ":" + pad2(seconds%60)
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

func clampUnit(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
