package fermata

import (
	"bytes"
	"encoding/gob"
	"log/slog"
	"time"

	Fp "github.com/corveau/fermata/plugin"
)

// The key the encoded ledger persists under
const statsKey = "stats"

// Ledger is the session statistics record: a day-keyed log of
// completed minutes plus the consecutive-day streak. It has no
// lock of its own, the engine guards it with its own mutex and
// the read methods are pure given (now, state).
type Ledger struct {
	Days       map[string]int // minutes completed, keyed by DayKey date
	Streak     int            // consecutive days with at least one session
	LastActive string         // DayKey of the most recent completion
}

func NewLedger() *Ledger {
	return &Ledger{
		Days: make(map[string]int),
	}
}

// DayKey folds a timestamp to its local calendar day
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// Record commits one completed session.
// Minutes accumulate on the day they complete, so two sessions
// on the same day simply add. The streak only moves when the
// calendar day does: same day holds, the day after increments,
// any gap starts over at one.
func (l *Ledger) Record(minutes int, now time.Time) {
	today := DayKey(now)
	yesterday := DayKey(now.AddDate(0, 0, -1))

	l.Days[today] += minutes

	switch l.LastActive {
	case today:
		// already counted today
	case yesterday:
		l.Streak++
	default:
		l.Streak = 1
	}

	l.LastActive = today
}

// WeekMinutes sums the trailing seven days, today inclusive
func (l *Ledger) WeekMinutes(now time.Time) int {
	var total int
	for i := 0; i < 7; i++ {
		total += l.Days[DayKey(now.AddDate(0, 0, -i))]
	}
	return total
}

// DisplayStreak is the streak a host should show right now.
// A streak broken by missed days reads as zero without
// touching the stored history, Record still restarts it.
func (l *Ledger) DisplayStreak(now time.Time) int {
	if l.LastActive == "" {
		return 0
	}

	today := DayKey(now)
	yesterday := DayKey(now.AddDate(0, 0, -1))

	if l.LastActive != today && l.LastActive != yesterday {
		return 0
	}

	return l.Streak
}

// Persist writes the gob-encoded ledger through the config store
func (l *Ledger) Persist(store Fp.ConfigStore) error {
	var buf bytes.Buffer
	encoder := gob.NewEncoder(&buf)
	if err := encoder.Encode(l); err != nil {
		slog.Error("Could not encode ledger", slog.Any("Error", err))
		return err
	}

	return store.Set(statsKey, buf.Bytes())
}

// LoadLedger restores the ledger from the config store.
// Anything wrong with the stored blob, including it not
// existing yet, hands back a fresh ledger instead of an error.
func LoadLedger(store Fp.ConfigStore) *Ledger {
	raw, err := store.Get(statsKey)
	if err != nil {
		return NewLedger()
	}

	var l Ledger
	decoder := gob.NewDecoder(bytes.NewReader(raw))
	if err := decoder.Decode(&l); err != nil {
		slog.Error("Could not decode stored ledger, starting fresh", slog.Any("Error", err))
		return NewLedger()
	}

	if l.Days == nil {
		l.Days = make(map[string]int)
	}

	return &l
}
