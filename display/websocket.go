package fermata

import (
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	Fe "github.com/corveau/fermata/engine"
	Fp "github.com/corveau/fermata/plugin"
)

// BreathFrame is one animation frame for the web frontend
type BreathFrame struct {
	Running        bool    `json:"running"`
	Pattern        string  `json:"pattern"`        // pattern id
	PatternName    string  `json:"patternName"`    // human name
	TimerOnly      bool    `json:"timerOnly"`      // untimed-phase meditation timer
	Label          string  `json:"label"`          // current phase, or pattern name when idle
	PhaseIndex     int     `json:"phaseIndex"`     // -1 before the first phase entry
	PhaseProgress  float64 `json:"phaseProgress"`  // raw linear progress 0-1
	OrbScale       float64 `json:"orbScale"`       // curve-shaped orb size 0-1
	CycleProgress  float64 `json:"cycleProgress"`  // progress around the whole cycle
	DialAngle      float64 `json:"dialAngle"`      // 0-360 degrees, 270 is 12 o'clock
	Remaining      int     `json:"remaining"`      // whole seconds left in the session
	Countdown      string  `json:"countdown"`      // display text for the countdown
	CycleReset     bool    `json:"cycleReset"`     // one-shot snap-back pulse
	BaseDuration   float64 `json:"baseDuration"`   // seconds for the first phase
	SessionMinutes int     `json:"sessionMinutes"` // configured session length
	ZenEnabled     bool    `json:"zenEnabled"`
	ZenOpacity     float64 `json:"zenOpacity"` // target opacity, host animates toward it
	ZenState       int     `json:"zenState"`   // 0 visible, 1 fading, 2 hidden
	Muted          bool    `json:"muted"`
	Haptics        bool    `json:"haptics"`
	WeekMinutes    int     `json:"weekMinutes"` // minutes breathed in the last 7 days
	Streak         int     `json:"streak"`      // consecutive practice days
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (v *View) WebsocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Send frame data at the display rate
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			frame := v.BuildFrame(time.Now())
			if err := conn.WriteJSON(frame); err != nil {
				return // Connection closed
			}
		}
	}
}

// BuildFrame converts one engine snapshot into the frontend frame
func (v *View) BuildFrame(now time.Time) BreathFrame {
	snap := v.Engine.Snapshot(now)

	v.MU.Lock()
	curve := v.Curve
	v.MU.Unlock()

	shaped := snap.PhaseProgress
	if curve != nil {
		shaped = curve.Shape(snap.Label, snap.PhaseProgress)
	}

	orb := 0.0
	if snap.Running && !snap.TimerOnly && snap.PhaseIndex >= 0 {
		orb = CalcOrbScale(snap.Label, v.prevPhaseLabel(snap), shaped)
	}

	return BreathFrame{
		Running:        snap.Running,
		Pattern:        snap.PatternID,
		PatternName:    snap.PatternName,
		TimerOnly:      snap.TimerOnly,
		Label:          snap.Label,
		PhaseIndex:     snap.PhaseIndex,
		PhaseProgress:  snap.PhaseProgress,
		OrbScale:       orb,
		CycleProgress:  snap.CycleProgress,
		DialAngle:      CalcDialAngle(snap.CycleProgress),
		Remaining:      snap.Remaining,
		Countdown:      snap.Countdown,
		CycleReset:     snap.CycleReset,
		BaseDuration:   snap.BaseDuration,
		SessionMinutes: snap.SessionMinutes,
		ZenEnabled:     snap.ZenEnabled,
		ZenOpacity:     snap.ZenOpacity,
		ZenState:       int(snap.ZenState),
		Muted:          snap.Muted,
		Haptics:        snap.Haptics,
		WeekMinutes:    snap.WeekMinutes,
		Streak:         snap.Streak,
	}
}

// prevPhaseLabel finds the phase the cycle just left,
// which decides where a hold freezes the orb
func (v *View) prevPhaseLabel(snap Fe.Published) string {
	bp := v.Engine.Catalog.Lookup(snap.PatternID)
	if bp == nil || len(bp.Phases) == 0 {
		return ""
	}

	n := len(bp.Phases)
	i := ((snap.PhaseIndex-1)%n + n) % n
	return bp.Phases[i]
}

// CalcOrbScale converts shaped phase progress into the orb scale.
// Inhale-like phases grow toward 1, exhale phases run backward
// toward 0, and a hold freezes at the level the previous phase
// reached. Unknown labels grow like an inhale.
func CalcOrbScale(label, prev string, shaped float64) float64 {
	switch {
	case labelIs(label, "exhale"):
		return 1 - shaped
	case labelIs(label, "hold"):
		if labelIs(prev, "exhale") {
			return 0
		}
		return 1
	}
	return shaped
}

// CalcDialAngle places the session dial on the clock face.
// Progress 0 sits at 12 o'clock (270°) and sweeps clockwise.
func CalcDialAngle(progress float64) float64 {
	angle := 270.0 - (Fp.Clamp01(progress) * 360.0)

	// Normalize to 0-360 range
	return math.Mod(angle+360.0, 360.0)
}

func labelIs(label, kind string) bool {
	return strings.HasPrefix(strings.ToLower(label), kind)
}
