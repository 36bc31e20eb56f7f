package fermata

import (
	"strconv"
	"time"

	Ft "github.com/corveau/fermata/types"
)

// The zen sub-state machine dims the display during a running
// session: Visible until the idle delay passes, Fading while the
// host animates opacity toward zero, Hidden once the window has
// elapsed. The engine only moves the target opacity and state,
// the animation itself belongs to the host.
//
// Both steps are armed as one chain under a single token. Any
// interaction, disabling zen, or stopping the session bumps the
// token, so a callback from a superseded chain finds a stale
// token and leaves the state alone.

// SetZen flips the zen preference.
// Disabling forces the display visible and cancels any pending
// fade, enabling during a run arms one.
func (e *Engine) SetZen(enabled bool) {
	e.MU.Lock()
	defer e.MU.Unlock()

	e.ZenEnabled = enabled
	e.persist("zen", strconv.FormatBool(enabled))

	e.cancelZen()
	if enabled {
		e.armZenFade()
	}
}

// ResetZenIdle is the host's interaction primitive: any tap or
// input lands here, reveals the display, and restarts the idle
// countdown when a fade should follow.
func (e *Engine) ResetZenIdle() {
	e.MU.Lock()
	defer e.MU.Unlock()

	e.cancelZen()
	e.armZenFade()
}

// cancelZen invalidates the pending fade chain and forces the
// display visible. Lock held by the caller.
func (e *Engine) cancelZen() {
	e.zenSeq++
	if e.zenTimer != nil {
		e.zenTimer.Stop()
	}
	if e.fadeTimer != nil {
		e.fadeTimer.Stop()
	}

	e.ZenState = Ft.ZenVisible
	e.ZenOpacity = 1.0
}

// armZenFade schedules the two-step fade while a zen session is
// running. Lock held by the caller.
func (e *Engine) armZenFade() {
	if !e.Running || !e.ZenEnabled {
		return
	}

	e.zenSeq++
	seq := e.zenSeq
	if e.zenTimer != nil {
		e.zenTimer.Stop()
	}
	if e.fadeTimer != nil {
		e.fadeTimer.Stop()
	}

	e.zenTimer = time.AfterFunc(e.ZenDelay, func() {
		e.MU.Lock()
		defer e.MU.Unlock()

		if seq != e.zenSeq || !e.Running || !e.ZenEnabled {
			return
		}

		e.ZenState = Ft.ZenFading
		e.ZenOpacity = 0

		e.fadeTimer = time.AfterFunc(e.FadeWindow, func() {
			e.MU.Lock()
			defer e.MU.Unlock()

			if seq != e.zenSeq || !e.Running || !e.ZenEnabled {
				return
			}

			e.ZenState = Ft.ZenHidden
		})
	})
}
