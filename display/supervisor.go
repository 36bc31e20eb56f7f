package fermata

import (
	"sync"
	"time"
)

// The engine owns no clock, so the supervisor is the only thing
// in the process that makes time pass.
const tickInterval = 16 * time.Millisecond

type TickSupervisor struct {
	View     *View
	Ticker   *time.Ticker
	StopChan chan struct{}
	WG       sync.WaitGroup
	Interval time.Duration
}

// NewTickSupervisor is a wrapper around the View that manages the frame clock
// They are strongly coupled, one knows about the other
func (v *View) NewTickSupervisor() *TickSupervisor {
	ts := &TickSupervisor{
		View:     v,
		Interval: tickInterval,
	}
	v.Supervisor = ts
	return ts
}

// Start the TickSupervisor
func (t *TickSupervisor) Start() {
	t.StopChan = make(chan struct{})
	t.Ticker = time.NewTicker(t.Interval)

	t.WG.Add(1)
	go func() {
		defer t.WG.Done()
		defer t.Ticker.Stop()

		for {
			select {
			case <-t.Ticker.C:
				t.View.StepEngine(time.Now())
			case <-t.StopChan:
				return
			}
		}
	}()
}

// Stop the TickSupervisor
func (t *TickSupervisor) Stop() {
	if t.StopChan != nil {
		close(t.StopChan)
		t.WG.Wait()
	}
}

// Restart the TickSupervisor
func (t *TickSupervisor) Restart() {
	t.Stop()
	t.Start()
}
