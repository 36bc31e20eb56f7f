package fermata

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// BreathingPattern describes one repeating cycle shape.
// Phases and Ratios are parallel: Ratios[i] is the relative
// duration weight of Phases[i]. The wall-clock length of a
// phase is unit × ratio, where unit is BaseDuration/Ratios[0],
// so the first phase always lasts exactly BaseDuration seconds.
type BreathingPattern struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Phases      []string  `json:"phases"`
	Ratios      []float64 `json:"ratios"`
	TimerOnly   bool      `json:"timer_only"` // one pseudo-phase, countdown only
}

// RatioSum is the weight of a whole cycle
func (bp *BreathingPattern) RatioSum() float64 {
	var sum float64
	for _, r := range bp.Ratios {
		sum += r
	}
	return sum
}

// PhaseSeconds is the wall-clock duration of phase i at a given base
func (bp *BreathingPattern) PhaseSeconds(base float64, i int) float64 {
	unit := base / bp.Ratios[0]
	return unit * bp.Ratios[i%len(bp.Ratios)]
}

// CycleSeconds is the wall-clock duration of a whole cycle at a given base
func (bp *BreathingPattern) CycleSeconds(base float64) float64 {
	unit := base / bp.Ratios[0]
	return unit * bp.RatioSum()
}

// Catalog holds every registered pattern.
// Registration happens at process start, after that the
// catalog is read-only, so lookups take the read lock.
type Catalog struct {
	MU        sync.RWMutex
	Patterns  map[string]*BreathingPattern
	IDs       []string // registration order, for stable listings
	DefaultID string
}

func NewCatalog(def string) *Catalog {
	return &Catalog{
		Patterns:  make(map[string]*BreathingPattern),
		DefaultID: def,
	}
}

// Register validates and adds one pattern.
// A malformed pattern is an error at registration,
// never a tolerance the engine has to carry at runtime.
func (c *Catalog) Register(bp *BreathingPattern) error {
	if bp == nil || bp.ID == "" {
		return errors.New("pattern has no id")
	}
	if len(bp.Phases) == 0 {
		return fmt.Errorf("pattern %q has no phases", bp.ID)
	}
	if len(bp.Phases) != len(bp.Ratios) {
		return fmt.Errorf("pattern %q has %d phases and %d ratios", bp.ID, len(bp.Phases), len(bp.Ratios))
	}
	for i, r := range bp.Ratios {
		if r <= 0 {
			return fmt.Errorf("pattern %q phase %q has ratio %v, must be above zero", bp.ID, bp.Phases[i], r)
		}
	}
	if bp.TimerOnly && len(bp.Phases) != 1 {
		return fmt.Errorf("timer-only pattern %q must have exactly one phase, has %d", bp.ID, len(bp.Phases))
	}

	c.MU.Lock()
	defer c.MU.Unlock()

	// re-registering an id replaces it in place,
	// keeping its position in the listing
	if _, exists := c.Patterns[bp.ID]; !exists {
		c.IDs = append(c.IDs, bp.ID)
	}
	c.Patterns[bp.ID] = bp

	return nil
}

// Lookup finds a pattern by id.
// An unknown id falls back to the catalog default
// so the engine always has something real to run.
func (c *Catalog) Lookup(id string) *BreathingPattern {
	c.MU.RLock()
	defer c.MU.RUnlock()

	if bp, ok := c.Patterns[id]; ok {
		return bp
	}

	slog.Error("Unknown pattern, using default", slog.String("id", id), slog.String("default", c.DefaultID))

	if bp, ok := c.Patterns[c.DefaultID]; ok {
		return bp
	}

	// catalog default was never registered,
	// hand back the first registration instead
	if len(c.IDs) > 0 {
		return c.Patterns[c.IDs[0]]
	}

	return nil
}

// List returns every pattern in registration order
func (c *Catalog) List() []*BreathingPattern {
	c.MU.RLock()
	defer c.MU.RUnlock()

	all := make([]*BreathingPattern, 0, len(c.IDs))
	for _, id := range c.IDs {
		all = append(all, c.Patterns[id])
	}
	return all
}

// DefaultCatalog registers the built-in patterns.
// These are always present no matter what importing does.
func DefaultCatalog() *Catalog {
	c := NewCatalog("box")

	builtins := []*BreathingPattern{
		{
			ID:          "box",
			Name:        "Box Breathing",
			Description: "Four equal sides, the navy-seal classic",
			Phases:      []string{"Inhale", "Hold", "Exhale", "Hold"},
			Ratios:      []float64{1, 1, 1, 1},
		},
		{
			ID:          "478",
			Name:        "4-7-8 Relax",
			Description: "Long exhale for downshifting before sleep",
			Phases:      []string{"Inhale", "Hold", "Exhale"},
			Ratios:      []float64{4, 7, 8},
		},
		{
			ID:          "coherent",
			Name:        "Coherent Breathing",
			Description: "Even in and out, around six breaths a minute",
			Phases:      []string{"Inhale", "Exhale"},
			Ratios:      []float64{1, 1},
		},
		{
			ID:          "timer",
			Name:        "Open Timer",
			Description: "No pacing, just the countdown",
			Phases:      []string{"Meditate"},
			Ratios:      []float64{1},
			TimerOnly:   true,
		},
	}

	for _, bp := range builtins {
		if err := c.Register(bp); err != nil {
			// built-ins are hardcoded above, a failure here is a programming error
			slog.Error("Could not register builtin pattern", slog.Any("Error", err))
		}
	}

	return c
}
