package plugin

/*
	LinearCurve

	Passes phase progress through unshaped.

	This is what hosts get when they want the raw engine value,
	clamped so a late tick can never push the orb past its bounds
*/

type LinearCurve struct{}

// Shape clamps and returns the progress unchanged
func (c *LinearCurve) Shape(label string, progress float64) float64 {
	return Clamp01(progress)
}

func (c *LinearCurve) Type() string { return "linear" }
