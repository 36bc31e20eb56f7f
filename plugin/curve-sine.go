package plugin

/*
	SineCurve

	Eases phase progress with a half-cosine so the orb
	accelerates out of a phase boundary and settles into the next

	~~~ Plugin Reference Implementation ~~~
*/

import (
	"math"
	"strings"
)

type SineCurve struct{}

// Shape is the main wrapper for the interface.
// Hold segments stay linear: easing a static segment
// makes its countdown appear to stall at both ends.
func (c *SineCurve) Shape(label string, progress float64) float64 {
	p := Clamp01(progress)

	if strings.HasPrefix(strings.ToLower(label), "hold") {
		return p
	}

	return EaseInOut(p)
}

// EaseInOut is a generic half-cosine easing that
// receives a linear progress value
// and returns the smoothed equivalent
func EaseInOut(p float64) float64 {
	return (1 - math.Cos(math.Pi*p)) / 2
}

// Clamp01 pins a float to the [0,1] progress range
func Clamp01(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

func (c *SineCurve) Type() string { return "sine" }
