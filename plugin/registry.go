package plugin

import "fmt"

// Curves is a global map of ProgressCurve plugins.
var Curves = map[string]func() ProgressCurve{
	"sine": func() ProgressCurve {
		return &SineCurve{}
	},
	"linear": func() ProgressCurve {
		return &LinearCurve{}
	},
}

func CurveLookup(name string) (ProgressCurve, error) {
	factory, ok := Curves[name]
	if !ok {
		return nil, fmt.Errorf("unknown curve: %s", name)
	}
	return factory(), nil
}
