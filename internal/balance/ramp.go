package balance

import (
	"maps"
	"math"
	"slices"

	"github.com/san-kum/flowsim/internal/dynamo"
)

// RampFunc blends from 0 at theta=0 to 1 at theta=1.
type RampFunc func(theta float64) float64

// ExpRamp is smooth with all derivatives vanishing at both ends.
func ExpRamp(theta float64) float64 {
	t1 := 1 / math.Max(1e-32, theta)
	t2 := 1 / math.Max(1e-32, 1-theta)
	return math.Exp(-t1) / (math.Exp(-t1) + math.Exp(-t2))
}

// PowRamp is the cubic blend theta^3 / (theta^3 + (1-theta)^3).
func PowRamp(theta float64) float64 {
	a, b := theta*theta*theta, (1-theta)*(1-theta)*(1-theta)
	return a / (a + b)
}

func CosRamp(theta float64) float64 { return 0.5 * (1 - math.Cos(math.Pi*theta)) }
func LinRamp(theta float64) float64 { return theta }

var ramps = map[string]RampFunc{
	"exp": ExpRamp,
	"pow": PowRamp,
	"cos": CosRamp,
	"lin": LinRamp,
}

// RampByName looks up one of the ramp profiles exp, pow, cos and lin.
func RampByName(name string) (RampFunc, error) {
	f, ok := ramps[name]
	if !ok {
		return nil, dynamo.Configf("balance", "unknown ramp type %q, choose from %v", name, RampNames())
	}
	return f, nil
}

func RampNames() []string {
	return slices.Sorted(maps.Keys(ramps))
}
