package shallowwater

import (
	"math"

	"github.com/san-kum/flowsim/internal/dynamo"
)

// Params are the physical constants of the rotating shallow water system.
type Params struct {
	// F0 is the constant Coriolis parameter.
	F0 float64 `yaml:"f0" toml:"f0" env:"F0"`
	// Csqr is the squared gravity wave speed.
	Csqr float64 `yaml:"csqr" toml:"csqr" env:"CSQR"`
	// Ro scales the nonlinear advection. Zero gives the linear system.
	Ro float64 `yaml:"ro" toml:"ro" env:"RO"`
	// Ah is the harmonic viscosity acting on the velocities.
	Ah float64 `yaml:"ah" toml:"ah" env:"AH"`
}

func DefaultParams() Params {
	return Params{F0: 1, Csqr: 1, Ro: 0, Ah: 0}
}

func (p Params) Validate() error {
	for name, v := range map[string]float64{"f0": p.F0, "csqr": p.Csqr, "ro": p.Ro, "ah": p.Ah} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return dynamo.Configf("shallowwater", "%s is not finite", name)
		}
	}
	switch {
	case p.Csqr <= 0:
		return dynamo.Configf("shallowwater", "csqr must be positive, got %v", p.Csqr)
	case p.Ro < 0:
		return dynamo.Configf("shallowwater", "ro must not be negative, got %v", p.Ro)
	case p.Ah < 0:
		return dynamo.Configf("shallowwater", "ah must not be negative, got %v", p.Ah)
	}
	return nil
}
