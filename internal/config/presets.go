package config

import (
	"maps"
	"slices"

	"github.com/san-kum/flowsim/internal/balance"
	sw "github.com/san-kum/flowsim/internal/physics/shallowwater"
)

var Presets = map[string]*Config{
	"geostrophic-jet": {
		Scenario: ScenarioJet, Dt: 0.01, Duration: 5, Order: 3, Ranks: 1, EnergyEvery: 10, Output: DefaultOutput,
		Grid:    GridConfig{Nx: 32, Ny: 32, Lx: 1, Ly: 1, Periodic: true},
		Physics: sw.Params{F0: 1, Csqr: 1, Ro: 0.2},
		Initial: InitialConfig{Amplitude: 0.05, Perturbation: 0.01},
		Balance: balance.DefaultConfig(),
	},
	"gravity-wave": {
		Scenario: ScenarioBump, Dt: 0.005, Duration: 2, Order: 3, Ranks: 1, EnergyEvery: 20, Output: DefaultOutput,
		Grid:    GridConfig{Nx: 32, Ny: 32, Lx: 1, Ly: 1, Periodic: true},
		Physics: sw.Params{F0: 1, Csqr: 1},
		Initial: InitialConfig{Amplitude: 0.1, Width: 0.05},
		Balance: balance.DefaultConfig(),
	},
	"linear-energy": {
		Scenario: ScenarioBump, Dt: 0.001, Steps: 500, Order: 3, Ranks: 4, EnergyEvery: 50, Output: DefaultOutput,
		Grid:    GridConfig{Nx: 16, Ny: 16, Lx: 1, Ly: 1, Periodic: false},
		Physics: sw.Params{F0: 1, Csqr: 1},
		Initial: InitialConfig{Amplitude: 0.1, Width: 0.15},
		Balance: balance.DefaultConfig(),
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	out := *cfg
	return &out
}

func ListPresets() []string {
	return slices.Sorted(maps.Keys(Presets))
}
