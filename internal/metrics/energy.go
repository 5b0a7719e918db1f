package metrics

import (
	"context"
	"math"

	"github.com/san-kum/flowsim/internal/field"
	"github.com/san-kum/flowsim/internal/model"
)

// EnergyFunc computes the global energy of a state. It is collective.
type EnergyFunc func(ctx context.Context, z *field.State) (float64, error)

// EnergyDrift tracks the largest relative deviation of the energy from its
// first observed value.
type EnergyDrift struct {
	name     string
	every    int
	energy   EnergyFunc
	initial  float64
	current  float64
	maxDrift float64
	samples  int
	series   []float64
}

func NewEnergyDrift(energy EnergyFunc, every int) *EnergyDrift {
	return &EnergyDrift{
		name:   "energy_drift",
		every:  interval(every),
		energy: energy,
	}
}

func (e *EnergyDrift) Name() string  { return e.name }
func (e *EnergyDrift) Interval() int { return e.every }

func (e *EnergyDrift) Observe(ctx context.Context, st *model.State) error {
	energy, err := e.energy(ctx, st.Z)
	if err != nil {
		return err
	}
	e.Record(energy)
	return nil
}

// Record adds an energy sample observed outside of a model run.
func (e *EnergyDrift) Record(energy float64) {
	if e.samples == 0 {
		e.initial = energy
	}
	e.current = energy
	e.samples++
	e.series = append(e.series, energy)

	if e.initial != 0 {
		drift := math.Abs(energy-e.initial) / math.Abs(e.initial)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64    { return e.maxDrift }
func (e *EnergyDrift) Initial() float64  { return e.initial }
func (e *EnergyDrift) Current() float64  { return e.current }
func (e *EnergyDrift) Series() []float64 { return e.series }

func (e *EnergyDrift) Reset() {
	e.initial = 0
	e.current = 0
	e.maxDrift = 0
	e.samples = 0
	e.series = nil
}
