package modules

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/san-kum/flowsim/internal/domain"
	"github.com/san-kum/flowsim/internal/field"
)

// State is the view of the model state that modules read and write. The
// tendency is accumulated in place; the current state must not be mutated
// by tendency modules.
type State interface {
	Current() *field.State
	Tendency() *field.State
	Iteration() int
	Time() float64
	// Control is the nonlinear ramp factor of the current step, 1 outside
	// of balancing.
	Control() float64
}

// Differentiator computes a derivative of in along axis into out.
type Differentiator interface {
	Diff(in *field.Array, axis int, out *field.Array) error
}

// Interpolator moves in from one grid position to another.
type Interpolator interface {
	Interp(in *field.Array, to field.Position, out *field.Array) error
}

// Operators are the grid helpers a pipeline hands to its modules.
type Operators struct {
	Diff   Differentiator
	Interp Interpolator
}

// Settings is what Setup passes down to every module.
type Settings struct {
	Decomposition *domain.Decomposition
	Operators     Operators
	Log           *logrus.Entry
	Tracer        trace.Tracer
}

// Module is one stage of a pipeline.
type Module interface {
	Name() string
	Enabled() bool
	RequiredHalo() int
	MPIAvailable() bool
	Setup(s *Settings) error
	Update(ctx context.Context, st State) error
}

// Starter is implemented by modules that acquire resources per run.
type Starter interface {
	Start() error
}

// Stopper is implemented by modules that release resources per run.
type Stopper interface {
	Stop() error
}

// Base carries the flags and injected collaborators shared by modules.
// Embed it and override Update.
type Base struct {
	ModuleName string
	Halo       int
	// SerialOnly marks modules that cannot run on more than one rank.
	SerialOnly bool
	Disabled   bool

	Ops Operators
	Dec *domain.Decomposition
	Log *logrus.Entry
}

func (b *Base) Name() string       { return b.ModuleName }
func (b *Base) Enabled() bool      { return !b.Disabled }
func (b *Base) Enable()            { b.Disabled = false }
func (b *Base) Disable()           { b.Disabled = true }
func (b *Base) RequiredHalo() int  { return b.Halo }
func (b *Base) MPIAvailable() bool { return !b.SerialOnly }

// Setup injects the shared operators unless the module brought its own.
func (b *Base) Setup(s *Settings) error {
	if b.Ops.Diff == nil {
		b.Ops.Diff = s.Operators.Diff
	}
	if b.Ops.Interp == nil {
		b.Ops.Interp = s.Operators.Interp
	}
	b.Dec = s.Decomposition
	log := s.Log
	if log == nil {
		log = logrus.StandardLogger().WithField("component", "modules")
	}
	b.Log = log.WithField("module", b.ModuleName)
	return nil
}

// ResetTendency zeroes the tendency. Place it first in a pipeline whose
// modules accumulate into the tendency.
type ResetTendency struct {
	Base
}

func NewResetTendency() *ResetTendency {
	return &ResetTendency{Base: Base{ModuleName: "reset-tendency"}}
}

func (m *ResetTendency) Update(_ context.Context, st State) error {
	st.Tendency().Zero()
	return nil
}
