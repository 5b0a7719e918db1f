package model

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/flowsim/internal/dynamo"
	"github.com/san-kum/flowsim/internal/field"
	"github.com/san-kum/flowsim/internal/integrators"
	"github.com/san-kum/flowsim/internal/modules"
)

// Diagnostic observes the state after every Interval-th step. Observe runs
// after the iteration counter has been advanced, so st.It is the number of
// steps taken including the one just finished.
type Diagnostic interface {
	Name() string
	Interval() int
	Observe(ctx context.Context, st *State) error
}

// Config holds the per-model run settings.
type Config struct {
	// Dt may be negative to integrate backwards in time.
	Dt        float64
	StartTime float64
	// ValidateState stops a run at the first NaN or Inf.
	ValidateState bool
	Log           *logrus.Entry
}

// RunSpec selects the length of a run: exactly one of Steps and Duration.
type RunSpec struct {
	Steps    int
	Duration float64
}

// Model couples a module pipeline with a time integrator. It is driven by
// a single goroutine per rank.
type Model struct {
	pipeline *modules.Pipeline
	integ    integrators.Integrator
	st       *State
	dt       float64
	t0       float64
	validate bool

	diags    []Diagnostic
	diagOff  bool
	progress func(*State)
	every    int

	log *logrus.Entry
}

// New builds a model starting from a copy of z0. The pipeline must already
// be set up.
func New(cfg Config, p *modules.Pipeline, integ integrators.Integrator, z0 *field.State) (*Model, error) {
	if p == nil {
		return nil, dynamo.Configf("model", "nil pipeline")
	}
	if integ == nil {
		return nil, dynamo.Configf("model", "nil integrator")
	}
	if z0 == nil {
		return nil, dynamo.Configf("model", "nil initial state")
	}
	if cfg.Dt == 0 || math.IsNaN(cfg.Dt) || math.IsInf(cfg.Dt, 0) {
		return nil, dynamo.Configf("model", "invalid time step %v", cfg.Dt)
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger().WithField("component", "model")
	}
	if dec := z0.Decomposition(); dec != nil {
		log = log.WithField("rank", dec.Rank())
	}
	return &Model{
		pipeline: p,
		integ:    integ,
		st:       newState(z0, cfg.StartTime),
		dt:       cfg.Dt,
		t0:       cfg.StartTime,
		validate: cfg.ValidateState,
		log:      log,
	}, nil
}

func (m *Model) State() *State               { return m.st }
func (m *Model) Pipeline() *modules.Pipeline { return m.pipeline }
func (m *Model) Dt() float64                 { return m.dt }
func (m *Model) AddDiagnostic(d Diagnostic)  { m.diags = append(m.diags, d) }

func (m *Model) Integrator() integrators.Integrator { return m.integ }

// DisableDiagnostics stops diagnostics from observing later steps.
func (m *Model) DisableDiagnostics() { m.diagOff = true }
func (m *Model) EnableDiagnostics()  { m.diagOff = false }

// SetDt changes the time step. The integrator drops its history on the
// next step.
func (m *Model) SetDt(dt float64) error {
	if dt == 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return dynamo.Configf("model", "invalid time step %v", dt)
	}
	m.dt = dt
	return nil
}

// OnProgress registers fn to be called after every n-th step.
func (m *Model) OnProgress(n int, fn func(*State)) {
	m.every, m.progress = n, fn
}

// SetState replaces the current fields by a copy of z. A state with a
// different layout also replaces the tendency and clears the history.
func (m *Model) SetState(z *field.State) {
	if err := m.st.Z.CopyFrom(z); err != nil {
		m.st.Z = z.Clone()
		m.st.DZ = z.ZerosLike()
		m.integ.Reset()
	}
}

func (m *Model) rankZero() bool {
	dec := m.st.Z.Decomposition()
	return dec == nil || dec.Rank() == 0
}

// Start starts every module of the pipeline.
func (m *Model) Start() error { return m.pipeline.Start() }

// Stop stops every module of the pipeline.
func (m *Model) Stop() error { return m.pipeline.Stop() }

// Step advances one time step with the nonlinear terms fully on.
func (m *Model) Step(ctx context.Context) error {
	return m.StepWith(ctx, 1)
}

// StepWith advances one time step with the given ramp control factor.
// Halos are refreshed, the tendency is rebuilt by the pipeline and the
// integrator applies it.
func (m *Model) StepWith(ctx context.Context, control float64) error {
	st := m.st
	st.control = control

	if err := st.Z.Sync(ctx); err != nil {
		return m.fail(err)
	}
	st.DZ.Zero()
	if err := m.pipeline.Compute(ctx, st); err != nil {
		return m.fail(err)
	}
	if err := m.integ.Advance(st.Z, st.DZ, m.dt); err != nil {
		return m.fail(err)
	}
	st.It++
	st.T = m.t0 + float64(st.It)*m.dt

	if m.validate && st.Z.HasNaN() {
		return m.fail(dynamo.ErrInvalidState)
	}

	for _, d := range m.diags {
		if m.diagOff {
			break
		}
		if n := d.Interval(); n > 0 && st.It%n == 0 {
			if err := d.Observe(ctx, st); err != nil {
				return m.fail(fmt.Errorf("diagnostic %s: %w", d.Name(), err))
			}
		}
	}
	if m.progress != nil && m.every > 0 && st.It%m.every == 0 {
		m.progress(st)
	}
	return nil
}

func (m *Model) fail(err error) error {
	return &dynamo.SimulationError{Step: m.st.It, Time: m.st.T, Wrapped: err}
}

// Steps converts a RunSpec to a number of steps.
func (m *Model) Steps(spec RunSpec) (int, error) {
	switch {
	case spec.Steps > 0 && spec.Duration > 0:
		return 0, dynamo.Configf("model", "run needs steps or duration, not both")
	case spec.Steps > 0:
		return spec.Steps, nil
	case spec.Duration > 0:
		return int(math.Round(spec.Duration / math.Abs(m.dt))), nil
	default:
		return 0, dynamo.Configf("model", "run needs a positive number of steps or duration")
	}
}

// Run advances the model by the given number of steps or duration. The
// caller owns the module lifecycle: call Start before the first Run and
// Stop once the model is done.
func (m *Model) Run(ctx context.Context, spec RunSpec) error {
	n, err := m.Steps(spec)
	if err != nil {
		return err
	}

	if m.rankZero() {
		m.log.WithFields(logrus.Fields{"steps": n, "dt": m.dt, "t": m.st.T}).Debug("run started")
	}
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return m.fail(fmt.Errorf("%w: %w", dynamo.ErrContextCanceled, ctx.Err()))
		default:
		}
		if err := m.Step(ctx); err != nil {
			return err
		}
	}
	if m.rankZero() {
		m.log.WithFields(logrus.Fields{"it": m.st.It, "t": m.st.T}).Debug("run finished")
	}
	return nil
}

// Reset restarts the modules, zeroes the tendency, clears the integrator
// history and rewinds iteration and time. The fields are kept. Reset is
// idempotent.
func (m *Model) Reset() error {
	if err := m.pipeline.Reset(); err != nil {
		return err
	}
	m.st.DZ.Zero()
	m.integ.Reset()
	m.st.It = 0
	m.st.T = m.t0
	m.st.control = 1
	return nil
}
