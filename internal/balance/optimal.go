package balance

import (
	"context"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/flowsim/internal/dynamo"
	"github.com/san-kum/flowsim/internal/field"
	"github.com/san-kum/flowsim/internal/model"
)

// Config holds the optimal balance settings.
type Config struct {
	// RampPeriod is the model time spent ramping in each direction.
	RampPeriod float64 `yaml:"ramp_period" toml:"ramp_period" env:"RAMP_PERIOD"`
	RampType   string  `yaml:"ramp_type" toml:"ramp_type" env:"RAMP_TYPE"`
	MaxIt      int     `yaml:"max_it" toml:"max_it" env:"MAX_IT"`
	// StopCriterion is the relative change between two candidates below
	// which the iteration has converged.
	StopCriterion float64 `yaml:"stop_criterion" toml:"stop_criterion" env:"STOP_CRITERION"`
	// UpdateBasePoint recomputes the base point from every new candidate.
	UpdateBasePoint    bool `yaml:"update_base_point" toml:"update_base_point" env:"UPDATE_BASE_POINT"`
	DisableDiagnostics bool `yaml:"disable_diagnostics" toml:"disable_diagnostics" env:"DISABLE_DIAGNOSTICS"`
	// ReturnDetails keeps the per-iteration records in the Result.
	ReturnDetails bool `yaml:"return_details" toml:"return_details" env:"RETURN_DETAILS"`
}

func DefaultConfig() Config {
	return Config{
		RampPeriod:         1,
		RampType:           "exp",
		MaxIt:              3,
		StopCriterion:      1e-9,
		UpdateBasePoint:    true,
		DisableDiagnostics: true,
	}
}

func (c Config) Validate() error {
	switch {
	case !(c.RampPeriod > 0) || math.IsInf(c.RampPeriod, 0):
		return dynamo.Configf("balance", "ramp period must be positive, got %v", c.RampPeriod)
	case c.MaxIt < 1:
		return dynamo.Configf("balance", "max_it must be at least 1, got %d", c.MaxIt)
	case c.StopCriterion < 0 || math.IsNaN(c.StopCriterion):
		return dynamo.Configf("balance", "stop criterion must not be negative, got %v", c.StopCriterion)
	}
	_, err := RampByName(c.RampType)
	return err
}

// ModelFactory builds a model starting from z. Its time step sets the ramp
// resolution; the sign is ignored.
type ModelFactory func(z *field.State) (*model.Model, error)

type StopReason int

const (
	StopMaxIterations StopReason = iota
	StopConverged
	StopDiverging
)

func (r StopReason) String() string {
	switch r {
	case StopConverged:
		return "converged"
	case StopDiverging:
		return "diverging"
	default:
		return "max-iterations"
	}
}

// Iteration records one pass of the balancing loop.
type Iteration struct {
	Index int
	// Error is the relative change of the candidate in this pass.
	Error float64
}

// Result is the outcome of one balancing call.
type Result struct {
	State     *field.State
	Converged bool
	Stop      StopReason
	// Err is ErrDiverging when the iteration was stopped because the error
	// grew. The State is still usable.
	Err error
	// Iterations is filled only when details were requested.
	Iterations []Iteration
	// Passes is the number of completed iterations.
	Passes int
	// Error is the change measured in the last pass.
	Error float64
}

// OptimalBalance projects states onto the balanced manifold by ramping the
// nonlinear terms off with a backward model, projecting onto the base point,
// and ramping them on again with a forward model. The two models are built
// on first use and kept, so their histories never mix.
type OptimalBalance struct {
	cfg     Config
	base    Projector
	factory ModelFactory
	ramp    RampFunc

	forward, backward *model.Model
	steps             int

	log *logrus.Entry
}

type Option func(*OptimalBalance)

func WithLogger(l *logrus.Entry) Option {
	return func(ob *OptimalBalance) { ob.log = l }
}

// New checks the configuration. No model is built yet.
func New(cfg Config, base Projector, factory ModelFactory, opts ...Option) (*OptimalBalance, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if base == nil {
		return nil, dynamo.Configf("balance", "nil base point projector")
	}
	if factory == nil {
		return nil, dynamo.Configf("balance", "nil model factory")
	}
	ramp, _ := RampByName(cfg.RampType)
	ob := &OptimalBalance{
		cfg:     cfg,
		base:    base,
		factory: factory,
		ramp:    ramp,
		log:     logrus.StandardLogger().WithField("component", "balance"),
	}
	for _, o := range opts {
		o(ob)
	}
	return ob, nil
}

func (ob *OptimalBalance) Config() Config { return ob.cfg }

// RampSteps is the number of model steps per ramp, known after the first
// call.
func (ob *OptimalBalance) RampSteps() int { return ob.steps }

// Models returns the forward and backward models, nil before the first
// call.
func (ob *OptimalBalance) Models() (forward, backward *model.Model) {
	return ob.forward, ob.backward
}

func (ob *OptimalBalance) ensureModels(z *field.State) error {
	if ob.forward != nil {
		return nil
	}
	fw, err := ob.factory(z)
	if err != nil {
		return err
	}
	bw, err := ob.factory(z)
	if err != nil {
		return err
	}
	dt := math.Abs(fw.Dt())
	steps := int(ob.cfg.RampPeriod / dt)
	if steps < 1 {
		return dynamo.Configf("balance", "ramp period %v is shorter than the time step %v", ob.cfg.RampPeriod, dt)
	}
	if err := fw.SetDt(dt); err != nil {
		return err
	}
	if err := bw.SetDt(-math.Abs(bw.Dt())); err != nil {
		return err
	}
	if ob.cfg.DisableDiagnostics {
		fw.DisableDiagnostics()
		bw.DisableDiagnostics()
	}
	ob.forward, ob.backward, ob.steps = fw, bw, steps
	return nil
}

func (ob *OptimalBalance) rankZero(z *field.State) bool {
	dec := z.Decomposition()
	return dec == nil || dec.Rank() == 0
}

// rampRun restarts m from z and steps it with the ramp profile. Going
// backward the control runs from full to zero.
func (ob *OptimalBalance) rampRun(ctx context.Context, m *model.Model, z *field.State, backward bool) (*field.State, error) {
	if err := m.Reset(); err != nil {
		return nil, err
	}
	m.SetState(z)
	for n := 0; n < ob.steps; n++ {
		theta := float64(n) / float64(ob.steps)
		if backward {
			theta = 1 - theta
		}
		if err := m.StepWith(ctx, ob.ramp(theta)); err != nil {
			return nil, err
		}
	}
	return m.State().Z.Clone(), nil
}

// Balance runs the balancing iteration on z. It is collective: every rank
// takes the same path because all stopping decisions use global norms.
func (ob *OptimalBalance) Balance(ctx context.Context, z *field.State) (*Result, error) {
	if err := ob.ensureModels(z); err != nil {
		return nil, err
	}
	log := ob.log
	if dec := z.Decomposition(); dec != nil {
		log = log.WithField("rank", dec.Rank())
	}
	info := ob.rankZero(z)

	zBase, err := ob.base.Project(ctx, z)
	if err != nil {
		return nil, err
	}
	zRes := z.Clone()
	res := &Result{Stop: StopMaxIterations}
	prev := math.Inf(1)

	for it := 0; it < ob.cfg.MaxIt; it++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		zLin, err := ob.rampRun(ctx, ob.backward, zRes, true)
		if err != nil {
			return nil, err
		}
		if zLin, err = ob.base.Project(ctx, zLin); err != nil {
			return nil, err
		}
		zBal, err := ob.rampRun(ctx, ob.forward, zLin, false)
		if err != nil {
			return nil, err
		}

		// swap the base point coordinate of the ramped state for the target one
		pBal, err := ob.base.Project(ctx, zBal)
		if err != nil {
			return nil, err
		}
		zNew := zBal
		if err := zNew.Sub(pBal); err != nil {
			return nil, err
		}
		if err := zNew.Add(zBase); err != nil {
			return nil, err
		}

		e, err := zNew.NormOfDiff(ctx, zRes)
		if err != nil {
			return nil, err
		}
		if ob.cfg.ReturnDetails {
			res.Iterations = append(res.Iterations, Iteration{Index: it, Error: e})
		}
		if info {
			log.WithFields(logrus.Fields{"iteration": it, "error": e}).Debug("balance iteration")
		}

		if e < ob.cfg.StopCriterion {
			zRes, res.Passes, res.Error = zNew, it+1, e
			res.Converged, res.Stop = true, StopConverged
			break
		}
		if it > 0 && e > prev {
			log.WithFields(logrus.Fields{"iteration": it, "error": e, "previous": prev}).
				Warn("balance error increasing, keeping previous candidate")
			res.Passes, res.Error = it+1, e
			res.Stop, res.Err = StopDiverging, dynamo.ErrDiverging
			break
		}
		zRes, res.Passes, res.Error, prev = zNew, it+1, e, e

		if ob.cfg.UpdateBasePoint && it < ob.cfg.MaxIt-1 {
			if zBase, err = ob.base.Project(ctx, zRes); err != nil {
				return nil, err
			}
		}
	}
	res.State = zRes
	if info {
		log.WithFields(logrus.Fields{"passes": res.Passes, "error": res.Error, "stop": res.Stop}).Info("balance finished")
	}
	return res, nil
}

// Project returns the balanced state of z.
func (ob *OptimalBalance) Project(ctx context.Context, z *field.State) (*field.State, error) {
	res, err := ob.Balance(ctx, z)
	if err != nil {
		return nil, err
	}
	return res.State, nil
}
