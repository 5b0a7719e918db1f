package experiment

import (
	"context"
	"fmt"
	"time"

	"github.com/san-kum/flowsim/internal/balance"
	"github.com/san-kum/flowsim/internal/domain"
	"github.com/san-kum/flowsim/internal/field"
	"github.com/san-kum/flowsim/internal/metrics"
	"github.com/san-kum/flowsim/internal/model"
	sw "github.com/san-kum/flowsim/internal/physics/shallowwater"
)

// BalanceOutcome summarizes the balancing of a scenario's initial state.
type BalanceOutcome struct {
	Result *balance.Result
	// Distance is the relative change from the initial to the balanced
	// state.
	Distance float64
	// Imbalance is measured after running the balanced state for the
	// configured run length.
	Imbalance float64
	// ControlEffort is the mean ramp factor seen by the ramp models, zero
	// when their diagnostics are disabled.
	ControlEffort float64
	RampSteps     int
	Elapsed       time.Duration
}

func (e *Experiment) period() float64 {
	if e.cfg.Duration > 0 {
		return e.cfg.Duration
	}
	return float64(e.cfg.Steps) * e.cfg.Dt
}

// Balance runs optimal balance on the initial state of the scenario with
// the linear geostrophic projector as base point, then diagnoses the
// imbalance of the result.
func (e *Experiment) Balance(ctx context.Context) (*BalanceOutcome, error) {
	out := &BalanceOutcome{}
	start := time.Now()
	cfg := e.cfg.Balance

	err := domain.Run(ctx, e.cfg.Ranks, func(ctx context.Context, comm domain.Communicator) error {
		log := e.log.WithField("rank", comm.Rank())
		dec, err := e.cfg.GridSpec().Decompose(comm, log)
		if err != nil {
			return err
		}
		z0, err := InitialState(ctx, dec, e.cfg)
		if err != nil {
			return err
		}
		proj, err := sw.NewGeostrophicProjector(dec, e.cfg.GridSpec(), e.cfg.Physics)
		if err != nil {
			return err
		}

		effort := metrics.NewControlEffort()
		opts := e.cfg.ModelOptions(log, e.tracer)
		factory := func(z *field.State) (*model.Model, error) {
			m, err := sw.NewModel(dec, opts, z)
			if err != nil {
				return nil, err
			}
			m.AddDiagnostic(effort)
			return m, nil
		}

		ob, err := balance.New(cfg, proj, factory, balance.WithLogger(log.WithField("component", "balance")))
		if err != nil {
			return err
		}
		res, err := ob.Balance(ctx, z0)
		if err != nil {
			return err
		}
		dist, err := res.State.NormOfDiff(ctx, z0)
		if err != nil {
			return err
		}

		imb, err := balance.DiagnoseImbalance(ctx, balance.ImbalanceConfig{
			Period:  e.period(),
			Initial: balance.Identity,
			Final:   ob,
			Model: func(z *field.State) (*model.Model, error) {
				return sw.NewModel(dec, opts, z)
			},
		}, res.State)
		if err != nil {
			return err
		}

		if comm.Rank() == 0 {
			out.Result = res
			out.Distance = dist
			out.Imbalance = imb.Value
			out.ControlEffort = effort.Value()
			out.RampSteps = ob.RampSteps()
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("balance %s: %w", e.cfg.Scenario, err)
	}
	out.Elapsed = time.Since(start)
	return out, nil
}
