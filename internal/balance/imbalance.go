package balance

import (
	"context"
	"math"

	"github.com/san-kum/flowsim/internal/dynamo"
	"github.com/san-kum/flowsim/internal/field"
	"github.com/san-kum/flowsim/internal/model"
)

// ImbalanceConfig describes an imbalance diagnosis: balance a state with
// Initial, run the model for Period, balance again with Final and measure
// how far the evolved state moved off the balanced manifold.
type ImbalanceConfig struct {
	Period  float64
	Initial Projector
	// Final defaults to Initial. A different projector gives a cross
	// balance measure.
	Final        Projector
	Model        ModelFactory
	StoreDetails bool
}

// Imbalance is the outcome of DiagnoseImbalance. The states are set only
// when details were requested; the balancing records only when the
// projector is an OptimalBalance.
type Imbalance struct {
	Value float64

	Start, StartBalanced *field.State
	End, EndBalanced     *field.State

	InitialDetails, FinalDetails *Result
}

type balancer interface {
	Balance(ctx context.Context, z *field.State) (*Result, error)
}

func project(ctx context.Context, p Projector, z *field.State) (*field.State, *Result, error) {
	if b, ok := p.(balancer); ok {
		res, err := b.Balance(ctx, z)
		if err != nil {
			return nil, nil, err
		}
		return res.State, res, nil
	}
	out, err := p.Project(ctx, z)
	return out, nil, err
}

// DiagnoseImbalance measures the imbalance of z. It is collective.
func DiagnoseImbalance(ctx context.Context, cfg ImbalanceConfig, z *field.State) (*Imbalance, error) {
	if cfg.Initial == nil {
		return nil, dynamo.Configf("imbalance", "nil projector")
	}
	if cfg.Model == nil {
		return nil, dynamo.Configf("imbalance", "nil model factory")
	}
	if !(cfg.Period > 0) || math.IsInf(cfg.Period, 0) {
		return nil, dynamo.Configf("imbalance", "diagnostic period must be positive, got %v", cfg.Period)
	}
	final := cfg.Final
	if final == nil {
		final = cfg.Initial
	}

	out := &Imbalance{}
	zBal, details, err := project(ctx, cfg.Initial, z)
	if err != nil {
		return nil, err
	}
	out.InitialDetails = details

	m, err := cfg.Model(zBal)
	if err != nil {
		return nil, err
	}
	if err := m.Start(); err != nil {
		return nil, err
	}
	runErr := m.Run(ctx, model.RunSpec{Duration: cfg.Period})
	if err := m.Stop(); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return nil, runErr
	}
	zEnd := m.State().Z

	zEndBal, details, err := project(ctx, final, zEnd)
	if err != nil {
		return nil, err
	}
	out.FinalDetails = details

	if out.Value, err = zEndBal.NormOfDiff(ctx, zEnd); err != nil {
		return nil, err
	}
	if cfg.StoreDetails {
		out.Start, out.StartBalanced = z.Clone(), zBal.Clone()
		out.End, out.EndBalanced = zEnd.Clone(), zEndBal.Clone()
	}
	return out, nil
}
