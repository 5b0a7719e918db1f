package shallowwater

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/flowsim/internal/field"
	"github.com/san-kum/flowsim/internal/metrics"
	"github.com/san-kum/flowsim/internal/model"
)

// EnergyLogger records the total energy every few steps and logs it on
// rank 0.
type EnergyLogger struct {
	grid   Grid
	params Params
	drift  *metrics.EnergyDrift
	log    *logrus.Entry
}

func NewEnergyLogger(g Grid, p Params, every int, log *logrus.Entry) *EnergyLogger {
	if log == nil {
		log = logrus.StandardLogger().WithField("component", "energy")
	}
	e := &EnergyLogger{grid: g, params: p, log: log}
	e.drift = metrics.NewEnergyDrift(e.energy, every)
	return e
}

func (e *EnergyLogger) energy(ctx context.Context, z *field.State) (float64, error) {
	return Energy(ctx, z, e.grid, e.params)
}

func (e *EnergyLogger) Name() string                { return "energy" }
func (e *EnergyLogger) Interval() int               { return e.drift.Interval() }
func (e *EnergyLogger) Drift() *metrics.EnergyDrift { return e.drift }

// Observe samples the energy of st. It is collective.
func (e *EnergyLogger) Observe(ctx context.Context, st *model.State) error {
	if err := e.drift.Observe(ctx, st); err != nil {
		return err
	}
	if dec := st.Z.Decomposition(); dec == nil || dec.Rank() == 0 {
		e.log.WithFields(logrus.Fields{
			"it":     st.It,
			"t":      st.T,
			"energy": e.drift.Current(),
			"drift":  e.drift.Value(),
		}).Info("energy")
	}
	return nil
}
