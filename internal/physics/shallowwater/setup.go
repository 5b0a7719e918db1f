package shallowwater

import (
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"

	"github.com/san-kum/flowsim/internal/domain"
	"github.com/san-kum/flowsim/internal/field"
	"github.com/san-kum/flowsim/internal/integrators"
	"github.com/san-kum/flowsim/internal/model"
	"github.com/san-kum/flowsim/internal/modules"
)

// Options configure a shallow water model.
type Options struct {
	Grid   Grid
	Params Params
	Dt     float64
	// Order of the Adam-Bashforth scheme, 3 when zero.
	Order         int
	Epsilon       float64
	ValidateState bool
	Log           *logrus.Entry
	Tracer        trace.Tracer
}

// NewPipeline returns the tendency modules in evaluation order. Advection
// and friction start disabled when their coefficient is zero.
func NewPipeline(g Grid, p Params) *modules.Pipeline {
	adv := NewAdvection(p)
	if p.Ro == 0 {
		adv.Disable()
	}
	fr := NewHarmonicFriction(g, p)
	if p.Ah == 0 {
		fr.Disable()
	}
	return modules.NewPipeline(NewLinearTendency(p), adv, fr)
}

// NewModel builds a ready to run model starting from z0.
func NewModel(dec *domain.Decomposition, o Options, z0 *field.State) (*model.Model, error) {
	if err := o.Params.Validate(); err != nil {
		return nil, err
	}
	log := o.Log
	if log == nil {
		log = logrus.StandardLogger().WithField("component", "shallowwater")
	}
	p := NewPipeline(o.Grid, o.Params)
	err := p.Setup(&modules.Settings{
		Decomposition: dec,
		Operators:     o.Grid.Operators(dec),
		Log:           log,
		Tracer:        o.Tracer,
	})
	if err != nil {
		return nil, err
	}
	order := o.Order
	if order == 0 {
		order = 3
	}
	ab, err := integrators.NewAdamBashforth(order, integrators.WithEpsilon(o.Epsilon))
	if err != nil {
		return nil, err
	}
	return model.New(model.Config{Dt: o.Dt, ValidateState: o.ValidateState, Log: log}, p, ab, z0)
}
