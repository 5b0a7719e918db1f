package integrators

import (
	"github.com/san-kum/flowsim/internal/dynamo"
	"github.com/san-kum/flowsim/internal/field"
)

// Integrator advances a state in place from its tendency.
type Integrator interface {
	Advance(z, dz *field.State, dt float64) error
	Reset()
}

// coefficients[n-1] holds the order-n weights, newest tendency first.
var coefficients = [][]float64{
	{1},
	{3.0 / 2, -1.0 / 2},
	{23.0 / 12, -16.0 / 12, 5.0 / 12},
	{55.0 / 24, -59.0 / 24, 37.0 / 24, -9.0 / 24},
}

// MaxOrder is the highest supported Adam-Bashforth order.
const MaxOrder = 4

// Option configures an AdamBashforth integrator.
type Option func(*AdamBashforth)

// WithEpsilon shifts the second-order weights to [3/2+eps, -1/2-eps].
func WithEpsilon(eps float64) Option {
	return func(ab *AdamBashforth) { ab.eps = eps }
}

// AdamBashforth is a multistep integrator that keeps the last order
// tendencies. It starts cold: the n-th step after a reset uses order
// min(n, order), so the first step is forward Euler.
type AdamBashforth struct {
	order int
	eps   float64

	hist  []*field.State // ring buffer, hist[pos] is the newest
	pos   int
	level int

	dt    float64
	hasDt bool
}

func NewAdamBashforth(order int, opts ...Option) (*AdamBashforth, error) {
	if order < 1 || order > MaxOrder {
		return nil, dynamo.Configf("integrator", "adam-bashforth order must be in 1..%d, got %d", MaxOrder, order)
	}
	ab := &AdamBashforth{order: order, hist: make([]*field.State, order)}
	for _, opt := range opts {
		opt(ab)
	}
	return ab, nil
}

func (ab *AdamBashforth) Order() int { return ab.order }

// ValidHistory is the number of stored tendencies usable by the next step.
func (ab *AdamBashforth) ValidHistory() int { return ab.level }

// Coefficients returns the weights used at history level n.
func (ab *AdamBashforth) Coefficients(n int) []float64 {
	c := append([]float64(nil), coefficients[n-1]...)
	if n == 2 {
		c[0] += ab.eps
		c[1] -= ab.eps
	}
	return c
}

// Reset discards the tendency history.
func (ab *AdamBashforth) Reset() {
	ab.level = 0
	ab.hasDt = false
}

// Advance records dz and sets z = z + dt * sum(c_i * dz_i). A time step
// that differs from the previous one in size or sign invalidates the
// history first.
func (ab *AdamBashforth) Advance(z, dz *field.State, dt float64) error {
	if ab.hasDt && dt != ab.dt {
		ab.Reset()
	}
	ab.dt, ab.hasDt = dt, true

	ab.pos = (ab.pos + 1) % ab.order
	switch slot := ab.hist[ab.pos]; {
	case slot == nil:
		ab.hist[ab.pos] = dz.Clone()
	case slot.CopyFrom(dz) != nil:
		// layout changed, older entries are unusable
		ab.level = 0
		ab.hist[ab.pos] = dz.Clone()
	}
	ab.level = min(ab.level+1, ab.order)

	for i, c := range ab.Coefficients(ab.level) {
		h := ab.hist[(ab.pos-i+ab.order)%ab.order]
		if err := z.AddScaled(dt*c, h); err != nil {
			return err
		}
	}
	return nil
}
