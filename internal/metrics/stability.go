package metrics

import (
	"context"
	"math"

	"github.com/san-kum/flowsim/internal/model"
)

// Stability is the fraction of observed states whose fields all stay
// below threshold in magnitude.
type Stability struct {
	name       string
	every      int
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64, every int) *Stability {
	return &Stability{
		name:      "stability",
		every:     interval(every),
		threshold: threshold,
	}
}

func (s *Stability) Name() string  { return s.name }
func (s *Stability) Interval() int { return s.every }

func (s *Stability) Observe(ctx context.Context, st *model.State) error {
	s.samples++
	for _, f := range st.Z.Fields() {
		m, err := f.MaxAbs(ctx)
		if err != nil {
			return err
		}
		if math.IsNaN(m) || m > s.threshold {
			s.violations++
			break
		}
	}
	return nil
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// CFLFunc computes the global Courant number of a state for a time step.
type CFLFunc func(ctx context.Context, st *model.State) (float64, error)

// CFL tracks the largest Courant number seen.
type CFL struct {
	name  string
	every int
	cfl   CFLFunc
	max   float64
}

func NewCFL(cfl CFLFunc, every int) *CFL {
	return &CFL{name: "max_cfl", every: interval(every), cfl: cfl}
}

func (c *CFL) Name() string  { return c.name }
func (c *CFL) Interval() int { return c.every }

func (c *CFL) Observe(ctx context.Context, st *model.State) error {
	v, err := c.cfl(ctx, st)
	if err != nil {
		return err
	}
	c.max = math.Max(c.max, v)
	return nil
}

func (c *CFL) Value() float64 { return c.max }
func (c *CFL) Reset()         { c.max = 0 }
