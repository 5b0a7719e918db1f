package shallowwater

import (
	"context"

	"github.com/san-kum/flowsim/internal/dynamo"
	"github.com/san-kum/flowsim/internal/field"
	"github.com/san-kum/flowsim/internal/modules"
)

// LinearTendency adds the Coriolis force, the pressure gradient and the
// divergence term:
//
//	du += f v - dh/dx
//	dv += -f u - dh/dy
//	dh += -csqr (du/dx + dv/dy)
type LinearTendency struct {
	modules.Base
	params Params
	tmp    *field.Array
}

func NewLinearTendency(p Params) *LinearTendency {
	return &LinearTendency{
		Base:   modules.Base{ModuleName: "linear-tendency", Halo: Halo},
		params: p,
	}
}

func (m *LinearTendency) Setup(s *modules.Settings) error {
	if err := m.Base.Setup(s); err != nil {
		return err
	}
	if m.Ops.Diff == nil {
		return dynamo.Configf(m.ModuleName, "no differentiation operator")
	}
	m.tmp = field.NewArray(s.Decomposition, "tmp", field.Center)
	return nil
}

func (m *LinearTendency) Update(_ context.Context, st modules.State) error {
	u, v, h, err := uvh(st.Current())
	if err != nil {
		return err
	}
	du, dv, dh, err := uvh(st.Tendency())
	if err != nil {
		return err
	}
	f, csqr := m.params.F0, m.params.Csqr

	steps := []struct {
		out   *field.Array
		coeff float64
		in    *field.Array
		axis  int // -1 adds in without differentiating
	}{
		{du, f, v, -1},
		{du, -1, h, 0},
		{dv, -f, u, -1},
		{dv, -1, h, 1},
		{dh, -csqr, u, 0},
		{dh, -csqr, v, 1},
	}
	for _, s := range steps {
		src := s.in
		if s.axis >= 0 {
			if err := m.Ops.Diff.Diff(s.in, s.axis, m.tmp); err != nil {
				return err
			}
			src = m.tmp
		}
		if err := s.out.AddScaled(s.coeff, src); err != nil {
			return err
		}
	}
	return nil
}

// Advection adds the nonlinear terms scaled by Ro and the ramp control
// factor. Momentum is advected in advective form and height in flux form.
type Advection struct {
	modules.Base
	params    Params
	tmp, flux *field.Array
}

func NewAdvection(p Params) *Advection {
	return &Advection{
		Base:   modules.Base{ModuleName: "advection", Halo: Halo},
		params: p,
	}
}

func (m *Advection) Setup(s *modules.Settings) error {
	if err := m.Base.Setup(s); err != nil {
		return err
	}
	if m.Ops.Diff == nil {
		return dynamo.Configf(m.ModuleName, "no differentiation operator")
	}
	m.tmp = field.NewArray(s.Decomposition, "tmp", field.Center)
	m.flux = field.NewArray(s.Decomposition, "flux", field.Center)
	return nil
}

func (m *Advection) Update(_ context.Context, st modules.State) error {
	c := m.params.Ro * st.Control()
	if c == 0 {
		return nil
	}
	u, v, h, err := uvh(st.Current())
	if err != nil {
		return err
	}
	du, dv, dh, err := uvh(st.Tendency())
	if err != nil {
		return err
	}
	vel := [2]*field.Array{u, v}

	for _, q := range []struct{ in, out *field.Array }{{u, du}, {v, dv}} {
		for axis, w := range vel {
			if err := m.Ops.Diff.Diff(q.in, axis, m.tmp); err != nil {
				return err
			}
			if err := m.tmp.Mul(w); err != nil {
				return err
			}
			if err := q.out.AddScaled(-c, m.tmp); err != nil {
				return err
			}
		}
	}
	// halos of the flux follow from the synchronised halos of h, u and v
	for axis, w := range vel {
		if err := m.flux.CopyFrom(h); err != nil {
			return err
		}
		if err := m.flux.Mul(w); err != nil {
			return err
		}
		if err := m.Ops.Diff.Diff(m.flux, axis, m.tmp); err != nil {
			return err
		}
		if err := dh.AddScaled(-c, m.tmp); err != nil {
			return err
		}
	}
	return nil
}

// HarmonicFriction adds Ah times the Laplacian of u and v.
type HarmonicFriction struct {
	modules.Base
	params  Params
	grid    Grid
	stencil *Stencils
	tmp     *field.Array
}

func NewHarmonicFriction(g Grid, p Params) *HarmonicFriction {
	return &HarmonicFriction{
		Base:   modules.Base{ModuleName: "harmonic-friction", Halo: Halo},
		params: p,
		grid:   g,
	}
}

func (m *HarmonicFriction) Setup(s *modules.Settings) error {
	if err := m.Base.Setup(s); err != nil {
		return err
	}
	m.stencil = NewStencils(m.grid, s.Decomposition)
	m.tmp = field.NewArray(s.Decomposition, "tmp", field.Center)
	return nil
}

func (m *HarmonicFriction) Update(_ context.Context, st modules.State) error {
	u, v, _, err := uvh(st.Current())
	if err != nil {
		return err
	}
	du, dv, _, err := uvh(st.Tendency())
	if err != nil {
		return err
	}
	for _, q := range []struct{ in, out *field.Array }{{u, du}, {v, dv}} {
		if err := m.stencil.Laplacian(q.in, m.tmp); err != nil {
			return err
		}
		if err := q.out.AddScaled(m.params.Ah, m.tmp); err != nil {
			return err
		}
	}
	return nil
}
