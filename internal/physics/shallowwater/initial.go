package shallowwater

import (
	"context"
	"math"

	"github.com/san-kum/flowsim/internal/dynamo"
	"github.com/san-kum/flowsim/internal/field"
)

// eachCell calls fn for every interior cell of a with the coordinates of
// its center.
func eachCell(a *field.Array, g Grid, fn func(off int, x, y float64)) {
	sub := a.Subdomain()
	a.Each(func(off int, idx []int) {
		i := sub.Offset[0] + idx[0] - sub.HaloOn(0)
		j := sub.Offset[1] + idx[1] - sub.HaloOn(1)
		fn(off, g.Coord(0, i), g.Coord(1, j))
	})
}

// GaussianBump puts a fluid at rest under a gaussian height anomaly of the
// given amplitude and width centered in the box.
func GaussianBump(ctx context.Context, z *field.State, g Grid, amp, width float64) error {
	if !(width > 0) {
		return dynamo.Configf("initial", "gaussian width must be positive, got %v", width)
	}
	u, v, h, err := uvh(z)
	if err != nil {
		return err
	}
	u.Zero()
	v.Zero()
	h.Zero()
	cx, cy := 0.5*g.L[0], 0.5*g.L[1]
	data := h.Data()
	eachCell(h, g, func(off int, x, y float64) {
		r2 := (x-cx)*(x-cx) + (y-cy)*(y-cy)
		data[off] = amp * math.Exp(-r2/(2*width*width))
	})
	return z.Sync(ctx)
}

// GeostrophicJet sets a zonal jet of height amplitude amp with a wave of
// amplitude pert on top, and velocities in discrete geostrophic balance
// with the height field:
//
//	u = -(dh/dy)/f,  v = (dh/dx)/f
//
// Such a state is steady under the linear dynamics.
func GeostrophicJet(ctx context.Context, z *field.State, g Grid, p Params, amp, pert float64) error {
	if p.F0 == 0 {
		return dynamo.Configf("initial", "a geostrophic jet needs a non-zero f0")
	}
	u, v, h, err := uvh(z)
	if err != nil {
		return err
	}
	for _, a := range []*field.Array{u, v, h} {
		a.Zero()
	}
	kx, ky := 2*math.Pi/g.L[0], 2*math.Pi/g.L[1]
	data := h.Data()
	eachCell(h, g, func(off int, x, y float64) {
		data[off] = amp*math.Cos(ky*y) + pert*math.Sin(kx*x)*math.Sin(ky*y)
	})
	if err := h.Sync(ctx); err != nil {
		return err
	}
	s := NewStencils(g, h.Decomposition())
	if err := s.Diff(h, 1, u); err != nil {
		return err
	}
	u.Scale(-1 / p.F0)
	if err := s.Diff(h, 0, v); err != nil {
		return err
	}
	v.Scale(1 / p.F0)
	return z.Sync(ctx)
}
