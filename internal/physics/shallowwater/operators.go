package shallowwater

import (
	"github.com/san-kum/flowsim/internal/domain"
	"github.com/san-kum/flowsim/internal/dynamo"
	"github.com/san-kum/flowsim/internal/field"
	"github.com/san-kum/flowsim/internal/modules"
)

// Stencils are second order centered finite differences on a Grid. Input
// halos must be synchronised. Across a wall the value outside the domain
// is taken as zero.
type Stencils struct {
	grid Grid
	dec  *domain.Decomposition
}

func NewStencils(g Grid, dec *domain.Decomposition) *Stencils {
	return &Stencils{grid: g, dec: dec}
}

// Operators returns the stencils as the operator set a pipeline injects.
func (g Grid) Operators(dec *domain.Decomposition) modules.Operators {
	s := NewStencils(g, dec)
	return modules.Operators{Diff: s, Interp: s}
}

func (s *Stencils) check(op string, in, out *field.Array, axis int) error {
	if in.Spectral() || out.Spectral() {
		return dynamo.Configf("stencils", "%s of a spectral array", op)
	}
	if !in.Shape().Equal(out.Shape()) {
		return dynamo.Configf("stencils", "%s of %s into %s: shape %v vs %v", op, in.Name, out.Name, in.Shape(), out.Shape())
	}
	if axis < 0 || axis >= 2 {
		return dynamo.Configf("stencils", "%s along axis %d", op, axis)
	}
	if in.Subdomain().HaloOn(axis) < Halo {
		return dynamo.Configf("stencils", "%s along axis %d needs a halo", op, axis)
	}
	return nil
}

// neighbours returns the values on both sides of a cell along axis.
func (s *Stencils) neighbours(data []float64, sub domain.Subdomain, stride, off int, idx []int, axis int) (lo, hi float64) {
	lo, hi = data[off-stride], data[off+stride]
	if s.dec.Periodic(axis) {
		return lo, hi
	}
	g := sub.Offset[axis] + idx[axis] - sub.HaloOn(axis)
	if g == 0 {
		lo = 0
	}
	if g == sub.Global[axis]-1 {
		hi = 0
	}
	return lo, hi
}

// Diff writes the centered derivative of in along axis into the interior
// of out.
func (s *Stencils) Diff(in *field.Array, axis int, out *field.Array) error {
	if err := s.check("diff", in, out, axis); err != nil {
		return err
	}
	data, res := in.Data(), out.Data()
	sub := in.Subdomain()
	stride := domain.Strides(in.Shape())[axis]
	scale := 0.5 / s.grid.D(axis)
	in.Each(func(off int, idx []int) {
		lo, hi := s.neighbours(data, sub, stride, off, idx, axis)
		res[off] = (hi - lo) * scale
	})
	return nil
}

// Laplacian writes the five point Laplacian of in into the interior of out.
func (s *Stencils) Laplacian(in, out *field.Array) error {
	for axis := 0; axis < 2; axis++ {
		if err := s.check("laplacian", in, out, axis); err != nil {
			return err
		}
	}
	data, res := in.Data(), out.Data()
	sub := in.Subdomain()
	strides := domain.Strides(in.Shape())
	in.Each(func(off int, idx []int) {
		var sum float64
		for axis := 0; axis < 2; axis++ {
			lo, hi := s.neighbours(data, sub, strides[axis], off, idx, axis)
			d := s.grid.D(axis)
			sum += (hi - 2*data[off] + lo) / (d * d)
		}
		res[off] = sum
	})
	return nil
}

// Interp moves in to the grid position to. Moving between the center and
// a face averages the two adjacent values.
func (s *Stencils) Interp(in *field.Array, to field.Position, out *field.Array) error {
	var axis, dir int
	switch {
	case in.Position == to:
		if err := out.CopyFrom(in); err != nil {
			return err
		}
		out.Position = to
		return nil
	case in.Position == field.Center && to == field.FaceX:
		axis, dir = 0, 1
	case in.Position == field.FaceX && to == field.Center:
		axis, dir = 0, -1
	case in.Position == field.Center && to == field.FaceY:
		axis, dir = 1, 1
	case in.Position == field.FaceY && to == field.Center:
		axis, dir = 1, -1
	default:
		return dynamo.Configf("stencils", "no interpolation from %s to %s", in.Position, to)
	}
	if err := s.check("interp", in, out, axis); err != nil {
		return err
	}
	data, res := in.Data(), out.Data()
	sub := in.Subdomain()
	stride := domain.Strides(in.Shape())[axis]
	in.Each(func(off int, idx []int) {
		lo, hi := s.neighbours(data, sub, stride, off, idx, axis)
		if dir > 0 {
			res[off] = 0.5 * (data[off] + hi)
		} else {
			res[off] = 0.5 * (lo + data[off])
		}
	})
	out.Position = to
	return nil
}
