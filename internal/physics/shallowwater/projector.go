package shallowwater

import (
	"context"
	"math"
	"math/cmplx"

	"github.com/san-kum/flowsim/internal/domain"
	"github.com/san-kum/flowsim/internal/dynamo"
	"github.com/san-kum/flowsim/internal/field"
)

// GeostrophicProjector projects a state onto the steady geostrophic mode
// of the discretised linear system. Per wavenumber that mode is
//
//	q0 = (-i ky, i kx, f)
//
// with the centered difference wavenumbers k = sin(k dx)/dx. The
// projection is orthogonal in the energy inner product, which weights h
// by 1/csqr. Where q0 vanishes every state is steady and is kept as is.
type GeostrophicProjector struct {
	params Params
	tr     *field.Transformer
	kx, ky []float64
}

func NewGeostrophicProjector(dec *domain.Decomposition, g Grid, p Params) (*GeostrophicProjector, error) {
	if !g.Periodic {
		return nil, dynamo.Configf("geostrophic-projector", "needs a periodic grid")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	tr, err := field.NewTransformer(dec)
	if err != nil {
		return nil, err
	}
	return &GeostrophicProjector{
		params: p,
		tr:     tr,
		kx:     discreteWavenumbers(g.N[0], g.L[0]),
		ky:     discreteWavenumbers(g.N[1], g.L[1]),
	}, nil
}

func discreteWavenumbers(n int, l float64) []float64 {
	d := l / float64(n)
	k := field.Wavenumbers(n, l)
	for i := range k {
		k[i] = math.Sin(k[i]*d) / d
	}
	return k
}

// Project returns the geostrophic part of z. It is collective.
func (p *GeostrophicProjector) Project(ctx context.Context, z *field.State) (*field.State, error) {
	spec, err := p.tr.Forward(ctx, z)
	if err != nil {
		return nil, err
	}
	u, v, h, err := uvh(spec)
	if err != nil {
		return nil, err
	}
	f, csqr := p.params.F0, p.params.Csqr
	uc, vc, hc := u.Complex(), v.Complex(), h.Complex()
	sub := h.Subdomain()

	h.Each(func(off int, idx []int) {
		kx := p.kx[sub.GlobalIndex(0, idx[0])]
		ky := p.ky[sub.GlobalIndex(1, idx[1])]
		norm := kx*kx + ky*ky + f*f/csqr
		if norm == 0 {
			return
		}
		qu, qv, qh := complex(0, -ky), complex(0, kx), complex(f, 0)
		amp := (cmplx.Conj(qu)*uc[off] + cmplx.Conj(qv)*vc[off] + qh*hc[off]/complex(csqr, 0)) / complex(norm, 0)
		uc[off], vc[off], hc[off] = amp*qu, amp*qv, amp*qh
	})
	return p.tr.Inverse(ctx, spec)
}
