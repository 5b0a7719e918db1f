package field

import (
	"context"
	"math"

	"github.com/mjibson/go-dsp/dsputils"
	"github.com/mjibson/go-dsp/fft"

	"github.com/san-kum/flowsim/internal/domain"
	"github.com/san-kum/flowsim/internal/dynamo"
)

// Transformer moves states between physical and spectral space. Every rank
// gathers the global array, transforms it along all axes and keeps its own
// block of the result, so both calls are collective.
type Transformer struct {
	dec *domain.Decomposition
}

func NewTransformer(dec *domain.Decomposition) (*Transformer, error) {
	if _, err := dec.SpectralSubdomain(); err != nil {
		return nil, err
	}
	return &Transformer{dec: dec}, nil
}

// Forward returns the spectral counterpart of a physical state.
func (t *Transformer) Forward(ctx context.Context, s *State) (*State, error) {
	if s.Spectral() {
		return nil, dynamo.Configf("transform", "forward transform of a spectral state")
	}
	out := make([]*Array, 0, len(s.fields))
	for _, f := range s.fields {
		a, err := t.ForwardArray(ctx, f)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return NewState(out...)
}

// Inverse returns the physical counterpart of a spectral state, with halos
// synchronised.
func (t *Transformer) Inverse(ctx context.Context, s *State) (*State, error) {
	if !s.Spectral() {
		return nil, dynamo.Configf("transform", "inverse transform of a physical state")
	}
	out := make([]*Array, 0, len(s.fields))
	for _, f := range s.fields {
		a, err := t.InverseArray(ctx, f)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return NewState(out...)
}

// ForwardArray transforms one physical array.
func (t *Transformer) ForwardArray(ctx context.Context, a *Array) (*Array, error) {
	global, err := t.dec.GatherGlobal(ctx, a.re)
	if err != nil {
		return nil, err
	}
	spec := FFT(dsputils.ToComplex(global), t.dec.Global())

	out, err := NewSpectralArray(t.dec, a.Name, a.Position)
	if err != nil {
		return nil, err
	}
	out.fromGlobal(spec)
	return out, nil
}

// InverseArray transforms one spectral array and keeps the real part.
func (t *Transformer) InverseArray(ctx context.Context, a *Array) (*Array, error) {
	re := make([]float64, len(a.cx))
	im := make([]float64, len(a.cx))
	for i, v := range a.cx {
		re[i], im[i] = real(v), imag(v)
	}
	gre, err := t.dec.GatherSpectral(ctx, re)
	if err != nil {
		return nil, err
	}
	gim, err := t.dec.GatherSpectral(ctx, im)
	if err != nil {
		return nil, err
	}
	global := make([]complex128, len(gre))
	for i := range global {
		global[i] = complex(gre[i], gim[i])
	}
	phys := IFFT(global, t.dec.Global())

	out := NewArray(t.dec, a.Name, a.Position)
	for i, v := range phys {
		gre[i] = real(v)
	}
	if err := t.dec.ScatterGlobal(gre, out.re); err != nil {
		return nil, err
	}
	if err := out.Sync(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// fromGlobal copies this rank's block out of a global row-major array.
func (a *Array) fromGlobal(global []complex128) {
	st := domain.Strides(a.sub.Global)
	a.Each(func(off int, idx []int) {
		g := 0
		for ax := range idx {
			g += (a.sub.GlobalIndex(ax, idx[ax])) * st[ax]
		}
		a.cx[off] = global[g]
	})
}

// FFT is the forward transform of a global row-major array along every axis.
func FFT(x []complex128, shape []int) []complex128 {
	return flatten(fft.FFTN(dsputils.MakeMatrix(append([]complex128(nil), x...), shape)), shape)
}

// IFFT is the normalised inverse of FFT.
func IFFT(x []complex128, shape []int) []complex128 {
	return flatten(fft.IFFTN(dsputils.MakeMatrix(append([]complex128(nil), x...), shape)), shape)
}

func flatten(m *dsputils.Matrix, shape []int) []complex128 {
	n := domain.Shape(shape).Size()
	out := make([]complex128, n)
	idx := make([]int, len(shape))
	for off := range out {
		rem := off
		for ax := len(shape) - 1; ax >= 0; ax-- {
			idx[ax] = rem % shape[ax]
			rem /= shape[ax]
		}
		out[off] = m.Value(idx)
	}
	return out
}

// Wavenumbers returns the angular wavenumbers 2*pi*k/L of an axis with n
// cells and length l, in FFT order.
func Wavenumbers(n int, l float64) []float64 {
	k := make([]float64, n)
	for i := range k {
		m := i
		if i > n/2 {
			m = i - n
		}
		k[i] = 2 * math.Pi * float64(m) / l
	}
	return k
}
