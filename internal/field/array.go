package field

import (
	"context"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/cmplxs"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/flowsim/internal/domain"
	"github.com/san-kum/flowsim/internal/dynamo"
)

// Position tags where on the grid cell a variable lives.
type Position int

const (
	Center Position = iota
	FaceX
	FaceY
)

func (p Position) String() string {
	switch p {
	case FaceX:
		return "face-x"
	case FaceY:
		return "face-y"
	default:
		return "center"
	}
}

// Array is one named variable on the calling rank's block. Physical arrays
// store real values on the Subdomain including halo cells; spectral arrays
// store complex values on the spectral layout, which has no halo.
type Array struct {
	Name     string
	Position Position

	dec      *domain.Decomposition
	sub      domain.Subdomain
	shape    domain.Shape
	strides  []int
	spectral bool

	re []float64
	cx []complex128
}

// NewArray allocates a zeroed physical array.
func NewArray(dec *domain.Decomposition, name string, pos Position) *Array {
	sub := dec.Subdomain()
	shape := sub.LocalShape()
	return &Array{
		Name:     name,
		Position: pos,
		dec:      dec,
		sub:      sub,
		shape:    shape,
		strides:  domain.Strides(shape),
		re:       make([]float64, shape.Size()),
	}
}

// NewSpectralArray allocates a zeroed array on the spectral layout.
func NewSpectralArray(dec *domain.Decomposition, name string, pos Position) (*Array, error) {
	sub, err := dec.SpectralSubdomain()
	if err != nil {
		return nil, err
	}
	shape := sub.LocalShape()
	return &Array{
		Name:     name,
		Position: pos,
		dec:      dec,
		sub:      sub,
		shape:    shape,
		strides:  domain.Strides(shape),
		spectral: true,
		cx:       make([]complex128, shape.Size()),
	}, nil
}

func (a *Array) Spectral() bool                       { return a.spectral }
func (a *Array) Shape() domain.Shape                  { return a.shape.Clone() }
func (a *Array) Subdomain() domain.Subdomain          { return a.sub }
func (a *Array) Decomposition() *domain.Decomposition { return a.dec }

// Data exposes the backing values of a physical array.
func (a *Array) Data() []float64 { return a.re }

// Complex exposes the backing values of a spectral array.
func (a *Array) Complex() []complex128 { return a.cx }

// Index returns the flat offset of a local multi-index.
func (a *Array) Index(idx ...int) int {
	off := 0
	for i, v := range idx {
		off += v * a.strides[i]
	}
	return off
}

func (a *Array) At(idx ...int) float64     { return a.re[a.Index(idx...)] }
func (a *Array) Set(v float64, idx ...int) { a.re[a.Index(idx...)] = v }

func (a *Array) CAt(idx ...int) complex128     { return a.cx[a.Index(idx...)] }
func (a *Array) CSet(v complex128, idx ...int) { a.cx[a.Index(idx...)] = v }

// Inner is the region of owned cells in local indices.
func (a *Array) Inner() domain.Region { return a.sub.Inner() }

// Each calls fn for every interior cell with its local index.
func (a *Array) Each(fn func(off int, idx []int)) {
	idx := make([]int, len(a.shape))
	domain.ForEach(a.shape, a.Inner(), func(off int) {
		rem := off
		for ax := len(a.shape) - 1; ax >= 0; ax-- {
			idx[ax] = rem % a.shape[ax]
			rem /= a.shape[ax]
		}
		fn(off, idx)
	})
}

func (a *Array) Clone() *Array {
	out := *a
	if a.re != nil {
		out.re = append([]float64(nil), a.re...)
	}
	if a.cx != nil {
		out.cx = append([]complex128(nil), a.cx...)
	}
	return &out
}

func (a *Array) Zero() { a.Fill(0) }

func (a *Array) Fill(v float64) {
	for i := range a.re {
		a.re[i] = v
	}
	for i := range a.cx {
		a.cx[i] = complex(v, 0)
	}
}

// CopyFrom overwrites a with the values of b.
func (a *Array) CopyFrom(b *Array) error {
	if err := a.compatible(b); err != nil {
		return err
	}
	copy(a.re, b.re)
	copy(a.cx, b.cx)
	return nil
}

// Sync refreshes the halo cells from the neighbouring ranks.
func (a *Array) Sync(ctx context.Context, flatAxes ...int) error {
	if a.spectral {
		return nil
	}
	return a.dec.Sync(ctx, a.re, a.shape, flatAxes...)
}

func (a *Array) compatible(b *Array) error {
	switch {
	case a.dec != b.dec:
		return dynamo.Configf("field", "%s and %s live on different decompositions", a.Name, b.Name)
	case a.spectral != b.spectral:
		return dynamo.Configf("field", "%s and %s differ in spectral flag", a.Name, b.Name)
	case !a.shape.Equal(b.shape):
		return dynamo.Configf("field", "%s shape %v does not match %s shape %v", a.Name, a.shape, b.Name, b.shape)
	}
	return nil
}

// Add sets a = a + b.
func (a *Array) Add(b *Array) error {
	if err := a.compatible(b); err != nil {
		return err
	}
	if a.spectral {
		cmplxs.Add(a.cx, b.cx)
	} else {
		floats.Add(a.re, b.re)
	}
	return nil
}

// Sub sets a = a - b.
func (a *Array) Sub(b *Array) error {
	if err := a.compatible(b); err != nil {
		return err
	}
	if a.spectral {
		cmplxs.Sub(a.cx, b.cx)
	} else {
		floats.Sub(a.re, b.re)
	}
	return nil
}

// Mul sets a = a * b elementwise.
func (a *Array) Mul(b *Array) error {
	if err := a.compatible(b); err != nil {
		return err
	}
	if a.spectral {
		cmplxs.Mul(a.cx, b.cx)
	} else {
		floats.Mul(a.re, b.re)
	}
	return nil
}

// Scale sets a = s * a.
func (a *Array) Scale(s float64) {
	if a.spectral {
		cmplxs.ScaleReal(s, a.cx)
		return
	}
	floats.Scale(s, a.re)
}

// AddScaled sets a = a + s*b.
func (a *Array) AddScaled(s float64, b *Array) error {
	if err := a.compatible(b); err != nil {
		return err
	}
	if a.spectral {
		cmplxs.AddScaled(a.cx, complex(s, 0), b.cx)
	} else {
		floats.AddScaled(a.re, s, b.re)
	}
	return nil
}

func (a *Array) HasNaN() bool {
	if a.spectral {
		return cmplxs.HasNaN(a.cx)
	}
	for _, v := range a.re {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

func (a *Array) interior() []float64 {
	return domain.Pack(a.re, a.shape, a.Inner())
}

func (a *Array) interiorComplex() []complex128 {
	out := make([]complex128, 0, a.Inner().Size())
	domain.ForEach(a.shape, a.Inner(), func(off int) {
		out = append(out, a.cx[off])
	})
	return out
}

func (a *Array) physicalOnly(op string) error {
	if a.spectral {
		return dynamo.Configf("field", "%s of spectral array %s", op, a.Name)
	}
	return nil
}

// Sum is the global sum over interior cells.
func (a *Array) Sum(ctx context.Context) (float64, error) {
	if err := a.physicalOnly("sum"); err != nil {
		return 0, err
	}
	return a.dec.Reduce(ctx, floats.Sum(a.interior()), domain.Sum)
}

// Integral is the global sum scaled by the cell volume.
func (a *Array) Integral(ctx context.Context, cellVolume float64) (float64, error) {
	s, err := a.Sum(ctx)
	return s * cellVolume, err
}

// Max is the global maximum over interior cells.
func (a *Array) Max(ctx context.Context) (float64, error) {
	if err := a.physicalOnly("max"); err != nil {
		return 0, err
	}
	return a.dec.Reduce(ctx, floats.Max(a.interior()), domain.Max)
}

// Min is the global minimum over interior cells.
func (a *Array) Min(ctx context.Context) (float64, error) {
	if err := a.physicalOnly("min"); err != nil {
		return 0, err
	}
	return a.dec.Reduce(ctx, floats.Min(a.interior()), domain.Min)
}

// MaxAbs is the global maximum of |a| over interior cells.
func (a *Array) MaxAbs(ctx context.Context) (float64, error) {
	local := 0.0
	if a.spectral {
		local = cmplx.Abs(cmplxs.MaxAbs(a.interiorComplex()))
	} else {
		for _, v := range a.interior() {
			local = math.Max(local, math.Abs(v))
		}
	}
	return a.dec.Reduce(ctx, local, domain.Max)
}

// Dot is the global inner product over interior cells. For spectral arrays
// it is the real part of sum(conj(a) * b).
func (a *Array) Dot(ctx context.Context, b *Array) (float64, error) {
	if err := a.compatible(b); err != nil {
		return 0, err
	}
	var local float64
	if a.spectral {
		local = real(cmplxs.Dot(a.interiorComplex(), b.interiorComplex()))
	} else {
		local = floats.Dot(a.interior(), b.interior())
	}
	return a.dec.Reduce(ctx, local, domain.Sum)
}

// NormL2 is the global Euclidean norm over interior cells.
func (a *Array) NormL2(ctx context.Context) (float64, error) {
	d, err := a.Dot(ctx, a)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(d), nil
}
