package field

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/flowsim/internal/domain"
	"github.com/san-kum/flowsim/internal/dynamo"
)

func serialDecomposition(t *testing.T, shape []int, halo int) *domain.Decomposition {
	t.Helper()
	d, err := domain.New(domain.Serial(), shape, nil, halo)
	require.NoError(t, err)
	return d
}

func TestArrayArithmetic(t *testing.T) {
	d := serialDecomposition(t, []int{4, 4}, 1)
	a := NewArray(d, "a", Center)
	b := NewArray(d, "b", Center)
	a.Fill(2)
	b.Fill(3)

	require.NoError(t, a.Add(b))
	assert.Equal(t, 5.0, a.At(1, 1))
	require.NoError(t, a.Sub(b))
	assert.Equal(t, 2.0, a.At(2, 3))
	require.NoError(t, a.Mul(b))
	assert.Equal(t, 6.0, a.At(0, 0))
	a.Scale(0.5)
	assert.Equal(t, 3.0, a.At(4, 4))
	require.NoError(t, a.AddScaled(-1, b))
	assert.Equal(t, 0.0, a.At(5, 5))
}

func TestArrayLayoutMismatch(t *testing.T) {
	d1 := serialDecomposition(t, []int{4, 4}, 1)
	d2 := serialDecomposition(t, []int{4, 4}, 1)

	phys := NewArray(d1, "u", Center)
	other := NewArray(d2, "u", Center)
	spec, err := NewSpectralArray(d1, "u", Center)
	require.NoError(t, err)

	assert.ErrorIs(t, phys.Add(other), dynamo.ErrConfiguration)
	assert.ErrorIs(t, phys.Add(spec), dynamo.ErrConfiguration)

	s1, err := NewState(NewArray(d1, "u", Center), NewArray(d1, "v", Center))
	require.NoError(t, err)
	s2, err := NewState(NewArray(d1, "u", Center), NewArray(d1, "h", Center))
	require.NoError(t, err)
	assert.ErrorIs(t, s1.Add(s2), dynamo.ErrConfiguration)

	_, err = NewState(NewArray(d1, "u", Center), NewArray(d1, "u", Center))
	assert.ErrorIs(t, err, dynamo.ErrConfiguration)
}

func TestReductionsIgnoreHalo(t *testing.T) {
	err := domain.Run(context.Background(), 4, func(ctx context.Context, comm domain.Communicator) error {
		d, err := domain.New(comm, []int{8, 8}, nil, 2)
		if err != nil {
			return err
		}
		a := NewArray(d, "h", Center)
		a.Fill(100)
		a.Each(func(off int, idx []int) {
			a.Data()[off] = float64(comm.Rank() + 1)
		})

		sum, err := a.Sum(ctx)
		if err != nil {
			return err
		}
		// 16 cells per rank
		if want := 16.0 * (1 + 2 + 3 + 4); sum != want {
			return fmt.Errorf("sum = %v, want %v", sum, want)
		}
		maxv, err := a.Max(ctx)
		if err != nil {
			return err
		}
		minv, err := a.Min(ctx)
		if err != nil {
			return err
		}
		if maxv != 4 || minv != 1 {
			return fmt.Errorf("max/min = %v/%v", maxv, minv)
		}
		norm, err := a.NormL2(ctx)
		if err != nil {
			return err
		}
		if want := math.Sqrt(16 * (1 + 4 + 9 + 16)); math.Abs(norm-want) > 1e-12 {
			return fmt.Errorf("norm = %v, want %v", norm, want)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestStateNormOfDiff(t *testing.T) {
	d := serialDecomposition(t, []int{4, 4}, 1)
	mk := func(v float64) *State {
		u := NewArray(d, "u", FaceX)
		h := NewArray(d, "h", Center)
		u.Fill(v)
		h.Fill(v)
		s, err := NewState(u, h)
		require.NoError(t, err)
		return s
	}
	ctx := context.Background()

	diff, err := mk(1).NormOfDiff(ctx, mk(1))
	require.NoError(t, err)
	assert.Zero(t, diff)

	diff, err = mk(1).NormOfDiff(ctx, mk(3))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, diff, 1e-12)

	diff, err = mk(0).NormOfDiff(ctx, mk(0))
	require.NoError(t, err)
	assert.Zero(t, diff)
}

func TestStateCloneIsDeep(t *testing.T) {
	d := serialDecomposition(t, []int{4, 4}, 1)
	s, err := NewState(NewArray(d, "u", Center))
	require.NoError(t, err)

	c := s.Clone()
	c.Field("u").Fill(7)
	assert.Equal(t, 0.0, s.Field("u").At(2, 2))
	assert.Nil(t, s.Field("missing"))
	assert.False(t, s.HasNaN())

	c.Field("u").Set(math.NaN(), 1, 1)
	assert.True(t, c.HasNaN())
}

func TestFFTRoundTrip(t *testing.T) {
	shapes := [][]int{{8}, {8, 6}, {4, 6, 5}}
	for _, shape := range shapes {
		t.Run(fmt.Sprint(shape), func(t *testing.T) {
			n := domain.Shape(shape).Size()
			x := make([]complex128, n)
			for i := range x {
				x[i] = complex(math.Sin(float64(i)), math.Cos(3*float64(i)))
			}
			back := IFFT(FFT(x, shape), shape)
			for i := range x {
				assert.Less(t, cmplx.Abs(back[i]-x[i]), 1e-10)
			}
		})
	}
}

func TestFFTConstant(t *testing.T) {
	x := make([]complex128, 12)
	for i := range x {
		x[i] = 2
	}
	y := FFT(x, []int{3, 4})
	assert.InDelta(t, 24.0, real(y[0]), 1e-12)
	for _, v := range y[1:] {
		assert.Less(t, cmplx.Abs(v), 1e-12)
	}
}

func TestTransformerRoundTrip(t *testing.T) {
	for _, size := range []int{1, 2, 4} {
		t.Run(fmt.Sprintf("ranks=%d", size), func(t *testing.T) {
			err := domain.Run(context.Background(), size, func(ctx context.Context, comm domain.Communicator) error {
				d, err := domain.New(comm, []int{8, 12}, nil, 1)
				if err != nil {
					return err
				}
				u := NewArray(d, "u", Center)
				sub := d.Subdomain()
				u.Each(func(off int, idx []int) {
					i, j := sub.GlobalIndex(0, idx[0]), sub.GlobalIndex(1, idx[1])
					u.Data()[off] = math.Sin(2*math.Pi*float64(i)/8) * math.Cos(2*math.Pi*float64(j)/12)
				})
				if err := u.Sync(ctx); err != nil {
					return err
				}
				z, err := NewState(u)
				if err != nil {
					return err
				}

				tr, err := NewTransformer(d)
				if err != nil {
					return err
				}
				zhat, err := tr.Forward(ctx, z)
				if err != nil {
					return err
				}
				if !zhat.Spectral() {
					return fmt.Errorf("forward result is not spectral")
				}
				back, err := tr.Inverse(ctx, zhat)
				if err != nil {
					return err
				}
				for i, v := range back.Field("u").Data() {
					if math.Abs(v-u.Data()[i]) > 1e-10 {
						return fmt.Errorf("rank %d cell %d: %v != %v", comm.Rank(), i, v, u.Data()[i])
					}
				}
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestWavenumbers(t *testing.T) {
	k := Wavenumbers(4, 2*math.Pi)
	assert.Equal(t, []float64{0, 1, 2, -1}, k)
}
