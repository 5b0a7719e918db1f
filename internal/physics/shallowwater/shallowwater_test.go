package shallowwater

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/flowsim/internal/domain"
	"github.com/san-kum/flowsim/internal/dynamo"
	"github.com/san-kum/flowsim/internal/field"
	"github.com/san-kum/flowsim/internal/model"
	"github.com/san-kum/flowsim/internal/modules"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	return logrus.NewEntry(l)
}

func TestDiffPeriodicSine(t *testing.T) {
	g := NewGrid(32, 1)
	for _, size := range []int{1, 4} {
		t.Run(fmt.Sprintf("ranks=%d", size), func(t *testing.T) {
			err := domain.Run(context.Background(), size, func(ctx context.Context, comm domain.Communicator) error {
				dec, err := g.Decompose(comm, nil)
				if err != nil {
					return err
				}
				in := field.NewArray(dec, "h", field.Center)
				out := field.NewArray(dec, "dh", field.Center)
				k := 2 * math.Pi / g.L[0]
				eachCell(in, g, func(off int, x, _ float64) { in.Data()[off] = math.Sin(k * x) })
				if err := in.Sync(ctx); err != nil {
					return err
				}
				s := NewStencils(g, dec)
				if err := s.Diff(in, 0, out); err != nil {
					return err
				}
				d := g.D(0)
				var bad error
				eachCell(out, g, func(off int, x, _ float64) {
					want := math.Sin(k*d) / d * math.Cos(k*x)
					if math.Abs(out.Data()[off]-want) > 1e-12 && bad == nil {
						bad = fmt.Errorf("rank %d: d/dx at x=%v is %v, want %v", comm.Rank(), x, out.Data()[off], want)
					}
				})
				return bad
			})
			require.NoError(t, err)
		})
	}
}

func TestDiffWallTreatsOutsideAsZero(t *testing.T) {
	g := Grid{N: [2]int{8, 8}, L: [2]float64{1, 1}}
	dec, err := g.Decompose(domain.Serial(), nil)
	require.NoError(t, err)

	in := field.NewArray(dec, "h", field.Center)
	in.Fill(1)
	out := field.NewArray(dec, "dh", field.Center)
	require.NoError(t, NewStencils(g, dec).Diff(in, 0, out))

	d := g.D(0)
	// local index 1 is the first interior cell
	assert.InDelta(t, 0.5/d, out.At(1, 3), 1e-12)
	assert.InDelta(t, 0, out.At(4, 3), 1e-12)
	assert.InDelta(t, -0.5/d, out.At(8, 3), 1e-12)
}

func TestLaplacianOfSine(t *testing.T) {
	g := NewGrid(16, 2)
	dec, err := g.Decompose(domain.Serial(), nil)
	require.NoError(t, err)
	in := field.NewArray(dec, "u", field.Center)
	out := field.NewArray(dec, "lap", field.Center)
	k := 2 * math.Pi / g.L[1]
	eachCell(in, g, func(off int, _, y float64) { in.Data()[off] = math.Sin(k * y) })
	require.NoError(t, in.Sync(context.Background()))
	require.NoError(t, NewStencils(g, dec).Laplacian(in, out))

	d := g.D(1)
	factor := 2 * (math.Cos(k*d) - 1) / (d * d)
	eachCell(out, g, func(off int, _, y float64) {
		assert.InDelta(t, factor*math.Sin(k*y), out.Data()[off], 1e-10)
	})
}

func TestInterp(t *testing.T) {
	g := NewGrid(8, 1)
	dec, err := g.Decompose(domain.Serial(), nil)
	require.NoError(t, err)
	s := NewStencils(g, dec)

	in := field.NewArray(dec, "u", field.Center)
	in.Each(func(off int, idx []int) { in.Data()[off] = float64(idx[0]) })
	require.NoError(t, in.Sync(context.Background()))

	out := field.NewArray(dec, "u", field.Center)
	require.NoError(t, s.Interp(in, field.FaceX, out))
	assert.Equal(t, field.FaceX, out.Position)
	assert.InDelta(t, 2.5, out.At(2, 3), 1e-12)

	back := field.NewArray(dec, "u", field.FaceX)
	require.NoError(t, s.Interp(out, field.FaceX, back))
	assert.InDelta(t, 2.5, back.At(2, 3), 1e-12)

	assert.ErrorIs(t, s.Interp(out, field.FaceY, back), dynamo.ErrConfiguration)
}

func TestEnergyConservation(t *testing.T) {
	p := Params{F0: 1, Csqr: 1}
	cases := []struct {
		name     string
		periodic bool
	}{
		{"periodic", true},
		{"walls", false},
	}
	for _, tc := range cases {
		final := map[int]float64{}
		for _, size := range []int{1, 4} {
			t.Run(fmt.Sprintf("%s/ranks=%d", tc.name, size), func(t *testing.T) {
				g := Grid{N: [2]int{16, 16}, L: [2]float64{1, 1}, Periodic: tc.periodic}
				err := domain.Run(context.Background(), size, func(ctx context.Context, comm domain.Communicator) error {
					dec, err := g.Decompose(comm, nil)
					if err != nil {
						return err
					}
					z, err := NewState(dec)
					if err != nil {
						return err
					}
					if err := GaussianBump(ctx, z, g, 0.1, 0.15); err != nil {
						return err
					}
					m, err := NewModel(dec, Options{Grid: g, Params: p, Dt: 1e-3, Order: 3, Log: quietLog()}, z)
					if err != nil {
						return err
					}
					logger := NewEnergyLogger(g, p, 50, quietLog())
					m.AddDiagnostic(logger)
					if err := logger.Observe(ctx, m.State()); err != nil {
						return err
					}
					if err := m.Run(ctx, model.RunSpec{Steps: 500}); err != nil {
						return err
					}
					if drift := logger.Drift().Value(); drift > 1e-3 {
						return fmt.Errorf("energy drift %v", drift)
					}
					if comm.Rank() == 0 {
						final[size] = logger.Drift().Current()
					}
					return nil
				})
				require.NoError(t, err)
			})
		}
		assert.InEpsilon(t, final[1], final[4], 1e-10, tc.name)
	}
}

func TestGeostrophicJetIsSteady(t *testing.T) {
	p := Params{F0: 1, Csqr: 1}
	for _, periodic := range []bool{true, false} {
		g := Grid{N: [2]int{16, 16}, L: [2]float64{1, 1}, Periodic: periodic}
		err := domain.Run(context.Background(), 2, func(ctx context.Context, comm domain.Communicator) error {
			dec, err := g.Decompose(comm, nil)
			if err != nil {
				return err
			}
			z, err := NewState(dec)
			if err != nil {
				return err
			}
			if err := GeostrophicJet(ctx, z, g, p, 0.1, 0.02); err != nil {
				return err
			}
			m, err := NewModel(dec, Options{Grid: g, Params: p, Dt: 1e-2, Log: quietLog()}, z)
			if err != nil {
				return err
			}
			if err := m.Run(ctx, model.RunSpec{Steps: 100}); err != nil {
				return err
			}
			diff, err := m.State().Z.NormOfDiff(ctx, z)
			if err != nil {
				return err
			}
			if diff > 1e-10 {
				return fmt.Errorf("periodic=%v: jet moved by %v", periodic, diff)
			}
			return nil
		})
		require.NoError(t, err)
	}
}

func TestGeostrophicProjector(t *testing.T) {
	p := Params{F0: 2, Csqr: 0.5}
	g := NewGrid(16, 1)
	for _, size := range []int{1, 2, 4} {
		t.Run(fmt.Sprintf("ranks=%d", size), func(t *testing.T) {
			err := domain.Run(context.Background(), size, func(ctx context.Context, comm domain.Communicator) error {
				dec, err := g.Decompose(comm, nil)
				if err != nil {
					return err
				}
				proj, err := NewGeostrophicProjector(dec, g, p)
				if err != nil {
					return err
				}

				jet, err := NewState(dec)
				if err != nil {
					return err
				}
				if err := GeostrophicJet(ctx, jet, g, p, 0.1, 0.05); err != nil {
					return err
				}
				pj, err := proj.Project(ctx, jet)
				if err != nil {
					return err
				}
				if d, err := pj.NormOfDiff(ctx, jet); err != nil || d > 1e-10 {
					return fmt.Errorf("balanced state changed by projection: %v %v", d, err)
				}

				bump, err := NewState(dec)
				if err != nil {
					return err
				}
				if err := GaussianBump(ctx, bump, g, 0.1, 0.1); err != nil {
					return err
				}
				once, err := proj.Project(ctx, bump)
				if err != nil {
					return err
				}
				twice, err := proj.Project(ctx, once)
				if err != nil {
					return err
				}
				if d, err := twice.NormOfDiff(ctx, once); err != nil || d > 1e-10 {
					return fmt.Errorf("projector not idempotent: %v %v", d, err)
				}
				if d, err := once.NormOfDiff(ctx, bump); err != nil || d < 1e-3 {
					return fmt.Errorf("projection of a bump at rest left it unchanged: %v %v", d, err)
				}

				// the projected bump is steady under the linear dynamics
				m, err := NewModel(dec, Options{Grid: g, Params: p, Dt: 1e-2, Log: quietLog()}, once)
				if err != nil {
					return err
				}
				if err := m.Run(ctx, model.RunSpec{Steps: 50}); err != nil {
					return err
				}
				if d, err := m.State().Z.NormOfDiff(ctx, once); err != nil || d > 1e-10 {
					return fmt.Errorf("projected state evolved by %v %v", d, err)
				}
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestProjectorNeedsPeriodicGrid(t *testing.T) {
	g := Grid{N: [2]int{8, 8}, L: [2]float64{1, 1}}
	dec, err := g.Decompose(domain.Serial(), nil)
	require.NoError(t, err)
	_, err = NewGeostrophicProjector(dec, g, DefaultParams())
	assert.ErrorIs(t, err, dynamo.ErrConfiguration)
}

func TestAdvectionFollowsControl(t *testing.T) {
	g := NewGrid(16, 1)
	dec, err := g.Decompose(domain.Serial(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	z, err := NewState(dec)
	require.NoError(t, err)
	require.NoError(t, GeostrophicJet(ctx, z, g, DefaultParams(), 0.1, 0.05))

	step := func(p Params, control float64) *field.State {
		m, err := NewModel(dec, Options{Grid: g, Params: p, Dt: 1e-2, Order: 1, Log: quietLog()}, z)
		require.NoError(t, err)
		require.NoError(t, m.StepWith(ctx, control))
		return m.State().Z
	}
	nonlinear := Params{F0: 1, Csqr: 1, Ro: 1}
	linear := step(DefaultParams(), 1)

	d, err := step(nonlinear, 0).NormOfDiff(ctx, linear)
	require.NoError(t, err)
	assert.Equal(t, 0.0, d)

	d, err = step(nonlinear, 1).NormOfDiff(ctx, linear)
	require.NoError(t, err)
	assert.Greater(t, d, 1e-8)
}

func TestFrictionRemovesEnergy(t *testing.T) {
	g := NewGrid(16, 1)
	p := Params{F0: 1, Csqr: 1, Ah: 1e-2}
	dec, err := g.Decompose(domain.Serial(), nil)
	require.NoError(t, err)
	ctx := context.Background()

	z, err := NewState(dec)
	require.NoError(t, err)
	require.NoError(t, GeostrophicJet(ctx, z, g, p, 0.1, 0))
	e0, err := Energy(ctx, z, g, p)
	require.NoError(t, err)

	m, err := NewModel(dec, Options{Grid: g, Params: p, Dt: 1e-2, Log: quietLog()}, z)
	require.NoError(t, err)
	require.NoError(t, m.Run(ctx, model.RunSpec{Duration: 1}))

	e1, err := Energy(ctx, m.State().Z, g, p)
	require.NoError(t, err)
	assert.Less(t, e1, 0.99*e0)
}

func TestConfigurationErrors(t *testing.T) {
	_, err := Grid{N: [2]int{1, 8}, L: [2]float64{1, 1}}.Decompose(domain.Serial(), nil)
	assert.ErrorIs(t, err, dynamo.ErrConfiguration)

	assert.ErrorIs(t, Params{Csqr: 0}.Validate(), dynamo.ErrConfiguration)
	assert.ErrorIs(t, Params{Csqr: 1, Ro: -1}.Validate(), dynamo.ErrConfiguration)
	assert.ErrorIs(t, Params{Csqr: 1, Ah: math.NaN()}.Validate(), dynamo.ErrConfiguration)

	g := NewGrid(8, 1)
	dec, err := g.Decompose(domain.Serial(), nil)
	require.NoError(t, err)
	z, err := NewState(dec)
	require.NoError(t, err)
	assert.ErrorIs(t, GeostrophicJet(context.Background(), z, g, Params{Csqr: 1}, 1, 0), dynamo.ErrConfiguration)

	_, err = NewModel(dec, Options{Grid: g, Params: DefaultParams(), Dt: 0.1, Order: 7}, z)
	assert.ErrorIs(t, err, dynamo.ErrConfiguration)

	lt := NewLinearTendency(DefaultParams())
	err = modules.NewPipeline(lt).Setup(&modules.Settings{Decomposition: dec, Log: quietLog()})
	assert.ErrorIs(t, err, dynamo.ErrConfiguration)
}

func TestMaxCFL(t *testing.T) {
	g := NewGrid(10, 1)
	dec, err := g.Decompose(domain.Serial(), nil)
	require.NoError(t, err)
	z, err := NewState(dec)
	require.NoError(t, err)
	z.Field("v").Fill(-3)

	cfl, err := MaxCFL(context.Background(), z, g, Params{F0: 1, Csqr: 4}, -0.01)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, cfl, 1e-12)
}
