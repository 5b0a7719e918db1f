package shallowwater

import (
	"context"
	"math"

	"github.com/san-kum/flowsim/internal/domain"
	"github.com/san-kum/flowsim/internal/dynamo"
	"github.com/san-kum/flowsim/internal/field"
)

// NewState allocates zeroed u, v and h fields.
func NewState(dec *domain.Decomposition) (*field.State, error) {
	return field.NewState(
		field.NewArray(dec, "u", field.Center),
		field.NewArray(dec, "v", field.Center),
		field.NewArray(dec, "h", field.Center),
	)
}

func uvh(z *field.State) (u, v, h *field.Array, err error) {
	u, v, h = z.Field("u"), z.Field("v"), z.Field("h")
	if u == nil || v == nil || h == nil {
		return nil, nil, nil, dynamo.Configf("shallowwater", "state %v lacks one of u, v, h", z.Names())
	}
	return u, v, h, nil
}

// Energy is the total energy 1/2 * sum(u^2 + v^2 + h^2/csqr) * dA. It is
// collective.
func Energy(ctx context.Context, z *field.State, g Grid, p Params) (float64, error) {
	u, v, h, err := uvh(z)
	if err != nil {
		return 0, err
	}
	var e float64
	for _, q := range []struct {
		a *field.Array
		w float64
	}{{u, 1}, {v, 1}, {h, 1 / p.Csqr}} {
		d, err := q.a.Dot(ctx, q.a)
		if err != nil {
			return 0, err
		}
		e += q.w * d
	}
	return 0.5 * e * g.CellArea(), nil
}

// MaxCFL is the largest Courant number of the flow plus gravity waves for
// a step of dt.
func MaxCFL(ctx context.Context, z *field.State, g Grid, p Params, dt float64) (float64, error) {
	u, v, _, err := uvh(z)
	if err != nil {
		return 0, err
	}
	mu, err := u.MaxAbs(ctx)
	if err != nil {
		return 0, err
	}
	mv, err := v.MaxAbs(ctx)
	if err != nil {
		return 0, err
	}
	d := math.Min(g.D(0), g.D(1))
	return (math.Max(mu, mv) + math.Sqrt(p.Csqr)) * math.Abs(dt) / d, nil
}
