package balance

import (
	"context"

	"github.com/san-kum/flowsim/internal/field"
)

// Projector maps a state onto a subspace. Implementations are collective
// when the state is decomposed.
type Projector interface {
	Project(ctx context.Context, z *field.State) (*field.State, error)
}

// ProjectorFunc adapts a function to a Projector.
type ProjectorFunc func(ctx context.Context, z *field.State) (*field.State, error)

func (f ProjectorFunc) Project(ctx context.Context, z *field.State) (*field.State, error) {
	return f(ctx, z)
}

// Identity returns a copy of its input.
var Identity = ProjectorFunc(func(_ context.Context, z *field.State) (*field.State, error) {
	return z.Clone(), nil
})
