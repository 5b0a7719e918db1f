package experiment

import (
	"context"
	"maps"
	"slices"

	"github.com/san-kum/flowsim/internal/config"
	"github.com/san-kum/flowsim/internal/domain"
	"github.com/san-kum/flowsim/internal/dynamo"
	"github.com/san-kum/flowsim/internal/field"
	sw "github.com/san-kum/flowsim/internal/physics/shallowwater"
)

// InitFunc fills a fresh state with the initial condition of a scenario.
// It is collective.
type InitFunc func(ctx context.Context, z *field.State, cfg *config.Config) error

var scenarios = map[string]InitFunc{
	config.ScenarioJet: func(ctx context.Context, z *field.State, cfg *config.Config) error {
		return sw.GeostrophicJet(ctx, z, cfg.GridSpec(), cfg.Physics, cfg.Initial.Amplitude, cfg.Initial.Perturbation)
	},
	config.ScenarioBump: func(ctx context.Context, z *field.State, cfg *config.Config) error {
		return sw.GaussianBump(ctx, z, cfg.GridSpec(), cfg.Initial.Amplitude, cfg.Initial.Width)
	},
}

func Scenarios() []string { return slices.Sorted(maps.Keys(scenarios)) }

// InitialState builds the initial fields of cfg.Scenario on dec.
func InitialState(ctx context.Context, dec *domain.Decomposition, cfg *config.Config) (*field.State, error) {
	fill, ok := scenarios[cfg.Scenario]
	if !ok {
		return nil, dynamo.Configf("experiment", "unknown scenario %q", cfg.Scenario)
	}
	z, err := sw.NewState(dec)
	if err != nil {
		return nil, err
	}
	if err := fill(ctx, z, cfg); err != nil {
		return nil, err
	}
	return z, nil
}
