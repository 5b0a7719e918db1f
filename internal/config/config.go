package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/flowsim/internal/balance"
	"github.com/san-kum/flowsim/internal/dynamo"
	"github.com/san-kum/flowsim/internal/integrators"
	"github.com/san-kum/flowsim/internal/model"
	sw "github.com/san-kum/flowsim/internal/physics/shallowwater"
)

// EnvPrefix is prepended to every environment override, e.g. FLOWSIM_DT.
const EnvPrefix = "FLOWSIM_"

const (
	DefaultDt       = 0.01
	DefaultDuration = 1.0
	DefaultN        = 32
	DefaultOrder    = 3
	DefaultOutput   = "runs"
)

// Initial conditions.
const (
	ScenarioJet  = "jet"
	ScenarioBump = "bump"
)

type Config struct {
	Scenario string  `yaml:"scenario" toml:"scenario" env:"SCENARIO"`
	Dt       float64 `yaml:"dt" toml:"dt" env:"DT"`
	// Exactly one of Steps and Duration is set.
	Steps         int     `yaml:"steps,omitempty" toml:"steps,omitempty" env:"STEPS"`
	Duration      float64 `yaml:"duration,omitempty" toml:"duration,omitempty" env:"DURATION"`
	Order         int     `yaml:"order" toml:"order" env:"ORDER"`
	Epsilon       float64 `yaml:"epsilon" toml:"epsilon" env:"EPSILON"`
	Ranks         int     `yaml:"ranks" toml:"ranks" env:"RANKS"`
	EnergyEvery   int     `yaml:"energy_every" toml:"energy_every" env:"ENERGY_EVERY"`
	ValidateState bool    `yaml:"validate_state" toml:"validate_state" env:"VALIDATE_STATE"`
	Output        string  `yaml:"output" toml:"output" env:"OUTPUT"`

	Grid    GridConfig     `yaml:"grid" toml:"grid" envPrefix:"GRID_"`
	Physics sw.Params      `yaml:"physics" toml:"physics" envPrefix:"PHYSICS_"`
	Initial InitialConfig  `yaml:"initial" toml:"initial" envPrefix:"INITIAL_"`
	Balance balance.Config `yaml:"balance" toml:"balance" envPrefix:"BALANCE_"`
}

type GridConfig struct {
	Nx       int     `yaml:"nx" toml:"nx" env:"NX"`
	Ny       int     `yaml:"ny" toml:"ny" env:"NY"`
	Lx       float64 `yaml:"lx" toml:"lx" env:"LX"`
	Ly       float64 `yaml:"ly" toml:"ly" env:"LY"`
	Periodic bool    `yaml:"periodic" toml:"periodic" env:"PERIODIC"`
}

type InitialConfig struct {
	Amplitude    float64 `yaml:"amplitude" toml:"amplitude" env:"AMPLITUDE"`
	Width        float64 `yaml:"width" toml:"width" env:"WIDTH"`
	Perturbation float64 `yaml:"perturbation" toml:"perturbation" env:"PERTURBATION"`
}

func DefaultConfig() *Config {
	return &Config{
		Scenario:    ScenarioJet,
		Dt:          DefaultDt,
		Duration:    DefaultDuration,
		Order:       DefaultOrder,
		Ranks:       1,
		EnergyEvery: 10,
		Output:      DefaultOutput,
		Grid: GridConfig{
			Nx:       DefaultN,
			Ny:       DefaultN,
			Lx:       1,
			Ly:       1,
			Periodic: true,
		},
		Physics: sw.Params{F0: 1, Csqr: 1, Ro: 0.1},
		Initial: InitialConfig{Amplitude: 0.05, Width: 0.1, Perturbation: 0.01},
		Balance: balance.DefaultConfig(),
	}
}

// Load reads a YAML or, for a .toml extension, TOML file on top of the
// defaults and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if isTOML(path) {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if isTOML(path) {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := toml.NewEncoder(f).Encode(cfg); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// ApplyEnv overrides fields from FLOWSIM_* environment variables.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate rejects settings no run could start from.
func (c *Config) Validate() error {
	switch {
	case c.Scenario != ScenarioJet && c.Scenario != ScenarioBump:
		return dynamo.Configf("config", "unknown scenario %q", c.Scenario)
	case !(c.Dt > 0) || math.IsInf(c.Dt, 0):
		return dynamo.Configf("config", "dt must be positive, got %v", c.Dt)
	case (c.Steps > 0) == (c.Duration > 0):
		return dynamo.Configf("config", "set exactly one of steps and duration")
	case c.Steps < 0 || c.Duration < 0:
		return dynamo.Configf("config", "negative run length")
	case c.Order < 1 || c.Order > integrators.MaxOrder:
		return dynamo.Configf("config", "order must be in 1..%d, got %d", integrators.MaxOrder, c.Order)
	case c.Ranks < 1:
		return dynamo.Configf("config", "ranks must be at least 1, got %d", c.Ranks)
	case c.Scenario == ScenarioBump && !(c.Initial.Width > 0):
		return dynamo.Configf("config", "bump width must be positive, got %v", c.Initial.Width)
	case c.Scenario == ScenarioJet && c.Physics.F0 == 0:
		return dynamo.Configf("config", "the jet scenario needs a non-zero f0")
	}
	if err := c.GridSpec().Validate(); err != nil {
		return err
	}
	if err := c.Physics.Validate(); err != nil {
		return err
	}
	return c.Balance.Validate()
}

func (c *Config) GridSpec() sw.Grid {
	return sw.Grid{
		N:        [2]int{c.Grid.Nx, c.Grid.Ny},
		L:        [2]float64{c.Grid.Lx, c.Grid.Ly},
		Periodic: c.Grid.Periodic,
	}
}

func (c *Config) RunSpec() model.RunSpec {
	return model.RunSpec{Steps: c.Steps, Duration: c.Duration}
}

// ModelOptions returns the shallow water model settings.
func (c *Config) ModelOptions(log *logrus.Entry, tracer trace.Tracer) sw.Options {
	return sw.Options{
		Grid:          c.GridSpec(),
		Params:        c.Physics,
		Dt:            c.Dt,
		Order:         c.Order,
		Epsilon:       c.Epsilon,
		ValidateState: c.ValidateState,
		Log:           log,
		Tracer:        tracer,
	}
}
