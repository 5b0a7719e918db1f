package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/flowsim/internal/dynamo"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Scenario != ScenarioJet {
		t.Errorf("expected scenario jet, got %s", cfg.Scenario)
	}
	if cfg.Dt <= 0 {
		t.Error("dt should be positive")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("linear-energy")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Steps != 500 {
		t.Errorf("expected 500 steps, got %d", cfg.Steps)
	}
	cfg.Steps = 1
	if Presets["linear-energy"].Steps != 500 {
		t.Error("GetPreset must return a copy")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestPresetsAreValid(t *testing.T) {
	names := ListPresets()
	if len(names) != 3 || names[0] != "geostrophic-jet" {
		t.Fatalf("unexpected presets %v", names)
	}
	for _, name := range names {
		if err := GetPreset(name).Validate(); err != nil {
			t.Errorf("preset %s: %v", name, err)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero dt", func(c *Config) { c.Dt = 0 }},
		{"negative dt", func(c *Config) { c.Dt = -0.1 }},
		{"steps and duration", func(c *Config) { c.Steps = 10 }},
		{"neither steps nor duration", func(c *Config) { c.Duration = 0 }},
		{"order", func(c *Config) { c.Order = 5 }},
		{"ranks", func(c *Config) { c.Ranks = 0 }},
		{"scenario", func(c *Config) { c.Scenario = "vortex" }},
		{"ramp type", func(c *Config) { c.Balance.RampType = "step" }},
		{"max it", func(c *Config) { c.Balance.MaxIt = 0 }},
		{"csqr", func(c *Config) { c.Physics.Csqr = 0 }},
		{"grid", func(c *Config) { c.Grid.Nx = 1 }},
		{"bump width", func(c *Config) { c.Scenario, c.Initial.Width = ScenarioBump, 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, dynamo.ErrConfiguration) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, ext := range []string{".yaml", ".toml"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "run"+ext)
			cfg := GetPreset("geostrophic-jet")
			cfg.Physics.Ah = 1e-4
			cfg.Balance.RampType = "cos"
			if err := Save(path, cfg); err != nil {
				t.Fatal(err)
			}
			got, err := Load(path)
			if err != nil {
				t.Fatal(err)
			}
			if got.Physics != cfg.Physics || got.Balance != cfg.Balance || got.Grid != cfg.Grid {
				t.Errorf("round trip changed the config: %+v vs %+v", got, cfg)
			}
			if got.Duration != 5 || got.Steps != 0 {
				t.Errorf("run length %v/%d", got.Duration, got.Steps)
			}
		})
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	if err := os.WriteFile(path, []byte("dt: 0.02\nphysics:\n  ro: 0.3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Dt != 0.02 || cfg.Physics.Ro != 0.3 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Grid.Nx != DefaultN || cfg.Balance.MaxIt != 3 {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FLOWSIM_DT", "0.005")
	t.Setenv("FLOWSIM_GRID_NX", "64")
	t.Setenv("FLOWSIM_PHYSICS_RO", "0.5")
	t.Setenv("FLOWSIM_BALANCE_RAMP_TYPE", "lin")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatal(err)
	}
	if cfg.Dt != 0.005 || cfg.Grid.Nx != 64 || cfg.Physics.Ro != 0.5 || cfg.Balance.RampType != "lin" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if cfg.Grid.Ny != DefaultN {
		t.Errorf("unset variable changed ny to %d", cfg.Grid.Ny)
	}

	t.Setenv("FLOWSIM_ORDER", "three")
	if err := cfg.ApplyEnv(); err == nil {
		t.Error("expected a parse error")
	}
}
