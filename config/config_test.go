package config

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default() is invalid: %v", err)
	}
	if cfg.MaxIterations != 100 {
		t.Errorf("MaxIterations = %d, want 100", cfg.MaxIterations)
	}
	if cfg.MaxSubsteps != 3 {
		t.Errorf("MaxSubsteps = %d, want 3", cfg.MaxSubsteps)
	}
	if cfg.Gravity != (mgl64.Vec3{0, -9.81, 0}) {
		t.Errorf("Gravity = %v", cfg.Gravity)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("CDENGINE_GRAVITY", "0, -20 ,1")
	t.Setenv("CDENGINE_TICK_RATE", "120")
	t.Setenv("CDENGINE_MAX_ITERATIONS", "10")
	t.Setenv("CDENGINE_GRID_CELL_SIZE", "0")
	t.Setenv("CDENGINE_METRICS_ADDR", ":9100")

	cfg := FromEnv()

	if cfg.Gravity != (mgl64.Vec3{0, -20, 1}) {
		t.Errorf("Gravity = %v, want (0,-20,1)", cfg.Gravity)
	}
	if cfg.FixedTimeStep != 1.0/120.0 {
		t.Errorf("FixedTimeStep = %v, want 1/120", cfg.FixedTimeStep)
	}
	if cfg.MaxIterations != 10 {
		t.Errorf("MaxIterations = %d, want 10", cfg.MaxIterations)
	}
	if cfg.GridCellSize != 0 {
		t.Errorf("GridCellSize = %v, want 0", cfg.GridCellSize)
	}
	if cfg.MetricsAddr != ":9100" {
		t.Errorf("MetricsAddr = %q, want :9100", cfg.MetricsAddr)
	}
}

func TestFromEnv_IgnoresMalformed(t *testing.T) {
	t.Setenv("CDENGINE_GRAVITY", "down")
	t.Setenv("CDENGINE_MAX_SUBSTEPS", "three")
	t.Setenv("CDENGINE_TICK_RATE", "-5")

	cfg := FromEnv()
	def := Default()

	if cfg.Gravity != def.Gravity {
		t.Errorf("Gravity = %v, want default", cfg.Gravity)
	}
	if cfg.MaxSubsteps != def.MaxSubsteps {
		t.Errorf("MaxSubsteps = %d, want default", cfg.MaxSubsteps)
	}
	if cfg.FixedTimeStep != def.FixedTimeStep {
		t.Errorf("FixedTimeStep = %v, want default", cfg.FixedTimeStep)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Physics)
	}{
		{"zero time step", func(p *Physics) { p.FixedTimeStep = 0 }},
		{"no ticks", func(p *Physics) { p.MaxTicks = 0 }},
		{"no iterations", func(p *Physics) { p.MaxIterations = 0 }},
		{"no substeps", func(p *Physics) { p.MaxSubsteps = 0 }},
		{"negative offset", func(p *Physics) { p.ContactOffset = -1 }},
		{"negative cell", func(p *Physics) { p.GridCellSize = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			if cfg.Validate() == nil {
				t.Error("Validate() = nil, want an error")
			}
		})
	}
}
