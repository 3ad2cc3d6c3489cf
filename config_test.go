package hull

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig() is invalid: %v", err)
	}
	if cfg.TickPeriod != 50*time.Millisecond || cfg.SubSteps != 5 {
		t.Errorf("tick %v x %d, want 50ms x 5", cfg.TickPeriod, cfg.SubSteps)
	}
	if cfg.MaxLostTime != time.Second {
		t.Errorf("MaxLostTime = %v, want 1s", cfg.MaxLostTime)
	}
	if cfg.GravityVec() != (mgl64.Vec3{0, -9.8, 0}) {
		t.Errorf("GravityVec() = %v", cfg.GravityVec())
	}
	if got := cfg.TickSeconds(); got != 0.05 {
		t.Errorf("TickSeconds() = %v, want 0.05", got)
	}
}

func TestParseConfig(t *testing.T) {
	data := []byte(`
tick_period: 25ms
sub_steps: 8
max_lost_time: 2s
workers: 3
gravity: [0, -1.62, 0]
physics_speed: 2
headless: true
`)

	cfg, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}

	if cfg.TickPeriod != 25*time.Millisecond {
		t.Errorf("TickPeriod = %v, want 25ms", cfg.TickPeriod)
	}
	if cfg.SubSteps != 8 || cfg.Workers != 3 || !cfg.Headless {
		t.Errorf("SubSteps = %d, Workers = %d, Headless = %v", cfg.SubSteps, cfg.Workers, cfg.Headless)
	}
	if cfg.MaxLostTime != 2*time.Second {
		t.Errorf("MaxLostTime = %v, want 2s", cfg.MaxLostTime)
	}
	if cfg.GravityVec() != (mgl64.Vec3{0, -1.62, 0}) {
		t.Errorf("GravityVec() = %v", cfg.GravityVec())
	}
	if got := cfg.TickSeconds(); got != 0.05 {
		t.Errorf("TickSeconds() = %v, want 0.05 at double speed", got)
	}
	// Missing keys keep their default
	if cfg.TaskBlockBudget != DEFAULT_TASK_BLOCK_BUDGET || cfg.BroadcastEvery != 1 {
		t.Errorf("TaskBlockBudget = %d, BroadcastEvery = %d", cfg.TaskBlockBudget, cfg.BroadcastEvery)
	}
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"zero tick", "tick_period: 0s"},
		{"no sub-step", "sub_steps: 0"},
		{"negative lost time", "max_lost_time: -1s"},
		{"no worker", "workers: 0"},
		{"flat gravity", "gravity: [0, -9.8]"},
		{"negative speed", "physics_speed: -1"},
		{"no broadcast", "broadcast_every: 0"},
		{"no block budget", "task_block_budget: 0"},
		{"no grid", "cell_size: 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseConfig([]byte(tt.data)); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("ParseConfig(%q) error = %v, want ErrInvalidConfig", tt.data, err)
			}
		})
	}

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := ParseConfig([]byte("sub_steps: [1"))
		if err == nil || errors.Is(err, ErrInvalidConfig) {
			t.Errorf("ParseConfig() error = %v, want a decoding error", err)
		}
	})
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hull.yaml")
	if err := os.WriteFile(path, []byte("sub_steps: 3\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.SubSteps != 3 {
		t.Errorf("SubSteps = %d, want 3", cfg.SubSteps)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig() of a missing file should fail")
	}
}
