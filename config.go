package hull

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	DEFAULT_TICK_PERIOD       = 50 * time.Millisecond
	DEFAULT_MAX_LOST_TIME     = 1000 * time.Millisecond
	DEFAULT_SUB_STEPS         = 5
	DEFAULT_TASK_BLOCK_BUDGET = 256
)

// Config holds the inputs of the simulation, shared by every scheduler of a registry
type Config struct {
	// Fixed period of one tick
	TickPeriod time.Duration `yaml:"tick_period"`
	// Number of physics sub-steps per tick
	SubSteps int `yaml:"sub_steps"`
	// Cap of the time debt the loop tries to catch up
	MaxLostTime time.Duration `yaml:"max_lost_time"`
	// Size of the collision worker pool
	Workers int `yaml:"workers"`
	// Gravity acceleration (m/s²)
	Gravity []float64 `yaml:"gravity"`
	// Multiplier of the simulated time per tick, 1 is real time
	PhysicsSpeed float64 `yaml:"physics_speed"`
	// Observers are notified every BroadcastEvery ticks
	BroadcastEvery int `yaml:"broadcast_every"`
	// Maximum number of blocks tested by one collision task
	TaskBlockBudget int `yaml:"task_block_budget"`
	// Broad phase grid
	CellSize  float64 `yaml:"cell_size"`
	GridCells int     `yaml:"grid_cells"`
	// Headless hosts never pause the simulation
	Headless bool `yaml:"headless"`
}

// DefaultConfig returns a 20 ticks per second simulation with 5 sub-steps
func DefaultConfig() Config {
	return Config{
		TickPeriod:      DEFAULT_TICK_PERIOD,
		SubSteps:        DEFAULT_SUB_STEPS,
		MaxLostTime:     DEFAULT_MAX_LOST_TIME,
		Workers:         runtime.NumCPU(),
		Gravity:         []float64{0, -9.8, 0},
		PhysicsSpeed:    1.0,
		BroadcastEvery:  1,
		TaskBlockBudget: DEFAULT_TASK_BLOCK_BUDGET,
		CellSize:        16,
		GridCells:       1024,
	}
}

// ParseConfig decodes YAML over the defaults, missing keys keep their default value
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("yaml unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseConfig(data)
}

func (c Config) Validate() error {
	switch {
	case c.TickPeriod <= 0:
		return fmt.Errorf("tick_period %v must be positive: %w", c.TickPeriod, ErrInvalidConfig)
	case c.SubSteps < 1:
		return fmt.Errorf("sub_steps %d must be at least 1: %w", c.SubSteps, ErrInvalidConfig)
	case c.MaxLostTime < 0:
		return fmt.Errorf("max_lost_time %v must not be negative: %w", c.MaxLostTime, ErrInvalidConfig)
	case c.Workers < 1:
		return fmt.Errorf("workers %d must be at least 1: %w", c.Workers, ErrInvalidConfig)
	case len(c.Gravity) != 3:
		return fmt.Errorf("gravity needs 3 components, got %d: %w", len(c.Gravity), ErrInvalidConfig)
	case c.PhysicsSpeed < 0:
		return fmt.Errorf("physics_speed %v must not be negative: %w", c.PhysicsSpeed, ErrInvalidConfig)
	case c.BroadcastEvery < 1:
		return fmt.Errorf("broadcast_every %d must be at least 1: %w", c.BroadcastEvery, ErrInvalidConfig)
	case c.TaskBlockBudget < 1:
		return fmt.Errorf("task_block_budget %d must be at least 1: %w", c.TaskBlockBudget, ErrInvalidConfig)
	case c.CellSize <= 0 || c.GridCells < 1:
		return fmt.Errorf("broad phase grid %v x %d: %w", c.CellSize, c.GridCells, ErrInvalidConfig)
	}
	return nil
}

// GravityVec returns the gravity as a vector, zero when unset
func (c Config) GravityVec() mgl64.Vec3 {
	if len(c.Gravity) != 3 {
		return mgl64.Vec3{}
	}
	return mgl64.Vec3{c.Gravity[0], c.Gravity[1], c.Gravity[2]}
}

// TickSeconds is the simulated time of one tick
func (c Config) TickSeconds() float64 {
	return c.TickPeriod.Seconds() * c.PhysicsSpeed
}
