// Package config holds the tunables of a physics world: gravity, the fixed
// tick and the safety valves of the collision loops.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// MaxSchedulerIterations bounds the collision scheduler of one frame.
	// Colliders that keep touching at the same instant would otherwise loop
	// forever; the motion left over is deferred to the next frame.
	MaxSchedulerIterations = 100

	// MaxIntegrationSubsteps bounds the integrate/collide/clamp loop of one
	// body for one tick. A body still colliding after that many sub-steps is
	// rolled back instead of being allowed to tunnel.
	MaxIntegrationSubsteps = 3

	// MaxTicksPerFrame bounds the fixed ticks run by one frame so that a slow
	// frame cannot trigger ever slower frames.
	MaxTicksPerFrame = 8

	// ContactOffset is the distance a body is lifted off a surface it hit.
	ContactOffset = 1e-3

	// TimeEpsilon is subtracted from a normalized time of impact so the body
	// stops short of the surface.
	TimeEpsilon = 1e-4
)

// Physics configures a World.
type Physics struct {
	Gravity        mgl64.Vec3 // m/s²
	FixedTimeStep  float64    // seconds per integrator tick
	MaxTicks       int        // ticks per frame at most
	MaxIterations  int        // scheduler iterations per frame at most
	MaxSubsteps    int        // integrator sub-steps per tick at most
	ContactOffset  float64
	TimeEpsilon    float64
	GridCellSize   float64 // broad phase cell size, 0 disables the grid
	GridCells      int
	OctreeLevel    uint32
	MetricsAddr    string // demo only, empty disables the endpoint
	WarnsPerSecond float64
}

// Default returns the default physics configuration.
func Default() Physics {
	return Physics{
		Gravity:        mgl64.Vec3{0, -9.81, 0},
		FixedTimeStep:  1.0 / 60.0,
		MaxTicks:       MaxTicksPerFrame,
		MaxIterations:  MaxSchedulerIterations,
		MaxSubsteps:    MaxIntegrationSubsteps,
		ContactOffset:  ContactOffset,
		TimeEpsilon:    TimeEpsilon,
		GridCellSize:   4,
		GridCells:      1024,
		OctreeLevel:    4,
		WarnsPerSecond: 1,
	}
}

// FromEnv returns the default configuration with CDENGINE_* environment
// overrides. Malformed values are ignored.
func FromEnv() Physics {
	cfg := Default()

	if g, ok := getEnvVec3("CDENGINE_GRAVITY"); ok {
		cfg.Gravity = g
	}
	if hz := getEnvFloat("CDENGINE_TICK_RATE", 0); hz > 0 {
		cfg.FixedTimeStep = 1 / hz
	}
	if n := getEnvInt("CDENGINE_MAX_TICKS", 0); n > 0 {
		cfg.MaxTicks = n
	}
	if n := getEnvInt("CDENGINE_MAX_ITERATIONS", 0); n > 0 {
		cfg.MaxIterations = n
	}
	if n := getEnvInt("CDENGINE_MAX_SUBSTEPS", 0); n > 0 {
		cfg.MaxSubsteps = n
	}
	if s := getEnvFloat("CDENGINE_GRID_CELL_SIZE", -1); s >= 0 {
		cfg.GridCellSize = s
	}
	if n := getEnvInt("CDENGINE_GRID_CELLS", 0); n > 0 {
		cfg.GridCells = n
	}
	if n := getEnvInt("CDENGINE_OCTREE_LEVEL", 0); n > 0 {
		cfg.OctreeLevel = uint32(n)
	}
	if addr := os.Getenv("CDENGINE_METRICS_ADDR"); addr != "" {
		cfg.MetricsAddr = addr
	}
	if w := getEnvFloat("CDENGINE_WARNS_PER_SECOND", -1); w >= 0 {
		cfg.WarnsPerSecond = w
	}

	return cfg
}

// Validate reports the first unusable setting.
func (p Physics) Validate() error {
	switch {
	case p.FixedTimeStep <= 0:
		return fmt.Errorf("config: fixed time step must be positive, got %v", p.FixedTimeStep)
	case p.MaxTicks < 1:
		return fmt.Errorf("config: max ticks must be at least 1, got %d", p.MaxTicks)
	case p.MaxIterations < 1:
		return fmt.Errorf("config: max iterations must be at least 1, got %d", p.MaxIterations)
	case p.MaxSubsteps < 1:
		return fmt.Errorf("config: max substeps must be at least 1, got %d", p.MaxSubsteps)
	case p.ContactOffset < 0 || p.TimeEpsilon < 0:
		return fmt.Errorf("config: contact offset and time epsilon must not be negative")
	case p.GridCellSize < 0:
		return fmt.Errorf("config: grid cell size must not be negative, got %v", p.GridCellSize)
	}
	return nil
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// getEnvVec3 parses "x,y,z".
func getEnvVec3(key string) (mgl64.Vec3, bool) {
	v := os.Getenv(key)
	if v == "" {
		return mgl64.Vec3{}, false
	}

	parts := strings.Split(v, ",")
	if len(parts) != 3 {
		return mgl64.Vec3{}, false
	}

	var out mgl64.Vec3
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return mgl64.Vec3{}, false
		}
		out[i] = f
	}
	return out, true
}
