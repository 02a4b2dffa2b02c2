package stream

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("stream: invalid config")

// Config is injected into the managers; nothing reads it globally.
type Config struct {
	// RenderDistance is the full-detail radius in chunks.
	RenderDistance int `yaml:"render_distance"`
	// LODDistance is the width in chunks of the LOD ring beyond RenderDistance.
	LODDistance int `yaml:"lod_distance"`
	// TimeBudgetMs bounds how long one frame may keep starting new chunks.
	TimeBudgetMs float64 `yaml:"time_budget_ms"`
	// MaxNeighborRebuilds caps deferred neighbour remeshes per frame.
	MaxNeighborRebuilds int `yaml:"max_neighbor_rebuilds"`

	SolidArenaBytes      uint64 `yaml:"solid_arena_bytes"`
	VegetationArenaBytes uint64 `yaml:"vegetation_arena_bytes"`
	LODArenaBytes        uint64 `yaml:"lod_arena_bytes"`

	MaxPointLights int `yaml:"max_point_lights"`
}

func DefaultConfig() Config {
	return Config{
		RenderDistance:       8,
		LODDistance:          8,
		TimeBudgetMs:         4,
		MaxNeighborRebuilds:  2,
		SolidArenaBytes:      256 << 20,
		VegetationArenaBytes: 32 << 20,
		LODArenaBytes:        64 << 20,
		MaxPointLights:       32,
	}
}

// TimeBudget is TimeBudgetMs as a duration.
func (c Config) TimeBudget() time.Duration {
	return time.Duration(c.TimeBudgetMs * float64(time.Millisecond))
}

// UnloadDistance is the radius beyond which full-detail chunks are dropped.
func (c Config) UnloadDistance() int { return c.RenderDistance + 2 }

// LODOuterDistance is the outer radius of the LOD ring.
func (c Config) LODOuterDistance() int { return c.RenderDistance + c.LODDistance }

// LODUnloadDistance is the radius beyond which LOD chunks are dropped.
func (c Config) LODUnloadDistance() int { return c.LODOuterDistance() + 2 }

func (c Config) Validate() error {
	switch {
	case c.RenderDistance < 0:
		return fmt.Errorf("%w: render_distance %d < 0", ErrInvalidConfig, c.RenderDistance)
	case c.LODDistance < 0:
		return fmt.Errorf("%w: lod_distance %d < 0", ErrInvalidConfig, c.LODDistance)
	case c.TimeBudgetMs <= 0:
		return fmt.Errorf("%w: time_budget_ms must be positive", ErrInvalidConfig)
	case c.MaxNeighborRebuilds < 0:
		return fmt.Errorf("%w: max_neighbor_rebuilds %d < 0", ErrInvalidConfig, c.MaxNeighborRebuilds)
	case c.SolidArenaBytes == 0 || c.VegetationArenaBytes == 0:
		return fmt.Errorf("%w: arena sizes must be positive", ErrInvalidConfig)
	case c.LODDistance > 0 && c.LODArenaBytes == 0:
		return fmt.Errorf("%w: lod_arena_bytes must be positive when lod_distance > 0", ErrInvalidConfig)
	case c.MaxPointLights < 0:
		return fmt.Errorf("%w: max_point_lights %d < 0", ErrInvalidConfig, c.MaxPointLights)
	}
	return nil
}

// LoadConfig reads a YAML file over DefaultConfig and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
