package environment

import (
	"errors"
	"fmt"

	"ptzcam/grid_world"
	"ptzcam/models"
)

// Environment variants.
const (
	SYNTHETIC = "synthetic"
	RECORDED  = "recorded"
)

// Supported render modes. Only array rendering is supported; windowed rendering
// belongs to whatever embeds the environment.
const (
	RENDER_NONE      = ""
	RENDER_RGB_ARRAY = "rgb_array"
)

// DEFAULT_PREWARM_STEPS is the number of lifecycle ticks run on reset before the first
// observation of a synthetic episode.
const DEFAULT_PREWARM_STEPS = 1000

// Config fixes an environment's layout and behavior at construction.
type Config struct {
	// Variant is SYNTHETIC or RECORDED.
	Variant string `yaml:"variant"`
	// Control is "stepwise" or "direct".
	Control    string `yaml:"control"`
	RenderMode string `yaml:"render_mode"`

	Geometry grid_world.Geometry    `yaml:"geometry"`
	Spawn    grid_world.SpawnParams `yaml:"spawn"`
	// PrewarmSteps is the number of lifecycle ticks run on reset (synthetic only).
	PrewarmSteps int `yaml:"prewarm_steps"`
	// Seed seeds the spawn random source when none is injected.
	Seed uint64 `yaml:"seed"`

	// StartFrame and EndFrame bound the replayed frames, both inclusive (recorded only).
	// A negative EndFrame means the last frame.
	StartFrame int `yaml:"start_frame"`
	EndFrame   int `yaml:"end_frame"`
}

// DefaultConfig returns the stepwise synthetic-grid configuration.
func DefaultConfig() Config {
	return Config{
		Variant:      SYNTHETIC,
		Control:      models.Stepwise.String(),
		RenderMode:   RENDER_RGB_ARRAY,
		Geometry:     grid_world.DefaultGeometry(),
		Spawn:        grid_world.DefaultSpawnParams(),
		PrewarmSteps: DEFAULT_PREWARM_STEPS,
		EndFrame:     -1,
	}
}

// DefaultDirectConfig returns the direct-control synthetic configuration, which
// uses wider lanes than the stepwise one.
func DefaultDirectConfig() Config {
	cfg := DefaultConfig()
	cfg.Control = models.Direct.String()
	cfg.Geometry.LaneWidth = 25
	return cfg
}

var (
	ErrInvalidConfig = errors.New("invalid environment config")
	ErrRenderMode    = errors.New("unsupported render mode")
)

// ControlMode parses Control.
func (cfg Config) ControlMode() (models.ControlMode, error) {
	switch cfg.Control {
	case models.Stepwise.String(), "":
		return models.Stepwise, nil
	case models.Direct.String():
		return models.Direct, nil
	}
	return 0, fmt.Errorf("%w: unknown control mode %q", ErrInvalidConfig, cfg.Control)
}

// Validate reports the first construction-time contract violation.
func (cfg Config) Validate() error {
	if cfg.RenderMode != RENDER_NONE && cfg.RenderMode != RENDER_RGB_ARRAY {
		return fmt.Errorf("%w: %q", ErrRenderMode, cfg.RenderMode)
	}
	if _, err := cfg.ControlMode(); err != nil {
		return err
	}

	geom := cfg.Geometry
	switch cfg.Variant {
	case SYNTHETIC:
		if err := geom.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if cfg.PrewarmSteps < 0 {
			return fmt.Errorf("%w: negative prewarm steps %d", ErrInvalidConfig, cfg.PrewarmSteps)
		}
		if cfg.Spawn.Probability < 0 || cfg.Spawn.Probability > 1 {
			return fmt.Errorf("%w: spawn probability %v outside [0, 1]", ErrInvalidConfig, cfg.Spawn.Probability)
		}
	case RECORDED:
		// Cell sizes come from the frames, so only the cell counts can be checked here.
		if geom.NumGridX <= 0 || geom.NumGridY <= 0 ||
			geom.NumViewportX <= 0 || geom.NumViewportY <= 0 ||
			geom.NumViewportX > geom.NumGridX || geom.NumViewportY > geom.NumGridY {
			return fmt.Errorf("%w: viewport %dx%d does not fit grid %dx%d", ErrInvalidConfig,
				geom.NumViewportX, geom.NumViewportY, geom.NumGridX, geom.NumGridY)
		}
		if cfg.StartFrame < 0 {
			return fmt.Errorf("%w: negative start frame %d", ErrInvalidConfig, cfg.StartFrame)
		}
		if cfg.EndFrame >= 0 && cfg.EndFrame < cfg.StartFrame {
			return fmt.Errorf("%w: end frame %d precedes start frame %d", ErrInvalidConfig, cfg.EndFrame, cfg.StartFrame)
		}
	default:
		return fmt.Errorf("%w: unknown variant %q", ErrInvalidConfig, cfg.Variant)
	}
	return nil
}
