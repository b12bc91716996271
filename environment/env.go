// Package environment drives PTZ camera episodes: a viewport moving over either a
// synthetic lane grid of moving objects or a sequence of recorded panoramic frames.
// Each environment instance owns all of its state and is meant to be driven by a
// single goroutine.
package environment

import (
	"errors"
	"fmt"

	"ptzcam/grid_world"
	"ptzcam/models"
)

// Env is the step/reset cycle shared by both variants.
type Env interface {
	// Reset starts a new episode and returns its first observation.
	Reset() (models.Observation, models.Info, error)
	// Step applies an action and advances the episode by one tick.
	Step(action models.Action) (models.StepResult, error)
	// Mode is the control mode actions are interpreted under.
	Mode() models.ControlMode
	// ActionBounds describes the action space; see viewport.Controller.ActionBounds.
	ActionBounds() (bx, by int)
}

var (
	// ErrNotReset is returned by Step before the first Reset.
	ErrNotReset = errors.New("environment stepped before reset")
	// ErrFramesExhausted is returned by Step once the recorded frames have all been replayed.
	ErrFramesExhausted = errors.New("recorded frames exhausted")
	// ErrNoFrames is returned when a recorded environment is given an empty frame source.
	ErrNoFrames = errors.New("frame source is empty")
)

// New builds the variant named by cfg.Variant. Synthetic environments draw from a
// source seeded by cfg.Seed; frames is only consulted by the recorded variant.
func New(cfg Config, frames FrameSource) (Env, error) {
	switch cfg.Variant {
	case SYNTHETIC:
		env, err := NewPtzCamera(cfg, grid_world.NewRandomSource(cfg.Seed), nil)
		if err != nil {
			return nil, err
		}
		return env, nil
	case RECORDED:
		env, err := NewPtzCameraReal(cfg, frames)
		if err != nil {
			return nil, err
		}
		return env, nil
	}
	return nil, fmt.Errorf("%w: unknown variant %q", ErrInvalidConfig, cfg.Variant)
}
