package environment

import (
	"log"

	"ptzcam/grid_world"
	"ptzcam/models"
	"ptzcam/viewport"
)

// PtzCamera is the synthetic-grid environment. Objects travel along horizontal lanes
// while the agent steers the viewport; the reward for a step is the number of object
// midpoints inside the viewport after the step. Episodes never terminate on their own.
type PtzCamera struct {
	cfg        Config
	geom       grid_world.Geometry
	traffic    *grid_world.Traffic
	controller *viewport.Controller
	renderer   Renderer
	coverage   models.CoverageMap
	running    bool
}

// NewPtzCamera validates cfg and returns an environment in the uninitialized state.
// A nil renderer selects a CanvasRenderer over cfg.Geometry.
func NewPtzCamera(
	cfg Config,
	rng grid_world.RandomSource,
	renderer Renderer,
) (*PtzCamera, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mode, _ := cfg.ControlMode()

	geom := cfg.Geometry
	if renderer == nil {
		renderer = NewCanvasRenderer(geom)
	}

	log.Printf("ptz camera: %dx%d grid of %dpx cells, %dx%d %s viewport, %d lanes",
		geom.NumGridX, geom.NumGridY, geom.GridSize, geom.NumViewportX, geom.NumViewportY, mode, geom.NumLanes())

	return &PtzCamera{
		cfg:        cfg,
		geom:       geom,
		traffic:    grid_world.NewTraffic(geom, cfg.Spawn, rng),
		controller: viewport.NewController(mode, geom.NumGridX, geom.NumGridY, geom.NumViewportX, geom.NumViewportY),
		renderer:   renderer,
	}, nil
}

// Reset recenters the viewport, replaces the object population with a freshly
// prewarmed one, and returns the first observation along with the coverage map.
func (pc *PtzCamera) Reset() (models.Observation, models.Info, error) {
	pc.controller.Center()
	pc.traffic.Clear()
	pc.traffic.Prewarm(pc.cfg.PrewarmSteps)
	pc.coverage = grid_world.CountAllViewports(pc.traffic.Objects(), pc.geom)
	pc.running = true

	return pc.observe(), pc.info(), nil
}

// Step moves the viewport, runs one lifecycle tick, recounts coverage and rewards the
// count at the new viewport position.
func (pc *PtzCamera) Step(action models.Action) (result models.StepResult, err error) {
	if !pc.running {
		err = ErrNotReset
		return
	}

	vp := pc.controller.Apply(action)
	pc.traffic.Step()
	pc.coverage = grid_world.CountAllViewports(pc.traffic.Objects(), pc.geom)

	result = models.StepResult{
		Observation: pc.observe(),
		Reward:      float64(pc.coverage[vp]),
		Info:        pc.info(),
	}
	return
}

func (pc *PtzCamera) observe() models.Observation {
	return pc.renderer.Render(pc.traffic.Objects(), pc.controller.Position())
}

func (pc *PtzCamera) info() models.Info {
	return models.Info{
		Viewport: pc.controller.Position(),
		Coverage: pc.coverage,
	}
}

func (pc *PtzCamera) Mode() models.ControlMode {
	return pc.controller.Mode()
}

func (pc *PtzCamera) ActionBounds() (bx, by int) {
	return pc.controller.ActionBounds()
}

// Viewport returns the current viewport position.
func (pc *PtzCamera) Viewport() models.ViewportPosition {
	return pc.controller.Position()
}

// Objects returns the live objects; the slice is only valid until the next Step or Reset.
func (pc *PtzCamera) Objects() []models.GridObject {
	return pc.traffic.Objects()
}

// Geometry returns the grid layout.
func (pc *PtzCamera) Geometry() grid_world.Geometry {
	return pc.geom
}

// Populate replaces the current population with the given objects, for constructing
// scenarios. The coverage map is recomputed immediately.
func (pc *PtzCamera) Populate(objects ...models.GridObject) {
	pc.traffic.Clear()
	pc.traffic.Add(objects...)
	pc.coverage = grid_world.CountAllViewports(pc.traffic.Objects(), pc.geom)
}
