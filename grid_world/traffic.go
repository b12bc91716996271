package grid_world

import (
	"ptzcam/models"
)

// SpawnParams controls how often objects enter the grid and how fast they travel.
type SpawnParams struct {
	// Probability is the independent per-lane, per-step chance of spawning an object.
	Probability float64 `yaml:"probability"`
	// Speed magnitudes are drawn from Normal(VelocityMean, VelocityStdDev). The draw is
	// not truncated, so a rare draw near zero or below is kept as-is.
	VelocityMean   float64 `yaml:"velocity_mean"`
	VelocityStdDev float64 `yaml:"velocity_stddev"`
}

// DefaultSpawnParams spawns in 2% of lanes per step at roughly 10px per step.
func DefaultSpawnParams() SpawnParams {
	return SpawnParams{
		Probability:    0.02,
		VelocityMean:   10,
		VelocityStdDev: 1,
	}
}

// Advance moves every object by its velocity. It mutates objects in place and
// does not allocate.
func Advance(objects []models.GridObject) {
	for i := range objects {
		objects[i].PositionX += objects[i].VelocityX
	}
}

// isOut reports whether an object has fully left the grid on the side it travels toward.
func isOut(obj *models.GridObject, width float64) bool {
	if obj.VelocityX > 0 {
		return obj.PositionX >= width
	}
	return obj.PositionX+obj.Size <= 0
}

// CollectGarbage removes the objects that have fully exited the grid. The returned
// slice reuses the backing array of objects.
func CollectGarbage(objects []models.GridObject, width float64) []models.GridObject {
	live := objects[:0]
	for i := range objects {
		if !isOut(&objects[i], width) {
			live = append(live, objects[i])
		}
	}
	return live
}

// Spawn visits each lane once and, with probability params.Probability, appends a new
// object at the lane's entry edge. Lanes in the top half travel right and enter at
// the left edge; lanes in the bottom half travel left and enter at the right edge.
// Both enter inset by the margin, so a new object is always fully inside the grid.
func Spawn(
	objects []models.GridObject,
	geom Geometry,
	params SpawnParams,
	rng RandomSource,
) []models.GridObject {
	numLanes := geom.NumLanes()
	objSize := geom.ObjSize()
	margin := float64(geom.ObjMargin)

	for lane := 0; lane < numLanes; lane++ {
		if rng.Uniform() > params.Probability {
			continue
		}

		obj := models.GridObject{
			PositionY: float64(geom.LaneWidth*lane) + margin,
			Size:      objSize,
		}
		speed := rng.Normal(params.VelocityMean, params.VelocityStdDev)
		if lane < numLanes/2 {
			obj.PositionX = margin
			obj.VelocityX = speed
		} else {
			obj.PositionX = float64(geom.Width()) - margin - objSize
			obj.VelocityX = -speed
		}
		objects = append(objects, obj)
	}

	return objects
}

// Traffic is the object population of one synthetic grid. It is owned by a single
// environment and is not safe for concurrent use.
type Traffic struct {
	geom    Geometry
	params  SpawnParams
	rng     RandomSource
	objects []models.GridObject
}

// NewTraffic returns an empty population over the given geometry.
func NewTraffic(geom Geometry, params SpawnParams, rng RandomSource) *Traffic {
	return &Traffic{
		geom:   geom,
		params: params,
		rng:    rng,
	}
}

// Step runs one lifecycle tick: advance, then garbage-collect, then spawn.
func (t *Traffic) Step() {
	Advance(t.objects)
	t.objects = CollectGarbage(t.objects, float64(t.geom.Width()))
	t.objects = Spawn(t.objects, t.geom, t.params, t.rng)
}

// Prewarm runs n lifecycle ticks so that the population approaches its steady-state
// density before the first observation.
func (t *Traffic) Prewarm(n int) {
	for i := 0; i < n; i++ {
		t.Step()
	}
}

// Clear removes every object.
func (t *Traffic) Clear() {
	t.objects = t.objects[:0]
}

// Add inserts objects directly, bypassing spawn. Useful for seeding scenarios.
func (t *Traffic) Add(objects ...models.GridObject) {
	t.objects = append(t.objects, objects...)
}

// Objects returns the live objects. The slice is owned by t and is only valid until
// the next call to Step.
func (t *Traffic) Objects() []models.GridObject {
	return t.objects
}

// Geometry returns the layout the population lives in.
func (t *Traffic) Geometry() Geometry {
	return t.geom
}
