package models

import "sort"

// GridObject is a square object traveling horizontally along a lane.
// PositionX/PositionY refer to the object's upper-left corner, in pixels.
// PositionY is fixed by the lane the object was spawned into; only PositionX
// changes as the simulation advances.
type GridObject struct {
	PositionX float64
	PositionY float64
	Size      float64
	VelocityX float64
}

// Midpoint returns the object's center, which is what the coverage counter tests
// against viewport bounds.
func (o *GridObject) Midpoint() (x, y float64) {
	return o.PositionX + o.Size/2, o.PositionY + o.Size/2
}

// ViewportPosition is the upper-left grid cell of the viewport.
type ViewportPosition struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns the component-wise sum of two positions.
func (vp ViewportPosition) Add(delta ViewportPosition) ViewportPosition {
	return ViewportPosition{X: vp.X + delta.X, Y: vp.Y + delta.Y}
}

// Direction is a stepwise viewport action.
type Direction int

// Stepwise actions, in action-space order: "no-op", "right", "up", "left", "down".
const (
	NoOp Direction = iota
	Right
	Up
	Left
	Down
	NUM_DIRECTIONS
)

var directionNames = [NUM_DIRECTIONS]string{"no-op", "right", "up", "left", "down"}

func (d Direction) String() string {
	if d < 0 || d >= NUM_DIRECTIONS {
		return "invalid"
	}
	return directionNames[d]
}

// ControlMode selects how actions move the viewport. It is fixed when a controller
// is constructed.
type ControlMode int

const (
	// Stepwise moves the viewport one cell per step, clamped to the grid.
	Stepwise ControlMode = iota
	// Direct assigns the viewport's upper-left cell from the action.
	Direct
)

func (m ControlMode) String() string {
	switch m {
	case Stepwise:
		return "stepwise"
	case Direct:
		return "direct"
	}
	return "invalid"
}

// Action is a single agent action. Stepwise controllers read Dir; direct controllers
// read Target.
type Action struct {
	Dir    Direction
	Target ViewportPosition
}

// StepAction returns a stepwise action.
func StepAction(dir Direction) Action {
	return Action{Dir: dir}
}

// MoveAction returns a direct action targeting the cell (x, y).
func MoveAction(x, y int) Action {
	return Action{Target: ViewportPosition{X: x, Y: y}}
}

// CoverageMap maps every valid viewport position to the number of object midpoints
// inside it. It is recomputed from scratch every step.
type CoverageMap map[ViewportPosition]int

// Best returns the position with the highest count. Ties are broken by the lowest
// row, then lowest column, so the result is deterministic.
func (cm CoverageMap) Best() (best ViewportPosition, count int) {
	count = -1
	for _, entry := range cm.Entries() {
		if entry.Count > count {
			best, count = entry.Position, entry.Count
		}
	}
	return
}

// CoverageEntry is a single coverage map cell, used where a map with struct keys
// can't be serialized directly.
type CoverageEntry struct {
	Position ViewportPosition `json:"position"`
	Count    int              `json:"count"`
}

// Entries returns the map's cells sorted row-major by position.
func (cm CoverageMap) Entries() []CoverageEntry {
	entries := make([]CoverageEntry, 0, len(cm))
	for pos, count := range cm {
		entries = append(entries, CoverageEntry{Position: pos, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i].Position, entries[j].Position
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	return entries
}

// Observation is a cropped RGB view, laid out row-major as Height x Width x 3.
type Observation struct {
	Width, Height int
	Pix           []uint8
}

// NewObservation allocates a zeroed observation.
func NewObservation(width, height int) Observation {
	return Observation{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*3),
	}
}

// At returns the RGB triple at pixel (x, y).
func (o Observation) At(x, y int) (r, g, b uint8) {
	i := (y*o.Width + x) * 3
	return o.Pix[i], o.Pix[i+1], o.Pix[i+2]
}

// Frame is a full panoramic RGB image, laid out like Observation.
type Frame Observation

// Info is the auxiliary payload returned by Reset and Step. Synthetic environments
// fill Coverage; recorded-frame environments fill Viewport only.
type Info struct {
	Viewport ViewportPosition
	Coverage CoverageMap
}

// StepResult is the outcome of a single environment step.
type StepResult struct {
	Observation Observation
	Reward      float64
	Terminated  bool
	Truncated   bool
	Info        Info
}
