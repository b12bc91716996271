package grid_world

import (
	"errors"
	"fmt"
)

// Geometry holds the immutable layout of the simulated grid: its size in cells,
// the viewport size in cells, the pixel size of a cell, and the lane layout objects
// travel along. Pixel coordinates have their origin at the upper-left of the grid.
type Geometry struct {
	NumGridX     int `yaml:"num_grid_x"`
	NumGridY     int `yaml:"num_grid_y"`
	NumViewportX int `yaml:"num_viewport_x"`
	NumViewportY int `yaml:"num_viewport_y"`
	// GridSize is the height and width of a cell, in pixels.
	GridSize int `yaml:"grid_size"`
	// LaneWidth is the pixel height of a lane.
	LaneWidth int `yaml:"lane_width"`
	// ObjMargin is the gap between an object and each side of its lane.
	ObjMargin int `yaml:"obj_margin"`
}

// DefaultGeometry is the 9x5 grid with a 5x3 viewport the camera environments use.
func DefaultGeometry() Geometry {
	return Geometry{
		NumGridX:     9,
		NumGridY:     5,
		NumViewportX: 5,
		NumViewportY: 3,
		GridSize:     50,
		LaneWidth:    20,
		ObjMargin:    2,
	}
}

var ErrInvalidGeometry = errors.New("invalid grid geometry")

// Validate checks the layout invariants the simulation relies on.
func (g Geometry) Validate() error {
	switch {
	case g.NumGridX <= 0 || g.NumGridY <= 0:
		return fmt.Errorf("%w: grid must be at least 1x1, got %dx%d", ErrInvalidGeometry, g.NumGridX, g.NumGridY)
	case g.NumViewportX <= 0 || g.NumViewportY <= 0:
		return fmt.Errorf("%w: viewport must be at least 1x1, got %dx%d", ErrInvalidGeometry, g.NumViewportX, g.NumViewportY)
	case g.NumViewportX > g.NumGridX || g.NumViewportY > g.NumGridY:
		return fmt.Errorf("%w: viewport %dx%d exceeds grid %dx%d",
			ErrInvalidGeometry, g.NumViewportX, g.NumViewportY, g.NumGridX, g.NumGridY)
	case g.GridSize <= 0:
		return fmt.Errorf("%w: grid size must be positive, got %d", ErrInvalidGeometry, g.GridSize)
	case g.LaneWidth <= 0 || g.LaneWidth > g.Height():
		return fmt.Errorf("%w: lane width %d must be in (0, %d]", ErrInvalidGeometry, g.LaneWidth, g.Height())
	case g.ObjMargin < 0 || g.ObjSize() <= 0:
		return fmt.Errorf("%w: margin %d leaves no room for objects in a %dpx lane", ErrInvalidGeometry, g.ObjMargin, g.LaneWidth)
	}
	return nil
}

// Width is the grid width in pixels.
func (g Geometry) Width() int {
	return g.GridSize * g.NumGridX
}

// Height is the grid height in pixels.
func (g Geometry) Height() int {
	return g.GridSize * g.NumGridY
}

// ViewportWidth is the viewport width in pixels.
func (g Geometry) ViewportWidth() int {
	return g.GridSize * g.NumViewportX
}

// ViewportHeight is the viewport height in pixels.
func (g Geometry) ViewportHeight() int {
	return g.GridSize * g.NumViewportY
}

// NumLanes is the number of whole lanes that fit in the grid height.
func (g Geometry) NumLanes() int {
	return g.Height() / g.LaneWidth
}

// ObjSize is the side length of every spawned object.
func (g Geometry) ObjSize() float64 {
	return float64(g.LaneWidth - 2*g.ObjMargin)
}

// MaxViewport is the largest valid upper-left viewport cell.
func (g Geometry) MaxViewport() (maxX, maxY int) {
	return g.NumGridX - g.NumViewportX, g.NumGridY - g.NumViewportY
}
