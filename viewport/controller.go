package viewport

import (
	"ptzcam/models"
)

// directionDeltas maps each stepwise action to its unit move, in grid cells.
// Grid rows grow downward, so "up" decrements Y.
var directionDeltas = [models.NUM_DIRECTIONS]models.ViewportPosition{
	models.NoOp:  {X: 0, Y: 0},
	models.Right: {X: 1, Y: 0},
	models.Up:    {X: 0, Y: -1},
	models.Left:  {X: -1, Y: 0},
	models.Down:  {X: 0, Y: 1},
}

// Delta returns the unit move for a stepwise action.
func Delta(dir models.Direction) models.ViewportPosition {
	return directionDeltas[dir]
}

// Controller tracks the viewport's upper-left cell over a grid of numGridX by numGridY
// cells. Its control mode is fixed at construction.
type Controller struct {
	mode               models.ControlMode
	numGridX, numGridY int
	numViewX, numViewY int
	position           models.ViewportPosition
}

// NewController returns a controller whose viewport starts centered in the grid.
func NewController(
	mode models.ControlMode,
	numGridX, numGridY int,
	numViewportX, numViewportY int,
) *Controller {
	ctl := &Controller{
		mode:     mode,
		numGridX: numGridX,
		numGridY: numGridY,
		numViewX: numViewportX,
		numViewY: numViewportY,
	}
	ctl.Center()
	return ctl
}

// Center moves the viewport to the middle of the grid, rounding toward the origin.
func (ctl *Controller) Center() {
	maxX, maxY := ctl.Max()
	ctl.position = models.ViewportPosition{X: maxX / 2, Y: maxY / 2}
}

// Max returns the largest valid upper-left cell.
func (ctl *Controller) Max() (maxX, maxY int) {
	return ctl.numGridX - ctl.numViewX, ctl.numGridY - ctl.numViewY
}

// Mode returns the control mode chosen at construction.
func (ctl *Controller) Mode() models.ControlMode {
	return ctl.mode
}

// Position returns the viewport's current upper-left cell.
func (ctl *Controller) Position() models.ViewportPosition {
	return ctl.position
}

// ActionBounds describes the action space. Stepwise controllers accept
// NUM_DIRECTIONS discrete actions (y is 0). Direct controllers accept targets with
// 0 <= x < bx and 0 <= y < by, where (bx, by) is the viewport size in cells.
func (ctl *Controller) ActionBounds() (bx, by int) {
	if ctl.mode == models.Direct {
		return ctl.numViewX, ctl.numViewY
	}
	return int(models.NUM_DIRECTIONS), 0
}

// Apply moves the viewport per the controller's mode and returns the new position.
// Stepwise moves are clamped to the grid. Direct targets are assigned as given;
// keeping them in range is the caller's responsibility.
func (ctl *Controller) Apply(action models.Action) models.ViewportPosition {
	switch ctl.mode {
	case models.Direct:
		ctl.position = action.Target
	default:
		ctl.position = ctl.clamp(ctl.position.Add(Delta(action.Dir)))
	}
	return ctl.position
}

func (ctl *Controller) clamp(vp models.ViewportPosition) models.ViewportPosition {
	maxX, maxY := ctl.Max()
	return models.ViewportPosition{
		X: min(max(vp.X, 0), maxX),
		Y: min(max(vp.Y, 0), maxY),
	}
}
