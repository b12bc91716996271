package environment

import (
	"fmt"
	"image"
	"log"

	"ptzcam/models"
	"ptzcam/viewport"
)

// PtzCameraReal replays recorded panoramic frames, one per step, while the agent
// steers the viewport over them. The panorama is divided into NumGridX by NumGridY
// cells; pixels on the right and bottom edges that don't fill a whole cell are
// never observed. The episode terminates on the last frame of the window.
type PtzCameraReal struct {
	cfg        Config
	frames     FrameSource
	controller *viewport.Controller

	imgW, imgH           int
	gridSizeX, gridSizeY int
	start, end           int

	// cursor is the index of the next frame to load.
	cursor  int
	frame   models.Frame
	running bool
}

// NewPtzCameraReal validates cfg against the frame source. The first frame of the
// window is loaded once to learn the panorama size.
func NewPtzCameraReal(cfg Config, frames FrameSource) (*PtzCameraReal, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if frames == nil || frames.FrameCount() == 0 {
		return nil, ErrNoFrames
	}
	mode, _ := cfg.ControlMode()

	start, end := cfg.StartFrame, cfg.EndFrame
	if end < 0 {
		end = frames.FrameCount() - 1
	}
	if start >= frames.FrameCount() || end >= frames.FrameCount() {
		return nil, fmt.Errorf("%w: frame window [%d, %d] exceeds %d frames",
			ErrInvalidConfig, start, end, frames.FrameCount())
	}

	first, err := frames.Load(start)
	if err != nil {
		return nil, fmt.Errorf("probe frame size: %w", err)
	}

	geom := cfg.Geometry
	env := &PtzCameraReal{
		cfg:        cfg,
		frames:     frames,
		controller: viewport.NewController(mode, geom.NumGridX, geom.NumGridY, geom.NumViewportX, geom.NumViewportY),
		imgW:       first.Width,
		imgH:       first.Height,
		gridSizeX:  first.Width / geom.NumGridX,
		gridSizeY:  first.Height / geom.NumGridY,
		start:      start,
		end:        end,
		cursor:     start,
	}
	if env.gridSizeX == 0 || env.gridSizeY == 0 {
		return nil, fmt.Errorf("%w: %dx%d frames are too small for a %dx%d grid",
			ErrInvalidConfig, first.Width, first.Height, geom.NumGridX, geom.NumGridY)
	}

	log.Printf("ptz camera: replaying frames %d - %d", start, end)
	log.Printf("ptz camera: grid size x=%d, y=%d", env.gridSizeX, env.gridSizeY)
	return env, nil
}

// Reset rewinds to the start of the frame window, recenters the viewport and returns
// the view of the first frame.
func (pr *PtzCameraReal) Reset() (obs models.Observation, info models.Info, err error) {
	pr.controller.Center()
	pr.cursor = pr.start
	if err = pr.load(); err != nil {
		return
	}
	pr.running = true

	obs = pr.ViewOf(pr.controller.Position())
	info = pr.info()
	pr.cursor++
	return
}

// Step loads the next frame, moves the viewport, and returns its view. Reward is
// always zero; recorded frames carry no object annotations.
func (pr *PtzCameraReal) Step(action models.Action) (result models.StepResult, err error) {
	if !pr.running {
		err = ErrNotReset
		return
	}
	if pr.cursor > pr.end {
		err = ErrFramesExhausted
		return
	}

	if err = pr.load(); err != nil {
		return
	}
	vp := pr.controller.Apply(action)

	result = models.StepResult{
		Observation: pr.ViewOf(vp),
		Terminated:  pr.cursor == pr.end,
		Info:        pr.info(),
	}
	pr.cursor++
	return
}

func (pr *PtzCameraReal) load() (err error) {
	if pr.frame, err = pr.frames.Load(pr.cursor); err != nil {
		err = fmt.Errorf("step frame %d: %w", pr.cursor, err)
	}
	return
}

func (pr *PtzCameraReal) info() models.Info {
	return models.Info{Viewport: pr.controller.Position()}
}

// ViewOf crops the current frame to an arbitrary viewport. Observations use the
// agent's viewport; an oracle can use this to look elsewhere.
func (pr *PtzCameraReal) ViewOf(vp models.ViewportPosition) models.Observation {
	x := vp.X * pr.gridSizeX
	y := vp.Y * pr.gridSizeY
	w, h := pr.ViewportSize()
	return CropFrame(pr.frame, image.Rect(x, y, x+w, y+h))
}

func (pr *PtzCameraReal) Mode() models.ControlMode {
	return pr.controller.Mode()
}

func (pr *PtzCameraReal) ActionBounds() (bx, by int) {
	return pr.controller.ActionBounds()
}

// Viewport returns the current viewport position.
func (pr *PtzCameraReal) Viewport() models.ViewportPosition {
	return pr.controller.Position()
}

// PanoramicSize is the full frame size in pixels.
func (pr *PtzCameraReal) PanoramicSize() (w, h int) {
	return pr.imgW, pr.imgH
}

// GridSize is the size of one cell in pixels.
func (pr *PtzCameraReal) GridSize() (w, h int) {
	return pr.gridSizeX, pr.gridSizeY
}

// NumGrids is the whole frame size in cells.
func (pr *PtzCameraReal) NumGrids() (w, h int) {
	return pr.cfg.Geometry.NumGridX, pr.cfg.Geometry.NumGridY
}

// NumViewportGrids is the viewport size in cells.
func (pr *PtzCameraReal) NumViewportGrids() (w, h int) {
	return pr.cfg.Geometry.NumViewportX, pr.cfg.Geometry.NumViewportY
}

// ViewportSize is the observation size in pixels.
func (pr *PtzCameraReal) ViewportSize() (w, h int) {
	return pr.cfg.Geometry.NumViewportX * pr.gridSizeX, pr.cfg.Geometry.NumViewportY * pr.gridSizeY
}

// StartFrame is the first frame of the replay window.
func (pr *PtzCameraReal) StartFrame() int {
	return pr.start
}
