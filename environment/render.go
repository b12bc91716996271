package environment

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"ptzcam/grid_world"
	"ptzcam/models"
)

// Renderer produces the agent's observation: the grid contents cropped to the
// viewport.
type Renderer interface {
	Render(objects []models.GridObject, vp models.ViewportPosition) models.Observation
}

var (
	backgroundColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	objectColor     = color.RGBA{R: 255, A: 255}
	gridlineColor   = color.RGBA{A: 255}
)

// CanvasRenderer draws the whole grid onto a white canvas, objects as filled red
// squares and one-pixel black grid lines, then crops the viewport out of it.
type CanvasRenderer struct {
	geom   grid_world.Geometry
	canvas *image.RGBA
}

// NewCanvasRenderer returns a renderer for the given layout. The canvas is reused
// across calls, so a renderer must not be shared between environments.
func NewCanvasRenderer(geom grid_world.Geometry) *CanvasRenderer {
	return &CanvasRenderer{
		geom:   geom,
		canvas: image.NewRGBA(image.Rect(0, 0, geom.Width(), geom.Height())),
	}
}

// Render implements Renderer.
func (cr *CanvasRenderer) Render(objects []models.GridObject, vp models.ViewportPosition) models.Observation {
	cr.paint(objects)
	x1, y1, _, _ := grid_world.ViewportRect(cr.geom, vp)
	rect := image.Rect(int(x1), int(y1), int(x1)+cr.geom.ViewportWidth(), int(y1)+cr.geom.ViewportHeight())
	return crop(cr.canvas, rect)
}

// Canvas renders the full grid without cropping.
func (cr *CanvasRenderer) Canvas(objects []models.GridObject) *image.RGBA {
	cr.paint(objects)
	return cr.canvas
}

func (cr *CanvasRenderer) paint(objects []models.GridObject) {
	bounds := cr.canvas.Bounds()
	draw.Draw(cr.canvas, bounds, &image.Uniform{C: backgroundColor}, image.Point{}, draw.Src)

	for i := range objects {
		obj := &objects[i]
		x := int(math.Floor(obj.PositionX))
		y := int(math.Floor(obj.PositionY))
		size := int(obj.Size)
		r := image.Rect(x, y, x+size, y+size).Intersect(bounds)
		draw.Draw(cr.canvas, r, &image.Uniform{C: objectColor}, image.Point{}, draw.Src)
	}

	w, h := bounds.Dx(), bounds.Dy()
	for i := 0; i < cr.geom.NumGridY; i++ {
		y := cr.geom.GridSize * i
		draw.Draw(cr.canvas, image.Rect(0, y, w, y+1), &image.Uniform{C: gridlineColor}, image.Point{}, draw.Src)
	}
	for i := 0; i < cr.geom.NumGridX; i++ {
		x := cr.geom.GridSize * i
		draw.Draw(cr.canvas, image.Rect(x, 0, x+1, h), &image.Uniform{C: gridlineColor}, image.Point{}, draw.Src)
	}
}

// crop copies rect out of img into an observation of rect's size. Pixels of rect that
// fall outside img are left black.
func crop(img *image.RGBA, rect image.Rectangle) models.Observation {
	obs := models.NewObservation(rect.Dx(), rect.Dy())
	visible := rect.Intersect(img.Bounds())
	for y := visible.Min.Y; y < visible.Max.Y; y++ {
		for x := visible.Min.X; x < visible.Max.X; x++ {
			src := img.PixOffset(x, y)
			dst := ((y-rect.Min.Y)*obs.Width + (x - rect.Min.X)) * 3
			copy(obs.Pix[dst:dst+3], img.Pix[src:src+3])
		}
	}
	return obs
}

// CropFrame copies rect out of a recorded frame, with the same out-of-bounds
// behavior as the canvas crop.
func CropFrame(frame models.Frame, rect image.Rectangle) models.Observation {
	obs := models.NewObservation(rect.Dx(), rect.Dy())
	visible := rect.Intersect(image.Rect(0, 0, frame.Width, frame.Height))
	for y := visible.Min.Y; y < visible.Max.Y; y++ {
		src := (y*frame.Width + visible.Min.X) * 3
		dst := ((y-rect.Min.Y)*obs.Width + (visible.Min.X - rect.Min.X)) * 3
		n := visible.Dx() * 3
		copy(obs.Pix[dst:dst+n], frame.Pix[src:src+n])
	}
	return obs
}
