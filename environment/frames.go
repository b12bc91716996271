package environment

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"ptzcam/models"
)

// FrameSource supplies a finite, ordered sequence of panoramic frames.
type FrameSource interface {
	FrameCount() int
	Load(index int) (models.Frame, error)
}

// MemoryFrames is a FrameSource over frames already in memory.
type MemoryFrames []models.Frame

func (mf MemoryFrames) FrameCount() int {
	return len(mf)
}

func (mf MemoryFrames) Load(index int) (models.Frame, error) {
	if index < 0 || index >= len(mf) {
		return models.Frame{}, fmt.Errorf("frame %d out of range [0, %d)", index, len(mf))
	}
	return mf[index], nil
}

// PNGFrames decodes PNG files on demand, one per Load. The paths are replayed in the
// order given; discovering and sorting them is up to the caller.
type PNGFrames struct {
	paths []string
}

func NewPNGFrames(paths []string) *PNGFrames {
	return &PNGFrames{paths: paths}
}

func (pf *PNGFrames) FrameCount() int {
	return len(pf.paths)
}

func (pf *PNGFrames) Load(index int) (frame models.Frame, err error) {
	if index < 0 || index >= len(pf.paths) {
		err = fmt.Errorf("frame %d out of range [0, %d)", index, len(pf.paths))
		return
	}

	var f *os.File
	if f, err = os.Open(pf.paths[index]); err != nil {
		err = fmt.Errorf("load frame %d: %w", index, err)
		return
	}
	defer f.Close()

	var img image.Image
	if img, err = png.Decode(f); err != nil {
		err = fmt.Errorf("decode frame %d (%s): %w", index, pf.paths[index], err)
		return
	}

	frame = FrameFromImage(img)
	return
}

// FrameFromImage converts any image to a packed RGB frame. Alpha is dropped without
// darkening, so translucent pixels keep their straight color.
func FrameFromImage(img image.Image) models.Frame {
	bounds := img.Bounds()
	frame := models.Frame(models.NewObservation(bounds.Dx(), bounds.Dy()))
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			frame.Pix[i] = c.R
			frame.Pix[i+1] = c.G
			frame.Pix[i+2] = c.B
			i += 3
		}
	}
	return frame
}
