package grid_world

import (
	"ptzcam/models"
)

// ViewportRect returns the pixel rectangle [x1, x2) x [y1, y2) covered by a viewport
// whose upper-left cell is vp.
func ViewportRect(geom Geometry, vp models.ViewportPosition) (x1, y1, x2, y2 float64) {
	x1 = float64(vp.X * geom.GridSize)
	y1 = float64(vp.Y * geom.GridSize)
	x2 = x1 + float64(geom.ViewportWidth())
	y2 = y1 + float64(geom.ViewportHeight())
	return
}

// CountInViewport counts the objects whose midpoint lies in the viewport. The bounds
// are half-open: the left and top edges are inside, the right and bottom are not.
func CountInViewport(
	objects []models.GridObject,
	geom Geometry,
	vp models.ViewportPosition,
) (count int) {
	x1, y1, x2, y2 := ViewportRect(geom, vp)
	for i := range objects {
		mx, my := objects[i].Midpoint()
		if x1 <= mx && mx < x2 && y1 <= my && my < y2 {
			count++
		}
	}
	return
}

// CountAllViewports slides the viewport over every valid upper-left cell and returns
// the full coverage map, with (maxX+1)*(maxY+1) entries. Nothing is cached between
// calls.
func CountAllViewports(objects []models.GridObject, geom Geometry) models.CoverageMap {
	maxX, maxY := geom.MaxViewport()
	coverage := make(models.CoverageMap, (maxX+1)*(maxY+1))
	for y := 0; y <= maxY; y++ {
		for x := 0; x <= maxX; x++ {
			vp := models.ViewportPosition{X: x, Y: y}
			coverage[vp] = CountInViewport(objects, geom, vp)
		}
	}
	return coverage
}
