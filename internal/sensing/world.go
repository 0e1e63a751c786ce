// Package sensing produces the per-tick point cloud consumed by the grid.
// Sensors return points in the world frame; every point is an obstacle
// return.
package sensing

import (
	"math"

	"github.com/banshee-data/gridsim/internal/geometry"
)

// World is the static environment the simulated sensor observes: a set of
// wall segments. It is immutable after construction.
type World struct {
	walls []geometry.Line
}

// NewWorld copies walls into a new World.
func NewWorld(walls ...geometry.Line) *World {
	w := make([]geometry.Line, len(walls))
	copy(w, walls)
	return &World{walls: w}
}

// BoxWorld returns a world bounded by the axis-aligned rectangle with the
// given corners.
func BoxWorld(minX, minY, maxX, maxY float64) *World {
	a := geometry.NewPoint(minX, minY)
	b := geometry.NewPoint(maxX, minY)
	c := geometry.NewPoint(maxX, maxY)
	d := geometry.NewPoint(minX, maxY)
	return NewWorld(
		geometry.NewLine(a, b),
		geometry.NewLine(b, c),
		geometry.NewLine(c, d),
		geometry.NewLine(d, a),
	)
}

// Walls returns a copy of the wall segments.
func (w *World) Walls() []geometry.Line {
	out := make([]geometry.Line, len(w.walls))
	copy(out, w.walls)
	return out
}

// Cast traces a ray from origin along heading (radians) and returns the
// distance to the nearest wall within maxRange. ok is false when nothing is
// hit.
func (w *World) Cast(origin geometry.Vector, heading, maxRange float64) (dist float64, ok bool) {
	ray := geometry.NewLine(
		geometry.PointFromVector(origin),
		geometry.PointFromVector(origin.Add(geometry.FromAngle(heading).Scale(maxRange))),
	)
	best := math.Inf(1)
	for _, wall := range w.walls {
		if _, t, hit := ray.Intersect(wall); hit && t < best {
			best = t
		}
	}
	if math.IsInf(best, 1) {
		return 0, false
	}
	return best * maxRange, true
}
