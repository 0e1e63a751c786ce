// Package pointcloud holds the ordered set of sensed points produced by one
// sensing cycle.
package pointcloud

import (
	"iter"
	"math"

	"github.com/banshee-data/gridsim/internal/geometry"
)

// PointCloud is an immutable, ordered, finite sequence of points. Order is the
// order the sensor emitted them and is preserved through every operation,
// since rasterisation visits points in this order. Duplicates are kept.
type PointCloud struct {
	points []geometry.Point
}

// New copies points into a new cloud.
func New(points ...geometry.Point) PointCloud {
	if len(points) == 0 {
		return PointCloud{}
	}
	cp := make([]geometry.Point, len(points))
	copy(cp, points)
	return PointCloud{points: cp}
}

// FromXY builds a cloud from interleaved coordinate pairs. A trailing odd
// value is ignored.
func FromXY(xy ...float64) PointCloud {
	pts := make([]geometry.Point, 0, len(xy)/2)
	for i := 0; i+1 < len(xy); i += 2 {
		pts = append(pts, geometry.NewPoint(xy[i], xy[i+1]))
	}
	return PointCloud{points: pts}
}

// Len returns the number of points.
func (c PointCloud) Len() int { return len(c.points) }

// At returns the i-th point. It panics if i is out of range, like a slice.
func (c PointCloud) At(i int) geometry.Point { return c.points[i] }

// All yields the points in order. The sequence can be ranged over any number
// of times and always produces the same points in the same order.
func (c PointCloud) All() iter.Seq[geometry.Point] {
	return func(yield func(geometry.Point) bool) {
		for _, p := range c.points {
			if !yield(p) {
				return
			}
		}
	}
}

// Points returns a copy of the underlying points.
func (c PointCloud) Points() []geometry.Point {
	cp := make([]geometry.Point, len(c.points))
	copy(cp, c.points)
	return cp
}

// Map returns a new cloud with fn applied to every point, preserving order.
// Used to move robot-frame returns into the world frame.
func (c PointCloud) Map(fn func(geometry.Point) geometry.Point) PointCloud {
	out := make([]geometry.Point, len(c.points))
	for i, p := range c.points {
		out[i] = fn(p)
	}
	return PointCloud{points: out}
}

// IsFinite reports whether every coordinate in the cloud is finite.
func (c PointCloud) IsFinite() bool {
	for _, p := range c.points {
		if !p.Pos.IsFinite() {
			return false
		}
	}
	return true
}

// Bounds returns the axis-aligned bounding box of the cloud. ok is false for
// an empty cloud.
func (c PointCloud) Bounds() (lo, hi geometry.Vector, ok bool) {
	if len(c.points) == 0 {
		return geometry.Vector{}, geometry.Vector{}, false
	}
	lo = geometry.NewVector(math.Inf(1), math.Inf(1))
	hi = geometry.NewVector(math.Inf(-1), math.Inf(-1))
	for _, p := range c.points {
		lo.X = math.Min(lo.X, p.Pos.X)
		lo.Y = math.Min(lo.Y, p.Pos.Y)
		hi.X = math.Max(hi.X, p.Pos.X)
		hi.Y = math.Max(hi.Y, p.Pos.Y)
	}
	return lo, hi, true
}
