package geometry

import "fmt"

// Point is a location in the world frame.
type Point struct {
	Pos Vector
}

// NewPoint constructs a point at (x, y).
func NewPoint(x, y float64) Point {
	return Point{Pos: NewVector(x, y)}
}

// PointFromVector wraps a position vector.
func PointFromVector(pos Vector) Point {
	return Point{Pos: pos}
}

func (p Point) String() string {
	return fmt.Sprintf("Point(%g, %g)", p.Pos.X, p.Pos.Y)
}

// Equal delegates to the wrapped vector.
func (p Point) Equal(o Point) bool { return p.Pos.Equal(o.Pos) }

// Distance returns the distance from the coordinate origin. For the distance
// between two points use p.Pos.Sub(o.Pos).Length().
func (p Point) Distance() float64 {
	return p.Pos.Length()
}
