package geometry

import (
	"fmt"
	"math"
)

// parallelEpsilon bounds the cross product below which two segments are
// treated as parallel and never intersect.
const parallelEpsilon = 1e-12

// Line is a finite segment from Start to End.
type Line struct {
	Start, End Point
}

// NewLine constructs a segment from two points.
func NewLine(start, end Point) Line {
	return Line{Start: start, End: end}
}

func (l Line) String() string {
	return fmt.Sprintf("Line(%v -> %v)", l.Start, l.End)
}

// Direction returns End - Start.
func (l Line) Direction() Vector {
	return l.End.Pos.Sub(l.Start.Pos)
}

// Length returns the segment length.
func (l Line) Length() float64 {
	return l.Direction().Length()
}

// At returns the point at parameter t along the segment; t=0 is Start and
// t=1 is End.
func (l Line) At(t float64) Point {
	return PointFromVector(l.Start.Pos.Add(l.Direction().Scale(t)))
}

// Intersect returns the intersection of l and o. The returned t is the
// parameter along l. Parallel and collinear segments report no intersection.
func (l Line) Intersect(o Line) (p Point, t float64, ok bool) {
	r := l.Direction()
	s := o.Direction()
	denom := r.Cross(s)
	if math.Abs(denom) < parallelEpsilon {
		return Point{}, 0, false
	}
	qp := o.Start.Pos.Sub(l.Start.Pos)
	t = qp.Cross(s) / denom
	u := qp.Cross(r) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return Point{}, 0, false
	}
	return l.At(t), t, true
}
