package geometry

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Vector is a 2D displacement or position in world units (meters).
type Vector struct {
	X, Y float64
}

// NewVector constructs a vector from its components.
func NewVector(x, y float64) Vector { return Vector{X: x, Y: y} }

// FromAngle returns the unit vector (cos θ, sin θ). Callers scale it for magnitude.
func FromAngle(theta float64) Vector {
	return Vector{X: math.Cos(theta), Y: math.Sin(theta)}
}

func (v Vector) vec() r2.Vec { return r2.Vec{X: v.X, Y: v.Y} }
func fromR2(p r2.Vec) Vector { return Vector{X: p.X, Y: p.Y} }

func (v Vector) String() string { return fmt.Sprintf("Vector(%g, %g)", v.X, v.Y) }

// Equal reports component-wise equality.
func (v Vector) Equal(o Vector) bool { return v.X == o.X && v.Y == o.Y }

// Add returns v + o.
func (v Vector) Add(o Vector) Vector { return fromR2(r2.Add(v.vec(), o.vec())) }

// Sub returns v - o.
func (v Vector) Sub(o Vector) Vector { return fromR2(r2.Sub(v.vec(), o.vec())) }

// Scale returns v multiplied by k.
func (v Vector) Scale(k float64) Vector { return fromR2(r2.Scale(k, v.vec())) }

// Length returns the Euclidean norm. The zero vector has length 0.
func (v Vector) Length() float64 { return r2.Norm(v.vec()) }

// Dot returns the dot product.
func (v Vector) Dot(o Vector) float64 { return r2.Dot(v.vec(), o.vec()) }

// Cross returns the z component of the 3D cross product of v and o.
func (v Vector) Cross(o Vector) float64 { return r2.Cross(v.vec(), o.vec()) }

// Rotate returns v rotated counter-clockwise by theta radians.
func (v Vector) Rotate(theta float64) Vector {
	s, c := math.Sincos(theta)
	return Vector{X: v.X*c - v.Y*s, Y: v.X*s + v.Y*c}
}

// Angle returns the direction of v in radians, in (-π, π].
func (v Vector) Angle() float64 { return math.Atan2(v.Y, v.X) }

// IsFinite reports whether both components are finite numbers.
func (v Vector) IsFinite() bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}
