// Package robot holds the robot pose and the kinematic models that advance it
// between ticks.
package robot

import (
	"fmt"
	"math"

	"github.com/banshee-data/gridsim/internal/geometry"
)

// Pose is a robot position in the world frame and its heading in radians,
// measured counter-clockwise from +X.
type Pose struct {
	Position geometry.Vector
	Heading  float64
}

// NewPose constructs a pose with a normalised heading.
func NewPose(x, y, heading float64) Pose {
	return Pose{Position: geometry.NewVector(x, y), Heading: NormalizeAngle(heading)}
}

func (p Pose) String() string {
	return fmt.Sprintf("Pose(%g, %g, %.3frad)", p.Position.X, p.Position.Y, p.Heading)
}

// IsFinite reports whether position and heading are all finite.
func (p Pose) IsFinite() bool {
	return p.Position.IsFinite() && !math.IsNaN(p.Heading) && !math.IsInf(p.Heading, 0)
}

// Point returns the pose position as a point.
func (p Pose) Point() geometry.Point {
	return geometry.PointFromVector(p.Position)
}

// ToWorld maps a point expressed in the robot frame (X forward, Y left) into
// the world frame.
func (p Pose) ToWorld(local geometry.Point) geometry.Point {
	return geometry.PointFromVector(p.Position.Add(local.Pos.Rotate(p.Heading)))
}

// NormalizeAngle wraps theta into (-π, π].
func NormalizeAngle(theta float64) float64 {
	theta = math.Mod(theta, 2*math.Pi)
	if theta <= -math.Pi {
		theta += 2 * math.Pi
	} else if theta > math.Pi {
		theta -= 2 * math.Pi
	}
	return theta
}

// Robot owns the current pose. It carries no other state the mapping core
// depends on.
type Robot struct {
	pose Pose
}

// New creates a robot at the given pose.
func New(start Pose) *Robot {
	return &Robot{pose: start}
}

// Pose returns the current pose.
func (r *Robot) Pose() Pose { return r.pose }

// SetPose replaces the current pose.
func (r *Robot) SetPose(p Pose) { r.pose = p }
