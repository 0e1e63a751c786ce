package robot

import (
	"math"
	"time"
)

// Kinematics advances a pose by one simulation step. Implementations must be
// deterministic for a given input so replays reproduce the same trajectory.
type Kinematics interface {
	Step(current Pose, dt time.Duration) Pose
}

// Unicycle drives at a constant forward speed (m/s) and turn rate (rad/s),
// integrating exactly along the resulting arc.
type Unicycle struct {
	LinearVelocity  float64
	AngularVelocity float64
}

// turnEpsilon is the turn rate below which motion is integrated as a
// straight line.
const turnEpsilon = 1e-9

// Step implements Kinematics.
func (u Unicycle) Step(current Pose, dt time.Duration) Pose {
	secs := dt.Seconds()
	if secs <= 0 {
		return current
	}
	v, w := u.LinearVelocity, u.AngularVelocity
	th := current.Heading

	next := current
	if math.Abs(w) < turnEpsilon {
		next.Position.X += v * secs * math.Cos(th)
		next.Position.Y += v * secs * math.Sin(th)
		return next
	}

	r := v / w
	th2 := th + w*secs
	next.Position.X += r * (math.Sin(th2) - math.Sin(th))
	next.Position.Y -= r * (math.Cos(th2) - math.Cos(th))
	next.Heading = NormalizeAngle(th2)
	return next
}

// Waypoints replays a scripted pose sequence, one pose per step, holding the
// last pose once the script is exhausted. The current pose passed to Step is
// ignored. Not safe for concurrent use.
type Waypoints struct {
	poses []Pose
	next  int
}

// NewWaypoints creates a scripted model. An empty script holds the robot in
// place.
func NewWaypoints(poses ...Pose) *Waypoints {
	cp := make([]Pose, len(poses))
	copy(cp, poses)
	return &Waypoints{poses: cp}
}

// Step implements Kinematics.
func (w *Waypoints) Step(current Pose, _ time.Duration) Pose {
	if len(w.poses) == 0 {
		return current
	}
	if w.next >= len(w.poses) {
		return w.poses[len(w.poses)-1]
	}
	p := w.poses[w.next]
	w.next++
	return p
}

// Remaining returns the number of scripted poses not yet emitted.
func (w *Waypoints) Remaining() int {
	if w.next >= len(w.poses) {
		return 0
	}
	return len(w.poses) - w.next
}
