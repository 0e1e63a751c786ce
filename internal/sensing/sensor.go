package sensing

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/banshee-data/gridsim/internal/geometry"
	"github.com/banshee-data/gridsim/internal/pointcloud"
	"github.com/banshee-data/gridsim/internal/robot"
	"gonum.org/v1/gonum/stat/distuv"
)

// Sensor observes the world from a pose and returns world-frame points.
type Sensor interface {
	Sense(pose robot.Pose) (pointcloud.PointCloud, error)
}

// Config holds the range sensor parameters.
type Config struct {
	BeamCount   int     // beams per scan (default: 180)
	FieldOfView float64 // total angular span in radians, centred on the heading (default: 2π)
	MaxRange    float64 // meters (default: 8)
	RangeNoise  float64 // standard deviation of range noise in meters; 0 disables
	Seed        uint64  // noise source seed
}

// DefaultConfig returns a full-circle 180 beam scanner with an 8m range and no
// noise.
func DefaultConfig() Config {
	return Config{
		BeamCount:   180,
		FieldOfView: 2 * math.Pi,
		MaxRange:    8,
	}
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.BeamCount <= 0 {
		return fmt.Errorf("BeamCount must be positive, got %d", c.BeamCount)
	}
	if !(c.FieldOfView >= 0) || c.FieldOfView > 2*math.Pi {
		return fmt.Errorf("FieldOfView must be in [0, 2π], got %v", c.FieldOfView)
	}
	if !(c.MaxRange > 0) || math.IsInf(c.MaxRange, 0) {
		return fmt.Errorf("MaxRange must be positive and finite, got %v", c.MaxRange)
	}
	if !(c.RangeNoise >= 0) || math.IsInf(c.RangeNoise, 0) {
		return fmt.Errorf("RangeNoise must be non-negative and finite, got %v", c.RangeNoise)
	}
	return nil
}

// BeamAngles returns the beam directions relative to the heading. A full
// circle is split into BeamCount equal sectors so the first and last beams do
// not coincide.
func (c Config) BeamAngles() []float64 {
	angles := make([]float64, c.BeamCount)
	if c.BeamCount == 1 {
		return angles
	}
	step := c.FieldOfView / float64(c.BeamCount-1)
	if c.FieldOfView >= 2*math.Pi {
		step = c.FieldOfView / float64(c.BeamCount)
	}
	start := -c.FieldOfView / 2
	for i := range angles {
		angles[i] = start + float64(i)*step
	}
	return angles
}

// RangeSensor is a simulated planar range finder. Beams that hit nothing
// within MaxRange produce no point.
type RangeSensor struct {
	world  *World
	cfg    Config
	angles []float64

	mu    sync.Mutex // guards noise
	noise *distuv.Normal
}

// NewRangeSensor creates a sensor observing world.
func NewRangeSensor(world *World, cfg Config) (*RangeSensor, error) {
	if world == nil {
		return nil, fmt.Errorf("range sensor requires a world")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sensor config: %w", err)
	}
	s := &RangeSensor{world: world, cfg: cfg, angles: cfg.BeamAngles()}
	if cfg.RangeNoise > 0 {
		s.noise = &distuv.Normal{
			Mu:    0,
			Sigma: cfg.RangeNoise,
			Src:   rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15),
		}
	}
	return s, nil
}

// Config returns the sensor configuration.
func (s *RangeSensor) Config() Config { return s.cfg }

// Sense casts every beam from pose. Noisy ranges are clamped to
// [0, MaxRange].
func (s *RangeSensor) Sense(pose robot.Pose) (pointcloud.PointCloud, error) {
	if !pose.IsFinite() {
		return pointcloud.PointCloud{}, fmt.Errorf("sense from non-finite pose %v", pose)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pts := make([]geometry.Point, 0, len(s.angles))
	for _, rel := range s.angles {
		dir := pose.Heading + rel
		r, ok := s.world.Cast(pose.Position, dir, s.cfg.MaxRange)
		if !ok {
			continue
		}
		if s.noise != nil {
			r = math.Min(math.Max(r+s.noise.Rand(), 0), s.cfg.MaxRange)
		}
		pts = append(pts, geometry.PointFromVector(pose.Position.Add(geometry.FromAngle(dir).Scale(r))))
	}
	return pointcloud.New(pts...), nil
}

// Static is a Sensor that returns the same world-frame cloud from any pose.
type Static struct {
	Cloud pointcloud.PointCloud
}

// Sense returns the fixed cloud.
func (s Static) Sense(robot.Pose) (pointcloud.PointCloud, error) {
	return s.Cloud, nil
}
