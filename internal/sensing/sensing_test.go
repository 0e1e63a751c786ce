package sensing

import (
	"math"
	"testing"

	"github.com/banshee-data/gridsim/internal/geometry"
	"github.com/banshee-data/gridsim/internal/pointcloud"
	"github.com/banshee-data/gridsim/internal/robot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singleBeam(maxRange float64) Config {
	return Config{BeamCount: 1, FieldOfView: 0, MaxRange: maxRange}
}

func TestWorldCast(t *testing.T) {
	w := BoxWorld(-5, -5, 5, 5)

	d, ok := w.Cast(geometry.NewVector(0, 0), 0, 8)
	require.True(t, ok)
	assert.InDelta(t, 5.0, d, 1e-12)

	d, ok = w.Cast(geometry.NewVector(2, 1), math.Pi, 20)
	require.True(t, ok)
	assert.InDelta(t, 7.0, d, 1e-9)

	_, ok = w.Cast(geometry.NewVector(0, 0), 0, 4)
	assert.False(t, ok, "wall beyond max range")

	_, ok = NewWorld().Cast(geometry.NewVector(0, 0), 0, 100)
	assert.False(t, ok, "empty world")
}

func TestWorldWallsIsCopy(t *testing.T) {
	w := BoxWorld(0, 0, 1, 1)
	walls := w.Walls()
	require.Len(t, walls, 4)
	walls[0] = geometry.Line{}
	assert.NotEqual(t, geometry.Line{}, w.Walls()[0])
}

func TestConfigBeamAngles(t *testing.T) {
	assert.Equal(t, []float64{0}, singleBeam(1).BeamAngles())

	fov := Config{BeamCount: 3, FieldOfView: math.Pi / 2, MaxRange: 1}.BeamAngles()
	assert.InDeltaSlice(t, []float64{-math.Pi / 4, 0, math.Pi / 4}, fov, 1e-12)

	full := Config{BeamCount: 4, FieldOfView: 2 * math.Pi, MaxRange: 1}.BeamAngles()
	assert.InDeltaSlice(t, []float64{-math.Pi, -math.Pi / 2, 0, math.Pi / 2}, full, 1e-12)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := []Config{
		{BeamCount: 0, FieldOfView: 1, MaxRange: 1},
		{BeamCount: 1, FieldOfView: -1, MaxRange: 1},
		{BeamCount: 1, FieldOfView: 7, MaxRange: 1},
		{BeamCount: 1, FieldOfView: 1, MaxRange: 0},
		{BeamCount: 1, FieldOfView: 1, MaxRange: math.Inf(1)},
		{BeamCount: 1, FieldOfView: 1, MaxRange: 1, RangeNoise: math.NaN()},
	}
	for i, c := range bad {
		assert.Error(t, c.Validate(), "case %d", i)
	}
}

func TestRangeSensorSingleBeam(t *testing.T) {
	s, err := NewRangeSensor(BoxWorld(-5, -5, 5, 5), singleBeam(8))
	require.NoError(t, err)

	cloud, err := s.Sense(robot.NewPose(0, 0, 0))
	require.NoError(t, err)
	require.Equal(t, 1, cloud.Len())
	assert.InDelta(t, 5.0, cloud.At(0).Pos.X, 1e-12)
	assert.InDelta(t, 0.0, cloud.At(0).Pos.Y, 1e-12)

	cloud, err = s.Sense(robot.NewPose(1, 1, math.Pi/2))
	require.NoError(t, err)
	require.Equal(t, 1, cloud.Len())
	assert.InDelta(t, 1.0, cloud.At(0).Pos.X, 1e-9)
	assert.InDelta(t, 5.0, cloud.At(0).Pos.Y, 1e-9)
}

func TestRangeSensorFullScan(t *testing.T) {
	s, err := NewRangeSensor(BoxWorld(-5, -5, 5, 5), Config{BeamCount: 4, FieldOfView: 2 * math.Pi, MaxRange: 10})
	require.NoError(t, err)

	cloud, err := s.Sense(robot.NewPose(0, 0, 0))
	require.NoError(t, err)
	require.Equal(t, 4, cloud.Len())

	want := [][2]float64{{-5, 0}, {0, -5}, {5, 0}, {0, 5}}
	for i, p := range cloud.Points() {
		assert.InDelta(t, want[i][0], p.Pos.X, 1e-9, "beam %d", i)
		assert.InDelta(t, want[i][1], p.Pos.Y, 1e-9, "beam %d", i)
	}
}

func TestRangeSensorDropsBeamsWithoutReturn(t *testing.T) {
	// Only the +X wall is within range from (3, 0).
	s, err := NewRangeSensor(BoxWorld(-5, -5, 5, 5), Config{BeamCount: 4, FieldOfView: 2 * math.Pi, MaxRange: 4})
	require.NoError(t, err)

	cloud, err := s.Sense(robot.NewPose(3, 0, 0))
	require.NoError(t, err)
	require.Equal(t, 1, cloud.Len())
	assert.InDelta(t, 5.0, cloud.At(0).Pos.X, 1e-9)
}

func TestRangeSensorNoiseIsSeeded(t *testing.T) {
	cfg := Config{BeamCount: 36, FieldOfView: 2 * math.Pi, MaxRange: 10, RangeNoise: 0.05, Seed: 7}
	world := BoxWorld(-5, -5, 5, 5)
	pose := robot.NewPose(0.3, -0.2, 0.1)

	a, err := NewRangeSensor(world, cfg)
	require.NoError(t, err)
	b, err := NewRangeSensor(world, cfg)
	require.NoError(t, err)
	exact, err := NewRangeSensor(world, Config{BeamCount: 36, FieldOfView: 2 * math.Pi, MaxRange: 10})
	require.NoError(t, err)

	ca, err := a.Sense(pose)
	require.NoError(t, err)
	cb, err := b.Sense(pose)
	require.NoError(t, err)
	ce, err := exact.Sense(pose)
	require.NoError(t, err)

	assert.Equal(t, ca.Points(), cb.Points(), "same seed, same scan")
	assert.NotEqual(t, ce.Points(), ca.Points())
	require.Equal(t, ce.Len(), ca.Len())
	for i := range ca.Len() {
		d := ca.At(i).Pos.Sub(ce.At(i).Pos).Length()
		assert.Less(t, d, 0.5, "beam %d moved %.3fm", i, d)
	}
}

func TestRangeSensorErrors(t *testing.T) {
	_, err := NewRangeSensor(nil, DefaultConfig())
	assert.Error(t, err)

	_, err = NewRangeSensor(NewWorld(), Config{})
	assert.Error(t, err)

	s, err := NewRangeSensor(NewWorld(), DefaultConfig())
	require.NoError(t, err)
	_, err = s.Sense(robot.Pose{Heading: math.NaN()})
	assert.Error(t, err)
}

func TestStatic(t *testing.T) {
	want := pointcloud.FromXY(1, 2, 3, 4)
	var s Sensor = Static{Cloud: want}
	got, err := s.Sense(robot.NewPose(100, 100, 1))
	require.NoError(t, err)
	assert.Equal(t, want.Points(), got.Points())
}
