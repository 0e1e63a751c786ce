package controller

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/gridsim/internal/gridmap"
	"github.com/banshee-data/gridsim/internal/pointcloud"
	"github.com/banshee-data/gridsim/internal/robot"
	"github.com/banshee-data/gridsim/internal/sensing"
	"github.com/banshee-data/gridsim/internal/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSensor returns a single point 3m ahead of the robot along +X and
// remembers every pose it was asked to sense from.
type recordingSensor struct {
	mu    sync.Mutex
	poses []robot.Pose
	fail  error
	nan   bool
}

func (s *recordingSensor) Sense(p robot.Pose) (pointcloud.PointCloud, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.poses = append(s.poses, p)
	if s.fail != nil {
		return pointcloud.PointCloud{}, s.fail
	}
	if s.nan {
		return pointcloud.FromXY(math.NaN(), 0), nil
	}
	return pointcloud.FromXY(p.Position.X+3, p.Position.Y), nil
}

func testGrid() *gridmap.Config {
	return gridmap.DefaultConfig().WithSize(10).WithCellSize(1)
}

func newTestController(t *testing.T, sensor sensing.Sensor, kin robot.Kinematics) *Controller {
	t.Helper()
	c, err := New(Config{
		RunID:      "test-run",
		Grid:       testGrid(),
		Start:      robot.NewPose(0.5, -0.5, 0),
		Kinematics: kin,
		Sensor:     sensor,
	})
	require.NoError(t, err)
	return c
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{Grid: testGrid()})
	assert.Error(t, err, "missing sensor")

	_, err = New(Config{Grid: testGrid(), Sensor: sensing.Static{}, Start: robot.Pose{Heading: math.Inf(1)}})
	assert.True(t, errors.Is(err, gridmap.ErrNonFiniteInput))

	_, err = New(Config{Grid: gridmap.DefaultConfig().WithSize(-1), Sensor: sensing.Static{}})
	assert.Error(t, err)

	c, err := New(Config{Sensor: sensing.Static{}})
	require.NoError(t, err)
	assert.NotEmpty(t, c.RunID(), "run id defaults to a uuid")
	assert.Equal(t, 100, c.Grid().Size())
}

func TestTickSensesFromAdvancedPose(t *testing.T) {
	sensor := &recordingSensor{}
	c := newTestController(t, sensor, robot.Unicycle{LinearVelocity: 1})

	f, err := c.Tick(time.Second)
	require.NoError(t, err)

	require.Len(t, sensor.poses, 1)
	assert.InDelta(t, 1.5, sensor.poses[0].Position.X, 1e-12, "sensed from the new pose")
	assert.Equal(t, sensor.poses[0], f.Pose)
	assert.Equal(t, uint64(1), f.Tick)
	assert.Equal(t, "test-run", f.RunID)

	// The ray starts at the new pose, so the start cell is not free.
	c0, _ := f.Grid.CellState(0, 0)
	c1, _ := f.Grid.CellState(0, 1)
	c4, _ := f.Grid.CellState(0, 4)
	assert.Equal(t, gridmap.Unknown, c0.State)
	assert.Equal(t, gridmap.Freespace, c1.State)
	assert.Equal(t, gridmap.Occupied, c4.State)
	assert.Equal(t, 1, f.Stats.Rays)
}

func TestTickSingleReturnScenario(t *testing.T) {
	c, err := New(Config{
		Grid:   testGrid(),
		Start:  robot.NewPose(0, 0, 0),
		Sensor: sensing.Static{Cloud: pointcloud.FromXY(5, 0)},
	})
	require.NoError(t, err)

	f, err := c.Tick(100 * time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, ".....#????", f.Grid.Rows()[0])
	assert.Equal(t, gridmap.Counts{Unknown: 94, Freespace: 5, Occupied: 1}, f.Grid.Counts())
}

func TestTickRejectsNonFiniteCloud(t *testing.T) {
	sensor := &recordingSensor{}
	c := newTestController(t, sensor, robot.Unicycle{LinearVelocity: 1})

	first, err := c.Tick(time.Second)
	require.NoError(t, err)

	sensor.nan = true
	_, err = c.Tick(time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gridmap.ErrNonFiniteInput))

	after := c.Snapshot()
	assert.Equal(t, first.Tick, after.Tick)
	assert.Equal(t, first.Pose, after.Pose, "pose must not be committed")
	assert.Equal(t, first.Cloud.Points(), after.Cloud.Points(), "cloud must not be published")
	assert.Equal(t, first.Grid.Seq, after.Grid.Seq)
}

func TestTickRejectsSensorError(t *testing.T) {
	boom := errors.New("sensor offline")
	sensor := &recordingSensor{fail: boom}
	c := newTestController(t, sensor, robot.Unicycle{LinearVelocity: 1})

	_, err := c.Tick(time.Second)
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, robot.NewPose(0.5, -0.5, 0), c.Snapshot().Pose)
	assert.Equal(t, uint64(0), c.Snapshot().Tick)
}

type nanKinematics struct{}

func (nanKinematics) Step(robot.Pose, time.Duration) robot.Pose {
	return robot.Pose{Heading: math.NaN()}
}

func TestTickRejectsNonFinitePose(t *testing.T) {
	sensor := &recordingSensor{}
	c := newTestController(t, sensor, nanKinematics{})

	_, err := c.Tick(time.Second)
	assert.True(t, errors.Is(err, gridmap.ErrNonFiniteInput))
	assert.Empty(t, sensor.poses, "sensor must not run for a rejected pose")
}

func TestSnapshotIsConsistentUnderConcurrentTicks(t *testing.T) {
	sensor := &recordingSensor{}
	c := newTestController(t, sensor, robot.NewWaypoints(
		robot.NewPose(0.5, -0.5, 0), robot.NewPose(0.5, -2.5, 0),
		robot.NewPose(0.5, -4.5, 0), robot.NewPose(0.5, -6.5, 0),
		robot.NewPose(2.5, -8.5, 0),
	))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				f := c.Snapshot()
				if f.Grid.Seq != f.Tick {
					t.Errorf("grid seq %d does not match tick %d", f.Grid.Seq, f.Tick)
					return
				}
				if f.Tick > 0 {
					p := f.Cloud.At(0).Pos
					if p.X != f.Pose.Position.X+3 || p.Y != f.Pose.Position.Y {
						t.Errorf("cloud %v does not belong to pose %v", p, f.Pose)
						return
					}
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		_, err := c.Tick(10 * time.Millisecond)
		require.NoError(t, err)
	}
	cancel()
	wg.Wait()
}

func TestRunTicksOnClock(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	sensor := &recordingSensor{}
	c := newTestController(t, sensor, robot.Unicycle{LinearVelocity: 2})

	frames := make(chan Frame, 8)
	sink := FrameSinkFunc(func(_ context.Context, f Frame) error {
		frames <- f
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, clock, 250*time.Millisecond, sink) }()

	clock.WaitForTickers(1)
	for i := 1; i <= 3; i++ {
		clock.Advance(250 * time.Millisecond)
		select {
		case f := <-frames:
			assert.Equal(t, uint64(i), f.Tick)
			assert.InDelta(t, 0.5+0.5*float64(i), f.Pose.Position.X, 1e-9)
		case <-time.After(2 * time.Second):
			t.Fatalf("no frame for tick %d", i)
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunStopsAtMaxTicks(t *testing.T) {
	clock := timeutil.NewMockClock(time.Time{})
	c, err := New(Config{
		Grid:     testGrid(),
		Sensor:   sensing.Static{Cloud: pointcloud.FromXY(5, -5)},
		Start:    robot.NewPose(1, -1, 0),
		MaxTicks: 2,
	})
	require.NoError(t, err)

	sinkErr := errors.New("disk full")
	var calls int
	sink := FrameSinkFunc(func(context.Context, Frame) error {
		calls++
		return sinkErr
	})

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background(), clock, time.Second, sink) }()
	clock.WaitForTickers(1)

	for {
		select {
		case err := <-done:
			require.NoError(t, err, "sink errors do not stop the run")
			assert.Equal(t, 2, calls)
			assert.Equal(t, uint64(2), c.Snapshot().Tick)
			return
		case <-time.After(10 * time.Millisecond):
			clock.Advance(time.Second)
		}
	}
}

func TestRunReturnsTickError(t *testing.T) {
	clock := timeutil.NewMockClock(time.Time{})
	c := newTestController(t, &recordingSensor{nan: true}, nil)

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background(), clock, time.Second, nil) }()
	clock.WaitForTickers(1)
	clock.Advance(time.Second)

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, gridmap.ErrNonFiniteInput))
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return the tick error")
	}
}

func TestRunRejectsBadInterval(t *testing.T) {
	c := newTestController(t, sensing.Static{}, nil)
	assert.Error(t, c.Run(context.Background(), timeutil.RealClock{}, 0, nil))
}

func TestMultiSink(t *testing.T) {
	var got []string
	a := FrameSinkFunc(func(context.Context, Frame) error { got = append(got, "a"); return errors.New("a failed") })
	b := FrameSinkFunc(func(context.Context, Frame) error { got = append(got, "b"); return nil })

	err := MultiSink{a, b}.HandleFrame(context.Background(), Frame{})
	assert.Error(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.NoError(t, MultiSink{b}.HandleFrame(context.Background(), Frame{}))
}
