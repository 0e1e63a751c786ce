// Package controller drives the simulation: each tick advances the robot,
// senses from the new pose and folds the observation into the grid.
//
// A tick is atomic. If sensing or the grid update fails, the robot pose and
// the published cloud stay as they were after the previous tick. Snapshot and
// Tick are serialised so a Frame's pose, cloud and grid always belong to the
// same tick.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/gridsim/internal/gridmap"
	"github.com/banshee-data/gridsim/internal/pointcloud"
	"github.com/banshee-data/gridsim/internal/robot"
	"github.com/banshee-data/gridsim/internal/sensing"
	"github.com/banshee-data/gridsim/internal/timeutil"
	"github.com/google/uuid"
)

// Config assembles the parts a Controller owns.
type Config struct {
	RunID      string           // identifies this run in storage and streams (default: random UUID)
	Grid       *gridmap.Config  // grid geometry and policy (default: gridmap.DefaultConfig)
	Start      robot.Pose       // initial pose
	Kinematics robot.Kinematics // pose model (default: stationary)
	Sensor     sensing.Sensor   // required
	MaxTicks   uint64           // Run stops after this many ticks; 0 means unlimited
}

// Frame is an immutable view of the simulation after one tick.
type Frame struct {
	RunID string
	Tick  uint64
	Pose  robot.Pose
	Cloud pointcloud.PointCloud
	Grid  *gridmap.Snapshot
	Stats gridmap.UpdateStats
}

// FrameSink receives every committed frame from Run.
type FrameSink interface {
	HandleFrame(ctx context.Context, f Frame) error
}

// FrameSinkFunc adapts a function to FrameSink.
type FrameSinkFunc func(ctx context.Context, f Frame) error

// HandleFrame calls fn.
func (fn FrameSinkFunc) HandleFrame(ctx context.Context, f Frame) error { return fn(ctx, f) }

// MultiSink delivers each frame to every sink in order. All sinks are called
// even if one fails; the errors are joined.
type MultiSink []FrameSink

// HandleFrame fans the frame out.
func (m MultiSink) HandleFrame(ctx context.Context, f Frame) error {
	var errs []error
	for _, s := range m {
		if err := s.HandleFrame(ctx, f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Controller owns the grid and the robot for one run.
type Controller struct {
	runID    string
	grid     *gridmap.GridMap
	sensor   sensing.Sensor
	kin      robot.Kinematics
	maxTicks uint64

	mu    sync.RWMutex // serialises Tick against Snapshot
	robot *robot.Robot
	tick  uint64
	cloud pointcloud.PointCloud
	stats gridmap.UpdateStats
}

// New builds a controller with a freshly allocated grid.
func New(cfg Config) (*Controller, error) {
	if cfg.Sensor == nil {
		return nil, fmt.Errorf("controller requires a sensor")
	}
	if !cfg.Start.IsFinite() {
		return nil, fmt.Errorf("start pose %v: %w", cfg.Start, gridmap.ErrNonFiniteInput)
	}
	grid, err := gridmap.New(cfg.Grid)
	if err != nil {
		return nil, err
	}
	kin := cfg.Kinematics
	if kin == nil {
		kin = robot.Unicycle{}
	}
	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	diagf("run %s: start=%v grid=%dx%d@%gm policy=%s", runID, cfg.Start,
		grid.Size(), grid.Size(), grid.CellSize(), grid.Policy().Name())
	return &Controller{
		runID:    runID,
		grid:     grid,
		sensor:   cfg.Sensor,
		kin:      kin,
		maxTicks: cfg.MaxTicks,
		robot:    robot.New(cfg.Start),
	}, nil
}

// RunID returns the run identifier.
func (c *Controller) RunID() string { return c.runID }

// Grid returns the grid for read-only queries. Callers must not Update or
// Restore it while the controller is running.
func (c *Controller) Grid() *gridmap.GridMap { return c.grid }

// Tick advances the simulation by dt: step the pose, sense from the new pose,
// then update the grid with that same pose and cloud. On error nothing is
// committed.
func (c *Controller) Tick(dt time.Duration) (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.kin.Step(c.robot.Pose(), dt)
	if !next.IsFinite() {
		opsf("run %s tick %d rejected: kinematics produced %v", c.runID, c.tick+1, next)
		return Frame{}, fmt.Errorf("tick %d: pose %v: %w", c.tick+1, next, gridmap.ErrNonFiniteInput)
	}

	cloud, err := c.sensor.Sense(next)
	if err != nil {
		opsf("run %s tick %d rejected: sense: %v", c.runID, c.tick+1, err)
		return Frame{}, fmt.Errorf("tick %d: sense: %w", c.tick+1, err)
	}

	stats, err := c.grid.Update(next, cloud)
	if err != nil {
		opsf("run %s tick %d rejected: %v", c.runID, c.tick+1, err)
		return Frame{}, fmt.Errorf("tick %d: %w", c.tick+1, err)
	}

	c.robot.SetPose(next)
	c.cloud = cloud
	c.stats = stats
	c.tick++

	tracef("run %s tick %d pose=%v points=%d freed=%d occupied=%d",
		c.runID, c.tick, next, cloud.Len(), stats.CellsFreed, stats.CellsOccupied)
	return c.frameLocked(), nil
}

// Snapshot returns the state after the most recent committed tick.
func (c *Controller) Snapshot() Frame {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frameLocked()
}

func (c *Controller) frameLocked() Frame {
	return Frame{
		RunID: c.runID,
		Tick:  c.tick,
		Pose:  c.robot.Pose(),
		Cloud: c.cloud,
		Grid:  c.grid.Snapshot(),
		Stats: c.stats,
	}
}

// Run ticks the controller every interval on clock until ctx is cancelled or
// MaxTicks is reached. dt for each tick is the clock time elapsed since the
// previous one. Each committed frame is passed to sink, if non-nil; sink
// errors are logged and do not stop the run. A failed tick stops the run and
// its error is returned.
func (c *Controller) Run(ctx context.Context, clock timeutil.Clock, interval time.Duration, sink FrameSink) error {
	if interval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %v", interval)
	}
	last := clock.Now()
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	diagf("run %s: ticking every %v (max ticks %d)", c.runID, interval, c.maxTicks)
	for {
		select {
		case <-ctx.Done():
			diagf("run %s: stopped at tick %d: %v", c.runID, c.Snapshot().Tick, ctx.Err())
			return nil
		case now := <-ticker.C():
			dt := now.Sub(last)
			last = now

			frame, err := c.Tick(dt)
			if err != nil {
				return err
			}
			if sink != nil {
				if err := sink.HandleFrame(ctx, frame); err != nil {
					opsf("run %s tick %d: sink: %v", c.runID, frame.Tick, err)
				}
			}
			if c.maxTicks > 0 && frame.Tick >= c.maxTicks {
				diagf("run %s: reached max ticks %d", c.runID, c.maxTicks)
				return nil
			}
		}
	}
}
