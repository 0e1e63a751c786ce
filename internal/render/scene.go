// Package render draws simulation frames. A Scene is an ordered list of
// Drawables; the set of Drawable kinds is fixed by this package and every
// renderer handles each kind explicitly.
package render

import (
	"fmt"

	"github.com/banshee-data/gridsim/internal/controller"
	"github.com/banshee-data/gridsim/internal/geometry"
	"github.com/banshee-data/gridsim/internal/gridmap"
	"github.com/banshee-data/gridsim/internal/pointcloud"
	"github.com/banshee-data/gridsim/internal/robot"
)

// Drawable is one of Walls, Grid, RobotMarker or Cloud.
type Drawable interface {
	drawable()
}

// Walls draws world segments.
type Walls []geometry.Line

// Grid draws a grid snapshot, one coloured square per cell.
type Grid struct {
	Snapshot *gridmap.Snapshot
}

// RobotMarker draws the robot position and heading.
type RobotMarker struct {
	Pose robot.Pose
}

// Cloud draws sensor returns.
type Cloud struct {
	Points pointcloud.PointCloud
}

func (Walls) drawable()       {}
func (Grid) drawable()        {}
func (RobotMarker) drawable() {}
func (Cloud) drawable()       {}

// Scene is drawn back to front in Items order.
type Scene struct {
	Title string
	Items []Drawable
}

// SceneFromFrame stacks grid, walls, cloud and robot for one frame.
func SceneFromFrame(f controller.Frame, walls []geometry.Line) Scene {
	items := make([]Drawable, 0, 4)
	if f.Grid != nil {
		items = append(items, Grid{Snapshot: f.Grid})
	}
	if len(walls) > 0 {
		items = append(items, Walls(walls))
	}
	items = append(items, Cloud{Points: f.Cloud}, RobotMarker{Pose: f.Pose})
	return Scene{
		Title: fmt.Sprintf("run %s tick %d", shortID(f.RunID), f.Tick),
		Items: items,
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func unsupported(d Drawable) error {
	return fmt.Errorf("render: unsupported drawable %T", d)
}
