// Package gridmap owns the occupancy grid: a fixed-size square array of cells
// classified as Unknown, Freespace or Occupied from sensor point clouds.
//
// Responsibilities: world <-> cell coordinate transform, supercover ray
// rasterisation, the per-update classification rule (pluggable Policy), and
// immutable snapshots for readers and persistence.
// Key types: GridMap, Config, Cell, Snapshot, Policy.
//
// Row 0 is the top of the grid: row index grows as world Y decreases.
//
// Concurrency: one writer (Update) and any number of readers. Update holds the
// write lock for the whole point cloud, so a reader never sees some rays of an
// update applied and others not.
//
// Dependency rule: gridmap depends on geometry, pointcloud and robot only.
// No rendering, SQL or transport code belongs here.
package gridmap
