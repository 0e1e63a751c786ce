package gridmap

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/gridsim/internal/pointcloud"
	"github.com/banshee-data/gridsim/internal/robot"
)

// ErrNonFiniteInput is returned by Update when the pose or any point carries a
// NaN or infinite coordinate. The grid is left untouched.
var ErrNonFiniteInput = errors.New("non-finite input")

// GridMap is a fixed-size occupancy grid. Create it with New; the zero value
// is not usable.
type GridMap struct {
	frame  frame
	policy Policy

	// mu protects cells and seq. Update holds the write lock for the whole
	// point cloud.
	mu    sync.RWMutex
	cells []Cell // len = size*size, idx = row*size + col
	seq   uint64 // number of successful updates

	// lastUpdateDuration is the wall time spent in the most recent Update;
	// guarded by mu.
	lastUpdateDuration time.Duration
}

// UpdateStats summarises one Update call.
type UpdateStats struct {
	Seq              uint64 // update sequence number assigned to this call
	Rays             int    // points inside the grid that were rasterised
	Dropped          int    // points outside the grid, discarded
	CellsFreed       int    // cells that changed to Freespace
	CellsOccupied    int    // cells that changed to Occupied
	DemotionsBlocked int    // Freespace evidence ignored on Occupied cells
}

// New allocates a grid with every cell Unknown.
func New(cfg *Config) (*GridMap, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid grid config: %w", err)
	}
	policy := cfg.Policy
	if policy == nil {
		policy = StickyOccupied{}
	}
	g := &GridMap{
		frame:  frame{size: cfg.Size, cellSize: cfg.CellSize, anchor: cfg.Anchor},
		policy: policy,
		cells:  make([]Cell, cfg.Size*cfg.Size),
	}
	diagf("allocated %dx%d grid cell=%.3fm anchor=%v policy=%s",
		cfg.Size, cfg.Size, cfg.CellSize, cfg.Anchor, policy.Name())
	return g, nil
}

// Size returns the number of cells per side.
func (g *GridMap) Size() int { return g.frame.size }

// CellSize returns the cell edge length in meters.
func (g *GridMap) CellSize() float64 { return g.frame.cellSize }

// Policy returns the occupancy update rule in use.
func (g *GridMap) Policy() Policy { return g.policy }

func (g *GridMap) idx(i Index) int { return i.Row*g.frame.size + i.Col }

// CellState returns the cell at (row, col). ok is false when the coordinates
// are outside the grid.
func (g *GridMap) CellState(row, col int) (cell Cell, ok bool) {
	i := Index{Row: row, Col: col}
	if !g.frame.inBounds(i) {
		return Cell{}, false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cells[g.idx(i)], true
}

// Seq returns the number of updates applied so far.
func (g *GridMap) Seq() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.seq
}

// LastUpdateDuration returns the time spent in the most recent Update.
func (g *GridMap) LastUpdateDuration() time.Duration {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lastUpdateDuration
}

// Update ingests one point cloud observed from pose. Every point is treated as
// an obstacle return: the cell containing it becomes Occupied and every other
// cell the ray from the robot crosses becomes Freespace, subject to the
// configured Policy. Points outside the grid are dropped along with their
// rays.
//
// All Freespace evidence is applied before any Occupied evidence, so within
// one update a hit always wins over a crossing ray.
//
// Input is validated before any cell is touched; on error the grid is
// unchanged.
func (g *GridMap) Update(pose robot.Pose, cloud pointcloud.PointCloud) (UpdateStats, error) {
	if !pose.IsFinite() {
		opsf("rejecting update: non-finite pose %v", pose)
		return UpdateStats{}, fmt.Errorf("pose %v: %w", pose, ErrNonFiniteInput)
	}
	if !cloud.IsFinite() {
		opsf("rejecting update: point cloud of %d points has non-finite coordinates", cloud.Len())
		return UpdateStats{}, fmt.Errorf("point cloud: %w", ErrNonFiniteInput)
	}

	start := time.Now()
	g.mu.Lock()
	defer g.mu.Unlock()

	g.seq++
	stats := UpdateStats{Seq: g.seq}
	u0, v0 := g.frame.toGrid(pose.Position)

	hits := make([]Index, 0, cloud.Len())
	for p := range cloud.All() {
		hit := g.frame.cellOf(p.Pos)
		if !g.frame.inBounds(hit) {
			stats.Dropped++
			continue
		}
		stats.Rays++
		hits = append(hits, hit)

		u1, v1 := g.frame.toGrid(p.Pos)
		su, sv := clipToGrid(u0, v0, u1, v1, g.frame.size)
		for c := range supercover(su, sv, u1, v1) {
			if c == hit || !g.frame.inBounds(c) {
				continue
			}
			g.apply(c, Freespace, &stats)
		}
	}

	for _, h := range hits {
		g.apply(h, Occupied, &stats)
	}

	g.lastUpdateDuration = time.Since(start)
	tracef("update seq=%d rays=%d dropped=%d freed=%d occupied=%d blocked=%d took=%s",
		stats.Seq, stats.Rays, stats.Dropped, stats.CellsFreed, stats.CellsOccupied,
		stats.DemotionsBlocked, g.lastUpdateDuration)
	return stats, nil
}

// apply folds one piece of evidence into a cell. Caller holds g.mu.
func (g *GridMap) apply(i Index, evidence CellState, stats *UpdateStats) {
	cell := &g.cells[g.idx(i)]
	next := g.policy.Apply(cell.State, evidence)

	if evidence == Freespace && next == Occupied {
		stats.DemotionsBlocked++
	}
	if next != cell.State {
		switch next {
		case Freespace:
			stats.CellsFreed++
		case Occupied:
			stats.CellsOccupied++
		}
	}
	cell.State = next
	if evidence == Occupied {
		cell.Hits++
		cell.LastTick = g.seq
	}
}
