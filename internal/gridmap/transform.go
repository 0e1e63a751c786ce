package gridmap

import (
	"math"

	"github.com/banshee-data/gridsim/internal/geometry"
)

// frame converts between world coordinates and continuous grid coordinates.
// In grid coordinates u runs along columns and v along rows, both in units of
// cells, with (0, 0) at the anchor.
type frame struct {
	size     int
	cellSize float64
	anchor   geometry.Vector
}

func (f frame) toGrid(p geometry.Vector) (u, v float64) {
	return (p.X - f.anchor.X) / f.cellSize, (f.anchor.Y - p.Y) / f.cellSize
}

func (f frame) cellOf(p geometry.Vector) Index {
	u, v := f.toGrid(p)
	return Index{Row: int(math.Floor(v)), Col: int(math.Floor(u))}
}

func (f frame) inBounds(idx Index) bool {
	return idx.Row >= 0 && idx.Row < f.size && idx.Col >= 0 && idx.Col < f.size
}

func (f frame) center(idx Index) geometry.Vector {
	return geometry.NewVector(
		f.anchor.X+(float64(idx.Col)+0.5)*f.cellSize,
		f.anchor.Y-(float64(idx.Row)+0.5)*f.cellSize,
	)
}

// WorldToCell maps a world position to its cell. ok is false when the position
// falls outside the grid.
func (g *GridMap) WorldToCell(p geometry.Vector) (idx Index, ok bool) {
	if !p.IsFinite() {
		return Index{}, false
	}
	idx = g.frame.cellOf(p)
	return idx, g.frame.inBounds(idx)
}

// CellCenter returns the world position of a cell's centre. ok is false when
// the index is outside the grid.
func (g *GridMap) CellCenter(row, col int) (geometry.Vector, bool) {
	idx := Index{Row: row, Col: col}
	if !g.frame.inBounds(idx) {
		return geometry.Vector{}, false
	}
	return g.frame.center(idx), true
}

// Extent returns the world-space corners of the grid: top-left (the anchor)
// and bottom-right.
func (g *GridMap) Extent() (topLeft, bottomRight geometry.Vector) {
	span := float64(g.frame.size) * g.frame.cellSize
	return g.frame.anchor, g.frame.anchor.Add(geometry.NewVector(span, -span))
}
