package gridmap

import (
	"iter"
	"math"
)

// clipToGrid moves the start of the segment (u0,v0)->(u1,v1) onto the grid
// boundary when it lies outside [0, size]^2. The end point must already be
// inside the grid. Clipping bounds the traversal length by the grid size no
// matter how far away the robot is.
func clipToGrid(u0, v0, u1, v1 float64, size int) (float64, float64) {
	s := float64(size)
	tMax := 1.0
	limit := func(e, d float64) {
		switch {
		case d > 0:
			tMax = math.Min(tMax, (s-e)/d)
		case d < 0:
			tMax = math.Min(tMax, e/-d)
		}
	}
	du, dv := u0-u1, v0-v1
	limit(u1, du)
	limit(v1, dv)
	if tMax >= 1 {
		return u0, v0
	}
	if tMax < 0 {
		tMax = 0
	}
	return u1 + tMax*du, v1 + tMax*dv
}

// supercover yields every cell whose square the segment (u0,v0)->(u1,v1)
// passes through, in order from the start cell to the end cell. Coordinates
// are continuous grid coordinates (u = column axis, v = row axis).
//
// The traversal steps one axis at a time, so consecutive cells always share
// an edge. When the segment passes exactly through a cell corner both
// edge-adjacent cells are emitted before the diagonal one. The walk is bounded
// by the Manhattan distance between the start and end cells, so it always
// terminates, including for zero-length segments which yield a single cell.
func supercover(u0, v0, u1, v1 float64) iter.Seq[Index] {
	return func(yield func(Index) bool) {
		col, row := int(math.Floor(u0)), int(math.Floor(v0))
		endCol, endRow := int(math.Floor(u1)), int(math.Floor(v1))

		if !yield(Index{Row: row, Col: col}) {
			return
		}

		du, dv := u1-u0, v1-v0
		stepCol, tMaxU, tDeltaU := axisSetup(u0, du, col)
		stepRow, tMaxV, tDeltaV := axisSetup(v0, dv, row)

		remaining := abs(endCol-col) + abs(endRow-row)
		for remaining > 0 {
			tu, tv := tMaxU, tMaxV
			if col == endCol {
				tu = math.Inf(1)
			}
			if row == endRow {
				tv = math.Inf(1)
			}

			switch {
			case tu < tv:
				col += stepCol
				tMaxU += tDeltaU
				remaining--
			case tv < tu:
				row += stepRow
				tMaxV += tDeltaV
				remaining--
			default:
				// Exact corner crossing: touch both neighbours, then move
				// diagonally.
				if !yield(Index{Row: row, Col: col + stepCol}) {
					return
				}
				if !yield(Index{Row: row + stepRow, Col: col}) {
					return
				}
				col += stepCol
				row += stepRow
				tMaxU += tDeltaU
				tMaxV += tDeltaV
				remaining -= 2
			}

			if !yield(Index{Row: row, Col: col}) {
				return
			}
		}
	}
}

// axisSetup returns the step direction, the segment parameter at which the
// first cell boundary on this axis is crossed, and the parameter distance
// between successive boundaries.
func axisSetup(start, delta float64, cell int) (step int, tMax, tDelta float64) {
	switch {
	case delta > 0:
		return 1, (float64(cell+1) - start) / delta, 1 / delta
	case delta < 0:
		return -1, (start - float64(cell)) / -delta, 1 / -delta
	default:
		return 0, math.Inf(1), math.Inf(1)
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
