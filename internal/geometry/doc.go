// Package geometry owns the 2D value types shared by every layer of the
// simulator: Vector, Point and Line.
//
// All types are immutable values. Arithmetic delegates to gonum's spatial/r2
// so the kernel stays a thin, named wrapper rather than a second vector library.
//
// Coordinate convention: X grows to the right, Y grows up (world frame).
// Screen/grid conversions that flip Y live in gridmap and render.
package geometry
