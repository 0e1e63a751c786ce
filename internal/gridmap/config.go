package gridmap

import (
	"fmt"
	"math"

	"github.com/banshee-data/gridsim/internal/geometry"
)

// MaxSize bounds the grid side length so a misconfigured run cannot allocate
// an unbounded cell array.
const MaxSize = 4096

// Config describes the fixed geometry of a grid. It follows a builder style:
// start from DefaultConfig, chain WithX calls, then Validate.
type Config struct {
	Size     int             // cells per side (default: 100)
	CellSize float64         // cell edge in meters (default: 0.1)
	Anchor   geometry.Vector // world position of the top-left grid corner (default: origin)
	Policy   Policy          // occupancy update rule (default: StickyOccupied)
}

// DefaultConfig returns a 100x100 grid of 0.1m cells anchored at the origin.
func DefaultConfig() *Config {
	return &Config{
		Size:     100,
		CellSize: 0.1,
		Policy:   StickyOccupied{},
	}
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	if c.Size <= 0 || c.Size > MaxSize {
		return fmt.Errorf("Size must be in [1, %d], got %d", MaxSize, c.Size)
	}
	if !(c.CellSize > 0) || math.IsInf(c.CellSize, 0) {
		return fmt.Errorf("CellSize must be positive and finite, got %v", c.CellSize)
	}
	if !c.Anchor.IsFinite() {
		return fmt.Errorf("Anchor must be finite, got %v", c.Anchor)
	}
	return nil
}

// WithSize sets the grid side length in cells.
func (c *Config) WithSize(n int) *Config {
	c.Size = n
	return c
}

// WithCellSize sets the cell edge length in meters.
func (c *Config) WithCellSize(s float64) *Config {
	c.CellSize = s
	return c
}

// WithAnchor sets the world position of the grid's top-left corner.
func (c *Config) WithAnchor(a geometry.Vector) *Config {
	c.Anchor = a
	return c
}

// WithPolicy sets the occupancy update rule.
func (c *Config) WithPolicy(p Policy) *Config {
	c.Policy = p
	return c
}
