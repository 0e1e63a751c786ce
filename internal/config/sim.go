// Package config loads simulation scenarios from JSON or YAML files.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/gridsim/internal/gridmap"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical scenario defaults file.
const DefaultConfigPath = "config/sim.defaults.json"

// maxFileSize bounds config files read from disk.
const maxFileSize = 1 * 1024 * 1024 // 1MB

// Wall is one world segment from (X1, Y1) to (X2, Y2), in meters.
type Wall struct {
	X1 float64 `json:"x1" yaml:"x1"`
	Y1 float64 `json:"y1" yaml:"y1"`
	X2 float64 `json:"x2" yaml:"x2"`
	Y2 float64 `json:"y2" yaml:"y2"`
}

// SimConfig is the root scenario configuration. Every field is optional;
// the Get methods supply defaults for fields left unset, so partial files
// are safe.
type SimConfig struct {
	// Grid
	GridSize        *int     `json:"grid_size,omitempty" yaml:"grid_size,omitempty"`
	CellSize        *float64 `json:"cell_size,omitempty" yaml:"cell_size,omitempty"`
	AnchorX         *float64 `json:"anchor_x,omitempty" yaml:"anchor_x,omitempty"`
	AnchorY         *float64 `json:"anchor_y,omitempty" yaml:"anchor_y,omitempty"`
	OccupancyPolicy *string  `json:"occupancy_policy,omitempty" yaml:"occupancy_policy,omitempty"` // "sticky" or "latest"

	// Robot
	StartX          *float64 `json:"start_x,omitempty" yaml:"start_x,omitempty"`
	StartY          *float64 `json:"start_y,omitempty" yaml:"start_y,omitempty"`
	StartHeading    *float64 `json:"start_heading,omitempty" yaml:"start_heading,omitempty"`
	LinearVelocity  *float64 `json:"linear_velocity,omitempty" yaml:"linear_velocity,omitempty"`
	AngularVelocity *float64 `json:"angular_velocity,omitempty" yaml:"angular_velocity,omitempty"`

	// Sensor
	BeamCount   *int     `json:"beam_count,omitempty" yaml:"beam_count,omitempty"`
	FieldOfView *float64 `json:"field_of_view,omitempty" yaml:"field_of_view,omitempty"` // radians
	MaxRange    *float64 `json:"max_range,omitempty" yaml:"max_range,omitempty"`
	RangeNoise  *float64 `json:"range_noise,omitempty" yaml:"range_noise,omitempty"`
	NoiseSeed   *uint64  `json:"noise_seed,omitempty" yaml:"noise_seed,omitempty"`

	// Run
	TickInterval  *string `json:"tick_interval,omitempty" yaml:"tick_interval,omitempty"` // duration string like "100ms"
	MaxTicks      *uint64 `json:"max_ticks,omitempty" yaml:"max_ticks,omitempty"`
	SnapshotEvery *int    `json:"snapshot_every,omitempty" yaml:"snapshot_every,omitempty"`

	// World; nil means the default box.
	Walls []Wall `json:"walls,omitempty" yaml:"walls,omitempty"`
}

// EmptySimConfig returns a SimConfig with every field unset.
func EmptySimConfig() *SimConfig {
	return &SimConfig{}
}

// LoadSimConfig loads a SimConfig from a .json, .yaml or .yml file.
func LoadSimConfig(path string) (*SimConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySimConfig()
	if ext == ".json" {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for test setup.
func MustLoadDefaultConfig() *SimConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadSimConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Validate checks the values that are set.
func (c *SimConfig) Validate() error {
	if c.GridSize != nil && (*c.GridSize <= 0 || *c.GridSize > gridmap.MaxSize) {
		return fmt.Errorf("grid_size must be in [1, %d], got %d", gridmap.MaxSize, *c.GridSize)
	}
	if c.CellSize != nil && (!(*c.CellSize > 0) || !finite(*c.CellSize)) {
		return fmt.Errorf("cell_size must be positive, got %v", *c.CellSize)
	}
	if c.OccupancyPolicy != nil {
		if _, err := gridmap.PolicyByName(*c.OccupancyPolicy); err != nil {
			return fmt.Errorf("occupancy_policy: %w", err)
		}
	}
	for name, v := range map[string]*float64{
		"anchor_x":         c.AnchorX,
		"anchor_y":         c.AnchorY,
		"start_x":          c.StartX,
		"start_y":          c.StartY,
		"start_heading":    c.StartHeading,
		"linear_velocity":  c.LinearVelocity,
		"angular_velocity": c.AngularVelocity,
	} {
		if v != nil && !finite(*v) {
			return fmt.Errorf("%s must be finite, got %v", name, *v)
		}
	}
	if c.BeamCount != nil && *c.BeamCount <= 0 {
		return fmt.Errorf("beam_count must be positive, got %d", *c.BeamCount)
	}
	if c.FieldOfView != nil && (!(*c.FieldOfView >= 0) || *c.FieldOfView > 2*math.Pi) {
		return fmt.Errorf("field_of_view must be between 0 and 2π, got %v", *c.FieldOfView)
	}
	if c.MaxRange != nil && (!(*c.MaxRange > 0) || !finite(*c.MaxRange)) {
		return fmt.Errorf("max_range must be positive, got %v", *c.MaxRange)
	}
	if c.RangeNoise != nil && (!(*c.RangeNoise >= 0) || !finite(*c.RangeNoise)) {
		return fmt.Errorf("range_noise must be non-negative, got %v", *c.RangeNoise)
	}
	if c.TickInterval != nil && *c.TickInterval != "" {
		d, err := time.ParseDuration(*c.TickInterval)
		if err != nil {
			return fmt.Errorf("invalid tick_interval '%s': %w", *c.TickInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("tick_interval must be positive, got %s", *c.TickInterval)
		}
	}
	if c.SnapshotEvery != nil && *c.SnapshotEvery < 0 {
		return fmt.Errorf("snapshot_every must be non-negative, got %d", *c.SnapshotEvery)
	}
	for i, w := range c.Walls {
		if !finite(w.X1) || !finite(w.Y1) || !finite(w.X2) || !finite(w.Y2) {
			return fmt.Errorf("walls[%d] has non-finite coordinates", i)
		}
	}
	return nil
}

// GetGridSize returns the grid side in cells.
func (c *SimConfig) GetGridSize() int {
	if c.GridSize == nil {
		return 200
	}
	return *c.GridSize
}

// GetCellSize returns the cell edge in meters.
func (c *SimConfig) GetCellSize() float64 {
	if c.CellSize == nil {
		return 0.05
	}
	return *c.CellSize
}

// GetAnchor returns the world position of the grid's top-left corner. The
// default centres the default 10m grid on the origin.
func (c *SimConfig) GetAnchor() (x, y float64) {
	x, y = -5, 5
	if c.AnchorX != nil {
		x = *c.AnchorX
	}
	if c.AnchorY != nil {
		y = *c.AnchorY
	}
	return x, y
}

// GetOccupancyPolicy returns the occupancy policy name.
func (c *SimConfig) GetOccupancyPolicy() string {
	if c.OccupancyPolicy == nil || *c.OccupancyPolicy == "" {
		return gridmap.PolicySticky
	}
	return *c.OccupancyPolicy
}

// GetStart returns the initial pose as x, y and heading.
func (c *SimConfig) GetStart() (x, y, heading float64) {
	if c.StartX != nil {
		x = *c.StartX
	}
	if c.StartY != nil {
		y = *c.StartY
	}
	if c.StartHeading != nil {
		heading = *c.StartHeading
	}
	return x, y, heading
}

// GetLinearVelocity returns the forward speed in m/s.
func (c *SimConfig) GetLinearVelocity() float64 {
	if c.LinearVelocity == nil {
		return 0.3
	}
	return *c.LinearVelocity
}

// GetAngularVelocity returns the turn rate in rad/s.
func (c *SimConfig) GetAngularVelocity() float64 {
	if c.AngularVelocity == nil {
		return 0.2
	}
	return *c.AngularVelocity
}

// GetBeamCount returns the number of beams per scan.
func (c *SimConfig) GetBeamCount() int {
	if c.BeamCount == nil {
		return 180
	}
	return *c.BeamCount
}

// GetFieldOfView returns the scan span in radians.
func (c *SimConfig) GetFieldOfView() float64 {
	if c.FieldOfView == nil {
		return 2 * math.Pi
	}
	return *c.FieldOfView
}

// GetMaxRange returns the sensor range in meters.
func (c *SimConfig) GetMaxRange() float64 {
	if c.MaxRange == nil {
		return 8
	}
	return *c.MaxRange
}

// GetRangeNoise returns the range noise standard deviation in meters.
func (c *SimConfig) GetRangeNoise() float64 {
	if c.RangeNoise == nil {
		return 0
	}
	return *c.RangeNoise
}

// GetNoiseSeed returns the seed for the range noise source.
func (c *SimConfig) GetNoiseSeed() uint64 {
	if c.NoiseSeed == nil {
		return 1
	}
	return *c.NoiseSeed
}

// GetTickInterval parses and returns TickInterval.
func (c *SimConfig) GetTickInterval() time.Duration {
	if c.TickInterval == nil || *c.TickInterval == "" {
		return 100 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.TickInterval)
	if err != nil || d <= 0 {
		return 100 * time.Millisecond // default on parse error
	}
	return d
}

// GetMaxTicks returns the tick limit; 0 means run until stopped.
func (c *SimConfig) GetMaxTicks() uint64 {
	if c.MaxTicks == nil {
		return 0
	}
	return *c.MaxTicks
}

// GetSnapshotEvery returns how many ticks separate persisted grid snapshots;
// 0 disables persistence.
func (c *SimConfig) GetSnapshotEvery() int {
	if c.SnapshotEvery == nil {
		return 50
	}
	return *c.SnapshotEvery
}

// GetWalls returns the configured walls, or an 8m box centred on the origin.
func (c *SimConfig) GetWalls() []Wall {
	if c.Walls == nil {
		return []Wall{
			{X1: -4, Y1: -4, X2: 4, Y2: -4},
			{X1: 4, Y1: -4, X2: 4, Y2: 4},
			{X1: 4, Y1: 4, X2: -4, Y2: 4},
			{X1: -4, Y1: 4, X2: -4, Y2: -4},
		}
	}
	out := make([]Wall, len(c.Walls))
	copy(out, c.Walls)
	return out
}
