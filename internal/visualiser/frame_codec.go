package visualiser

import (
	"fmt"

	"github.com/banshee-data/gridsim/internal/controller"
	"google.golang.org/protobuf/types/known/structpb"
)

// StreamOptions selects which parts of a frame are sent.
type StreamOptions struct {
	IncludePoints bool
	IncludeGrid   bool
}

// DefaultStreamOptions sends points but not the grid rows.
func DefaultStreamOptions() StreamOptions {
	return StreamOptions{IncludePoints: true}
}

// ParseStreamOptions reads include_points and include_grid from a request.
// Missing fields keep their defaults; a nil request yields the defaults.
func ParseStreamOptions(req *structpb.Struct) (StreamOptions, error) {
	opts := DefaultStreamOptions()
	for name, v := range req.GetFields() {
		var dst *bool
		switch name {
		case "include_points":
			dst = &opts.IncludePoints
		case "include_grid":
			dst = &opts.IncludeGrid
		default:
			return opts, fmt.Errorf("unknown option %q", name)
		}
		b, ok := v.GetKind().(*structpb.Value_BoolValue)
		if !ok {
			return opts, fmt.Errorf("option %q must be a bool", name)
		}
		*dst = b.BoolValue
	}
	return opts, nil
}

// Struct encodes the options as a request message.
func (o StreamOptions) Struct() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"include_points": structpb.NewBoolValue(o.IncludePoints),
		"include_grid":   structpb.NewBoolValue(o.IncludeGrid),
	}}
}

// frameToStruct converts a frame into its wire form.
func frameToStruct(f controller.Frame, opts StreamOptions) (*structpb.Struct, error) {
	m := map[string]interface{}{
		"run_id": f.RunID,
		"tick":   f.Tick,
		"pose": map[string]interface{}{
			"x":       f.Pose.Position.X,
			"y":       f.Pose.Position.Y,
			"heading": f.Pose.Heading,
		},
		"point_count": f.Cloud.Len(),
		"stats": map[string]interface{}{
			"rays":              f.Stats.Rays,
			"dropped":           f.Stats.Dropped,
			"cells_freed":       f.Stats.CellsFreed,
			"cells_occupied":    f.Stats.CellsOccupied,
			"demotions_blocked": f.Stats.DemotionsBlocked,
		},
	}
	if opts.IncludePoints {
		pts := make([]interface{}, 0, f.Cloud.Len())
		for p := range f.Cloud.All() {
			pts = append(pts, []interface{}{p.Pos.X, p.Pos.Y})
		}
		m["points"] = pts
	}
	if g := f.Grid; g != nil {
		c := g.Counts()
		grid := map[string]interface{}{
			"seq":       g.Seq,
			"size":      g.Size,
			"cell_size": g.CellSize,
			"anchor":    []interface{}{g.Anchor.X, g.Anchor.Y},
			"counts": map[string]interface{}{
				"unknown":  c.Unknown,
				"free":     c.Freespace,
				"occupied": c.Occupied,
			},
		}
		if opts.IncludeGrid {
			rows := make([]interface{}, 0, g.Size)
			for _, r := range g.Rows() {
				rows = append(rows, r)
			}
			grid["rows"] = rows
		}
		m["grid"] = grid
	}
	return structpb.NewStruct(m)
}
