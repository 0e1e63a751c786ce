package render

import (
	"io"
	"math"

	"github.com/banshee-data/gridsim/internal/gridmap"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ChartRenderer draws scenes as interactive HTML scatter charts with
// go-echarts. Unknown cells are left out; walls are sampled into points.
type ChartRenderer struct {
	cfg Config
}

// NewChartRenderer creates an HTML renderer.
func NewChartRenderer(cfg Config) *ChartRenderer {
	return &ChartRenderer{cfg: cfg}
}

type series struct {
	name   string
	data   []opts.ScatterData
	colour string
	size   int
}

// Render writes the scene to w as a standalone HTML page.
func (r *ChartRenderer) Render(w io.Writer, s Scene) error {
	var all []series
	lo, hi := math.Inf(1), math.Inf(-1)
	extend := func(vs ...float64) {
		for _, v := range vs {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}

	for _, item := range s.Items {
		switch d := item.(type) {
		case Grid:
			if d.Snapshot == nil {
				continue
			}
			free, occ := r.gridSeries(d.Snapshot)
			all = append(all, free, occ)
			span := float64(d.Snapshot.Size) * d.Snapshot.CellSize
			extend(d.Snapshot.Anchor.X, d.Snapshot.Anchor.X+span, d.Snapshot.Anchor.Y, d.Snapshot.Anchor.Y-span)
		case Walls:
			sr := series{name: "walls", colour: hexColor(r.cfg.WallColor), size: 2}
			for _, wall := range d {
				n := int(math.Ceil(wall.Length()/r.cfg.WallSampleStep)) + 1
				for i := 0; i < n; i++ {
					t := 0.0
					if n > 1 {
						t = float64(i) / float64(n-1)
					}
					p := wall.At(t).Pos
					sr.data = append(sr.data, opts.ScatterData{Value: []interface{}{p.X, p.Y}})
					extend(p.X, p.Y)
				}
			}
			all = append(all, sr)
		case Cloud:
			sr := series{name: "cloud", colour: hexColor(r.cfg.CloudColor), size: 4}
			for p := range d.Points.All() {
				sr.data = append(sr.data, opts.ScatterData{Value: []interface{}{p.Pos.X, p.Pos.Y}})
				extend(p.Pos.X, p.Pos.Y)
			}
			all = append(all, sr)
		case RobotMarker:
			pos := d.Pose.Position
			all = append(all, series{
				name:   "robot",
				colour: hexColor(r.cfg.RobotColor),
				size:   12,
				data:   []opts.ScatterData{{Value: []interface{}{pos.X, pos.Y, d.Pose.Heading}}},
			})
			extend(pos.X, pos.Y)
		default:
			return unsupported(item)
		}
	}

	if math.IsInf(lo, 0) {
		lo, hi = -1, 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "gridsim", Width: "900px", Height: "900px", AssetsHost: r.cfg.ChartAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Occupancy Grid", Subtitle: s.Title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: lo, Max: hi, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: lo, Max: hi, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
	)
	for _, sr := range all {
		scatter.AddSeries(sr.name, sr.data,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: sr.size}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: sr.colour}))
	}
	return scatter.Render(w)
}

func (r *ChartRenderer) gridSeries(s *gridmap.Snapshot) (free, occ series) {
	free = series{name: "free", colour: hexColor(r.cfg.FreeColor), size: 3}
	occ = series{name: "occupied", colour: hexColor(r.cfg.OccupiedColor), size: 4}
	for row := 0; row < s.Size; row++ {
		for col := 0; col < s.Size; col++ {
			cell := s.Cells[row*s.Size+col]
			if cell.State == gridmap.Unknown {
				continue
			}
			c := s.CellCenter(row, col)
			pt := opts.ScatterData{Value: []interface{}{c.X, c.Y, row, col}}
			if cell.State == gridmap.Occupied {
				occ.data = append(occ.data, pt)
			} else {
				free.data = append(free.data, pt)
			}
		}
	}
	return free, occ
}
