package render

import (
	"fmt"
	"image/color"
	"io"

	"github.com/banshee-data/gridsim/internal/geometry"
	"github.com/banshee-data/gridsim/internal/gridmap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg/draw"
)

// PlotRenderer draws scenes to PNG with gonum/plot.
type PlotRenderer struct {
	cfg Config
}

// NewPlotRenderer creates a PNG renderer.
func NewPlotRenderer(cfg Config) *PlotRenderer {
	return &PlotRenderer{cfg: cfg}
}

// Render writes the scene to w as a PNG image.
func (r *PlotRenderer) Render(w io.Writer, s Scene) error {
	p := plot.New()
	p.Title.Text = s.Title
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	for _, item := range s.Items {
		var err error
		switch d := item.(type) {
		case Grid:
			err = r.addGrid(p, d)
		case Walls:
			err = r.addWalls(p, d)
		case Cloud:
			err = r.addCloud(p, d)
		case RobotMarker:
			err = r.addRobot(p, d)
		default:
			err = unsupported(item)
		}
		if err != nil {
			return err
		}
	}

	wt, err := p.WriterTo(r.cfg.Width, r.cfg.Height, "png")
	if err != nil {
		return fmt.Errorf("render png: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// gridXYZ exposes a snapshot as a heat map surface. Heat map rows run bottom
// to top, grid rows top to bottom.
type gridXYZ struct {
	s *gridmap.Snapshot
}

func (g gridXYZ) Dims() (c, r int) { return g.s.Size, g.s.Size }

func (g gridXYZ) Z(c, r int) float64 {
	row := g.s.Size - 1 - r
	return float64(g.s.Cells[row*g.s.Size+c].State)
}

func (g gridXYZ) X(c int) float64 {
	return g.s.Anchor.X + (float64(c)+0.5)*g.s.CellSize
}

func (g gridXYZ) Y(r int) float64 {
	return g.s.Anchor.Y - (float64(g.s.Size-1-r)+0.5)*g.s.CellSize
}

// statePalette maps CellState values 0..2 to colours.
type statePalette []color.Color

func (p statePalette) Colors() []color.Color { return p }

func (r *PlotRenderer) addGrid(p *plot.Plot, g Grid) error {
	if g.Snapshot == nil || g.Snapshot.Size == 0 {
		return nil
	}
	pal := statePalette{r.cfg.UnknownColor, r.cfg.FreeColor, r.cfg.OccupiedColor}
	hm := plotter.NewHeatMap(gridXYZ{g.Snapshot}, pal)
	hm.Min = float64(gridmap.Unknown)
	hm.Max = float64(gridmap.Occupied)
	p.Add(hm)

	span := float64(g.Snapshot.Size) * g.Snapshot.CellSize
	p.X.Min, p.X.Max = g.Snapshot.Anchor.X, g.Snapshot.Anchor.X+span
	p.Y.Min, p.Y.Max = g.Snapshot.Anchor.Y-span, g.Snapshot.Anchor.Y
	return nil
}

func (r *PlotRenderer) addWalls(p *plot.Plot, walls Walls) error {
	for _, wall := range walls {
		l, err := plotter.NewLine(plotter.XYs{
			{X: wall.Start.Pos.X, Y: wall.Start.Pos.Y},
			{X: wall.End.Pos.X, Y: wall.End.Pos.Y},
		})
		if err != nil {
			return fmt.Errorf("wall %v: %w", wall, err)
		}
		l.Color = r.cfg.WallColor
		l.Width = r.cfg.WallWidth
		p.Add(l)
	}
	return nil
}

func (r *PlotRenderer) addCloud(p *plot.Plot, c Cloud) error {
	if c.Points.Len() == 0 {
		return nil
	}
	pts := make(plotter.XYs, 0, c.Points.Len())
	for pt := range c.Points.All() {
		pts = append(pts, plotter.XY{X: pt.Pos.X, Y: pt.Pos.Y})
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("cloud: %w", err)
	}
	sc.GlyphStyle.Color = r.cfg.CloudColor
	sc.GlyphStyle.Radius = r.cfg.PointRadius
	sc.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(sc)
	return nil
}

func (r *PlotRenderer) addRobot(p *plot.Plot, m RobotMarker) error {
	pos := m.Pose.Position
	tip := pos.Add(geometry.FromAngle(m.Pose.Heading).Scale(r.cfg.RobotLength))

	heading, err := plotter.NewLine(plotter.XYs{{X: pos.X, Y: pos.Y}, {X: tip.X, Y: tip.Y}})
	if err != nil {
		return fmt.Errorf("robot heading: %w", err)
	}
	heading.Color = r.cfg.RobotColor
	heading.Width = r.cfg.WallWidth

	body, err := plotter.NewScatter(plotter.XYs{{X: pos.X, Y: pos.Y}})
	if err != nil {
		return fmt.Errorf("robot: %w", err)
	}
	body.GlyphStyle.Color = r.cfg.RobotColor
	body.GlyphStyle.Radius = 3 * r.cfg.PointRadius
	body.GlyphStyle.Shape = draw.RingGlyph{}

	p.Add(heading, body)
	return nil
}
