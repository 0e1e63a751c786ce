package render

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot/vg"
)

// Config holds the rendering constants. It is passed by value and never
// modified by a renderer.
type Config struct {
	Width, Height vg.Length // PNG canvas size

	UnknownColor  color.RGBA
	FreeColor     color.RGBA
	OccupiedColor color.RGBA
	WallColor     color.RGBA
	RobotColor    color.RGBA
	CloudColor    color.RGBA

	WallWidth   vg.Length
	PointRadius vg.Length
	RobotLength float64 // heading arrow length in meters

	// ChartAssetsHost overrides where the HTML charts load echarts from.
	// Empty uses the go-echarts default.
	ChartAssetsHost string
	// WallSampleStep is the spacing in meters of the points that stand in for
	// walls in HTML charts.
	WallSampleStep float64
}

// DefaultConfig returns a 6 inch square canvas with a grey-scale grid.
func DefaultConfig() Config {
	return Config{
		Width:          6 * vg.Inch,
		Height:         6 * vg.Inch,
		UnknownColor:   color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff},
		FreeColor:      color.RGBA{R: 0xf5, G: 0xf5, B: 0xf5, A: 0xff},
		OccupiedColor:  color.RGBA{R: 0x21, G: 0x21, B: 0x21, A: 0xff},
		WallColor:      color.RGBA{R: 0x19, G: 0x76, B: 0xd2, A: 0xff},
		RobotColor:     color.RGBA{R: 0xe5, G: 0x39, B: 0x35, A: 0xff},
		CloudColor:     color.RGBA{R: 0xff, G: 0x98, B: 0x00, A: 0xff},
		WallWidth:      vg.Points(1.5),
		PointRadius:    vg.Points(1.5),
		RobotLength:    0.4,
		WallSampleStep: 0.1,
	}
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
