package dial

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Potential colour scale.
const (
	PotentialMin    = -30000.0
	PotentialMax    = 30000.0
	PotentialLevels = 30
)

// Figure is a drawing surface holding polar panels laid out in one row.
type Figure struct {
	panels []*PolarAxes

	// Pad is the space between panels and around the figure.
	Pad vg.Length
}

// NewFigure returns an empty figure.
func NewFigure() *Figure {
	return &Figure{Pad: vg.Millimeter * 4}
}

// AddPolarSubplot appends a new polar panel and returns it.
func (f *Figure) AddPolarSubplot() *PolarAxes {
	ax := NewPolarAxes()
	f.panels = append(f.panels, ax)
	return ax
}

// Panels returns the figure's panels in the order they were added.
func (f *Figure) Panels() []*PolarAxes {
	return f.panels
}

// Render draws every panel onto a new w x h image canvas.
func (f *Figure) Render(w, h vg.Length) (*vgimg.Canvas, error) {
	if len(f.panels) == 0 {
		return nil, errors.New("dial: figure has no panels")
	}
	img := vgimg.New(w, h)
	dc := draw.New(img)

	tiles := draw.Tiles{
		Rows:      1,
		Cols:      len(f.panels),
		PadTop:    f.Pad,
		PadBottom: f.Pad,
		PadLeft:   f.Pad,
		PadRight:  f.Pad,
		PadX:      f.Pad,
	}
	for i, ax := range f.panels {
		ax.Draw(tiles.At(dc, i, 0))
	}
	return img, nil
}

// SavePNG renders the figure and writes it to path as PNG.
func (f *Figure) SavePNG(path string, w, h vg.Length) (err error) {
	img, err := f.Render(w, h)
	if err != nil {
		return err
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	_, err = vgimg.PngCanvas{Canvas: img}.WriteTo(out)
	return err
}

// DrawPotentialMap adds a dial panel to fig showing an electric potential
// map: radius = 90 - lat, angle = lon in radians, PotentialLevels filled
// levels over [PotentialMin, PotentialMax] on a blue-red diverging map with
// out-of-range values in the end colours, and a colour bar labelled
// "description [units]". lat, lon and pot must share a shape; fig is left
// untouched on error.
func DrawPotentialMap(fig *Figure, lat, lon, pot *mat.Dense, units, description string) (*PolarAxes, error) {
	if err := sameShape("potential map", lat, lon, pot); err != nil {
		return nil, err
	}

	var r, theta mat.Dense
	r.Apply(func(_, _ int, v float64) float64 { return 90 - v }, lat)
	theta.Apply(func(_, _ int, v float64) float64 { return v * math.Pi / 180 }, lon)

	levels, err := Linspace(PotentialMin, PotentialMax, PotentialLevels)
	if err != nil {
		return nil, err
	}

	cmap := moreland.SmoothBlueRed()
	ax := fig.AddPolarSubplot()
	ConfigureDialAxes(ax)
	fc, err := NewFilledContour(ax, &r, &theta, pot, levels, cmap)
	if err != nil {
		fig.panels = fig.panels[:len(fig.panels)-1]
		return nil, err
	}
	fc.Extend = true
	ax.Plot.Add(fc)
	ax.ColorBar = newColorBar(cmap, PotentialLevels-1, fmt.Sprintf("%s [%s]", description, units))
	return ax, nil
}

func newColorBar(cmap palette.ColorMap, colors int, label string) *plot.Plot {
	p := plot.New()
	p.HideX()
	p.Add(&plotter.ColorBar{ColorMap: cmap, Vertical: true, Colors: colors})
	p.Y.Label.Text = label
	return p
}
