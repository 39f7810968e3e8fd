package dial

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/KI7MT/ki7mt-amgeo-apps/internal/common"
)

// FilledContour is a plot.Plotter that fills the bands between contour
// levels of a gridded field on polar axes. Each grid cell is split into two
// triangles and every triangle is clipped against each band with linear
// interpolation, so band edges follow the contour lines.
type FilledContour struct {
	Axes *PolarAxes

	R, Theta, Z *mat.Dense

	// Levels are the ascending band boundaries.
	Levels []float64

	// ColorMap colours band midpoints. Its range is set to the outer levels.
	ColorMap palette.ColorMap

	// Extend fills values below the first or above the last level with
	// the end colours instead of leaving them blank.
	Extend bool
}

var _ plot.Plotter = (*FilledContour)(nil)

// NewFilledContour validates the grids and levels and sets the colour map
// range to [levels[0], levels[len-1]].
func NewFilledContour(ax *PolarAxes, r, theta, z *mat.Dense, levels []float64, cmap palette.ColorMap) (*FilledContour, error) {
	if err := sameShape("filled contour", r, theta, z); err != nil {
		return nil, err
	}
	if rows, cols := z.Dims(); rows < 2 || cols < 2 {
		return nil, &common.ShapeError{Op: "filled contour", Want: "at least 2x2", Got: common.Shape(rows, cols)}
	}
	if len(levels) < 2 {
		return nil, fmt.Errorf("dial: need at least 2 contour levels, got %d", len(levels))
	}
	if !sort.Float64sAreSorted(levels) || levels[0] == levels[len(levels)-1] {
		return nil, errors.New("dial: contour levels must be ascending")
	}
	if cmap == nil {
		return nil, errors.New("dial: nil colour map")
	}

	cmap.SetMin(levels[0])
	cmap.SetMax(levels[len(levels)-1])
	return &FilledContour{
		Axes:     ax,
		R:        r,
		Theta:    theta,
		Z:        z,
		Levels:   append([]float64(nil), levels...),
		ColorMap: cmap,
	}, nil
}

// Linspace returns n evenly spaced values from lo to hi inclusive. The end
// points are exact.
func Linspace(lo, hi float64, n int) ([]float64, error) {
	if n < 2 {
		return nil, fmt.Errorf("linspace: need at least 2 values, got %d", n)
	}
	dst := floats.Span(make([]float64, n), lo, hi)
	dst[n-1] = hi
	return dst, nil
}

func sameShape(op string, grids ...*mat.Dense) error {
	r, c := grids[0].Dims()
	for _, g := range grids[1:] {
		if gr, gc := g.Dims(); gr != r || gc != c {
			return &common.ShapeError{Op: op, Want: common.Shape(r, c), Got: common.Shape(gr, gc)}
		}
	}
	return nil
}

type band struct {
	lo, hi float64
	color  color.Color
}

// bands returns the filled intervals in drawing order.
func (fc *FilledContour) bands() ([]band, error) {
	lv := fc.Levels
	out := make([]band, 0, len(lv)+1)

	colorAt := func(v float64) (color.Color, error) {
		c, err := fc.ColorMap.At(v)
		if err != nil {
			return nil, fmt.Errorf("dial: colour at %g: %w", v, err)
		}
		return c, nil
	}

	if fc.Extend {
		c, err := colorAt(lv[0])
		if err != nil {
			return nil, err
		}
		out = append(out, band{lo: math.Inf(-1), hi: lv[0], color: c})
	}
	for i := 0; i < len(lv)-1; i++ {
		c, err := colorAt((lv[i] + lv[i+1]) / 2)
		if err != nil {
			return nil, err
		}
		out = append(out, band{lo: lv[i], hi: lv[i+1], color: c})
	}
	if fc.Extend {
		c, err := colorAt(lv[len(lv)-1])
		if err != nil {
			return nil, err
		}
		out = append(out, band{lo: lv[len(lv)-1], hi: math.Inf(1), color: c})
	}
	return out, nil
}

// vertex is a triangle corner in projected data coordinates carrying the
// radius and field value for clipping.
type vertex struct {
	x, y, r, z float64
}

func lerp(p, q vertex, t float64) vertex {
	return vertex{
		x: p.x + t*(q.x-p.x),
		y: p.y + t*(q.y-p.y),
		r: p.r + t*(q.r-p.r),
		z: p.z + t*(q.z-p.z),
	}
}

// clip keeps the part of the convex polygon where g >= 0. g must be linear
// along edges for the cut to be exact.
func clip(poly []vertex, g func(vertex) float64) []vertex {
	if len(poly) == 0 {
		return nil
	}
	out := make([]vertex, 0, len(poly)+2)
	for i, p := range poly {
		q := poly[(i+1)%len(poly)]
		gp, gq := g(p), g(q)
		if gp >= 0 {
			out = append(out, p)
		}
		if (gp >= 0) != (gq >= 0) {
			out = append(out, lerp(p, q, gp/(gp-gq)))
		}
	}
	return out
}

// clipBand returns the part of a triangle with lo <= z <= hi inside the
// radial limits.
func clipBand(tri []vertex, lo, hi, rmin, rmax float64) []vertex {
	poly := tri
	if !math.IsInf(lo, -1) {
		poly = clip(poly, func(v vertex) float64 { return v.z - lo })
	}
	if !math.IsInf(hi, 1) {
		poly = clip(poly, func(v vertex) float64 { return hi - v.z })
	}
	poly = clip(poly, func(v vertex) float64 { return rmax - v.r })
	poly = clip(poly, func(v vertex) float64 { return v.r - rmin })
	return poly
}

func (fc *FilledContour) vertexAt(i, j int) (vertex, bool) {
	r, th, z := fc.R.At(i, j), fc.Theta.At(i, j), fc.Z.At(i, j)
	if math.IsNaN(r) || math.IsNaN(th) || math.IsNaN(z) {
		return vertex{}, false
	}
	x, y := fc.Axes.Project(r, th)
	return vertex{x: x, y: y, r: r, z: z}, true
}

// triangles splits every grid cell into two triangles, skipping any with a
// NaN corner.
func (fc *FilledContour) triangles() [][]vertex {
	rows, cols := fc.Z.Dims()
	tris := make([][]vertex, 0, 2*(rows-1)*(cols-1))
	for i := 0; i < rows-1; i++ {
		for j := 0; j < cols-1; j++ {
			a, okA := fc.vertexAt(i, j)
			b, okB := fc.vertexAt(i, j+1)
			c, okC := fc.vertexAt(i+1, j+1)
			d, okD := fc.vertexAt(i+1, j)
			if okA && okB && okD {
				tris = append(tris, []vertex{a, b, d})
			}
			if okB && okC && okD {
				tris = append(tris, []vertex{b, c, d})
			}
		}
	}
	return tris
}

// Plot implements plot.Plotter.
func (fc *FilledContour) Plot(c draw.Canvas, p *plot.Plot) {
	bands, err := fc.bands()
	if err != nil {
		panic(err)
	}
	trX, trY := p.Transforms(&c)

	for _, tri := range fc.triangles() {
		for _, b := range bands {
			poly := clipBand(tri, b.lo, b.hi, fc.Axes.RMin, fc.Axes.RMax)
			if len(poly) < 3 {
				continue
			}
			pts := make([]vg.Point, len(poly))
			for k, v := range poly {
				pts[k] = vg.Point{X: trX(v.x), Y: trY(v.y)}
			}
			c.FillPolygon(b.color, c.ClipPolygonXY(pts))
		}
	}
}

// DataRange implements plot.DataRanger.
func (fc *FilledContour) DataRange() (xmin, xmax, ymin, ymax float64) {
	e := fc.Axes.extent()
	return -e, e, -e, e
}
