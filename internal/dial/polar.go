// Package dial draws polar "dial" plots of ionospheric maps with gonum/plot.
//
// A dial puts the magnetic pole at the centre and uses radius = 90 - latitude,
// so higher latitudes sit closer to the middle. Angles are local-time
// longitudes in radians.
package dial

import (
	"fmt"
	"image/color"
	"math"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Direction is the sense in which theta increases on screen.
type Direction float64

const (
	CounterClockwise Direction = 1
	Clockwise        Direction = -1
)

// Screen angles (counter-clockwise from east) of the compass locations
// accepted by SetThetaZeroLocation.
var thetaZeroLocations = map[string]float64{
	"E":  0,
	"NE": math.Pi / 4,
	"N":  math.Pi / 2,
	"NW": 3 * math.Pi / 4,
	"W":  math.Pi,
	"SW": -3 * math.Pi / 4,
	"S":  -math.Pi / 2,
	"SE": -math.Pi / 4,
}

const (
	circleSegments   = 180
	labelMargin      = 0.18 // fraction of the radial span kept free for theta labels
	colorBarFraction = 0.16
)

// PolarAxes is a polar projection on top of a *plot.Plot. The underlying
// plot's cartesian axes are hidden; data coordinates are the projected x/y
// of Project.
type PolarAxes struct {
	Plot *plot.Plot

	// ThetaOffset is the screen angle of theta = 0 in radians,
	// counter-clockwise from east.
	ThetaOffset float64
	Direction   Direction

	ThetaTicks []plot.Tick // tick values in radians
	RTicks     []plot.Tick

	// RLabelTheta is the theta (radians) along which radial tick labels sit.
	RLabelTheta float64

	RMin, RMax float64

	Grid  draw.LineStyle
	Spine draw.LineStyle

	// ColorBar, when set, is drawn in a strip to the right of the dial.
	ColorBar *plot.Plot
}

// NewPolarAxes returns axes with theta zero at east, counter-clockwise, and
// a unit radial range.
func NewPolarAxes() *PolarAxes {
	p := plot.New()
	p.HideAxes()
	return &PolarAxes{
		Plot:        p,
		Direction:   CounterClockwise,
		RLabelTheta: math.Pi / 8,
		RMax:        1,
		Grid: draw.LineStyle{
			Color:  color.Gray{Y: 150},
			Width:  vg.Points(0.5),
			Dashes: []vg.Length{vg.Points(2), vg.Points(2)},
		},
		Spine: draw.LineStyle{
			Color: color.Black,
			Width: vg.Points(1),
		},
	}
}

// SetThetaZeroLocation puts theta = 0 at a compass location ("N", "SW", ...).
func (ax *PolarAxes) SetThetaZeroLocation(loc string) error {
	off, ok := thetaZeroLocations[loc]
	if !ok {
		return fmt.Errorf("dial: unknown theta zero location %q", loc)
	}
	ax.ThetaOffset = off
	return nil
}

// SetRLim sets the radial limits.
func (ax *PolarAxes) SetRLim(min, max float64) {
	ax.RMin, ax.RMax = min, max
}

// Project maps polar data (r, theta) to the cartesian data coordinates of
// the underlying plot.
func (ax *PolarAxes) Project(r, theta float64) (x, y float64) {
	rr := r - ax.RMin
	a := ax.ThetaOffset + float64(ax.Direction)*theta
	return rr * math.Cos(a), rr * math.Sin(a)
}

// DialXY maps a latitude (degrees) and a local-time longitude (radians) to
// data coordinates using radius = 90 - lat.
func (ax *PolarAxes) DialXY(lat, lonRad float64) (x, y float64) {
	return ax.Project(90-lat, lonRad)
}

// extent is the half-width of the square data window.
func (ax *PolarAxes) extent() float64 {
	span := ax.RMax - ax.RMin
	if span <= 0 {
		span = 1
	}
	return span * (1 + labelMargin)
}

func (ax *PolarAxes) applyLimits() {
	e := ax.extent()
	ax.Plot.X.Min, ax.Plot.X.Max = -e, e
	ax.Plot.Y.Min, ax.Plot.Y.Max = -e, e
}

// Draw renders the dial, its grid and the optional colour bar into c.
func (ax *PolarAxes) Draw(c draw.Canvas) {
	dialC := c
	if ax.ColorBar != nil {
		w := (c.Max.X - c.Min.X) * colorBarFraction
		ax.ColorBar.Draw(draw.Crop(c, c.Max.X-c.Min.X-w, 0, 0, 0))
		dialC = draw.Crop(c, 0, -w, 0, 0)
	}

	sq := square(dialC)
	ax.applyLimits()
	ax.Plot.Draw(sq)
	ax.drawGrid(ax.Plot.DataCanvas(sq))
}

// square returns the largest centred square inside c.
func square(c draw.Canvas) draw.Canvas {
	w, h := c.Max.X-c.Min.X, c.Max.Y-c.Min.Y
	switch {
	case w > h:
		d := (w - h) / 2
		return draw.Crop(c, d, -d, 0, 0)
	case h > w:
		d := (h - w) / 2
		return draw.Crop(c, 0, 0, d, -d)
	}
	return c
}

func (ax *PolarAxes) drawGrid(c draw.Canvas) {
	trX, trY := ax.Plot.Transforms(&c)
	pt := func(r, theta float64) vg.Point {
		x, y := ax.Project(r, theta)
		return vg.Point{X: trX(x), Y: trY(y)}
	}
	circle := func(r float64) []vg.Point {
		pts := make([]vg.Point, circleSegments+1)
		for i := range pts {
			pts[i] = pt(r, 2*math.Pi*float64(i)/circleSegments)
		}
		return pts
	}

	for _, t := range ax.RTicks {
		if t.Value <= ax.RMin || t.Value >= ax.RMax {
			continue
		}
		c.StrokeLines(ax.Grid, circle(t.Value))
	}
	for _, t := range ax.ThetaTicks {
		c.StrokeLines(ax.Grid, []vg.Point{pt(ax.RMin, t.Value), pt(ax.RMax, t.Value)})
	}
	c.StrokeLines(ax.Spine, circle(ax.RMax))

	sty := ax.Plot.X.Tick.Label
	sty.XAlign, sty.YAlign = draw.XCenter, draw.YCenter

	labelR := ax.RMax + (ax.RMax-ax.RMin)*labelMargin/2
	for _, t := range ax.ThetaTicks {
		if t.IsMinor() {
			continue
		}
		c.FillText(sty, pt(labelR, t.Value), t.Label)
	}
	for _, t := range ax.RTicks {
		if t.IsMinor() || t.Value < ax.RMin || t.Value > ax.RMax {
			continue
		}
		c.FillText(sty, pt(t.Value, ax.RLabelTheta), t.Label)
	}
}

// ConfigureDialAxes sets up ax as a local-time dial: midnight (theta 0) at
// the bottom, theta increasing counter-clockwise so noon is at the top and
// dawn on the right, hour labels every 45 degrees, latitude labels at radii
// 10 to 50 and a radial view of exactly [0, 40] (latitudes 50 and above).
func ConfigureDialAxes(ax *PolarAxes) {
	ax.ThetaOffset = thetaZeroLocations["S"]
	ax.Direction = CounterClockwise

	ax.ThetaTicks = ax.ThetaTicks[:0]
	for i := 0; i < 8; i++ {
		ax.ThetaTicks = append(ax.ThetaTicks, plot.Tick{
			Value: float64(i) * math.Pi / 4,
			Label: strconv.Itoa(3 * i),
		})
	}

	ax.RTicks = ax.RTicks[:0]
	for r := 10; r <= 50; r += 10 {
		ax.RTicks = append(ax.RTicks, plot.Tick{
			Value: float64(r),
			Label: strconv.Itoa(90-r) + "°",
		})
	}

	ax.SetRLim(0, 40)
}

// LabelLongitudes relabels the angular ticks of a configured dial with
// geographic longitude, for maps whose theta is longitude rather than local
// time: 0° at the bottom, east increasing counter-clockwise.
func LabelLongitudes(ax *PolarAxes) {
	ax.ThetaTicks = ax.ThetaTicks[:0]
	for i := 0; i < 8; i++ {
		ax.ThetaTicks = append(ax.ThetaTicks, plot.Tick{
			Value: float64(i) * math.Pi / 4,
			Label: longitudeLabel(45 * i),
		})
	}
}

func longitudeLabel(deg int) string {
	switch {
	case deg == 0 || deg == 180:
		return strconv.Itoa(deg) + "°"
	case deg < 180:
		return strconv.Itoa(deg) + "°E"
	default:
		return strconv.Itoa(360-deg) + "°W"
	}
}
