package apex

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/KI7MT/ki7mt-amgeo-apps/internal/common"
)

// EarthRadiusKm is the mean Earth radius used for apex heights.
const EarthRadiusKm = 6371.009

// WGS84 ellipsoid.
const (
	wgs84A  = 6378.137
	wgs84F  = 1 / 298.257223563
	wgs84E2 = wgs84F * (2 - wgs84F)
)

// gaussDipole holds the IGRF degree-1 Gauss coefficients (nT).
type gaussDipole struct {
	year          float64
	g10, g11, h11 float64
}

// IGRF/DGRF degree-1 coefficients at 5-year epochs.
var igrfDipole = []gaussDipole{
	{1900, -31543, -2298, 5922},
	{1905, -31464, -2298, 5909},
	{1910, -31354, -2297, 5898},
	{1915, -31212, -2306, 5875},
	{1920, -31060, -2317, 5845},
	{1925, -30926, -2318, 5817},
	{1930, -30805, -2316, 5808},
	{1935, -30715, -2306, 5812},
	{1940, -30654, -2292, 5821},
	{1945, -30594, -2285, 5810},
	{1950, -30554, -2250, 5815},
	{1955, -30500, -2215, 5820},
	{1960, -30421, -2169, 5791},
	{1965, -30334, -2119, 5776},
	{1970, -30220, -2068, 5737},
	{1975, -30100, -2013, 5675},
	{1980, -29992, -1956, 5604},
	{1985, -29873, -1905, 5500},
	{1990, -29775, -1848, 5406},
	{1995, -29692, -1784, 5306},
	{2000, -29619.4, -1728.2, 5186.1},
	{2005, -29554.63, -1669.05, 5077.99},
	{2010, -29496.57, -1586.42, 4944.26},
	{2015, -29441.46, -1501.77, 4795.99},
	{2020, -29403.41, -1451.37, 4653.35},
	{2025, -29350.0, -1410.3, 4545.5},
}

// Secular variation (nT/yr) applied after the last epoch.
var igrfSecular = gaussDipole{g10: 12.6, g11: 10.0, h11: -21.5}

// Model validity range in decimal years.
const (
	MinYear = 1900.0
	MaxYear = 2030.0
)

// Dipole is a centred-dipole apex model. Apex latitudes are modified apex
// latitudes at RefHeightKm: a field line whose apex is at height ha maps to
// cos²(lat) = (Re+RefHeightKm)/(Re+ha). Points whose field line peaks below
// the conversion height have no apex coordinates and convert to NaN.
type Dipole struct {
	RefHeightKm float64
}

// NewDipole returns a dipole model with a ground-level reference height.
func NewDipole() *Dipole {
	return &Dipole{}
}

// coefficients interpolates the Gauss coefficients for a decimal year.
func coefficients(year float64) gaussDipole {
	last := igrfDipole[len(igrfDipole)-1]
	if year >= last.year {
		dt := year - last.year
		return gaussDipole{
			year: year,
			g10:  last.g10 + igrfSecular.g10*dt,
			g11:  last.g11 + igrfSecular.g11*dt,
			h11:  last.h11 + igrfSecular.h11*dt,
		}
	}
	for i := 0; i < len(igrfDipole)-1; i++ {
		a, b := igrfDipole[i], igrfDipole[i+1]
		if year < b.year {
			w := (year - a.year) / (b.year - a.year)
			return gaussDipole{
				year: year,
				g10:  a.g10 + w*(b.g10-a.g10),
				g11:  a.g11 + w*(b.g11-a.g11),
				h11:  a.h11 + w*(b.h11-a.h11),
			}
		}
	}
	return igrfDipole[0]
}

// frame rotates between geocentric and centred-dipole coordinates.
type frame struct {
	ct, st, cp, sp float64 // cos/sin of pole colatitude and longitude
}

func newFrame(c gaussDipole) frame {
	b0 := math.Sqrt(c.g10*c.g10 + c.g11*c.g11 + c.h11*c.h11)
	theta := math.Acos(-c.g10 / b0)
	phi := math.Atan2(-c.h11, -c.g11)
	return frame{ct: math.Cos(theta), st: math.Sin(theta), cp: math.Cos(phi), sp: math.Sin(phi)}
}

// NorthPole returns the geocentric latitude and longitude of the dipole axis.
func (f frame) NorthPole() (lat, lon float64) {
	return 90 - rad2deg(math.Acos(f.ct)), rad2deg(math.Atan2(f.sp, f.cp))
}

func (f frame) toMag(lat, lon float64) (mlat, mlon float64) {
	x, y, z := unit(lat, lon)
	xm := f.ct*f.cp*x + f.ct*f.sp*y - f.st*z
	ym := -f.sp*x + f.cp*y
	zm := f.st*f.cp*x + f.st*f.sp*y + f.ct*z
	return sphere(xm, ym, zm)
}

func (f frame) toGeo(mlat, mlon float64) (lat, lon float64) {
	xm, ym, zm := unit(mlat, mlon)
	x := f.ct*f.cp*xm - f.sp*ym + f.st*f.cp*zm
	y := f.ct*f.sp*xm + f.cp*ym + f.st*f.sp*zm
	z := -f.st*xm + f.ct*zm
	return sphere(x, y, z)
}

func unit(lat, lon float64) (x, y, z float64) {
	la, lo := deg2rad(lat), deg2rad(lon)
	return math.Cos(la) * math.Cos(lo), math.Cos(la) * math.Sin(lo), math.Sin(la)
}

func sphere(x, y, z float64) (lat, lon float64) {
	return rad2deg(math.Atan2(z, math.Hypot(x, y))), rad2deg(math.Atan2(y, x))
}

// geodeticToGeocentric returns the geocentric latitude of a point at
// geodetic latitude lat and height h (km) above the WGS84 ellipsoid.
func geodeticToGeocentric(lat, h float64) float64 {
	phi := deg2rad(lat)
	s := math.Sin(phi)
	n := wgs84A / math.Sqrt(1-wgs84E2*s*s)
	p := (n + h) * math.Cos(phi)
	z := (n*(1-wgs84E2) + h) * s
	return rad2deg(math.Atan2(z, p))
}

// geocentricToGeodetic inverts geodeticToGeocentric at height h.
func geocentricToGeodetic(latc, h float64) float64 {
	lat := latc
	for i := 0; i < 6; i++ {
		lat += latc - geodeticToGeocentric(lat, h)
	}
	return lat
}

// apexFromMag maps a dipole latitude at height h to modified apex latitude.
func (d *Dipole) apexFromMag(mlat, h float64) float64 {
	c := math.Cos(deg2rad(mlat)) * math.Sqrt((EarthRadiusKm+d.RefHeightKm)/(EarthRadiusKm+h))
	if c > 1 {
		return math.NaN()
	}
	return math.Copysign(rad2deg(math.Acos(c)), mlat)
}

// magFromApex maps a modified apex latitude to the dipole latitude at height h.
func (d *Dipole) magFromApex(alat, h float64) float64 {
	c := math.Cos(deg2rad(alat)) * math.Sqrt((EarthRadiusKm+h)/(EarthRadiusKm+d.RefHeightKm))
	if c > 1 {
		return math.NaN()
	}
	return math.Copysign(rad2deg(math.Acos(c)), alat)
}

// subsolarMlon returns the magnetic longitude of the subsolar point.
func subsolarMlon(f frame, t time.Time) float64 {
	lat, lon := Subsolar(t)
	_, mlon := f.toMag(lat, lon)
	return mlon
}

// Convert implements Converter.
func (d *Dipole) Convert(lat, lon *mat.Dense, from, to System, epoch time.Time, heightKm float64) (*mat.Dense, *mat.Dense, error) {
	if !from.Valid() {
		return nil, nil, &UnknownSystemError{System: from}
	}
	if !to.Valid() {
		return nil, nil, &UnknownSystemError{System: to}
	}
	r, c := lat.Dims()
	if lr, lc := lon.Dims(); lr != r || lc != c {
		return nil, nil, &common.ShapeError{Op: "apex convert", Want: common.Shape(r, c), Got: common.Shape(lr, lc)}
	}
	if heightKm < 0 || math.IsNaN(heightKm) {
		return nil, nil, &HeightError{HeightKm: heightKm}
	}
	year := DecimalYear(epoch)
	if year < MinYear || year > MaxYear {
		return nil, nil, &DomainError{Epoch: epoch, Min: MinYear, Max: MaxYear}
	}

	f := newFrame(coefficients(year))
	var sunMlon float64
	if from == MLT || to == MLT {
		sunMlon = subsolarMlon(f, epoch)
	}

	outLat, outLon := mat.NewDense(r, c, nil), mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			a, b := d.convertPoint(f, sunMlon, lat.At(i, j), lon.At(i, j), from, to, heightKm)
			outLat.Set(i, j, a)
			outLon.Set(i, j, b)
		}
	}
	return outLat, outLon, nil
}

func (d *Dipole) convertPoint(f frame, sunMlon, lat, lon float64, from, to System, h float64) (float64, float64) {
	if from == to || (from == QD && to == Apex) || (from == Apex && to == QD) {
		return lat, lon
	}

	var alat, alon float64
	switch from {
	case Geo:
		mlat, mlon := f.toMag(geodeticToGeocentric(lat, h), lon)
		alat, alon = d.apexFromMag(mlat, h), mlon
	case Apex, QD:
		alat, alon = lat, lon
	case MLT:
		alat, alon = lat, wrapLon((lon-12)*15+sunMlon)
	}

	switch to {
	case Geo:
		latc, glon := f.toGeo(d.magFromApex(alat, h), alon)
		if math.IsNaN(latc) {
			return math.NaN(), math.NaN()
		}
		return geocentricToGeodetic(latc, h), wrapLon(glon)
	case MLT:
		return alat, normDeg(alon-sunMlon+180) / 15
	}
	return alat, alon
}
