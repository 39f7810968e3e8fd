package apex

import (
	"math"
	"time"
)

// j2000 is 2000-01-01 12:00 TT, approximated as UTC.
var j2000 = time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)

// Subsolar returns the geographic latitude and longitude (degrees) of the
// subsolar point using the low-precision solar ephemeris from the
// Astronomical Almanac (about 0.01 degree accuracy for 1950-2050).
func Subsolar(t time.Time) (lat, lon float64) {
	n := t.UTC().Sub(j2000).Hours() / 24

	meanLon := normDeg(280.460 + 0.9856474*n)
	anomaly := deg2rad(normDeg(357.528 + 0.9856003*n))
	eclLon := deg2rad(meanLon + 1.915*math.Sin(anomaly) + 0.020*math.Sin(2*anomaly))
	obliquity := deg2rad(23.439 - 0.0000004*n)

	ra := math.Atan2(math.Cos(obliquity)*math.Sin(eclLon), math.Cos(eclLon))
	dec := math.Asin(math.Sin(obliquity) * math.Sin(eclLon))

	gmst := normDeg(280.46061837 + 360.98564736629*n)

	return rad2deg(dec), wrapLon(rad2deg(ra) - gmst)
}

func deg2rad(d float64) float64 { return d * math.Pi / 180 }
func rad2deg(r float64) float64 { return r * 180 / math.Pi }

// normDeg maps an angle to [0, 360).
func normDeg(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// wrapLon maps a longitude to [-180, 180).
func wrapLon(d float64) float64 {
	return normDeg(d+180) - 180
}
