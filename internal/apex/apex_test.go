package apex

import (
	"errors"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/KI7MT/ki7mt-amgeo-apps/internal/common"
)

var epoch2020 = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// lonDiff returns the smallest signed difference between two angles.
func lonDiff(a, b, period float64) float64 {
	d := math.Mod(a-b, period)
	if d > period/2 {
		d -= period
	} else if d < -period/2 {
		d += period
	}
	return d
}

func TestDatetime64ToTimeTruncates(t *testing.T) {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		ns   int64
		want time.Time
	}{
		{"Exact", base.UnixNano(), base},
		{"SubMillisecondDropped", base.UnixNano() + 999_999, base},
		{"MillisecondKept", base.UnixNano() + 1_500_000, base.Add(time.Millisecond)},
		{"NotRounded", base.UnixNano() + 2_999_999, base.Add(2 * time.Millisecond)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Datetime64ToTime(tt.ns)
			if !got.Equal(tt.want) {
				t.Errorf("Datetime64ToTime() = %v, want %v", got, tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("location = %v, want UTC", got.Location())
			}
		})
	}
}

func TestDatetime64sToTimesLength(t *testing.T) {
	in := []int64{0, 1_000_000, 2_000_500}
	out := Datetime64sToTimes(in)
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	if out[2].Nanosecond() != 2_000_000 {
		t.Errorf("out[2] ns = %d, want 2000000", out[2].Nanosecond())
	}
	if len(Datetime64sToTimes(nil)) != 0 {
		t.Error("nil input should give empty output")
	}
}

func TestDecimalYear(t *testing.T) {
	if got := DecimalYear(epoch2020); got != 2020 {
		t.Errorf("DecimalYear(2020-01-01) = %g", got)
	}
	mid := time.Date(2021, 7, 2, 12, 0, 0, 0, time.UTC)
	if got := DecimalYear(mid); !near(got, 2021.5, 1e-3) {
		t.Errorf("DecimalYear(mid 2021) = %g", got)
	}
}

func TestSubsolar(t *testing.T) {
	// June solstice near 12 UT: sun over the tropic of Cancer near Greenwich.
	lat, lon := Subsolar(time.Date(2020, 6, 20, 12, 0, 0, 0, time.UTC))
	if !near(lat, 23.44, 0.1) {
		t.Errorf("subsolar lat = %g, want ~23.44", lat)
	}
	if !near(lon, 0, 1.0) {
		t.Errorf("subsolar lon = %g, want ~0 (equation of time < 1 deg)", lon)
	}

	// 00 UT puts the sun near the antimeridian.
	_, lon = Subsolar(time.Date(2020, 3, 20, 0, 0, 0, 0, time.UTC))
	if math.Abs(lon) < 175 {
		t.Errorf("subsolar lon at 00 UT = %g, want near +-180", lon)
	}
}

func TestDipolePole2020(t *testing.T) {
	lat, lon := newFrame(coefficients(2020)).NorthPole()
	if !near(lat, 80.6, 0.15) || !near(lon, -72.68, 0.15) {
		t.Errorf("dipole pole = (%g, %g), want ~(80.6, -72.68)", lat, lon)
	}
}

func TestDipoleGeoApexRoundTrip(t *testing.T) {
	d := NewDipole()
	lat := mat.NewDense(2, 3, []float64{45, 60, 75, -50, -65, -80})
	lon := mat.NewDense(2, 3, []float64{-120, 0, 30, 150, -10, 90})

	alat, alon, err := d.Convert(lat, lon, Geo, Apex, epoch2020, 110)
	if err != nil {
		t.Fatal(err)
	}
	glat, glon, err := d.Convert(alat, alon, Apex, Geo, epoch2020, 110)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			if !near(glat.At(i, j), lat.At(i, j), 1e-6) {
				t.Errorf("lat[%d][%d] = %g, want %g", i, j, glat.At(i, j), lat.At(i, j))
			}
			if !near(lonDiff(glon.At(i, j), lon.At(i, j), 360), 0, 1e-6) {
				t.Errorf("lon[%d][%d] = %g, want %g", i, j, glon.At(i, j), lon.At(i, j))
			}
		}
	}
}

func TestDipoleMLTNoonFacesSun(t *testing.T) {
	d := NewDipole()
	at := time.Date(2015, 3, 17, 18, 30, 0, 0, time.UTC)
	sun := subsolarMlon(newFrame(coefficients(DecimalYear(at))), at)

	lat := mat.NewDense(1, 2, []float64{70, 70})
	lon := mat.NewDense(1, 2, []float64{sun, sun + 180})
	_, mlt, err := d.Convert(lat, lon, Apex, MLT, at, 110)
	if err != nil {
		t.Fatal(err)
	}
	if !near(mlt.At(0, 0), 12, 1e-9) {
		t.Errorf("MLT at subsolar meridian = %g, want 12", mlt.At(0, 0))
	}
	if !near(lonDiff(mlt.At(0, 1), 0, 24), 0, 1e-9) {
		t.Errorf("MLT at antisolar meridian = %g, want 0", mlt.At(0, 1))
	}

	// MLT -> apex -> MLT
	_, back, err := d.Convert(lat, mlt, MLT, Apex, at, 110)
	if err != nil {
		t.Fatal(err)
	}
	if !near(lonDiff(back.At(0, 0), sun, 360), 0, 1e-9) {
		t.Errorf("apex lon = %g, want %g", back.At(0, 0), sun)
	}
}

func TestDipoleHeightMapping(t *testing.T) {
	d := NewDipole()
	lat := mat.NewDense(1, 2, []float64{60, 5})
	lon := mat.NewDense(1, 2, []float64{0, 0})

	glat, _, err := d.Convert(lat, lon, Apex, Geo, epoch2020, 110)
	if err != nil {
		t.Fatal(err)
	}
	if math.IsNaN(glat.At(0, 0)) {
		t.Error("high-latitude apex point should map to a geodetic latitude")
	}
	// A 5 degree apex latitude field line peaks far below 110 km.
	if !math.IsNaN(glat.At(0, 1)) {
		t.Errorf("low apex latitude at 110 km = %g, want NaN", glat.At(0, 1))
	}
}

func TestDipoleErrors(t *testing.T) {
	d := NewDipole()
	one := mat.NewDense(1, 1, []float64{60})
	two := mat.NewDense(1, 2, []float64{0, 0})

	_, _, err := d.Convert(one, one, MLT, Geo, time.Date(1850, 1, 1, 0, 0, 0, 0, time.UTC), 110)
	var de *DomainError
	if !errors.As(err, &de) {
		t.Errorf("1850: error = %v, want *DomainError", err)
	}

	_, _, err = d.Convert(one, one, MLT, Geo, time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC), 110)
	if !errors.As(err, &de) {
		t.Errorf("2031: error = %v, want *DomainError", err)
	}

	_, _, err = d.Convert(one, two, MLT, Geo, epoch2020, 110)
	var se *common.ShapeError
	if !errors.As(err, &se) {
		t.Errorf("shape mismatch: error = %v, want *common.ShapeError", err)
	}

	_, _, err = d.Convert(one, one, MLT, Geo, epoch2020, -1)
	var he *HeightError
	if !errors.As(err, &he) {
		t.Errorf("negative height: error = %v, want *HeightError", err)
	}

	_, _, err = d.Convert(one, one, "gsm", Geo, epoch2020, 110)
	var ue *UnknownSystemError
	if !errors.As(err, &ue) {
		t.Errorf("unknown system: error = %v, want *UnknownSystemError", err)
	}
}

func TestCoefficientsInterpolation(t *testing.T) {
	c := coefficients(2017.5)
	if !near(c.g10, (-29441.46-29403.41)/2, 1e-9) {
		t.Errorf("g10(2017.5) = %g", c.g10)
	}
	c = coefficients(2027)
	if !near(c.g10, -29350.0+2*12.6, 1e-9) {
		t.Errorf("g10(2027) = %g", c.g10)
	}
	if coefficients(1900).g10 != -31543 {
		t.Error("1900 coefficients should be the first table entry")
	}
}
