// Package amgeo remaps AMGeO (Assimilative Mapping of Geospace Observations)
// grids from magnetic local time coordinates to geodetic coordinates.
//
// AMGeO maps are 24 latitude bins by 37 longitude bins. Longitude bins are
// local-time sectors 10 degrees apart; row i of every grid belongs to
// latitude bin i and column j to longitude bin j.
package amgeo

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/KI7MT/ki7mt-amgeo-apps/internal/apex"
	"github.com/KI7MT/ki7mt-amgeo-apps/internal/common"
)

// Grid dimensions.
const (
	NumLat = 24
	NumLon = 37
)

// ApexHeightKm is the E-region reference altitude maps are evaluated at.
const ApexHeightKm = 110.0

// Grid is a pair of NumLat x NumLon arrays broadcast from 1-D bin vectors.
type Grid struct {
	Lat *mat.Dense // Lat.At(i, j) == latBins[i]
	Lon *mat.Dense // Lon.At(i, j) == lonBins[j]
}

// NewGrid broadcasts latBins down the rows and lonBins across the columns.
func NewGrid(latBins, lonBins []float64) (*Grid, error) {
	if len(latBins) != NumLat {
		return nil, &common.ShapeError{Op: "grid lat bins", Want: common.Shape(NumLat, 1), Got: common.Shape(len(latBins), 1)}
	}
	if len(lonBins) != NumLon {
		return nil, &common.ShapeError{Op: "grid lon bins", Want: common.Shape(NumLon, 1), Got: common.Shape(len(lonBins), 1)}
	}

	lat := mat.NewVecDense(NumLat, append([]float64(nil), latBins...))
	lon := mat.NewVecDense(NumLon, append([]float64(nil), lonBins...))

	g := &Grid{Lat: new(mat.Dense), Lon: new(mat.Dense)}
	g.Lat.Outer(1, lat, ones(NumLon))
	g.Lon.Outer(1, ones(NumLat), lon)
	return g, nil
}

func ones(n int) *mat.VecDense {
	v := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		v.SetVec(i, 1)
	}
	return v
}

// LonToMLT converts a local-time longitude (degrees) to magnetic local time
// in hours: 0 -> 0, 180 -> 12, -180 -> -12. No wrapping is applied.
func LonToMLT(lon float64) float64 {
	return lon / 180 * 12
}

// MLT returns the grid longitudes converted with LonToMLT.
func (g *Grid) MLT() *mat.Dense {
	return mlt(g.Lon)
}

// ToGeodetic returns the geodetic latitude and longitude grids of an AMGeO
// map at time at. The bins are magnetic latitude and local-time longitude;
// conversion runs from MLT to geodetic at ApexHeightKm. Errors from the
// converter (for instance *apex.DomainError) are returned unchanged.
func ToGeodetic(conv apex.Converter, latBins, lonBins []float64, at time.Time) (geoLat, geoLon *mat.Dense, err error) {
	return ToGeodeticAt(conv, latBins, lonBins, at, ApexHeightKm)
}

// ToGeodeticAt is ToGeodetic evaluated at heightKm instead of ApexHeightKm.
func ToGeodeticAt(conv apex.Converter, latBins, lonBins []float64, at time.Time, heightKm float64) (geoLat, geoLon *mat.Dense, err error) {
	g, err := NewGrid(latBins, lonBins)
	if err != nil {
		return nil, nil, err
	}
	return conv.Convert(g.Lat, g.MLT(), apex.MLT, apex.Geo, at, heightKm)
}

// DefaultLatBins returns the AMGeO latitude bins: 50 to 88.33 degrees in
// 40/24 degree steps.
func DefaultLatBins() []float64 {
	bins := make([]float64, NumLat)
	for i := range bins {
		bins[i] = 50 + float64(i)*40/NumLat
	}
	return bins
}

// DefaultLonBins returns the AMGeO local-time longitude bins: 0 to 360
// degrees in 10 degree steps.
func DefaultLonBins() []float64 {
	bins := make([]float64, NumLon)
	for i := range bins {
		bins[i] = float64(i) * 10
	}
	return bins
}
