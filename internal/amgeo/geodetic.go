package amgeo

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
	"gonum.org/v1/gonum/mat"

	"github.com/KI7MT/ki7mt-amgeo-apps/internal/apex"
)

// GeodeticGrid is the geodetic footprint of the AMGeO grid at one epoch.
type GeodeticGrid struct {
	Time     time.Time
	HeightKm float64
	MagLat   *mat.Dense
	MLT      *mat.Dense
	GeoLat   *mat.Dense
	GeoLon   *mat.Dense
}

// NewGeodeticGrid runs ToGeodeticAt and keeps the magnetic inputs alongside.
func NewGeodeticGrid(conv apex.Converter, latBins, lonBins []float64, at time.Time, heightKm float64) (*GeodeticGrid, error) {
	g, err := NewGrid(latBins, lonBins)
	if err != nil {
		return nil, err
	}
	geoLat, geoLon, err := ToGeodeticAt(conv, latBins, lonBins, at, heightKm)
	if err != nil {
		return nil, err
	}
	return &GeodeticGrid{
		Time:     at,
		HeightKm: heightKm,
		MagLat:   g.Lat,
		MLT:      g.MLT(),
		GeoLat:   geoLat,
		GeoLon:   geoLon,
	}, nil
}

// GridRecord is the parquet row layout of one geodetic grid cell.
type GridRecord struct {
	Timestamp int64   `parquet:"timestamp"` // Unix milliseconds, UTC
	HeightKm  float64 `parquet:"height_km"`
	Row       int32   `parquet:"row"`
	Col       int32   `parquet:"col"`
	MagLat    float64 `parquet:"mag_lat"`
	MLT       float64 `parquet:"mlt"`
	GeoLat    float64 `parquet:"geo_lat"`
	GeoLon    float64 `parquet:"geo_lon"`
}

// Records flattens the grid row-major.
func (g *GeodeticGrid) Records() []GridRecord {
	r, c := g.GeoLat.Dims()
	out := make([]GridRecord, 0, r*c)
	ts := g.Time.UnixMilli()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, GridRecord{
				Timestamp: ts,
				HeightKm:  g.HeightKm,
				Row:       int32(i),
				Col:       int32(j),
				MagLat:    g.MagLat.At(i, j),
				MLT:       g.MLT.At(i, j),
				GeoLat:    g.GeoLat.At(i, j),
				GeoLon:    g.GeoLon.At(i, j),
			})
		}
	}
	return out
}

// WriteGridParquet writes every grid to w, one record per cell.
func WriteGridParquet(w io.Writer, grids []*GeodeticGrid) error {
	pw := parquet.NewGenericWriter[GridRecord](w)
	for _, g := range grids {
		if _, err := pw.Write(g.Records()); err != nil {
			pw.Close()
			return fmt.Errorf("parquet write %s: %w", g.Time.Format(time.RFC3339), err)
		}
	}
	return pw.Close()
}

// WriteGridParquetFile writes the grids to path.
func WriteGridParquetFile(path string, grids []*GeodeticGrid) error {
	return writeFile(path, func(w io.Writer) error { return WriteGridParquet(w, grids) })
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
