package amgeo

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
	"gonum.org/v1/gonum/mat"

	"github.com/KI7MT/ki7mt-amgeo-apps/internal/apex"
	"github.com/KI7MT/ki7mt-amgeo-apps/internal/common"
)

// ElectricPotentialMap is one AMGeO electric potential snapshot. Lat, Lon
// and Potential share a shape; Units and Description label plots only.
type ElectricPotentialMap struct {
	Time        time.Time
	Lat         *mat.Dense // degrees
	Lon         *mat.Dense // degrees
	Potential   *mat.Dense // volts
	Units       string
	Description string
}

// NewElectricPotentialMap validates that the three grids share a shape.
func NewElectricPotentialMap(at time.Time, lat, lon, potential *mat.Dense, units, description string) (*ElectricPotentialMap, error) {
	if err := SameShape("potential map", lat, lon, potential); err != nil {
		return nil, err
	}
	return &ElectricPotentialMap{
		Time:        at,
		Lat:         lat,
		Lon:         lon,
		Potential:   potential,
		Units:       units,
		Description: description,
	}, nil
}

// SameShape returns a *common.ShapeError unless every grid has the shape of
// the first.
func SameShape(op string, grids ...*mat.Dense) error {
	if len(grids) == 0 {
		return nil
	}
	r, c := grids[0].Dims()
	for _, g := range grids[1:] {
		if gr, gc := g.Dims(); gr != r || gc != c {
			return &common.ShapeError{Op: op, Want: common.Shape(r, c), Got: common.Shape(gr, gc)}
		}
	}
	return nil
}

// ToGeodetic returns a copy of the map whose Lat/Lon are geodetic at
// ApexHeightKm. The receiver's Lat/Lon are read as magnetic latitude and
// local-time longitude.
func (m *ElectricPotentialMap) ToGeodetic(conv apex.Converter) (*ElectricPotentialMap, error) {
	return m.ToGeodeticAt(conv, ApexHeightKm)
}

// ToGeodeticAt is ToGeodetic at an explicit conversion height.
func (m *ElectricPotentialMap) ToGeodeticAt(conv apex.Converter, heightKm float64) (*ElectricPotentialMap, error) {
	geoLat, geoLon, err := conv.Convert(m.Lat, mlt(m.Lon), apex.MLT, apex.Geo, m.Time, heightKm)
	if err != nil {
		return nil, err
	}
	out := *m
	out.Lat, out.Lon = geoLat, geoLon
	out.Potential = mat.DenseCopyOf(m.Potential)
	return &out, nil
}

func mlt(lon *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 { return LonToMLT(v) }, lon)
	return &out
}

// MapRecord is the parquet row layout of one potential map cell.
type MapRecord struct {
	Timestamp   int64   `parquet:"timestamp"` // Unix milliseconds, UTC
	Row         int32   `parquet:"row"`
	Col         int32   `parquet:"col"`
	Lat         float64 `parquet:"lat"`
	Lon         float64 `parquet:"lon"`
	Potential   float64 `parquet:"potential"`
	Units       string  `parquet:"units,dict"`
	Description string  `parquet:"description,dict"`
}

// WriteMapParquet writes the map to w, one record per grid cell.
func WriteMapParquet(w io.Writer, m *ElectricPotentialMap) error {
	r, c := m.Potential.Dims()
	records := make([]MapRecord, 0, r*c)
	ts := m.Time.UnixMilli()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			records = append(records, MapRecord{
				Timestamp:   ts,
				Row:         int32(i),
				Col:         int32(j),
				Lat:         m.Lat.At(i, j),
				Lon:         m.Lon.At(i, j),
				Potential:   m.Potential.At(i, j),
				Units:       m.Units,
				Description: m.Description,
			})
		}
	}

	pw := parquet.NewGenericWriter[MapRecord](w)
	if _, err := pw.Write(records); err != nil {
		pw.Close()
		return fmt.Errorf("parquet write: %w", err)
	}
	return pw.Close()
}

// WriteMapParquetFile writes the map to path.
func WriteMapParquetFile(path string, m *ElectricPotentialMap) error {
	return writeFile(path, func(w io.Writer) error { return WriteMapParquet(w, m) })
}

// MaxMapDim bounds the row and column indices ReadMapParquet accepts.
const MaxMapDim = 1024

// ReadMapParquet reads a map written by WriteMapParquet. Cells missing from
// the file are NaN. Cell indices must lie in [0, MaxMapDim).
func ReadMapParquet(path string) (*ElectricPotentialMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("parquet open %s: %w", path, err)
	}

	reader := parquet.NewGenericReader[MapRecord](pf)
	defer reader.Close()

	var records []MapRecord
	buf := make([]MapRecord, 1024)
	for {
		n, err := reader.Read(buf)
		records = append(records, buf[:n]...)
		if errors.Is(err, io.EOF) || (err == nil && n == 0) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parquet read %s: %w", path, err)
		}
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: no potential map records", path)
	}

	rows, cols := 0, 0
	for _, rec := range records {
		if rec.Row < 0 || rec.Col < 0 || rec.Row >= MaxMapDim || rec.Col >= MaxMapDim {
			return nil, fmt.Errorf("%s: cell index (%d, %d) outside [0, %d)", path, rec.Row, rec.Col, MaxMapDim)
		}
		rows = max(rows, int(rec.Row)+1)
		cols = max(cols, int(rec.Col)+1)
	}

	lat, lon, pot := nanDense(rows, cols), nanDense(rows, cols), nanDense(rows, cols)
	for _, rec := range records {
		i, j := int(rec.Row), int(rec.Col)
		lat.Set(i, j, rec.Lat)
		lon.Set(i, j, rec.Lon)
		pot.Set(i, j, rec.Potential)
	}

	first := records[0]
	return &ElectricPotentialMap{
		Time:        time.UnixMilli(first.Timestamp).UTC(),
		Lat:         lat,
		Lon:         lon,
		Potential:   pot,
		Units:       first.Units,
		Description: first.Description,
	}, nil
}

func nanDense(r, c int) *mat.Dense {
	d := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			d.Set(i, j, math.NaN())
		}
	}
	return d
}
