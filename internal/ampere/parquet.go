package ampere

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
)

// Record is the parquet row layout of a current-totals table.
type Record struct {
	Timestamp       int64   `parquet:"timestamp"` // Unix seconds, UTC
	ITotalUpNorth   float64 `parquet:"i_total_up_north"`
	ITotalDownNorth float64 `parquet:"i_total_down_north"`
	IDayUpNorth     float64 `parquet:"i_day_up_north"`
	IDayDownNorth   float64 `parquet:"i_day_down_north"`
	INightUpNorth   float64 `parquet:"i_night_up_north"`
	INightDownNorth float64 `parquet:"i_night_down_north"`
	ITotalUpSouth   float64 `parquet:"i_total_up_south"`
	ITotalDownSouth float64 `parquet:"i_total_down_south"`
	IDayUpSouth     float64 `parquet:"i_day_up_south"`
	IDayDownSouth   float64 `parquet:"i_day_down_south"`
	INightUpSouth   float64 `parquet:"i_night_up_south"`
	INightDownSouth float64 `parquet:"i_night_down_south"`
	IAux1           float64 `parquet:"i_aux_1"`
	IAux2           float64 `parquet:"i_aux_2"`
	IAux3           float64 `parquet:"i_aux_3"`
	IAux4           float64 `parquet:"i_aux_4"`
}

// recordFields returns pointers to the current fields in ColumnNames order.
func (r *Record) recordFields() [NumCurrents]*float64 {
	return [NumCurrents]*float64{
		&r.ITotalUpNorth, &r.ITotalDownNorth, &r.IDayUpNorth, &r.IDayDownNorth,
		&r.INightUpNorth, &r.INightDownNorth, &r.ITotalUpSouth, &r.ITotalDownSouth,
		&r.IDayUpSouth, &r.IDayDownSouth, &r.INightUpSouth, &r.INightDownSouth,
		&r.IAux1, &r.IAux2, &r.IAux3, &r.IAux4,
	}
}

// NewRecord builds a parquet record from one table row.
func NewRecord(ts time.Time, v Currents) Record {
	r := Record{Timestamp: ts.Unix()}
	for i, p := range r.recordFields() {
		*p = v[i]
	}
	return r
}

// Row converts a record back to a table row.
func (r Record) Row() (time.Time, Currents) {
	var v Currents
	for i, p := range r.recordFields() {
		v[i] = *p
	}
	return time.Unix(r.Timestamp, 0).UTC(), v
}

// WriteParquet writes the table to w as a parquet file.
func WriteParquet(w io.Writer, t *Table) error {
	records := make([]Record, t.Len())
	for i := range records {
		records[i] = NewRecord(t.Row(i))
	}

	pw := parquet.NewGenericWriter[Record](w)
	if _, err := pw.Write(records); err != nil {
		pw.Close()
		return fmt.Errorf("parquet write: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("parquet close: %w", err)
	}
	return nil
}

// WriteParquetFile writes the table to path via a temp file and rename.
func WriteParquetFile(path string, t *Table) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create file failed: %w", err)
	}

	if err := WriteParquet(f, t); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename failed: %w", err)
	}
	return nil
}

// ReadParquet reads a table written by WriteParquet.
func ReadParquet(path string) (*Table, error) {
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

	reader := parquet.NewGenericReader[Record](pf)
	defer reader.Close()

	table := NewTable(int(reader.NumRows()))
	buf := make([]Record, 1000)
	for {
		n, err := reader.Read(buf)
		for i := 0; i < n; i++ {
			table.Append(buf[i].Row())
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parquet read %s: %w", path, err)
		}
		if n == 0 {
			break
		}
	}
	return table, nil
}
