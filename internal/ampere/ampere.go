// Package ampere provides AMPERE current-totals data processing utilities.
// This package handles the daily "Itot" files (hemispheric field-aligned
// current magnitudes) and their storage in parquet and ClickHouse.
package ampere

import (
	"sort"
	"time"
)

// NumCurrents is the number of current-magnitude columns per row.
const NumCurrents = 16

// NumTimeFields is the number of leading date/time tokens per row.
const NumTimeFields = 6

// NumTokens is the total whitespace-separated token count of a data row.
const NumTokens = NumTimeFields + NumCurrents

// ColumnNames lists the current columns in file order (mega-amperes).
// The first twelve split by hemisphere, direction and day/night period;
// the trailing four are carried through unnamed.
var ColumnNames = [NumCurrents]string{
	"I total up North [MA]",
	"I total down North [MA]",
	"I day up North [MA]",
	"I day down North [MA]",
	"I night up North [MA]",
	"I night down North [MA]",
	"I total up South [MA]",
	"I total down South [MA]",
	"I day up South [MA]",
	"I day down South [MA]",
	"I night up South [MA]",
	"I night down South [MA]",
	"I aux 1 [MA]",
	"I aux 2 [MA]",
	"I aux 3 [MA]",
	"I aux 4 [MA]",
}

// ColumnKeys are the storage-safe names used for parquet and ClickHouse
// columns, index-aligned with ColumnNames.
var ColumnKeys = [NumCurrents]string{
	"i_total_up_north",
	"i_total_down_north",
	"i_day_up_north",
	"i_day_down_north",
	"i_night_up_north",
	"i_night_down_north",
	"i_total_up_south",
	"i_total_down_south",
	"i_day_up_south",
	"i_day_down_south",
	"i_night_up_south",
	"i_night_down_south",
	"i_aux_1",
	"i_aux_2",
	"i_aux_3",
	"i_aux_4",
}

// Currents holds one row of current magnitudes in ColumnNames order.
type Currents [NumCurrents]float64

// Table is a time-indexed table of current totals. Times and Values are
// index-aligned; rows keep the order they were read in and timestamps are
// not required to be unique.
type Table struct {
	Times  []time.Time
	Values []Currents
}

// NewTable creates an empty table with room for n rows.
func NewTable(n int) *Table {
	return &Table{
		Times:  make([]time.Time, 0, n),
		Values: make([]Currents, 0, n),
	}
}

// Append adds a row.
func (t *Table) Append(ts time.Time, v Currents) {
	t.Times = append(t.Times, ts)
	t.Values = append(t.Values, v)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Times)
}

// Row returns the timestamp and currents of row i.
func (t *Table) Row(i int) (time.Time, Currents) {
	return t.Times[i], t.Values[i]
}

// ColumnIndex returns the position of a column given either its display
// name or its storage key, or -1.
func ColumnIndex(name string) int {
	for i := range ColumnNames {
		if ColumnNames[i] == name || ColumnKeys[i] == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the named column, or nil if the name is unknown.
func (t *Table) Column(name string) []float64 {
	idx := ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]float64, t.Len())
	for i := range t.Values {
		out[i] = t.Values[i][idx]
	}
	return out
}

// IsSorted reports whether the timestamps are non-decreasing.
func (t *Table) IsSorted() bool {
	return sort.SliceIsSorted(t.Times, func(i, j int) bool {
		return t.Times[i].Before(t.Times[j])
	})
}

// Slice returns the rows with start <= time < end as a new table.
func (t *Table) Slice(start, end time.Time) *Table {
	out := NewTable(0)
	for i, ts := range t.Times {
		if ts.Before(start) || !ts.Before(end) {
			continue
		}
		out.Append(ts, t.Values[i])
	}
	return out
}

// Nearest returns the index of the row closest in time to ts, or -1 for an
// empty table. Ties resolve to the earlier row.
func (t *Table) Nearest(ts time.Time) int {
	best := -1
	var bestDiff time.Duration
	for i, rt := range t.Times {
		d := rt.Sub(ts)
		if d < 0 {
			d = -d
		}
		if best < 0 || d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return best
}

// Epochs returns the distinct timestamps in ascending order, keeping only the
// first of every interval of length every. A non-positive every keeps all.
func (t *Table) Epochs(every time.Duration) []time.Time {
	times := append([]time.Time(nil), t.Times...)
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	var out []time.Time
	var next time.Time
	for _, ts := range times {
		if len(out) > 0 && (ts.Equal(out[len(out)-1]) || ts.Before(next)) {
			continue
		}
		out = append(out, ts)
		if every > 0 {
			next = ts.Truncate(every).Add(every)
		}
	}
	return out
}

// NearestTimes snaps each requested time to the nearest row timestamp. It
// returns nil for an empty table.
func (t *Table) NearestTimes(at []time.Time) []time.Time {
	if t.Len() == 0 {
		return nil
	}
	out := make([]time.Time, len(at))
	for i, ts := range at {
		out[i] = t.Times[t.Nearest(ts)]
	}
	return out
}
