package ampere

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleTable() *Table {
	t := NewTable(3)
	base := time.Date(2020, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		var v Currents
		for j := range v {
			v[j] = float64(i*100 + j)
		}
		t.Append(base.Add(time.Duration(i)*2*time.Minute), v)
	}
	return t
}

func TestColumnLookup(t *testing.T) {
	table := sampleTable()

	if idx := ColumnIndex("I day up South [MA]"); idx != 8 {
		t.Errorf("ColumnIndex(display) = %d, want 8", idx)
	}
	if idx := ColumnIndex("i_day_up_south"); idx != 8 {
		t.Errorf("ColumnIndex(key) = %d, want 8", idx)
	}
	if idx := ColumnIndex("nope"); idx != -1 {
		t.Errorf("ColumnIndex(unknown) = %d, want -1", idx)
	}

	col := table.Column("I total down North [MA]")
	want := []float64{1, 101, 201}
	for i := range want {
		if col[i] != want[i] {
			t.Errorf("Column()[%d] = %g, want %g", i, col[i], want[i])
		}
	}
	if table.Column("nope") != nil {
		t.Error("Column(unknown) should be nil")
	}
}

func TestColumnNamesUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := range ColumnNames {
		for _, n := range []string{ColumnNames[i], ColumnKeys[i]} {
			if n == "" || seen[n] {
				t.Errorf("column name %q empty or duplicated", n)
			}
			seen[n] = true
		}
	}
}

func TestSliceAndNearest(t *testing.T) {
	table := sampleTable()
	base := table.Times[0]

	s := table.Slice(base, base.Add(4*time.Minute))
	if s.Len() != 2 {
		t.Errorf("Slice().Len() = %d, want 2 (end exclusive)", s.Len())
	}

	tests := []struct {
		name string
		at   time.Time
		want int
	}{
		{"Before", base.Add(-time.Hour), 0},
		{"Exact", base.Add(2 * time.Minute), 1},
		{"TieEarlier", base.Add(time.Minute), 0},
		{"After", base.Add(time.Hour), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := table.Nearest(tt.at); got != tt.want {
				t.Errorf("Nearest() = %d, want %d", got, tt.want)
			}
		})
	}

	if NewTable(0).Nearest(base) != -1 {
		t.Error("Nearest on empty table should be -1")
	}
}

func TestParquetRoundTrip(t *testing.T) {
	table := sampleTable()
	path := filepath.Join(t.TempDir(), "itot.parquet")

	if err := WriteParquetFile(path, table); err != nil {
		t.Fatalf("WriteParquetFile() error: %v", err)
	}
	got, err := ReadParquet(path)
	if err != nil {
		t.Fatalf("ReadParquet() error: %v", err)
	}

	if got.Len() != table.Len() {
		t.Fatalf("Len() = %d, want %d", got.Len(), table.Len())
	}
	for i := range table.Times {
		if !got.Times[i].Equal(table.Times[i]) {
			t.Errorf("Times[%d] = %v, want %v", i, got.Times[i], table.Times[i])
		}
		if got.Values[i] != table.Values[i] {
			t.Errorf("Values[%d] = %v, want %v", i, got.Values[i], table.Values[i])
		}
	}
}

func TestBatchColumns(t *testing.T) {
	b := NewBatch()
	b.AddTable(sampleTable(), "amp_itot_daily_20200501.dat")

	if b.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", b.Len())
	}
	input := b.Input()
	if len(input) != NumCurrents+3 {
		t.Fatalf("len(Input()) = %d, want %d", len(input), NumCurrents+3)
	}
	if input[0].Name != "time" || input[len(input)-2].Name != "source_file" || input[len(input)-1].Name != "row_index" {
		t.Errorf("unexpected column order: first %q last %q", input[0].Name, input[len(input)-1].Name)
	}
	for i := 0; i < 3; i++ {
		if got := (*b.RowIndex)[i]; got != uint32(i) {
			t.Errorf("RowIndex[%d] = %d, want %d", i, got, i)
		}
	}
	if (*b.Currents[2])[1] != 102 {
		t.Errorf("Currents[2][1] = %g, want 102", (*b.Currents[2])[1])
	}

	b.Reset()
	if b.Len() != 0 || b.RowIndex.Rows() != 0 {
		t.Error("Reset did not clear batch")
	}
}

func TestBatchKeepsRepeatedTimestamps(t *testing.T) {
	table := NewTable(2)
	ts := time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)
	table.Append(ts, Currents{1})
	table.Append(ts, Currents{2})

	b := NewBatch()
	b.AddTable(table, "dup.dat")
	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", b.Len())
	}
	// (time, source_file) repeats, so row_index must differ for both rows
	// to survive the table key.
	if (*b.RowIndex)[0] == (*b.RowIndex)[1] {
		t.Errorf("rows with equal time share row_index %d", (*b.RowIndex)[0])
	}
}

func TestSQLBuilders(t *testing.T) {
	insert := InsertQuery("ampere.itot")
	if !strings.HasPrefix(insert, "INSERT INTO ampere.itot (time, i_total_up_north,") ||
		!strings.HasSuffix(insert, "i_aux_4, source_file) VALUES") {
		t.Errorf("InsertQuery() = %q", insert)
	}

	ddl := CreateTableSQL("ampere.itot")
	for _, k := range ColumnKeys {
		if !strings.Contains(ddl, k+" Float64") {
			t.Errorf("CreateTableSQL() missing column %s", k)
		}
	}
	if !strings.Contains(ddl, "ReplacingMergeTree") {
		t.Error("CreateTableSQL() missing engine")
	}
	if !strings.Contains(ddl, "row_index UInt32") {
		t.Error("CreateTableSQL() missing row_index column")
	}
	if !strings.Contains(ddl, "ORDER BY (time, source_file, row_index)") {
		t.Errorf("CreateTableSQL() key does not include row_index:\n%s", ddl)
	}
	if !strings.HasSuffix(insert, "source_file, row_index) VALUES") {
		t.Errorf("InsertQuery() = %q", insert)
	}

	sel := SelectQuery("ampere.itot")
	if !strings.Contains(sel, "FINAL WHERE time >= ? AND time < ? ORDER BY time") {
		t.Errorf("SelectQuery() = %q", sel)
	}
}

// fakeRows replays a table through the driver.Rows scanning contract.
type fakeRows struct {
	table *Table
	next  int
	err   error
}

func (r *fakeRows) Next() bool {
	r.next++
	return r.next <= r.table.Len()
}

func (r *fakeRows) Scan(dest ...any) error {
	if len(dest) != NumCurrents+1 {
		return errors.New("wrong column count")
	}
	ts, v := r.table.Row(r.next - 1)
	*dest[0].(*time.Time) = ts.In(time.FixedZone("X", 3600))
	for i := range v {
		*dest[i+1].(*float64) = v[i]
	}
	return nil
}

func (r *fakeRows) Err() error { return r.err }

func TestScanCurrentTotals(t *testing.T) {
	src := sampleTable()
	src.Append(src.Times[2], Currents{7})

	got, err := scanCurrentTotals(&fakeRows{table: src})
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != src.Len() {
		t.Fatalf("Len() = %d, want %d (repeated timestamps kept)", got.Len(), src.Len())
	}
	for i := range src.Times {
		if !got.Times[i].Equal(src.Times[i]) || got.Times[i].Location() != time.UTC {
			t.Errorf("Times[%d] = %v, want %v in UTC", i, got.Times[i], src.Times[i])
		}
		if got.Values[i] != src.Values[i] {
			t.Errorf("Values[%d] = %v, want %v", i, got.Values[i], src.Values[i])
		}
	}

	sentinel := errors.New("connection reset")
	if _, err := scanCurrentTotals(&fakeRows{table: src, err: sentinel}); !errors.Is(err, sentinel) {
		t.Errorf("error = %v, want %v", err, sentinel)
	}
}

func TestEpochs(t *testing.T) {
	base := time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)
	table := NewTable(0)
	for _, m := range []int{4, 0, 2, 2, 12, 10, 22} {
		table.Append(base.Add(time.Duration(m)*time.Minute), Currents{})
	}

	tests := []struct {
		name  string
		every time.Duration
		want  []int // minutes after base
	}{
		{"All", 0, []int{0, 2, 4, 10, 12, 22}},
		{"TenMinutes", 10 * time.Minute, []int{0, 10, 22}},
		{"Hour", time.Hour, []int{0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := table.Epochs(tt.every)
			if len(got) != len(tt.want) {
				t.Fatalf("Epochs() = %v, want minutes %v", got, tt.want)
			}
			for i, m := range tt.want {
				if want := base.Add(time.Duration(m) * time.Minute); !got[i].Equal(want) {
					t.Errorf("Epochs()[%d] = %v, want %v", i, got[i], want)
				}
			}
		})
	}
	if !table.Times[0].Equal(base.Add(4 * time.Minute)) {
		t.Error("Epochs reordered the table")
	}
}

func TestNearestTimes(t *testing.T) {
	table := sampleTable()
	base := table.Times[0]

	got := table.NearestTimes([]time.Time{base.Add(-time.Hour), base.Add(3*time.Minute + time.Second), base.Add(time.Hour)})
	want := []time.Time{table.Times[0], table.Times[2], table.Times[2]}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("NearestTimes()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if NewTable(0).NearestTimes([]time.Time{base}) != nil {
		t.Error("NearestTimes on empty table should be nil")
	}
}

func TestLoadTable(t *testing.T) {
	dir := t.TempDir()
	table := sampleTable()

	pq := filepath.Join(dir, "itot.parquet")
	if err := WriteParquetFile(pq, table); err != nil {
		t.Fatal(err)
	}
	got, err := LoadTable(pq)
	if err != nil {
		t.Fatalf("LoadTable(parquet) error: %v", err)
	}
	if got.Len() != table.Len() {
		t.Errorf("LoadTable(parquet).Len() = %d, want %d", got.Len(), table.Len())
	}

	dat := writeFile(t, "itot.dat", header+"2020 05 01 12 00 00 "+zeros()+"\n")
	got, err = LoadTable(dat)
	if err != nil {
		t.Fatalf("LoadTable(dat) error: %v", err)
	}
	if got.Len() != 1 {
		t.Errorf("LoadTable(dat).Len() = %d, want 1", got.Len())
	}
}
