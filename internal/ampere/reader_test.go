package ampere

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
)

const header = "YYYY MM DD HH MM SS Itot_up_N Itot_dn_N ...\n"

func zeros() string {
	return strings.TrimSpace(strings.Repeat("0.0 ", NumCurrents))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadCurrentTotalsTwoRows(t *testing.T) {
	content := header +
		"2020 01 01 00 00 00 " + zeros() + "\n" +
		"2020 01 01 00 00 01 " + zeros() + "\n"
	path := writeFile(t, "amp_itot_daily_20200101.dat", content)

	table, err := ReadCurrentTotals(path)
	if err != nil {
		t.Fatalf("ReadCurrentTotals() error: %v", err)
	}

	if table.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", table.Len())
	}
	want := []time.Time{
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 1, 1, 0, 0, 1, 0, time.UTC),
	}
	for i, w := range want {
		if !table.Times[i].Equal(w) {
			t.Errorf("Times[%d] = %v, want %v", i, table.Times[i], w)
		}
		for j, v := range table.Values[i] {
			if v != 0 {
				t.Errorf("Values[%d][%d] = %g, want 0", i, j, v)
			}
		}
	}
	if !table.IsSorted() {
		t.Error("IsSorted() = false for chronological input")
	}
}

func TestParseCurrentTotalsValuesAndWhitespace(t *testing.T) {
	var vals []string
	for i := 1; i <= NumCurrents; i++ {
		vals = append(vals, strings.Repeat(" ", i%3+1)+"1."+string(rune('0'+i%10)))
	}
	content := header +
		"2021\t3  15 12 30 45" + strings.Join(vals, "") + "\n" +
		"\n" +
		"2021 3 15 12 31 45 " + zeros() + "\n"

	table, err := ParseCurrentTotals(strings.NewReader(content), "mem")
	if err != nil {
		t.Fatalf("ParseCurrentTotals() error: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (blank line skipped)", table.Len())
	}
	if got := table.Values[0][0]; got != 1.1 {
		t.Errorf("first current = %g, want 1.1", got)
	}
	if got := table.Values[0][NumCurrents-1]; got != 1.6 {
		t.Errorf("last current = %g, want 1.6", got)
	}
	if want := time.Date(2021, 3, 15, 12, 30, 45, 0, time.UTC); !table.Times[0].Equal(want) {
		t.Errorf("Times[0] = %v, want %v", table.Times[0], want)
	}
}

func TestParseCurrentTotalsRowCount(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(header)
	base := time.Date(2019, 12, 31, 23, 58, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		sb.WriteString(ts.Format("2006 01 02 15 04 05") + " " + zeros() + "\n")
	}

	table, err := ParseCurrentTotals(strings.NewReader(sb.String()), "")
	if err != nil {
		t.Fatal(err)
	}
	if table.Len() != 5 {
		t.Errorf("Len() = %d, want 5", table.Len())
	}
	if !table.IsSorted() {
		t.Error("expected sorted timestamps across the year boundary")
	}
}

func TestParseCurrentTotalsUnsortedKeepsFileOrder(t *testing.T) {
	content := header +
		"2020 01 01 00 00 05 " + zeros() + "\n" +
		"2020 01 01 00 00 01 " + zeros() + "\n"
	table, err := ParseCurrentTotals(strings.NewReader(content), "mem")
	if err != nil {
		t.Fatal(err)
	}
	if table.IsSorted() {
		t.Error("IsSorted() = true for out-of-order input")
	}
	if table.Times[0].Second() != 5 {
		t.Error("rows were reordered")
	}
}

func TestParseCurrentTotalsErrors(t *testing.T) {
	tests := []struct {
		name string
		row  string
		line int
	}{
		{"TooFewTokens", "2020 01 01 00 00 00 1.0 2.0", 2},
		{"TooManyTokens", "2020 01 01 00 00 00 " + zeros() + " 9.9", 2},
		{"NonNumericCurrent", "2020 01 01 00 00 00 abc" + strings.Repeat(" 0", NumCurrents-1), 2},
		{"NonIntegerYear", "20x0 01 01 00 00 00 " + zeros(), 2},
		{"FractionalSecond", "2020 01 01 00 00 00.5 " + zeros(), 2},
		{"InvalidMonth", "2020 13 01 00 00 00 " + zeros(), 2},
		{"InvalidDay", "2021 02 29 00 00 00 " + zeros(), 2},
		{"InvalidSecond", "2020 01 01 00 00 60 " + zeros(), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCurrentTotals(strings.NewReader(header+tt.row+"\n"), "bad.dat")
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error = %v, want *ParseError", err)
			}
			if pe.Line != tt.line || pe.Path != "bad.dat" {
				t.Errorf("ParseError at %s:%d, want bad.dat:%d", pe.Path, pe.Line, tt.line)
			}
		})
	}
}

func TestReadCurrentTotalsNotFound(t *testing.T) {
	_, err := ReadCurrentTotals(filepath.Join(t.TempDir(), "missing.dat"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error = %v, want fs.ErrNotExist in chain", err)
	}
}

func TestReadCurrentTotalsHeaderOnly(t *testing.T) {
	table, err := ReadCurrentTotals(writeFile(t, "empty.dat", header))
	if err != nil {
		t.Fatal(err)
	}
	if table.Len() != 0 {
		t.Errorf("Len() = %d, want 0", table.Len())
	}
}

func TestReadCurrentTotalsCompressed(t *testing.T) {
	content := header + "2020 01 01 00 00 00 " + zeros() + "\n"

	var gzBuf bytes.Buffer
	gz := pgzip.NewWriter(&gzBuf)
	gz.Write([]byte(content))
	gz.Close()

	var zstBuf bytes.Buffer
	zw, err := zstd.NewWriter(&zstBuf)
	if err != nil {
		t.Fatal(err)
	}
	zw.Write([]byte(content))
	zw.Close()

	for name, data := range map[string][]byte{"day.dat.gz": gzBuf.Bytes(), "day.dat.zst": zstBuf.Bytes()} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := os.WriteFile(path, data, 0o644); err != nil {
				t.Fatal(err)
			}
			table, err := ReadCurrentTotals(path)
			if err != nil {
				t.Fatalf("ReadCurrentTotals(%s) error: %v", name, err)
			}
			if table.Len() != 1 {
				t.Errorf("Len() = %d, want 1", table.Len())
			}
		})
	}
}
