package ampere

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
)

// ErrNotFound is returned when a current-totals file does not exist.
// Errors wrapping it also satisfy errors.Is(err, fs.ErrNotExist).
var ErrNotFound = errors.New("current totals file not found")

// ParseError describes a malformed data row.
type ParseError struct {
	Path string // file name or "<reader>"
	Line int    // 1-based line number, header included
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Open opens a current-totals file, transparently decompressing ".gz"
// (parallel gzip) and ".zst" files.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		gz, err := pgzip.NewReader(bufio.NewReaderSize(f, 1<<20))
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gzip open %s: %w", path, err)
		}
		return &stackedCloser{Reader: gz, closers: []func() error{gz.Close, f.Close}}, nil
	case ".zst":
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("zstd open %s: %w", path, err)
		}
		closeDec := func() error { dec.Close(); return nil }
		return &stackedCloser{Reader: dec, closers: []func() error{closeDec, f.Close}}, nil
	}
	return f, nil
}

// stackedCloser closes a decoder and then the file underneath it.
type stackedCloser struct {
	io.Reader
	closers []func() error
}

func (s *stackedCloser) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ReadCurrentTotals reads an AMPERE current-totals file into a Table.
//
// The first line is a header and is discarded. Every other non-blank line
// must hold 22 whitespace-separated tokens:
//
//	YYYY MM DD HH MM SS v1 .. v16
//
// The first six tokens form a civil timestamp (UTC, whole seconds) and the
// remaining sixteen are currents in mega-amperes, ordered as ColumnNames.
func ReadCurrentTotals(path string) (*Table, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return ParseCurrentTotals(rc, filepath.Base(path))
}

// LoadTable reads a table from a parquet file written by WriteParquet or
// from a current-totals file, chosen by the ".parquet" extension.
func LoadTable(path string) (*Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		return ReadParquet(path)
	}
	return ReadCurrentTotals(path)
}

// ParseCurrentTotals parses current-totals data from a reader. name is
// used only in error messages.
func ParseCurrentTotals(r io.Reader, name string) (*Table, error) {
	if name == "" {
		name = "<reader>"
	}

	scanner := bufio.NewScanner(r)
	table := NewTable(1440) // one day at 1-minute cadence
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		if lineNo == 1 {
			continue // header
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		ts, currents, err := parseRow(fields)
		if err != nil {
			return nil, &ParseError{Path: name, Line: lineNo, Err: err}
		}
		table.Append(ts, currents)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return table, nil
}

// timeFieldNames label the leading tokens in error messages.
var timeFieldNames = [NumTimeFields]string{"year", "month", "day", "hour", "minute", "second"}

func parseRow(fields []string) (time.Time, Currents, error) {
	var currents Currents

	if len(fields) != NumTokens {
		return time.Time{}, currents, fmt.Errorf("got %d tokens, want %d", len(fields), NumTokens)
	}

	var parts [NumTimeFields]int
	for i := 0; i < NumTimeFields; i++ {
		v, err := strconv.Atoi(fields[i])
		if err != nil {
			return time.Time{}, currents, fmt.Errorf("invalid %s %q: %w", timeFieldNames[i], fields[i], err)
		}
		parts[i] = v
	}

	ts, err := civilTime(parts)
	if err != nil {
		return time.Time{}, currents, err
	}

	for i := 0; i < NumCurrents; i++ {
		v, err := strconv.ParseFloat(fields[NumTimeFields+i], 64)
		if err != nil {
			return time.Time{}, currents, fmt.Errorf("invalid %s %q: %w", ColumnNames[i], fields[NumTimeFields+i], err)
		}
		currents[i] = v
	}

	return ts, currents, nil
}

// civilTime builds a UTC timestamp, rejecting components that time.Date
// would silently normalise (month 13, Feb 30, second 60, ...).
func civilTime(p [NumTimeFields]int) (time.Time, error) {
	ts := time.Date(p[0], time.Month(p[1]), p[2], p[3], p[4], p[5], 0, time.UTC)
	if ts.Year() != p[0] || int(ts.Month()) != p[1] || ts.Day() != p[2] ||
		ts.Hour() != p[3] || ts.Minute() != p[4] || ts.Second() != p[5] {
		return time.Time{}, fmt.Errorf("invalid date/time %04d-%02d-%02d %02d:%02d:%02d",
			p[0], p[1], p[2], p[3], p[4], p[5])
	}
	return ts, nil
}
