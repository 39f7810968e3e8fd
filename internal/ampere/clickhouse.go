package ampere

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/ch-go"
	"github.com/ClickHouse/ch-go/proto"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Batch holds columnar data for a native ClickHouse insert.
// Matches schema: (time, <ColumnKeys...>, source_file, row_index)
type Batch struct {
	Time       *proto.ColDateTime
	Currents   [NumCurrents]*proto.ColFloat64
	SourceFile *proto.ColStr
	RowIndex   *proto.ColUInt32 // zero-based row position within the source file
}

// NewBatch allocates empty columns.
func NewBatch() *Batch {
	b := &Batch{
		Time:       new(proto.ColDateTime),
		SourceFile: new(proto.ColStr),
		RowIndex:   new(proto.ColUInt32),
	}
	for i := range b.Currents {
		b.Currents[i] = new(proto.ColFloat64)
	}
	return b
}

// Reset clears all columns for reuse.
func (b *Batch) Reset() {
	b.Time.Reset()
	for _, c := range b.Currents {
		c.Reset()
	}
	b.SourceFile.Reset()
	b.RowIndex.Reset()
}

// Len returns the number of buffered rows.
func (b *Batch) Len() int {
	return b.Time.Rows()
}

// Input returns the ch-go input blocks in insert column order.
func (b *Batch) Input() proto.Input {
	input := proto.Input{{Name: "time", Data: b.Time}}
	for i, c := range b.Currents {
		input = append(input, proto.InputColumn{Name: ColumnKeys[i], Data: c})
	}
	return append(input,
		proto.InputColumn{Name: "source_file", Data: b.SourceFile},
		proto.InputColumn{Name: "row_index", Data: b.RowIndex},
	)
}

// AddRow appends one row. rowIndex is the row's position in sourceFile and
// keeps rows with repeated timestamps distinct in the table key.
func (b *Batch) AddRow(ts time.Time, v Currents, sourceFile string, rowIndex int) {
	b.Time.Append(ts)
	for i, c := range b.Currents {
		c.Append(v[i])
	}
	b.SourceFile.Append(sourceFile)
	b.RowIndex.Append(uint32(rowIndex))
}

// AddTable appends every row of t.
func (b *Batch) AddTable(t *Table, sourceFile string) {
	for i := range t.Times {
		b.AddRow(t.Times[i], t.Values[i], sourceFile, i)
	}
}

func columnList() string {
	cols := make([]string, 0, NumCurrents+2)
	cols = append(cols, "time")
	cols = append(cols, ColumnKeys[:]...)
	return strings.Join(cols, ", ")
}

// InsertQuery returns the INSERT statement for the batch columns.
func InsertQuery(tableFQN string) string {
	return fmt.Sprintf("INSERT INTO %s (%s, source_file, row_index) VALUES", tableFQN, columnList())
}

// CreateTableSQL returns DDL for a current-totals table. Rows are keyed by
// (time, source_file, row_index), so repeated timestamps within a file are
// all kept and re-ingesting the same file replaces its rows.
func CreateTableSQL(tableFQN string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE TABLE IF NOT EXISTS %s (\n", tableFQN)
	sb.WriteString("    time DateTime('UTC'),\n")
	for _, k := range ColumnKeys {
		fmt.Fprintf(&sb, "    %s Float64,\n", k)
	}
	sb.WriteString("    source_file LowCardinality(String),\n")
	sb.WriteString("    row_index UInt32,\n")
	sb.WriteString("    updated_at DateTime DEFAULT now()\n")
	sb.WriteString(") ENGINE = ReplacingMergeTree(updated_at)\n")
	sb.WriteString("ORDER BY (time, source_file, row_index)")
	return sb.String()
}

// CreateTable runs CreateTableSQL over a native connection.
func CreateTable(ctx context.Context, conn *ch.Client, tableFQN string) error {
	return conn.Do(ctx, ch.Query{Body: CreateTableSQL(tableFQN)})
}

// FlushBatch inserts the batch. An empty batch is a no-op.
func FlushBatch(ctx context.Context, conn *ch.Client, tableFQN string, batch *Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	return conn.Do(ctx, ch.Query{
		Body:  InsertQuery(tableFQN),
		Input: batch.Input(),
	})
}

// SelectQuery returns the range query used by QueryCurrentTotals. FINAL
// hides rows replaced by a re-ingest that have not been merged yet.
func SelectQuery(tableFQN string) string {
	return fmt.Sprintf("SELECT %s FROM %s FINAL WHERE time >= ? AND time < ? ORDER BY time, source_file, row_index",
		columnList(), tableFQN)
}

// QueryCurrentTotals reads rows with start <= time < end, ordered by time.
func QueryCurrentTotals(ctx context.Context, conn driver.Conn, tableFQN string, start, end time.Time) (*Table, error) {
	rows, err := conn.Query(ctx, SelectQuery(tableFQN), start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", tableFQN, err)
	}
	defer rows.Close()

	table, err := scanCurrentTotals(rows)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", tableFQN, err)
	}
	return table, nil
}

// rowScanner is the part of driver.Rows used to build a Table.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanCurrentTotals reads (time, currents...) rows in SelectQuery column order.
func scanCurrentTotals(rows rowScanner) (*Table, error) {
	table := NewTable(0)
	var ts time.Time
	var v Currents
	dest := make([]any, 0, NumCurrents+1)
	dest = append(dest, &ts)
	for i := range v {
		dest = append(dest, &v[i])
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		table.Append(ts.UTC(), v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return table, nil
}
