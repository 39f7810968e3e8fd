// ampere-ingest - AMPERE current-totals loader
//
// Parses AMPERE "Itot" daily files (header line, then YYYY MM DD HH MM SS
// followed by 16 current totals in MA) and loads them into ClickHouse via the
// ch-go native protocol, and/or writes a single Parquet file.
//
// Files are parsed in parallel; rows are inserted in file order.
// ReplacingMergeTree(updated_at) on (time, source_file) handles re-ingest.
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/ampere-ingest ./cmd/ampere-ingest

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"syscall"
	"time"

	"github.com/ClickHouse/ch-go"
	"golang.org/x/sync/errgroup"

	"github.com/KI7MT/ki7mt-amgeo-apps/internal/ampere"
	"github.com/KI7MT/ki7mt-amgeo-apps/internal/common"
)

var Version = "1.0.0"

const batchLimit = 50000

// parsedFile is one input file after parsing.
type parsedFile struct {
	Path  string
	Table *ampere.Table
	Err   error
}

// findInputs returns the AMPERE files under dir, sorted by name.
func findInputs(dir string) ([]string, error) {
	var files []string
	for _, pattern := range []string{"*.dat", "*.dat.gz", "*.dat.zst", "*.txt"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// parseAll parses every file with at most workers goroutines. Per-file errors
// are kept in the result; only cancellation aborts the run.
func parseAll(ctx context.Context, paths []string, workers int, stats *common.Stats) ([]parsedFile, error) {
	results := make([]parsedFile, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t, err := ampere.ReadCurrentTotals(path)
			results[i] = parsedFile{Path: path, Table: t, Err: err}
			if err != nil {
				stats.FileFailed()
				return nil
			}
			if info, err := os.Stat(path); err == nil {
				stats.AddBytes(uint64(info.Size()))
			}
			stats.AddRows(uint64(t.Len()))
			stats.FileDone()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// logCoverage prints the time span and the range of the hemispheric totals.
func logCoverage(t *ampere.Table) {
	if t.Len() == 0 {
		log.Printf("Coverage: no rows")
		return
	}
	first, _ := t.Row(0)
	last, _ := t.Row(t.Len() - 1)
	log.Printf("Coverage (%s to %s):", first.Format(time.DateTime), last.Format(time.DateTime))
	if !t.IsSorted() {
		log.Printf("  WARNING: rows are not in chronological order")
	}
	for _, name := range []string{"I total up North [MA]", "I total up South [MA]"} {
		col := t.Column(name)
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, v := range col {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		log.Printf("  %-24s %.3f - %.3f MA", name, lo, hi)
	}
}

func insertAll(ctx context.Context, conn *ch.Client, tableFQN string, files []parsedFile, total int) (int, error) {
	batch := ampere.NewBatch()
	inserted := 0
	t0 := time.Now()

	flush := func() error {
		if err := ampere.FlushBatch(ctx, conn, tableFQN, batch); err != nil {
			return fmt.Errorf("insert at row %d: %w", inserted, err)
		}
		inserted += batch.Len()
		batch.Reset()
		return nil
	}

	for _, f := range files {
		if f.Err != nil {
			continue
		}
		source := filepath.Base(f.Path)
		for i := 0; i < f.Table.Len(); i++ {
			if err := ctx.Err(); err != nil {
				return inserted, err
			}
			ts, v := f.Table.Row(i)
			batch.AddRow(ts, v, source, i)
			if batch.Len() >= batchLimit {
				if err := flush(); err != nil {
					return inserted, err
				}
				rps := float64(inserted) / time.Since(t0).Seconds()
				log.Printf("  Inserted %d / %d rows (%.0f rows/sec)", inserted, total, rps)
			}
		}
	}
	if err := flush(); err != nil {
		return inserted, err
	}
	return inserted, nil
}

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	chHost := flag.String("ch-host", cfg.ClickHouseAddr(), "ClickHouse native protocol address")
	chDB := flag.String("ch-db", cfg.ClickHouseDatabase, "ClickHouse database")
	chTable := flag.String("ch-table", "current_totals", "ClickHouse table")
	inDir := flag.String("dir", cfg.AmpereDataDir(), "Input directory (used when no files are given)")
	parquetOut := flag.String("parquet", "", "Also write all rows to this Parquet file")
	workers := flag.Int("workers", runtime.NumCPU(), "Parallel parse workers")
	create := flag.Bool("create", false, "Create the ClickHouse table if missing")
	dryRun := flag.Bool("dry-run", false, "Parse only, no ClickHouse insert")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "ampere-ingest v%s — AMPERE Current Totals Loader\n\n", Version)
		fmt.Fprintf(os.Stderr, "Parses AMPERE Itot files (plain, .gz or .zst) and inserts into ClickHouse.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [FILES...]\n\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -create /data/ampere/amp_itot_daily_20130317.dat\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -dir /data/ampere -parquet /tmp/itot.parquet -dry-run\n", os.Args[0])
	}
	flag.Parse()

	log.Println("=========================================================")
	log.Printf("ampere-ingest v%s — AMPERE Current Totals Loader", Version)
	log.Println("=========================================================")

	paths := flag.Args()
	if len(paths) == 0 {
		paths, err = findInputs(*inDir)
		if err != nil {
			log.Fatalf("Cannot list %s: %v", *inDir, err)
		}
	}
	if len(paths) == 0 {
		log.Fatalf("No input files (dir: %s)", *inDir)
	}
	if *workers < 1 {
		*workers = 1
	}
	log.Printf("Files:   %d", len(paths))
	log.Printf("Workers: %d", *workers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("\nShutdown requested...")
		cancel()
	}()

	// Parse
	stats := common.NewStats()
	stats.SetSilent(cfg.Quiet())
	stats.StartReporter(5 * time.Second)
	files, err := parseAll(ctx, paths, *workers, stats)
	stats.StopReporter()
	if err != nil {
		log.Fatalf("Parse aborted: %v", err)
	}

	merged := ampere.NewTable(int(stats.Rows()))
	for _, f := range files {
		if f.Err != nil {
			var pe *ampere.ParseError
			switch {
			case errors.Is(f.Err, ampere.ErrNotFound):
				log.Printf("  MISSING %s", f.Path)
			case errors.As(f.Err, &pe):
				log.Printf("  BAD     %s: line %d: %v", filepath.Base(f.Path), pe.Line, pe.Err)
			default:
				log.Printf("  ERROR   %s: %v", f.Path, f.Err)
			}
			continue
		}
		log.Printf("  %-40s %6d rows", filepath.Base(f.Path), f.Table.Len())
		for i := 0; i < f.Table.Len(); i++ {
			merged.Append(f.Table.Row(i))
		}
	}
	log.Printf("Parsed %d rows from %d files (%d failed) in %v",
		stats.Rows(), stats.Files(), stats.FailedFiles(), stats.Elapsed().Round(time.Millisecond))
	logCoverage(merged)

	if *parquetOut != "" {
		if err := ampere.WriteParquetFile(*parquetOut, merged); err != nil {
			log.Fatalf("Parquet write failed: %v", err)
		}
		log.Printf("Wrote %s", *parquetOut)
	}

	if *dryRun {
		log.Println("Dry run — skipping ClickHouse insert")
		return
	}
	if merged.Len() == 0 {
		log.Fatal("No rows to insert")
	}

	log.Printf("Connecting to ClickHouse at %s...", *chHost)
	conn, err := ch.Dial(ctx, ch.Options{
		Address:     *chHost,
		Database:    *chDB,
		User:        cfg.ClickHouseUser,
		Password:    cfg.ClickHousePassword,
		Compression: ch.CompressionLZ4,
	})
	if err != nil {
		log.Fatalf("ClickHouse connection failed: %v", err)
	}
	defer conn.Close()

	tableFQN := fmt.Sprintf("%s.%s", *chDB, *chTable)
	log.Printf("Table: %s", tableFQN)
	if *create {
		if err := ampere.CreateTable(ctx, conn, tableFQN); err != nil {
			log.Fatalf("Create table failed: %v", err)
		}
	}

	t0 := time.Now()
	inserted, err := insertAll(ctx, conn, tableFQN, files, merged.Len())
	if err != nil {
		log.Fatalf("Insert failed after %d rows: %v", inserted, err)
	}
	elapsed := time.Since(t0)

	log.Println()
	log.Println("=========================================================")
	log.Println("Ingest Complete")
	log.Println("=========================================================")
	log.Printf("Files:   %d (%d failed)", stats.Files(), stats.FailedFiles())
	log.Printf("Rows:    %d", inserted)
	log.Printf("Input:   %.2f MB", float64(stats.Bytes())/(1024*1024))
	log.Printf("Elapsed: %v", elapsed.Round(time.Millisecond))
	log.Printf("Rate:    %.0f rows/sec", float64(inserted)/elapsed.Seconds())
	log.Println("=========================================================")

	if stats.FailedFiles() > 0 {
		os.Exit(1)
	}
}
