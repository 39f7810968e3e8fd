// amgeo-remap - AMGeO grid to geodetic coordinates for stored epochs
//
// Reads the AMPERE current totals in [start, end) from ClickHouse
// (clickhouse-go/v2) or from a local file (-ampere, .dat or .parquet), picks
// the epochs to remap from their timestamps, converts the 24x37 AMGeO MLT
// grid to geodetic latitude and longitude at each epoch with the
// centred-dipole apex model, and writes the grids to Parquet (one row per
// epoch and cell, see amgeo.GridRecord).
//
// With -at the requested times are snapped to the nearest AMPERE epoch when
// -ampere is given, and used as-is otherwise (no ClickHouse).
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/amgeo-remap ./cmd/amgeo-remap

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
	"strings"
	"syscall"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"golang.org/x/sync/errgroup"

	"github.com/KI7MT/ki7mt-amgeo-apps/internal/amgeo"
	"github.com/KI7MT/ki7mt-amgeo-apps/internal/ampere"
	"github.com/KI7MT/ki7mt-amgeo-apps/internal/apex"
	"github.com/KI7MT/ki7mt-amgeo-apps/internal/common"
)

var Version = "1.0.0"

const timeLayout = "2006-01-02T15:04:05"

func parseTimes(s string) ([]time.Time, error) {
	var out []time.Time
	for _, f := range strings.Split(s, ",") {
		t, err := time.Parse(timeLayout, strings.TrimSpace(f))
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func queryCurrentTotals(ctx context.Context, addr string, cfg *common.Config, db, table string, start, end time.Time) (*ampere.Table, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: db,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}

	return ampere.QueryCurrentTotals(ctx, conn, fmt.Sprintf("%s.%s", db, table), start, end)
}

func parseRange(startStr, endStr string) (start, end time.Time, err error) {
	if start, err = time.Parse(timeLayout, startStr); err != nil {
		return start, end, fmt.Errorf("invalid start time: %w", err)
	}
	if end, err = time.Parse(timeLayout, endStr); err != nil {
		return start, end, fmt.Errorf("invalid end time: %w", err)
	}
	return start, end, nil
}

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	chHost := flag.String("ch-host", cfg.ClickHouseAddr(), "ClickHouse native protocol address")
	chDB := flag.String("ch-db", cfg.ClickHouseDatabase, "ClickHouse database")
	chTable := flag.String("ch-table", "current_totals", "ClickHouse table holding the epochs")
	startStr := flag.String("start", "", "Start time ("+timeLayout+")")
	endStr := flag.String("end", "", "End time, exclusive ("+timeLayout+")")
	every := flag.Duration("every", 10*time.Minute, "Keep one epoch per interval (0 keeps all)")
	atStr := flag.String("at", "", "Comma-separated epochs ("+timeLayout+"), skips ClickHouse")
	ampereFile := flag.String("ampere", "", "Read AMPERE current totals from a .dat or .parquet file instead of ClickHouse")
	height := flag.Float64("height", cfg.ApexHeightKm, "Conversion height in km")
	outFile := flag.String("out", "amgeo_geodetic.parquet", "Output Parquet file")
	workers := flag.Int("workers", 4, "Parallel conversions")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "amgeo-remap v%s — AMGeO Grid Geodetic Remap\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -start 2013-03-17T00:00:00 -end 2013-03-18T00:00:00 -every 1h\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -at 2013-03-17T12:00:00,2013-03-17T18:00:00 -out storm.parquet\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -ampere %s/20130317.itot.parquet -at 2013-03-17T12:00:00\n", os.Args[0], cfg.AmpereDataDir())
	}
	flag.Parse()

	log.Println("=========================================================")
	log.Printf("amgeo-remap v%s — AMGeO Grid Geodetic Remap", Version)
	log.Println("=========================================================")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("\nShutdown requested...")
		cancel()
	}()

	var table *ampere.Table
	switch {
	case *ampereFile != "":
		if table, err = ampere.LoadTable(*ampereFile); err != nil {
			log.Fatalf("Cannot read %s: %v", *ampereFile, err)
		}
		if *startStr != "" || *endStr != "" {
			start, end, err := parseRange(*startStr, *endStr)
			if err != nil {
				log.Fatal(err)
			}
			table = table.Slice(start, end)
		}
		log.Printf("AMPERE: %s (%d rows)", *ampereFile, table.Len())
	case *atStr == "":
		start, end, err := parseRange(*startStr, *endStr)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("Querying current totals from %s (%s.%s)...", *chHost, *chDB, *chTable)
		if table, err = queryCurrentTotals(ctx, *chHost, cfg, *chDB, *chTable, start, end); err != nil {
			log.Fatalf("ClickHouse query failed: %v", err)
		}
		log.Printf("AMPERE: %d rows", table.Len())
	}

	var epochs []time.Time
	switch {
	case *atStr != "":
		if epochs, err = parseTimes(*atStr); err != nil {
			log.Fatalf("Invalid -at: %v", err)
		}
		if table != nil {
			epochs = table.NearestTimes(epochs)
		}
	default:
		epochs = table.Epochs(*every)
	}
	if len(epochs) == 0 {
		log.Fatal("No epochs to convert")
	}
	log.Printf("Epochs: %d (%s to %s)", len(epochs),
		epochs[0].Format(time.DateTime), epochs[len(epochs)-1].Format(time.DateTime))
	log.Printf("Height: %.0f km", *height)

	conv := apex.NewDipole()
	latBins, lonBins := amgeo.DefaultLatBins(), amgeo.DefaultLonBins()
	grids := make([]*amgeo.GeodeticGrid, len(epochs))

	t0 := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(*workers, 1))
	for i, at := range epochs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			grid, err := amgeo.NewGeodeticGrid(conv, latBins, lonBins, at, *height)
			if err != nil {
				return fmt.Errorf("%s: %w", at.Format(time.DateTime), err)
			}
			grids[i] = grid
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var de *apex.DomainError
		if errors.As(err, &de) {
			log.Fatalf("Epoch outside model range %.0f-%.0f: %v", de.Min, de.Max, err)
		}
		log.Fatalf("Conversion failed: %v", err)
	}

	invalid := 0
	for _, grid := range grids {
		r, c := grid.GeoLat.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				if math.IsNaN(grid.GeoLat.At(i, j)) {
					invalid++
				}
			}
		}
	}

	if err := amgeo.WriteGridParquetFile(*outFile, grids); err != nil {
		log.Fatalf("Cannot write %s: %v", *outFile, err)
	}

	log.Println()
	log.Println("=========================================================")
	log.Println("Remap Complete")
	log.Println("=========================================================")
	log.Printf("Epochs:  %d", len(grids))
	log.Printf("Cells:   %d (%d without apex mapping)", len(grids)*amgeo.NumLat*amgeo.NumLon, invalid)
	log.Printf("Elapsed: %v", time.Since(t0).Round(time.Millisecond))
	log.Printf("Output:  %s", *outFile)
	log.Println("=========================================================")
}
