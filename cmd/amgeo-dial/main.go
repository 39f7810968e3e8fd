// amgeo-dial - AMGeO electric potential dial plot
//
// Reads an AMGeO potential map from Parquet (one row per grid cell, see
// amgeo.MapRecord) and renders a noon-up polar dial PNG. With -geodetic the
// map's grids are first remapped from MLT to geodetic coordinates with the
// centred-dipole apex model at the map's epoch and APEX_HEIGHT_KM, and the
// dial is labelled in geographic longitude instead of local time.
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/amgeo-dial ./cmd/amgeo-dial

package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gonum.org/v1/plot/vg"

	"github.com/KI7MT/ki7mt-amgeo-apps/internal/amgeo"
	"github.com/KI7MT/ki7mt-amgeo-apps/internal/apex"
	"github.com/KI7MT/ki7mt-amgeo-apps/internal/common"
	"github.com/KI7MT/ki7mt-amgeo-apps/internal/dial"
)

var Version = "1.0.0"

func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	inFiles := flag.String("in", "", "Comma-separated potential map Parquet files (one panel each)")
	outFile := flag.String("out", "dial.png", "Output PNG")
	geodetic := flag.Bool("geodetic", false, "Remap grids to geodetic coordinates before plotting")
	width := flag.Float64("width", 0, "Image width in inches (default: 6 per panel)")
	height := flag.Float64("height", 5, "Image height in inches")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "amgeo-dial v%s — AMGeO Potential Dial Plot\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s -in map.parquet [OPTIONS]\n\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -in %s/map_20130317_1200.parquet -out dial.png\n", os.Args[0], cfg.AmgeoDataDir())
		fmt.Fprintf(os.Stderr, "  %s -in a.parquet,b.parquet -geodetic -out compare.png\n", os.Args[0])
	}
	flag.Parse()

	if *inFiles == "" {
		flag.Usage()
		os.Exit(2)
	}
	paths := strings.Split(*inFiles, ",")

	log.Println("=========================================================")
	log.Printf("amgeo-dial v%s — AMGeO Potential Dial Plot", Version)
	log.Println("=========================================================")

	conv := apex.NewDipole()
	fig := dial.NewFigure()
	for _, path := range paths {
		m, err := amgeo.ReadMapParquet(path)
		if err != nil {
			log.Fatalf("Cannot read %s: %v", path, err)
		}
		rows, cols := m.Potential.Dims()
		log.Printf("Map:   %s (%dx%d, %s)", path, rows, cols, m.Time.Format(time.DateTime))

		if *geodetic {
			geo, err := m.ToGeodeticAt(conv, cfg.ApexHeightKm)
			if err != nil {
				log.Fatalf("Geodetic remap failed at %s: %v", m.Time.Format(time.DateTime), err)
			}
			m = geo
			log.Printf("  remapped to geodetic at %.0f km", cfg.ApexHeightKm)
		}

		ax, err := dial.DrawPotentialMap(fig, m.Lat, m.Lon, m.Potential, m.Units, m.Description)
		if err != nil {
			log.Fatalf("Plot failed: %v", err)
		}
		if *geodetic {
			dial.LabelLongitudes(ax)
		}
		ax.Plot.Title.Text = m.Time.Format("2006-01-02 15:04:05 UT")
	}

	w := *width
	if w <= 0 {
		w = 6 * float64(len(fig.Panels()))
	}
	if err := fig.SavePNG(*outFile, vg.Length(w)*vg.Inch, vg.Length(*height)*vg.Inch); err != nil {
		log.Fatalf("Cannot write %s: %v", *outFile, err)
	}
	log.Printf("Wrote %s (%d panel(s), %.1fx%.1f in)", *outFile, len(fig.Panels()), w, *height)
}
