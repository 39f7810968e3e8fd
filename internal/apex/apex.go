// Package apex converts between geodetic, magnetic apex and magnetic local
// time coordinates.
//
// The Converter interface is what the AMGeO remapping code depends on; Dipole
// is a self-contained centred-dipole implementation of it. A full apex model
// (IGRF to high degree, field-line tracing) can be plugged in behind the same
// interface.
package apex

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
)

// System names a coordinate system accepted by Converter.Convert.
type System string

const (
	Geo  System = "geo"  // geodetic latitude, geographic longitude
	Apex System = "apex" // modified apex latitude and longitude
	QD   System = "qd"   // quasi-dipole; identical to Apex for a dipole field
	MLT  System = "mlt"  // apex latitude, magnetic local time in hours
)

// Valid reports whether s is a known system.
func (s System) Valid() bool {
	switch s {
	case Geo, Apex, QD, MLT:
		return true
	}
	return false
}

// Converter transforms a grid of coordinate pairs between systems. lat and
// lon must share a shape; the two outputs have the same shape. For MLT the
// second coordinate is magnetic local time in hours, otherwise degrees.
type Converter interface {
	Convert(lat, lon *mat.Dense, from, to System, epoch time.Time, heightKm float64) (*mat.Dense, *mat.Dense, error)
}

// DomainError is returned for epochs outside the model's validity range.
type DomainError struct {
	Epoch    time.Time
	Min, Max float64 // decimal years
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("epoch %s (%.3f) outside model range [%.0f, %.0f]",
		e.Epoch.Format(time.RFC3339), DecimalYear(e.Epoch), e.Min, e.Max)
}

// UnknownSystemError is returned for a System outside Geo, Apex, QD, MLT.
type UnknownSystemError struct {
	System System
}

func (e *UnknownSystemError) Error() string {
	return fmt.Sprintf("unknown coordinate system %q", string(e.System))
}

// HeightError is returned for a negative or NaN conversion height.
type HeightError struct {
	HeightKm float64
}

func (e *HeightError) Error() string {
	return fmt.Sprintf("invalid height %g km", e.HeightKm)
}

// DecimalYear returns t as a fractional year, e.g. 2020.5 for early July.
func DecimalYear(t time.Time) float64 {
	t = t.UTC()
	start := time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	return float64(t.Year()) + t.Sub(start).Seconds()/end.Sub(start).Seconds()
}
