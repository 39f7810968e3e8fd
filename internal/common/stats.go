package common

import (
	"log"
	"sync/atomic"
	"time"
)

// Stats holds atomic counters for ingest telemetry.
type Stats struct {
	rows        atomic.Uint64
	bytes       atomic.Uint64
	files       atomic.Uint64
	failedFiles atomic.Uint64

	start    time.Time // fixed at construction
	interval time.Duration
	running  atomic.Bool
	stopCh   chan struct{}
	silent   bool
}

// NewStats creates a Stats instance whose clock starts now.
func NewStats() *Stats {
	return &Stats{
		start:    time.Now(),
		interval: time.Second,
		stopCh:   make(chan struct{}),
	}
}

// AddRows atomically increments the rows counter.
func (s *Stats) AddRows(n uint64) { s.rows.Add(n) }

// AddBytes atomically increments the bytes-read counter.
func (s *Stats) AddBytes(n uint64) { s.bytes.Add(n) }

// FileDone records one completed file.
func (s *Stats) FileDone() { s.files.Add(1) }

// FileFailed records one file that could not be loaded.
func (s *Stats) FileFailed() { s.failedFiles.Add(1) }

// Rows returns the total rows processed.
func (s *Stats) Rows() uint64 { return s.rows.Load() }

// Bytes returns the total bytes read.
func (s *Stats) Bytes() uint64 { return s.bytes.Load() }

// Files returns the number of completed files.
func (s *Stats) Files() uint64 { return s.files.Load() }

// FailedFiles returns the number of failed files.
func (s *Stats) FailedFiles() uint64 { return s.failedFiles.Load() }

// Elapsed returns the time since the stats were created.
func (s *Stats) Elapsed() time.Duration { return time.Since(s.start) }

// RowsPerSecond returns the average row rate since start.
func (s *Stats) RowsPerSecond() float64 {
	secs := s.Elapsed().Seconds()
	if secs < 0.001 {
		return 0
	}
	return float64(s.Rows()) / secs
}

// SetSilent enables or disables the progress reporter output.
func (s *Stats) SetSilent(silent bool) { s.silent = silent }

// StartReporter prints progress every interval until StopReporter is called.
func (s *Stats) StartReporter(interval time.Duration) {
	if s.running.Load() {
		return
	}
	if interval > 0 {
		s.interval = interval
	}
	s.running.Store(true)
	go s.reporterLoop()
}

// StopReporter stops the background reporter goroutine.
func (s *Stats) StopReporter() {
	if !s.running.Load() {
		return
	}
	s.running.Store(false)
	close(s.stopCh)
}

func (s *Stats) reporterLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if !s.silent {
				log.Printf("[Progress] Files: %d (%d failed) | Rows: %d | %.0f rows/sec",
					s.Files(), s.FailedFiles(), s.Rows(), s.RowsPerSecond())
			}
		}
	}
}
