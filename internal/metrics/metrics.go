// Package metrics is the process-wide metrics facade.
//
// Code that wants to report something calls the Record* helpers; which
// backend (if any) receives the data is decided once at startup with
// SetBackend. The default backend discards everything, so library code and
// tests never need to configure metrics.
package metrics

import (
	"sync"
	"time"
)

// Metric names understood by backends.
const (
	StepTotal           = "busser_step_total"
	StepDurationSeconds = "busser_step_duration_seconds"
	RowsTotal           = "busser_rows_total"
	CellsTotal          = "busser_cells_total"
	PagesTotal          = "busser_pages_total"
)

// Labels are dimension values attached to one observation.
type Labels map[string]string

// Backend receives observations.
//
// Implementations must be safe for concurrent use. Unknown metric names are
// ignored.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process backend. A nil b restores the
// discarding default.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush asks the current backend to submit buffered data.
func Flush() error { return current().Flush() }

// RecordStep counts one run of a named step and observes its duration.
// status is "ok" or "error" depending on err.
func RecordStep(step string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	l := Labels{"step": step, "status": status}
	b := current()
	b.IncCounter(StepTotal, 1, l)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), l)
}

// RecordRows counts n rows. kind is "scanned" or "written".
func RecordRows(kind string, n int) {
	if n <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(n), Labels{"kind": kind})
}

// RecordCells counts n classified field values.
func RecordCells(n int) {
	if n <= 0 {
		return
	}
	current().IncCounter(CellsTotal, float64(n), nil)
}

// RecordPage counts one finished output page of the given format.
func RecordPage(format string) {
	current().IncCounter(PagesTotal, 1, Labels{"format": format})
}
