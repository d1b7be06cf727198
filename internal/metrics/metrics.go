// Package metrics is a tiny metrics facade for the import pipeline.
//
// Core packages depend only on Backend and the package-level helpers;
// concrete backends (Datadog, or a test capture) are installed once at
// startup with SetBackend. The default backend discards everything, so
// library code can emit metrics unconditionally.
package metrics

import (
	"sync/atomic"
	"time"
)

// Labels are metric tags. Backends decide how to encode them.
type Labels map[string]string

// Backend receives metric observations.
//
// Implementations must be safe for concurrent use. Flush pushes any
// buffered state; Close flushes once more and releases resources.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
	Close() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }
func (nopBackend) Close() error                             { return nil }

// backendBox gives atomic.Value a single concrete type regardless of
// which Backend implementation is installed.
type backendBox struct{ b Backend }

var current atomic.Value // backendBox

func init() {
	current.Store(backendBox{nopBackend{}})
}

// SetBackend installs b as the process-wide backend.
func SetBackend(b Backend) {
	if b == nil {
		b = nopBackend{}
	}
	current.Store(backendBox{b})
}

func backend() Backend {
	return current.Load().(backendBox).b
}

// Flush flushes the installed backend.
func Flush() error { return backend().Flush() }

// RecordRows counts processed rows by outcome kind ("imported" | "skipped").
func RecordRows(kind string, n int) {
	if n <= 0 {
		return
	}
	backend().IncCounter("import_rows_total", float64(n), Labels{"kind": kind})
}

// RecordSession counts session lifecycle events
// ("created" | "consumed" | "discarded" | "expired").
func RecordSession(status string) {
	backend().IncCounter("import_sessions_total", 1, Labels{"status": status})
}

// RecordColumnsCreated counts dynamic columns added by schema evolution.
func RecordColumnsCreated(n int) {
	if n <= 0 {
		return
	}
	backend().IncCounter("import_columns_created_total", float64(n), nil)
}

// ObserveStage records the wall-clock duration of one pipeline stage
// ("parse" | "map" | "evolve" | "import").
func ObserveStage(stage string, d time.Duration) {
	backend().ObserveHistogram("import_stage_duration_seconds", d.Seconds(), Labels{"stage": stage})
}
