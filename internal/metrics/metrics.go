// Package metrics is the backend-agnostic metrics facade.
//
// Callers record through the package-level helpers; the process picks a
// backend once at startup with SetBackend. The default backend drops
// everything, so libraries can record unconditionally.
package metrics

import "sync"

// Labels are metric dimensions, e.g. {"status": "ok"}.
type Labels map[string]string

// Backend receives metric observations.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

// Metric names recorded by this module.
const (
	SheetsTotal             = "sheetintake_sheets_total"
	ColumnsTotal            = "sheetintake_columns_total"
	InferenceDuration       = "sheetintake_inference_duration_seconds"
	QualityScore            = "sheetintake_quality_score"
	RowsLoadedTotal         = "sheetintake_rows_loaded_total"
	HTTPRequestsTotal       = "sheetintake_http_requests_total"
	HTTPRequestDurationSecs = "sheetintake_http_request_duration_seconds"
)

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

// Nop is a Backend that discards everything.
var Nop Backend = nopBackend{}

var (
	mu      sync.RWMutex
	backend Backend = Nop
)

// SetBackend installs b as the process-wide backend. A nil b restores Nop.
func SetBackend(b Backend) {
	if b == nil {
		b = Nop
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to the named counter.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample for the named histogram.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush pushes buffered observations to the backend's sink.
func Flush() error {
	return current().Flush()
}
