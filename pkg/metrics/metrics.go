// Package metrics defines the instrumentation seam for the typing
// layer.
//
// Core packages depend only on the Backend interface; concrete
// submitters live in subpackages (see pkg/metrics/datadog). The
// default backend discards everything, so instrumentation costs
// nothing unless a caller wires a real backend in.
package metrics

// Labels carries metric dimensions as key/value pairs. A nil Labels
// is valid and means "no labels".
type Labels map[string]string

// Metric names understood by the bundled backends.
//
// Counters:
//   - MetricTablesTotal: tables constructed, label "backend".
//   - MetricInferredTotal: columns whose logical type was inferred
//     rather than declared, label "logical_type".
//   - MetricFallbacksTotal: columns stored under their backup dtype,
//     label "logical_type".
//   - MetricCastsTotal: cast operations, labels "status" (ok|error)
//     and "dtype" (target dtype).
//
// Histograms:
//   - MetricMaterializeSeconds: wall time of a materialization,
//     label "backend".
//   - MetricMaterializeRows: rows produced by a materialization.
const (
	MetricTablesTotal        = "typing_tables_total"
	MetricInferredTotal      = "typing_inferred_total"
	MetricFallbacksTotal     = "typing_fallbacks_total"
	MetricCastsTotal         = "typing_casts_total"
	MetricMaterializeSeconds = "typing_materialize_duration_seconds"
	MetricMaterializeRows    = "typing_materialize_rows"
)

// Backend receives counter increments and histogram observations.
//
// Implementations must be safe for concurrent use; they are called
// from whichever goroutine builds or materializes a table. Backends
// are free to ignore names they do not understand.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Nop returns a Backend that discards all observations.
func Nop() Backend { return nopBackend{} }

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var _ Backend = nopBackend{}
