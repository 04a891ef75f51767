// Package stats computes descriptive statistics over typed tables: per-column
// summaries, frequency tables for category-tagged columns, and pairwise
// mutual information. Every entry point forces materialization through the
// table's Collect, so on a deferred backend the cost is a full load and the
// call blocks until the backend finishes. The index column never participates.
package stats

import (
	"log"
	"time"
)

// Logger is the minimal logging interface used by this package.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

func logfOrDiscard(l Logger) func(format string, v ...any) {
	if l == nil {
		d := log.New(discardWriter{}, "", 0)
		return d.Printf
	}
	return l.Printf
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (n int, err error) { return len(p), nil }

func durMS(start time.Time) time.Duration { return time.Since(start).Truncate(time.Millisecond) }

// percentileNearestRank returns the pth percentile (0 < p <= 1) of an
// ascending-sorted sample using the nearest-rank method.
func percentileNearestRank(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}
