package stats

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"tabular/pkg/dtype"
	"tabular/pkg/logical"
	"tabular/pkg/schema"
	"tabular/pkg/table"
	"tabular/pkg/vector"
)

// DescribeOptions configures Describe.
type DescribeOptions struct {
	// Include restricts the report to columns matching any entry: a column
	// name, a logical type name, or a semantic tag. Empty keeps every
	// column.
	Include []string

	// Logger receives stage lines; nil discards them.
	Logger Logger
}

// NumericStats summarizes a numeric column's non-missing values. Quartiles
// use the nearest-rank method; Std is the sample standard deviation and is
// zero for fewer than two values.
type NumericStats struct {
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Q1     float64 `json:"first_quartile"`
	Median float64 `json:"second_quartile"`
	Q3     float64 `json:"third_quartile"`
	Max    float64 `json:"max"`
}

// BooleanStats counts a boolean column's non-missing values.
type BooleanStats struct {
	NumTrue  int `json:"num_true"`
	NumFalse int `json:"num_false"`
}

// DatetimeStats bounds a datetime column's non-missing values.
type DatetimeStats struct {
	Min time.Time `json:"min"`
	Max time.Time `json:"max"`
}

// ColumnStats is one column's summary. Count is the number of non-missing
// rows. Mode is the most frequent value's string form, smallest value first
// on ties, empty when the column has no values. Exactly one of the typed
// sections is set, keyed off the column's physical representation; a column
// that landed on a string-like fallback gets none.
type ColumnStats struct {
	Column       string   `json:"column"`
	LogicalType  string   `json:"logical_type"`
	PhysicalType string   `json:"physical_type"`
	SemanticTags []string `json:"semantic_tags,omitempty"`

	Count   int    `json:"count"`
	Nulls   int    `json:"nulls"`
	Nunique int    `json:"nunique"`
	Mode    string `json:"mode,omitempty"`

	Numeric  *NumericStats  `json:"numeric,omitempty"`
	Boolean  *BooleanStats  `json:"boolean,omitempty"`
	Datetime *DatetimeStats `json:"datetime,omitempty"`
}

// Describe summarizes every column except the index, in schema order.
// Materialization errors from the backend pass through unchanged.
func Describe(ctx context.Context, t *table.Table, opts DescribeOptions) ([]ColumnStats, error) {
	logf := logfOrDiscard(opts.Logger)
	start := time.Now()

	data, err := t.Collect(ctx)
	if err != nil {
		return nil, err
	}

	sch := t.Schema()
	out := make([]ColumnStats, 0, sch.NumColumns())
	for _, c := range sch.Columns() {
		if c.Name == sch.Index() {
			continue
		}
		if !included(c, opts.Include) {
			continue
		}
		v, ok := data.Vector(c.Name)
		if !ok {
			return nil, fmt.Errorf("stats: column %q missing from materialized data", c.Name)
		}
		out = append(out, describeColumn(c, v))
	}
	logf("stage=describe ok duration=%s columns=%d rows=%d", durMS(start), len(out), data.Rows())
	return out, nil
}

func included(c schema.Column, include []string) bool {
	if len(include) == 0 {
		return true
	}
	for _, term := range include {
		if term == c.Name {
			return true
		}
		if lt, err := logical.Lookup(term); err == nil && lt.Name == c.Logical.Name {
			return true
		}
		if c.Tags.Has(term) {
			return true
		}
	}
	return false
}

func describeColumn(c schema.Column, v vector.Vector) ColumnStats {
	cs := ColumnStats{
		Column:       c.Name,
		LogicalType:  c.Logical.Name,
		PhysicalType: c.Physical.String(),
		SemanticTags: c.Tags.List(),
	}

	freq := make(map[string]int)
	for i := 0; i < v.Len(); i++ {
		if v.IsNull(i) {
			cs.Nulls++
			continue
		}
		cs.Count++
		if s, ok := v.StringAt(i); ok {
			freq[s]++
		}
	}
	cs.Nunique = len(freq)
	cs.Mode = modeOf(freq)

	switch v.Kind() {
	case dtype.Int64, dtype.Int64N, dtype.Float64:
		cs.Numeric = numericStats(v)
	case dtype.Bool, dtype.BoolN:
		cs.Boolean = booleanStats(v)
	case dtype.Datetime:
		cs.Datetime = datetimeStats(v)
	}
	return cs
}

func modeOf(freq map[string]int) string {
	mode, best := "", 0
	for s, n := range freq {
		if n > best || (n == best && s < mode) {
			mode, best = s, n
		}
	}
	return mode
}

func numericStats(v vector.Vector) *NumericStats {
	var vals []float64
	for i := 0; i < v.Len(); i++ {
		if v.IsNull(i) {
			continue
		}
		switch x := v.Value(i).(type) {
		case int64:
			vals = append(vals, float64(x))
		case float64:
			vals = append(vals, x)
		}
	}
	if len(vals) == 0 {
		return nil
	}
	sort.Float64s(vals)

	sum := 0.0
	for _, x := range vals {
		sum += x
	}
	mean := sum / float64(len(vals))

	std := 0.0
	if len(vals) > 1 {
		ss := 0.0
		for _, x := range vals {
			d := x - mean
			ss += d * d
		}
		std = math.Sqrt(ss / float64(len(vals)-1))
	}

	return &NumericStats{
		Mean:   mean,
		Std:    std,
		Min:    vals[0],
		Q1:     percentileNearestRank(vals, 0.25),
		Median: percentileNearestRank(vals, 0.5),
		Q3:     percentileNearestRank(vals, 0.75),
		Max:    vals[len(vals)-1],
	}
}

func booleanStats(v vector.Vector) *BooleanStats {
	bs := &BooleanStats{}
	for i := 0; i < v.Len(); i++ {
		if v.IsNull(i) {
			continue
		}
		if b, ok := v.Value(i).(bool); ok {
			if b {
				bs.NumTrue++
			} else {
				bs.NumFalse++
			}
		}
	}
	return bs
}

func datetimeStats(v vector.Vector) *DatetimeStats {
	var ds *DatetimeStats
	for i := 0; i < v.Len(); i++ {
		if v.IsNull(i) {
			continue
		}
		ts, ok := v.Value(i).(time.Time)
		if !ok {
			continue
		}
		if ds == nil {
			ds = &DatetimeStats{Min: ts, Max: ts}
			continue
		}
		if ts.Before(ds.Min) {
			ds.Min = ts
		}
		if ts.After(ds.Max) {
			ds.Max = ts
		}
	}
	return ds
}
