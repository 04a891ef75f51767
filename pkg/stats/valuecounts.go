package stats

import (
	"context"
	"fmt"
	"sort"

	"tabular/pkg/logical"
	"tabular/pkg/table"
)

// defaultTopN bounds a frequency table when the caller does not say.
const defaultTopN = 10

// ValueCount is one value's frequency.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ColumnValueCounts is the frequency table of one column.
type ColumnValueCounts struct {
	Column string       `json:"column"`
	Counts []ValueCount `json:"counts"`
}

// ValueCounts builds frequency tables for every column carrying the category
// tag, in schema order. Each table holds the topN most frequent values
// (topN <= 0 means 10), ordered by count descending then value ascending.
// Missing rows are not counted. The index column never carries the category
// tag, so it is naturally excluded.
func ValueCounts(ctx context.Context, t *table.Table, topN int) ([]ColumnValueCounts, error) {
	if topN <= 0 {
		topN = defaultTopN
	}

	data, err := t.Collect(ctx)
	if err != nil {
		return nil, err
	}

	var out []ColumnValueCounts
	for _, c := range t.Schema().Columns() {
		if !c.Tags.Has(logical.TagCategory) {
			continue
		}
		v, ok := data.Vector(c.Name)
		if !ok {
			return nil, fmt.Errorf("stats: column %q missing from materialized data", c.Name)
		}

		freq := make(map[string]int)
		for i := 0; i < v.Len(); i++ {
			if v.IsNull(i) {
				continue
			}
			if s, ok := v.StringAt(i); ok {
				freq[s]++
			}
		}

		counts := make([]ValueCount, 0, len(freq))
		for val, n := range freq {
			counts = append(counts, ValueCount{Value: val, Count: n})
		}
		sort.Slice(counts, func(i, j int) bool {
			if counts[i].Count != counts[j].Count {
				return counts[i].Count > counts[j].Count
			}
			return counts[i].Value < counts[j].Value
		})
		if len(counts) > topN {
			counts = counts[:topN]
		}
		out = append(out, ColumnValueCounts{Column: c.Name, Counts: counts})
	}
	return out, nil
}
