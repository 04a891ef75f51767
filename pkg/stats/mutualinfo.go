package stats

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"tabular/pkg/dtype"
	"tabular/pkg/logical"
	"tabular/pkg/table"
	"tabular/pkg/vector"
)

// defaultBins is the number of equal-width bins numeric columns are
// discretized into when the caller does not say.
const defaultBins = 10

// MIOptions configures MutualInformation.
type MIOptions struct {
	// Bins is the number of equal-width bins for numeric columns; <= 0
	// means 10.
	Bins int

	// Rows caps how many rows participate. Zero means every row; a positive
	// value below the row count samples that many rows without replacement,
	// deterministically for a given Seed.
	Rows int

	// Seed drives row sampling.
	Seed int64

	// Logger receives stage lines; nil discards them.
	Logger Logger
}

// MIPair is the normalized mutual information of one column pair. Scores
// fall in [0, 1]: zero for independent columns, one when either column
// fully determines the other.
type MIPair struct {
	ColumnA string  `json:"column_a"`
	ColumnB string  `json:"column_b"`
	Score   float64 `json:"mutual_info"`
}

// miViable lists the logical types mutual information is defined over:
// discrete types plus numerics, which discretize into bins. Free-text,
// temporal and path-like types carry no usable density.
var miViable = map[string]struct{}{
	logical.Boolean.Name:       {},
	logical.Categorical.Name:   {},
	logical.CountryCode.Name:   {},
	logical.Double.Name:        {},
	logical.Integer.Name:       {},
	logical.Ordinal.Name:       {},
	logical.PostalCode.Name:    {},
	logical.SubRegionCode.Name: {},
}

// MutualInformation computes normalized pairwise mutual information over
// the table's viable columns. Rows holding a missing value in any viable
// column are dropped before scoring. Each unordered pair appears once, in
// score-descending order; ties keep schema order. Fewer than two viable
// columns, or no surviving rows, yield an empty result.
func MutualInformation(ctx context.Context, t *table.Table, opts MIOptions) ([]MIPair, error) {
	logf := logfOrDiscard(opts.Logger)
	bins := opts.Bins
	if bins <= 0 {
		bins = defaultBins
	}
	start := time.Now()

	data, err := t.Collect(ctx)
	if err != nil {
		return nil, err
	}

	sch := t.Schema()
	var cols []discreteColumn
	for _, c := range sch.Columns() {
		if c.Name == sch.Index() {
			continue
		}
		if _, ok := miViable[c.Logical.Name]; !ok {
			continue
		}
		v, ok := data.Vector(c.Name)
		if !ok {
			return nil, fmt.Errorf("stats: column %q missing from materialized data", c.Name)
		}
		cols = append(cols, discretize(c.Name, v, bins))
	}
	if len(cols) < 2 {
		logf("stage=mutual_info skipped columns=%d", len(cols))
		return nil, nil
	}

	rows := completeRows(cols, data.Rows())
	rows = sampleRows(rows, opts.Rows, opts.Seed)
	if len(rows) == 0 {
		logf("stage=mutual_info skipped columns=%d rows=0", len(cols))
		return nil, nil
	}

	pairs := make([]MIPair, 0, len(cols)*(len(cols)-1)/2)
	for i := 0; i < len(cols); i++ {
		for j := i + 1; j < len(cols); j++ {
			pairs = append(pairs, MIPair{
				ColumnA: cols[i].name,
				ColumnB: cols[j].name,
				Score:   normalizedMI(cols[i].codes, cols[j].codes, rows),
			})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].Score > pairs[j].Score })

	logf("stage=mutual_info ok duration=%s columns=%d rows=%d pairs=%d",
		durMS(start), len(cols), len(rows), len(pairs))
	return pairs, nil
}

// discreteColumn holds one column reduced to integer codes; -1 marks a
// missing row.
type discreteColumn struct {
	name  string
	codes []int
}

// discretize maps column values onto discrete codes: numerics into
// equal-width bins over their observed range, booleans onto {0, 1}, and
// everything string-like through a value dictionary.
func discretize(name string, v vector.Vector, bins int) discreteColumn {
	codes := make([]int, v.Len())

	switch v.Kind() {
	case dtype.Int64, dtype.Int64N, dtype.Float64:
		vals := make([]float64, v.Len())
		lo, hi := math.Inf(1), math.Inf(-1)
		for i := 0; i < v.Len(); i++ {
			if v.IsNull(i) {
				codes[i] = -1
				continue
			}
			var x float64
			switch n := v.Value(i).(type) {
			case int64:
				x = float64(n)
			case float64:
				x = n
			}
			vals[i] = x
			if x < lo {
				lo = x
			}
			if x > hi {
				hi = x
			}
		}
		width := (hi - lo) / float64(bins)
		for i := 0; i < v.Len(); i++ {
			if codes[i] == -1 {
				continue
			}
			if width <= 0 {
				codes[i] = 0
				continue
			}
			b := int((vals[i] - lo) / width)
			if b >= bins {
				b = bins - 1
			}
			codes[i] = b
		}

	case dtype.Bool, dtype.BoolN:
		for i := 0; i < v.Len(); i++ {
			if v.IsNull(i) {
				codes[i] = -1
				continue
			}
			if b, _ := v.Value(i).(bool); b {
				codes[i] = 1
			}
		}

	default:
		dict := make(map[string]int)
		for i := 0; i < v.Len(); i++ {
			s, ok := v.StringAt(i)
			if !ok {
				codes[i] = -1
				continue
			}
			code, seen := dict[s]
			if !seen {
				code = len(dict)
				dict[s] = code
			}
			codes[i] = code
		}
	}
	return discreteColumn{name: name, codes: codes}
}

// completeRows returns the indices of rows with no missing value in any
// column.
func completeRows(cols []discreteColumn, nrows int) []int {
	rows := make([]int, 0, nrows)
	for r := 0; r < nrows; r++ {
		keep := true
		for _, c := range cols {
			if c.codes[r] < 0 {
				keep = false
				break
			}
		}
		if keep {
			rows = append(rows, r)
		}
	}
	return rows
}

// sampleRows picks want rows without replacement, in ascending order so
// traversal stays deterministic.
func sampleRows(rows []int, want int, seed int64) []int {
	if want <= 0 || want >= len(rows) {
		return rows
	}
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(len(rows))
	out := make([]int, 0, want)
	for _, p := range perm[:want] {
		out = append(out, rows[p])
	}
	sort.Ints(out)
	return out
}

// normalizedMI scores two code columns over the given rows: mutual
// information in bits divided by the smaller marginal entropy. A constant
// column has zero entropy and scores zero against everything.
func normalizedMI(a, b []int, rows []int) float64 {
	n := float64(len(rows))
	joint := make(map[[2]int]float64)
	ma := make(map[int]float64)
	mb := make(map[int]float64)
	for _, r := range rows {
		joint[[2]int{a[r], b[r]}]++
		ma[a[r]]++
		mb[b[r]]++
	}

	mi := 0.0
	for k, c := range joint {
		pxy := c / n
		px := ma[k[0]] / n
		py := mb[k[1]] / n
		mi += pxy * math.Log2(pxy/(px*py))
	}

	minH := math.Min(entropyBits(ma, n), entropyBits(mb, n))
	if minH == 0 {
		return 0
	}
	score := mi / minH
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func entropyBits(counts map[int]float64, n float64) float64 {
	h := 0.0
	for _, c := range counts {
		p := c / n
		h -= p * math.Log2(p)
	}
	return h
}
