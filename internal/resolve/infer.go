package resolve

import (
	"strconv"
	"strings"

	"tabular/pkg/dtype"
	"tabular/pkg/logical"
	"tabular/pkg/vector"
)

const (
	// categoricalDistinctRatio is the distinct/total ratio at or below which
	// a text column is treated as a set of repeated labels.
	categoricalDistinctRatio = 0.2
	// naturalLanguageMinAvgLen is the mean value length above which a
	// non-categorical text column is treated as free text.
	naturalLanguageMinAvgLen = 10.0
	// distinctCap bounds the distinct-value set tracked per column.
	distinctCap = 10000
)

// InferType infers a logical type from sample data. Typed representations
// resolve directly; string-like samples are inferred from their values.
func InferType(v vector.Vector) logical.Type {
	switch v.Kind() {
	case dtype.Bool, dtype.BoolN:
		return logical.Boolean
	case dtype.Int64, dtype.Int64N:
		return logical.Integer
	case dtype.Float64:
		return logical.Double
	case dtype.Datetime:
		return logical.Datetime
	case dtype.Timedelta:
		return logical.Timedelta
	case dtype.Category:
		return logical.Categorical
	}
	return inferFromValues(v)
}

// inferFromValues classifies a string-like sample. Each candidate survives
// until a value rules it out; blanks and nulls rule out nothing.
func inferFromValues(v vector.Vector) logical.Type {
	var (
		seen        bool
		allInt      = true
		allFloat    = true
		allBool     = true
		allTemporal = true
	)
	total := 0
	lenSum := 0
	distinct := make(map[string]struct{})

	for i := 0; i < v.Len(); i++ {
		s, ok := v.StringAt(i)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		seen = true
		total++
		lenSum += len(s)
		if len(distinct) < distinctCap {
			distinct[s] = struct{}{}
		}

		if allInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				allFloat = false
			}
		}
		if allBool {
			if _, ok := vector.ParseBoolLoose(s); !ok {
				allBool = false
			}
		}
		if allTemporal {
			if _, ok := vector.ParseTemporal(s); !ok {
				allTemporal = false
			}
		}
	}

	if !seen {
		// Nothing to go on; an empty or all-null column lands on the
		// broadest discrete type.
		return logical.Categorical
	}

	// Prefer more specific types.
	switch {
	case allInt:
		return logical.Integer
	case allBool:
		return logical.Boolean
	case allTemporal:
		return logical.Datetime
	case allFloat:
		return logical.Double
	}

	if float64(len(distinct))/float64(total) <= categoricalDistinctRatio {
		return logical.Categorical
	}
	if float64(lenSum)/float64(total) > naturalLanguageMinAvgLen {
		return logical.NaturalLanguage
	}
	return logical.Categorical
}
