// Package vector holds typed column data. Each dtype kind has one concrete
// vector implementation behind the Vector interface; nullable kinds carry an
// explicit validity mask. Vectors are immutable by convention: casts and
// slices return new vectors and never modify their receiver.
package vector

import (
	"fmt"
	"time"

	"tabular/pkg/dtype"
)

// Vector is a typed, immutable column of values.
type Vector interface {
	// Kind reports the physical representation of the stored values.
	Kind() dtype.Kind
	// Len reports the number of rows.
	Len() int
	// IsNull reports whether row i holds a missing value.
	IsNull(i int) bool
	// Value returns the value at row i, or nil when the row is null.
	// Concrete types: int64, float64, bool, string, time.Time, time.Duration.
	// Category rows yield their label string.
	Value(i int) any
	// StringAt returns the string form of row i. ok is false for null rows.
	StringAt(i int) (s string, ok bool)
	// Slice returns the half-open row range [lo, hi) as a new vector.
	Slice(lo, hi int) Vector
	// Clone returns an independent deep copy.
	Clone() Vector
}

// Equal reports whether two vectors hold the same data: same kind, same
// length, nulls in the same rows and equal values elsewhere. Category
// vectors compare by value, not by dictionary encoding.
func Equal(a, b Vector) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind() != b.Kind() || a.Len() != b.Len() {
		return false
	}
	for i := 0; i < a.Len(); i++ {
		an, bn := a.IsNull(i), b.IsNull(i)
		if an != bn {
			return false
		}
		if an {
			continue
		}
		av, bv := a.Value(i), b.Value(i)
		at, aok := av.(time.Time)
		bt, bok := bv.(time.Time)
		if aok && bok {
			if !at.Equal(bt) {
				return false
			}
			continue
		}
		if av != bv {
			return false
		}
	}
	return true
}

// NullCount reports the number of missing rows.
func NullCount(v Vector) int {
	n := 0
	for i := 0; i < v.Len(); i++ {
		if v.IsNull(i) {
			n++
		}
	}
	return n
}

// Concat appends vectors of the same kind into one. Partitioned frames use
// it when materializing their chunks.
func Concat(vs ...Vector) (Vector, error) {
	if len(vs) == 0 {
		return nil, fmt.Errorf("vector: concat of zero vectors")
	}
	k := vs[0].Kind()
	for _, v := range vs {
		if v.Kind() != k {
			return nil, fmt.Errorf("vector: concat kind mismatch: %s vs %s", k, v.Kind())
		}
	}
	if len(vs) == 1 {
		return vs[0], nil
	}

	switch k {
	case dtype.Int64:
		var out []int64
		for _, v := range vs {
			out = append(out, v.(*int64s).vals...)
		}
		return Int64Values(out...), nil
	case dtype.Bool:
		var out []bool
		for _, v := range vs {
			out = append(out, v.(*bools).vals...)
		}
		return BoolValues(out...), nil
	case dtype.Int64N:
		var vals []int64
		var valid []bool
		for _, v := range vs {
			for i := 0; i < v.Len(); i++ {
				if v.IsNull(i) {
					vals = append(vals, 0)
					valid = append(valid, false)
					continue
				}
				vals = append(vals, v.Value(i).(int64))
				valid = append(valid, true)
			}
		}
		return NullInt64Values(vals, valid), nil
	case dtype.Float64:
		var vals []float64
		var valid []bool
		for _, v := range vs {
			for i := 0; i < v.Len(); i++ {
				if v.IsNull(i) {
					vals = append(vals, 0)
					valid = append(valid, false)
					continue
				}
				vals = append(vals, v.Value(i).(float64))
				valid = append(valid, true)
			}
		}
		return Float64Values(vals, valid), nil
	case dtype.BoolN:
		var vals []bool
		var valid []bool
		for _, v := range vs {
			for i := 0; i < v.Len(); i++ {
				if v.IsNull(i) {
					vals = append(vals, false)
					valid = append(valid, false)
					continue
				}
				vals = append(vals, v.Value(i).(bool))
				valid = append(valid, true)
			}
		}
		return NullBoolValues(vals, valid), nil
	case dtype.String, dtype.Object, dtype.Category:
		var vals []string
		var valid []bool
		for _, v := range vs {
			for i := 0; i < v.Len(); i++ {
				if v.IsNull(i) {
					vals = append(vals, "")
					valid = append(valid, false)
					continue
				}
				vals = append(vals, v.Value(i).(string))
				valid = append(valid, true)
			}
		}
		switch k {
		case dtype.String:
			return StringValues(vals, valid), nil
		case dtype.Object:
			return ObjectValues(vals, valid), nil
		default:
			return CategoryFromStrings(vals, valid), nil
		}
	case dtype.Datetime:
		var vals []time.Time
		var valid []bool
		for _, v := range vs {
			for i := 0; i < v.Len(); i++ {
				if v.IsNull(i) {
					vals = append(vals, time.Time{})
					valid = append(valid, false)
					continue
				}
				vals = append(vals, v.Value(i).(time.Time))
				valid = append(valid, true)
			}
		}
		return DatetimeValues(vals, valid), nil
	case dtype.Timedelta:
		var vals []time.Duration
		var valid []bool
		for _, v := range vs {
			for i := 0; i < v.Len(); i++ {
				if v.IsNull(i) {
					vals = append(vals, 0)
					valid = append(valid, false)
					continue
				}
				vals = append(vals, v.Value(i).(time.Duration))
				valid = append(valid, true)
			}
		}
		return TimedeltaValues(vals, valid), nil
	}
	return nil, fmt.Errorf("vector: concat unsupported kind %s", k)
}
