package vector

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"tabular/pkg/dtype"
)

// Cast converts a vector to another physical representation and returns the
// result as a new vector. The receiver is never modified. Conversions that
// cannot represent the data fail with a row-level error; notable rules:
//
//   - nullable int -> plain int fails when any row is missing
//   - nullable bool -> plain bool coerces missing rows to false
//   - category -> object/string yields each value's string form, so numeric
//     category labels become numeric-looking strings
//   - string-like sources parse per row; the first unparseable value aborts
//     the cast
//
// Identity casts return the input unchanged.
func Cast(v Vector, to dtype.Kind) (Vector, error) {
	if v == nil {
		return nil, fmt.Errorf("vector: cast of nil vector")
	}
	if v.Kind() == to {
		return v, nil
	}
	switch to {
	case dtype.Int64:
		return castInt64(v, false)
	case dtype.Int64N:
		return castInt64(v, true)
	case dtype.Float64:
		return castFloat64(v)
	case dtype.Bool:
		return castBool(v, false)
	case dtype.BoolN:
		return castBool(v, true)
	case dtype.String, dtype.Object:
		return castStringLike(v, to)
	case dtype.Category:
		return castCategory(v)
	case dtype.Datetime:
		return castDatetime(v)
	case dtype.Timedelta:
		return castTimedelta(v)
	}
	return nil, fmt.Errorf("vector: unsupported cast %s to %s", v.Kind(), to)
}

func castErr(v Vector, to dtype.Kind, row int, detail string) error {
	return fmt.Errorf("vector: cannot cast %s to %s: row %d: %s", v.Kind(), to, row, detail)
}

func castInt64(v Vector, nullable bool) (Vector, error) {
	to := dtype.Int64
	if nullable {
		to = dtype.Int64N
	}
	n := v.Len()
	vals := make([]int64, n)
	valid := make([]bool, n)
	for i := 0; i < n; i++ {
		if v.IsNull(i) {
			if !nullable {
				return nil, castErr(v, to, i, "missing value")
			}
			continue
		}
		valid[i] = true
		switch x := v.Value(i).(type) {
		case int64:
			vals[i] = x
		case float64:
			if math.Trunc(x) != x || x < math.MinInt64 || x > math.MaxInt64 {
				return nil, castErr(v, to, i, fmt.Sprintf("value %v is not an integer", x))
			}
			vals[i] = int64(x)
		case bool:
			if x {
				vals[i] = 1
			}
		case string:
			p, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			if err != nil {
				return nil, castErr(v, to, i, fmt.Sprintf("value %q is not an integer", x))
			}
			vals[i] = p
		default:
			return nil, fmt.Errorf("vector: unsupported cast %s to %s", v.Kind(), to)
		}
	}
	if nullable {
		return NullInt64Values(vals, valid), nil
	}
	return Int64Values(vals...), nil
}

func castFloat64(v Vector) (Vector, error) {
	n := v.Len()
	vals := make([]float64, n)
	valid := make([]bool, n)
	for i := 0; i < n; i++ {
		if v.IsNull(i) {
			continue
		}
		valid[i] = true
		switch x := v.Value(i).(type) {
		case float64:
			vals[i] = x
		case int64:
			vals[i] = float64(x)
		case string:
			p, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if err != nil {
				return nil, castErr(v, dtype.Float64, i, fmt.Sprintf("value %q is not a number", x))
			}
			vals[i] = p
		default:
			return nil, fmt.Errorf("vector: unsupported cast %s to %s", v.Kind(), dtype.Float64)
		}
	}
	return Float64Values(vals, valid), nil
}

func castBool(v Vector, nullable bool) (Vector, error) {
	to := dtype.Bool
	if nullable {
		to = dtype.BoolN
	}
	n := v.Len()
	vals := make([]bool, n)
	valid := make([]bool, n)
	for i := 0; i < n; i++ {
		if v.IsNull(i) {
			// Plain target: missing rows land as false. Nullable target:
			// the row stays missing.
			continue
		}
		valid[i] = true
		switch x := v.Value(i).(type) {
		case bool:
			vals[i] = x
		case int64:
			switch x {
			case 0:
				vals[i] = false
			case 1:
				vals[i] = true
			default:
				return nil, castErr(v, to, i, fmt.Sprintf("value %d is not a boolean", x))
			}
		case string:
			b, ok := ParseBoolLoose(x)
			if !ok {
				return nil, castErr(v, to, i, fmt.Sprintf("value %q is not a boolean", x))
			}
			vals[i] = b
		default:
			return nil, fmt.Errorf("vector: unsupported cast %s to %s", v.Kind(), to)
		}
	}
	if nullable {
		return NullBoolValues(vals, valid), nil
	}
	return BoolValues(vals...), nil
}

func castStringLike(v Vector, to dtype.Kind) (Vector, error) {
	n := v.Len()
	vals := make([]string, n)
	valid := make([]bool, n)
	for i := 0; i < n; i++ {
		s, ok := v.StringAt(i)
		if !ok {
			continue
		}
		vals[i] = s
		valid[i] = true
	}
	if to == dtype.String {
		return StringValues(vals, valid), nil
	}
	return ObjectValues(vals, valid), nil
}

func castCategory(v Vector) (Vector, error) {
	n := v.Len()
	vals := make([]string, n)
	valid := make([]bool, n)
	for i := 0; i < n; i++ {
		s, ok := v.StringAt(i)
		if !ok {
			continue
		}
		vals[i] = s
		valid[i] = true
	}
	return CategoryFromStrings(vals, valid), nil
}

func castDatetime(v Vector) (Vector, error) {
	n := v.Len()
	vals := make([]time.Time, n)
	valid := make([]bool, n)
	for i := 0; i < n; i++ {
		if v.IsNull(i) {
			continue
		}
		s, ok := v.StringAt(i)
		if !ok {
			continue
		}
		t, ok := ParseTemporal(s)
		if !ok {
			return nil, castErr(v, dtype.Datetime, i, fmt.Sprintf("value %q is not a datetime", s))
		}
		vals[i] = t
		valid[i] = true
	}
	return DatetimeValues(vals, valid), nil
}

func castTimedelta(v Vector) (Vector, error) {
	n := v.Len()
	vals := make([]time.Duration, n)
	valid := make([]bool, n)
	for i := 0; i < n; i++ {
		if v.IsNull(i) {
			continue
		}
		valid[i] = true
		switch x := v.Value(i).(type) {
		case time.Duration:
			vals[i] = x
		case int64:
			vals[i] = time.Duration(x)
		case string:
			d, err := time.ParseDuration(strings.TrimSpace(x))
			if err != nil {
				return nil, castErr(v, dtype.Timedelta, i, fmt.Sprintf("value %q is not a duration", x))
			}
			vals[i] = d
		default:
			return nil, fmt.Errorf("vector: unsupported cast %s to %s", v.Kind(), dtype.Timedelta)
		}
	}
	return TimedeltaValues(vals, valid), nil
}

// ----- loose value parsing -----

// ParseBoolLoose parses common boolean spellings: 1/t/true/yes/y and
// 0/f/false/no/n, case-insensitive.
func ParseBoolLoose(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "yes", "y":
		return true, true
	case "0", "f", "false", "no", "n":
		return false, true
	default:
		return false, false
	}
}

var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
	"01/02/2006",
}

var tsLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000Z07:00",
	"02.01.2006 15:04:05",
}

// ParseTemporal parses a value against the known date layouts, then the
// timestamp layouts.
func ParseTemporal(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, lay := range dateLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t, true
		}
	}
	for _, lay := range tsLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseDateOnly reports whether s matches a date-only layout.
func ParseDateOnly(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, lay := range dateLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseTimestamp reports whether s matches a timestamp layout.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, lay := range tsLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
