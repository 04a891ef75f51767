package vector

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"tabular/pkg/dtype"
)

// Builders take ownership of the slices they are given; callers must not
// modify them afterwards. A nil valid mask means every row is present; when
// non-nil it must match the value slice in length (mismatch panics, the same
// way a bad slice index would).

func checkMask(n int, valid []bool) {
	if valid != nil && len(valid) != n {
		panic(fmt.Sprintf("vector: valid mask length %d does not match %d values", len(valid), n))
	}
}

// mask is the shared validity bookkeeping for nullable vectors.
type mask struct {
	valid []bool
}

func (m mask) null(i int) bool { return m.valid != nil && !m.valid[i] }

func (m mask) slice(lo, hi int) mask {
	if m.valid == nil {
		return mask{}
	}
	return mask{valid: m.valid[lo:hi]}
}

func (m mask) clone() mask {
	if m.valid == nil {
		return mask{}
	}
	out := make([]bool, len(m.valid))
	copy(out, m.valid)
	return mask{valid: out}
}

// ----- plain int64 -----

type int64s struct {
	vals []int64
}

// Int64Values builds a plain int64 vector (no missing values).
func Int64Values(vs ...int64) Vector { return &int64s{vals: vs} }

// Int64Range builds a plain int64 vector holding 0..n-1. Tables use it when
// asked to manufacture an index column.
func Int64Range(n int) Vector {
	vs := make([]int64, n)
	for i := range vs {
		vs[i] = int64(i)
	}
	return &int64s{vals: vs}
}

func (v *int64s) Kind() dtype.Kind { return dtype.Int64 }
func (v *int64s) Len() int         { return len(v.vals) }
func (v *int64s) IsNull(int) bool  { return false }
func (v *int64s) Value(i int) any  { return v.vals[i] }

func (v *int64s) StringAt(i int) (string, bool) {
	return strconv.FormatInt(v.vals[i], 10), true
}

func (v *int64s) Slice(lo, hi int) Vector { return &int64s{vals: v.vals[lo:hi]} }

func (v *int64s) Clone() Vector {
	out := make([]int64, len(v.vals))
	copy(out, v.vals)
	return &int64s{vals: out}
}

// ----- nullable int64 -----

type nullInt64s struct {
	vals []int64
	mask
}

// NullInt64Values builds a nullable int64 vector.
func NullInt64Values(vs []int64, valid []bool) Vector {
	checkMask(len(vs), valid)
	return &nullInt64s{vals: vs, mask: mask{valid: valid}}
}

func (v *nullInt64s) Kind() dtype.Kind { return dtype.Int64N }
func (v *nullInt64s) Len() int         { return len(v.vals) }
func (v *nullInt64s) IsNull(i int) bool {
	return v.null(i)
}

func (v *nullInt64s) Value(i int) any {
	if v.null(i) {
		return nil
	}
	return v.vals[i]
}

func (v *nullInt64s) StringAt(i int) (string, bool) {
	if v.null(i) {
		return "", false
	}
	return strconv.FormatInt(v.vals[i], 10), true
}

func (v *nullInt64s) Slice(lo, hi int) Vector {
	return &nullInt64s{vals: v.vals[lo:hi], mask: v.mask.slice(lo, hi)}
}

func (v *nullInt64s) Clone() Vector {
	out := make([]int64, len(v.vals))
	copy(out, v.vals)
	return &nullInt64s{vals: out, mask: v.mask.clone()}
}

// ----- float64 -----

type float64s struct {
	vals []float64
	mask
}

// Float64Values builds a float64 vector; missing rows are tracked through
// the validity mask rather than NaN payloads.
func Float64Values(vs []float64, valid []bool) Vector {
	checkMask(len(vs), valid)
	return &float64s{vals: vs, mask: mask{valid: valid}}
}

func (v *float64s) Kind() dtype.Kind  { return dtype.Float64 }
func (v *float64s) Len() int          { return len(v.vals) }
func (v *float64s) IsNull(i int) bool { return v.null(i) }

func (v *float64s) Value(i int) any {
	if v.null(i) {
		return nil
	}
	return v.vals[i]
}

func (v *float64s) StringAt(i int) (string, bool) {
	if v.null(i) {
		return "", false
	}
	return strconv.FormatFloat(v.vals[i], 'g', -1, 64), true
}

func (v *float64s) Slice(lo, hi int) Vector {
	return &float64s{vals: v.vals[lo:hi], mask: v.mask.slice(lo, hi)}
}

func (v *float64s) Clone() Vector {
	out := make([]float64, len(v.vals))
	copy(out, v.vals)
	return &float64s{vals: out, mask: v.mask.clone()}
}

// ----- plain bool -----

type bools struct {
	vals []bool
}

// BoolValues builds a plain boolean vector (no missing values).
func BoolValues(vs ...bool) Vector { return &bools{vals: vs} }

func (v *bools) Kind() dtype.Kind { return dtype.Bool }
func (v *bools) Len() int         { return len(v.vals) }
func (v *bools) IsNull(int) bool  { return false }
func (v *bools) Value(i int) any  { return v.vals[i] }

func (v *bools) StringAt(i int) (string, bool) {
	return strconv.FormatBool(v.vals[i]), true
}

func (v *bools) Slice(lo, hi int) Vector { return &bools{vals: v.vals[lo:hi]} }

func (v *bools) Clone() Vector {
	out := make([]bool, len(v.vals))
	copy(out, v.vals)
	return &bools{vals: out}
}

// ----- nullable bool -----

type nullBools struct {
	vals []bool
	mask
}

// NullBoolValues builds a nullable boolean vector.
func NullBoolValues(vs []bool, valid []bool) Vector {
	checkMask(len(vs), valid)
	return &nullBools{vals: vs, mask: mask{valid: valid}}
}

func (v *nullBools) Kind() dtype.Kind  { return dtype.BoolN }
func (v *nullBools) Len() int          { return len(v.vals) }
func (v *nullBools) IsNull(i int) bool { return v.null(i) }

func (v *nullBools) Value(i int) any {
	if v.null(i) {
		return nil
	}
	return v.vals[i]
}

func (v *nullBools) StringAt(i int) (string, bool) {
	if v.null(i) {
		return "", false
	}
	return strconv.FormatBool(v.vals[i]), true
}

func (v *nullBools) Slice(lo, hi int) Vector {
	return &nullBools{vals: v.vals[lo:hi], mask: v.mask.slice(lo, hi)}
}

func (v *nullBools) Clone() Vector {
	out := make([]bool, len(v.vals))
	copy(out, v.vals)
	return &nullBools{vals: out, mask: v.mask.clone()}
}

// ----- string (dedicated nullable string dtype) -----

type strs struct {
	vals []string
	kind dtype.Kind // dtype.String or dtype.Object
	mask
}

// StringValues builds a vector with the dedicated string representation.
func StringValues(vs []string, valid []bool) Vector {
	checkMask(len(vs), valid)
	return &strs{vals: vs, kind: dtype.String, mask: mask{valid: valid}}
}

// ObjectValues builds a vector with the generic object representation.
// Object vectors hold their values in string form.
func ObjectValues(vs []string, valid []bool) Vector {
	checkMask(len(vs), valid)
	return &strs{vals: vs, kind: dtype.Object, mask: mask{valid: valid}}
}

func (v *strs) Kind() dtype.Kind  { return v.kind }
func (v *strs) Len() int          { return len(v.vals) }
func (v *strs) IsNull(i int) bool { return v.null(i) }

func (v *strs) Value(i int) any {
	if v.null(i) {
		return nil
	}
	return v.vals[i]
}

func (v *strs) StringAt(i int) (string, bool) {
	if v.null(i) {
		return "", false
	}
	return v.vals[i], true
}

func (v *strs) Slice(lo, hi int) Vector {
	return &strs{vals: v.vals[lo:hi], kind: v.kind, mask: v.mask.slice(lo, hi)}
}

func (v *strs) Clone() Vector {
	out := make([]string, len(v.vals))
	copy(out, v.vals)
	return &strs{vals: out, kind: v.kind, mask: v.mask.clone()}
}

// ----- category (dictionary encoded) -----

type categories struct {
	codes  []int // -1 marks a null row
	labels []string
}

// CategoryFromStrings dictionary-encodes string values. Labels are the
// distinct non-null values; numeric label sets sort numerically, everything
// else lexically, so the encoding is deterministic.
func CategoryFromStrings(vs []string, valid []bool) Vector {
	checkMask(len(vs), valid)
	seen := make(map[string]struct{})
	var labels []string
	for i, s := range vs {
		if valid != nil && !valid[i] {
			continue
		}
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			labels = append(labels, s)
		}
	}
	sortLabels(labels)

	idx := make(map[string]int, len(labels))
	for i, l := range labels {
		idx[l] = i
	}
	codes := make([]int, len(vs))
	for i, s := range vs {
		if valid != nil && !valid[i] {
			codes[i] = -1
			continue
		}
		codes[i] = idx[s]
	}
	return &categories{codes: codes, labels: labels}
}

// CategoryValues builds a category vector from explicit codes and labels.
// A code of -1 marks a null row.
func CategoryValues(codes []int, labels []string) Vector {
	for _, c := range codes {
		if c < -1 || c >= len(labels) {
			panic(fmt.Sprintf("vector: category code %d outside dictionary of %d labels", c, len(labels)))
		}
	}
	return &categories{codes: codes, labels: labels}
}

// sortLabels orders a label dictionary: numerically when every label parses
// as a number, lexically otherwise.
func sortLabels(labels []string) {
	numeric := len(labels) > 0
	for _, l := range labels {
		if _, err := strconv.ParseFloat(l, 64); err != nil {
			numeric = false
			break
		}
	}
	if numeric {
		sort.SliceStable(labels, func(i, j int) bool {
			a, _ := strconv.ParseFloat(labels[i], 64)
			b, _ := strconv.ParseFloat(labels[j], 64)
			if a == b {
				return labels[i] < labels[j]
			}
			return a < b
		})
		return
	}
	sort.Strings(labels)
}

func (v *categories) Kind() dtype.Kind  { return dtype.Category }
func (v *categories) Len() int          { return len(v.codes) }
func (v *categories) IsNull(i int) bool { return v.codes[i] < 0 }

func (v *categories) Value(i int) any {
	if v.codes[i] < 0 {
		return nil
	}
	return v.labels[v.codes[i]]
}

func (v *categories) StringAt(i int) (string, bool) {
	if v.codes[i] < 0 {
		return "", false
	}
	return v.labels[v.codes[i]], true
}

func (v *categories) Slice(lo, hi int) Vector {
	return &categories{codes: v.codes[lo:hi], labels: v.labels}
}

func (v *categories) Clone() Vector {
	codes := make([]int, len(v.codes))
	copy(codes, v.codes)
	labels := make([]string, len(v.labels))
	copy(labels, v.labels)
	return &categories{codes: codes, labels: labels}
}

// CategoryLabels returns the dictionary of a category vector, in encoding
// order. ok is false when v is not category-typed.
func CategoryLabels(v Vector) (labels []string, ok bool) {
	c, ok := v.(*categories)
	if !ok {
		return nil, false
	}
	return c.labels, true
}

// ----- datetime -----

type datetimes struct {
	vals []time.Time
	mask
}

// DatetimeValues builds a nullable instant vector.
func DatetimeValues(vs []time.Time, valid []bool) Vector {
	checkMask(len(vs), valid)
	return &datetimes{vals: vs, mask: mask{valid: valid}}
}

func (v *datetimes) Kind() dtype.Kind  { return dtype.Datetime }
func (v *datetimes) Len() int          { return len(v.vals) }
func (v *datetimes) IsNull(i int) bool { return v.null(i) }

func (v *datetimes) Value(i int) any {
	if v.null(i) {
		return nil
	}
	return v.vals[i]
}

func (v *datetimes) StringAt(i int) (string, bool) {
	if v.null(i) {
		return "", false
	}
	t := v.vals[i]
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02"), true
	}
	return t.Format("2006-01-02 15:04:05"), true
}

func (v *datetimes) Slice(lo, hi int) Vector {
	return &datetimes{vals: v.vals[lo:hi], mask: v.mask.slice(lo, hi)}
}

func (v *datetimes) Clone() Vector {
	out := make([]time.Time, len(v.vals))
	copy(out, v.vals)
	return &datetimes{vals: out, mask: v.mask.clone()}
}

// ----- timedelta -----

type timedeltas struct {
	vals []time.Duration
	mask
}

// TimedeltaValues builds a nullable duration vector.
func TimedeltaValues(vs []time.Duration, valid []bool) Vector {
	checkMask(len(vs), valid)
	return &timedeltas{vals: vs, mask: mask{valid: valid}}
}

func (v *timedeltas) Kind() dtype.Kind  { return dtype.Timedelta }
func (v *timedeltas) Len() int          { return len(v.vals) }
func (v *timedeltas) IsNull(i int) bool { return v.null(i) }

func (v *timedeltas) Value(i int) any {
	if v.null(i) {
		return nil
	}
	return v.vals[i]
}

func (v *timedeltas) StringAt(i int) (string, bool) {
	if v.null(i) {
		return "", false
	}
	return v.vals[i].String(), true
}

func (v *timedeltas) Slice(lo, hi int) Vector {
	return &timedeltas{vals: v.vals[lo:hi], mask: v.mask.slice(lo, hi)}
}

func (v *timedeltas) Clone() Vector {
	out := make([]time.Duration, len(v.vals))
	copy(out, v.vals)
	return &timedeltas{vals: out, mask: v.mask.clone()}
}

// NullStrings derives a validity mask for raw string data where the empty
// string marks a missing value, the convention the file readers use.
func NullStrings(vs []string) (vals []string, valid []bool) {
	valid = make([]bool, len(vs))
	any := false
	for i, s := range vs {
		if strings.TrimSpace(s) == "" {
			any = true
			continue
		}
		valid[i] = true
	}
	if !any {
		return vs, nil
	}
	return vs, valid
}
