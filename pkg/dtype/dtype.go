// Package dtype enumerates the physical storage representations a column can
// take. A physical representation says how values are stored (width,
// nullability, encoding); it says nothing about what the values mean. The
// semantic side lives in pkg/logical, which maps each logical type to a
// preferred physical representation plus an optional fallback for backends
// with a restricted physical type set.
package dtype

import (
	"fmt"
	"strings"
)

// Kind identifies a physical storage representation.
type Kind int

const (
	// Invalid is the zero Kind and is never a valid column representation.
	Invalid Kind = iota

	// Int64 is a plain 64-bit integer with no missing values.
	Int64
	// Int64N is a nullable 64-bit integer.
	Int64N
	// Float64 is a 64-bit float with an explicit validity mask.
	Float64
	// Bool is a plain boolean with no missing values.
	Bool
	// BoolN is a nullable boolean.
	BoolN
	// String is the dedicated nullable string representation.
	String
	// Object is the generic value representation. Values are held as strings
	// with no further typing; it is the universal fallback target.
	Object
	// Category is a dictionary-encoded representation: per-row codes into an
	// ordered list of distinct labels.
	Category
	// Datetime holds nullable instants.
	Datetime
	// Timedelta holds nullable durations. Backends with restricted physical
	// type support typically omit it, and it has no fallback representation.
	Timedelta
)

var kindNames = map[Kind]string{
	Int64:     "int64",
	Int64N:    "Int64",
	Float64:   "float64",
	Bool:      "bool",
	BoolN:     "boolean",
	String:    "string",
	Object:    "object",
	Category:  "category",
	Datetime:  "datetime64[ns]",
	Timedelta: "timedelta64[ns]",
}

// kindsByName maps lowercased names to kinds. "int64" is claimed by the
// plain kind; the nullable spelling must match exactly.
var kindsByName = map[string]Kind{
	"int64":           Int64,
	"float64":         Float64,
	"bool":            Bool,
	"boolean":         BoolN,
	"string":          String,
	"object":          Object,
	"category":        Category,
	"datetime64[ns]":  Datetime,
	"timedelta64[ns]": Timedelta,
	// Common aliases.
	"datetime":  Datetime,
	"timedelta": Timedelta,
	"float":     Float64,
	"text":      Object,
}

// String returns the conventional dtype name ("int64", "Int64", "boolean",
// "object", ...). Nullable integer is spelled "Int64" and plain integer
// "int64", following the naming the wrapped engines use.
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("dtype(%d)", int(k))
}

// ParseKind resolves a dtype name to its Kind. Matching is case-insensitive
// except that "Int64" (nullable) and "int64" (plain) are distinguished when
// the caller preserves case; a lowercase "int64" always means the plain kind.
func ParseKind(s string) (Kind, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return Invalid, fmt.Errorf("dtype: empty name")
	}
	// Exact match first so "Int64" and "int64" stay distinct.
	for k, n := range kindNames {
		if n == t {
			return k, nil
		}
	}
	if k, ok := kindsByName[strings.ToLower(t)]; ok {
		return k, nil
	}
	return Invalid, fmt.Errorf("dtype: unknown name %q", s)
}

// Nullable reports whether the representation can hold missing values.
func (k Kind) Nullable() bool {
	switch k {
	case Int64, Bool:
		return false
	default:
		return k != Invalid
	}
}

// Numeric reports whether the representation stores numbers.
func (k Kind) Numeric() bool {
	switch k {
	case Int64, Int64N, Float64:
		return true
	default:
		return false
	}
}

// Valid reports whether k names a real representation.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}
