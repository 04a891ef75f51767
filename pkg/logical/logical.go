// Package logical defines the semantic column types a table can carry and
// the registry that resolves them by name. A logical type classifies what a
// column means; each one maps to a preferred physical representation and,
// for backends with a restricted physical type set, an optional fallback
// representation. Capabilities never change a column's logical type, only
// which representation ends up holding it.
package logical

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"tabular/pkg/dtype"
)

// Standard semantic tags contributed by logical types.
const (
	TagNumeric   = "numeric"
	TagCategory  = "category"
	TagIndex     = "index"
	TagTimeIndex = "time_index"
)

// Type describes one logical type. Types are plain values; two types are the
// same when their names (and, for ordinals, their order) match.
type Type struct {
	// Name is the canonical snake_case name, e.g. "natural_language".
	Name string
	// Primary is the preferred physical representation.
	Primary dtype.Kind
	// Backup is the fallback representation for backends that do not support
	// Primary. dtype.Invalid means the type has no fallback and is simply
	// unsupported on such backends.
	Backup dtype.Kind
	// StandardTags are the semantic tags the type contributes when standard
	// tags are enabled on the table.
	StandardTags []string
	// Order is the allowed-value list for ordinal types, in rank order.
	// Empty for every other type.
	Order []string
}

// String returns the canonical name.
func (t Type) String() string { return t.Name }

// Valid reports whether t names a real logical type.
func (t Type) Valid() bool { return t.Name != "" && t.Primary.Valid() }

// HasFallback reports whether a fallback representation exists.
func (t Type) HasFallback() bool { return t.Backup.Valid() }

// IsOrdinal reports whether t is an ordinal type.
func (t Type) IsOrdinal() bool { return t.Name == Ordinal.Name }

// Equal reports whether two logical types are the same, including ordinal
// order.
func (t Type) Equal(o Type) bool {
	if t.Name != o.Name || len(t.Order) != len(o.Order) {
		return false
	}
	for i := range t.Order {
		if t.Order[i] != o.Order[i] {
			return false
		}
	}
	return true
}

// Built-in logical types.
var (
	Boolean         = Type{Name: "boolean", Primary: dtype.BoolN, Backup: dtype.Bool}
	Categorical     = Type{Name: "categorical", Primary: dtype.Category, Backup: dtype.Object, StandardTags: []string{TagCategory}}
	CountryCode     = Type{Name: "country_code", Primary: dtype.Category, Backup: dtype.Object, StandardTags: []string{TagCategory}}
	Datetime        = Type{Name: "datetime", Primary: dtype.Datetime}
	Double          = Type{Name: "double", Primary: dtype.Float64, StandardTags: []string{TagNumeric}}
	EmailAddress    = Type{Name: "email_address", Primary: dtype.String, Backup: dtype.Object}
	Filepath        = Type{Name: "filepath", Primary: dtype.String, Backup: dtype.Object}
	FullName        = Type{Name: "full_name", Primary: dtype.String, Backup: dtype.Object}
	IPAddress       = Type{Name: "ip_address", Primary: dtype.String, Backup: dtype.Object}
	Integer         = Type{Name: "integer", Primary: dtype.Int64N, Backup: dtype.Int64, StandardTags: []string{TagNumeric}}
	NaturalLanguage = Type{Name: "natural_language", Primary: dtype.String, Backup: dtype.Object}
	Ordinal         = Type{Name: "ordinal", Primary: dtype.Category, Backup: dtype.Object, StandardTags: []string{TagCategory}}
	PhoneNumber     = Type{Name: "phone_number", Primary: dtype.String, Backup: dtype.Object}
	PostalCode      = Type{Name: "postal_code", Primary: dtype.Category, Backup: dtype.Object, StandardTags: []string{TagCategory}}
	SubRegionCode   = Type{Name: "sub_region_code", Primary: dtype.Category, Backup: dtype.Object, StandardTags: []string{TagCategory}}
	Timedelta       = Type{Name: "timedelta", Primary: dtype.Timedelta}
	URL             = Type{Name: "url", Primary: dtype.String, Backup: dtype.Object}
)

// NewOrdinal builds an ordinal type with the given allowed values in rank
// order.
func NewOrdinal(order ...string) Type {
	t := Ordinal
	t.Order = append([]string(nil), order...)
	return t
}

// ----- registry -----

var (
	regMu    sync.RWMutex
	registry = map[string]Type{}
)

// Register adds a logical type to the registry under its canonical name.
//
// Panics:
//   - If the type is invalid.
//   - If the name is already registered. Re-registration would make name
//     lookup ambiguous, so it fails fast.
func Register(t Type) {
	regMu.Lock()
	defer regMu.Unlock()

	if !t.Valid() {
		panic(fmt.Sprintf("logical: Register called with invalid type %+v", t))
	}
	key := canonical(t.Name)
	if _, exists := registry[key]; exists {
		panic(fmt.Sprintf("logical: type already registered for name=%q", t.Name))
	}
	registry[key] = t
}

func init() {
	for _, t := range []Type{
		Boolean, Categorical, CountryCode, Datetime, Double, EmailAddress,
		Filepath, FullName, IPAddress, Integer, NaturalLanguage, Ordinal,
		PhoneNumber, PostalCode, SubRegionCode, Timedelta, URL,
	} {
		Register(t)
	}
}

// Lookup resolves a type by name. Matching is case-insensitive and tolerant
// of spaces versus underscores, so "NaturalLanguage", "natural language" and
// "natural_language" all resolve to the same type.
func Lookup(name string) (Type, error) {
	key := canonical(name)
	if key == "" {
		return Type{}, fmt.Errorf("logical: empty type name")
	}

	regMu.RLock()
	t, ok := registry[key]
	regMu.RUnlock()

	if !ok {
		return Type{}, fmt.Errorf("logical: unknown type %q", name)
	}
	return t, nil
}

// Registered returns the canonical names of all registered types, sorted.
func Registered() []string {
	regMu.RLock()
	defer regMu.RUnlock()

	names := make([]string, 0, len(registry))
	for _, t := range registry {
		names = append(names, t.Name)
	}
	sort.Strings(names)
	return names
}

// canonical folds a user-facing type name to its registry key: lowercase
// with separators removed, so CamelCase, snake_case and spaced spellings
// collide on purpose.
func canonical(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch r {
		case ' ', '_', '-':
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}
