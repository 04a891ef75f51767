// Package backend abstracts where column data lives and how it is evaluated.
// A backend kind is either eager (data resident in memory, operations execute
// immediately) or deferred (data arrives in partitions, operations are
// recorded in a plan and run at materialization). Each kind registers a
// static capability descriptor; the resolver consults it to pick fallback
// physical representations, never to change a column's logical type.
package backend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"tabular/pkg/dtype"
	"tabular/pkg/vector"
)

// Kind identifies a backend implementation.
type Kind string

const (
	// Memory is the eager in-memory backend.
	Memory Kind = "memory"
	// Chunked is the deferred backend holding local partitions with the full
	// physical type set.
	Chunked Kind = "chunked"
	// Distributed is the deferred backend modeling a distributed engine with
	// a restricted physical type set.
	Distributed Kind = "distributed"
)

// Sentinel error kinds for the normalization contract.
var (
	// ErrUnsupportedType reports a logical type with no viable physical
	// representation on the target backend. Fatal at construction; no
	// fallback exists.
	ErrUnsupportedType = errors.New("logical type has no supported representation on backend")

	// ErrIncompatibleData reports column data that cannot be cast to the
	// representation a logical type requires. Eager backends raise it at
	// construction; deferred backends raise it when materialization is
	// forced.
	ErrIncompatibleData = errors.New("data incompatible with logical type")
)

// IncompatibleData wraps a cast failure in the ErrIncompatibleData kind.
func IncompatibleData(kind Kind, column string, cause error) error {
	return fmt.Errorf("%s: column %q: %w: %v", kind, column, ErrIncompatibleData, cause)
}

// Capabilities is the static descriptor registered per backend kind.
//
// Edge cases:
//   - Supported lists physical representations; anything absent forces the
//     resolver onto a logical type's fallback representation, or fails with
//     ErrUnsupportedType when none exists.
//   - Exactly one of the sampling fields applies to deferred kinds: when
//     FirstPartition is set inference reads only the leading partition,
//     otherwise InferenceRows bounds the number of leading rows read.
//     Eager kinds sample whole columns and ignore both.
type Capabilities struct {
	Kind           Kind
	Deferred       bool
	Supported      []dtype.Kind
	FirstPartition bool
	InferenceRows  int
}

// Supports reports whether the kind can store the representation.
func (c Capabilities) Supports(k dtype.Kind) bool {
	for _, s := range c.Supported {
		if s == k {
			return true
		}
	}
	return false
}

// Frame is a handle on columnar data held by one backend.
//
// IMPORTANT: a frame is owned by the table wrapping it. Mutating calls
// (CastColumn) follow single-writer discipline; frames add no locking of
// their own.
type Frame interface {
	// Kind reports which backend holds the data.
	Kind() Kind

	// ColumnNames returns the column names in order, without touching data.
	ColumnNames() []string

	// Sample returns column data for type inference: the whole column on an
	// eager backend, a bounded prefix on a deferred one. The sample reflects
	// source data, not pending casts.
	Sample(ctx context.Context, column string) (vector.Vector, error)

	// CastColumn converts a column to another physical representation.
	// Eager backends execute immediately and report cast failures as
	// ErrIncompatibleData; deferred backends record a plan node that can
	// only fail at materialization.
	CastColumn(ctx context.Context, column string, to dtype.Kind) error

	// Project returns a new frame restricted to the named columns, in the
	// given order. Deferred frames carry their pending plan along for the
	// kept columns.
	Project(columns []string) (Frame, error)

	// Clone returns an independent handle: eager backends deep-copy data,
	// deferred backends copy the plan and share source partitions.
	Clone() Frame

	// Materialize executes pending work and returns fully resident columns.
	// This is the point where a deferred cast failure surfaces.
	Materialize(ctx context.Context) (*Columns, error)
}

// ----- capability registry (one descriptor per kind) -----

var (
	regMu    sync.RWMutex
	registry = map[Kind]Capabilities{}
)

// Register records a backend kind's capability descriptor.
//
// When to use:
//   - Call Register from an init() function in a backend package.
//
// Panics:
//   - If the kind is empty.
//   - If no supported representation is listed.
//   - If the kind is already registered. Duplicate registration would make
//     capability lookup ambiguous, so it fails fast.
func Register(c Capabilities) {
	regMu.Lock()
	defer regMu.Unlock()

	if c.Kind == "" {
		panic("backend: Register called with empty kind")
	}
	if len(c.Supported) == 0 {
		panic(fmt.Sprintf("backend: Register called with no supported dtypes for kind=%q", c.Kind))
	}
	if _, exists := registry[c.Kind]; exists {
		panic(fmt.Sprintf("backend: capabilities already registered for kind=%q", c.Kind))
	}
	registry[c.Kind] = c
}

// Lookup returns the capability descriptor for a kind.
func Lookup(kind Kind) (Capabilities, error) {
	if kind == "" {
		return Capabilities{}, fmt.Errorf("backend: missing kind")
	}

	regMu.RLock()
	c, ok := registry[kind]
	regMu.RUnlock()

	if !ok {
		return Capabilities{}, fmt.Errorf("backend: unsupported kind=%s", kind)
	}
	return c, nil
}

// Kinds returns the registered backend kinds, sorted.
func Kinds() []Kind {
	regMu.RLock()
	defer regMu.RUnlock()

	out := make([]Kind, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
