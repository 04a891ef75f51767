package resolve

import (
	"context"
	"errors"
	"testing"

	"tabular/pkg/backend"
	"tabular/pkg/backend/mem"
	"tabular/pkg/dtype"
	"tabular/pkg/logical"
	"tabular/pkg/vector"
)

// countingFrame wraps a frame and counts Sample calls.
type countingFrame struct {
	backend.Frame
	samples int
}

func (c *countingFrame) Sample(ctx context.Context, column string) (vector.Vector, error) {
	c.samples++
	return c.Frame.Sample(ctx, column)
}

func newMemFrame(t *testing.T) *mem.Frame {
	t.Helper()
	cols := backend.NewColumns()
	if err := cols.Add("id", vector.StringValues([]string{"1", "2"}, nil)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := cols.Add("note", vector.StringValues([]string{"first observed value here", "second observed value here"}, nil)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	f, err := mem.New(cols)
	if err != nil {
		t.Fatalf("mem.New: %v", err)
	}
	return f
}

//
// Types
//

func TestTypesInfersUndeclaredColumns(t *testing.T) {
	t.Parallel()

	f := newMemFrame(t)
	got, err := Types(context.Background(), f, nil)
	if err != nil {
		t.Fatalf("Types: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("resolved %d columns, want 2", len(got))
	}
	if !got[0].Type.Equal(logical.Integer) || !got[0].Inferred {
		t.Fatalf("id resolved to %v (inferred=%v), want inferred integer", got[0].Type, got[0].Inferred)
	}
	if !got[1].Type.Equal(logical.NaturalLanguage) {
		t.Fatalf("note resolved to %v, want natural_language", got[1].Type)
	}
}

func TestTypesDeclaredColumnsSkipSampling(t *testing.T) {
	t.Parallel()

	t.Run("partial declaration samples the rest", func(t *testing.T) {
		t.Parallel()
		cf := &countingFrame{Frame: newMemFrame(t)}
		declared := map[string]logical.Type{"id": logical.Integer}
		got, err := Types(context.Background(), cf, declared)
		if err != nil {
			t.Fatalf("Types: %v", err)
		}
		if cf.samples != 1 {
			t.Fatalf("sampled %d columns, want 1", cf.samples)
		}
		if got[0].Inferred {
			t.Fatalf("declared column reported as inferred")
		}
	})

	t.Run("full declaration touches no data", func(t *testing.T) {
		t.Parallel()
		cf := &countingFrame{Frame: newMemFrame(t)}
		declared := map[string]logical.Type{
			"id":   logical.Integer,
			"note": logical.NaturalLanguage,
		}
		if _, err := Types(context.Background(), cf, declared); err != nil {
			t.Fatalf("Types: %v", err)
		}
		if cf.samples != 0 {
			t.Fatalf("sampled %d columns, want 0", cf.samples)
		}
	})
}

func TestTypesRejectsInvalidDeclaredType(t *testing.T) {
	t.Parallel()

	f := newMemFrame(t)
	_, err := Types(context.Background(), f, map[string]logical.Type{"id": {}})
	if err == nil {
		t.Fatalf("Types accepted a zero logical type")
	}
}

//
// Normalize
//

// restricted mimics an engine without nullable ints/bools, dedicated
// strings, dictionary encoding, or durations.
var restricted = backend.Capabilities{
	Kind:      "restricted-test",
	Deferred:  false,
	Supported: []dtype.Kind{dtype.Int64, dtype.Float64, dtype.Bool, dtype.Object, dtype.Datetime},
}

var full = backend.Capabilities{
	Kind:     "full-test",
	Deferred: false,
	Supported: []dtype.Kind{
		dtype.Int64, dtype.Int64N, dtype.Float64, dtype.Bool, dtype.BoolN,
		dtype.String, dtype.Object, dtype.Category, dtype.Datetime, dtype.Timedelta,
	},
}

func TestNormalizePrefersPrimary(t *testing.T) {
	t.Parallel()

	f := newMemFrame(t)
	phys, fellBack, err := Normalize(context.Background(), f, "id", logical.Integer, full)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if phys != dtype.Int64N || fellBack {
		t.Fatalf("Normalize = (%v, fellBack=%v), want (Int64, false)", phys, fellBack)
	}
}

func TestNormalizeFallbackMatrix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		lt       logical.Type
		wantPhys dtype.Kind
	}{
		{name: "integer to plain int", lt: logical.Integer, wantPhys: dtype.Int64},
		{name: "natural language to object", lt: logical.NaturalLanguage, wantPhys: dtype.Object},
		{name: "categorical to object", lt: logical.Categorical, wantPhys: dtype.Object},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newMemFrame(t)
			phys, fellBack, err := Normalize(context.Background(), f, "id", tt.lt, restricted)
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if !fellBack {
				t.Fatalf("fallback not reported")
			}
			if phys != tt.wantPhys {
				t.Fatalf("physical = %v, want %v", phys, tt.wantPhys)
			}
		})
	}
}

func TestNormalizeBooleanFallbackFillsFalse(t *testing.T) {
	t.Parallel()

	cols := backend.NewColumns()
	vals, valid := vector.NullStrings([]string{"true", "", "no"})
	if err := cols.Add("flag", vector.StringValues(vals, valid)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	f, err := mem.New(cols)
	if err != nil {
		t.Fatalf("mem.New: %v", err)
	}

	phys, fellBack, err := Normalize(context.Background(), f, "flag", logical.Boolean, restricted)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if phys != dtype.Bool || !fellBack {
		t.Fatalf("Normalize = (%v, %v), want (bool, true)", phys, fellBack)
	}

	v, err := f.Sample(context.Background(), "flag")
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	want := []bool{true, false, false}
	for i := range want {
		if v.IsNull(i) {
			t.Fatalf("row %d still null after plain-bool fallback", i)
		}
		if v.Value(i) != want[i] {
			t.Fatalf("row %d = %v, want %v", i, v.Value(i), want[i])
		}
	}
}

func TestNormalizeTimedeltaUnsupportedOnRestrictedBackend(t *testing.T) {
	t.Parallel()

	f := newMemFrame(t)
	_, _, err := Normalize(context.Background(), f, "id", logical.Timedelta, restricted)
	if !errors.Is(err, backend.ErrUnsupportedType) {
		t.Fatalf("Normalize error = %v, want ErrUnsupportedType", err)
	}
}

func TestNormalizeIncompatibleDataIsImmediateOnEagerBackend(t *testing.T) {
	t.Parallel()

	f := newMemFrame(t)
	_, _, err := Normalize(context.Background(), f, "note", logical.Integer, full)
	if !errors.Is(err, backend.ErrIncompatibleData) {
		t.Fatalf("Normalize error = %v, want ErrIncompatibleData", err)
	}
}
