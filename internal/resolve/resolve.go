// Package resolve implements the typing core: logical-type resolution for
// every column of a frame, and dtype normalization with backend-aware
// fallback. Tables drive it at construction and again, per column, on type
// mutations.
package resolve

import (
	"context"
	"fmt"

	"tabular/pkg/backend"
	"tabular/pkg/dtype"
	"tabular/pkg/logical"
)

// Resolved pairs a column with its logical type.
type Resolved struct {
	Name string
	Type logical.Type
	// Inferred is false when the type was declared by the caller.
	Inferred bool
}

// Types determines the logical type of every column in frame order.
// Declared entries are taken as-is and cost nothing; the rest are inferred
// from a sample, which is the whole column on an eager backend and a bounded
// prefix on a deferred one. When every column is declared no data is touched
// at all.
func Types(ctx context.Context, f backend.Frame, declared map[string]logical.Type) ([]Resolved, error) {
	names := f.ColumnNames()
	out := make([]Resolved, 0, len(names))
	for _, n := range names {
		if lt, ok := declared[n]; ok {
			if !lt.Valid() {
				return nil, fmt.Errorf("resolve: column %q: invalid logical type %+v", n, lt)
			}
			out = append(out, Resolved{Name: n, Type: lt})
			continue
		}
		sample, err := f.Sample(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("resolve: sample column %q: %w", n, err)
		}
		out = append(out, Resolved{Name: n, Type: InferType(sample), Inferred: true})
	}
	return out, nil
}

// Normalize casts one column to the representation its logical type needs on
// the given backend: the preferred representation when supported, otherwise
// the type's fallback. fellBack reports that the fallback was used.
//
// Errors:
//   - backend.ErrUnsupportedType when neither representation is available;
//     phys is dtype.Invalid.
//   - backend.ErrIncompatibleData from eager backends whose cast fails now;
//     phys reports the representation the cast attempted. Deferred backends
//     record the cast and surface failures at materialization instead.
func Normalize(ctx context.Context, f backend.Frame, column string, lt logical.Type, caps backend.Capabilities) (phys dtype.Kind, fellBack bool, err error) {
	target := lt.Primary
	if !caps.Supports(target) {
		if !lt.HasFallback() || !caps.Supports(lt.Backup) {
			return dtype.Invalid, false, fmt.Errorf("resolve: column %q: logical type %s needs dtype %s: %w on kind=%s",
				column, lt, lt.Primary, backend.ErrUnsupportedType, caps.Kind)
		}
		target = lt.Backup
		fellBack = true
	}
	if err := f.CastColumn(ctx, column, target); err != nil {
		return target, fellBack, err
	}
	return target, fellBack, nil
}
