package table

import (
	"context"
	"fmt"
	"sort"

	"tabular/internal/resolve"
	"tabular/pkg/logical"
	"tabular/pkg/metrics"
)

// SetTypes replaces the logical types of the named columns and re-runs
// normalization for those columns only. Nothing is inferred and untouched
// columns keep their state.
//
// Edge cases:
//   - Columns are processed in name order. A normalization failure stops the
//     walk: columns processed before it keep their new types, the failing
//     one and the rest are unchanged.
//   - The time index column can only be set to Datetime.
//
// Errors:
//   - Unknown column or invalid logical type (detected up front, nothing
//     changes).
//   - backend.ErrUnsupportedType, backend.ErrIncompatibleData (eager),
//     logical.ErrOrdinalValue (eager) from per-column normalization.
func (t *Table) SetTypes(ctx context.Context, types map[string]logical.Type) error {
	for col, lt := range types {
		if _, ok := t.schema.Column(col); !ok {
			return fmt.Errorf("table: unknown column %q", col)
		}
		if !lt.Valid() {
			return fmt.Errorf("table: column %q: invalid logical type %+v", col, lt)
		}
		if col == t.schema.TimeIndex() && !lt.Equal(logical.Datetime) {
			return fmt.Errorf("table: column %q is the time index and must stay %s", col, logical.Datetime)
		}
	}

	names := make([]string, 0, len(types))
	for col := range types {
		names = append(names, col)
	}
	sort.Strings(names)

	for _, col := range names {
		lt := types[col]
		phys, fellBack, err := resolve.Normalize(ctx, t.frame, col, lt, t.caps)
		if err != nil {
			t.metrics.IncCounter(metrics.MetricCastsTotal, 1, metrics.Labels{"status": "error", "dtype": phys.String()})
			return err
		}
		t.metrics.IncCounter(metrics.MetricCastsTotal, 1, metrics.Labels{"status": "ok", "dtype": phys.String()})
		if fellBack {
			t.metrics.IncCounter(metrics.MetricFallbacksTotal, 1, metrics.Labels{"logical_type": lt.Name})
		}
		if !t.caps.Deferred && lt.IsOrdinal() {
			v, err := t.frame.Sample(ctx, col)
			if err != nil {
				return fmt.Errorf("table: sample column %q: %w", col, err)
			}
			if err := lt.ValidateData(v); err != nil {
				return fmt.Errorf("table: column %q: %w", col, err)
			}
		}
		if err := t.schema.SetType(col, lt, phys); err != nil {
			return fmt.Errorf("table: %w", err)
		}
		t.logf("stage=set_type ok column=%s logical_type=%s dtype=%s", col, lt, phys)
	}
	return nil
}

// SetIndex designates the index column; an empty name clears the
// designation. On an eager backend the column's values must be unique; on a
// deferred backend the check is skipped and uniqueness is the caller's
// responsibility.
func (t *Table) SetIndex(ctx context.Context, name string) error {
	if name != "" {
		if _, ok := t.schema.Column(name); !ok {
			return fmt.Errorf("table: unknown column %q", name)
		}
		if !t.caps.Deferred {
			v, err := t.frame.Sample(ctx, name)
			if err != nil {
				return fmt.Errorf("table: sample column %q: %w", name, err)
			}
			if err := checkUniqueIndex(v, name); err != nil {
				return err
			}
		}
	}
	if err := t.schema.SetIndex(name); err != nil {
		return fmt.Errorf("table: %w", err)
	}
	return nil
}

// SetTimeIndex designates the time index column; an empty name clears the
// designation. The column's logical type must be Datetime.
func (t *Table) SetTimeIndex(name string) error {
	if name != "" {
		c, ok := t.schema.Column(name)
		if !ok {
			return fmt.Errorf("table: unknown column %q", name)
		}
		if !c.Logical.Equal(logical.Datetime) {
			return fmt.Errorf("table: time index column %q has logical type %s, need %s",
				name, c.Logical, logical.Datetime)
		}
	}
	if err := t.schema.SetTimeIndex(name); err != nil {
		return fmt.Errorf("table: %w", err)
	}
	return nil
}

// AddTags extends a column's semantic tags. The index tags cannot be
// assigned this way.
func (t *Table) AddTags(column string, tags ...string) error {
	return t.schema.AddTags(column, tags...)
}

// RemoveTags removes semantic tags from a column. Removing an absent tag or
// an index tag is an error.
func (t *Table) RemoveTags(column string, tags ...string) error {
	return t.schema.RemoveTags(column, tags...)
}

// ResetTags restores a column's tags to its logical type's standard set.
// Index designations survive.
func (t *Table) ResetTags(column string) error {
	return t.schema.ResetTags(column)
}

// SetDescription sets a column's description.
func (t *Table) SetDescription(column, desc string) error {
	return t.schema.SetDescription(column, desc)
}

// SetColumnMetadata replaces a column's metadata map.
func (t *Table) SetColumnMetadata(column string, md map[string]any) error {
	return t.schema.SetColumnMetadata(column, md)
}

// SetMetadata replaces table-level metadata.
func (t *Table) SetMetadata(md map[string]any) { t.schema.SetMetadata(md) }

// SetName replaces the table name.
func (t *Table) SetName(name string) { t.schema.SetName(name) }
