package table

import (
	"context"
	"fmt"

	"tabular/pkg/logical"
	"tabular/pkg/schema"
	"tabular/pkg/vector"
)

// Select returns a new table holding the columns whose logical type or
// semantic tags match any of the given terms, in the original column order.
// A term that names a registered logical type (matched the way
// logical.Lookup matches, folding case and separators) selects by type;
// any other term selects columns carrying it as a tag. The index
// designations survive only when the designated columns are kept.
//
// Edge cases:
//   - A term matching nothing contributes nothing; selecting nothing yields
//     a table with zero columns.
//   - The returned table shares data with the receiver on every backend;
//     deferred plans are carried along for the kept columns.
func (t *Table) Select(terms ...string) (*Table, error) {
	if len(terms) == 0 {
		return nil, fmt.Errorf("table: Select needs at least one term")
	}
	var types []logical.Type
	var tags []string
	for _, term := range terms {
		if lt, err := logical.Lookup(term); err == nil {
			types = append(types, lt)
			continue
		}
		tags = append(tags, term)
	}

	var keep []string
	for _, c := range t.schema.Columns() {
		if matchesColumn(c, types, tags) {
			keep = append(keep, c.Name)
		}
	}
	return t.project(keep)
}

// Drop returns a new table without the named columns.
func (t *Table) Drop(names ...string) (*Table, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("table: Drop needs at least one column")
	}
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, ok := t.schema.Column(n); !ok {
			return nil, fmt.Errorf("table: unknown column %q", n)
		}
		drop[n] = struct{}{}
	}
	var keep []string
	for _, n := range t.schema.Names() {
		if _, gone := drop[n]; !gone {
			keep = append(keep, n)
		}
	}
	return t.project(keep)
}

// Pop removes the named column from the table and returns its data and
// metadata. On a deferred backend only the popped column is materialized,
// with any pending cast applied; the remaining table stays deferred.
//
// Errors:
//   - Unknown column, or popping the only remaining column.
//   - backend.ErrIncompatibleData when the popped column's pending cast
//     fails.
func (t *Table) Pop(ctx context.Context, name string) (vector.Vector, schema.Column, error) {
	col, ok := t.schema.Column(name)
	if !ok {
		return nil, schema.Column{}, fmt.Errorf("table: unknown column %q", name)
	}
	if t.schema.NumColumns() == 1 {
		return nil, schema.Column{}, fmt.Errorf("table: cannot pop the only column %q", name)
	}

	single, err := t.frame.Project([]string{name})
	if err != nil {
		return nil, schema.Column{}, fmt.Errorf("table: %w", err)
	}
	data, err := single.Materialize(ctx)
	if err != nil {
		return nil, schema.Column{}, err
	}
	v, _ := data.Vector(name)

	keep := make([]string, 0, t.schema.NumColumns()-1)
	for _, n := range t.schema.Names() {
		if n != name {
			keep = append(keep, n)
		}
	}
	rest, err := t.project(keep)
	if err != nil {
		return nil, schema.Column{}, err
	}
	t.frame = rest.frame
	t.schema = rest.schema
	t.logf("stage=pop ok column=%s", name)
	return v, col, nil
}

func (t *Table) project(keep []string) (*Table, error) {
	frame, err := t.frame.Project(keep)
	if err != nil {
		return nil, fmt.Errorf("table: %w", err)
	}
	sch, err := t.schema.Project(keep)
	if err != nil {
		return nil, fmt.Errorf("table: %w", err)
	}
	return &Table{frame: frame, schema: sch, caps: t.caps, logf: t.logf, metrics: t.metrics}, nil
}

func matchesColumn(c schema.Column, types []logical.Type, tags []string) bool {
	for _, lt := range types {
		if lt.Name == c.Logical.Name {
			return true
		}
	}
	for _, tag := range tags {
		if c.Tags.Has(tag) {
			return true
		}
	}
	return false
}
