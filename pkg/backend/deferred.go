package backend

import (
	"context"
	"fmt"

	"tabular/pkg/dtype"
	"tabular/pkg/vector"
)

// Partition lazily yields one horizontal slice of a deferred frame's data.
//
// IMPORTANT: Load may be called more than once and must return equivalent
// data each time. Returned columns are treated as immutable and may be
// retained by the frame.
type Partition interface {
	Load(ctx context.Context) (*Columns, error)
}

// PartitionFunc adapts a function to the Partition interface.
type PartitionFunc func(ctx context.Context) (*Columns, error)

// Load implements Partition.
func (f PartitionFunc) Load(ctx context.Context) (*Columns, error) { return f(ctx) }

// Static wraps already-resident columns as a Partition.
func Static(cols *Columns) Partition {
	return PartitionFunc(func(context.Context) (*Columns, error) { return cols, nil })
}

type castOp struct {
	column string
	to     dtype.Kind
}

// Deferred is the plan-carrying frame shared by the deferred backend kinds.
// It records casts instead of executing them; partitions are loaded for
// bounded inference samples and, in full, at materialization. Methods follow
// the single-writer discipline described on Frame.
type Deferred struct {
	kind  Kind
	names []string
	parts []Partition
	ops   []castOp

	// loaded caches the results of parts[0:len(loaded)]; sampling fills the
	// prefix it needs and materialization extends it to every partition.
	loaded []*Columns
}

var _ Frame = (*Deferred)(nil)

// NewDeferred builds a deferred frame over at least one partition. Column
// names must be unique; partitions are loaded lazily and must carry every
// named column.
func NewDeferred(kind Kind, names []string, parts []Partition) (*Deferred, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("backend: deferred frame with no columns")
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("backend: deferred frame with no partitions")
	}
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n == "" {
			return nil, fmt.Errorf("backend: column with empty name")
		}
		if _, dup := seen[n]; dup {
			return nil, fmt.Errorf("backend: duplicate column %q", n)
		}
		seen[n] = struct{}{}
	}
	return &Deferred{
		kind:  kind,
		names: append([]string(nil), names...),
		parts: parts,
	}, nil
}

// Kind implements Frame.
func (d *Deferred) Kind() Kind { return d.kind }

// ColumnNames implements Frame. It never touches partition data.
func (d *Deferred) ColumnNames() []string {
	return append([]string(nil), d.names...)
}

// NumPartitions reports how many partitions back the frame.
func (d *Deferred) NumPartitions() int { return len(d.parts) }

// Sample implements Frame: it loads the smallest partition prefix the
// backend's sampling policy asks for and returns that bounded slice of the
// column. The sample reflects source data; pending casts are not applied.
func (d *Deferred) Sample(ctx context.Context, column string) (vector.Vector, error) {
	if err := d.checkColumn(column); err != nil {
		return nil, err
	}
	caps, err := Lookup(d.kind)
	if err != nil {
		return nil, err
	}

	bound := caps.InferenceRows
	if caps.FirstPartition || bound <= 0 {
		if err := d.loadPrefix(ctx, 1, -1); err != nil {
			return nil, err
		}
	} else if err := d.loadPrefix(ctx, len(d.parts), bound); err != nil {
		return nil, err
	}

	v, err := d.prefixColumn(column)
	if err != nil {
		return nil, err
	}
	if !caps.FirstPartition && bound > 0 && v.Len() > bound {
		v = v.Slice(0, bound)
	}
	return v, nil
}

// loadPrefix extends the loaded-chunk cache until maxParts partitions are
// resident or rowBound rows have accumulated (rowBound < 0 means no row
// bound).
func (d *Deferred) loadPrefix(ctx context.Context, maxParts, rowBound int) error {
	rows := 0
	for _, c := range d.loaded {
		rows += c.Rows()
	}
	for len(d.loaded) < maxParts {
		if rowBound >= 0 && rows >= rowBound {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk, err := d.parts[len(d.loaded)].Load(ctx)
		if err != nil {
			return fmt.Errorf("%s: load partition %d: %w", d.kind, len(d.loaded), err)
		}
		if chunk == nil {
			return fmt.Errorf("%s: partition %d returned no columns", d.kind, len(d.loaded))
		}
		for _, n := range d.names {
			if _, ok := chunk.Vector(n); !ok {
				return fmt.Errorf("%s: partition %d is missing column %q", d.kind, len(d.loaded), n)
			}
		}
		d.loaded = append(d.loaded, chunk)
		rows += chunk.Rows()
	}
	return nil
}

// prefixColumn concatenates a column across the loaded chunks.
func (d *Deferred) prefixColumn(column string) (vector.Vector, error) {
	vs := make([]vector.Vector, 0, len(d.loaded))
	for _, c := range d.loaded {
		v, _ := c.Vector(column)
		vs = append(vs, v)
	}
	out, err := vector.Concat(vs...)
	if err != nil {
		return nil, fmt.Errorf("%s: column %q: %w", d.kind, column, err)
	}
	return out, nil
}

// CastColumn implements Frame: the cast is recorded, never executed here.
// Data problems surface at Materialize.
func (d *Deferred) CastColumn(_ context.Context, column string, to dtype.Kind) error {
	if err := d.checkColumn(column); err != nil {
		return err
	}
	if !to.Valid() {
		return fmt.Errorf("%s: cast column %q to invalid dtype", d.kind, column)
	}
	d.ops = append(d.ops, castOp{column: column, to: to})
	return nil
}

// Project implements Frame. The plan is carried along for kept columns.
func (d *Deferred) Project(columns []string) (Frame, error) {
	keep := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if err := d.checkColumn(c); err != nil {
			return nil, err
		}
		if _, dup := keep[c]; dup {
			return nil, fmt.Errorf("%s: duplicate column %q in projection", d.kind, c)
		}
		keep[c] = struct{}{}
	}
	var ops []castOp
	for _, op := range d.ops {
		if _, ok := keep[op.column]; ok {
			ops = append(ops, op)
		}
	}
	return &Deferred{
		kind:   d.kind,
		names:  append([]string(nil), columns...),
		parts:  d.parts,
		ops:    ops,
		loaded: d.loaded,
	}, nil
}

// Clone implements Frame: the plan is copied, source partitions and any
// loaded chunks are shared (both are immutable).
func (d *Deferred) Clone() Frame {
	return &Deferred{
		kind:   d.kind,
		names:  append([]string(nil), d.names...),
		parts:  d.parts,
		ops:    append([]castOp(nil), d.ops...),
		loaded: append([]*Columns(nil), d.loaded...),
	}
}

// Materialize implements Frame: every partition is loaded, columns are
// concatenated, and the recorded casts run in order. A failing cast aborts
// with ErrIncompatibleData, the same kind an eager backend raises at
// construction.
func (d *Deferred) Materialize(ctx context.Context) (*Columns, error) {
	if err := d.loadPrefix(ctx, len(d.parts), -1); err != nil {
		return nil, err
	}

	out := NewColumns()
	for _, n := range d.names {
		v, err := d.prefixColumn(n)
		if err != nil {
			return nil, err
		}
		if err := out.Add(n, v); err != nil {
			return nil, err
		}
	}

	for _, op := range d.ops {
		v, _ := out.Vector(op.column)
		cast, err := vector.Cast(v, op.to)
		if err != nil {
			return nil, IncompatibleData(d.kind, op.column, err)
		}
		if err := out.Replace(op.column, cast); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *Deferred) checkColumn(column string) error {
	for _, n := range d.names {
		if n == column {
			return nil
		}
	}
	return fmt.Errorf("%s: unknown column %q", d.kind, column)
}
