// Package mem provides the eager in-memory backend: data is fully resident,
// casts execute immediately, and materialization is a no-op.
package mem

import (
	"context"
	"fmt"

	"tabular/pkg/backend"
	"tabular/pkg/dtype"
	"tabular/pkg/vector"
)

func init() {
	backend.Register(backend.Capabilities{
		Kind:     backend.Memory,
		Deferred: false,
		Supported: []dtype.Kind{
			dtype.Int64, dtype.Int64N, dtype.Float64, dtype.Bool, dtype.BoolN,
			dtype.String, dtype.Object, dtype.Category, dtype.Datetime, dtype.Timedelta,
		},
	})
}

// Frame holds columns directly in memory.
type Frame struct {
	cols *backend.Columns
}

var _ backend.Frame = (*Frame)(nil)

// New wraps resident columns in an eager frame. The frame takes ownership
// of cols.
func New(cols *backend.Columns) (*Frame, error) {
	if cols == nil || cols.NumCols() == 0 {
		return nil, fmt.Errorf("memory: frame with no columns")
	}
	return &Frame{cols: cols}, nil
}

// Kind implements backend.Frame.
func (f *Frame) Kind() backend.Kind { return backend.Memory }

// ColumnNames implements backend.Frame.
func (f *Frame) ColumnNames() []string { return f.cols.Names() }

// Rows reports the resident row count.
func (f *Frame) Rows() int { return f.cols.Rows() }

// Sample implements backend.Frame. Eager frames sample the whole column.
func (f *Frame) Sample(_ context.Context, column string) (vector.Vector, error) {
	v, ok := f.cols.Vector(column)
	if !ok {
		return nil, fmt.Errorf("memory: unknown column %q", column)
	}
	return v, nil
}

// CastColumn implements backend.Frame. The cast runs now; a failure is
// reported immediately as ErrIncompatibleData.
func (f *Frame) CastColumn(_ context.Context, column string, to dtype.Kind) error {
	v, ok := f.cols.Vector(column)
	if !ok {
		return fmt.Errorf("memory: unknown column %q", column)
	}
	cast, err := vector.Cast(v, to)
	if err != nil {
		return backend.IncompatibleData(backend.Memory, column, err)
	}
	return f.cols.Replace(column, cast)
}

// AppendColumn adds a new column to the frame.
func (f *Frame) AppendColumn(name string, v vector.Vector) error {
	return f.cols.Add(name, v)
}

// Project implements backend.Frame. The returned frame shares column data
// with the receiver.
func (f *Frame) Project(columns []string) (backend.Frame, error) {
	sub, err := f.cols.Project(columns)
	if err != nil {
		return nil, fmt.Errorf("memory: %w", err)
	}
	return &Frame{cols: sub}, nil
}

// Clone implements backend.Frame with a deep copy of the data.
func (f *Frame) Clone() backend.Frame {
	return &Frame{cols: f.cols.Clone()}
}

// Materialize implements backend.Frame. The data is already resident; the
// returned columns share the frame's vectors.
func (f *Frame) Materialize(context.Context) (*backend.Columns, error) {
	return f.cols, nil
}
