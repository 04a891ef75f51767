// Package chunk provides the deferred partition-local backend. It supports
// the full physical type set; what distinguishes it from the memory backend
// is evaluation: casts are plan nodes, and type inference reads only the
// first partition instead of the whole dataset.
package chunk

import (
	"fmt"

	"tabular/pkg/backend"
	"tabular/pkg/dtype"
)

func init() {
	backend.Register(backend.Capabilities{
		Kind:           backend.Chunked,
		Deferred:       true,
		FirstPartition: true,
		Supported: []dtype.Kind{
			dtype.Int64, dtype.Int64N, dtype.Float64, dtype.Bool, dtype.BoolN,
			dtype.String, dtype.Object, dtype.Category, dtype.Datetime, dtype.Timedelta,
		},
	})
}

// New builds a chunked frame over the given partitions.
func New(names []string, parts []backend.Partition) (*backend.Deferred, error) {
	return backend.NewDeferred(backend.Chunked, names, parts)
}

// FromColumns splits resident columns into nparts partitions of roughly
// equal row ranges. Useful in tests and for promoting eager data to the
// deferred path.
func FromColumns(cols *backend.Columns, nparts int) (*backend.Deferred, error) {
	parts, err := splitColumns(cols, nparts)
	if err != nil {
		return nil, err
	}
	return New(cols.Names(), parts)
}

func splitColumns(cols *backend.Columns, nparts int) ([]backend.Partition, error) {
	if cols == nil || cols.NumCols() == 0 {
		return nil, fmt.Errorf("chunk: no columns to partition")
	}
	if nparts <= 0 {
		return nil, fmt.Errorf("chunk: nparts must be positive, got %d", nparts)
	}
	rows := cols.Rows()
	if nparts > rows && rows > 0 {
		nparts = rows
	}
	if rows == 0 {
		nparts = 1
	}

	names := cols.Names()
	parts := make([]backend.Partition, 0, nparts)
	per := (rows + nparts - 1) / nparts
	for lo := 0; ; lo += per {
		hi := lo + per
		if hi > rows {
			hi = rows
		}
		sub := backend.NewColumns()
		for _, n := range names {
			v, _ := cols.Vector(n)
			if err := sub.Add(n, v.Slice(lo, hi)); err != nil {
				return nil, err
			}
		}
		parts = append(parts, backend.Static(sub))
		if hi >= rows {
			break
		}
	}
	return parts, nil
}
