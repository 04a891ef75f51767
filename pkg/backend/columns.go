package backend

import (
	"fmt"

	"tabular/pkg/vector"
)

// Columns is an ordered collection of named column vectors, the concrete
// result of materializing a frame. All columns hold the same number of rows.
type Columns struct {
	names []string
	vecs  map[string]vector.Vector
}

// NewColumns returns an empty collection.
func NewColumns() *Columns {
	return &Columns{vecs: map[string]vector.Vector{}}
}

// Add appends a named column.
//
// Errors:
//   - If the name is empty or already present.
//   - If the vector's row count differs from the existing columns'.
func (c *Columns) Add(name string, v vector.Vector) error {
	if name == "" {
		return fmt.Errorf("backend: column with empty name")
	}
	if v == nil {
		return fmt.Errorf("backend: column %q with nil vector", name)
	}
	if _, exists := c.vecs[name]; exists {
		return fmt.Errorf("backend: duplicate column %q", name)
	}
	if len(c.names) > 0 {
		if rows := c.vecs[c.names[0]].Len(); v.Len() != rows {
			return fmt.Errorf("backend: column %q has %d rows, want %d", name, v.Len(), rows)
		}
	}
	c.names = append(c.names, name)
	c.vecs[name] = v
	return nil
}

// Names returns the column names in order. The slice is a copy.
func (c *Columns) Names() []string {
	return append([]string(nil), c.names...)
}

// Vector returns the column data for a name.
func (c *Columns) Vector(name string) (vector.Vector, bool) {
	v, ok := c.vecs[name]
	return v, ok
}

// Replace swaps the data of an existing column.
func (c *Columns) Replace(name string, v vector.Vector) error {
	if _, ok := c.vecs[name]; !ok {
		return fmt.Errorf("backend: unknown column %q", name)
	}
	if rows := c.Rows(); v.Len() != rows {
		return fmt.Errorf("backend: column %q has %d rows, want %d", name, v.Len(), rows)
	}
	c.vecs[name] = v
	return nil
}

// NumCols reports the number of columns.
func (c *Columns) NumCols() int { return len(c.names) }

// Rows reports the number of rows (zero for an empty collection).
func (c *Columns) Rows() int {
	if len(c.names) == 0 {
		return 0
	}
	return c.vecs[c.names[0]].Len()
}

// Project returns a new collection holding the named columns in the given
// order. The vectors are shared, not copied.
func (c *Columns) Project(names []string) (*Columns, error) {
	out := NewColumns()
	for _, n := range names {
		v, ok := c.vecs[n]
		if !ok {
			return nil, fmt.Errorf("backend: unknown column %q", n)
		}
		if err := out.Add(n, v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Clone returns a deep copy.
func (c *Columns) Clone() *Columns {
	out := NewColumns()
	for _, n := range c.names {
		// Add cannot fail here: names are unique and lengths agree.
		_ = out.Add(n, c.vecs[n].Clone())
	}
	return out
}

// Equal reports whether two collections hold the same columns in the same
// order with equal data.
func (c *Columns) Equal(o *Columns) bool {
	if c == nil || o == nil {
		return c == o
	}
	if len(c.names) != len(o.names) {
		return false
	}
	for i, n := range c.names {
		if o.names[i] != n {
			return false
		}
		if !vector.Equal(c.vecs[n], o.vecs[n]) {
			return false
		}
	}
	return true
}
