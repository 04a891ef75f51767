// Package schema models the typing metadata of a table: per-column logical
// types, physical representations, semantic tags, descriptions, and the
// index/time-index designations. A schema says nothing about where the data
// lives; pkg/table pairs it with a backend frame.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"tabular/pkg/dtype"
	"tabular/pkg/logical"
)

// Tags is a set of semantic tags on one column.
type Tags map[string]struct{}

// NewTags builds a tag set.
func NewTags(vals ...string) Tags {
	t := make(Tags, len(vals))
	for _, v := range vals {
		t[v] = struct{}{}
	}
	return t
}

// Has reports membership.
func (t Tags) Has(tag string) bool {
	_, ok := t[tag]
	return ok
}

// List returns the tags sorted.
func (t Tags) List() []string {
	out := make([]string, 0, len(t))
	for tag := range t {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (t Tags) Clone() Tags {
	out := make(Tags, len(t))
	for tag := range t {
		out[tag] = struct{}{}
	}
	return out
}

// Equal reports set equality.
func (t Tags) Equal(o Tags) bool {
	if len(t) != len(o) {
		return false
	}
	for tag := range t {
		if !o.Has(tag) {
			return false
		}
	}
	return true
}

// Column is the typing metadata of one column.
type Column struct {
	Name string
	// Logical is the semantic classification of the column.
	Logical logical.Type
	// Physical is the representation the data actually landed on after
	// normalization; it may be the logical type's fallback.
	Physical dtype.Kind
	// Tags are the column's semantic tags, standard and user-assigned.
	Tags Tags
	// Description is free-form documentation for the column.
	Description string
	// Metadata holds arbitrary caller data attached to the column.
	Metadata map[string]any
}

// IsIndex reports whether the column carries the index tag.
func (c Column) IsIndex() bool { return c.Tags.Has(logical.TagIndex) }

// IsTimeIndex reports whether the column carries the time index tag.
func (c Column) IsTimeIndex() bool { return c.Tags.Has(logical.TagTimeIndex) }

// Schema is the ordered typing metadata of a whole table.
type Schema struct {
	name            string
	cols            []Column
	byName          map[string]int
	index           string
	timeIndex       string
	useStandardTags bool
	metadata        map[string]any
}

// New returns an empty schema.
func New(name string, useStandardTags bool) *Schema {
	return &Schema{
		name:            name,
		byName:          map[string]int{},
		useStandardTags: useStandardTags,
	}
}

// Name returns the table name.
func (s *Schema) Name() string { return s.name }

// SetName replaces the table name.
func (s *Schema) SetName(name string) { s.name = name }

// UseStandardTags reports whether logical types contribute their standard
// tags to columns.
func (s *Schema) UseStandardTags() bool { return s.useStandardTags }

// Metadata returns table-level metadata, allocating it on first use.
func (s *Schema) Metadata() map[string]any {
	if s.metadata == nil {
		s.metadata = map[string]any{}
	}
	return s.metadata
}

// SetMetadata replaces table-level metadata.
func (s *Schema) SetMetadata(m map[string]any) { s.metadata = m }

// Index returns the index column name, empty when unset.
func (s *Schema) Index() string { return s.index }

// TimeIndex returns the time index column name, empty when unset.
func (s *Schema) TimeIndex() string { return s.timeIndex }

// NumColumns reports the column count.
func (s *Schema) NumColumns() int { return len(s.cols) }

// Names returns column names in order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.cols))
	for i, c := range s.cols {
		out[i] = c.Name
	}
	return out
}

// Columns returns a copy of the column metadata in order.
func (s *Schema) Columns() []Column {
	out := make([]Column, len(s.cols))
	for i, c := range s.cols {
		c.Tags = c.Tags.Clone()
		out[i] = c
	}
	return out
}

// Column returns one column's metadata.
func (s *Schema) Column(name string) (Column, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Column{}, false
	}
	c := s.cols[i]
	c.Tags = c.Tags.Clone()
	return c, true
}

// AddColumn appends column metadata. The column's tags are initialized from
// its logical type when standard tags are enabled, then extended with
// userTags.
func (s *Schema) AddColumn(name string, lt logical.Type, phys dtype.Kind, userTags ...string) error {
	if name == "" {
		return fmt.Errorf("schema: column with empty name")
	}
	if _, dup := s.byName[name]; dup {
		return fmt.Errorf("schema: duplicate column %q", name)
	}
	tags := NewTags()
	if s.useStandardTags {
		tags = NewTags(lt.StandardTags...)
	}
	for _, t := range userTags {
		tags[t] = struct{}{}
	}
	s.byName[name] = len(s.cols)
	s.cols = append(s.cols, Column{Name: name, Logical: lt, Physical: phys, Tags: tags})
	return nil
}

// SetType replaces a column's logical type and physical representation.
// Semantic tags reset to the new type's standard tags; index and time index
// tags survive the change.
func (s *Schema) SetType(name string, lt logical.Type, phys dtype.Kind) error {
	i, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("schema: unknown column %q", name)
	}
	c := &s.cols[i]
	keepIndex := c.IsIndex()
	keepTime := c.IsTimeIndex()
	c.Logical = lt
	c.Physical = phys
	c.Tags = NewTags()
	if s.useStandardTags && !keepIndex {
		c.Tags = NewTags(lt.StandardTags...)
	}
	if keepIndex {
		c.Tags[logical.TagIndex] = struct{}{}
	}
	if keepTime {
		c.Tags[logical.TagTimeIndex] = struct{}{}
	}
	return nil
}

// AddTags extends a column's semantic tags.
//
// Errors:
//   - Unknown column.
//   - Attempting to assign the index or time index tag directly; the index
//     setters own those.
func (s *Schema) AddTags(name string, tags ...string) error {
	i, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("schema: unknown column %q", name)
	}
	for _, t := range tags {
		if t == logical.TagIndex || t == logical.TagTimeIndex {
			return fmt.Errorf("schema: tag %q is managed through the index setters", t)
		}
	}
	for _, t := range tags {
		s.cols[i].Tags[t] = struct{}{}
	}
	return nil
}

// RemoveTags removes semantic tags from a column. Removing a tag the column
// does not carry is an error, as is removing the index tags directly.
func (s *Schema) RemoveTags(name string, tags ...string) error {
	i, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("schema: unknown column %q", name)
	}
	for _, t := range tags {
		if t == logical.TagIndex || t == logical.TagTimeIndex {
			return fmt.Errorf("schema: tag %q is managed through the index setters", t)
		}
		if !s.cols[i].Tags.Has(t) {
			return fmt.Errorf("schema: column %q does not carry tag %q", name, t)
		}
	}
	for _, t := range tags {
		delete(s.cols[i].Tags, t)
	}
	return nil
}

// ResetTags restores a column's tags to its logical type's standard set.
// Index and time index designations survive.
func (s *Schema) ResetTags(name string) error {
	i, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("schema: unknown column %q", name)
	}
	c := &s.cols[i]
	keepIndex := c.IsIndex()
	keepTime := c.IsTimeIndex()
	c.Tags = NewTags()
	if s.useStandardTags && !keepIndex {
		c.Tags = NewTags(c.Logical.StandardTags...)
	}
	if keepIndex {
		c.Tags[logical.TagIndex] = struct{}{}
	}
	if keepTime {
		c.Tags[logical.TagTimeIndex] = struct{}{}
	}
	return nil
}

// SetIndex designates the index column. The previous index column (if any)
// gets its standard tags back; the new one's tags are replaced by the index
// tag. An empty name clears the designation.
func (s *Schema) SetIndex(name string) error {
	if name != "" {
		if _, ok := s.byName[name]; !ok {
			return fmt.Errorf("schema: unknown column %q", name)
		}
	}
	if prev := s.index; prev != "" && prev != name {
		i := s.byName[prev]
		c := &s.cols[i]
		keepTime := c.IsTimeIndex()
		c.Tags = NewTags()
		if s.useStandardTags {
			c.Tags = NewTags(c.Logical.StandardTags...)
		}
		if keepTime {
			c.Tags[logical.TagTimeIndex] = struct{}{}
		}
	}
	s.index = name
	if name == "" {
		return nil
	}
	c := &s.cols[s.byName[name]]
	keepTime := c.IsTimeIndex()
	c.Tags = NewTags(logical.TagIndex)
	if keepTime {
		c.Tags[logical.TagTimeIndex] = struct{}{}
	}
	return nil
}

// SetTimeIndex designates the time index column. The tag is added alongside
// the column's existing tags; the previous time index column loses it. An
// empty name clears the designation.
func (s *Schema) SetTimeIndex(name string) error {
	if name != "" {
		if _, ok := s.byName[name]; !ok {
			return fmt.Errorf("schema: unknown column %q", name)
		}
	}
	if prev := s.timeIndex; prev != "" && prev != name {
		delete(s.cols[s.byName[prev]].Tags, logical.TagTimeIndex)
	}
	s.timeIndex = name
	if name == "" {
		return nil
	}
	s.cols[s.byName[name]].Tags[logical.TagTimeIndex] = struct{}{}
	return nil
}

// SetDescription sets a column's description.
func (s *Schema) SetDescription(name, desc string) error {
	i, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("schema: unknown column %q", name)
	}
	s.cols[i].Description = desc
	return nil
}

// SetColumnMetadata replaces a column's metadata map.
func (s *Schema) SetColumnMetadata(name string, md map[string]any) error {
	i, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("schema: unknown column %q", name)
	}
	s.cols[i].Metadata = md
	return nil
}

// Project returns a new schema holding the named columns in the given
// order. Index designations survive only when the designated column is
// kept.
func (s *Schema) Project(names []string) (*Schema, error) {
	out := New(s.name, s.useStandardTags)
	out.metadata = s.metadata
	for _, n := range names {
		i, ok := s.byName[n]
		if !ok {
			return nil, fmt.Errorf("schema: unknown column %q", n)
		}
		c := s.cols[i]
		c.Tags = c.Tags.Clone()
		out.byName[n] = len(out.cols)
		out.cols = append(out.cols, c)
		if s.index == n {
			out.index = n
		}
		if s.timeIndex == n {
			out.timeIndex = n
		}
	}
	return out, nil
}

// Clone returns an independent deep copy.
func (s *Schema) Clone() *Schema {
	out := New(s.name, s.useStandardTags)
	out.index = s.index
	out.timeIndex = s.timeIndex
	if s.metadata != nil {
		out.metadata = make(map[string]any, len(s.metadata))
		for k, v := range s.metadata {
			out.metadata[k] = v
		}
	}
	for _, c := range s.cols {
		c.Tags = c.Tags.Clone()
		if c.Metadata != nil {
			md := make(map[string]any, len(c.Metadata))
			for k, v := range c.Metadata {
				md[k] = v
			}
			c.Metadata = md
		}
		out.byName[c.Name] = len(out.cols)
		out.cols = append(out.cols, c)
	}
	return out
}

// Equal reports structural equality: same column names in order, same
// logical types, same semantic tags, same index and time index
// designations. Physical representations, descriptions and metadata do not
// participate.
func (s *Schema) Equal(o *Schema) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.index != o.index || s.timeIndex != o.timeIndex {
		return false
	}
	if len(s.cols) != len(o.cols) {
		return false
	}
	for i, c := range s.cols {
		oc := o.cols[i]
		if c.Name != oc.Name || !c.Logical.Equal(oc.Logical) || !c.Tags.Equal(oc.Tags) {
			return false
		}
	}
	return true
}

// String renders the schema as an aligned summary table.
func (s *Schema) String() string {
	nameW, physW, logW := len("Column"), len("Physical Type"), len("Logical Type")
	for _, c := range s.cols {
		if n := len(c.Name); n > nameW {
			nameW = n
		}
		if n := len(c.Physical.String()); n > physW {
			physW = n
		}
		if n := len(c.Logical.Name); n > logW {
			logW = n
		}
	}

	var b strings.Builder
	if s.name != "" {
		fmt.Fprintf(&b, "table=%s\n", s.name)
	}
	fmt.Fprintf(&b, "%-*s  %-*s  %-*s  %s\n", nameW, "Column", physW, "Physical Type", logW, "Logical Type", "Semantic Tag(s)")
	for _, c := range s.cols {
		fmt.Fprintf(&b, "%-*s  %-*s  %-*s  %s\n",
			nameW, c.Name, physW, c.Physical.String(), logW, c.Logical.Name,
			strings.Join(c.Tags.List(), ", "))
	}
	return b.String()
}
