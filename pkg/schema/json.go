package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"tabular/pkg/dtype"
	"tabular/pkg/logical"
)

// Version is written into serialized schemas. Readers accept any document
// sharing the same major version.
const Version = "1.0"

type jsonSchema struct {
	SchemaVersion   string         `json:"schema_version"`
	Name            string         `json:"name,omitempty"`
	Index           string         `json:"index,omitempty"`
	TimeIndex       string         `json:"time_index,omitempty"`
	UseStandardTags bool           `json:"use_standard_tags"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Columns         []jsonColumn   `json:"columns"`
}

type jsonColumn struct {
	Name         string         `json:"name"`
	LogicalType  string         `json:"logical_type"`
	Order        []string       `json:"order,omitempty"`
	PhysicalType string         `json:"physical_type,omitempty"`
	SemanticTags []string       `json:"semantic_tags,omitempty"`
	Description  string         `json:"description,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (s *Schema) MarshalJSON() ([]byte, error) {
	doc := jsonSchema{
		SchemaVersion:   Version,
		Name:            s.name,
		Index:           s.index,
		TimeIndex:       s.timeIndex,
		UseStandardTags: s.useStandardTags,
		Metadata:        s.metadata,
	}
	for _, c := range s.cols {
		doc.Columns = append(doc.Columns, jsonColumn{
			Name:         c.Name,
			LogicalType:  c.Logical.Name,
			Order:        c.Logical.Order,
			PhysicalType: c.Physical.String(),
			SemanticTags: c.Tags.List(),
			Description:  c.Description,
			Metadata:     c.Metadata,
		})
	}
	return json.Marshal(doc)
}

// UnmarshalJSON implements json.Unmarshaler. Logical types resolve through
// the registry; ordinal columns restore their declared order.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var doc jsonSchema
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("schema: decode: %w", err)
	}
	if doc.SchemaVersion == "" {
		return fmt.Errorf("schema: missing schema_version")
	}
	if major := strings.SplitN(doc.SchemaVersion, ".", 2)[0]; major != strings.SplitN(Version, ".", 2)[0] {
		return fmt.Errorf("schema: unsupported schema_version %q", doc.SchemaVersion)
	}

	out := New(doc.Name, doc.UseStandardTags)
	out.metadata = doc.Metadata
	for _, jc := range doc.Columns {
		lt, err := logical.Lookup(jc.LogicalType)
		if err != nil {
			return fmt.Errorf("schema: column %q: %w", jc.Name, err)
		}
		if lt.IsOrdinal() && len(jc.Order) > 0 {
			lt = logical.NewOrdinal(jc.Order...)
		}
		phys := lt.Primary
		if jc.PhysicalType != "" {
			phys, err = dtype.ParseKind(jc.PhysicalType)
			if err != nil {
				return fmt.Errorf("schema: column %q: %w", jc.Name, err)
			}
		}
		if err := out.AddColumn(jc.Name, lt, phys); err != nil {
			return err
		}
		// Serialized tags are authoritative; they already include standard
		// tags and exclude the index tags, which the setters below restore.
		i := out.byName[jc.Name]
		out.cols[i].Tags = NewTags()
		for _, t := range jc.SemanticTags {
			if t == logical.TagIndex || t == logical.TagTimeIndex {
				continue
			}
			out.cols[i].Tags[t] = struct{}{}
		}
		out.cols[i].Description = jc.Description
		out.cols[i].Metadata = jc.Metadata
	}
	if doc.Index != "" {
		if err := out.SetIndex(doc.Index); err != nil {
			return err
		}
	}
	if doc.TimeIndex != "" {
		if err := out.SetTimeIndex(doc.TimeIndex); err != nil {
			return err
		}
	}
	*s = *out
	return nil
}
