package read

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"tabular/pkg/backend"
	"tabular/pkg/vector"
)

// decodeJSON parses JSON bytes into string columns. Accepted shapes:
//   - a top-level array of objects
//   - newline-delimited objects (NDJSON)
//   - an envelope object whose largest array-of-objects field holds the
//     records; an envelope without one is itself a single record
//
// Nested objects flatten into underscore-joined column names. The header
// set is the sorted union of keys across records; a record missing a key
// contributes a missing value.
func decodeJSON(data []byte) (*backend.Columns, error) {
	recs, err := jsonRecords(data)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("read: no json records found")
	}

	flat := make([]map[string]any, 0, len(recs))
	for _, r := range recs {
		m := make(map[string]any)
		flattenRecord("", r, m)
		flat = append(flat, m)
	}

	set := make(map[string]struct{})
	for _, r := range flat {
		for k := range r {
			set[k] = struct{}{}
		}
	}
	headers := make([]string, 0, len(set))
	for k := range set {
		headers = append(headers, k)
	}
	sort.Strings(headers)

	cols := backend.NewColumns()
	for _, h := range headers {
		vals := make([]string, len(flat))
		valid := make([]bool, len(flat))
		for r, rec := range flat {
			v, ok := rec[h]
			if !ok {
				continue
			}
			vals[r], valid[r] = renderJSONValue(v)
		}
		if err := cols.Add(h, vector.StringValues(vals, valid)); err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
	}
	return cols, nil
}

func jsonRecords(data []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read: decode json: %w", err)
	}

	var out []map[string]any
	switch v := root.(type) {
	case []any:
		for _, it := range v {
			if m, ok := it.(map[string]any); ok {
				out = append(out, m)
			}
		}
	case map[string]any:
		if slice := largestObjectSlice(v); slice != nil {
			out = slice
		} else {
			out = append(out, v)
		}
	default:
		return nil, fmt.Errorf("read: json root must be an object or array")
	}

	// NDJSON: keep decoding top-level objects.
	for {
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("read: decode json: %w", err)
		}
		out = append(out, obj)
	}
	return out, nil
}

// largestObjectSlice unwraps a records-like envelope without hard-coding
// field names: among the envelope's array-of-objects fields it picks the
// largest. Nil means no such field exists.
func largestObjectSlice(r map[string]any) []map[string]any {
	var best []map[string]any
	for _, v := range r {
		arr, ok := v.([]any)
		if !ok || len(arr) == 0 {
			continue
		}
		objs := make([]map[string]any, 0, len(arr))
		for _, elem := range arr {
			m, ok := elem.(map[string]any)
			if !ok {
				objs = nil
				break
			}
			objs = append(objs, m)
		}
		if len(objs) > len(best) {
			best = objs
		}
	}
	return best
}

func flattenRecord(prefix string, in map[string]any, out map[string]any) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "_" + k
		}
		if m, ok := v.(map[string]any); ok {
			flattenRecord(key, m, out)
			continue
		}
		out[key] = v
	}
}

// renderJSONValue converts a decoded JSON value into its cell string.
// Numbers keep their source text via json.Number. Arrays and anything else
// non-scalar stay as JSON text. A null is a missing cell.
func renderJSONValue(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t), true
		}
		return string(b), true
	}
}
