// Package read builds typed tables from external sources.
//
// The package is responsible for:
//   - Fetching source bytes (local path or http(s) URL)
//   - Detecting the format (CSV, JSON, HTML) when not declared
//   - Decoding rows into column vectors
//   - Handing the columns to table.New for inference and normalization
//
// Every reader lands on the in-memory backend: a requested backend kind is
// accepted and logged, but the produced table is always eager. Readers emit
// string columns, so type inference behaves exactly as it does for directly
// constructed tables. A schema sidecar declares every column up front and
// skips inference.
package read

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"tabular/pkg/backend"
	"tabular/pkg/backend/mem"
	"tabular/pkg/logical"
	"tabular/pkg/schema"
	"tabular/pkg/table"
	"tabular/pkg/vector"
)

// Options control where the data comes from and how it is decoded.
type Options struct {
	// Source is a local file path, a file:// URL, or an http(s) URL.
	Source string

	// Format forces a decoder: "csv", "json" or "html". Empty sniffs the
	// format from the source name and the fetched bytes.
	Format string

	// Backend is the requested backend kind. It is recorded in the stage
	// line but the produced table is always memory-backed.
	Backend string

	// Delimiter is the CSV field separator. Zero means ',' unless the
	// source name ends in .tsv, which means a tab.
	Delimiter rune

	// Encoding names the source charset: "utf-8" (default), "latin-1" or
	// "windows-1252". Non-UTF-8 bytes are decoded before parsing.
	Encoding string

	// Selector is a CSS selector for the HTML table element. Empty picks
	// the document's first table.
	Selector string

	// SchemaPath points at a serialized schema JSON document. Its types,
	// index designations, tags and descriptions seed the construction
	// options; explicit Table values win on conflict.
	SchemaPath string

	// Timeout bounds an HTTP fetch. Zero means 30 seconds.
	Timeout time.Duration

	// AllowInsecureTLS skips TLS certificate verification for HTTPS
	// sources.
	AllowInsecureTLS bool

	// Table is passed through to table.New.
	Table table.Options
}

type format int

const (
	formatUnknown format = iota
	formatCSV
	formatJSON
	formatHTML
)

func (f format) String() string {
	switch f {
	case formatCSV:
		return "csv"
	case formatJSON:
		return "json"
	case formatHTML:
		return "html"
	default:
		return "unknown"
	}
}

// FetchFn is the overridable seam used to open a source for reading.
type FetchFn func(ctx context.Context, opts Options) (io.ReadCloser, error)

// fetchFn backs Table for http(s) URLs and local paths. Tests replace it to
// avoid real I/O.
var fetchFn FetchFn = defaultFetch

func defaultFetch(ctx context.Context, opts Options) (io.ReadCloser, error) {
	src := opts.Source
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client := newHTTPClient(timeout, opts.AllowInsecureTLS)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, fmt.Errorf("status %d", resp.StatusCode)
		}
		return resp.Body, nil
	}
	return os.Open(strings.TrimPrefix(src, "file://"))
}

func newHTTPClient(timeout time.Duration, insecure bool) *http.Client {
	transport := &http.Transport{
		IdleConnTimeout:     90 * time.Second,
		MaxIdleConns:        256,
		MaxIdleConnsPerHost: 64,
	}
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// Table fetches the source, decodes it and constructs a typed table.
//
// Edge cases:
//   - Misaligned CSV and HTML rows are skipped, not errored; the stage line
//     carries the skipped count.
//   - An empty source yields an error rather than a zero-column table.
//
// Errors:
//   - Fetch, decode and sidecar errors are returned wrapped.
//   - Construction errors from table.New pass through unchanged, so the
//     table package's sentinel errors still match with errors.Is.
func Table(ctx context.Context, opts Options) (*table.Table, error) {
	logf := logfOrDiscard(opts.Table.Logger)
	start := time.Now()

	if strings.TrimSpace(opts.Source) == "" {
		return nil, fmt.Errorf("read: empty source")
	}
	ff, err := parseFormat(opts.Format)
	if err != nil {
		return nil, err
	}

	rc, err := fetchFn(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("read: fetch %s: %w", opts.Source, err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("read: fetch %s: %w", opts.Source, err)
	}

	data, err = decodeCharset(data, opts.Encoding)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	if ff == formatUnknown {
		ff = sniffFormat(opts.Source, data)
	}

	var (
		cols    *backend.Columns
		skipped int
	)
	switch ff {
	case formatCSV:
		cols, skipped, err = decodeCSV(data, csvDelimiter(opts))
	case formatJSON:
		cols, err = decodeJSON(data)
	case formatHTML:
		cols, skipped, err = decodeHTML(data, opts.Selector)
	default:
		err = fmt.Errorf("read: cannot determine format of %s", opts.Source)
	}
	if err != nil {
		return nil, err
	}

	topts := opts.Table
	if opts.SchemaPath != "" {
		doc, err := loadSchemaDoc(opts.SchemaPath)
		if err != nil {
			return nil, err
		}
		applySchemaDoc(&topts, doc)
	}

	frame, err := mem.New(cols)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	tbl, err := table.New(ctx, frame, topts)
	if err != nil {
		return nil, err
	}

	requested := opts.Backend
	if requested == "" {
		requested = string(backend.Memory)
	}
	logf("stage=read ok source=%s format=%s requested=%s backend=%s columns=%d rows=%d skipped=%d duration=%s",
		opts.Source, ff, requested, tbl.Kind(), cols.NumCols(), cols.Rows(), skipped, durMS(start))
	return tbl, nil
}

func parseFormat(s string) (format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return formatUnknown, nil
	case "csv":
		return formatCSV, nil
	case "json":
		return formatJSON, nil
	case "html":
		return formatHTML, nil
	default:
		return formatUnknown, fmt.Errorf("read: unknown format %q", s)
	}
}

// sniffFormat picks a decoder from the source extension, falling back to the
// first non-space byte of the payload.
func sniffFormat(source string, data []byte) format {
	switch strings.ToLower(path.Ext(sourcePath(source))) {
	case ".csv", ".tsv":
		return formatCSV
	case ".json", ".ndjson", ".jsonl":
		return formatJSON
	case ".html", ".htm":
		return formatHTML
	}

	trim := bytes.TrimSpace(data)
	if len(trim) == 0 {
		return formatUnknown
	}
	if trim[0] == '<' {
		return formatHTML
	}
	if trim[0] == '{' || trim[0] == '[' {
		return formatJSON
	}
	return formatCSV
}

// sourcePath strips query and fragment from URL sources so extension
// sniffing sees the path.
func sourcePath(source string) string {
	if u, err := url.Parse(source); err == nil && u.Path != "" {
		return u.Path
	}
	return source
}

func csvDelimiter(opts Options) rune {
	if opts.Delimiter != 0 {
		return opts.Delimiter
	}
	if strings.HasSuffix(strings.ToLower(sourcePath(opts.Source)), ".tsv") {
		return '\t'
	}
	return ','
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// columnsFromRows converts row-major string cells into string vectors.
// Empty cells become missing values. Empty header names are synthesized
// positionally.
func columnsFromRows(headers []string, rows [][]string) (*backend.Columns, error) {
	cols := backend.NewColumns()
	for i, h := range headers {
		if h == "" {
			h = fmt.Sprintf("column_%d", i)
		}
		vals := make([]string, len(rows))
		valid := make([]bool, len(rows))
		for r, row := range rows {
			vals[r] = row[i]
			valid[r] = row[i] != ""
		}
		if err := cols.Add(h, vector.StringValues(vals, valid)); err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
	}
	return cols, nil
}

// loadSchemaDoc reads a serialized schema document from a local path.
func loadSchemaDoc(path string) (*schema.Schema, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read: schema sidecar: %w", err)
	}
	var doc schema.Schema
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("read: schema sidecar %s: %w", path, err)
	}
	return &doc, nil
}

// applySchemaDoc folds a serialized schema into construction options.
// Explicit option values win over the sidecar. Index tags never travel
// through Options.Tags; the designations carry them instead.
func applySchemaDoc(topts *table.Options, doc *schema.Schema) {
	if topts.Name == "" {
		topts.Name = doc.Name()
	}
	if topts.Index == "" {
		topts.Index = doc.Index()
	}
	if topts.TimeIndex == "" {
		topts.TimeIndex = doc.TimeIndex()
	}
	if !doc.UseStandardTags() {
		topts.NoStandardTags = true
	}
	if topts.Metadata == nil {
		topts.Metadata = doc.Metadata()
	}

	for _, c := range doc.Columns() {
		if _, ok := topts.Types[c.Name]; !ok {
			if topts.Types == nil {
				topts.Types = make(map[string]logical.Type)
			}
			topts.Types[c.Name] = c.Logical
		}

		std := make(map[string]bool, len(c.Logical.StandardTags))
		if doc.UseStandardTags() {
			for _, t := range c.Logical.StandardTags {
				std[t] = true
			}
		}
		var user []string
		for _, tag := range c.Tags.List() {
			if tag == logical.TagIndex || tag == logical.TagTimeIndex || std[tag] {
				continue
			}
			user = append(user, tag)
		}
		if len(user) > 0 && topts.Tags[c.Name] == nil {
			if topts.Tags == nil {
				topts.Tags = make(map[string][]string)
			}
			topts.Tags[c.Name] = user
		}

		if c.Description != "" && topts.Descriptions[c.Name] == "" {
			if topts.Descriptions == nil {
				topts.Descriptions = make(map[string]string)
			}
			topts.Descriptions[c.Name] = c.Description
		}
		if c.Metadata != nil && topts.ColumnMetadata[c.Name] == nil {
			if topts.ColumnMetadata == nil {
				topts.ColumnMetadata = make(map[string]map[string]any)
			}
			topts.ColumnMetadata[c.Name] = c.Metadata
		}
	}
}

func logfOrDiscard(l table.Logger) func(format string, v ...any) {
	if l == nil {
		d := log.New(discardWriter{}, "", 0)
		return d.Printf
	}
	return l.Printf
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (n int, err error) { return len(p), nil }

func durMS(start time.Time) time.Duration { return time.Since(start).Truncate(time.Millisecond) }
