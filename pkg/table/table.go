// Package table pairs a backend frame with a typed schema. Construction
// resolves a logical type for every column (declared by the caller or
// inferred from a data sample), normalizes each column onto the physical
// representation its type needs on that backend, and validates the index
// designations. On eager backends all of this happens immediately; on
// deferred backends casts are recorded in the frame's plan and data problems
// surface when Collect forces materialization.
//
// A Table owns its frame and schema. Mutating methods follow single-writer
// discipline and add no locking; wrap the table if concurrent mutation is
// needed.
package table

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"tabular/internal/resolve"
	"tabular/pkg/backend"
	"tabular/pkg/logical"
	"tabular/pkg/metrics"
	"tabular/pkg/schema"
	"tabular/pkg/vector"
)

// Logger is the minimal logging interface used by the typing layer.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Sentinel error kinds for construction-time failures.
var (
	// ErrDuplicateColumn reports a frame whose column names collide.
	ErrDuplicateColumn = errors.New("duplicate column name")

	// ErrAmbiguousIndex reports index options that flag more than one
	// candidate index column or none at all.
	ErrAmbiguousIndex = errors.New("ambiguous index designation")

	// ErrIndexNotUnique reports an index column with repeated values. Only
	// eager backends perform the check.
	ErrIndexNotUnique = errors.New("index column contains duplicate values")
)

// Options configures table construction.
type Options struct {
	// Name labels the table in logs and schema rendering.
	Name string

	// Index designates the index column. On an eager backend its values
	// must be unique; on a deferred backend the check is skipped and
	// uniqueness is the caller's responsibility.
	Index string

	// TimeIndex designates the time index column. Its logical type must
	// resolve to Datetime.
	TimeIndex string

	// Types declares logical types per column. Declared columns skip
	// inference; when every column is declared, construction touches no
	// data on a deferred backend.
	Types map[string]logical.Type

	// Tags assigns extra semantic tags per column. The index and time index
	// tags cannot be assigned here; designate through Index/TimeIndex.
	Tags map[string][]string

	// Descriptions sets per-column documentation.
	Descriptions map[string]string

	// ColumnMetadata attaches arbitrary caller data per column.
	ColumnMetadata map[string]map[string]any

	// Metadata attaches table-level metadata.
	Metadata map[string]any

	// NoStandardTags stops logical types from seeding their standard tags
	// onto columns.
	NoStandardTags bool

	// MakeIndex appends a sequential int64 column named Index and designates
	// it as the index. Only frames with resident rows support it.
	MakeIndex bool

	// Logger receives stage lines; nil discards them.
	Logger Logger

	// Metrics receives counters and timings; nil discards them.
	Metrics metrics.Backend
}

func (o Options) logger() func(format string, v ...any) {
	if o.Logger == nil {
		l := log.New(discardWriter{}, "", 0)
		return l.Printf
	}
	return o.Logger.Printf
}

// Table is a backend frame with resolved, normalized typing metadata.
type Table struct {
	frame  backend.Frame
	schema *schema.Schema
	caps   backend.Capabilities

	logf    func(format string, v ...any)
	metrics metrics.Backend
}

// columnAppender is the optional frame surface MakeIndex needs: appending a
// column requires a known resident row count, which deferred frames cannot
// provide without loading data.
type columnAppender interface {
	AppendColumn(name string, v vector.Vector) error
	Rows() int
}

// New builds a typed table over a frame. The table takes ownership of the
// frame; normalization casts mutate it (eagerly or in its plan).
//
// Edge cases:
//   - Declared types skip inference per column; declaring every column on a
//     deferred frame loads no partition data at all.
//   - On a deferred frame, index uniqueness and ordinal value checks are
//     skipped, and cast failures surface at Collect rather than here.
//
// Errors:
//   - ErrDuplicateColumn, ErrAmbiguousIndex, ErrIndexNotUnique.
//   - backend.ErrUnsupportedType when a logical type has no representation
//     on the frame's backend.
//   - backend.ErrIncompatibleData from eager backends whose data does not
//     cast to a declared type.
//   - logical.ErrOrdinalValue from eager ordinal columns holding values
//     outside their order.
func New(ctx context.Context, frame backend.Frame, opts Options) (*Table, error) {
	if frame == nil {
		return nil, fmt.Errorf("table: nil frame")
	}
	logf := opts.logger()
	mb := opts.Metrics
	if mb == nil {
		mb = metrics.Nop()
	}

	caps, err := backend.Lookup(frame.Kind())
	if err != nil {
		return nil, fmt.Errorf("table: %w", err)
	}

	names := frame.ColumnNames()
	if len(names) == 0 {
		return nil, fmt.Errorf("table: frame with no columns")
	}
	if err := checkDuplicateNames(names); err != nil {
		return nil, err
	}

	// Index designations flow through the Index/TimeIndex options only; a
	// raw index tag would open a second designation path.
	for col, tags := range opts.Tags {
		for _, tag := range tags {
			if tag == logical.TagIndex || tag == logical.TagTimeIndex {
				return nil, fmt.Errorf("table: column %q: tag %q: %w", col, tag, ErrAmbiguousIndex)
			}
		}
	}

	declared := make(map[string]logical.Type, len(opts.Types)+1)
	for col, lt := range opts.Types {
		declared[col] = lt
	}

	if opts.MakeIndex {
		if opts.Index == "" {
			return nil, fmt.Errorf("table: MakeIndex without a name in Index: %w", ErrAmbiguousIndex)
		}
		if containsName(names, opts.Index) {
			return nil, fmt.Errorf("table: MakeIndex column %q already exists: %w", opts.Index, ErrAmbiguousIndex)
		}
		ap, ok := frame.(columnAppender)
		if !ok {
			return nil, fmt.Errorf("table: MakeIndex needs resident rows; backend %s cannot append", caps.Kind)
		}
		if err := ap.AppendColumn(opts.Index, vector.Int64Range(ap.Rows())); err != nil {
			return nil, fmt.Errorf("table: MakeIndex: %w", err)
		}
		names = append(names, opts.Index)
		declared[opts.Index] = logical.Integer
	}

	if err := checkReferences(names, opts, declared); err != nil {
		return nil, err
	}

	// Resolve a logical type for every column.
	resolveStart := time.Now()
	resolved, err := resolve.Types(ctx, frame, declared)
	if err != nil {
		return nil, err
	}
	inferred := 0
	for _, r := range resolved {
		if r.Inferred {
			inferred++
			mb.IncCounter(metrics.MetricInferredTotal, 1, metrics.Labels{"logical_type": r.Type.Name})
		}
	}
	logf("stage=resolve ok duration=%s columns=%d inferred=%d declared=%d",
		durMS(resolveStart), len(resolved), inferred, len(resolved)-inferred)

	if opts.TimeIndex != "" {
		lt := typeFor(resolved, opts.TimeIndex)
		if !lt.Equal(logical.Datetime) {
			return nil, fmt.Errorf("table: time index column %q has logical type %s, need %s",
				opts.TimeIndex, lt, logical.Datetime)
		}
	}

	// Normalize every column onto the representation its type needs here.
	normStart := time.Now()
	sch := schema.New(opts.Name, !opts.NoStandardTags)
	fallbacks := 0
	for _, r := range resolved {
		phys, fellBack, err := resolve.Normalize(ctx, frame, r.Name, r.Type, caps)
		if err != nil {
			mb.IncCounter(metrics.MetricCastsTotal, 1, metrics.Labels{"status": "error", "dtype": phys.String()})
			return nil, err
		}
		mb.IncCounter(metrics.MetricCastsTotal, 1, metrics.Labels{"status": "ok", "dtype": phys.String()})
		if fellBack {
			fallbacks++
			mb.IncCounter(metrics.MetricFallbacksTotal, 1, metrics.Labels{"logical_type": r.Type.Name})
		}
		if err := sch.AddColumn(r.Name, r.Type, phys, opts.Tags[r.Name]...); err != nil {
			return nil, fmt.Errorf("table: %w", err)
		}
	}
	logf("stage=normalize ok duration=%s casts=%d fallbacks=%d", durMS(normStart), len(resolved), fallbacks)

	// Data validations run on the eager path only.
	if !caps.Deferred {
		valStart := time.Now()
		if opts.Index != "" {
			v, err := frame.Sample(ctx, opts.Index)
			if err != nil {
				return nil, fmt.Errorf("table: sample column %q: %w", opts.Index, err)
			}
			if err := checkUniqueIndex(v, opts.Index); err != nil {
				return nil, err
			}
		}
		for _, r := range resolved {
			if !r.Type.IsOrdinal() {
				continue
			}
			v, err := frame.Sample(ctx, r.Name)
			if err != nil {
				return nil, fmt.Errorf("table: sample column %q: %w", r.Name, err)
			}
			if err := r.Type.ValidateData(v); err != nil {
				return nil, fmt.Errorf("table: column %q: %w", r.Name, err)
			}
		}
		logf("stage=validate ok duration=%s", durMS(valStart))
	} else if opts.Index != "" || hasOrdinal(resolved) {
		logf("stage=validate skipped backend=%s checks=index_uniqueness,ordinal_values", caps.Kind)
	}

	if opts.Index != "" {
		if err := sch.SetIndex(opts.Index); err != nil {
			return nil, fmt.Errorf("table: %w", err)
		}
	}
	if opts.TimeIndex != "" {
		if err := sch.SetTimeIndex(opts.TimeIndex); err != nil {
			return nil, fmt.Errorf("table: %w", err)
		}
	}
	for col, desc := range opts.Descriptions {
		if err := sch.SetDescription(col, desc); err != nil {
			return nil, fmt.Errorf("table: %w", err)
		}
	}
	for col, md := range opts.ColumnMetadata {
		if err := sch.SetColumnMetadata(col, md); err != nil {
			return nil, fmt.Errorf("table: %w", err)
		}
	}
	if opts.Metadata != nil {
		sch.SetMetadata(opts.Metadata)
	}

	t := &Table{frame: frame, schema: sch, caps: caps, logf: logf, metrics: mb}
	mb.IncCounter(metrics.MetricTablesTotal, 1, metrics.Labels{"backend": string(caps.Kind)})
	logf("stage=table ok name=%s backend=%s columns=%d", opts.Name, caps.Kind, sch.NumColumns())
	return t, nil
}

// Name returns the table name.
func (t *Table) Name() string { return t.schema.Name() }

// Kind reports which backend holds the data.
func (t *Table) Kind() backend.Kind { return t.caps.Kind }

// Deferred reports whether the data is lazily evaluated. Deferred tables
// skip data validations and surface cast failures at Collect.
func (t *Table) Deferred() bool { return t.caps.Deferred }

// Schema returns the table's typing metadata. The schema is live: it is the
// same object the table mutates, not a copy.
func (t *Table) Schema() *schema.Schema { return t.schema }

// Shape reports the table's dimensions. Rows are known only when the data is
// resident; on a deferred backend rows is -1, because counting would force a
// load.
func (t *Table) Shape() (rows, cols int) {
	cols = t.schema.NumColumns()
	rows = -1
	if r, ok := t.frame.(interface{ Rows() int }); ok {
		rows = r.Rows()
	}
	return rows, cols
}

// String renders the schema summary.
func (t *Table) String() string { return t.schema.String() }

// DataFrame returns the table's frame. With clone=true an independent copy
// is returned; otherwise the shared handle, which remains owned by the
// table.
func (t *Table) DataFrame(clone bool) backend.Frame {
	if clone {
		return t.frame.Clone()
	}
	return t.frame
}

// Collect materializes the table's data: resident columns come back as-is,
// a deferred frame loads every partition and runs its recorded casts. This
// is the point where a deferred cast failure surfaces, as
// backend.ErrIncompatibleData. The call blocks until the backend finishes;
// cancel through ctx.
func (t *Table) Collect(ctx context.Context) (*backend.Columns, error) {
	start := time.Now()
	cols, err := t.frame.Materialize(ctx)
	if err != nil {
		t.logf("stage=collect status=error backend=%s duration=%s err=%v", t.caps.Kind, durMS(start), err)
		return nil, err
	}
	t.metrics.ObserveHistogram(metrics.MetricMaterializeSeconds, time.Since(start).Seconds(),
		metrics.Labels{"backend": string(t.caps.Kind)})
	t.metrics.ObserveHistogram(metrics.MetricMaterializeRows, float64(cols.Rows()), nil)
	t.logf("stage=collect ok backend=%s duration=%s rows=%d", t.caps.Kind, durMS(start), cols.Rows())
	return cols, nil
}

// Equal reports table equality: structural schema equality (names in order,
// logical types, semantic tags, index designations), plus data equality
// only when both tables are eager. When either side is deferred the data is
// deliberately not compared; forcing materialization inside an equality
// check would defeat lazy evaluation.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if !t.schema.Equal(o.schema) {
		return false
	}
	if t.caps.Deferred || o.caps.Deferred {
		return true
	}
	// Eager materialization is resident data access; no ctx plumbing needed.
	a, err := t.frame.Materialize(context.Background())
	if err != nil {
		return false
	}
	b, err := o.frame.Materialize(context.Background())
	if err != nil {
		return false
	}
	return a.Equal(b)
}

// ----- construction helpers -----

func checkDuplicateNames(names []string) error {
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, dup := seen[n]; dup {
			return fmt.Errorf("table: %w: %q", ErrDuplicateColumn, n)
		}
		seen[n] = struct{}{}
	}
	return nil
}

func checkReferences(names []string, opts Options, declared map[string]logical.Type) error {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	check := func(col, what string) error {
		if _, ok := set[col]; !ok {
			return fmt.Errorf("table: %s references unknown column %q", what, col)
		}
		return nil
	}
	if opts.Index != "" {
		if err := check(opts.Index, "Index"); err != nil {
			return err
		}
	}
	if opts.TimeIndex != "" {
		if err := check(opts.TimeIndex, "TimeIndex"); err != nil {
			return err
		}
	}
	for col := range declared {
		if err := check(col, "Types"); err != nil {
			return err
		}
	}
	for col := range opts.Tags {
		if err := check(col, "Tags"); err != nil {
			return err
		}
	}
	for col := range opts.Descriptions {
		if err := check(col, "Descriptions"); err != nil {
			return err
		}
	}
	for col := range opts.ColumnMetadata {
		if err := check(col, "ColumnMetadata"); err != nil {
			return err
		}
	}
	return nil
}

// checkUniqueIndex verifies no two rows share an index value. Missing
// values count as one shared value.
func checkUniqueIndex(v vector.Vector, column string) error {
	seen := make(map[string]int, v.Len())
	for i := 0; i < v.Len(); i++ {
		key, ok := v.StringAt(i)
		if !ok {
			key = "\x00missing"
		}
		if prev, dup := seen[key]; dup {
			return fmt.Errorf("table: column %q: %w: rows %d and %d", column, ErrIndexNotUnique, prev, i)
		}
		seen[key] = i
	}
	return nil
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func typeFor(resolved []resolve.Resolved, name string) logical.Type {
	for _, r := range resolved {
		if r.Name == name {
			return r.Type
		}
	}
	return logical.Type{}
}

func hasOrdinal(resolved []resolve.Resolved) bool {
	for _, r := range resolved {
		if r.Type.IsOrdinal() {
			return true
		}
	}
	return false
}

func durMS(start time.Time) time.Duration { return time.Since(start).Truncate(time.Millisecond) }

type discardWriter struct{}

func (discardWriter) Write(p []byte) (n int, err error) { return len(p), nil }
