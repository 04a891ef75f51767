package read

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"tabular/pkg/backend"
	"tabular/pkg/backend/mem"
	"tabular/pkg/table"
	"tabular/pkg/vector"
)

// driverNames maps engine kinds onto registered database/sql driver names.
var driverNames = map[string]string{
	"postgres":  "pgx",
	"pgx":       "pgx",
	"mssql":     "sqlserver",
	"sqlserver": "sqlserver",
	"sqlite":    "sqlite",
	"sqlite3":   "sqlite",
}

// OpenSQL opens a database handle for one of the supported engines:
// "postgres", "mssql" or "sqlite". Connectivity is verified with a ping
// before the handle is returned.
func OpenSQL(ctx context.Context, kind, dsn string) (*sql.DB, error) {
	driver, ok := driverNames[strings.ToLower(strings.TrimSpace(kind))]
	if !ok {
		return nil, fmt.Errorf("read: unsupported sql kind %q", kind)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// SQLTable runs the query and builds a typed table from its result set. The
// result is always memory-backed. Columns keep the driver's value types
// where they are uniform: integer columns land on nullable int64, floats on
// float64, booleans and timestamps on their native vectors. Mixed or opaque
// columns fall back to their string forms, so inference still applies.
func SQLTable(ctx context.Context, db *sql.DB, query string, topts table.Options) (*table.Table, error) {
	logf := logfOrDiscard(topts.Logger)
	start := time.Now()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read: query: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read: query columns: %w", err)
	}

	cells := make([][]any, len(names))
	dest := make([]any, len(names))
	for i := range dest {
		dest[i] = new(any)
	}
	nrows := 0
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("read: scan row %d: %w", nrows, err)
		}
		for i := range dest {
			cells[i] = append(cells[i], *(dest[i].(*any)))
		}
		nrows++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read: rows: %w", err)
	}

	cols := backend.NewColumns()
	for i, name := range names {
		if err := cols.Add(name, vectorFromSQL(cells[i], nrows)); err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
	}
	frame, err := mem.New(cols)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	tbl, err := table.New(ctx, frame, topts)
	if err != nil {
		return nil, err
	}

	logf("stage=read_sql ok columns=%d rows=%d duration=%s", len(names), nrows, durMS(start))
	return tbl, nil
}

// vectorFromSQL picks a vector representation for one scanned column. A
// column is typed only when every non-null value shares one driver type;
// anything mixed renders to strings.
func vectorFromSQL(vals []any, nrows int) vector.Vector {
	if vals == nil {
		vals = make([]any, 0, nrows)
	}

	var ints, floats, bools, times, others int
	for _, v := range vals {
		switch v.(type) {
		case nil:
		case int64:
			ints++
		case float64:
			floats++
		case bool:
			bools++
		case time.Time:
			times++
		default:
			others++
		}
	}

	groups := 0
	for _, n := range []int{ints + floats, bools, times, others} {
		if n > 0 {
			groups++
		}
	}
	n := len(vals)

	switch {
	case groups > 1 || others > 0 || groups == 0:
		strs := make([]string, n)
		valid := make([]bool, n)
		for i, v := range vals {
			strs[i], valid[i] = renderSQLValue(v)
		}
		return vector.StringValues(strs, valid)

	case times > 0:
		ts := make([]time.Time, n)
		valid := make([]bool, n)
		for i, v := range vals {
			if t, ok := v.(time.Time); ok {
				ts[i] = t
				valid[i] = true
			}
		}
		return vector.DatetimeValues(ts, valid)

	case bools > 0:
		bs := make([]bool, n)
		valid := make([]bool, n)
		for i, v := range vals {
			if b, ok := v.(bool); ok {
				bs[i] = b
				valid[i] = true
			}
		}
		return vector.NullBoolValues(bs, valid)

	case floats > 0:
		fs := make([]float64, n)
		valid := make([]bool, n)
		for i, v := range vals {
			switch t := v.(type) {
			case float64:
				fs[i] = t
				valid[i] = true
			case int64:
				fs[i] = float64(t)
				valid[i] = true
			}
		}
		return vector.Float64Values(fs, valid)

	default:
		is := make([]int64, n)
		valid := make([]bool, n)
		for i, v := range vals {
			if t, ok := v.(int64); ok {
				is[i] = t
				valid[i] = true
			}
		}
		return vector.NullInt64Values(is, valid)
	}
}

func renderSQLValue(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case []byte:
		return string(t), true
	case string:
		return t, true
	case time.Time:
		return t.Format(time.RFC3339Nano), true
	case fmt.Stringer:
		return t.String(), true
	default:
		return fmt.Sprint(t), true
	}
}
