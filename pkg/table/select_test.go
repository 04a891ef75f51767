package table

import (
	"context"
	"reflect"
	"testing"

	"tabular/pkg/backend"
	"tabular/pkg/dtype"
	"tabular/pkg/logical"
	"tabular/pkg/vector"
)

func TestSelectByTypeName(t *testing.T) {
	t.Parallel()

	tbl := memTable(t, orderColumns(t), Options{})
	sub, err := tbl.Select("boolean", "datetime")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	want := []string{"reordered", "ordered_at"}
	if got := sub.Schema().Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("columns = %v, want %v", got, want)
	}
	// The receiver keeps its full column set.
	if got := tbl.Schema().NumColumns(); got != 4 {
		t.Fatalf("receiver columns = %d after Select, want 4", got)
	}
}

func TestSelectFoldsTypeNames(t *testing.T) {
	t.Parallel()

	tbl := memTable(t, orderColumns(t), Options{})
	sub, err := tbl.Select("Natural Language", "CATEGORICAL")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := sub.Schema().Names(); !reflect.DeepEqual(got, []string{"state"}) {
		t.Fatalf("columns = %v, want [state]", got)
	}
}

func TestSelectByTag(t *testing.T) {
	t.Parallel()

	tbl := memTable(t, orderColumns(t), Options{})
	if err := tbl.AddTags("reordered", "flagged"); err != nil {
		t.Fatalf("AddTags: %v", err)
	}

	sub, err := tbl.Select("numeric", "flagged")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	want := []string{"order_product_id", "reordered"}
	if got := sub.Schema().Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("columns = %v, want %v", got, want)
	}
}

func TestSelectNothingMatches(t *testing.T) {
	t.Parallel()

	tbl := memTable(t, orderColumns(t), Options{})
	sub, err := tbl.Select("url")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := sub.Schema().NumColumns(); got != 0 {
		t.Fatalf("columns = %d, want 0", got)
	}
}

func TestSelectNeedsATerm(t *testing.T) {
	t.Parallel()

	tbl := memTable(t, orderColumns(t), Options{})
	if _, err := tbl.Select(); err == nil {
		t.Fatalf("Select accepted zero terms")
	}
}

func TestSelectKeepsDesignationsOnlyWhenKept(t *testing.T) {
	t.Parallel()

	tbl := memTable(t, orderColumns(t), Options{
		Index:     "order_product_id",
		TimeIndex: "ordered_at",
	})

	byTime, err := tbl.Select("datetime")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := byTime.Schema().TimeIndex(); got != "ordered_at" {
		t.Fatalf("TimeIndex = %q, want %q", got, "ordered_at")
	}
	if got := byTime.Schema().Index(); got != "" {
		t.Fatalf("Index = %q, want empty after the index column was dropped", got)
	}

	byID, err := tbl.Select("integer")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := byID.Schema().Index(); got != "order_product_id" {
		t.Fatalf("Index = %q, want %q", got, "order_product_id")
	}
	if got := byID.Schema().TimeIndex(); got != "" {
		t.Fatalf("TimeIndex = %q, want empty", got)
	}
}

func TestSelectDeferredCarriesPlan(t *testing.T) {
	t.Parallel()

	loads := 0
	tbl := chunkedTable(t, orderColumns(t), &loads, Options{Types: orderTypes()})
	sub, err := tbl.Select("boolean")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if loads != 0 {
		t.Fatalf("Select loaded %d partitions, want 0", loads)
	}
	if !sub.Deferred() {
		t.Fatalf("selection lost the deferred backend")
	}

	data, err := sub.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	v, _ := data.Vector("reordered")
	if v.Kind() != dtype.BoolN {
		t.Fatalf("reordered dtype = %s, want pending cast applied", v.Kind())
	}
}

func TestDrop(t *testing.T) {
	t.Parallel()

	tbl := memTable(t, orderColumns(t), Options{})

	rest, err := tbl.Drop("state", "reordered")
	if err != nil {
		t.Fatalf("Drop: %v", err)
	}
	want := []string{"order_product_id", "ordered_at"}
	if got := rest.Schema().Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("columns = %v, want %v", got, want)
	}

	if _, err := tbl.Drop("missing"); err == nil {
		t.Fatalf("Drop accepted unknown column")
	}
	if _, err := tbl.Drop(); err == nil {
		t.Fatalf("Drop accepted zero columns")
	}
}

func TestPop(t *testing.T) {
	t.Parallel()

	tbl := memTable(t, orderColumns(t), Options{})

	v, col, err := tbl.Pop(context.Background(), "state")
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if col.Logical.Name != "categorical" || !col.Tags.Has(logical.TagCategory) {
		t.Fatalf("popped column metadata = %+v", col)
	}
	if v.Kind() != dtype.Category {
		t.Fatalf("popped dtype = %s, want %s", v.Kind(), dtype.Category)
	}
	if s, _ := v.StringAt(0); s != "complete" {
		t.Fatalf("popped row 0 = %q, want %q", s, "complete")
	}

	if _, ok := tbl.Schema().Column("state"); ok {
		t.Fatalf("popped column still present")
	}
	if got := tbl.Schema().NumColumns(); got != 3 {
		t.Fatalf("columns = %d after Pop, want 3", got)
	}

	if _, _, err := tbl.Pop(context.Background(), "missing"); err == nil {
		t.Fatalf("Pop accepted unknown column")
	}
}

func TestPopOnlyColumn(t *testing.T) {
	t.Parallel()

	cols := backend.NewColumns()
	if err := cols.Add("x", vector.Int64Values(1, 2)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	tbl := memTable(t, cols, Options{})
	if _, _, err := tbl.Pop(context.Background(), "x"); err == nil {
		t.Fatalf("Pop emptied the table")
	}
}

func TestPopDeferredMaterializesOnlyThatColumn(t *testing.T) {
	t.Parallel()

	loads := 0
	tbl := chunkedTable(t, orderColumns(t), &loads, Options{Types: orderTypes()})

	v, col, err := tbl.Pop(context.Background(), "reordered")
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if col.Logical.Name != "boolean" {
		t.Fatalf("popped logical = %s, want boolean", col.Logical.Name)
	}
	if v.Kind() != dtype.BoolN {
		t.Fatalf("popped dtype = %s, want pending cast applied", v.Kind())
	}
	if !vector.Equal(v, vector.NullBoolValues([]bool{true, false, true, false}, nil)) {
		t.Fatalf("popped values = %v, want parsed booleans", v)
	}

	if !tbl.Deferred() {
		t.Fatalf("table lost its deferred backend after Pop")
	}
	if rows, cols := tbl.Shape(); rows != -1 || cols != 3 {
		t.Fatalf("Shape = (%d, %d) after Pop, want (-1, 3)", rows, cols)
	}

	data, err := tbl.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if data.Rows() != 4 || data.NumCols() != 3 {
		t.Fatalf("collected shape = (%d, %d), want (4, 3)", data.Rows(), data.NumCols())
	}
}
