package vector

import (
	"testing"

	"tabular/pkg/dtype"
)

//
// Equal
//

func TestEqual(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b Vector
		want bool
	}{
		{
			name: "same ints",
			a:    Int64Values(1, 2, 3),
			b:    Int64Values(1, 2, 3),
			want: true,
		},
		{
			name: "different ints",
			a:    Int64Values(1, 2, 3),
			b:    Int64Values(1, 2, 4),
			want: false,
		},
		{
			name: "different kinds",
			a:    Int64Values(1),
			b:    NullInt64Values([]int64{1}, nil),
			want: false,
		},
		{
			name: "null positions match",
			a:    StringValues([]string{"a", ""}, []bool{true, false}),
			b:    StringValues([]string{"a", ""}, []bool{true, false}),
			want: true,
		},
		{
			name: "null positions differ",
			a:    StringValues([]string{"a", "b"}, []bool{true, true}),
			b:    StringValues([]string{"a", ""}, []bool{true, false}),
			want: false,
		},
		{
			name: "categories compare by value not encoding",
			a:    CategoryFromStrings([]string{"b", "a"}, nil),
			b:    CategoryFromStrings([]string{"b", "a", "a"}, nil).Slice(0, 2),
			want: true,
		},
		{
			name: "length mismatch",
			a:    Int64Values(1),
			b:    Int64Values(1, 2),
			want: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Fatalf("Equal = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCategoryLabelOrdering(t *testing.T) {
	t.Parallel()

	t.Run("numeric labels sort numerically", func(t *testing.T) {
		t.Parallel()
		v := CategoryFromStrings([]string{"10", "2", "1"}, nil)
		labels, ok := CategoryLabels(v)
		if !ok {
			t.Fatalf("CategoryLabels reported non-category vector")
		}
		want := []string{"1", "2", "10"}
		if len(labels) != len(want) {
			t.Fatalf("labels = %v, want %v", labels, want)
		}
		for i := range want {
			if labels[i] != want[i] {
				t.Fatalf("labels = %v, want %v", labels, want)
			}
		}
	})

	t.Run("text labels sort lexically", func(t *testing.T) {
		t.Parallel()
		v := CategoryFromStrings([]string{"pear", "apple", "pear"}, nil)
		labels, _ := CategoryLabels(v)
		if len(labels) != 2 || labels[0] != "apple" || labels[1] != "pear" {
			t.Fatalf("labels = %v, want [apple pear]", labels)
		}
	})
}

func TestConcat(t *testing.T) {
	t.Parallel()

	t.Run("nullable ints keep mask", func(t *testing.T) {
		t.Parallel()
		a := NullInt64Values([]int64{1, 0}, []bool{true, false})
		b := NullInt64Values([]int64{3}, nil)
		got, err := Concat(a, b)
		if err != nil {
			t.Fatalf("Concat: %v", err)
		}
		if got.Len() != 3 {
			t.Fatalf("Len = %d, want 3", got.Len())
		}
		if got.Value(0) != int64(1) || !got.IsNull(1) || got.Value(2) != int64(3) {
			t.Fatalf("unexpected rows: %v, null=%v, %v", got.Value(0), got.IsNull(1), got.Value(2))
		}
	})

	t.Run("kind mismatch fails", func(t *testing.T) {
		t.Parallel()
		if _, err := Concat(Int64Values(1), BoolValues(true)); err == nil {
			t.Fatalf("Concat succeeded, want kind mismatch error")
		}
	})

	t.Run("single vector passes through", func(t *testing.T) {
		t.Parallel()
		v := Int64Values(1, 2)
		got, err := Concat(v)
		if err != nil {
			t.Fatalf("Concat: %v", err)
		}
		if got != v {
			t.Fatalf("single-vector concat returned a copy")
		}
	})
}

func TestSliceSharesNoCloneState(t *testing.T) {
	t.Parallel()

	v := StringValues([]string{"a", "b", "c"}, nil)
	s := v.Slice(1, 3)
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	if s.Value(0) != "b" || s.Value(1) != "c" {
		t.Fatalf("slice rows = %v, %v, want b, c", s.Value(0), s.Value(1))
	}

	c := v.Clone()
	if !Equal(v, c) {
		t.Fatalf("clone differs from original")
	}
	if c.Kind() != dtype.String {
		t.Fatalf("clone kind = %v, want %v", c.Kind(), dtype.String)
	}
}

func TestNullStrings(t *testing.T) {
	t.Parallel()

	vals, valid := NullStrings([]string{"a", "", "  ", "b"})
	if valid == nil {
		t.Fatalf("valid mask missing for blank input rows")
	}
	wantValid := []bool{true, false, false, true}
	for i := range wantValid {
		if valid[i] != wantValid[i] {
			t.Fatalf("valid[%d] = %v, want %v", i, valid[i], wantValid[i])
		}
	}
	if vals[0] != "a" || vals[3] != "b" {
		t.Fatalf("values rewritten: %v", vals)
	}

	if _, valid := NullStrings([]string{"x", "y"}); valid != nil {
		t.Fatalf("mask allocated for fully-present input")
	}
}
