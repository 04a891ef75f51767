package resolve

import (
	"strings"
	"testing"
	"time"

	"tabular/pkg/logical"
	"tabular/pkg/vector"
)

//
// InferType
//

func TestInferTypeFromValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		vals []string
		want logical.Type
	}{
		{
			name: "integers",
			vals: []string{"1", "42", "-7"},
			want: logical.Integer,
		},
		{
			name: "zero one prefers integer over boolean",
			vals: []string{"0", "1", "1", "0"},
			want: logical.Integer,
		},
		{
			name: "booleans",
			vals: []string{"true", "no", "Y", "f"},
			want: logical.Boolean,
		},
		{
			name: "dates",
			vals: []string{"2019-01-02", "2020-11-30"},
			want: logical.Datetime,
		},
		{
			name: "timestamps",
			vals: []string{"2019-01-02 10:30:00", "2020-11-30T08:00:00"},
			want: logical.Datetime,
		},
		{
			name: "floats",
			vals: []string{"1.5", "2", "-0.25"},
			want: logical.Double,
		},
		{
			name: "repeated labels",
			vals: []string{"red", "blue", "red", "blue", "red", "red", "blue", "red", "blue", "red"},
			want: logical.Categorical,
		},
		{
			name: "short distinct labels",
			vals: []string{"ax", "bx", "cx", "dx"},
			want: logical.Categorical,
		},
		{
			name: "free text",
			vals: []string{
				"the quick brown fox jumps over the lazy dog",
				"pack my box with five dozen liquor jugs",
				"how vexingly quick daft zebras jump",
			},
			want: logical.NaturalLanguage,
		},
		{
			name: "mixed falls back to text rules",
			vals: []string{"1", "two", "3"},
			want: logical.Categorical,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v := vector.StringValues(tt.vals, nil)
			if got := InferType(v); !got.Equal(tt.want) {
				t.Fatalf("InferType(%v) = %v, want %v", tt.vals, got, tt.want)
			}
		})
	}
}

func TestInferTypeSkipsBlanksAndNulls(t *testing.T) {
	t.Parallel()

	vals, valid := vector.NullStrings([]string{"5", "", "7", " "})
	v := vector.StringValues(vals, valid)
	if got := InferType(v); !got.Equal(logical.Integer) {
		t.Fatalf("InferType = %v, want integer", got)
	}
}

func TestInferTypeEmptyColumn(t *testing.T) {
	t.Parallel()

	v := vector.StringValues([]string{"", ""}, []bool{false, false})
	if got := InferType(v); !got.Equal(logical.Categorical) {
		t.Fatalf("InferType of all-null column = %v, want categorical", got)
	}
}

func TestInferTypeFromTypedVectors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		v    vector.Vector
		want logical.Type
	}{
		{"plain ints", vector.Int64Values(1, 2), logical.Integer},
		{"nullable ints", vector.NullInt64Values([]int64{1}, nil), logical.Integer},
		{"floats", vector.Float64Values([]float64{1.5}, nil), logical.Double},
		{"bools", vector.BoolValues(true), logical.Boolean},
		{"nullable bools", vector.NullBoolValues([]bool{true}, nil), logical.Boolean},
		{"datetimes", vector.DatetimeValues([]time.Time{time.Now()}, nil), logical.Datetime},
		{"timedeltas", vector.TimedeltaValues([]time.Duration{time.Hour}, nil), logical.Timedelta},
		{"categories", vector.CategoryFromStrings([]string{"a"}, nil), logical.Categorical},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := InferType(tt.v); !got.Equal(tt.want) {
				t.Fatalf("InferType = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInferTypeLongTextIsNotCategorical(t *testing.T) {
	t.Parallel()

	// Distinct long strings must not collapse into categorical just because
	// the sample is small.
	vals := []string{
		strings.Repeat("review text one ", 3),
		strings.Repeat("review text two ", 3),
		strings.Repeat("review text three ", 3),
	}
	v := vector.ObjectValues(vals, nil)
	if got := InferType(v); !got.Equal(logical.NaturalLanguage) {
		t.Fatalf("InferType = %v, want natural_language", got)
	}
}
