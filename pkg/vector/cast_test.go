package vector

import (
	"strings"
	"testing"
	"time"

	"tabular/pkg/dtype"
)

//
// Cast
//

func TestCastNullableIntToPlainInt(t *testing.T) {
	t.Parallel()

	t.Run("no missing values succeeds", func(t *testing.T) {
		t.Parallel()
		v := NullInt64Values([]int64{1, 2, 3}, []bool{true, true, true})
		got, err := Cast(v, dtype.Int64)
		if err != nil {
			t.Fatalf("Cast: %v", err)
		}
		if got.Kind() != dtype.Int64 {
			t.Fatalf("Kind = %v, want %v", got.Kind(), dtype.Int64)
		}
		for i, want := range []int64{1, 2, 3} {
			if got.Value(i) != want {
				t.Fatalf("Value(%d) = %v, want %d", i, got.Value(i), want)
			}
		}
	})

	t.Run("missing value fails", func(t *testing.T) {
		t.Parallel()
		v := NullInt64Values([]int64{1, 0, 3}, []bool{true, false, true})
		if _, err := Cast(v, dtype.Int64); err == nil {
			t.Fatalf("Cast succeeded, want missing-value error")
		}
	})
}

func TestCastNullableBoolToPlainBoolFillsFalse(t *testing.T) {
	t.Parallel()

	v := NullBoolValues([]bool{true, false, false}, []bool{true, true, false})
	got, err := Cast(v, dtype.Bool)
	if err != nil {
		t.Fatalf("Cast: %v", err)
	}
	if got.Kind() != dtype.Bool {
		t.Fatalf("Kind = %v, want %v", got.Kind(), dtype.Bool)
	}
	want := []bool{true, false, false}
	for i := range want {
		if got.IsNull(i) {
			t.Fatalf("row %d is null, want value", i)
		}
		if got.Value(i) != want[i] {
			t.Fatalf("Value(%d) = %v, want %v", i, got.Value(i), want[i])
		}
	}
}

func TestCastCategoryToObjectStringifiesLabels(t *testing.T) {
	t.Parallel()

	// Numeric category labels {1, 2, 3} must come out as "1", "2", "3".
	v := CategoryFromStrings([]string{"1", "2", "3", "2"}, nil)
	got, err := Cast(v, dtype.Object)
	if err != nil {
		t.Fatalf("Cast: %v", err)
	}
	if got.Kind() != dtype.Object {
		t.Fatalf("Kind = %v, want %v", got.Kind(), dtype.Object)
	}
	want := []string{"1", "2", "3", "2"}
	for i := range want {
		if got.Value(i) != want[i] {
			t.Fatalf("Value(%d) = %v, want %q", i, got.Value(i), want[i])
		}
	}
}

func TestCastStringParsing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      Vector
		to      dtype.Kind
		want    []any
		wantErr string
	}{
		{
			name: "strings to nullable int",
			in:   StringValues([]string{"4", "", "-7"}, []bool{true, false, true}),
			to:   dtype.Int64N,
			want: []any{int64(4), nil, int64(-7)},
		},
		{
			name:    "non-numeric string to int fails",
			in:      StringValues([]string{"4", "up"}, nil),
			to:      dtype.Int64N,
			wantErr: `"up"`,
		},
		{
			name: "strings to float",
			in:   ObjectValues([]string{"1.5", "2"}, nil),
			to:   dtype.Float64,
			want: []any{1.5, 2.0},
		},
		{
			name: "loose booleans",
			in:   ObjectValues([]string{"Yes", "0", "t"}, nil),
			to:   dtype.BoolN,
			want: []any{true, false, true},
		},
		{
			name:    "bad boolean fails",
			in:      ObjectValues([]string{"maybe"}, nil),
			to:      dtype.BoolN,
			wantErr: `"maybe"`,
		},
		{
			name: "dates",
			in:   StringValues([]string{"2019-01-02", ""}, []bool{true, false}),
			to:   dtype.Datetime,
			want: []any{time.Date(2019, 1, 2, 0, 0, 0, 0, time.UTC), nil},
		},
		{
			name: "durations",
			in:   StringValues([]string{"90m", "1h30m"}, nil),
			to:   dtype.Timedelta,
			want: []any{90 * time.Minute, 90 * time.Minute},
		},
		{
			name:    "fractional float to int fails",
			in:      Float64Values([]float64{1.5}, nil),
			to:      dtype.Int64N,
			wantErr: "not an integer",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Cast(tt.in, tt.to)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("Cast succeeded, want error containing %q", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %q, want it to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Cast: %v", err)
			}
			if got.Kind() != tt.to {
				t.Fatalf("Kind = %v, want %v", got.Kind(), tt.to)
			}
			for i, want := range tt.want {
				if want == nil {
					if !got.IsNull(i) {
						t.Fatalf("row %d = %v, want null", i, got.Value(i))
					}
					continue
				}
				if got.Value(i) != want {
					t.Fatalf("Value(%d) = %v, want %v", i, got.Value(i), want)
				}
			}
		})
	}
}

func TestCastIdentityReturnsSameVector(t *testing.T) {
	t.Parallel()

	v := Int64Values(1, 2)
	got, err := Cast(v, dtype.Int64)
	if err != nil {
		t.Fatalf("Cast: %v", err)
	}
	if got != v {
		t.Fatalf("identity cast returned a new vector")
	}
}

func TestCastUnsupportedPair(t *testing.T) {
	t.Parallel()

	v := DatetimeValues([]time.Time{time.Now()}, nil)
	if _, err := Cast(v, dtype.Timedelta); err == nil {
		t.Fatalf("Cast datetime to timedelta succeeded, want error")
	}
}
