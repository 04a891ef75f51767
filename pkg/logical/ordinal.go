package logical

import (
	"errors"
	"fmt"

	"tabular/pkg/vector"
)

// ErrOrdinalValue reports data containing a value outside an ordinal type's
// declared order.
var ErrOrdinalValue = errors.New("value not in ordinal order")

// ValidateData checks column data against an ordinal type's allowed values.
// Non-ordinal types validate trivially. Null rows are ignored; the first
// out-of-range value fails the whole column.
//
// Callers on deferred backends skip this check rather than force data into
// memory; that omission is theirs to document.
func (t Type) ValidateData(v vector.Vector) error {
	if !t.IsOrdinal() {
		return nil
	}
	if len(t.Order) == 0 {
		return fmt.Errorf("logical: ordinal type used without a declared order")
	}

	allowed := make(map[string]struct{}, len(t.Order))
	for _, o := range t.Order {
		allowed[o] = struct{}{}
	}
	for i := 0; i < v.Len(); i++ {
		s, ok := v.StringAt(i)
		if !ok {
			continue
		}
		if _, ok := allowed[s]; !ok {
			return fmt.Errorf("logical: row %d value %q: %w (order %v)", i, s, ErrOrdinalValue, t.Order)
		}
	}
	return nil
}
