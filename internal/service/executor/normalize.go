package executor

import (
	"github.com/spf13/cast"

	"metriclens/internal/domain"
)

// NormalizeValue coerces backend string values to numbers: int64 when the
// value has no fractional part, float64 otherwise. Non-string values pass
// through untouched, so normalization is idempotent and both the native and
// software execution paths agree on the result type.
func NormalizeValue(v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return normalizeString(string(x))
	case string:
		return normalizeString(x)
	default:
		return v
	}
}

func normalizeString(s string) interface{} {
	if i, err := cast.ToInt64E(s); err == nil {
		return i
	}
	if f, err := cast.ToFloat64E(s); err == nil {
		return f
	}
	return s
}

func normalizeRows(rows []domain.Row) []domain.Row {
	for _, row := range rows {
		for k, v := range row {
			row[k] = NormalizeValue(v)
		}
	}
	return rows
}

// isNumeric reports whether a normalized value is a number, returning its
// float64 reading.
func isNumeric(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case float64:
		return x, true
	case float32:
		return float64(x), true
	}
	return 0, false
}

// compareValues orders two normalized values: nulls first, numbers
// numerically, everything else by string form.
func compareValues(a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	fa, aNum := isNumeric(a)
	fb, bNum := isNumeric(b)
	if aNum && bNum {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	sa, sb := cast.ToString(a), cast.ToString(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return 0
	}
}
