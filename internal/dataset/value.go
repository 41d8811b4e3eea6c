package dataset

import (
	"math"
	"strconv"

	"golang.org/x/exp/constraints"
)

// maxExactInt is the largest magnitude at which every integer is exactly representable as float64.
const maxExactInt = 1 << 53

// Key returns the canonical text form of a cell value, used for set membership
// and group identity. Integral floats collapse onto their integer form so a year
// stored as 2020.0 and a selection of 2020 agree. ok is false for missing values.
func Key(v any) (key string, ok bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case int64:
		return strconv.FormatInt(x, 10), true
	case int:
		return strconv.Itoa(x), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < maxExactInt {
			return strconv.FormatInt(int64(x), 10), true
		}
		return strconv.FormatFloat(x, 'g', -1, 64), true
	case float32:
		return Key(float64(x))
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}

// Float converts a numeric cell value to float64. Booleans map to 1 and 0.
// NaN counts as missing.
func Float(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x)
	case float32:
		return float64(x), !math.IsNaN(float64(x))
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Compare orders two cell values: numbers numerically, text lexically,
// numbers before text, and missing values last.
func Compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}

	af, aNum := numeric(a)
	bf, bNum := numeric(b)
	switch {
	case aNum && bNum:
		return compareOrdered(af, bf)
	case aNum:
		return -1
	case bNum:
		return 1
	}

	ak, _ := Key(a)
	bk, _ := Key(b)
	return compareOrdered(ak, bk)
}

func numeric(v any) (float64, bool) {
	if _, isBool := v.(bool); isBool {
		return 0, false
	}
	return Float(v)
}

func compareOrdered[T constraints.Ordered](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
