package store

import (
	"cmp"
	"encoding/json"
	"strings"
)

// Value classes in ascending sort order, mirroring how document stores order mixed types.
const (
	classNull = iota
	classBool
	classNumber
	classString
	classArray
	classMap
)

// classify returns the sort class of a normalized value.
func classify(v any) int {
	switch v.(type) {
	case nil:
		return classNull
	case bool:
		return classBool
	case int64, float64, json.Number, int, int32, uint32, uint64, float32:
		return classNumber
	case string:
		return classString
	case []any, []string:
		return classArray
	default:
		return classMap
	}
}

// compareValues orders two field values. Integers compare exactly; mixed
// integer/float comparisons fall back to float64.
func compareValues(a, b any) int {
	a, b = normalizeValue(a), normalizeValue(b)

	ca, cb := classify(a), classify(b)
	if ca != cb {
		return cmp.Compare(ca, cb)
	}

	switch ca {
	case classNull:
		return 0
	case classBool:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	case classNumber:
		return compareNumbers(a, b)
	case classString:
		return strings.Compare(a.(string), b.(string))
	case classArray:
		aa, ba := a.([]any), b.([]any)
		for i := 0; i < len(aa) && i < len(ba); i++ {
			if c := compareValues(aa[i], ba[i]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(aa), len(ba))
	default:
		return 0
	}
}

func compareNumbers(a, b any) int {
	ai, aIsInt := exactInt(a)
	bi, bIsInt := exactInt(b)
	if aIsInt && bIsInt {
		return cmp.Compare(ai, bi)
	}
	return cmp.Compare(toFloat64(a), toFloat64(b))
}

// exactInt reports whether v is an integer value without fractional part.
func exactInt(v any) (int64, bool) {
	switch n := v.(type) {
	case float64, float32:
		return 0, false
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return toInt64(v)
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		i, _ := toInt64(v)
		return float64(i)
	}
}

// toSlice converts a caller-supplied list argument into []any.
func toSlice(v any) ([]any, bool) {
	switch t := v.(type) {
	case []any:
		return t, true
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	case []int64:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out, true
	case []int:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = int64(n)
		}
		return out, true
	default:
		return nil, false
	}
}
