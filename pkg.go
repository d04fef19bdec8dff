package tipy

import (
	"fmt"
	"reflect"
)

// uniqueIDs drops blank and repeated ids, keeping first occurrences in order.
func uniqueIDs(ids []any) []any {
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		if isBlankID(id) {
			continue
		}
		seen := false
		for _, kept := range out {
			if compareIDs(kept, id) {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, id)
		}
	}
	return out
}

// compareIDs compares two ID values, handling type conversions (int vs int64, etc.)
func compareIDs(a, b any) bool {
	// Fast path: direct equality check (handles same type comparisons)
	if a == b {
		return true
	}

	if a == nil || b == nil {
		return false
	}

	if ab, ok := a.([]byte); ok {
		a = string(ab)
	}
	if bb, ok := b.([]byte); ok {
		b = string(bb)
	}

	aVal := reflect.ValueOf(a)
	bVal := reflect.ValueOf(b)

	aKind := aVal.Kind()
	bKind := bVal.Kind()

	if isInteger(aKind) && isInteger(bKind) {
		return aVal.Int() == bVal.Int()
	}

	if isUint(aKind) && isUint(bKind) {
		return aVal.Uint() == bVal.Uint()
	}

	if isInteger(aKind) && isUint(bKind) {
		aInt := aVal.Int()
		if aInt < 0 {
			return false
		}
		return uint64(aInt) == bVal.Uint()
	}
	if isUint(aKind) && isInteger(bKind) {
		bInt := bVal.Int()
		if bInt < 0 {
			return false
		}
		return aVal.Uint() == uint64(bInt)
	}

	// Fallback to string comparison: "7" from a text column equals int64(7)
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func isInteger(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uint64
}
