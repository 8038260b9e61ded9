package dataset

import (
	"strconv"
	"strings"
)

// NullSet holds the configured sentinel strings treated as null cell values.
// The empty string is always null.
type NullSet map[string]struct{}

// NewNullSet builds a null set from the configured sentinels.
func NewNullSet(sentinels []string) NullSet {
	out := make(NullSet, len(sentinels))
	for _, s := range sentinels {
		out[strings.TrimSpace(s)] = struct{}{}
	}
	return out
}

// IsNull reports whether the value is empty or a configured sentinel.
func (n NullSet) IsNull(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return true
	}
	_, ok := n[value]
	return ok
}

// ValuesEqual compares two cell values, numerically when both parse as
// numbers so "7" matches "7.0".
func ValuesEqual(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == b {
		return true
	}
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	return errA == nil && errB == nil && fa == fb
}
