package dataset

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MergeColumns reconciles an incoming column order into an existing one.
// Existing columns keep their positions. Each incoming column not yet
// present is placed after its closest preceding incoming neighbour that
// survives in the merged list, or before its closest following neighbour,
// or appended at the end when no neighbour survives.
func MergeColumns(existing, incoming []string) []string {
	merged := append([]string(nil), existing...)

	position := func(name string) int {
		for i, c := range merged {
			if c == name {
				return i
			}
		}
		return -1
	}

	for i, col := range incoming {
		if position(col) >= 0 {
			continue
		}

		insertAt := len(merged)
		placed := false
		for j := i - 1; j >= 0; j-- {
			if at := position(incoming[j]); at >= 0 {
				insertAt = at + 1
				placed = true
				break
			}
		}
		if !placed {
			for j := i + 1; j < len(incoming); j++ {
				if at := position(incoming[j]); at >= 0 {
					insertAt = at
					break
				}
			}
		}

		merged = append(merged, "")
		copy(merged[insertAt+1:], merged[insertAt:])
		merged[insertAt] = col
	}

	return merged
}

// ColumnFilter normalizes column names read from input files: Unicode NFC
// normalization, whitespace trimming, and removal of characters matching
// the configured filter expression.
type ColumnFilter struct {
	drop *regexp.Regexp
}

// NewColumnFilter compiles the configured character filter expression.
// An empty expression disables character removal.
func NewColumnFilter(expr string) (*ColumnFilter, error) {
	if strings.TrimSpace(expr) == "" {
		return &ColumnFilter{}, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &ColumnFilter{drop: re}, nil
}

// Apply returns the normalized column name.
func (f *ColumnFilter) Apply(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	if f != nil && f.drop != nil {
		name = f.drop.ReplaceAllString(name, "")
	}
	return name
}

// ApplyAll normalizes every name, dropping any that become empty.
func (f *ColumnFilter) ApplyAll(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if cleaned := f.Apply(name); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}
