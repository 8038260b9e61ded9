package dataset

import (
	"sort"
	"strconv"
	"strings"
)

// keySeparator joins key column values into a composite key. The unit
// separator cannot appear in cell text read from workbooks.
const keySeparator = "\x1f"

// Row maps column names to cell text. Cells for columns absent from the
// owning dataset's column list are not stored.
type Row map[string]string

// Dataset is an ordered collection of rows with an explicit column list.
// Row order is the arrival order; merges update rows in place and append
// new rows at the end, so persisting without a sort spec preserves the
// order in which records were first ingested.
type Dataset struct {
	Columns []string
	Rows    []Row
}

// New returns an empty dataset with the given column list.
func New(columns ...string) *Dataset {
	return &Dataset{Columns: append([]string(nil), columns...)}
}

// Clone returns a deep copy of the dataset.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return nil
	}
	out := &Dataset{Columns: append([]string(nil), d.Columns...)}
	out.Rows = make([]Row, 0, len(d.Rows))
	for _, row := range d.Rows {
		cp := make(Row, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out.Rows = append(out.Rows, cp)
	}
	return out
}

// Empty reports whether the dataset has no rows.
func (d *Dataset) Empty() bool {
	return d == nil || len(d.Rows) == 0
}

// HasColumn reports whether name is in the column list.
func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// AddColumns extends the column list using the order-preserving merge rule.
// Existing rows are unchanged; absent cells read as null.
func (d *Dataset) AddColumns(incoming []string) {
	d.Columns = MergeColumns(d.Columns, incoming)
}

// CompositeKey concatenates the key column values of row. ok is false when
// any key component is null, in which case the row must be dropped before
// merging.
func CompositeKey(row Row, keyColumns []string, nulls NullSet) (string, bool) {
	parts := make([]string, 0, len(keyColumns))
	for _, col := range keyColumns {
		value := strings.TrimSpace(row[col])
		if nulls.IsNull(value) {
			return "", false
		}
		parts = append(parts, value)
	}
	return strings.Join(parts, keySeparator), true
}

// AggregateRows collapses duplicate rows column-wise: zero non-null values
// yield null, one distinct non-null value yields that value, and multiple
// distinct values are comma-joined in first-seen order.
func AggregateRows(rows []Row, columns []string, nulls NullSet) Row {
	out := make(Row, len(columns))
	for _, col := range columns {
		var distinct []string
		for _, row := range rows {
			value := strings.TrimSpace(row[col])
			if nulls.IsNull(value) {
				continue
			}
			seen := false
			for _, existing := range distinct {
				if existing == value {
					seen = true
					break
				}
			}
			if !seen {
				distinct = append(distinct, value)
			}
		}
		out[col] = strings.Join(distinct, ", ")
	}
	return out
}

// SortSpec describes row ordering for persistence.
type SortSpec struct {
	Columns    []string
	Descending bool
}

// Sort orders rows by the spec's columns, comparing numerically when both
// values parse as numbers. An empty spec keeps arrival order.
func (d *Dataset) Sort(spec SortSpec) {
	if len(spec.Columns) == 0 {
		return
	}
	sort.SliceStable(d.Rows, func(i, j int) bool {
		for _, col := range spec.Columns {
			cmp := compareValues(d.Rows[i][col], d.Rows[j][col])
			if cmp == 0 {
				continue
			}
			if spec.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func compareValues(a, b string) int {
	fa, errA := strconv.ParseFloat(strings.TrimSpace(a), 64)
	fb, errB := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}
