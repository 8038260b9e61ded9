package reconcile

import (
	"curator/internal/config"
	"curator/internal/dataset"
)

// tableBatch holds one table's share of an ingested file: its rows keyed
// and de-duplicated by composite key, the column list in file order, the
// FK targets still unresolved within the same file, and the PK values
// merged away while collapsing duplicate keys (canonical -> merged-away).
type tableBatch struct {
	table   *config.Table
	columns []string
	raw     []dataset.Row

	keys    []string
	rows    map[string]dataset.Row
	pending map[string]struct{}
	unmerge map[string][]string
}

func newTableBatch(data *dataset.Dataset, table *config.Table, nulls dataset.NullSet) *tableBatch {
	b := &tableBatch{
		table:   table,
		columns: append([]string(nil), data.Columns...),
		raw:     append([]dataset.Row(nil), data.Rows...),
		pending: make(map[string]struct{}),
		unmerge: make(map[string][]string),
	}
	b.reindex(nulls)
	return b
}

// appendRows adds rows from a further sheet that identified as the same
// table, widening the column list as needed.
func (b *tableBatch) appendRows(rows []dataset.Row, columns []string, nulls dataset.NullSet) {
	b.columns = dataset.MergeColumns(b.columns, columns)
	b.raw = append(b.raw, rows...)
	b.reindex(nulls)
}

// reindex rebuilds the composite-key index from the raw rows. Rows whose
// key is null are dropped; rows sharing a key are aggregated column-wise
// and a multi-valued PK is collapsed to its first value, recording the
// rest for later FK repair. Called again after FK remapping, since a
// remapped FK may participate in the key.
func (b *tableBatch) reindex(nulls dataset.NullSet) {
	groups := make(map[string][]dataset.Row)
	var order []string
	for _, row := range b.raw {
		key, ok := dataset.CompositeKey(row, b.table.KeyColumns, nulls)
		if !ok {
			continue
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], row)
	}

	b.keys = order
	b.rows = make(map[string]dataset.Row, len(order))
	for _, key := range order {
		group := groups[key]
		if len(group) == 1 {
			b.rows[key] = group[0]
			continue
		}
		agg := dataset.AggregateRows(group, b.columns, nulls)
		if pk := b.table.PrimaryKey; pk != nil {
			b.collapsePK(agg, group, pk.Column, nulls)
		}
		b.rows[key] = agg
	}
}

// collapsePK replaces a multi-valued aggregated PK with its first-seen
// value and records the values merged away.
func (b *tableBatch) collapsePK(agg dataset.Row, group []dataset.Row, pkColumn string, nulls dataset.NullSet) {
	var distinct []string
	for _, row := range group {
		value := row[pkColumn]
		if nulls.IsNull(value) {
			continue
		}
		seen := false
		for _, prior := range distinct {
			if prior == value {
				seen = true
				break
			}
		}
		if !seen {
			distinct = append(distinct, value)
		}
	}
	if len(distinct) < 2 {
		return
	}
	canonical := distinct[0]
	b.unmerge[canonical] = append(b.unmerge[canonical], distinct[1:]...)
	agg[pkColumn] = canonical
}

// remapColumn rewrites values of one column through a PK map, updating the
// raw rows so a subsequent reindex sees the new values.
func (b *tableBatch) remapColumn(column string, pkMap map[string]string) {
	for _, row := range b.raw {
		if mapped, ok := pkMap[row[column]]; ok {
			row[column] = mapped
		}
	}
}
