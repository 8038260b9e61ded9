package reconcile

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"curator/internal/dataset"
	"curator/internal/errkind"
	"curator/internal/logging"
)

// updateAssociatedTables merges an ingested file's table batches into the
// catalog in FK dependency order. Each pass resolves every table whose FK
// targets within the file are already resolved, remaps its primary keys
// into the catalog key space, propagates the remapping into the tables
// that reference it, and merges its rows. A pass with no progress while
// tables remain means the dependency graph cannot be satisfied.
func (e *Engine) updateAssociatedTables(batch map[string]*tableBatch) (added, updated int, err error) {
	remaining := make(map[string]struct{}, len(batch))
	for name := range batch {
		remaining[name] = struct{}{}
	}

	for len(remaining) > 0 {
		progress := false
		for i := range e.cfg.Tables {
			name := e.cfg.Tables[i].Name
			if _, ok := remaining[name]; !ok {
				continue
			}
			b := batch[name]
			if len(b.pending) > 0 {
				continue
			}

			a, u, pkMap := e.resolveTable(b)
			added += a
			updated += u

			for _, ref := range e.cfg.ReferencedBy(name) {
				rb, inBatch := batch[ref]
				if !inBatch {
					continue
				}
				if _, unresolved := remaining[ref]; !unresolved {
					continue
				}
				if len(pkMap) > 0 {
					rb.remapColumn(rb.table.ForeignKeys[name], pkMap)
					rb.reindex(e.nulls)
				}
				delete(rb.pending, name)
			}

			delete(remaining, name)
			progress = true
		}
		if !progress {
			var stuck []string
			for name := range remaining {
				stuck = append(stuck, name)
			}
			sort.Strings(stuck)
			return added, updated, errkind.Wrap(errkind.ErrIntegrity, "reconcile", "associations",
				fmt.Sprintf("unresolvable dependency order for tables %s", strings.Join(stuck, ", ")), nil)
		}
	}
	return added, updated, nil
}

// resolveTable splits a batch into update and add rows against the
// catalog, remaps relative primary keys into the catalog key space, and
// merges the rows in. The returned map carries every PK value change for
// propagation into referencing tables.
func (e *Engine) resolveTable(b *tableBatch) (added, updated int, pkMap map[string]string) {
	ds := e.cat.Ensure(b.table.Name)
	ds.AddColumns(b.columns)

	catIndex := make(map[string]int, len(ds.Rows))
	for i, row := range ds.Rows {
		if key, ok := dataset.CompositeKey(row, b.table.KeyColumns, e.nulls); ok {
			catIndex[key] = i
		}
	}

	var updateKeys, addKeys []string
	for _, key := range b.keys {
		if _, exists := catIndex[key]; exists {
			updateKeys = append(updateKeys, key)
		} else {
			addKeys = append(addKeys, key)
		}
	}

	pkMap = make(map[string]string)
	if pk := b.table.PrimaryKey; pk != nil {
		// Known keys keep the catalog's PK; the incoming value is discarded.
		for _, key := range updateKeys {
			row := b.rows[key]
			existing := ds.Rows[catIndex[key]][pk.Column]
			if incoming := row[pk.Column]; !e.nulls.IsNull(incoming) && incoming != existing {
				pkMap[incoming] = existing
			}
			row[pk.Column] = existing
		}
		if pk.Relative && len(addKeys) > 0 {
			e.assignNewKeys(b, addKeys, pkMap)
		}
		// Unmerge entries were recorded with file-local canonical values;
		// re-key them so the later FK repair writes catalog-space keys.
		if len(b.unmerge) > 0 && len(pkMap) > 0 {
			rekeyed := make(map[string][]string, len(b.unmerge))
			for canonical, merged := range b.unmerge {
				if mapped, ok := pkMap[canonical]; ok {
					canonical = mapped
				}
				rekeyed[canonical] = append(rekeyed[canonical], merged...)
			}
			b.unmerge = rekeyed
		}
	}

	for _, key := range updateKeys {
		incoming := b.rows[key]
		existing := ds.Rows[catIndex[key]]
		for _, col := range b.columns {
			if value := incoming[col]; !e.nulls.IsNull(value) {
				existing[col] = value
			}
		}
	}
	for _, key := range addKeys {
		incoming := b.rows[key]
		row := make(dataset.Row, len(b.columns))
		for _, col := range b.columns {
			if value := incoming[col]; !e.nulls.IsNull(value) {
				row[col] = value
			}
		}
		ds.Rows = append(ds.Rows, row)
	}

	return len(addKeys), len(updateKeys), pkMap
}

// assignNewKeys remaps the file-local PK values of new rows into the
// catalog key space. Integer batches are shifted as a block: every value
// moves by the same offset so gaps between file-local keys survive, and
// the counter then advances by the batch's unshifted maximum rather than
// the row count. Catalogs written under this rule depend on it; do not
// replace it with a per-row increment. Non-integer batches get fresh
// sequential surrogates instead.
func (e *Engine) assignNewKeys(b *tableBatch, addKeys []string, pkMap map[string]string) {
	pk := b.table.PrimaryKey
	next := e.nextPK[b.table.Name]

	if pk.Integer {
		values := make(map[string]int64, len(addKeys))
		integral := true
		var minVal, maxVal int64
		for i, key := range addKeys {
			parsed, ok := parseIntValue(b.rows[key][pk.Column])
			if !ok {
				integral = false
				break
			}
			values[key] = parsed
			if i == 0 || parsed < minVal {
				minVal = parsed
			}
			if i == 0 || parsed > maxVal {
				maxVal = parsed
			}
		}
		if integral {
			offset := next - minVal
			for _, key := range addKeys {
				row := b.rows[key]
				old := row[pk.Column]
				shifted := strconv.FormatInt(values[key]+offset, 10)
				row[pk.Column] = shifted
				if !e.nulls.IsNull(old) {
					pkMap[old] = shifted
				}
			}
			e.nextPK[b.table.Name] = next + maxVal
			return
		}
		e.logger.Warn("non-integer values in integer key column, assigning surrogates",
			logging.String("table", b.table.Name),
			logging.String("column", pk.Column))
	}

	for _, key := range addKeys {
		row := b.rows[key]
		old := row[pk.Column]
		surrogate := strconv.FormatInt(next, 10)
		next++
		row[pk.Column] = surrogate
		if !e.nulls.IsNull(old) {
			pkMap[old] = surrogate
		}
	}
	e.nextPK[b.table.Name] = next
}

// fixMergedPkValues repairs foreign keys that still point at PK values
// merged away while collapsing duplicate composite keys: in every table
// referencing the affected one, FK values equal to a merged-away key are
// rewritten to the canonical key. Comparison is type-aware so "5" and
// "5.0" repair alike.
func (e *Engine) fixMergedPkValues(batch map[string]*tableBatch) {
	for name, b := range batch {
		if len(b.unmerge) == 0 {
			continue
		}
		for _, ref := range e.cfg.ReferencedBy(name) {
			refTable, ok := e.cfg.Table(ref)
			if !ok {
				continue
			}
			column := refTable.ForeignKeys[name]
			ds := e.cat.Table(ref)
			if ds == nil || !ds.HasColumn(column) {
				continue
			}
			for _, row := range ds.Rows {
				current := row[column]
				for canonical, merged := range b.unmerge {
					for _, away := range merged {
						if dataset.ValuesEqual(current, away) {
							row[column] = canonical
							current = canonical
							break
						}
					}
				}
			}
		}
		b.unmerge = make(map[string][]string)
	}
}

func parseIntValue(value string) (int64, bool) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, false
	}
	if parsed, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return parsed, true
	}
	// Spreadsheet readers sometimes render integer cells as floats.
	if parsed, err := strconv.ParseFloat(trimmed, 64); err == nil && parsed == float64(int64(parsed)) {
		return int64(parsed), true
	}
	return 0, false
}
