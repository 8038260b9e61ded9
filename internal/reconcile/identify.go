package reconcile

import (
	"errors"

	"curator/internal/config"
)

var (
	errNoMatch   = errors.New("columns match no configured table")
	errAmbiguous = errors.New("columns match multiple tables")
)

// identifyTable finds the configured table whose required columns are a
// subset of the given column list, preferring the closest fit. Distance is
// the number of columns beyond the required set; the table with minimum
// distance wins. Ties are broken by suggested (typically the sheet name or
// the file's classification); a tie without a usable suggestion is
// ambiguous.
func (e *Engine) identifyTable(columns []string, suggested string) (*config.Table, error) {
	present := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		present[col] = struct{}{}
	}

	best := -1
	var candidates []*config.Table
	for i := range e.cfg.Tables {
		tbl := &e.cfg.Tables[i]
		covered := true
		for _, req := range tbl.RequiredColumns {
			if _, ok := present[req]; !ok {
				covered = false
				break
			}
		}
		if !covered {
			continue
		}
		distance := len(columns) - len(tbl.RequiredColumns)
		switch {
		case best < 0 || distance < best:
			best = distance
			candidates = candidates[:0]
			candidates = append(candidates, tbl)
		case distance == best:
			candidates = append(candidates, tbl)
		}
	}

	switch len(candidates) {
	case 0:
		return nil, errNoMatch
	case 1:
		return candidates[0], nil
	}
	for _, tbl := range candidates {
		if tbl.Name == suggested {
			return tbl, nil
		}
	}
	return nil, errAmbiguous
}
