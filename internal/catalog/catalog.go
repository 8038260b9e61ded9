package catalog

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"curator/internal/config"
	"curator/internal/dataset"
	"curator/internal/errkind"
	"curator/internal/logging"
	"curator/internal/tabfile"
)

// Catalog is the authoritative multi-table dataset persisted across cycles.
// It is owned exclusively by the reconciliation engine.
type Catalog struct {
	cfg    *config.Config
	logger *slog.Logger
	tables map[string]*dataset.Dataset
}

// Load builds the catalog from the most recently modified replica, or
// returns an empty catalog when no replica exists yet.
func Load(cfg *config.Config, filter *dataset.ColumnFilter, logger *slog.Logger) (*Catalog, error) {
	c := &Catalog{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "catalog"),
		tables: make(map[string]*dataset.Dataset),
	}

	latest := latestReplica(cfg.Catalog.Replicas)
	if latest == "" {
		c.logger.Info("no catalog replica found, starting empty")
		return c, nil
	}

	sheets, err := tabfile.ReadWorkbook(latest, filter)
	if err != nil {
		return nil, errkind.Wrap(errkind.ErrConfiguration, "catalog", "load", "read replica "+latest, err)
	}
	for _, sheet := range sheets {
		table, ok := cfg.TableForSheet(sheet.Name)
		if !ok {
			c.logger.Warn("replica sheet matches no configured table, skipping",
				logging.String("sheet", sheet.Name),
				logging.String("replica", latest))
			continue
		}
		c.tables[table] = sheet.Data
	}

	c.logger.Info("catalog loaded",
		logging.String("replica", latest),
		logging.Int("tables", len(c.tables)))
	return c, nil
}

func latestReplica(replicas []string) string {
	var latest string
	var latestMod int64
	for _, replica := range replicas {
		info, err := os.Stat(replica)
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); latest == "" || mod > latestMod {
			latest = replica
			latestMod = mod
		}
	}
	return latest
}

// Table returns the dataset for the named table, or nil when the table has
// not been populated yet.
func (c *Catalog) Table(name string) *dataset.Dataset {
	return c.tables[name]
}

// Ensure returns the dataset for the named table, creating an empty one on
// first use.
func (c *Catalog) Ensure(name string) *dataset.Dataset {
	if existing, ok := c.tables[name]; ok {
		return existing
	}
	created := dataset.New()
	c.tables[name] = created
	return created
}

// MaxIntValue returns the largest integer value found in the column of the
// named table. ok is false when no parseable value exists.
func (c *Catalog) MaxIntValue(table, column string) (int64, bool) {
	data := c.tables[table]
	if data == nil {
		return 0, false
	}
	var max int64
	found := false
	for _, row := range data.Rows {
		value, err := strconv.ParseInt(strings.TrimSpace(row[column]), 10, 64)
		if err != nil {
			continue
		}
		if !found || value > max {
			max = value
			found = true
		}
	}
	return max, found
}

// Persist writes every populated table as a sheet to every configured
// replica. Rows are sorted per table sort spec on a copy so the in-memory
// arrival order is preserved. At least one replica write must succeed.
func (c *Catalog) Persist() error {
	var sheets []tabfile.Sheet
	for i := range c.cfg.Tables {
		tcfg := &c.cfg.Tables[i]
		data := c.tables[tcfg.Name]
		if data == nil || data.Empty() {
			continue
		}
		sorted := data.Clone()
		sorted.Sort(dataset.SortSpec{Columns: tcfg.SortColumns, Descending: tcfg.SortDescending})
		sheets = append(sheets, tabfile.Sheet{Name: tcfg.DisplayName, Data: sorted})
	}
	if len(sheets) == 0 {
		return nil
	}

	written := 0
	var lastErr error
	for _, replica := range c.cfg.Catalog.Replicas {
		if err := tabfile.WriteWorkbook(replica, sheets); err != nil {
			lastErr = err
			c.logger.Error("catalog replica write failed",
				logging.String("replica", replica),
				logging.Error(err))
			continue
		}
		written++
		c.logger.Info("catalog replica updated", logging.String("replica", replica))
	}
	if written == 0 {
		return errkind.Wrap(errkind.ErrPersistence, "catalog", "persist", "all replica writes failed", lastErr)
	}
	return nil
}
