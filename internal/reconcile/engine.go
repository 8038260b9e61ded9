package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"curator/internal/catalog"
	"curator/internal/config"
	"curator/internal/dataset"
	"curator/internal/errkind"
	"curator/internal/journal"
	"curator/internal/lifecycle"
	"curator/internal/logging"
	"curator/internal/tabfile"
)

// Engine reconciles staged metadata files into the reference catalog and
// marks catalog rows published when their data files arrive. It owns the
// catalog's next-PK counters and the per-classification ignore sets; all
// physical file movement is delegated to the lifecycle manager.
type Engine struct {
	cfg     *config.Config
	cat     *catalog.Catalog
	files   *lifecycle.Manager
	journal *journal.Store
	logger  *slog.Logger
	filter  *dataset.ColumnFilter
	nulls   dataset.NullSet

	nextPK map[string]int64
	ignore map[string]map[string]struct{}
}

// NewEngine constructs the engine. Next-PK counters start at
// max(existing catalog values)+1 per keyed table. The journal store may be
// nil; records are then dropped.
func NewEngine(cfg *config.Config, cat *catalog.Catalog, files *lifecycle.Manager, jr *journal.Store, filter *dataset.ColumnFilter, logger *slog.Logger) *Engine {
	e := &Engine{
		cfg:     cfg,
		cat:     cat,
		files:   files,
		journal: jr,
		logger:  logging.NewComponentLogger(logger, "reconcile"),
		filter:  filter,
		nulls:   dataset.NewNullSet(cfg.Values.NullSentinels),
		nextPK:  make(map[string]int64),
		ignore:  make(map[string]map[string]struct{}),
	}
	for i := range cfg.Tables {
		tbl := &cfg.Tables[i]
		if tbl.PrimaryKey == nil {
			continue
		}
		next := int64(1)
		if max, ok := cat.MaxIntValue(tbl.Name, tbl.PrimaryKey.Column); ok {
			next = max + 1
		}
		e.nextPK[tbl.Name] = next
	}
	return e
}

// Ignored returns the data file names currently skipped per classification
// key, for observability.
func (e *Engine) Ignored() map[string][]string {
	out := make(map[string][]string, len(e.ignore))
	for key, names := range e.ignore {
		for name := range names {
			out[key] = append(out[key], name)
		}
	}
	return out
}

// ProcessMetadataFiles ingests every staged metadata file, grouped by the
// table its name classified under. Each file is reconciled and persisted
// independently; a failing file is quarantined or left staged without
// affecting the rest of the batch.
func (e *Engine) ProcessMetadataFiles(ctx context.Context, cycleID string, byTable map[string][]string) error {
	var errs []error
	for i := range e.cfg.Tables {
		name := e.cfg.Tables[i].Name
		for _, path := range byTable[name] {
			if err := e.processMetadataFile(ctx, cycleID, name, path); err != nil {
				errs = append(errs, err)
				if errors.Is(err, errkind.ErrPersistence) {
					// No replica is writable; later files would fail the same way.
					return errors.Join(errs...)
				}
			}
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) processMetadataFile(ctx context.Context, cycleID, classification, path string) error {
	base := filepath.Base(path)

	sheets, err := tabfile.ReadFile(path, e.filter)
	if err != nil {
		wrapped := errkind.Wrap(errkind.ErrValidation, "reconcile", "read", "read "+base, err)
		e.rejectFile(ctx, cycleID, classification, path, wrapped)
		return wrapped
	}

	batch, err := e.buildBatch(sheets, classification, base)
	if err != nil {
		e.rejectFile(ctx, cycleID, classification, path, err)
		return err
	}
	if _, ok := batch[classification]; !ok {
		wrapped := errkind.Wrap(errkind.ErrValidation, "reconcile", "identify",
			"file "+base+" is missing table "+classification, nil)
		e.rejectFile(ctx, cycleID, classification, path, wrapped)
		return wrapped
	}

	added, updated, err := e.updateAssociatedTables(batch)
	if err != nil {
		// Unsatisfiable dependency order; the file cannot be expressed
		// against the configured associations.
		e.logger.Error("reconciliation aborted", logging.String("file", base), logging.Error(err))
		if qErr := e.files.Quarantine(path, e.cfg.Overwrite.Trash); qErr != nil {
			e.logger.Error("quarantine failed", logging.String("file", base), logging.Error(qErr))
		}
		e.recordFile(ctx, journal.FileRecord{
			CycleID: cycleID, Path: path, Table: classification,
			Action: journal.ActionTrashed, Error: err.Error(),
		})
		return err
	}
	e.fixMergedPkValues(batch)

	if err := e.cat.Persist(); err != nil {
		e.logger.Error("catalog persist failed, file stays staged",
			logging.String("file", base), logging.Error(err))
		e.recordFile(ctx, journal.FileRecord{
			CycleID: cycleID, Path: path, Table: classification,
			Action: journal.ActionFailed, Error: err.Error(),
		})
		return err
	}
	e.clearIgnored()

	if err := e.files.MoveToStore([]string{path}); err != nil {
		// Catalog already holds the rows; re-ingesting the stranded file
		// next cycle is idempotent.
		e.logger.Warn("store move failed, will retry", logging.String("file", base), logging.Error(err))
	}

	e.logger.Info("metadata file reconciled",
		logging.String("file", base),
		logging.Int("added", added),
		logging.Int("updated", updated))
	e.recordFile(ctx, journal.FileRecord{
		CycleID: cycleID, Path: path, Table: classification,
		Action: journal.ActionMerged, RowsAdded: added, RowsUpdated: updated,
	})
	return nil
}

// buildBatch identifies the table behind every sheet and indexes its rows.
// Unidentifiable sheets are skipped with a warning; an ambiguous sheet
// rejects the whole file.
func (e *Engine) buildBatch(sheets []tabfile.Sheet, classification, fileName string) (map[string]*tableBatch, error) {
	batch := make(map[string]*tableBatch)
	for _, sheet := range sheets {
		suggested := classification
		if name, ok := e.cfg.TableForSheet(sheet.Name); ok {
			suggested = name
		}
		tbl, err := e.identifyTable(sheet.Data.Columns, suggested)
		if err != nil {
			if errors.Is(err, errAmbiguous) {
				return nil, errkind.Wrap(errkind.ErrValidation, "reconcile", "identify",
					"sheet "+sheet.Name+" in "+fileName+" matches several tables", err)
			}
			e.logger.Warn("sheet matches no table, skipped",
				logging.String("file", fileName),
				logging.String("sheet", sheet.Name))
			continue
		}
		if existing, ok := batch[tbl.Name]; ok {
			existing.appendRows(sheet.Data.Rows, sheet.Data.Columns, e.nulls)
			continue
		}
		batch[tbl.Name] = newTableBatch(sheet.Data, tbl, e.nulls)
	}
	for name, b := range batch {
		for target := range b.table.ForeignKeys {
			if target == name {
				continue
			}
			if _, inBatch := batch[target]; inBatch {
				b.pending[target] = struct{}{}
			}
		}
	}
	return batch, nil
}

// rejectFile handles a validation failure: quarantine when configured,
// otherwise leave the file staged for the next cycle.
func (e *Engine) rejectFile(ctx context.Context, cycleID, classification, path string, cause error) {
	base := filepath.Base(path)
	e.logger.Warn("metadata file rejected", logging.String("file", base), logging.Error(cause))

	action := journal.ActionFailed
	if e.cfg.Workflow.QuarantineInvalid {
		if err := e.files.Quarantine(path, e.cfg.Overwrite.Trash); err != nil {
			e.logger.Error("quarantine failed", logging.String("file", base), logging.Error(err))
		} else {
			action = journal.ActionTrashed
		}
	}
	e.recordFile(ctx, journal.FileRecord{
		CycleID: cycleID, Path: path, Table: classification,
		Action: action, Error: cause.Error(),
	})
}

func (e *Engine) recordFile(ctx context.Context, rec journal.FileRecord) {
	if e.journal == nil {
		return
	}
	if err := e.journal.RecordFile(ctx, rec); err != nil {
		e.logger.Warn("journal write failed", logging.Error(err))
	}
}

func (e *Engine) clearIgnored() {
	if len(e.ignore) == 0 {
		return
	}
	e.ignore = make(map[string]map[string]struct{})
	e.logger.Debug("ignore sets cleared after catalog change")
}
