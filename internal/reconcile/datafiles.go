package reconcile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"curator/internal/config"
	"curator/internal/errkind"
	"curator/internal/journal"
	"curator/internal/logging"
)

const publishedMark = "1"

// ProcessDataFiles marks catalog rows published for every staged data file
// whose name appears in a filename column, persists the catalog, and hands
// the files to the lifecycle manager for publication. Files matching no
// row are remembered per classification and skipped until the catalog next
// changes, but are still relocated so they do not accumulate in staging.
// Sources are deleted only after every publish copy succeeded.
func (e *Engine) ProcessDataFiles(ctx context.Context, cycleID string, byKey map[string][]string) error {
	var errs []error
	for i := range e.cfg.Tables {
		key := e.cfg.Tables[i].Name
		paths := byKey[key]
		if len(paths) == 0 {
			continue
		}
		if err := e.processDataGroup(ctx, cycleID, &e.cfg.Tables[i], paths); err != nil {
			errs = append(errs, err)
			if errors.Is(err, errkind.ErrPersistence) {
				return errors.Join(errs...)
			}
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) processDataGroup(ctx context.Context, cycleID string, tbl *config.Table, paths []string) error {
	changed := false
	var relocate []string
	found := make(map[string]bool, len(paths))

	for _, path := range paths {
		base := filepath.Base(path)
		if e.isIgnored(tbl.Name, base) {
			e.logger.Debug("data file still unmatched, skipped",
				logging.String("file", base), logging.String("classification", tbl.Name))
			continue
		}

		lookup := lookupName(tbl, base)
		hit := e.markPublished(lookup)
		if hit {
			changed = true
		} else {
			e.addIgnored(tbl.Name, base)
			e.logger.Warn("data file matches no catalog row",
				logging.String("file", base),
				logging.String("lookup", lookup),
				logging.String("classification", tbl.Name))
		}
		found[path] = hit
		relocate = append(relocate, path)
	}
	if len(relocate) == 0 {
		return nil
	}

	if changed {
		if err := e.cat.Persist(); err != nil {
			e.logger.Error("catalog persist failed, data files stay staged", logging.Error(err))
			return err
		}
	}

	if len(tbl.Outputs) == 0 {
		if err := e.files.MoveToStore(relocate); err != nil {
			return err
		}
		for _, path := range relocate {
			action := journal.ActionStored
			if !found[path] {
				action = journal.ActionIgnored
			}
			e.recordFile(ctx, journal.FileRecord{
				CycleID: cycleID, Path: path, Table: tbl.Name, Action: action,
			})
		}
		return nil
	}

	if err := e.files.Publish(relocate, tbl.Name); err != nil {
		e.logger.Error("publish failed, sources retained", logging.Error(err))
		return err
	}
	for _, path := range relocate {
		if err := os.Remove(path); err != nil {
			e.logger.Warn("remove published source failed",
				logging.String("file", filepath.Base(path)), logging.Error(err))
			continue
		}
		action := journal.ActionPublished
		if !found[path] {
			action = journal.ActionIgnored
		}
		e.recordFile(ctx, journal.FileRecord{
			CycleID: cycleID, Path: path, Table: tbl.Name, Action: action,
		})
	}
	return nil
}

// markPublished scans every non-empty catalog table whose filename columns
// contain name as a substring and sets that table's published columns on
// the matching rows.
func (e *Engine) markPublished(name string) bool {
	hit := false
	for i := range e.cfg.Tables {
		tbl := &e.cfg.Tables[i]
		if len(tbl.FilenameColumns) == 0 || len(tbl.PublishedColumns) == 0 {
			continue
		}
		ds := e.cat.Table(tbl.Name)
		if ds == nil || ds.Empty() {
			continue
		}
		for _, row := range ds.Rows {
			matched := false
			for _, col := range tbl.FilenameColumns {
				if value := row[col]; value != "" && strings.Contains(value, name) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
			ds.AddColumns(tbl.PublishedColumns)
			for _, col := range tbl.PublishedColumns {
				row[col] = publishedMark
			}
			hit = true
		}
	}
	return hit
}

// lookupName derives the catalog lookup text from a data file's base name:
// the filename pattern's first capture group (or whole match) when
// configured, then the text transforms in order.
func lookupName(tbl *config.Table, base string) string {
	name := base
	if re := tbl.FilenameRegexp(); re != nil {
		if m := re.FindStringSubmatch(base); m != nil {
			if len(m) > 1 && m[1] != "" {
				name = m[1]
			} else {
				name = m[0]
			}
		}
	}
	for _, tr := range tbl.Transforms {
		switch tr.Op {
		case "replace":
			name = strings.ReplaceAll(name, tr.From, tr.Value)
		case "prefix":
			name = tr.Value + name
		case "suffix":
			name = name + tr.Value
		}
	}
	return name
}

func (e *Engine) isIgnored(key, base string) bool {
	names, ok := e.ignore[key]
	if !ok {
		return false
	}
	_, ignored := names[base]
	return ignored
}

func (e *Engine) addIgnored(key, base string) {
	if e.ignore[key] == nil {
		e.ignore[key] = make(map[string]struct{})
	}
	e.ignore[key][base] = struct{}{}
}
