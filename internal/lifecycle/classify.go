package lifecycle

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"curator/internal/logging"
)

// Classified holds staged file paths bucketed by classification.
type Classified struct {
	// Metadata maps table name to staged metadata file paths.
	Metadata map[string][]string
	// Data maps classification key (table name) to staged data file paths.
	Data map[string][]string
}

func newClassified() Classified {
	return Classified{
		Metadata: make(map[string][]string),
		Data:     make(map[string][]string),
	}
}

type classification struct {
	table    string
	metadata bool
}

// classify tests a file name against the metadata patterns then the data
// patterns, in table configuration order. The first match wins.
func (m *Manager) classify(name string) (classification, bool) {
	for i := range m.cfg.Tables {
		tbl := &m.cfg.Tables[i]
		if re := tbl.MetadataRegexp(); re != nil && re.MatchString(name) {
			return classification{table: tbl.Name, metadata: true}, true
		}
	}
	for i := range m.cfg.Tables {
		tbl := &m.cfg.Tables[i]
		if re := tbl.DataRegexp(); re != nil && re.MatchString(name) {
			return classification{table: tbl.Name}, true
		}
	}
	return classification{}, false
}

// ClassifyAndStage scans the staging folder (files staged in earlier
// cycles, listed without moving) and then the watch folder (new arrivals,
// moved into staging) and buckets every classified file by table.
// Unmatched watch files are quarantined when discard_unmatched is set,
// otherwise left in place. Subdirectories seen during the scan are removed
// afterwards only if they are empty, never when new files have appeared
// in the meantime.
func (m *Manager) ClassifyAndStage() (Classified, error) {
	out := newClassified()

	if err := m.scanFolder(m.cfg.Folders.Staging, false, &out); err != nil {
		return out, err
	}
	if err := m.scanFolder(m.cfg.Folders.Watch, true, &out); err != nil {
		return out, err
	}
	return out, nil
}

func (m *Manager) scanFolder(folder string, arriving bool, out *Classified) error {
	var files []string
	var dirs []string

	err := filepath.WalkDir(folder, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			// Entry vanished mid-scan; an external writer beat us to it.
			m.logger.Warn("scan entry skipped", logging.String("path", path), logging.Error(err))
			return nil
		}
		if path == folder {
			return nil
		}
		if entry.IsDir() {
			dirs = append(dirs, path)
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return err
	}

	if len(files) == 0 {
		m.logger.Debug("folder has nothing to process", logging.String("folder", folder))
	} else {
		m.logger.Info("folder scan",
			logging.String("folder", folder),
			logging.Int("files", len(files)))
	}

	for _, path := range files {
		class, matched := m.classify(filepath.Base(path))
		if !matched {
			if arriving && m.cfg.Workflow.DiscardUnmatched {
				if err := m.Quarantine(path, m.cfg.Overwrite.Trash); err != nil {
					m.logger.Error("quarantine unmatched file failed",
						logging.String("file", filepath.Base(path)), logging.Error(err))
				}
			}
			continue
		}

		staged := path
		if arriving {
			var ok bool
			var err error
			staged, ok, err = m.StageFile(path)
			if err != nil {
				m.logger.Error("stage failed", logging.String("file", filepath.Base(path)), logging.Error(err))
				continue
			}
			if !ok {
				continue // duplicate of an already-staged file
			}
		}

		if class.metadata {
			out.Metadata[class.table] = append(out.Metadata[class.table], staged)
		} else {
			out.Data[class.table] = append(out.Data[class.table], staged)
		}
	}

	m.removeEmptyDirs(dirs)
	return nil
}

// removeEmptyDirs removes the listed directories deepest-first when empty.
// Directories that gained files since the scan are kept for the next cycle.
func (m *Manager) removeEmptyDirs(dirs []string) {
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(dir); err != nil {
			m.logger.Warn("remove empty folder failed", logging.String("folder", dir), logging.Error(err))
			continue
		}
		m.logger.Info("removed empty folder", logging.String("folder", dir))
	}
}
