package lifecycle

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"curator/internal/logging"
)

// CleanOld quarantines every file in folder older than the retention
// period, skipping the configured ignore paths (exact relative paths;
// ignored directories are not descended into). Subdirectories left empty
// by the sweep are removed.
func (m *Manager) CleanOld(folder string) error {
	cutoff := m.now().Add(-time.Duration(m.cfg.Retention.MaxAgeHours) * time.Hour)

	ignored := make(map[string]struct{}, len(m.cfg.Retention.IgnorePaths))
	for _, rel := range m.cfg.Retention.IgnorePaths {
		ignored[filepath.Clean(rel)] = struct{}{}
	}

	var swept int
	var dirs []string

	err := filepath.WalkDir(folder, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			m.logger.Warn("retention scan entry skipped", logging.String("path", path), logging.Error(err))
			return nil
		}
		if path == folder {
			return nil
		}

		rel, relErr := filepath.Rel(folder, path)
		if relErr == nil {
			if _, skip := ignored[filepath.Clean(rel)]; skip {
				if entry.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
		}

		if entry.IsDir() {
			dirs = append(dirs, path)
			return nil
		}

		info, infoErr := entry.Info()
		if infoErr != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if qErr := m.Quarantine(path, m.cfg.Overwrite.Trash); qErr != nil {
				m.logger.Error("retention quarantine failed",
					logging.String("file", filepath.Base(path)), logging.Error(qErr))
				return nil
			}
			swept++
		}
		return nil
	})
	if err != nil {
		return err
	}

	if swept == 0 && len(dirs) == 0 {
		m.logger.Debug("nothing to clean", logging.String("folder", folder))
	} else {
		m.logger.Info("retention sweep finished",
			logging.String("folder", folder),
			logging.Int("swept", swept))
	}

	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, dir := range dirs {
		entries, readErr := os.ReadDir(dir)
		if readErr != nil || len(entries) > 0 {
			continue
		}
		if rmErr := os.Remove(dir); rmErr != nil {
			m.logger.Warn("remove swept folder failed", logging.String("folder", dir), logging.Error(rmErr))
		}
	}
	return nil
}
