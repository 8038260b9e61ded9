package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"curator/internal/config"
	"curator/internal/errkind"
	"curator/internal/fileutil"
	"curator/internal/logging"
)

// Manager performs every physical file movement: stage, trash, store,
// publish, mirror. It is stateless and catalog-unaware; collision policy
// comes from configuration.
type Manager struct {
	cfg    *config.Config
	logger *slog.Logger
	now    func() time.Time
}

// NewManager constructs the lifecycle manager.
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "lifecycle"),
		now:    time.Now,
	}
}

// StageFile moves a file into the staging folder and returns its staged
// path. Paths already under staging are returned unchanged. When a
// same-named staged file already holds identical content the incoming
// duplicate is deleted and ok is false; on content mismatch the incoming
// file is renamed with a timestamp before moving. The staged file's
// modification time is reset so it is not immediately eligible for
// retention cleanup.
func (m *Manager) StageFile(path string) (string, bool, error) {
	base := filepath.Base(path)
	dest := filepath.Join(m.cfg.Folders.Staging, base)
	if path == dest {
		return dest, true, nil
	}

	if _, err := os.Stat(dest); err == nil {
		same, err := fileutil.SameContent(path, dest)
		if err != nil {
			return "", false, errkind.Wrap(errkind.ErrTransient, "lifecycle", "stage", "compare "+base, err)
		}
		if same {
			if err := os.Remove(path); err != nil {
				return "", false, errkind.Wrap(errkind.ErrTransient, "lifecycle", "stage", "drop duplicate "+base, err)
			}
			m.logger.Info("same-cycle duplicate post discarded", logging.String("file", base))
			return "", false, nil
		}
		dest = filepath.Join(m.cfg.Folders.Staging, timestampName(base, m.now(), 0))
	}

	if err := fileutil.MoveFile(path, dest); err != nil {
		return "", false, errkind.Wrap(errkind.ErrTransient, "lifecycle", "stage", "move "+base, err)
	}
	if err := fileutil.Touch(dest); err != nil {
		m.logger.Warn("reset staged file timestamp failed",
			logging.String("file", filepath.Base(dest)), logging.Error(err))
	}
	m.logger.Info("staged", logging.String("file", filepath.Base(dest)))
	return dest, true, nil
}

// Quarantine moves a file into the trash folder. An existing same-named
// trash entry is deleted when overwriteAllowed, kept (and the incoming
// duplicate dropped) when content matches, or renamed away with a
// timestamp variant otherwise. Exhausting the variant budget is the one
// fatal condition in this component.
func (m *Manager) Quarantine(path string, overwriteAllowed bool) error {
	base := filepath.Base(path)
	dest := filepath.Join(m.cfg.Folders.Trash, base)

	if _, err := os.Stat(dest); err == nil {
		switch {
		case overwriteAllowed:
			if err := os.Remove(dest); err != nil {
				return errkind.Wrap(errkind.ErrTransient, "lifecycle", "quarantine", "remove trashed "+base, err)
			}
		default:
			same, err := fileutil.SameContent(path, dest)
			if err != nil {
				return errkind.Wrap(errkind.ErrTransient, "lifecycle", "quarantine", "compare "+base, err)
			}
			if same {
				if err := os.Remove(path); err != nil {
					return errkind.Wrap(errkind.ErrTransient, "lifecycle", "quarantine", "drop archived duplicate "+base, err)
				}
				m.logger.Info("already archived in trash, incoming duplicate dropped",
					logging.String("file", base))
				return nil
			}
			if err := m.renameTrashedAside(dest); err != nil {
				return err
			}
		}
	}

	if err := fileutil.MoveFile(path, dest); err != nil {
		return errkind.Wrap(errkind.ErrTransient, "lifecycle", "quarantine", "move "+base, err)
	}
	if err := fileutil.Touch(dest); err != nil {
		m.logger.Warn("reset trashed file timestamp failed",
			logging.String("file", base), logging.Error(err))
	}
	m.logger.Info("quarantined to trash", logging.String("file", base))
	return nil
}

// renameTrashedAside renames an existing trash entry by appending a
// timestamp, retrying with incrementing variant suffixes up to the
// configured budget. Protects against runaway retries from a pathological
// trash directory.
func (m *Manager) renameTrashedAside(dest string) error {
	base := filepath.Base(dest)
	stamp := m.now()
	for variant := 0; variant < m.cfg.Retention.MaxTrashVariants; variant++ {
		candidate := filepath.Join(m.cfg.Folders.Trash, timestampName(base, stamp, variant))
		if _, err := os.Stat(candidate); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return errkind.Wrap(errkind.ErrTransient, "lifecycle", "quarantine", "stat variant for "+base, err)
		}
		if err := os.Rename(dest, candidate); err != nil {
			return errkind.Wrap(errkind.ErrTransient, "lifecycle", "quarantine", "rename trashed "+base, err)
		}
		m.logger.Info("renamed existing trash entry",
			logging.String("from", base),
			logging.String("to", filepath.Base(candidate)))
		return nil
	}
	return errkind.Wrap(errkind.ErrExhausted, "lifecycle", "quarantine",
		fmt.Sprintf("no free trash variant for %s after %d attempts", base, m.cfg.Retention.MaxTrashVariants), nil)
}

// MoveToStore moves each staged path into the store folder. On a name
// collision the existing store file is quarantined under the store
// overwrite policy before retrying the move. Per-file failures are logged
// and joined; surviving files stay staged for the next cycle.
func (m *Manager) MoveToStore(paths []string) error {
	var errs []error
	for _, path := range paths {
		base := filepath.Base(path)
		dest := filepath.Join(m.cfg.Folders.Store, base)

		if _, err := os.Stat(dest); err == nil {
			if err := m.Quarantine(dest, m.cfg.Overwrite.Store); err != nil {
				errs = append(errs, err)
				m.logger.Error("displace store collision failed",
					logging.String("file", base), logging.Error(err))
				continue
			}
		}

		if err := fileutil.MoveFile(path, dest); err != nil {
			errs = append(errs, errkind.Wrap(errkind.ErrTransient, "lifecycle", "store", "move "+base, err))
			m.logger.Error("move to store failed", logging.String("file", base), logging.Error(err))
			continue
		}
		if err := fileutil.Touch(dest); err != nil {
			m.logger.Warn("reset stored file timestamp failed",
				logging.String("file", base), logging.Error(err))
		}
		m.logger.Info("moved to store", logging.String("file", base))
	}
	return errors.Join(errs...)
}

// Publish copies each file to every output folder configured for the
// classification key. Existing targets are deleted or quarantined per the
// publish overwrite policy before copying. Success requires every copy for
// every file to succeed; sources are never deleted here. Deleting them is
// the caller's responsibility once the catalog write is also confirmed.
func (m *Manager) Publish(paths []string, classificationKey string) error {
	tbl, ok := m.cfg.Table(classificationKey)
	if !ok {
		return errkind.Wrap(errkind.ErrConfiguration, "lifecycle", "publish", "unknown classification "+classificationKey, nil)
	}

	var errs []error
	for _, path := range paths {
		base := filepath.Base(path)
		for _, target := range tbl.Outputs {
			dest := filepath.Join(target, base)
			if _, err := os.Stat(dest); err == nil {
				if m.cfg.Overwrite.Publish {
					if err := os.Remove(dest); err != nil {
						errs = append(errs, errkind.Wrap(errkind.ErrTransient, "lifecycle", "publish", "remove existing "+base, err))
						continue
					}
				} else if err := m.Quarantine(dest, m.cfg.Overwrite.Trash); err != nil {
					errs = append(errs, err)
					continue
				}
			}
			if err := fileutil.CopyFileVerified(path, dest); err != nil {
				errs = append(errs, errkind.Wrap(errkind.ErrTransient, "lifecycle", "publish", "copy "+base+" to "+target, err))
				m.logger.Error("publish copy failed",
					logging.String("file", base),
					logging.String("target", target),
					logging.Error(err))
				continue
			}
			m.logger.Info("published", logging.String("file", base), logging.String("target", target))
		}
	}
	return errors.Join(errs...)
}

// timestampName appends a timestamp (and a variant counter when > 0) to a
// file name, before the extension: report.xlsx -> report_20240131_154500.xlsx.
func timestampName(name string, stamp time.Time, variant int) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	suffix := stamp.Format("20060102_150405")
	if variant > 0 {
		return fmt.Sprintf("%s_%s_%d%s", stem, suffix, variant, ext)
	}
	return fmt.Sprintf("%s_%s%s", stem, suffix, ext)
}
