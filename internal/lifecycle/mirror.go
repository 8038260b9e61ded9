package lifecycle

import (
	"errors"
	"os"
	"path/filepath"

	"curator/internal/errkind"
	"curator/internal/fileutil"
	"curator/internal/logging"
)

// MirrorOutputs synchronizes every pair of output folders configured for
// each classification key: files present in one and absent in the other
// are copied, in both directions. Only filename listings are compared,
// never content.
func (m *Manager) MirrorOutputs() error {
	var errs []error
	for i := range m.cfg.Tables {
		outputs := m.cfg.Tables[i].Outputs
		for a := 0; a < len(outputs); a++ {
			for b := a + 1; b < len(outputs); b++ {
				if err := m.mirrorPair(outputs[a], outputs[b]); err != nil {
					errs = append(errs, err)
				}
				if err := m.mirrorPair(outputs[b], outputs[a]); err != nil {
					errs = append(errs, err)
				}
			}
		}
	}
	return errors.Join(errs...)
}

// mirrorPair copies files present in src and absent in dst.
func (m *Manager) mirrorPair(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return errkind.Wrap(errkind.ErrTransient, "lifecycle", "mirror", "list "+src, err)
	}

	var errs []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		target := filepath.Join(dst, name)
		if _, err := os.Stat(target); err == nil {
			continue
		}
		if err := fileutil.CopyFile(filepath.Join(src, name), target); err != nil {
			errs = append(errs, errkind.Wrap(errkind.ErrTransient, "lifecycle", "mirror", "copy "+name, err))
			continue
		}
		m.logger.Info("mirrored output file",
			logging.String("file", name),
			logging.String("to", dst))
	}
	return errors.Join(errs...)
}
