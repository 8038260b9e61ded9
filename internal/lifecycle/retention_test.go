package lifecycle

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"curator/internal/logging"
	"curator/internal/testsupport"
)

func age(t *testing.T, path string, hours int) {
	t.Helper()
	old := time.Now().Add(-time.Duration(hours) * time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func TestCleanOldSweepsExpired(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m := NewManager(cfg, logging.NewNop())

	expired := filepath.Join(cfg.Folders.Store, "stale.xlsx")
	testsupport.WriteFile(t, expired, []byte("stale"))
	age(t, expired, cfg.Retention.MaxAgeHours+1)
	fresh := filepath.Join(cfg.Folders.Store, "fresh.xlsx")
	testsupport.WriteFile(t, fresh, []byte("fresh"))

	if err := m.CleanOld(cfg.Folders.Store); err != nil {
		t.Fatalf("CleanOld: %v", err)
	}
	if _, err := os.Stat(expired); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("expired file should have been swept")
	}
	if _, err := os.Stat(filepath.Join(cfg.Folders.Trash, "stale.xlsx")); err != nil {
		t.Fatalf("swept file should be in trash: %v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh file should survive: %v", err)
	}
}

func TestCleanOldHonorsIgnorePaths(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Retention.IgnorePaths = []string{"keep.xlsx", "pinned"}
	m := NewManager(cfg, logging.NewNop())

	kept := filepath.Join(cfg.Folders.Store, "keep.xlsx")
	testsupport.WriteFile(t, kept, []byte("kept"))
	age(t, kept, cfg.Retention.MaxAgeHours+1)

	pinned := filepath.Join(cfg.Folders.Store, "pinned", "old.xlsx")
	testsupport.WriteFile(t, pinned, []byte("pinned"))
	age(t, pinned, cfg.Retention.MaxAgeHours+1)

	swept := filepath.Join(cfg.Folders.Store, "other.xlsx")
	testsupport.WriteFile(t, swept, []byte("old"))
	age(t, swept, cfg.Retention.MaxAgeHours+1)

	if err := m.CleanOld(cfg.Folders.Store); err != nil {
		t.Fatalf("CleanOld: %v", err)
	}
	if _, err := os.Stat(kept); err != nil {
		t.Fatalf("ignored file should survive: %v", err)
	}
	if _, err := os.Stat(pinned); err != nil {
		t.Fatalf("file under ignored directory should survive: %v", err)
	}
	if _, err := os.Stat(swept); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("non-ignored expired file should have been swept")
	}
}

func TestCleanOldRemovesEmptiedSubdirs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m := NewManager(cfg, logging.NewNop())

	sub := filepath.Join(cfg.Folders.Store, "batch")
	expired := filepath.Join(sub, "stale.xlsx")
	testsupport.WriteFile(t, expired, []byte("stale"))
	age(t, expired, cfg.Retention.MaxAgeHours+1)

	if err := m.CleanOld(cfg.Folders.Store); err != nil {
		t.Fatalf("CleanOld: %v", err)
	}
	if _, err := os.Stat(sub); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("emptied subdirectory should have been removed")
	}
}
