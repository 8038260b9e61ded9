package lifecycle

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"curator/internal/errkind"
	"curator/internal/logging"
	"curator/internal/testsupport"
)

func fixedClock() func() time.Time {
	stamp := time.Date(2024, 1, 31, 15, 45, 0, 0, time.UTC)
	return func() time.Time { return stamp }
}

func TestStageFileMovesIntoStaging(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m := NewManager(cfg, logging.NewNop())

	src := filepath.Join(cfg.Folders.Watch, "items_2024.xlsx")
	testsupport.WriteFile(t, src, []byte("payload"))

	staged, ok, err := m.StageFile(src)
	if err != nil {
		t.Fatalf("StageFile: %v", err)
	}
	if !ok {
		t.Fatal("expected staged file to be reported")
	}
	if want := filepath.Join(cfg.Folders.Staging, "items_2024.xlsx"); staged != want {
		t.Fatalf("staged path = %q, want %q", staged, want)
	}
	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("source should have been moved out of the watch folder")
	}
}

func TestStageFileAlreadyStagedPassthrough(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m := NewManager(cfg, logging.NewNop())

	path := filepath.Join(cfg.Folders.Staging, "items.xlsx")
	testsupport.WriteFile(t, path, []byte("payload"))

	staged, ok, err := m.StageFile(path)
	if err != nil {
		t.Fatalf("StageFile: %v", err)
	}
	if !ok || staged != path {
		t.Fatalf("expected passthrough, got staged=%q ok=%v", staged, ok)
	}
}

func TestStageFileDuplicateContentDropped(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m := NewManager(cfg, logging.NewNop())

	existing := filepath.Join(cfg.Folders.Staging, "items.xlsx")
	testsupport.WriteFile(t, existing, []byte("payload"))
	incoming := filepath.Join(cfg.Folders.Watch, "items.xlsx")
	testsupport.WriteFile(t, incoming, []byte("payload"))

	_, ok, err := m.StageFile(incoming)
	if err != nil {
		t.Fatalf("StageFile: %v", err)
	}
	if ok {
		t.Fatal("duplicate content should not be reported as staged")
	}
	if _, err := os.Stat(incoming); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("incoming duplicate should have been deleted")
	}
	if _, err := os.Stat(existing); err != nil {
		t.Fatalf("existing staged file should survive: %v", err)
	}
}

func TestStageFileContentMismatchRenames(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m := NewManager(cfg, logging.NewNop())
	m.now = fixedClock()

	existing := filepath.Join(cfg.Folders.Staging, "items.xlsx")
	testsupport.WriteFile(t, existing, []byte("old payload"))
	incoming := filepath.Join(cfg.Folders.Watch, "items.xlsx")
	testsupport.WriteFile(t, incoming, []byte("new payload"))

	staged, ok, err := m.StageFile(incoming)
	if err != nil {
		t.Fatalf("StageFile: %v", err)
	}
	if !ok {
		t.Fatal("mismatched content should still be staged")
	}
	want := filepath.Join(cfg.Folders.Staging, "items_20240131_154500.xlsx")
	if staged != want {
		t.Fatalf("staged path = %q, want %q", staged, want)
	}
	if data, err := os.ReadFile(existing); err != nil || string(data) != "old payload" {
		t.Fatalf("existing staged file disturbed: data=%q err=%v", data, err)
	}
}

func TestQuarantineDropsIdenticalIncoming(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m := NewManager(cfg, logging.NewNop())

	trashed := filepath.Join(cfg.Folders.Trash, "report.pdf")
	testsupport.WriteFile(t, trashed, []byte("payload"))
	incoming := filepath.Join(cfg.Folders.Watch, "report.pdf")
	testsupport.WriteFile(t, incoming, []byte("payload"))

	if err := m.Quarantine(incoming, false); err != nil {
		t.Fatalf("Quarantine: %v", err)
	}
	if _, err := os.Stat(incoming); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("incoming duplicate should have been deleted")
	}
	entries, err := os.ReadDir(cfg.Folders.Trash)
	if err != nil {
		t.Fatalf("read trash: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("trash should hold exactly one entry, got %d", len(entries))
	}
}

func TestQuarantineRenamesMismatchedExisting(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m := NewManager(cfg, logging.NewNop())
	m.now = fixedClock()

	trashed := filepath.Join(cfg.Folders.Trash, "report.pdf")
	testsupport.WriteFile(t, trashed, []byte("old payload"))
	incoming := filepath.Join(cfg.Folders.Watch, "report.pdf")
	testsupport.WriteFile(t, incoming, []byte("new payload"))

	if err := m.Quarantine(incoming, false); err != nil {
		t.Fatalf("Quarantine: %v", err)
	}

	renamed := filepath.Join(cfg.Folders.Trash, "report_20240131_154500.pdf")
	if data, err := os.ReadFile(renamed); err != nil || string(data) != "old payload" {
		t.Fatalf("renamed trash entry: data=%q err=%v", data, err)
	}
	if data, err := os.ReadFile(trashed); err != nil || string(data) != "new payload" {
		t.Fatalf("trash entry under original name: data=%q err=%v", data, err)
	}
}

func TestQuarantineOverwriteReplacesExisting(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m := NewManager(cfg, logging.NewNop())

	trashed := filepath.Join(cfg.Folders.Trash, "report.pdf")
	testsupport.WriteFile(t, trashed, []byte("old payload"))
	incoming := filepath.Join(cfg.Folders.Watch, "report.pdf")
	testsupport.WriteFile(t, incoming, []byte("new payload"))

	if err := m.Quarantine(incoming, true); err != nil {
		t.Fatalf("Quarantine: %v", err)
	}
	if data, err := os.ReadFile(trashed); err != nil || string(data) != "new payload" {
		t.Fatalf("trash entry: data=%q err=%v", data, err)
	}
	entries, _ := os.ReadDir(cfg.Folders.Trash)
	if len(entries) != 1 {
		t.Fatalf("trash should hold exactly one entry, got %d", len(entries))
	}
}

func TestQuarantineVariantExhaustionIsFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Retention.MaxTrashVariants = 1
	m := NewManager(cfg, logging.NewNop())
	m.now = fixedClock()

	testsupport.WriteFile(t, filepath.Join(cfg.Folders.Trash, "report.pdf"), []byte("old"))
	testsupport.WriteFile(t, filepath.Join(cfg.Folders.Trash, "report_20240131_154500.pdf"), []byte("blocking"))
	incoming := filepath.Join(cfg.Folders.Watch, "report.pdf")
	testsupport.WriteFile(t, incoming, []byte("new"))

	err := m.Quarantine(incoming, false)
	if !errors.Is(err, errkind.ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
}

func TestMoveToStoreDisplacesCollision(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m := NewManager(cfg, logging.NewNop())

	existing := filepath.Join(cfg.Folders.Store, "items.xlsx")
	testsupport.WriteFile(t, existing, []byte("old payload"))
	staged := filepath.Join(cfg.Folders.Staging, "items.xlsx")
	testsupport.WriteFile(t, staged, []byte("new payload"))

	if err := m.MoveToStore([]string{staged}); err != nil {
		t.Fatalf("MoveToStore: %v", err)
	}
	if data, err := os.ReadFile(existing); err != nil || string(data) != "new payload" {
		t.Fatalf("store entry: data=%q err=%v", data, err)
	}
	if data, err := os.ReadFile(filepath.Join(cfg.Folders.Trash, "items.xlsx")); err != nil || string(data) != "old payload" {
		t.Fatalf("displaced store file should be in trash: data=%q err=%v", data, err)
	}
	if _, err := os.Stat(staged); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("staged source should have been moved")
	}
}

func TestPublishCopiesToOutputsAndKeepsSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m := NewManager(cfg, logging.NewNop())

	staged := filepath.Join(cfg.Folders.Staging, "report.pdf")
	testsupport.WriteFile(t, staged, []byte("payload"))

	if err := m.Publish([]string{staged}, "items"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	out := filepath.Join(cfg.Tables[0].Outputs[0], "report.pdf")
	if data, err := os.ReadFile(out); err != nil || string(data) != "payload" {
		t.Fatalf("published copy: data=%q err=%v", data, err)
	}
	if _, err := os.Stat(staged); err != nil {
		t.Fatalf("publish must not delete the source: %v", err)
	}
}

func TestPublishOverwritesExistingTarget(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m := NewManager(cfg, logging.NewNop())

	out := filepath.Join(cfg.Tables[0].Outputs[0], "report.pdf")
	testsupport.WriteFile(t, out, []byte("stale"))
	staged := filepath.Join(cfg.Folders.Staging, "report.pdf")
	testsupport.WriteFile(t, staged, []byte("fresh"))

	if err := m.Publish([]string{staged}, "items"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if data, err := os.ReadFile(out); err != nil || string(data) != "fresh" {
		t.Fatalf("published copy: data=%q err=%v", data, err)
	}
}

func TestPublishPartialTargetFailureKeepsSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	// a regular file occupies the second output path, so copies into it fail
	blocked := filepath.Join(testsupport.BaseDir(cfg), "blocked")
	testsupport.WriteFile(t, blocked, []byte("occupied"))
	cfg.Tables[0].Outputs = append(cfg.Tables[0].Outputs, filepath.Join(blocked, "out"))
	m := NewManager(cfg, logging.NewNop())

	staged := filepath.Join(cfg.Folders.Staging, "report.pdf")
	testsupport.WriteFile(t, staged, []byte("payload"))

	if err := m.Publish([]string{staged}, "items"); err == nil {
		t.Fatal("publish with a failing target should report an error")
	}
	// the good target may hold a copy, but the source must survive
	if _, err := os.Stat(staged); err != nil {
		t.Fatalf("source must stay staged after a failed publish: %v", err)
	}
}

func TestPublishUnknownClassification(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m := NewManager(cfg, logging.NewNop())

	err := m.Publish(nil, "nope")
	if !errors.Is(err, errkind.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestTimestampName(t *testing.T) {
	stamp := time.Date(2024, 1, 31, 15, 45, 0, 0, time.UTC)

	cases := []struct {
		name    string
		variant int
		want    string
	}{
		{"report.pdf", 0, "report_20240131_154500.pdf"},
		{"report.pdf", 2, "report_20240131_154500_2.pdf"},
		{"archive.tar.gz", 0, "archive.tar_20240131_154500.gz"},
		{"noext", 0, "noext_20240131_154500"},
	}
	for _, tc := range cases {
		if got := timestampName(tc.name, stamp, tc.variant); got != tc.want {
			t.Errorf("timestampName(%q, %d) = %q, want %q", tc.name, tc.variant, got, tc.want)
		}
	}
}
