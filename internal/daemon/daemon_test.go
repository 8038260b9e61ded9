package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"curator/internal/config"
	"curator/internal/dataset"
	"curator/internal/logging"
	"curator/internal/testsupport"
)

func newTestDaemon(t *testing.T) *Daemon {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	d, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestRunCycleEndToEnd(t *testing.T) {
	d := newTestDaemon(t)

	testsupport.WriteWorkbook(t,
		filepath.Join(d.cfg.Folders.Watch, "items_jan.xlsx"),
		"Items",
		[]string{"id", "name", "attachment"},
		[]dataset.Row{{"id": "1", "name": "bolt", "attachment": "bolt_spec.pdf"}})
	testsupport.WriteFile(t,
		filepath.Join(d.cfg.Folders.Watch, "bolt_spec.pdf"),
		[]byte("pdf bytes"))

	if err := d.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}

	// metadata file reconciled and stored
	if _, err := os.Stat(filepath.Join(d.cfg.Folders.Store, "items_jan.xlsx")); err != nil {
		t.Fatalf("metadata file should be in store: %v", err)
	}
	// catalog replica written
	if _, err := os.Stat(d.cfg.Catalog.Replicas[0]); err != nil {
		t.Fatalf("replica should exist: %v", err)
	}
	// data file published
	if _, err := os.Stat(filepath.Join(d.cfg.Tables[0].Outputs[0], "bolt_spec.pdf")); err != nil {
		t.Fatalf("data file should be published: %v", err)
	}
}

func TestRunCycleRecordsRetentionSweep(t *testing.T) {
	d := newTestDaemon(t)

	ctx := context.Background()
	if err := d.runCycle(ctx); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	first, ok, err := d.store.LastClean(ctx)
	if err != nil || !ok {
		t.Fatalf("first sweep should be recorded: ok=%v err=%v", ok, err)
	}

	// within the interval no new sweep is recorded
	if err := d.runCycle(ctx); err != nil {
		t.Fatalf("second runCycle: %v", err)
	}
	second, _, err := d.store.LastClean(ctx)
	if err != nil {
		t.Fatalf("LastClean: %v", err)
	}
	if !second.Equal(first) {
		t.Fatalf("sweep time advanced within the interval: %v -> %v", first, second)
	}

	// past the interval the sweep runs again
	d.now = func() time.Time { return first.Add(time.Duration(d.cfg.Workflow.CleanIntervalHours+1) * time.Hour) }
	if err := d.runCycle(ctx); err != nil {
		t.Fatalf("third runCycle: %v", err)
	}
	third, _, err := d.store.LastClean(ctx)
	if err != nil {
		t.Fatalf("LastClean: %v", err)
	}
	if !third.After(first) {
		t.Fatalf("sweep time should advance: %v -> %v", first, third)
	}
}

func TestRetentionSweepsWatchNotStore(t *testing.T) {
	cfg := testsupport.NewConfig(t, func(cfg *config.Config) {
		cfg.Workflow.DiscardUnmatched = false
	})
	d, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	// Stored files are terminal; stale unmatched arrivals are not.
	storedPath := filepath.Join(cfg.Folders.Store, "items_archive.xlsx")
	testsupport.WriteFile(t, storedPath, []byte("archived metadata"))
	strayPath := filepath.Join(cfg.Folders.Watch, "unrelated.bin")
	testsupport.WriteFile(t, strayPath, []byte("stray"))

	old := time.Now().Add(-time.Duration(cfg.Retention.MaxAgeHours+1) * time.Hour)
	for _, path := range []string{storedPath, strayPath} {
		if err := os.Chtimes(path, old, old); err != nil {
			t.Fatalf("Chtimes %s: %v", path, err)
		}
	}

	if err := d.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}

	if _, err := os.Stat(storedPath); err != nil {
		t.Fatalf("stored file should survive the retention sweep: %v", err)
	}
	if _, err := os.Stat(strayPath); !os.IsNotExist(err) {
		t.Fatalf("stale watch file should be swept, stat err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Folders.Trash, "unrelated.bin")); err != nil {
		t.Fatalf("swept watch file should land in trash: %v", err)
	}
}

func TestRunRefusesSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer first.Close()
	if err := first.acquireLock(); err != nil {
		t.Fatalf("acquireLock: %v", err)
	}
	defer first.releaseLock()

	second, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New second: %v", err)
	}
	defer second.Close()

	if err := second.Run(context.Background()); err == nil {
		t.Fatal("second instance should fail to start")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	d := newTestDaemon(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on shutdown: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop after cancel")
	}
}
