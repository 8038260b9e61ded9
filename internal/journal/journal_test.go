package journal

import (
	"context"
	"testing"
	"time"

	"curator/internal/testsupport"
)

func TestRecordAndListFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	records := []FileRecord{
		{CycleID: "c1", Path: "/staging/items_jan.xlsx", Table: "items", Action: ActionMerged, RowsAdded: 3, RowsUpdated: 1},
		{CycleID: "c1", Path: "/staging/scan.pdf", Table: "items", Action: ActionPublished},
		{CycleID: "c2", Path: "/incoming/noise.txt", Action: ActionTrashed},
	}
	for _, rec := range records {
		if err := store.RecordFile(ctx, rec); err != nil {
			t.Fatalf("RecordFile: %v", err)
		}
	}

	got, err := store.RecentFiles(ctx, 2)
	if err != nil {
		t.Fatalf("RecentFiles: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("RecentFiles returned %d records, want 2", len(got))
	}
	// newest first
	if got[0].Path != "/incoming/noise.txt" || got[0].Action != ActionTrashed {
		t.Fatalf("newest record = %+v", got[0])
	}
	if got[0].Table != "" {
		t.Fatalf("table should be empty for unclassified files, got %q", got[0].Table)
	}
	if got[1].RowsAdded != 0 || got[1].Action != ActionPublished {
		t.Fatalf("second record = %+v", got[1])
	}
	if got[0].RecordedAt.IsZero() {
		t.Fatal("recorded_at should be populated")
	}
}

func TestRecordCycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	started := time.Now().Add(-time.Minute)
	err = store.RecordCycle(context.Background(), CycleRecord{
		CycleID:    "c1",
		StartedAt:  started,
		FinishedAt: time.Now(),
		Files:      4,
		Failures:   1,
		Error:      "one file failed",
	})
	if err != nil {
		t.Fatalf("RecordCycle: %v", err)
	}
}

func TestLastCleanRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if _, ok, err := store.LastClean(ctx); err != nil || ok {
		t.Fatalf("fresh journal should have no last clean: ok=%v err=%v", ok, err)
	}

	first := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	if err := store.SetLastClean(ctx, first); err != nil {
		t.Fatalf("SetLastClean: %v", err)
	}
	got, ok, err := store.LastClean(ctx)
	if err != nil || !ok {
		t.Fatalf("LastClean: ok=%v err=%v", ok, err)
	}
	if !got.Equal(first) {
		t.Fatalf("LastClean = %v, want %v", got, first)
	}

	// updating overwrites, it does not accumulate rows
	second := first.Add(24 * time.Hour)
	if err := store.SetLastClean(ctx, second); err != nil {
		t.Fatalf("SetLastClean update: %v", err)
	}
	got, _, err = store.LastClean(ctx)
	if err != nil {
		t.Fatalf("LastClean after update: %v", err)
	}
	if !got.Equal(second) {
		t.Fatalf("LastClean = %v, want %v", got, second)
	}
}

func TestReopenExistingDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.RecordFile(context.Background(), FileRecord{CycleID: "c1", Path: "/a", Action: ActionStored}); err != nil {
		t.Fatalf("RecordFile: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.RecentFiles(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentFiles: %v", err)
	}
	if len(got) != 1 || got[0].Path != "/a" {
		t.Fatalf("records after reopen = %+v", got)
	}
}
