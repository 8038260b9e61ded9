// Package journal persists per-file ingest records, per-cycle summaries
// and small pieces of daemon state (such as the last retention sweep time)
// in a SQLite database under the state directory.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"curator/internal/config"
)

// Actions recorded against ingested files.
const (
	ActionMerged    = "merged"
	ActionStored    = "stored"
	ActionPublished = "published"
	ActionTrashed   = "trashed"
	ActionIgnored   = "ignored"
	ActionFailed    = "failed"
)

const stateLastClean = "last_clean"

// FileRecord describes what happened to a single file during a cycle.
type FileRecord struct {
	ID          int64
	CycleID     string
	Path        string
	Table       string
	Action      string
	RowsAdded   int
	RowsUpdated int
	Error       string
	RecordedAt  time.Time
}

// CycleRecord summarizes one daemon cycle.
type CycleRecord struct {
	CycleID    string
	StartedAt  time.Time
	FinishedAt time.Time
	Files      int
	Failures   int
	Error      string
}

// Store manages journal persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the journal database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Folders.StateDir, "journal.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the location of the journal database file.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordFile appends a per-file ingest record.
func (s *Store) RecordFile(ctx context.Context, rec FileRecord) error {
	recordedAt := rec.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO files (
            cycle_id, path, table_name, action, rows_added, rows_updated, error, recorded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CycleID,
		rec.Path,
		nullableString(rec.Table),
		rec.Action,
		rec.RowsAdded,
		rec.RowsUpdated,
		nullableString(rec.Error),
		recordedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert file record: %w", err)
	}
	return nil
}

// RecordCycle appends a cycle summary.
func (s *Store) RecordCycle(ctx context.Context, rec CycleRecord) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO cycles (cycle_id, started_at, finished_at, files, failures, error)
         VALUES (?, ?, ?, ?, ?, ?)`,
		rec.CycleID,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.FinishedAt.UTC().Format(time.RFC3339Nano),
		rec.Files,
		rec.Failures,
		nullableString(rec.Error),
	)
	if err != nil {
		return fmt.Errorf("insert cycle record: %w", err)
	}
	return nil
}

// RecentFiles returns the newest file records first, up to limit.
func (s *Store) RecentFiles(ctx context.Context, limit int) ([]FileRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, cycle_id, path, table_name, action, rows_added, rows_updated, error, recorded_at
         FROM files ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query file records: %w", err)
	}
	defer rows.Close()

	var records []FileRecord
	for rows.Next() {
		var rec FileRecord
		var table, recErr sql.NullString
		var recordedAt string
		if err := rows.Scan(
			&rec.ID, &rec.CycleID, &rec.Path, &table, &rec.Action,
			&rec.RowsAdded, &rec.RowsUpdated, &recErr, &recordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan file record: %w", err)
		}
		rec.Table = table.String
		rec.Error = recErr.String
		if parsed, parseErr := time.Parse(time.RFC3339Nano, recordedAt); parseErr == nil {
			rec.RecordedAt = parsed
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate file records: %w", err)
	}
	return records, nil
}

// LastClean returns the time of the last retention sweep, if one has been
// recorded.
func (s *Store) LastClean(ctx context.Context) (time.Time, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM state WHERE key = ?", stateLastClean,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read last clean: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last clean %q: %w", value, err)
	}
	return parsed, true, nil
}

// SetLastClean records the time of a completed retention sweep.
func (s *Store) SetLastClean(ctx context.Context, when time.Time) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO state (key, value) VALUES (?, ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		stateLastClean,
		when.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record last clean: %w", err)
	}
	return nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
