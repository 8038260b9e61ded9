package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"curator/internal/dataset"
	"curator/internal/tabfile"
)

// WriteFile creates path with the given content, creating parent
// directories as needed.
func WriteFile(t testing.TB, path string, content []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteWorkbook creates a metadata workbook at path with a single sheet.
func WriteWorkbook(t testing.TB, path, sheet string, columns []string, rows []dataset.Row) {
	t.Helper()

	data := dataset.New(columns...)
	data.Rows = rows
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := tabfile.WriteWorkbook(path, []tabfile.Sheet{{Name: sheet, Data: data}}); err != nil {
		t.Fatalf("write workbook %s: %v", path, err)
	}
}

// WriteWorkbookSheets creates a metadata workbook with multiple sheets.
func WriteWorkbookSheets(t testing.TB, path string, sheets []tabfile.Sheet) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := tabfile.WriteWorkbook(path, sheets); err != nil {
		t.Fatalf("write workbook %s: %v", path, err)
	}
}

// EncodeTOML marshals a value to TOML for config round-trips.
func EncodeTOML(t testing.TB, value any) []byte {
	t.Helper()

	encoded, err := toml.Marshal(value)
	if err != nil {
		t.Fatalf("marshal toml: %v", err)
	}
	return encoded
}
