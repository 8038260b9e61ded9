package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"curator/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test
// and a single "items" table. It creates the directories so lifecycle
// operations work immediately.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Folders.Watch = filepath.Join(base, "incoming")
	cfg.Folders.Staging = filepath.Join(base, "staging")
	cfg.Folders.Store = filepath.Join(base, "store")
	cfg.Folders.Trash = filepath.Join(base, "trash")
	cfg.Folders.StateDir = filepath.Join(base, "state")
	cfg.Folders.LogDir = filepath.Join(base, "logs")
	cfg.Catalog.Replicas = []string{filepath.Join(base, "catalog", "catalog.xlsx")}
	cfg.Tables = []config.Table{
		{
			Name:             "items",
			DisplayName:      "Items",
			RequiredColumns:  []string{"id", "name"},
			KeyColumns:       []string{"name"},
			MetadataPattern:  `(?i)^items.*\.(xlsx|json)$`,
			DataPattern:      `(?i)\.pdf$`,
			FilenameColumns:  []string{"attachment"},
			PublishedColumns: []string{"published"},
			Outputs:          []string{filepath.Join(base, "published")},
			PrimaryKey:       &config.PrimaryKey{Column: "id", Integer: true, Relative: true},
		},
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	reloaded := Reload(t, &cfg)
	if err := reloaded.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return reloaded
}

// WithTables replaces the table definitions on the test config.
func WithTables(tables ...config.Table) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Tables = tables
	}
}

// WithReplicas replaces the catalog replica paths.
func WithReplicas(paths ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Catalog.Replicas = paths
	}
}

// Reload round-trips a config through the TOML loader so compiled patterns
// and derived sets are populated the same way production configs are.
func Reload(t testing.TB, cfg *config.Config) *config.Config {
	t.Helper()

	encoded := EncodeTOML(t, cfg)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	loaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return loaded
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Folders.Watch)
}
