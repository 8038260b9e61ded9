package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Folders contains the directories the daemon watches and mutates.
type Folders struct {
	Watch    string `toml:"watch"`
	Staging  string `toml:"staging"`
	Store    string `toml:"store"`
	Trash    string `toml:"trash"`
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Catalog contains the catalog replica locations.
type Catalog struct {
	Replicas []string `toml:"replicas"`
}

// PrimaryKey describes how a table's primary key behaves on ingest.
type PrimaryKey struct {
	Column string `toml:"column"`
	// Integer marks an integer sequence key (vs an opaque identifier).
	Integer bool `toml:"integer"`
	// Relative keys are file-local and remapped into the catalog key space;
	// absolute keys are used unchanged.
	Relative bool `toml:"relative"`
}

// Transform rewrites a data file's base name before catalog lookup.
type Transform struct {
	Op    string `toml:"op"` // replace, prefix, suffix
	From  string `toml:"from"`
	Value string `toml:"value"`
}

// Table describes one logical catalog table.
type Table struct {
	Name            string   `toml:"name"`
	DisplayName     string   `toml:"display_name"`
	RequiredColumns []string `toml:"required_columns"`
	KeyColumns      []string `toml:"key_columns"`
	SortColumns     []string `toml:"sort_columns"`
	SortDescending  bool     `toml:"sort_descending"`

	// MetadataPattern and DataPattern classify incoming file names. Tables
	// are tested in configuration order; the first match wins.
	MetadataPattern string `toml:"metadata_pattern"`
	DataPattern     string `toml:"data_pattern"`

	// FilenameColumns are searched for a data file's base name; matching
	// rows get their PublishedColumns set.
	FilenameColumns  []string `toml:"filename_columns"`
	PublishedColumns []string `toml:"published_columns"`

	// FilenamePattern optionally extracts the lookup name from a data
	// file's base name (first capture group, else whole match) before
	// Transforms are applied.
	FilenamePattern string      `toml:"filename_pattern"`
	Transforms      []Transform `toml:"transforms"`

	// Outputs are the publish destinations for data files classified
	// under this table.
	Outputs []string `toml:"outputs"`

	PrimaryKey  *PrimaryKey       `toml:"primary_key"`
	ForeignKeys map[string]string `toml:"foreign_keys"` // referenced table -> local column

	metadataRe *regexp.Regexp
	dataRe     *regexp.Regexp
	filenameRe *regexp.Regexp
}

// MetadataRegexp returns the compiled metadata classification pattern, or nil.
func (t *Table) MetadataRegexp() *regexp.Regexp { return t.metadataRe }

// DataRegexp returns the compiled data classification pattern, or nil.
func (t *Table) DataRegexp() *regexp.Regexp { return t.dataRe }

// FilenameRegexp returns the compiled filename extraction pattern, or nil.
func (t *Table) FilenameRegexp() *regexp.Regexp { return t.filenameRe }

// Workflow contains daemon timing and escalation settings.
type Workflow struct {
	PollIntervalSeconds int  `toml:"poll_interval_seconds"`
	CleanIntervalHours  int  `toml:"clean_interval_hours"`
	ErrorBudget         int  `toml:"error_budget"`
	DiscardUnmatched    bool `toml:"discard_unmatched"`
	QuarantineInvalid   bool `toml:"quarantine_invalid"`
}

// Retention contains settings for the old-file sweep.
type Retention struct {
	MaxAgeHours      int      `toml:"max_age_hours"`
	IgnorePaths      []string `toml:"ignore_paths"`
	MaxTrashVariants int      `toml:"max_trash_variants"`
}

// Overwrite contains the collision policies per destination.
type Overwrite struct {
	Store   bool `toml:"store"`
	Publish bool `toml:"publish"`
	Trash   bool `toml:"trash"`
}

// Values contains cell value interpretation settings.
type Values struct {
	NullSentinels []string `toml:"null_sentinels"`
	ColumnFilter  string   `toml:"column_filter"`
}

// Logging contains log output settings.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration values for curator.
type Config struct {
	Name      string    `toml:"name"`
	Folders   Folders   `toml:"folders"`
	Catalog   Catalog   `toml:"catalog"`
	Tables    []Table   `toml:"tables"`
	Workflow  Workflow  `toml:"workflow"`
	Retention Retention `toml:"retention"`
	Overwrite Overwrite `toml:"overwrite"`
	Values    Values    `toml:"values"`
	Logging   Logging   `toml:"logging"`

	referencedBy map[string][]string
}

// Load parses and validates a configuration file. The returned config has
// all path fields expanded, patterns compiled, and the referenced-by sets
// precomputed.
func Load(path string) (*Config, error) {
	cfg := Default()

	expanded, err := expandPath(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s", expanded)
		}
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Sample returns the embedded sample configuration file content.
func Sample() string { return sampleConfig }

// Table returns the table descriptor with the given name.
func (c *Config) Table(name string) (*Table, bool) {
	for i := range c.Tables {
		if c.Tables[i].Name == name {
			return &c.Tables[i], true
		}
	}
	return nil, false
}

// TableForSheet resolves a sheet or record-group name to a table name,
// matching display name first, then table name.
func (c *Config) TableForSheet(sheet string) (string, bool) {
	sheet = strings.TrimSpace(sheet)
	for i := range c.Tables {
		if strings.EqualFold(c.Tables[i].DisplayName, sheet) {
			return c.Tables[i].Name, true
		}
	}
	for i := range c.Tables {
		if strings.EqualFold(c.Tables[i].Name, sheet) {
			return c.Tables[i].Name, true
		}
	}
	return "", false
}

// ReferencedBy returns the tables whose foreign key points at the given
// table's primary key. Computed once during load by inverting the FK maps.
func (c *Config) ReferencedBy(table string) []string {
	return c.referencedBy[table]
}

// EnsureDirectories creates the directories the daemon requires.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Folders.Watch, c.Folders.Staging, c.Folders.Store, c.Folders.Trash, c.Folders.StateDir, c.Folders.LogDir}
	for i := range c.Tables {
		dirs = append(dirs, c.Tables[i].Outputs...)
	}
	for _, replica := range c.Catalog.Replicas {
		dirs = append(dirs, filepath.Dir(replica))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) normalize() error {
	var err error
	if c.Folders.Watch, err = expandPath(c.Folders.Watch); err != nil {
		return err
	}
	if c.Folders.Staging, err = expandPath(c.Folders.Staging); err != nil {
		return err
	}
	if c.Folders.Store, err = expandPath(c.Folders.Store); err != nil {
		return err
	}
	if c.Folders.Trash, err = expandPath(c.Folders.Trash); err != nil {
		return err
	}
	if c.Folders.StateDir, err = expandPath(c.Folders.StateDir); err != nil {
		return err
	}
	if c.Folders.LogDir, err = expandPath(c.Folders.LogDir); err != nil {
		return err
	}
	for i, replica := range c.Catalog.Replicas {
		if c.Catalog.Replicas[i], err = expandPath(replica); err != nil {
			return err
		}
	}

	for i := range c.Tables {
		tbl := &c.Tables[i]
		tbl.Name = strings.TrimSpace(tbl.Name)
		if tbl.DisplayName == "" {
			tbl.DisplayName = tbl.Name
		}
		for j, out := range tbl.Outputs {
			if tbl.Outputs[j], err = expandPath(out); err != nil {
				return err
			}
		}
		if tbl.MetadataPattern != "" {
			if tbl.metadataRe, err = regexp.Compile(tbl.MetadataPattern); err != nil {
				return fmt.Errorf("table %s: metadata_pattern: %w", tbl.Name, err)
			}
		}
		if tbl.DataPattern != "" {
			if tbl.dataRe, err = regexp.Compile(tbl.DataPattern); err != nil {
				return fmt.Errorf("table %s: data_pattern: %w", tbl.Name, err)
			}
		}
		if tbl.FilenamePattern != "" {
			if tbl.filenameRe, err = regexp.Compile(tbl.FilenamePattern); err != nil {
				return fmt.Errorf("table %s: filename_pattern: %w", tbl.Name, err)
			}
		}
	}

	c.referencedBy = make(map[string][]string)
	for i := range c.Tables {
		for target := range c.Tables[i].ForeignKeys {
			c.referencedBy[target] = append(c.referencedBy[target], c.Tables[i].Name)
		}
	}

	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
