package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateFolders(); err != nil {
		return err
	}
	if err := c.validateCatalog(); err != nil {
		return err
	}
	if err := c.validateTables(); err != nil {
		return err
	}
	if err := c.validateAssociations(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateFolders() error {
	required := map[string]string{
		"folders.watch":     c.Folders.Watch,
		"folders.staging":   c.Folders.Staging,
		"folders.store":     c.Folders.Store,
		"folders.trash":     c.Folders.Trash,
		"folders.state_dir": c.Folders.StateDir,
		"folders.log_dir":   c.Folders.LogDir,
	}
	for key, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must be set", key)
		}
	}
	if c.Folders.Watch == c.Folders.Staging {
		return errors.New("folders.watch and folders.staging must differ")
	}
	return nil
}

func (c *Config) validateCatalog() error {
	if len(c.Catalog.Replicas) == 0 {
		return errors.New("catalog.replicas must list at least one file")
	}
	return nil
}

func (c *Config) validateTables() error {
	if len(c.Tables) == 0 {
		return errors.New("at least one [[tables]] entry is required")
	}
	seen := map[string]struct{}{}
	for i := range c.Tables {
		tbl := &c.Tables[i]
		if tbl.Name == "" {
			return fmt.Errorf("tables[%d].name must be set", i)
		}
		if _, dup := seen[tbl.Name]; dup {
			return fmt.Errorf("table %s configured twice", tbl.Name)
		}
		seen[tbl.Name] = struct{}{}
		if len(tbl.RequiredColumns) == 0 {
			return fmt.Errorf("table %s: required_columns must be set", tbl.Name)
		}
		if len(tbl.KeyColumns) == 0 {
			return fmt.Errorf("table %s: key_columns must be set", tbl.Name)
		}
		if len(tbl.PublishedColumns) > 0 && len(tbl.FilenameColumns) == 0 {
			return fmt.Errorf("table %s: published_columns requires filename_columns", tbl.Name)
		}
		for _, tr := range tbl.Transforms {
			switch tr.Op {
			case "replace", "prefix", "suffix":
			default:
				return fmt.Errorf("table %s: unknown transform op %q", tbl.Name, tr.Op)
			}
		}
	}
	return nil
}

func (c *Config) validateAssociations() error {
	for i := range c.Tables {
		tbl := &c.Tables[i]
		if pk := tbl.PrimaryKey; pk != nil && strings.TrimSpace(pk.Column) == "" {
			return fmt.Errorf("table %s: primary_key.column must be set", tbl.Name)
		}
		for target, column := range tbl.ForeignKeys {
			ref, ok := c.Table(target)
			if !ok {
				return fmt.Errorf("table %s: foreign key references unknown table %q", tbl.Name, target)
			}
			if ref.PrimaryKey == nil {
				return fmt.Errorf("table %s: foreign key references table %q which has no primary key", tbl.Name, target)
			}
			if strings.TrimSpace(column) == "" {
				return fmt.Errorf("table %s: foreign key column for %q must be set", tbl.Name, target)
			}
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	positives := map[string]int{
		"workflow.poll_interval_seconds": c.Workflow.PollIntervalSeconds,
		"workflow.clean_interval_hours":  c.Workflow.CleanIntervalHours,
		"workflow.error_budget":          c.Workflow.ErrorBudget,
		"retention.max_age_hours":        c.Retention.MaxAgeHours,
		"retention.max_trash_variants":   c.Retention.MaxTrashVariants,
	}
	for key, value := range positives {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
