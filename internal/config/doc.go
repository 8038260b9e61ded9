// Package config loads and validates the curator TOML configuration.
//
// Loading follows defaults -> decode -> normalize -> validate. Normalize
// expands paths, compiles classification patterns, and inverts the foreign
// key maps into the referenced-by sets the reconciliation engine consumes.
package config
