// Package logging configures slog handlers shared by the daemon and CLI.
//
// Two output formats are supported: a console format that renders
// "TIMESTAMP LEVEL component: message key=value" lines, and a JSON format
// for machine consumption. Components obtain loggers through
// NewComponentLogger so every record carries a component attribute.
package logging
