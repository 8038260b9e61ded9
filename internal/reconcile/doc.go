// Package reconcile merges ingested metadata files into the reference
// catalog. It identifies which table each sheet belongs to, collapses
// duplicate composite keys, resolves primary and foreign keys across the
// tables of one file in dependency order, and marks catalog rows published
// when their data files arrive.
package reconcile
