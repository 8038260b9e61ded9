// Package lifecycle moves files between the watch, staging, store, trash
// and output folders. It owns classification, staging dedup, trash
// collision handling, retention sweeps and output mirroring; catalog
// semantics live elsewhere.
package lifecycle
