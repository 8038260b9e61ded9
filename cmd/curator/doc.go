// Command curator runs the folder-watching catalog ingestion daemon and
// its companion utilities (config init/validate, ingest history, version).
package main
