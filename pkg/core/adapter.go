package core

import "database/sql"

// AdapterConfig holds configuration for connecting to a query executor.
type AdapterConfig struct {
	// Type selects the registered adapter (e.g. "duckdb").
	Type string
	// Path is the database file; empty means in-memory.
	Path string
	// Options are string settings applied after connecting.
	Options map[string]string
	// Params carries adapter-specific settings decoded by the adapter.
	Params map[string]any
}

// Rows wraps sql.Rows to provide a consistent interface.
type Rows struct {
	*sql.Rows
}
