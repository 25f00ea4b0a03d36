// Package core defines the shared language of the sqlgate system.
//
// This package contains:
//   - The error taxonomy (ErrorKind, Error) and its HTTP status mapping
//   - Service interfaces shared by executors (Adapter, AdapterConfig, Rows)
//
// pkg/core imports only the standard library.
// All other packages depend on core, not the reverse.
package core
