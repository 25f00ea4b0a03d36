// Package duckdb provides the DuckDB query executor.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/sqlgate/pkg/adapter"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver
)

// Name is the registry name of the DuckDB adapter.
const Name = "duckdb"

// Adapter implements the adapter.Adapter interface for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new DuckDB adapter instance. A nil logger discards output.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger}}
}

// Connect opens DuckDB and applies extensions, settings and secrets from
// cfg.Params. An empty path opens an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	params, err := ParseParams(cfg.Params)
	if err != nil {
		return err
	}

	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	if err := a.attach(ctx, db, cfg, params); err != nil {
		_ = db.Close()
		return err
	}
	return nil
}

// attach adopts db and runs the setup statements on it.
func (a *Adapter) attach(ctx context.Context, db *sql.DB, cfg adapter.Config, params *Params) error {
	a.DB = db
	a.Cfg = cfg

	for _, stmt := range params.Statements() {
		a.Logger.Debug("duckdb setup", slog.String("stmt", redact(stmt)))
		if err := a.Exec(ctx, stmt); err != nil {
			a.DB = nil
			return fmt.Errorf("failed to apply duckdb params: %w", err)
		}
	}
	a.Logger.Debug("duckdb connected", slog.String("path", cfg.Path))
	return nil
}

// redact hides secret statements from logs.
func redact(stmt string) string {
	const prefix = "CREATE OR REPLACE SECRET"
	if len(stmt) >= len(prefix) && stmt[:len(prefix)] == prefix {
		return prefix + " (...)"
	}
	return stmt
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
