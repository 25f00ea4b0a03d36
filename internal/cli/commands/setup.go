package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlgate/internal/action"
	"github.com/leapstack-labs/sqlgate/internal/cli/config"
	"github.com/leapstack-labs/sqlgate/internal/cli/output"
	gwconfig "github.com/leapstack-labs/sqlgate/internal/config"
	"github.com/leapstack-labs/sqlgate/internal/engine"
	"github.com/leapstack-labs/sqlgate/internal/state"
	"github.com/leapstack-labs/sqlgate/pkg/adapter"
	"github.com/leapstack-labs/sqlgate/pkg/adapters/duckdb"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the command's context.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := config.GetConfig(cmd.Context())
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// LoadGateway loads the gateway config directory.
func (c *CommandContext) LoadGateway() (*gwconfig.Gateway, error) {
	return gwconfig.Load(c.Cfg.ConfigDir, c.Logger)
}

// OpenExecutor connects the DuckDB executor described by the settings.
func (c *CommandContext) OpenExecutor(ctx context.Context) (adapter.Adapter, error) {
	cfg := adapter.Config{
		Type:   duckdb.Name,
		Path:   c.Cfg.DatabasePath,
		Params: c.Cfg.DuckDB,
	}

	exec, err := adapter.NewAdapter(cfg, c.Logger)
	if err != nil {
		return nil, err
	}
	if err := exec.Connect(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to connect to duckdb: %w", err)
	}
	return exec, nil
}

// OpenState opens the action log, creating its directory when needed.
func (c *CommandContext) OpenState() (*state.SQLiteStore, error) {
	if err := ensureDir(c.Cfg.StatePath); err != nil {
		return nil, err
	}
	store, err := state.Open(c.Cfg.StatePath, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	return store, nil
}

// EngineOptions builds the engine options with the action chain:
// registered actions, then Starlark scripts, then echo, with every
// invocation recorded in store.
func (c *CommandContext) EngineOptions(store action.Recorder) engine.Options {
	scripts := action.NewScriptExecutor(c.Cfg.ActionsDir, action.Echo, c.Logger)
	var exec action.Executor = action.NewRegistry(scripts, c.Logger)
	if store != nil {
		exec = action.NewRecording(exec, store, c.Logger)
	}

	return engine.Options{
		Actions:         exec,
		Logger:          c.Logger,
		StrictInjection: c.Cfg.StrictInjection,
	}
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	return nil
}
