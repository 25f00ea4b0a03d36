package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlgate/internal/proxy"
	"github.com/leapstack-labs/sqlgate/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the gateway over HTTP",
		Long: `Start the HTTP gateway.

Requests to /{database}/... are resolved against the database's routes and
answered with query rows or a configured response. Requests to
/{remote}/{version}/... are forwarded to the remote API when its access
lists allow the path.`,
		Example: `  # Serve ./config on :8000
  sqlgate serve

  # Reload when config files change
  sqlgate serve --watch --addr :9000`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, NewCommandContext(cmd))
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default :8000)")
	cmd.Flags().Bool("watch", false, "Reload configuration when files change")
	cmd.Flags().Duration("query-timeout", 0, "Per-query timeout (default 30s)")

	return cmd
}

func runServe(ctx context.Context, cc *CommandContext) error {
	exec, err := cc.OpenExecutor(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = exec.Close() }()

	store, err := cc.OpenState()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	srv, err := server.New(ctx, server.Options{
		ConfigDir:    cc.Cfg.ConfigDir,
		Addr:         cc.Cfg.Addr,
		Watch:        cc.Cfg.Watch,
		QueryTimeout: cc.Cfg.QueryTimeout,
		Executor:     exec,
		Proxy:        proxy.New(nil, cc.Logger),
		Engine:       cc.EngineOptions(store),
		Logger:       cc.Logger,
	})
	if err != nil {
		return err
	}

	cc.Logger.Info("gateway ready",
		slog.String("addr", cc.Cfg.Addr),
		slog.String("config_dir", cc.Cfg.ConfigDir),
		slog.Bool("watch", cc.Cfg.Watch))
	return srv.Serve(ctx)
}
