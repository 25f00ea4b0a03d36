package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlgate/internal/cli/output"
	gwconfig "github.com/leapstack-labs/sqlgate/internal/config"
	"github.com/leapstack-labs/sqlgate/internal/engine"
	"github.com/leapstack-labs/sqlgate/internal/storage"
	"github.com/leapstack-labs/sqlgate/pkg/adapter"
)

// ResolveOptions holds options for the resolve command.
type ResolveOptions struct {
	Version string
	Execute bool
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand() *cobra.Command {
	opts := &ResolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve <database> <path[?query]>",
		Short: "Show how a request resolves",
		Long: `Resolve a request path against a database's routes and print the SQL
the gateway would run, or the response a rule would return instead.

With --execute the SQL is run against DuckDB and the rows are printed.`,
		Example: `  sqlgate resolve shop 'users?limit=10'
  sqlgate resolve catalog items --db-version 1.0
  sqlgate resolve shop users/42 --execute -o json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd.Context(), NewCommandContext(cmd), args[0], args[1], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Version, "db-version", "latest", "Database version")
	cmd.Flags().BoolVarP(&opts.Execute, "execute", "x", false, "Run the SQL and print the rows")

	return cmd
}

func runResolve(ctx context.Context, cc *CommandContext, database, target string, opts *ResolveOptions) error {
	g, err := cc.LoadGateway()
	if err != nil {
		return err
	}

	store, err := cc.OpenState()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	rs := &resolver{cc: cc, gateway: g, engine: cc.EngineOptions(store)}
	if opts.Execute {
		exec, err := cc.OpenExecutor(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = exec.Close() }()
		rs.exec = exec
	}

	return rs.run(ctx, database, opts.Version, target)
}

// resolver resolves and renders requests for resolve and repl.
type resolver struct {
	cc      *CommandContext
	gateway *gwconfig.Gateway
	engine  engine.Options
	// exec runs built SQL; nil prints it instead.
	exec adapter.Adapter
	// prepared records databases whose storage setup already ran.
	prepared map[string]bool
}

// run resolves target against one database version and renders the result.
func (rs *resolver) run(ctx context.Context, database, version, target string) error {
	path, query, err := splitTarget(target)
	if err != nil {
		return err
	}

	db, err := rs.gateway.Database(database, version)
	if err != nil {
		return err
	}

	plan, err := engine.Resolve(ctx, db, path, query, rs.engine)
	if err != nil {
		return err
	}

	if plan.Response != nil {
		return rs.renderResponse(plan.Response)
	}
	if rs.exec == nil {
		return rs.renderSQL(plan)
	}
	return rs.execute(ctx, db, plan.SQL)
}

func (rs *resolver) renderResponse(resp *engine.Response) error {
	r := rs.cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]any{"status": resp.Status, "body": resp.Body})
	}

	body, err := json.MarshalIndent(resp.Body, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	r.Header(2, "Response")
	r.KeyValue("status", strconv.Itoa(resp.Status))
	r.Code("json", string(body))
	return nil
}

func (rs *resolver) renderSQL(plan *engine.Plan) error {
	r := rs.cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]any{"route": plan.Route.Route, "sql": plan.SQL, "legacy": plan.Legacy})
	}

	r.Header(2, "Route "+plan.Route.Route)
	r.Code("sql", plan.SQL)
	return nil
}

func (rs *resolver) execute(ctx context.Context, db *gwconfig.DatabaseConfig, sqlStr string) error {
	key := db.Name + "/" + db.Version
	if !rs.prepared[key] {
		status := storage.NewAuthenticator(rs.exec, rs.cc.Logger).Setup(ctx, db.Tables)
		for backend, ok := range status.Strings() {
			if !ok {
				rs.cc.Renderer.Warning("storage setup failed for " + backend)
			}
		}
		if rs.prepared == nil {
			rs.prepared = make(map[string]bool)
		}
		rs.prepared[key] = true
	}

	if timeout := rs.cc.Cfg.QueryTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	rows, err := rs.exec.Query(ctx, sqlStr)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("query timed out after %s", rs.cc.Cfg.QueryTimeout)
		}
		return fmt.Errorf("query execution failed: %w", err)
	}

	cols, data, err := adapter.ScanMaps(rows)
	if err != nil {
		return fmt.Errorf("failed to read rows: %w", err)
	}
	rs.cc.Logger.Debug("query executed", slog.String("database", db.Name), slog.Int("rows", len(data)))
	return rs.cc.Renderer.Rows(cols, data)
}

// splitTarget splits "path?query" into a path and single-valued query
// parameters. The first value of a repeated key wins.
func splitTarget(target string) (string, map[string]string, error) {
	path, rawQuery, _ := strings.Cut(target, "?")
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", nil, fmt.Errorf("invalid query string %q: %w", rawQuery, err)
	}

	query := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}
	return strings.Trim(path, "/"), query, nil
}
