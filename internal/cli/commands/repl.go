package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

const (
	replPrompt    = "sqlgate> "
	replHistory   = "repl_history"
	replLatestTag = "latest"
)

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	var execute bool

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Resolve requests interactively",
		Long: `Start an interactive session that resolves requests the way the gateway does.

Enter a database, optionally pinned to a version, followed by a path:

  shop users?limit=10
  catalog@1.0 items

Type .help for commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runREPL(cmd, NewCommandContext(cmd), execute)
		},
	}

	cmd.Flags().BoolVarP(&execute, "execute", "x", false, "Run resolved SQL and print the rows")

	return cmd
}

func runREPL(cmd *cobra.Command, cc *CommandContext, execute bool) error {
	ctx := cmd.Context()

	g, err := cc.LoadGateway()
	if err != nil {
		return err
	}

	store, err := cc.OpenState()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	session := &replSession{
		out:      cmd.OutOrStdout(),
		errOut:   cmd.ErrOrStderr(),
		resolver: &resolver{cc: cc, gateway: g, engine: cc.EngineOptions(store)},
	}
	if execute {
		exec, err := cc.OpenExecutor(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = exec.Close() }()
		session.resolver.exec = exec
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     filepath.Join(filepath.Dir(cc.Cfg.StatePath), replHistory),
		AutoComplete:    session.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(session.out, "sqlgate REPL (config: %s)\n", cc.Cfg.ConfigDir)
	_, _ = fmt.Fprintln(session.out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(session.out)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		if quit := session.eval(ctx, line); quit {
			break
		}
	}
	return nil
}

// replSession evaluates REPL lines.
type replSession struct {
	out      io.Writer
	errOut   io.Writer
	resolver *resolver
}

// eval runs one line and reports whether the session should end.
// Errors are printed and never end the session.
func (s *replSession) eval(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if strings.HasPrefix(line, ".") {
		return s.dotCommand(line)
	}

	fields := strings.Fields(line)
	target := ""
	if len(fields) > 1 {
		target = strings.Join(fields[1:], "")
	}
	database, version, _ := strings.Cut(fields[0], "@")
	if version == "" {
		version = replLatestTag
	}

	if err := s.resolver.run(ctx, database, version, target); err != nil {
		_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
	}
	_, _ = fmt.Fprintln(s.out)
	return false
}

func (s *replSession) dotCommand(line string) bool {
	parts := strings.Fields(line)
	g := s.resolver.gateway

	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(s.out)

	case ".databases":
		for _, name := range g.DatabaseNames() {
			set, _ := g.DatabaseSet(name)
			if set.Versioned {
				_, _ = fmt.Fprintf(s.out, "%s (%s)\n", name, strings.Join(set.VersionNames(), ", "))
				continue
			}
			_, _ = fmt.Fprintln(s.out, name)
		}

	case ".remotes":
		for _, name := range g.RemoteNames() {
			_, _ = fmt.Fprintln(s.out, name)
		}

	case ".routes":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(s.errOut, "Usage: .routes <database>[@version]")
			return false
		}
		database, version, _ := strings.Cut(parts[1], "@")
		db, err := g.Database(database, version)
		if err != nil {
			_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
			return false
		}
		for _, rc := range db.Routes {
			_, _ = fmt.Fprintln(s.out, rc.Route)
		}

	default:
		_, _ = fmt.Fprintf(s.errOut, "Unknown command: %s\n", parts[0])
	}
	return false
}

func (s *replSession) completer() *readline.PrefixCompleter {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem(".help"),
		readline.PcItem(".quit"),
		readline.PcItem(".databases"),
		readline.PcItem(".remotes"),
	}

	names := s.resolver.gateway.DatabaseNames()
	dbItems := make([]readline.PrefixCompleterInterface, 0, len(names))
	for _, name := range names {
		items = append(items, readline.PcItem(name))
		dbItems = append(dbItems, readline.PcItem(name))
	}
	items = append(items, readline.PcItem(".routes", dbItems...))

	return readline.NewPrefixCompleter(items...)
}

func printREPLHelp(w io.Writer) {
	_, _ = fmt.Fprintln(w, `Commands:
  <database>[@version] <path[?query]>   Resolve a request
  .databases                            List databases and versions
  .remotes                              List remote APIs
  .routes <database>[@version]          List a database's routes
  .help                                 Show this help
  .quit                                 Exit`)
}
