package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlgate/internal/cli/output"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent action invocations",
		Long:  `Show the most recent entries of the action log, newest first.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRuns(cmd, NewCommandContext(cmd), limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs (0 for all)")

	return cmd
}

func runRuns(cmd *cobra.Command, cc *CommandContext, limit int) error {
	store, err := cc.OpenState()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(runs)
	}

	cols := []string{"id", "action", "parameter", "status", "started_at", "duration"}
	rows := make([]map[string]any, len(runs))
	for i, run := range runs {
		rows[i] = map[string]any{
			"id":         run.ID,
			"action":     run.Name,
			"parameter":  run.Parameter,
			"status":     run.Status,
			"started_at": run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			"duration":   run.Duration.String(),
		}
	}
	return r.Rows(cols, rows)
}
