package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/sqlgate/internal/cli/output"
	gwconfig "github.com/leapstack-labs/sqlgate/internal/config"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the gateway configuration",
		Long: `Load every configuration document and check routes, parameter rules,
tables and remotes. Exits with an error when problems are found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(NewCommandContext(cmd))
		},
	}
}

func runValidate(cc *CommandContext) error {
	r := cc.Renderer

	g, err := cc.LoadGateway()
	if err != nil {
		return err
	}

	problems := gwconfig.ValidateGateway(g)

	if r.EffectiveMode() == output.ModeJSON {
		msgs := make([]string, len(problems))
		for i, p := range problems {
			msgs[i] = p.Error()
		}
		if err := r.JSON(map[string]any{
			"valid":     len(problems) == 0,
			"databases": len(g.DatabaseNames()),
			"remotes":   len(g.RemoteNames()),
			"problems":  msgs,
		}); err != nil {
			return err
		}
	} else {
		for _, p := range problems {
			r.Error(p.Error())
		}
		if len(problems) == 0 {
			r.Success(fmt.Sprintf("configuration valid: %d databases, %d remotes",
				len(g.DatabaseNames()), len(g.RemoteNames())))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("found %d configuration problems", len(problems))
	}
	return nil
}
