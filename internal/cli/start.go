package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newStartCommand(app *App) *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "start <requirement...>",
		Short: "Start a new project and run its first stage",
		Long: `Start a new project from a free-text requirement and run stage 1.
The command blocks until the stage settles: a gated stage pauses for an
approval decision, an ungated pass flows through to the next gate or to
completion.

Example:
  agentflow start "a web app that tracks reading lists"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			requirement := strings.Join(args, " ")
			ctx := cmd.Context()

			first, err := app.Engine.Spec().Stage(1)
			if err != nil {
				return app.reportError(err)
			}
			app.Printer.StageStarted(1, first.Name, first.Role)

			inst, err := app.Engine.Start(ctx, projectID, requirement)
			if err != nil {
				return app.reportError(err)
			}
			app.Printer.Info("project id: " + inst.ProjectID)
			app.render(inst)
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "explicit project id (default: generated)")
	return cmd
}
