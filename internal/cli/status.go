package cli

import (
	"github.com/spf13/cobra"
)

func newStatusCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status <project-id>",
		Short: "Show a project's persisted progress",
		Long: `Rebuild a project from the store and show its derived state: stored
stage results, current stage, and status. Nothing executes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst, err := app.Engine.Resume(args[0])
			if err != nil {
				return app.reportError(err)
			}
			app.Printer.Status(inst, app.Engine.Spec().Len())
			return nil
		},
	}
}
