package cli

import (
	"github.com/spf13/cobra"

	"agentflow/internal/engine"
)

func newContinueCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "continue <project-id>",
		Short: "Resume a persisted project and run its next stage",
		Long: `Rebuild a project from the store and run the stage after its last
stored result. Resuming alone never executes anything; this command is
the explicit continue step, and it is also how a failed stage is
retried.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := args[0]
			ctx := cmd.Context()

			inst, err := app.Engine.Resume(projectID)
			if err != nil {
				return app.reportError(err)
			}
			if inst.Status == engine.StatusCompleted {
				app.Printer.Info("Project is already complete.")
				app.Printer.Status(inst, app.Engine.Spec().Len())
				return nil
			}

			if stage, err := app.Engine.Spec().Stage(inst.CurrentStage); err == nil {
				app.Printer.StageStarted(stage.Position, stage.Name, stage.Role)
			}

			inst, err = app.Engine.RunStage(ctx, projectID, inst.CurrentStage)
			if err != nil {
				return app.reportError(err)
			}
			app.render(inst)
			return nil
		},
	}
}
