package cli

import (
	"github.com/spf13/cobra"

	"agentflow/internal/engine"
)

func newApproveCommand(app *App) *cobra.Command {
	return newDecisionCommand(app, decisionSpec{
		use:   "approve <project-id>",
		short: "Approve the pending stage result and advance",
		long: `Approve the stage result waiting on a decision. The project advances
to the next stage (which runs immediately), or completes when the
approved stage was the final gate.`,
		kind: engine.DecisionApprove,
	})
}

func newRejectCommand(app *App) *cobra.Command {
	return newDecisionCommand(app, decisionSpec{
		use:   "reject <project-id>",
		short: "Reject the pending stage result and re-run it",
		long: `Reject the stage result waiting on a decision. The same stage re-runs
with your feedback as its revision note; the project never advances on
rejection.`,
		kind: engine.DecisionReject,
	})
}

func newReviseCommand(app *App) *cobra.Command {
	return newDecisionCommand(app, decisionSpec{
		use:   "revise <project-id>",
		short: "Request a revision of the pending stage result",
		long: `Request a revision of the stage result waiting on a decision. Engine
behavior is identical to reject: the same stage re-runs with your
feedback.`,
		kind: engine.DecisionRequestRevision,
	})
}

type decisionSpec struct {
	use   string
	short string
	long  string
	kind  engine.DecisionKind
}

func newDecisionCommand(app *App, spec decisionSpec) *cobra.Command {
	var feedback string

	cmd := &cobra.Command{
		Use:   spec.use,
		Short: spec.short,
		Long:  spec.long,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID := args[0]
			ctx := cmd.Context()

			inst, err := app.Engine.Decide(ctx, projectID, engine.Decision{
				Kind:     spec.kind,
				Feedback: feedback,
			})
			if err != nil {
				return app.reportError(err)
			}
			app.render(inst)
			return nil
		},
	}

	cmd.Flags().StringVarP(&feedback, "message", "m", "", "free-text feedback attached to the decision")
	return cmd
}
