package cli

import (
	"github.com/spf13/cobra"
)

func newPendingCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List open approval requests",
		Long: `List every approval request currently waiting on a decision. The list
is level-triggered: a request stays visible until it is resolved with
approve, reject, or revise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Printer.Pending(app.Lister.ListPending())
			return nil
		},
	}
}
