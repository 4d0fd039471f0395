// Package cli wires the agentflow commands.
//
// The [App] holds the shared dependencies behind small consumer-side
// interfaces so command behavior is testable without a real backend. Use
// [NewApp] to build an App from configuration and [Execute] as the process
// entry point.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"agentflow/internal/backend"
	"agentflow/internal/config"
	"agentflow/internal/engine"
	"agentflow/internal/gateway"
	"agentflow/internal/notify"
	"agentflow/internal/output"
	"agentflow/internal/pipeline"
	"agentflow/internal/store"
)

// WorkflowEngine is the interface commands use to drive a project. The
// [engine.Engine] type implements it.
type WorkflowEngine interface {
	Start(ctx context.Context, projectID, requirement string) (*engine.Instance, error)
	RunStage(ctx context.Context, projectID string, stage int) (*engine.Instance, error)
	Decide(ctx context.Context, projectID string, decision engine.Decision) (*engine.Instance, error)
	Resume(projectID string) (*engine.Instance, error)
	Spec() *pipeline.Spec
}

// ApprovalLister exposes open approval requests for the pending command.
// The [gateway.Gateway] type implements it.
type ApprovalLister interface {
	ListPending() []engine.ApprovalRequest
}

// App holds the dependencies shared by all commands.
type App struct {
	Config  *config.Config
	Engine  WorkflowEngine
	Lister  ApprovalLister
	Printer *output.Printer

	// closers run after command execution (e.g., draining NATS).
	closers []func()
}

// NewApp builds an [App] from configuration: pipeline spec, file store,
// HTTP backend client, engine, gateway, and a completion notifier (NATS
// when configured, otherwise terminal output).
func NewApp(cfg *config.Config) (*App, error) {
	spec, err := cfg.Spec()
	if err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	printer := output.NewPrinter()
	projectStore := store.NewFileStore(cfg.Store.Dir)
	executor := backend.NewClient(spec, backend.ClientOptions{
		BaseURL:      cfg.Backend.BaseURL,
		Models:       cfg.Models,
		DefaultModel: cfg.Backend.DefaultModel,
		Timeout:      time.Duration(cfg.Backend.TimeoutSeconds) * time.Second,
	})

	eng := engine.New(spec, executor, projectStore)

	app := &App{
		Config:  cfg,
		Engine:  eng,
		Lister:  gateway.New(eng),
		Printer: printer,
	}

	if cfg.Notify.NATSURL != "" {
		notifier, err := notify.NewNATSNotifier(cfg.Notify.NATSURL, cfg.Notify.Subject)
		if err != nil {
			return nil, err
		}
		eng.SetNotifier(notifier)
		app.closers = append(app.closers, notifier.Close)
	} else {
		eng.SetNotifier(notify.NewPrintNotifier(printer))
	}

	return app, nil
}

// Close releases resources held by the app.
func (a *App) Close() {
	for _, closer := range a.closers {
		closer()
	}
}

// NewRootCommand builds the cobra command tree for the app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "agentflow",
		Short: "Drive multi-agent AI pipelines with human approval gates",
		Long: `agentflow advances a project through an ordered pipeline of AI-executed
stages. Gated stages pause for a human decision: approve to advance,
reject to re-run the stage with feedback. Progress is persisted after
every stage, so an interrupted project can be resumed and continued.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newStartCommand(app),
		newContinueCommand(app),
		newApproveCommand(app),
		newRejectCommand(app),
		newReviseCommand(app),
		newPendingCommand(app),
		newStatusCommand(app),
	)

	return root
}

// Execute loads configuration, builds the app, and runs the command tree.
// It is the process entry point and returns the process exit code.
func Execute() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	app, err := NewApp(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer app.Close()

	root := NewRootCommand(app)
	if err := root.Execute(); err != nil {
		if code, ok := IsExitError(err); ok {
			return code
		}
		app.Printer.Error(err)
		return 1
	}
	return 0
}

// render reports an instance's settled state after an operation.
func (a *App) render(inst *engine.Instance) {
	switch inst.Status {
	case engine.StatusAwaitingApproval:
		if result, ok := inst.LatestResult(); ok {
			a.Printer.Deliverables(result.Deliverables)
		}
		if inst.Approval != nil {
			stageName := ""
			if stage, err := a.Engine.Spec().Stage(inst.Approval.Stage); err == nil {
				stageName = stage.Name
			}
			a.Printer.ApprovalPrompt(*inst.Approval, stageName)
		}
	case engine.StatusCompleted:
		// The completion notifier already announced the result.
	default:
		a.Printer.Status(inst, a.Engine.Spec().Len())
	}
}

// reportError prints a failure with its distinguishable kind and returns
// the matching exit error.
func (a *App) reportError(err error) error {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		a.Printer.Error(err)
		a.Printer.Info("No such project. Check the id, or start a new project.")
	case errors.Is(err, engine.ErrInvalidState):
		a.Printer.Error(err)
	case errors.Is(err, engine.ErrConcurrentExecution):
		a.Printer.Error(err)
		a.Printer.Info("A stage is still running for this project; try again when it settles.")
	case errors.Is(err, engine.ErrExecutorFailure):
		a.Printer.Error(err)
		a.Printer.Info("Stored progress is preserved. Re-run the stage with: agentflow continue <project-id>")
	default:
		a.Printer.Error(err)
	}
	return NewExitError(1)
}
