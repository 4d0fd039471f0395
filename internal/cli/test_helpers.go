package cli

import (
	"bytes"
	"context"

	"agentflow/internal/config"
	"agentflow/internal/engine"
	"agentflow/internal/output"
	"agentflow/internal/pipeline"
)

// mockEngine implements [WorkflowEngine] with scriptable function fields.
// Nil fields fail loudly by returning engine.ErrNotFound so a test that
// forgot to script a call notices.
type mockEngine struct {
	spec *pipeline.Spec

	startFn    func(ctx context.Context, projectID, requirement string) (*engine.Instance, error)
	runStageFn func(ctx context.Context, projectID string, stage int) (*engine.Instance, error)
	decideFn   func(ctx context.Context, projectID string, decision engine.Decision) (*engine.Instance, error)
	resumeFn   func(projectID string) (*engine.Instance, error)
}

func (m *mockEngine) Start(ctx context.Context, projectID, requirement string) (*engine.Instance, error) {
	if m.startFn == nil {
		return nil, engine.ErrNotFound
	}
	return m.startFn(ctx, projectID, requirement)
}

func (m *mockEngine) RunStage(ctx context.Context, projectID string, stage int) (*engine.Instance, error) {
	if m.runStageFn == nil {
		return nil, engine.ErrNotFound
	}
	return m.runStageFn(ctx, projectID, stage)
}

func (m *mockEngine) Decide(ctx context.Context, projectID string, decision engine.Decision) (*engine.Instance, error) {
	if m.decideFn == nil {
		return nil, engine.ErrNotFound
	}
	return m.decideFn(ctx, projectID, decision)
}

func (m *mockEngine) Resume(projectID string) (*engine.Instance, error) {
	if m.resumeFn == nil {
		return nil, engine.ErrNotFound
	}
	return m.resumeFn(projectID)
}

func (m *mockEngine) Spec() *pipeline.Spec {
	if m.spec != nil {
		return m.spec
	}
	return pipeline.Delivery()
}

// mockLister implements [ApprovalLister] with a fixed request list.
type mockLister struct {
	pending []engine.ApprovalRequest
}

func (m *mockLister) ListPending() []engine.ApprovalRequest {
	return m.pending
}

// newTestApp builds an [App] over mocks, capturing printer output.
func newTestApp(eng *mockEngine, lister *mockLister) (*App, *bytes.Buffer) {
	if lister == nil {
		lister = &mockLister{}
	}
	var buf bytes.Buffer
	app := &App{
		Config:  config.DefaultConfig(),
		Engine:  eng,
		Lister:  lister,
		Printer: output.NewPrinterWithWriter(&buf),
	}
	return app, &buf
}

// runCommand executes the app's command tree with the given arguments and
// returns the execution error (an [ExitError] for reported failures).
func runCommand(app *App, args ...string) error {
	root := NewRootCommand(app)
	root.SetArgs(args)
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	return root.Execute()
}

// awaitingInstance fabricates an instance paused at a gated stage.
func awaitingInstance(projectID string, stage, nextStage int) *engine.Instance {
	return &engine.Instance{
		ProjectID:   projectID,
		Requirement: "requirement",
		Results: map[int]engine.StageResult{
			stage: {
				Stage:        stage,
				Deliverables: []engine.Deliverable{{Name: "Stage Output", Content: "content"}},
			},
		},
		CurrentStage: stage,
		Status:       engine.StatusAwaitingApproval,
		Approval:     &engine.ApprovalRequest{ProjectID: projectID, Stage: stage, NextStage: nextStage},
	}
}

var _ WorkflowEngine = (*mockEngine)(nil)
var _ ApprovalLister = (*mockLister)(nil)
