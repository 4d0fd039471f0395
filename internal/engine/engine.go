package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"agentflow/internal/pipeline"
)

// Engine is the workflow state machine. It owns the stage sequence
// definition, validates legal transitions, invokes the step executor, and
// records results in the project store.
//
// Engine uses dependency injection for testability: [StepExecutor] performs
// stage work, [ProjectStore] persists results, and an optional [Notifier]
// (set via [Engine.SetNotifier]) is informed of completions. Use [New] to
// create an instance.
//
// All exported methods are safe for concurrent use. Stage execution is
// serialized per project: overlapping starts fail with
// [ErrConcurrentExecution] rather than queueing.
type Engine struct {
	spec     *pipeline.Spec
	executor StepExecutor
	store    ProjectStore
	notifier Notifier

	// mu guards instances and inflight and every Instance mutation. It is
	// never held across an executor call.
	mu        sync.Mutex
	instances map[string]*Instance
	inflight  map[string]bool
}

// New creates an [Engine] driving the given pipeline spec.
//
// The executor performs each stage's work and the store persists progress.
// The spec is treated as immutable configuration; pass a validated spec
// (see [pipeline.Spec.Validate]).
func New(spec *pipeline.Spec, executor StepExecutor, store ProjectStore) *Engine {
	return &Engine{
		spec:      spec,
		executor:  executor,
		store:     store,
		instances: make(map[string]*Instance),
		inflight:  make(map[string]bool),
	}
}

// SetNotifier configures an optional completion notifier.
//
// The notifier is invoked after an instance transitions to
// [StatusCompleted]. Delivery failures are ignored: notification never
// affects workflow state.
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// Start creates a new workflow instance and immediately runs stage 1.
//
// If projectID is empty a new identifier is generated. Starting is legal
// only when the project is unknown or its existing instance is idle or
// failed; a fresh start discards prior in-memory progress (to continue an
// interrupted run instead, use [Engine.Resume] followed by
// [Engine.RunStage]). Returns a snapshot of the instance after stage 1
// settles: awaiting approval, completed, or failed.
func (e *Engine) Start(ctx context.Context, projectID, requirement string) (*Instance, error) {
	if requirement == "" {
		return nil, fmt.Errorf("%w: a requirement is needed to start a project", ErrInvalidState)
	}
	if projectID == "" {
		projectID = uuid.NewString()
	}

	e.mu.Lock()
	if existing, ok := e.instances[projectID]; ok {
		if e.inflight[projectID] {
			e.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrConcurrentExecution, projectID)
		}
		if existing.Status != StatusIdle && existing.Status != StatusFailed {
			e.mu.Unlock()
			return nil, fmt.Errorf("%w: project %s is %s", ErrInvalidState, projectID, existing.Status)
		}
	}
	e.instances[projectID] = &Instance{
		ProjectID:    projectID,
		Requirement:  requirement,
		Results:      make(map[int]StageResult),
		CurrentStage: 1,
		Status:       StatusRunning,
	}
	e.mu.Unlock()

	return e.run(ctx, projectID, 1, "")
}

// RunStage runs the given stage for a previously resumed or failed
// instance. It exists for resume-and-continue and retry-after-failure; the
// normal advancement path is [Engine.Decide].
//
// The stage must be the instance's derived current stage (max stored
// position + 1). Returns [ErrNotFound] for unknown projects,
// [ErrConcurrentExecution] when a stage is already in flight, and
// [ErrInvalidState] when the instance is awaiting approval, completed, or
// the stage number does not match.
func (e *Engine) RunStage(ctx context.Context, projectID string, stage int) (*Instance, error) {
	e.mu.Lock()
	inst, ok := e.instances[projectID]
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, projectID)
	}
	if e.inflight[projectID] {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrConcurrentExecution, projectID)
	}
	if inst.Status != StatusIdle && inst.Status != StatusFailed {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: project %s is %s", ErrInvalidState, projectID, inst.Status)
	}
	if derived := derivedStage(inst.Results); stage != derived {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: stage %d requested but project %s is at stage %d", ErrInvalidState, stage, projectID, derived)
	}
	if stage > e.spec.Len() {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: project %s is already complete", ErrInvalidState, projectID)
	}
	e.mu.Unlock()

	return e.run(ctx, projectID, stage, "")
}

// Decide resolves the open approval request for a project.
//
// Approve advances to the next stage (or completes the project when the
// gated stage was the final one); reject and request-revision re-run the
// same stage with the decision's feedback as the revision note. The current
// stage never advances on rejection.
//
// Returns [ErrInvalidState] when no approval request is open: a decision
// arriving with nothing pending is a caller bug and is surfaced, never
// ignored.
func (e *Engine) Decide(ctx context.Context, projectID string, decision Decision) (*Instance, error) {
	e.mu.Lock()
	inst, ok := e.instances[projectID]
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, projectID)
	}
	if inst.Status != StatusAwaitingApproval || inst.Approval == nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: nothing to approve for project %s (status %s)", ErrInvalidState, projectID, inst.Status)
	}

	request := *inst.Approval

	switch decision.Kind {
	case DecisionApprove:
		inst.Approval = nil
		if request.NextStage == 0 {
			// Final gated stage approved: the project is done.
			inst.Status = StatusCompleted
			inst.CurrentStage = request.Stage + 1
			result := inst.Results[request.Stage]
			snapshot := inst.clone()
			e.mu.Unlock()
			e.notifyCompleted(projectID, request.Stage, result.Deliverables)
			return snapshot, nil
		}
		inst.Status = StatusRunning
		inst.CurrentStage = request.NextStage
		e.mu.Unlock()
		return e.run(ctx, projectID, request.NextStage, "")

	case DecisionReject, DecisionRequestRevision:
		inst.Approval = nil
		inst.Status = StatusRunning
		e.mu.Unlock()
		return e.run(ctx, projectID, request.Stage, decision.Feedback)

	default:
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: unknown decision kind %q", ErrInvalidState, decision.Kind)
	}
}

// Resume reconstructs an instance purely from the project store.
//
// Only the requirement and stored stage results are read; the current stage
// and status are derived, never trusted from any independently persisted
// field. The resumed instance is idle (or completed when every stage has a
// stored result) and never auto-executes: continuing requires an explicit
// [Engine.RunStage] call.
//
// Returns [ErrConcurrentExecution] if a stage for the project is currently
// in flight in this engine.
func (e *Engine) Resume(projectID string) (*Instance, error) {
	requirement, results, err := e.store.Load(projectID)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = make(map[int]StageResult)
	}

	current := derivedStage(results)
	status := StatusIdle
	if current > e.spec.Len() {
		status = StatusCompleted
	}

	e.mu.Lock()
	if e.inflight[projectID] {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrConcurrentExecution, projectID)
	}
	inst := &Instance{
		ProjectID:    projectID,
		Requirement:  requirement,
		Results:      results,
		CurrentStage: current,
		Status:       status,
	}
	e.instances[projectID] = inst
	snapshot := inst.clone()
	e.mu.Unlock()

	return snapshot, nil
}

// Instance returns a snapshot of the in-memory instance for a project, or
// [ErrNotFound]. It does not consult the store; use [Engine.Resume] to load
// persisted projects.
func (e *Engine) Instance(projectID string) (*Instance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst, ok := e.instances[projectID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, projectID)
	}
	return inst.clone(), nil
}

// Pending returns the open approval requests across all in-memory
// instances. The listing is level-triggered: a request stays visible until
// resolved, and is only ever visible once its stage result is durably
// stored.
func (e *Engine) Pending() []ApprovalRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	var pending []ApprovalRequest
	for _, inst := range e.instances {
		if inst.Status == StatusAwaitingApproval && inst.Approval != nil {
			pending = append(pending, *inst.Approval)
		}
	}
	return pending
}

// Spec returns the pipeline spec the engine drives.
func (e *Engine) Spec() *pipeline.Spec {
	return e.spec
}

// run executes one stage (and, for ungated non-final stages, flows directly
// into the following ones within the same pass). The project must already
// exist; run claims the single in-flight slot for it.
func (e *Engine) run(ctx context.Context, projectID string, stage int, feedback string) (*Instance, error) {
	e.mu.Lock()
	inst, ok := e.instances[projectID]
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, projectID)
	}
	if e.inflight[projectID] {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrConcurrentExecution, projectID)
	}
	e.inflight[projectID] = true
	inst.Status = StatusRunning
	inst.CurrentStage = stage
	inst.Approval = nil
	sc := BuildContext(inst.Requirement, inst.Results, stage, feedback)
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.inflight, projectID)
		e.mu.Unlock()
	}()

	for {
		deliverables, err := e.executor.ExecuteStage(ctx, stage, sc)
		if err != nil {
			e.mu.Lock()
			inst.Status = StatusFailed
			snapshot := inst.clone()
			e.mu.Unlock()
			return snapshot, fmt.Errorf("%w: stage %d: %v", ErrExecutorFailure, stage, err)
		}

		e.mu.Lock()
		previous, hadPrevious := inst.Results[stage]
		inst.Results[stage] = StageResult{
			Stage:        stage,
			Deliverables: deliverables,
			RevisionNote: feedback,
		}
		if err := e.store.Save(projectID, inst.Requirement, inst.Results); err != nil {
			// The store is the source of truth on resume: never let the
			// in-memory state get ahead of it.
			if hadPrevious {
				inst.Results[stage] = previous
			} else {
				delete(inst.Results, stage)
			}
			inst.Status = StatusFailed
			snapshot := inst.clone()
			e.mu.Unlock()
			return snapshot, fmt.Errorf("%w: stage %d: persisting result: %v", ErrExecutorFailure, stage, err)
		}

		switch {
		case e.spec.Gated(stage):
			next := 0
			if stage < e.spec.Len() {
				next = stage + 1
			}
			inst.Status = StatusAwaitingApproval
			inst.Approval = &ApprovalRequest{ProjectID: projectID, Stage: stage, NextStage: next}
			snapshot := inst.clone()
			e.mu.Unlock()
			return snapshot, nil

		case stage == e.spec.Len():
			inst.Status = StatusCompleted
			inst.CurrentStage = stage + 1
			snapshot := inst.clone()
			e.mu.Unlock()
			e.notifyCompleted(projectID, stage, deliverables)
			return snapshot, nil

		default:
			// Ungated non-final stage: continue the pass with the next one.
			stage++
			feedback = ""
			inst.CurrentStage = stage
			sc = BuildContext(inst.Requirement, inst.Results, stage, "")
			e.mu.Unlock()
		}
	}
}

func (e *Engine) notifyCompleted(projectID string, stage int, deliverables []Deliverable) {
	if e.notifier == nil {
		return
	}
	// Fire-and-forget: a notification failure must never affect workflow state.
	_ = e.notifier.ProjectCompleted(projectID, stage, deliverables)
}

// derivedStage computes the current stage from the stored result set: the
// highest stored position plus one, or 1 when nothing is stored.
func derivedStage(results map[int]StageResult) int {
	max := 0
	for stage := range results {
		if stage > max {
			max = stage
		}
	}
	return max + 1
}
