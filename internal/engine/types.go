// Package engine implements the stage/approval workflow that advances a
// project through an ordered pipeline of AI-executed stages.
//
// Each stage is run by an external [StepExecutor] and its result recorded in
// a [ProjectStore]. Gated stages open an [ApprovalRequest] that a human
// resolves with a [Decision]: approval advances to the next stage, rejection
// re-runs the same stage with feedback. Progress survives restarts: an
// instance can be rebuilt from the store with [Engine.Resume] and continued
// explicitly.
//
// Key types:
//   - [Engine] - The state machine: Start, RunStage, Decide, Resume
//   - [Instance] - The full mutable state of one project's run
//   - [StageResult] - The latest output recorded for a stage
//   - [ApprovalRequest] - The single open decision point for an instance
//
// The engine performs no threading of its own; it serializes stage execution
// per project and rejects overlapping calls with [ErrConcurrentExecution].
package engine

import "context"

// Status describes where a workflow instance is in its lifecycle.
type Status string

// Valid workflow statuses.
const (
	// StatusIdle means no stage is running and no decision is pending.
	// Resumed instances start idle and require an explicit continue call.
	StatusIdle Status = "idle"

	// StatusRunning means a stage is in flight with the step executor.
	StatusRunning Status = "running"

	// StatusAwaitingApproval means a gated stage finished and its result is
	// waiting on a human decision.
	StatusAwaitingApproval Status = "awaiting_approval"

	// StatusCompleted means the final stage finished (and was approved, if
	// gated). Terminal.
	StatusCompleted Status = "completed"

	// StatusFailed means the step executor failed. Previously stored results
	// are preserved and the failed stage can be re-issued.
	StatusFailed Status = "failed"
)

// Deliverable is one named artifact produced by a stage. Content is opaque
// to the engine.
type Deliverable struct {
	Name    string `yaml:"name" json:"name"`
	Content string `yaml:"content" json:"content"`
}

// StageResult is the payload produced by the step executor for one stage.
//
// The result held for a stage is always the latest attempt: a re-run after
// rejection overwrites, it does not append.
type StageResult struct {
	// Stage is the 1-based pipeline position this result belongs to.
	Stage int `yaml:"stage" json:"stage"`

	// Deliverables are the named artifacts, in the order produced.
	Deliverables []Deliverable `yaml:"deliverables" json:"deliverables"`

	// RevisionNote holds the feedback that drove a re-run. Empty for a
	// first attempt.
	RevisionNote string `yaml:"revision_note,omitempty" json:"revision_note,omitempty"`
}

// ApprovalRequest is the single open decision point gating advancement past
// a stage. At most one exists per instance, and only while the instance
// status is [StatusAwaitingApproval].
type ApprovalRequest struct {
	// ProjectID identifies the instance under review.
	ProjectID string `json:"project_id"`

	// Stage is the position whose result is under review.
	Stage int `json:"stage"`

	// NextStage is Stage+1 when gating continues, or 0 when the gated stage
	// is the final one and approval completes the project.
	NextStage int `json:"next_stage"`
}

// DecisionKind is the caller's choice when resolving an approval request.
type DecisionKind string

// Valid decision kinds. Reject and request-revision are semantically
// identical to the engine (both re-run the same stage with feedback); they
// are distinguished only for display purposes upstream.
const (
	DecisionApprove         DecisionKind = "approve"
	DecisionReject          DecisionKind = "reject"
	DecisionRequestRevision DecisionKind = "request_revision"
)

// Decision resolves an [ApprovalRequest].
type Decision struct {
	Kind DecisionKind

	// Feedback is optional free text. For reject/request-revision it becomes
	// the revision note driving the re-run.
	Feedback string
}

// Instance is the full mutable state of one project's run through a
// pipeline. Instances are created by [Engine.Start] or [Engine.Resume] and
// mutated exclusively by engine transitions; values returned from engine
// methods are snapshots safe to retain.
type Instance struct {
	// ProjectID is the opaque unique identifier, assigned at creation.
	ProjectID string

	// Requirement is the original free-text goal, immutable after creation.
	Requirement string

	// Results maps stage position to the latest result for that stage.
	Results map[int]StageResult

	// CurrentStage is the stage in flight or about to run. It is derivable
	// from Results whenever nothing is in flight and no decision is pending:
	// max stored position + 1.
	CurrentStage int

	// Status is the instance's lifecycle state.
	Status Status

	// Approval is the open decision point, present only while Status is
	// [StatusAwaitingApproval].
	Approval *ApprovalRequest
}

// LatestResult returns the result for the highest stored stage position, or
// false when no stage has completed yet.
func (in *Instance) LatestResult() (StageResult, bool) {
	best := 0
	for stage := range in.Results {
		if stage > best {
			best = stage
		}
	}
	if best == 0 {
		return StageResult{}, false
	}
	return in.Results[best], true
}

// clone returns a deep copy of the instance so callers never share mutable
// state with the engine.
func (in *Instance) clone() *Instance {
	out := &Instance{
		ProjectID:    in.ProjectID,
		Requirement:  in.Requirement,
		Results:      make(map[int]StageResult, len(in.Results)),
		CurrentStage: in.CurrentStage,
		Status:       in.Status,
	}
	for stage, result := range in.Results {
		out.Results[stage] = result
	}
	if in.Approval != nil {
		approval := *in.Approval
		out.Approval = &approval
	}
	return out
}

// StepExecutor is the interface for the external collaborator that performs
// a stage's actual work (the AI invocation).
//
// ExecuteStage receives the stage position and the accumulated [Context] and
// returns the named deliverables, or an error with a human-readable message.
// Calls may block arbitrarily long; the engine places no timeout but honors
// cancellation through ctx. The backend package provides the production
// implementation.
type StepExecutor interface {
	ExecuteStage(ctx context.Context, stage int, sc Context) ([]Deliverable, error)
}

// ProjectStore is the interface for durable workflow state.
//
// Load returns the requirement and stored stage results for a project, or
// [ErrNotFound]. Save persists both; it must be idempotent and last-write-
// wins per stage key. The engine never deletes or lists projects.
type ProjectStore interface {
	Load(projectID string) (requirement string, results map[int]StageResult, err error)
	Save(projectID, requirement string, results map[int]StageResult) error
}

// Notifier is informed when an instance reaches completion. Delivery is
// fire-and-forget: errors never affect workflow state.
type Notifier interface {
	ProjectCompleted(projectID string, stage int, deliverables []Deliverable) error
}
