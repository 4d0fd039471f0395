// Package backend provides the HTTP step executor that asks the external
// agent service to run one pipeline stage.
//
// The backend service owns the actual AI invocation; this package only
// speaks its REST contract. The role responsible for a stage and the model
// serving that role are resolved here, once per client, so model selection
// is explicit configuration rather than ambient mutable state.
//
// Key types:
//   - [Client]: Production [engine.StepExecutor] over HTTP
//   - [MockExecutor]: Test double that records calls without a network
package backend

import "agentflow/internal/engine"

// stepRequest is the wire payload for one stage invocation.
type stepRequest struct {
	Stage       int          `json:"stage"`
	Role        string       `json:"role"`
	Model       string       `json:"model"`
	Requirement string       `json:"requirement"`
	PriorStages []priorStage `json:"prior_stages,omitempty"`
	Feedback    string       `json:"feedback,omitempty"`
	Expected    []string     `json:"expected_deliverables,omitempty"`
}

// priorStage carries a completed stage's output to the backend.
type priorStage struct {
	Stage        int                  `json:"stage"`
	Deliverables []engine.Deliverable `json:"deliverables"`
	RevisionNote string               `json:"revision_note,omitempty"`
}

// stepResponse is the backend's reply for one stage invocation.
type stepResponse struct {
	Success      bool                 `json:"success"`
	Deliverables []engine.Deliverable `json:"deliverables,omitempty"`
	Error        string               `json:"error,omitempty"`
}
