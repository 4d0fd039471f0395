package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"agentflow/internal/engine"
	"agentflow/internal/pipeline"
)

// DefaultTimeout bounds a single stage invocation. AI generation is slow;
// callers with longer stages should raise this through [ClientOptions].
const DefaultTimeout = 10 * time.Minute

// stepPath is the backend endpoint that runs one pipeline stage.
const stepPath = "/api/step"

// ClientOptions configures a [Client].
type ClientOptions struct {
	// BaseURL is the backend service root (e.g., "http://localhost:5000").
	BaseURL string

	// Models maps role identifiers to the model that serves them. Resolved
	// once at construction; stages whose role has no entry fall back to
	// DefaultModel.
	Models map[string]string

	// DefaultModel serves roles absent from Models. Optional.
	DefaultModel string

	// Timeout bounds one stage invocation. Zero means [DefaultTimeout].
	Timeout time.Duration
}

// Client invokes the external agent backend over HTTP to execute pipeline
// stages. It implements [engine.StepExecutor].
//
// Use [NewClient] to create one. The client is safe for concurrent use.
type Client struct {
	spec         *pipeline.Spec
	baseURL      string
	models       map[string]string
	defaultModel string
	httpClient   *http.Client
}

// NewClient creates a [Client] for the given pipeline spec.
//
// The spec supplies each stage's responsible role and expected deliverable
// names; opts supplies the backend address and the role→model mapping.
func NewClient(spec *pipeline.Spec, opts ClientOptions) *Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	models := make(map[string]string, len(opts.Models))
	for role, model := range opts.Models {
		models[role] = model
	}
	return &Client{
		spec:         spec,
		baseURL:      opts.BaseURL,
		models:       models,
		defaultModel: opts.DefaultModel,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// ExecuteStage asks the backend to run one stage with the accumulated
// context and returns the named deliverables it produced.
//
// The error message of a failed invocation is the backend's own, surfaced
// verbatim; the engine wraps it with its failure kind.
func (c *Client) ExecuteStage(ctx context.Context, stage int, sc engine.Context) ([]engine.Deliverable, error) {
	stageSpec, err := c.spec.Stage(stage)
	if err != nil {
		return nil, err
	}

	model := c.models[stageSpec.Role]
	if model == "" {
		model = c.defaultModel
	}

	req := stepRequest{
		Stage:       stage,
		Role:        stageSpec.Role,
		Model:       model,
		Requirement: sc.Requirement,
		Feedback:    sc.Feedback,
		Expected:    stageSpec.Deliverables,
	}
	for _, prior := range sc.Prior {
		req.PriorStages = append(req.PriorStages, priorStage{
			Stage:        prior.Stage,
			Deliverables: prior.Deliverables,
			RevisionNote: prior.RevisionNote,
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode step request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+stepPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build step request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("backend request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read backend response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend returned %s: %s", httpResp.Status, truncate(string(respBody), 200))
	}

	var resp stepResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse backend response: %w", err)
	}
	if !resp.Success {
		if resp.Error == "" {
			resp.Error = "backend reported failure without a message"
		}
		return nil, fmt.Errorf("stage %d (%s): %s", stage, stageSpec.Role, resp.Error)
	}
	return resp.Deliverables, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
