// Package gateway adapts the workflow engine for fire-and-poll consumers.
//
// The engine's own operations block for the duration of a stage pass. UI
// shapes that cannot block start stages through the gateway instead: the
// call returns a [Handle] immediately, the pass runs in the background, and
// the open approval request becomes discoverable through
// [Gateway.ListPending] once its stage result is durably stored.
//
// Polling is level-triggered: a pending request stays listed until it is
// resolved. [Gateway.Resolve] behaves identically to [engine.Engine.Decide];
// both consumption styles converge to the same instance state after
// equivalent call sequences.
package gateway

import (
	"context"
	"sort"

	"agentflow/internal/engine"
)

// Handle tracks a stage pass running in the background.
type Handle struct {
	done     chan struct{}
	instance *engine.Instance
	err      error
}

// Done returns a channel closed when the background pass settles.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result blocks until the pass settles and returns its outcome: the
// instance snapshot and any error, exactly as the underlying engine call
// would have returned them.
func (h *Handle) Result() (*engine.Instance, error) {
	<-h.done
	return h.instance, h.err
}

// Gateway exposes the engine's approval decision points to polling
// consumers and runs stage passes without blocking the caller.
type Gateway struct {
	engine *engine.Engine
}

// New creates a [Gateway] over the given engine.
func New(eng *engine.Engine) *Gateway {
	return &Gateway{engine: eng}
}

// StartAsync begins a new project in the background. See
// [engine.Engine.Start] for semantics and failure kinds.
func (g *Gateway) StartAsync(ctx context.Context, projectID, requirement string) *Handle {
	return g.spawn(func() (*engine.Instance, error) {
		return g.engine.Start(ctx, projectID, requirement)
	})
}

// RunStageAsync continues a resumed or failed project in the background.
// See [engine.Engine.RunStage] for semantics and failure kinds.
func (g *Gateway) RunStageAsync(ctx context.Context, projectID string, stage int) *Handle {
	return g.spawn(func() (*engine.Instance, error) {
		return g.engine.RunStage(ctx, projectID, stage)
	})
}

// Resolve applies a decision to a project's open approval request. It is
// the polled-style counterpart of [engine.Engine.Decide] and behaves
// identically, including blocking through any follow-on stage run.
func (g *Gateway) Resolve(ctx context.Context, projectID string, decision engine.Decision) (*engine.Instance, error) {
	return g.engine.Decide(ctx, projectID, decision)
}

// ResolveAsync applies a decision in the background, returning immediately
// while an approved next stage (or rejected re-run) executes.
func (g *Gateway) ResolveAsync(ctx context.Context, projectID string, decision engine.Decision) *Handle {
	return g.spawn(func() (*engine.Instance, error) {
		return g.engine.Decide(ctx, projectID, decision)
	})
}

// ListPending returns the open approval requests, ordered by project id
// for stable output. A request only appears once its stage result has been
// durably stored, and remains listed until resolved.
func (g *Gateway) ListPending() []engine.ApprovalRequest {
	pending := g.engine.Pending()
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].ProjectID < pending[j].ProjectID
	})
	return pending
}

func (g *Gateway) spawn(call func() (*engine.Instance, error)) *Handle {
	h := &Handle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.instance, h.err = call()
	}()
	return h
}
