package backend

import (
	"context"
	"fmt"
	"sync"

	"agentflow/internal/engine"
)

// RecordedCall captures one ExecuteStage invocation made against a
// [MockExecutor].
type RecordedCall struct {
	Stage   int
	Context engine.Context
}

// MockExecutor implements [engine.StepExecutor] without contacting a
// backend. It records every call and fabricates one deliverable per stage,
// or fails on a configured stage.
//
// MockExecutor is safe for concurrent use.
type MockExecutor struct {
	// DeliverablesByStage overrides the fabricated output for specific
	// stages.
	DeliverablesByStage map[int][]engine.Deliverable

	// FailOnStage makes that stage return Err (or a generic error when Err
	// is nil). Zero disables failure injection.
	FailOnStage int

	// Err is the error returned for FailOnStage.
	Err error

	mu       sync.Mutex
	recorded []RecordedCall
}

// ExecuteStage records the call and returns the configured or fabricated
// deliverables.
func (m *MockExecutor) ExecuteStage(ctx context.Context, stage int, sc engine.Context) ([]engine.Deliverable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.recorded = append(m.recorded, RecordedCall{Stage: stage, Context: sc})
	m.mu.Unlock()

	if m.FailOnStage == stage {
		if m.Err != nil {
			return nil, m.Err
		}
		return nil, fmt.Errorf("mock failure at stage %d", stage)
	}

	if deliverables, ok := m.DeliverablesByStage[stage]; ok {
		return deliverables, nil
	}
	return []engine.Deliverable{
		{Name: fmt.Sprintf("stage-%d-output", stage), Content: fmt.Sprintf("generated output for stage %d", stage)},
	}, nil
}

// Recorded returns a copy of all calls made so far.
func (m *MockExecutor) Recorded() []RecordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RecordedCall, len(m.recorded))
	copy(out, m.recorded)
	return out
}
