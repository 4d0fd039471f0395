package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentflow/internal/pipeline"
)

// fakeExecutor is an in-package step executor double. Without a hook it
// fabricates one deliverable per stage.
type fakeExecutor struct {
	mu        sync.Mutex
	calls     []fakeCall
	onExecute func(ctx context.Context, stage int, sc Context) ([]Deliverable, error)
}

type fakeCall struct {
	stage int
	sc    Context
}

func (f *fakeExecutor) ExecuteStage(ctx context.Context, stage int, sc Context) ([]Deliverable, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{stage: stage, sc: sc})
	f.mu.Unlock()

	if f.onExecute != nil {
		return f.onExecute(ctx, stage, sc)
	}
	return []Deliverable{{Name: fmt.Sprintf("stage-%d-output", stage), Content: "ok"}}, nil
}

func (f *fakeExecutor) recorded() []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]fakeCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// memStore is an in-memory project store.
type memStore struct {
	mu       sync.Mutex
	saved    map[string]savedProject
	failSave bool
}

type savedProject struct {
	requirement string
	results     map[int]StageResult
}

func newMemStore() *memStore {
	return &memStore{saved: make(map[string]savedProject)}
}

func (s *memStore) Load(projectID string) (string, map[int]StageResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.saved[projectID]
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrNotFound, projectID)
	}
	results := make(map[int]StageResult, len(rec.results))
	for stage, result := range rec.results {
		results[stage] = result
	}
	return rec.requirement, results, nil
}

func (s *memStore) Save(projectID, requirement string, results map[int]StageResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave {
		return errors.New("disk full")
	}
	copied := make(map[int]StageResult, len(results))
	for stage, result := range results {
		copied[stage] = result
	}
	s.saved[projectID] = savedProject{requirement: requirement, results: copied}
	return nil
}

// fakeNotifier records completion notifications.
type fakeNotifier struct {
	mu     sync.Mutex
	events []notifyEvent
	err    error
}

type notifyEvent struct {
	projectID string
	stage     int
}

func (n *fakeNotifier) ProjectCompleted(projectID string, stage int, deliverables []Deliverable) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notifyEvent{projectID: projectID, stage: stage})
	return n.err
}

func (n *fakeNotifier) recorded() []notifyEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notifyEvent, len(n.events))
	copy(out, n.events)
	return out
}

func setupDelivery(t *testing.T) (*Engine, *fakeExecutor, *memStore, *fakeNotifier) {
	t.Helper()
	exec := &fakeExecutor{}
	st := newMemStore()
	notifier := &fakeNotifier{}
	eng := New(pipeline.Delivery(), exec, st)
	eng.SetNotifier(notifier)
	return eng, exec, st, notifier
}

func TestStart_FirstStageAwaitsApproval(t *testing.T) {
	eng, exec, st, _ := setupDelivery(t)

	inst, err := eng.Start(context.Background(), "proj-1", "build a reading list app")
	require.NoError(t, err)

	assert.Equal(t, StatusAwaitingApproval, inst.Status)
	assert.Equal(t, 1, inst.CurrentStage)
	require.NotNil(t, inst.Approval)
	assert.Equal(t, 1, inst.Approval.Stage)
	assert.Equal(t, 2, inst.Approval.NextStage)

	require.Len(t, exec.recorded(), 1)
	assert.Equal(t, "build a reading list app", exec.recorded()[0].sc.Requirement)
	assert.Empty(t, exec.recorded()[0].sc.Prior)

	// Result is durably stored before the approval opens.
	_, results, err := st.Load("proj-1")
	require.NoError(t, err)
	assert.Contains(t, results, 1)
}

func TestStart_GeneratesProjectID(t *testing.T) {
	eng, _, _, _ := setupDelivery(t)

	inst, err := eng.Start(context.Background(), "", "some requirement")
	require.NoError(t, err)
	assert.NotEmpty(t, inst.ProjectID)
}

func TestStart_EmptyRequirementRejected(t *testing.T) {
	eng, exec, _, _ := setupDelivery(t)

	_, err := eng.Start(context.Background(), "proj-1", "")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Empty(t, exec.recorded())
}

func TestStart_RejectedWhileAwaitingApproval(t *testing.T) {
	eng, _, _, _ := setupDelivery(t)

	_, err := eng.Start(context.Background(), "proj-1", "requirement")
	require.NoError(t, err)

	_, err = eng.Start(context.Background(), "proj-1", "requirement again")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSequentialCompletion(t *testing.T) {
	eng, exec, _, notifier := setupDelivery(t)
	ctx := context.Background()

	inst, err := eng.Start(ctx, "proj-1", "requirement")
	require.NoError(t, err)

	for approval := 0; approval < 4; approval++ {
		require.Equal(t, StatusAwaitingApproval, inst.Status)
		inst, err = eng.Decide(ctx, "proj-1", Decision{Kind: DecisionApprove})
		require.NoError(t, err)
	}

	assert.Equal(t, StatusCompleted, inst.Status)
	assert.Equal(t, 6, inst.CurrentStage)
	assert.Len(t, inst.Results, 5)
	for stage := 1; stage <= 5; stage++ {
		assert.Contains(t, inst.Results, stage)
	}

	// Stage 5 saw all four prior results in position order.
	calls := exec.recorded()
	require.Len(t, calls, 5)
	last := calls[4]
	require.Len(t, last.sc.Prior, 4)
	for i, prior := range last.sc.Prior {
		assert.Equal(t, i+1, prior.Stage)
	}

	events := notifier.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, notifyEvent{projectID: "proj-1", stage: 5}, events[0])
}

func TestRevisionDoesNotAdvance(t *testing.T) {
	eng, exec, _, _ := setupDelivery(t)
	ctx := context.Background()

	_, err := eng.Start(ctx, "proj-1", "requirement")
	require.NoError(t, err)

	var inst *Instance
	for attempt := 0; attempt < 3; attempt++ {
		inst, err = eng.Decide(ctx, "proj-1", Decision{Kind: DecisionReject, Feedback: "x"})
		require.NoError(t, err)

		assert.Equal(t, 1, inst.CurrentStage)
		assert.Equal(t, StatusAwaitingApproval, inst.Status)
		assert.Len(t, inst.Results, 1, "rejection must overwrite, never append")
		assert.NotContains(t, inst.Results, 2)
		assert.Equal(t, "x", inst.Results[1].RevisionNote)
	}

	// Every re-run received the feedback for the current attempt.
	calls := exec.recorded()
	require.Len(t, calls, 4)
	for _, call := range calls[1:] {
		assert.Equal(t, 1, call.stage)
		assert.Equal(t, "x", call.sc.Feedback)
	}
}

func TestRequestRevisionBehavesLikeReject(t *testing.T) {
	eng, _, _, _ := setupDelivery(t)
	ctx := context.Background()

	_, err := eng.Start(ctx, "proj-1", "requirement")
	require.NoError(t, err)

	inst, err := eng.Decide(ctx, "proj-1", Decision{Kind: DecisionRequestRevision, Feedback: "tighten scope"})
	require.NoError(t, err)

	assert.Equal(t, 1, inst.CurrentStage)
	assert.Equal(t, "tighten scope", inst.Results[1].RevisionNote)
}

func TestMutualExclusion(t *testing.T) {
	eng, exec, _, _ := setupDelivery(t)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	exec.onExecute = func(ctx context.Context, stage int, sc Context) ([]Deliverable, error) {
		once.Do(func() { close(entered) })
		<-release
		return []Deliverable{{Name: "out"}}, nil
	}

	startDone := make(chan error, 1)
	go func() {
		_, err := eng.Start(ctx, "proj-1", "requirement")
		startDone <- err
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("executor never entered")
	}

	// A second stage start while one is in flight must be rejected, not queued.
	_, err := eng.RunStage(ctx, "proj-1", 1)
	assert.ErrorIs(t, err, ErrConcurrentExecution)
	_, err = eng.Start(ctx, "proj-1", "requirement")
	assert.ErrorIs(t, err, ErrConcurrentExecution)

	close(release)
	require.NoError(t, <-startDone)

	inst, err := eng.Instance("proj-1")
	require.NoError(t, err)
	assert.Len(t, inst.Results, 1)
	require.Len(t, exec.recorded(), 1, "exactly one execution for the contested stage")
}

func TestResumeCorrectness(t *testing.T) {
	eng, _, st, _ := setupDelivery(t)

	seed := map[int]StageResult{
		1: {Stage: 1, Deliverables: []Deliverable{{Name: "prd"}}},
		2: {Stage: 2, Deliverables: []Deliverable{{Name: "architecture"}}},
		3: {Stage: 3, Deliverables: []Deliverable{{Name: "plan"}}},
	}
	require.NoError(t, st.Save("proj-1", "requirement", seed))

	inst, err := eng.Resume("proj-1")
	require.NoError(t, err)

	assert.Equal(t, 4, inst.CurrentStage)
	assert.Equal(t, StatusIdle, inst.Status)
	assert.Nil(t, inst.Approval)
	assert.Len(t, inst.Results, 3)
}

func TestResumeAtCompletionBoundary(t *testing.T) {
	eng, _, st, _ := setupDelivery(t)

	seed := make(map[int]StageResult)
	for stage := 1; stage <= 5; stage++ {
		seed[stage] = StageResult{Stage: stage}
	}
	require.NoError(t, st.Save("proj-1", "requirement", seed))

	inst, err := eng.Resume("proj-1")
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, inst.Status)
	assert.Equal(t, 6, inst.CurrentStage)
}

func TestResume_UnknownProject(t *testing.T) {
	eng, _, _, _ := setupDelivery(t)

	_, err := eng.Resume("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResume_NeverAutoExecutes(t *testing.T) {
	eng, exec, st, _ := setupDelivery(t)

	require.NoError(t, st.Save("proj-1", "requirement", map[int]StageResult{1: {Stage: 1}}))

	_, err := eng.Resume("proj-1")
	require.NoError(t, err)
	assert.Empty(t, exec.recorded())
}

func TestFailurePreservesProgress(t *testing.T) {
	eng, exec, st, _ := setupDelivery(t)
	ctx := context.Background()

	seed := map[int]StageResult{
		1: {Stage: 1, Deliverables: []Deliverable{{Name: "prd", Content: "v1"}}},
		2: {Stage: 2, Deliverables: []Deliverable{{Name: "architecture", Content: "v1"}}},
	}
	require.NoError(t, st.Save("proj-1", "requirement", seed))

	_, err := eng.Resume("proj-1")
	require.NoError(t, err)

	exec.onExecute = func(ctx context.Context, stage int, sc Context) ([]Deliverable, error) {
		return nil, errors.New("model overloaded")
	}

	inst, err := eng.RunStage(ctx, "proj-1", 3)
	require.ErrorIs(t, err, ErrExecutorFailure)
	assert.Contains(t, err.Error(), "model overloaded")
	assert.Equal(t, StatusFailed, inst.Status)
	assert.Len(t, inst.Results, 2)

	// Durable state untouched too.
	_, stored, err := st.Load("proj-1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	// Re-issuing the same stage recovers without disturbing prior results.
	exec.onExecute = nil
	inst, err = eng.RunStage(ctx, "proj-1", 3)
	require.NoError(t, err)
	assert.Contains(t, inst.Results, 3)
	assert.Equal(t, "v1", inst.Results[1].Deliverables[0].Content)
	assert.Equal(t, "v1", inst.Results[2].Deliverables[0].Content)
	assert.Equal(t, StatusAwaitingApproval, inst.Status)
}

func TestDecideWithoutPendingRejected(t *testing.T) {
	eng, exec, st, _ := setupDelivery(t)
	ctx := context.Background()

	require.NoError(t, st.Save("proj-1", "requirement", map[int]StageResult{1: {Stage: 1}}))
	_, err := eng.Resume("proj-1")
	require.NoError(t, err)

	// Idle instance: nothing to approve.
	_, err = eng.Decide(ctx, "proj-1", Decision{Kind: DecisionApprove})
	assert.ErrorIs(t, err, ErrInvalidState)

	// Failed instance: still nothing to approve.
	exec.onExecute = func(ctx context.Context, stage int, sc Context) ([]Deliverable, error) {
		return nil, errors.New("boom")
	}
	_, err = eng.RunStage(ctx, "proj-1", 2)
	require.ErrorIs(t, err, ErrExecutorFailure)

	_, err = eng.Decide(ctx, "proj-1", Decision{Kind: DecisionApprove})
	assert.ErrorIs(t, err, ErrInvalidState)

	inst, err := eng.Instance("proj-1")
	require.NoError(t, err)
	assert.Len(t, inst.Results, 1, "a rejected decision must mutate nothing")
}

func TestDecide_UnknownProject(t *testing.T) {
	eng, _, _, _ := setupDelivery(t)

	_, err := eng.Decide(context.Background(), "missing", Decision{Kind: DecisionApprove})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDecide_UnknownKind(t *testing.T) {
	eng, _, _, _ := setupDelivery(t)
	ctx := context.Background()

	_, err := eng.Start(ctx, "proj-1", "requirement")
	require.NoError(t, err)

	_, err = eng.Decide(ctx, "proj-1", Decision{Kind: DecisionKind("maybe")})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRunStage_WrongStageRejected(t *testing.T) {
	eng, _, st, _ := setupDelivery(t)
	ctx := context.Background()

	require.NoError(t, st.Save("proj-1", "requirement", map[int]StageResult{
		1: {Stage: 1},
		2: {Stage: 2},
	}))
	_, err := eng.Resume("proj-1")
	require.NoError(t, err)

	_, err = eng.RunStage(ctx, "proj-1", 2)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = eng.RunStage(ctx, "proj-1", 5)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCrewPipeline_SinglePassThenOneGate(t *testing.T) {
	exec := &fakeExecutor{}
	st := newMemStore()
	notifier := &fakeNotifier{}
	eng := New(pipeline.Crew(), exec, st)
	eng.SetNotifier(notifier)
	ctx := context.Background()

	inst, err := eng.Start(ctx, "proj-1", "plan a product launch")
	require.NoError(t, err)

	// Research and drafting flow straight through; only the plan gates.
	calls := exec.recorded()
	require.Len(t, calls, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{calls[0].stage, calls[1].stage, calls[2].stage})

	assert.Equal(t, StatusAwaitingApproval, inst.Status)
	require.NotNil(t, inst.Approval)
	assert.Equal(t, 3, inst.Approval.Stage)
	assert.Equal(t, 0, inst.Approval.NextStage, "final gate has no next stage")

	// Approving the final gate completes the project without another run.
	inst, err = eng.Decide(ctx, "proj-1", Decision{Kind: DecisionApprove})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, inst.Status)
	assert.Len(t, exec.recorded(), 3)

	events := notifier.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, 3, events[0].stage)
}

func TestCrewPipeline_RejectFinalGateRerunsSameStage(t *testing.T) {
	exec := &fakeExecutor{}
	eng := New(pipeline.Crew(), exec, newMemStore())
	ctx := context.Background()

	_, err := eng.Start(ctx, "proj-1", "plan a product launch")
	require.NoError(t, err)

	inst, err := eng.Decide(ctx, "proj-1", Decision{Kind: DecisionReject, Feedback: "more detail"})
	require.NoError(t, err)

	calls := exec.recorded()
	require.Len(t, calls, 4)
	assert.Equal(t, 3, calls[3].stage, "rejection re-runs the current stage, not a previous one")
	assert.Equal(t, "more detail", calls[3].sc.Feedback)
	assert.Equal(t, StatusAwaitingApproval, inst.Status)
	assert.Equal(t, 3, inst.CurrentStage)
}

func TestCancellationLeavesResultsUntouched(t *testing.T) {
	eng, exec, st, _ := setupDelivery(t)

	exec.onExecute = func(ctx context.Context, stage int, sc Context) ([]Deliverable, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	startDone := make(chan error, 1)
	go func() {
		_, err := eng.Start(ctx, "proj-1", "requirement")
		startDone <- err
	}()

	cancel()
	err := <-startDone
	require.ErrorIs(t, err, ErrExecutorFailure)

	inst, err := eng.Instance("proj-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, inst.Status)
	assert.Empty(t, inst.Results, "cancellation is never partial-committing")

	_, _, err = st.Load("proj-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveFailureRollsBackResult(t *testing.T) {
	eng, _, st, _ := setupDelivery(t)
	st.failSave = true

	_, err := eng.Start(context.Background(), "proj-1", "requirement")
	require.ErrorIs(t, err, ErrExecutorFailure)

	inst, err := eng.Instance("proj-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, inst.Status)
	assert.Empty(t, inst.Results, "in-memory state must never get ahead of the store")
}

func TestNotifierFailureDoesNotAffectState(t *testing.T) {
	exec := &fakeExecutor{}
	eng := New(pipeline.Crew(), exec, newMemStore())
	notifier := &fakeNotifier{err: errors.New("broker down")}
	eng.SetNotifier(notifier)
	ctx := context.Background()

	_, err := eng.Start(ctx, "proj-1", "requirement")
	require.NoError(t, err)

	inst, err := eng.Decide(ctx, "proj-1", Decision{Kind: DecisionApprove})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, inst.Status)
}

func TestSnapshotsAreIndependent(t *testing.T) {
	eng, _, _, _ := setupDelivery(t)
	ctx := context.Background()

	inst, err := eng.Start(ctx, "proj-1", "requirement")
	require.NoError(t, err)

	// Mutating a returned snapshot must not leak into engine state.
	inst.Results[99] = StageResult{Stage: 99}
	inst.Approval.Stage = 42

	fresh, err := eng.Instance("proj-1")
	require.NoError(t, err)
	assert.NotContains(t, fresh.Results, 99)
	assert.Equal(t, 1, fresh.Approval.Stage)
}
