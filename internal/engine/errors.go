package engine

import "errors"

// Sentinel errors for workflow operations. Callers distinguish failure kinds
// with [errors.Is] rather than by inspecting message text.
var (
	// ErrInvalidState is a sentinel error indicating an operation is not legal
	// for the instance's current status, e.g. a decision arriving when nothing
	// is pending, or a start on an already-running project. These are caller
	// bugs and are always surfaced, never silently ignored.
	ErrInvalidState = errors.New("operation not valid in current workflow state")

	// ErrConcurrentExecution is a sentinel error indicating a stage start was
	// attempted while another stage is in flight for the same project. The
	// engine never queues: callers must retry after the in-flight stage
	// settles.
	ErrConcurrentExecution = errors.New("a stage is already in flight for this project")

	// ErrNotFound is a sentinel error indicating the referenced project is
	// unknown to both the engine and the project store.
	ErrNotFound = errors.New("project not found")

	// ErrExecutorFailure is a sentinel error indicating the step executor
	// failed to produce a stage result. The instance moves to failed status
	// with all previously stored results preserved; re-issuing the same stage
	// recovers.
	ErrExecutorFailure = errors.New("stage execution failed")
)
