package engine

import "sort"

// Context is the ordered input handed to the step executor for one stage
// attempt: the original requirement, every completed prior-stage result in
// position order, and the revision feedback for the current attempt (kept
// separate from prior deliverables because it applies to the attempt being
// made, not to a completed stage).
type Context struct {
	// Requirement is the project's original free-text goal.
	Requirement string

	// Prior holds the results of all stages before the one being run,
	// ascending by position.
	Prior []StageResult

	// Feedback is the revision note for the current attempt. Empty on a
	// first attempt.
	Feedback string
}

// BuildContext assembles the executor context for running the given stage.
//
// Only results at positions strictly below stage are included; the stage's
// own previous attempt (if any) is deliberately omitted since the re-run
// replaces it. BuildContext is a pure function with no side effects.
func BuildContext(requirement string, results map[int]StageResult, stage int, feedback string) Context {
	positions := make([]int, 0, len(results))
	for position := range results {
		if position < stage {
			positions = append(positions, position)
		}
	}
	sort.Ints(positions)

	prior := make([]StageResult, 0, len(positions))
	for _, position := range positions {
		prior = append(prior, results[position])
	}

	return Context{
		Requirement: requirement,
		Prior:       prior,
		Feedback:    feedback,
	}
}
