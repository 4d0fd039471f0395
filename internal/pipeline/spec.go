// Package pipeline defines the static stage sequences that agentflow projects
// run through.
//
// A [Spec] is an ordered list of stages, each owned by a responsible role and
// producing a set of named deliverables. Stages are numbered contiguously from
// 1 and may be gated: a gated stage requires a human approval decision before
// the project advances past it.
//
// Key types:
//   - [Spec] - A complete pipeline definition with validation
//   - [Stage] - A single position in the sequence
//
// Built-in specs [Delivery] and [Crew] cover the two standard pipeline shapes.
// Custom pipelines can be loaded from a YAML manifest with [ReadFromFile].
package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel errors for spec validation and lookup.
var (
	// ErrUnknownStage is a sentinel error indicating a stage position outside
	// the spec's 1..N range was requested.
	ErrUnknownStage = errors.New("unknown stage position")

	// ErrInvalidSpec is a sentinel error indicating the spec failed validation.
	// The wrapped message describes the specific violation.
	ErrInvalidSpec = errors.New("invalid pipeline spec")
)

// Stage represents a single position in a pipeline sequence.
type Stage struct {
	// Position is the 1-based position of this stage. Positions in a spec
	// are contiguous, starting at 1.
	Position int `yaml:"position"`

	// Name is a short human-readable identifier for the stage
	// (e.g., "system-design").
	Name string `yaml:"name"`

	// Role is the identifier of the responsible role
	// (e.g., "architect"). Must correspond to a key in the models
	// configuration when the HTTP backend executes the stage.
	Role string `yaml:"role"`

	// Deliverables lists the named artifacts this stage is expected to
	// produce. Content is opaque to the engine.
	Deliverables []string `yaml:"deliverables"`

	// Gated marks whether a human approval decision is required before the
	// project advances past this stage. An ungated non-final stage flows
	// directly into the next one within the same pass.
	Gated bool `yaml:"gated"`
}

// Spec is a complete pipeline definition: an ordered, validated list of
// stages. A Spec is process-wide configuration and is never mutated at
// runtime.
type Spec struct {
	// Name identifies the pipeline (e.g., "delivery", "crew").
	Name string `yaml:"name"`

	// Stages holds the stage sequence in position order.
	Stages []Stage `yaml:"stages"`
}

// Len returns the number of stages N in the spec.
func (s *Spec) Len() int {
	return len(s.Stages)
}

// Stage returns the stage at the given 1-based position.
//
// Returns [ErrUnknownStage] if the position is outside 1..N.
func (s *Spec) Stage(position int) (Stage, error) {
	if position < 1 || position > len(s.Stages) {
		return Stage{}, fmt.Errorf("%w: %d (pipeline %q has %d stages)", ErrUnknownStage, position, s.Name, len(s.Stages))
	}
	return s.Stages[position-1], nil
}

// Gated reports whether the stage at the given position requires an approval
// decision. Positions outside 1..N report false.
func (s *Spec) Gated(position int) bool {
	if position < 1 || position > len(s.Stages) {
		return false
	}
	return s.Stages[position-1].Gated
}

// Validate checks the structural invariants of the spec: at least one stage,
// positions contiguous starting at 1, and a non-empty role on every stage.
//
// Returns an error wrapping [ErrInvalidSpec] describing the first violation.
func (s *Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: missing pipeline name", ErrInvalidSpec)
	}
	if len(s.Stages) == 0 {
		return fmt.Errorf("%w: pipeline %q has no stages", ErrInvalidSpec, s.Name)
	}
	for i, stage := range s.Stages {
		if stage.Position != i+1 {
			return fmt.Errorf("%w: pipeline %q stage at index %d has position %d, want %d",
				ErrInvalidSpec, s.Name, i, stage.Position, i+1)
		}
		if stage.Role == "" {
			return fmt.Errorf("%w: pipeline %q stage %d has no role", ErrInvalidSpec, s.Name, stage.Position)
		}
	}
	return nil
}

// Roles returns the distinct role identifiers used by the spec, in first-use
// order. Useful for validating a role→model mapping up front.
func (s *Spec) Roles() []string {
	seen := make(map[string]bool, len(s.Stages))
	var roles []string
	for _, stage := range s.Stages {
		if !seen[stage.Role] {
			seen[stage.Role] = true
			roles = append(roles, stage.Role)
		}
	}
	return roles
}
