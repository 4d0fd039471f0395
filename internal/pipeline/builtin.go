package pipeline

// Delivery returns the built-in five-stage delivery pipeline.
//
// Each stage is owned by a distinct role and gated behind an approval
// decision, except the final quality-assurance stage which completes the
// project directly once it succeeds.
func Delivery() *Spec {
	return &Spec{
		Name: "delivery",
		Stages: []Stage{
			{
				Position:     1,
				Name:         "requirements-analysis",
				Role:         "product-manager",
				Deliverables: []string{"Product Requirements Document", "User Stories", "Success Metrics"},
				Gated:        true,
			},
			{
				Position:     2,
				Name:         "system-design",
				Role:         "architect",
				Deliverables: []string{"System Architecture", "API Specification", "Data Models"},
				Gated:        true,
			},
			{
				Position:     3,
				Name:         "project-planning",
				Role:         "project-manager",
				Deliverables: []string{"Project Plan", "Task Breakdown", "Timeline"},
				Gated:        true,
			},
			{
				Position:     4,
				Name:         "implementation",
				Role:         "engineer",
				Deliverables: []string{"Source Code", "Implementation", "Documentation"},
				Gated:        true,
			},
			{
				Position:     5,
				Name:         "quality-assurance",
				Role:         "qa-engineer",
				Deliverables: []string{"Test Cases", "Quality Report", "Bug Reports"},
				Gated:        false,
			},
		},
	}
}

// Crew returns the built-in three-stage crew pipeline.
//
// The research and drafting stages are ungated and run as one cooperative
// pass; only the final plan is gated behind an approval decision. This is
// the shape consumed in fire-and-poll style through the gateway.
func Crew() *Spec {
	return &Spec{
		Name: "crew",
		Stages: []Stage{
			{
				Position:     1,
				Name:         "research",
				Role:         "researcher",
				Deliverables: []string{"Research Findings", "Source Summary"},
				Gated:        false,
			},
			{
				Position:     2,
				Name:         "drafting",
				Role:         "writer",
				Deliverables: []string{"Draft Document"},
				Gated:        false,
			},
			{
				Position:     3,
				Name:         "planning",
				Role:         "planner",
				Deliverables: []string{"Execution Plan", "Task List"},
				Gated:        true,
			},
		},
	}
}

// Builtin returns the built-in spec with the given name, or nil if the name
// is not a built-in pipeline.
func Builtin(name string) *Spec {
	switch name {
	case "delivery":
		return Delivery()
	case "crew":
		return Crew()
	default:
		return nil
	}
}
