package workflow

import (
	"fmt"
	"strings"

	"github.com/langswarm/langswarm/core"
	"github.com/langswarm/langswarm/internal/util"
)

// Builder assembles a Workflow. Methods are chainable; validation happens in
// Build.
//
//	wf, err := workflow.NewBuilder("research_and_summarize").
//		Step("research", "researcher").
//		Step("summary", "summarizer").
//		Build()
type Builder struct {
	id          string
	name        string
	description string
	mode        ExecutionMode
	steps       []Step
}

// NewBuilder starts a workflow with the given id.
func NewBuilder(id string) *Builder {
	return &Builder{id: id, mode: ModeSync}
}

// Name sets the display name.
func (b *Builder) Name(name string) *Builder {
	b.name = name
	return b
}

// Description sets the description.
func (b *Builder) Description(desc string) *Builder {
	b.description = desc
	return b
}

// Mode sets the preferred execution mode.
func (b *Builder) Mode(mode ExecutionMode) *Builder {
	b.mode = mode
	return b
}

// Step appends a regular step. An empty name defaults to the agent id.
func (b *Builder) Step(name, agentID string) *Builder {
	return b.AddStep(Step{Name: name, AgentID: agentID})
}

// TemplateStep appends a regular step whose input is rendered from tmpl.
func (b *Builder) TemplateStep(name, agentID, tmpl string) *Builder {
	return b.AddStep(Step{Name: name, AgentID: agentID, InputTemplate: tmpl})
}

// Aggregate appends the aggregation step. It must be the last step.
func (b *Builder) Aggregate(name, agentID, tmpl string) *Builder {
	return b.AddStep(Step{Name: name, AgentID: agentID, Aggregate: true, InputTemplate: tmpl})
}

// AddStep appends s as given.
func (b *Builder) AddStep(s Step) *Builder {
	s.AgentID = strings.TrimSpace(s.AgentID)
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		s.Name = s.AgentID
	}
	b.steps = append(b.steps, s)
	return b
}

// Build validates and returns the immutable workflow.
func (b *Builder) Build() (*Workflow, error) {
	id := strings.TrimSpace(b.id)
	if id == "" {
		return nil, &core.ConfigError{Field: "workflow.id", Message: "workflow id is required"}
	}
	if len(b.steps) == 0 {
		return nil, &core.ConfigError{Field: "workflow.steps", Message: fmt.Sprintf("workflow %s has no steps", id)}
	}
	if b.mode != ModeSync && b.mode != ModeParallel {
		return nil, &core.ConfigError{Field: "workflow.mode", Message: fmt.Sprintf("unknown execution mode %q", b.mode)}
	}

	names := make(map[string]bool, len(b.steps))
	for i, s := range b.steps {
		field := fmt.Sprintf("workflow.steps[%d]", i)
		if s.AgentID == "" {
			return nil, &core.ConfigError{Field: field, Message: "agent id is required"}
		}
		if names[s.Name] {
			return nil, &core.ConfigError{Field: field, Message: fmt.Sprintf("duplicate step name %q", s.Name)}
		}
		names[s.Name] = true
		if s.Aggregate && i != len(b.steps)-1 {
			return nil, &core.ConfigError{Field: field, Message: "aggregate step must be the last step"}
		}
		if s.InputTemplate != "" {
			if err := util.ValidateTemplate(s.InputTemplate); err != nil {
				return nil, &core.ConfigError{Field: field, Message: fmt.Sprintf("invalid input template: %v", err)}
			}
		}
	}

	name := b.name
	if name == "" {
		name = id
	}

	steps := make([]Step, len(b.steps))
	copy(steps, b.steps)

	return &Workflow{
		id:          id,
		name:        name,
		description: b.description,
		mode:        b.mode,
		steps:       steps,
	}, nil
}
