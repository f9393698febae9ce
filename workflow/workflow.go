package workflow

import (
	"fmt"
	"slices"
	"strings"

	"github.com/langswarm/langswarm/core"
)

// ExecutionMode selects how the engine schedules a workflow's steps.
type ExecutionMode string

const (
	// ModeSync runs steps one after another, feeding each output into the
	// next step's input.
	ModeSync ExecutionMode = "sync"
	// ModeParallel runs every non-aggregate step concurrently over the same
	// input. The aggregate step, if any, runs last over all outputs.
	ModeParallel ExecutionMode = "parallel"
)

// ParseExecutionMode resolves a case-insensitive mode name. Empty means
// ModeSync.
func ParseExecutionMode(s string) (ExecutionMode, error) {
	switch ExecutionMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeSync:
		return ModeSync, nil
	case ModeParallel:
		return ModeParallel, nil
	}
	return "", &core.ConfigError{Field: "mode", Message: fmt.Sprintf("unknown execution mode %q", s)}
}

// Step is one agent invocation in a workflow.
type Step struct {
	Name    string `json:"name"`
	AgentID string `json:"agent_id"`
	// Aggregate marks the final step that synthesizes the outputs of all
	// prior successful steps. It runs even when an earlier step failed.
	Aggregate bool `json:"aggregate,omitempty"`
	// InputTemplate renders the step input as text/template over
	// TemplateData. Empty uses the default input (see RenderInput).
	InputTemplate string `json:"input_template,omitempty"`
}

// Workflow is an immutable ordered chain of agent steps. Construct it with a
// Builder.
type Workflow struct {
	id          string
	name        string
	description string
	mode        ExecutionMode
	steps       []Step
}

// ID returns the workflow identifier.
func (w *Workflow) ID() string { return w.id }

// Name returns the display name, defaulting to the id.
func (w *Workflow) Name() string { return w.name }

// Description returns the optional description.
func (w *Workflow) Description() string { return w.description }

// Mode returns the workflow's preferred execution mode.
func (w *Workflow) Mode() ExecutionMode { return w.mode }

// Steps returns a copy of the steps in declaration order.
func (w *Workflow) Steps() []Step { return slices.Clone(w.steps) }

// Len returns the number of steps.
func (w *Workflow) Len() int { return len(w.steps) }

// AgentIDs returns the distinct agent ids referenced by the workflow in
// first-use order.
func (w *Workflow) AgentIDs() []string {
	seen := make(map[string]bool, len(w.steps))
	ids := make([]string, 0, len(w.steps))
	for _, s := range w.steps {
		if !seen[s.AgentID] {
			seen[s.AgentID] = true
			ids = append(ids, s.AgentID)
		}
	}
	return ids
}

// AggregateStep returns the aggregation step if the workflow declares one.
func (w *Workflow) AggregateStep() (Step, bool) {
	if n := len(w.steps); n > 0 && w.steps[n-1].Aggregate {
		return w.steps[n-1], true
	}
	return Step{}, false
}
