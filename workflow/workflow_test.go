package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langswarm/langswarm/core"
)

func TestBuilder_Build(t *testing.T) {
	wf, err := NewBuilder("research_and_summarize").
		Name("Research and summarize").
		Step("", "researcher").
		Step("summary", "summarizer").
		Build()
	require.NoError(t, err)

	assert.Equal(t, "research_and_summarize", wf.ID())
	assert.Equal(t, "Research and summarize", wf.Name())
	assert.Equal(t, ModeSync, wf.Mode())
	assert.Equal(t, 2, wf.Len())

	steps := wf.Steps()
	assert.Equal(t, "researcher", steps[0].Name)
	assert.Equal(t, "summary", steps[1].Name)
	assert.Equal(t, []string{"researcher", "summarizer"}, wf.AgentIDs())

	_, ok := wf.AggregateStep()
	assert.False(t, ok)
}

func TestBuilder_StepsAreImmutable(t *testing.T) {
	b := NewBuilder("wf").Step("a", "agent-a")
	wf, err := b.Build()
	require.NoError(t, err)

	b.Step("b", "agent-b")
	steps := wf.Steps()
	steps[0].AgentID = "mutated"

	assert.Equal(t, 1, wf.Len())
	assert.Equal(t, "agent-a", wf.Steps()[0].AgentID)
}

func TestBuilder_DefaultName(t *testing.T) {
	wf, err := NewBuilder("wf").Step("a", "x").Build()
	require.NoError(t, err)
	assert.Equal(t, "wf", wf.Name())
}

func TestBuilder_Aggregate(t *testing.T) {
	wf, err := NewBuilder("wf").
		Mode(ModeParallel).
		Step("a", "x").
		Step("b", "y").
		Aggregate("merge", "z", "Merge: {{.Outputs.a}} / {{.Outputs.b}}").
		Build()
	require.NoError(t, err)

	agg, ok := wf.AggregateStep()
	require.True(t, ok)
	assert.Equal(t, "merge", agg.Name)
	assert.Equal(t, ModeParallel, wf.Mode())
}

func TestBuilder_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		builder *Builder
		field   string
	}{
		{"missing id", NewBuilder(" ").Step("a", "x"), "workflow.id"},
		{"no steps", NewBuilder("wf"), "workflow.steps"},
		{"missing agent", NewBuilder("wf").Step("a", ""), "workflow.steps[0]"},
		{"duplicate name", NewBuilder("wf").Step("a", "x").Step("a", "y"), "workflow.steps[1]"},
		{"aggregate not last", NewBuilder("wf").Aggregate("m", "x", "").Step("a", "y"), "workflow.steps[0]"},
		{"bad template", NewBuilder("wf").TemplateStep("a", "x", "{{.Input"), "workflow.steps[0]"},
		{"bad mode", NewBuilder("wf").Mode("fanout").Step("a", "x"), "workflow.mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf, err := tt.builder.Build()
			assert.Nil(t, wf)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrConfig)

			var cfgErr *core.ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestParseExecutionMode(t *testing.T) {
	m, err := ParseExecutionMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeSync, m)

	m, err = ParseExecutionMode(" Parallel ")
	require.NoError(t, err)
	assert.Equal(t, ModeParallel, m)

	_, err = ParseExecutionMode("async")
	assert.ErrorIs(t, err, core.ErrConfig)
}

func TestStep_RenderInput(t *testing.T) {
	data := TemplateData{
		Input:    "renewables?",
		Previous: "research notes",
		Outputs:  map[string]string{"research": "research notes", "critique": "weak sources"},
		Results: []StepResult{
			{StepName: "research", Output: "research notes", Status: StatusCompleted},
			{StepName: "critique", Output: "weak sources", Status: StatusCompleted},
		},
	}

	t.Run("regular step gets previous output", func(t *testing.T) {
		out, err := Step{Name: "s"}.RenderInput(data)
		require.NoError(t, err)
		assert.Equal(t, "research notes", out)
	})

	t.Run("template", func(t *testing.T) {
		s := Step{Name: "s", InputTemplate: "Q: {{.Input}}\nNotes: {{.Outputs.research | upper}}"}
		out, err := s.RenderInput(data)
		require.NoError(t, err)
		assert.Equal(t, "Q: renewables?\nNotes: RESEARCH NOTES", out)
	})

	t.Run("aggregate default joins outputs", func(t *testing.T) {
		out, err := Step{Name: "merge", Aggregate: true}.RenderInput(data)
		require.NoError(t, err)
		assert.Equal(t, "[research]\nresearch notes\n\n[critique]\nweak sources", out)
	})

	t.Run("aggregate without outputs falls back to input", func(t *testing.T) {
		out, err := Step{Name: "merge", Aggregate: true}.RenderInput(TemplateData{Input: "raw"})
		require.NoError(t, err)
		assert.Equal(t, "raw", out)
	})
}

func TestResult_Fail(t *testing.T) {
	first := errors.New("first")
	r := &Result{Status: StatusRunning}

	r.Fail("a", first)
	r.Fail("b", errors.New("second"))

	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, "a", r.FailedStep)
	assert.Equal(t, first, r.Err)
	assert.Equal(t, "first", r.Error)
	assert.False(t, r.Succeeded())
}

func TestResult_Outputs(t *testing.T) {
	r := &Result{StepResults: []StepResult{
		{StepName: "a", Output: "x", Status: StatusCompleted},
		{StepName: "b", Status: StatusFailed},
		{StepName: "c", Status: StatusSkipped},
	}}

	assert.Equal(t, map[string]string{"a": "x"}, r.Outputs())

	sr, ok := r.Step("b")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, sr.Status)
	assert.True(t, StatusSkipped.Terminal())
	assert.False(t, StatusRunning.Terminal())
}
