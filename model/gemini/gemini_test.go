package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/langswarm/langswarm/core"
	"github.com/langswarm/langswarm/model"
)

func TestBuildContents(t *testing.T) {
	call := core.ToolCall{ID: "c1", Function: core.ToolCallFunction{Name: "search", Arguments: `{"q":"go"}`}}
	contents := buildContents([]core.Message{
		core.NewSystemMessage("sys"),
		core.NewUserMessage("find"),
		core.NewAssistantMessage("", call),
		core.NewToolMessage("c1", "search", "found"),
	})

	require.Len(t, contents, 3)
	assert.Equal(t, genai.RoleUser, contents[0].Role)
	assert.Equal(t, genai.RoleModel, contents[1].Role)
	require.NotNil(t, contents[1].Parts[0].FunctionCall)
	assert.Equal(t, "go", contents[1].Parts[0].FunctionCall.Args["q"])
	require.NotNil(t, contents[2].Parts[0].FunctionResponse)
	assert.Equal(t, "found", contents[2].Parts[0].FunctionResponse.Response["output"])
}

func TestCallState(t *testing.T) {
	var s callState
	d := s.toDelta(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{
			{Text: "thinking", Thought: true},
			{Text: "hello"},
			{FunctionCall: &genai.FunctionCall{Name: "lookup", Args: map[string]any{"id": 1.0}}},
		}},
	}}})

	assert.Equal(t, "hello", d.Content)
	require.Len(t, d.ToolCalls, 1)
	assert.NotEmpty(t, d.ToolCalls[0].ID)
	assert.JSONEq(t, `{"id":1}`, d.ToolCalls[0].Arguments)
	assert.Equal(t, core.FinishReasonToolCalls, s.finishReason(genai.FinishReasonStop))

	var empty callState
	assert.Equal(t, core.FinishReasonLength, empty.finishReason(genai.FinishReasonMaxTokens))
	assert.Equal(t, core.FinishReasonStop, empty.finishReason(genai.FinishReasonStop))
}

func TestSystemPrompt(t *testing.T) {
	got := systemPrompt(model.Request{SystemPrompt: "a", Messages: []core.Message{core.NewSystemMessage("b")}})
	assert.Equal(t, "a\n\nb", got)
}

func TestToSchema(t *testing.T) {
	s, err := toSchema(map[string]any{"description": "args", "required": []string{"q"}})
	require.NoError(t, err)
	assert.Equal(t, "args", s.Description)
	assert.Equal(t, []string{"q"}, s.Required)
}
