package anthropic

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langswarm/langswarm/core"
	"github.com/langswarm/langswarm/model"
)

func TestBuildMessages_GroupsToolResults(t *testing.T) {
	calls := []core.ToolCall{
		{ID: "a", Function: core.ToolCallFunction{Name: "one", Arguments: `{"x":1}`}},
		{ID: "b", Function: core.ToolCallFunction{Name: "two", Arguments: ""}},
	}
	msgs := buildMessages([]core.Message{
		core.NewSystemMessage("ignored here"),
		core.NewUserMessage("go"),
		core.NewAssistantMessage("working", calls...),
		core.NewToolMessage("a", "one", "r1"),
		core.NewToolMessage("b", "two", "r2"),
	})

	require.Len(t, msgs, 3)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	assert.Len(t, msgs[1].Content, 3)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
	assert.Len(t, msgs[2].Content, 2)
}

func TestExtractSystem(t *testing.T) {
	blocks := extractSystem(model.Request{
		SystemPrompt: "prompt",
		Messages:     []core.Message{core.NewSystemMessage("extra"), core.NewUserMessage("hi")},
	})
	require.Len(t, blocks, 2)
	assert.Equal(t, "prompt", blocks[0].Text)
	assert.Equal(t, "extra", blocks[1].Text)
}

func TestFinishReason(t *testing.T) {
	assert.Equal(t, core.FinishReasonToolCalls, finishReason(anthropic.StopReasonToolUse))
	assert.Equal(t, core.FinishReasonStop, finishReason(anthropic.StopReasonEndTurn))
	assert.Equal(t, core.FinishReasonLength, finishReason(anthropic.StopReasonMaxTokens))
}

func TestBuildTools(t *testing.T) {
	tools := buildTools([]model.ToolDefinition{{
		Name:        "search",
		Description: "web search",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"q": map[string]any{"type": "string"}},
			"required":   []any{"q"},
		},
	}})
	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "search", tools[0].OfTool.Name)
	assert.Equal(t, []string{"q"}, tools[0].OfTool.InputSchema.Required)
}

func TestInfo(t *testing.T) {
	p := New(func(o *Options) { o.APIKey = "test" })
	assert.Equal(t, core.ProviderAnthropic, p.Info().Provider)
}
