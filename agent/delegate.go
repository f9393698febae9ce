package agent

import (
	"fmt"

	"github.com/langswarm/langswarm/tool"
)

// DelegateInput is the argument schema of a delegation tool.
type DelegateInput struct {
	Input string `json:"input" jsonschema:"description=Message forwarded to the agent"`
}

// DelegateToolName returns the tool name under which AsTool exposes an agent.
func DelegateToolName(agentID string) string { return "ask_" + agentID }

// AsTool exposes a as a tool so another agent can hand a sub-question to it.
// Each call is a stateless synchronous Chat with the tool's context, so it
// is charged to the budget the caller carries on that context.
func AsTool(a *Agent, description string) tool.Tool {
	if description == "" {
		description = fmt.Sprintf("Ask agent %q and return its answer.", a.ID())
	}
	return tool.NewTypedTool(DelegateToolName(a.ID()), description,
		func(ctx tool.Context, in DelegateInput) (string, error) {
			ctx.Logger().Debug("agent.delegate", "agent", a.ID(), "call_id", ctx.CallID())
			return a.Chat(ctx, in.Input)
		})
}
