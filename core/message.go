package core

import "strings"

// Role identifies the author of a Message within a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCallTypeFunction is the only tool call type emitted by providers today.
const ToolCallTypeFunction = "function"

// ToolCall is a request, emitted by a provider response, to invoke a named
// function. Arguments hold the raw JSON text assembled from streamed fragments;
// it is only valid JSON once the provider has signalled the tool_calls finish.
type ToolCall struct {
	Index    int              `json:"index"`
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction names the target function and its serialized arguments.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Complete reports whether both name and arguments have been received.
func (tc ToolCall) Complete() bool {
	return tc.Function.Name != "" && tc.Function.Arguments != ""
}

// Message is a single conversational turn.
//
// Content may be empty for assistant messages that only carry ToolCalls.
// Tool messages reference the originating call through ToolCallID.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// NewSystemMessage creates a system prompt message.
func NewSystemMessage(text string) Message { return Message{Role: RoleSystem, Content: text} }

// NewUserMessage creates a user-authored text message.
func NewUserMessage(text string) Message { return Message{Role: RoleUser, Content: text} }

// NewAssistantMessage creates an assistant message with optional tool calls.
func NewAssistantMessage(text string, calls ...ToolCall) Message {
	m := Message{Role: RoleAssistant, Content: text}
	if len(calls) > 0 {
		m.ToolCalls = append([]ToolCall(nil), calls...)
	}
	return m
}

// NewToolMessage records the result of a tool call.
func NewToolMessage(callID, name, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID, Name: name}
}

// HasToolCalls reports whether the message requests tool execution.
func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// Clone returns a copy that does not share the ToolCalls backing array.
func (m Message) Clone() Message {
	c := m
	if m.ToolCalls != nil {
		c.ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
	}
	return c
}

// LastUserText returns the content of the most recent user message.
func LastUserText(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}

// JoinContent concatenates the content of all messages with the given role.
func JoinContent(msgs []Message, role Role, sep string) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == role && m.Content != "" {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, sep)
}
