// Package core provides the foundational domain types shared by every
// LangSwarm package. It defines:
//
//   - Messages and tool calls exchanged with model providers
//   - Stream chunks yielded to callers of streaming chat
//   - Sessions (conversation history containers) and the SessionStore contract
//   - Provider identifiers and the typed error taxonomy
//   - CallBudget, a shared limiter for provider calls
//
// The package intentionally keeps implementation concerns (providers, tool
// execution, workflow orchestration) out of scope so higher layers can depend
// on it without pulling vendor SDKs.
package core
