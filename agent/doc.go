// Package agent provides the configured LLM conversational participant and
// the registry that resolves agents by id.
//
// An Agent binds a provider adapter (model.Provider), a fixed system prompt
// and an optional tool set. Two entry points are offered:
//
//   - Chat runs a synchronous turn and returns the final text, looping over
//     tool calls with the non-streaming provider API.
//   - StreamChat returns a *flow.Aggregator that streams the turn chunk by
//     chunk and runs the tool loop between provider rounds.
//
// Configuration errors (unknown provider, missing model or API key, unknown
// tool names) are reported by New as *core.ConfigError so that a broken
// agent never reaches the registry.
//
// Design principles:
//   - Explicit wiring: the Registry is a value injected into the engine
//   - Immutable configuration: Config is copied on construction and on read
//   - Providers, tools and sessions live in their own packages
package agent
