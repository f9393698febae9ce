// Package model defines the provider‑agnostic abstractions and concrete
// helpers for interacting with language models inside LangSwarm.
//
// Core goals:
//   - Unify streaming + non‑streaming generation behind a single interface
//   - Surface raw streaming deltas (content fragments, tool call fragments
//     keyed by index, finish reason) so aggregation lives in one place
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (ScriptedProvider)
//
// Providers (OpenAI, Azure OpenAI, Anthropic, Gemini) implement the Provider
// interface from this package so higher layers (agents, flows) remain
// decoupled from vendor SDKs.
package model
