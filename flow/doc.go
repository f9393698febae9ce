// Package flow drives a single agent turn against a streaming provider.
//
// The Aggregator is an explicit state machine. It consumes raw provider
// deltas, yields content chunks as they arrive, assembles tool call fragments
// by index and, once the provider finishes with "tool_calls", executes the
// requested tools and re-invokes the provider exactly once with the results
// appended. The turn ends when the provider finishes with "stop" or when a
// failure is reached; failures are delivered as an unsuccessful chunk.
//
//	AwaitingFirstChunk -> AccumulatingContent / AccumulatingToolCalls
//	AccumulatingToolCalls --finish=tool_calls--> ExecutingTools --> AwaitingFirstChunk
//	any --finish=stop--> Complete
//	any --error--> Failed
package flow
