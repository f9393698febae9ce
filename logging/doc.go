// Package logging provides a minimal logging interface and adapters for LangSwarm.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the engine, agents, aggregator and tool invoker use for observability.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - NewLogger building JSON, text or colored console (tint) handlers
//
// Usage:
//
//	logger := logging.NewSlogAdapter(logging.NewLogger(&logging.Config{Level: logging.LogLevelDebug, Format: "console"}))
//	eng := engine.New(func(o *engine.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
