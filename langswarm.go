// Package langswarm provides a high-level façade over the workflow engine and
// agent registry, enabling rapid construction of multi-agent systems. Most
// applications interact with this package by:
//  1. Creating a Swarm via New() (optionally overriding the session store)
//  2. Creating agents with NewAgent, which registers them automatically
//  3. Running workflows (Run, RunAsync) or talking to one agent (Chat, Stream)
//
// The façade delegates orchestration to engine.Engine. Defaults are in-memory
// and safe for local development; config.NewRuntime builds the same wiring
// from a TOML file.
package langswarm

import (
	"context"

	"github.com/langswarm/langswarm/agent"
	"github.com/langswarm/langswarm/core"
	"github.com/langswarm/langswarm/engine"
	"github.com/langswarm/langswarm/flow"
	"github.com/langswarm/langswarm/logging"
	"github.com/langswarm/langswarm/session"
	"github.com/langswarm/langswarm/workflow"
)

// Options configures the Swarm instance.
type Options struct {
	// Engine configuration (concurrency, budgets, timeouts)
	EngineConfig engine.Config

	// Sessions is shared by every agent created through NewAgent, so a
	// session id names the same conversation for all of them.
	Sessions core.SessionStore

	// Callbacks observe workflow and step lifecycle events.
	Callbacks *engine.CallbackManager

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Swarm is the high-level façade aggregating the agent registry and engine.
type Swarm struct {
	opts     Options
	registry *agent.Registry
	engine   *engine.Engine
}

// New creates a new Swarm with optional overrides.
func New(optFns ...func(o *Options)) *Swarm {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		Sessions:     session.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	registry := agent.NewRegistry()
	e := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Registry = registry
		o.Callbacks = opts.Callbacks
		o.Logger = opts.Logger
	})

	return &Swarm{opts: opts, registry: registry, engine: e}
}

// NewAgent constructs an agent sharing the swarm's session store and logger,
// and registers it. Options passed here run after the swarm defaults.
func (s *Swarm) NewAgent(id string, cfg agent.Config, optFns ...func(o *agent.Options)) (*agent.Agent, error) {
	fns := append([]func(o *agent.Options){func(o *agent.Options) {
		o.Sessions = s.opts.Sessions
		o.Logger = s.opts.Logger
	}}, optFns...)

	a, err := agent.New(id, cfg, fns...)
	if err != nil {
		return nil, err
	}
	s.registry.Register(a)
	return a, nil
}

// RegisterAgent adds an existing agent. It replaces an agent with the same id.
func (s *Swarm) RegisterAgent(a *agent.Agent) bool { return s.registry.Register(a) }

// Registry returns the agent registry.
func (s *Swarm) Registry() *agent.Registry { return s.registry }

// Engine returns the underlying workflow engine.
func (s *Swarm) Engine() *engine.Engine { return s.engine }

// Run executes a workflow synchronously.
func (s *Swarm) Run(ctx context.Context, wf *workflow.Workflow, input string, optFns ...func(o *engine.ExecuteOptions)) *workflow.Result {
	return s.engine.Execute(ctx, wf, input, optFns...)
}

// RunAsync starts a workflow and returns its execution id and a channel
// delivering the result.
func (s *Swarm) RunAsync(ctx context.Context, wf *workflow.Workflow, input string, optFns ...func(o *engine.ExecuteOptions)) (string, <-chan *workflow.Result) {
	return s.engine.ExecuteAsync(ctx, wf, input, optFns...)
}

// Cancel stops a running execution.
func (s *Swarm) Cancel(executionID string) error { return s.engine.Cancel(executionID) }

// Chat sends one message to an agent and returns its final answer. Streaming
// agents are drained through their aggregator.
func (s *Swarm) Chat(ctx context.Context, sessionID, agentID, message string) (string, error) {
	a, err := s.registry.Lookup(agentID)
	if err != nil {
		return "", err
	}
	if !a.Streaming() {
		return a.Chat(ctx, message, func(o *agent.CallOptions) { o.SessionID = sessionID })
	}
	agg, err := a.StreamChat(ctx, sessionID, message)
	if err != nil {
		return "", err
	}
	return agg.Collect(ctx)
}

// Stream starts a streaming turn with an agent regardless of its Streaming
// setting. The caller drives the returned aggregator.
func (s *Swarm) Stream(ctx context.Context, sessionID, agentID, message string) (*flow.Aggregator, error) {
	a, err := s.registry.Lookup(agentID)
	if err != nil {
		return nil, err
	}
	return a.StreamChat(ctx, sessionID, message)
}
