package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/langswarm/langswarm/agent"
	"github.com/langswarm/langswarm/core"
	"github.com/langswarm/langswarm/engine"
	"github.com/langswarm/langswarm/logging"
	"github.com/langswarm/langswarm/model"
	"github.com/langswarm/langswarm/tool"
	"github.com/langswarm/langswarm/tool/mcptool"
	"github.com/langswarm/langswarm/workflow"
)

// RuntimeOptions tune NewRuntime.
type RuntimeOptions struct {
	Logger logging.Logger
	// Tools are local tools made available next to MCP tools.
	Tools []tool.Tool
	// Providers replaces the adapter built for an agent, keyed by agent id.
	Providers map[string]model.Provider
	// Sessions is shared by all agents. Each agent gets its own in-memory
	// store when nil.
	Sessions  core.SessionStore
	Callbacks *engine.CallbackManager
	// Getenv looks up API keys. Defaults to os.Getenv.
	Getenv func(string) string
}

// Runtime is a fully wired deployment: agents registered in an engine, the
// tools they can use and the workflows declared by the configuration.
type Runtime struct {
	Engine   *engine.Engine
	Registry *agent.Registry
	Tools    *tool.Registry

	workflows map[string]*workflow.Workflow
	order     []string
	sources   []*mcptool.Source
	logger    logging.Logger
}

// NewRuntime connects MCP servers, builds every agent and an engine over
// them. On error every opened MCP connection is closed.
func NewRuntime(ctx context.Context, cfg *Config, optFns ...func(o *RuntimeOptions)) (_ *Runtime, err error) {
	opts := RuntimeOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rt := &Runtime{
		workflows: make(map[string]*workflow.Workflow, len(cfg.Workflows)),
		logger:    opts.Logger,
	}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()

	shared := append([]tool.Tool(nil), opts.Tools...)
	for _, spec := range cfg.MCPServers {
		src, err := spec.Source(opts.Logger)
		if err != nil {
			return nil, err
		}
		rt.sources = append(rt.sources, src)

		tools, err := src.Tools(ctx)
		if err != nil {
			return nil, fmt.Errorf("mcp server %q: %w", spec.Name, err)
		}
		shared = append(shared, tools...)
		opts.Logger.Info("config.mcp.connected", "server", spec.Name, "tools", len(tools))
	}
	rt.Tools = tool.NewRegistry(shared...)

	rt.Registry = agent.NewRegistry()
	for _, spec := range cfg.Agents {
		a, err := rt.buildAgent(cfg.Engine, spec, shared, opts)
		if err != nil {
			return nil, err
		}
		rt.Registry.Register(a)
	}

	for _, spec := range cfg.Workflows {
		wf, err := spec.Build()
		if err != nil {
			return nil, err
		}
		rt.workflows[wf.ID()] = wf
		rt.order = append(rt.order, wf.ID())
	}

	rt.Engine = engine.New(func(o *engine.Options) {
		o.Config = cfg.Engine.EngineConfig()
		o.Registry = rt.Registry
		o.Callbacks = opts.Callbacks
		o.Logger = opts.Logger
	})

	return rt, nil
}

func (rt *Runtime) buildAgent(es EngineSpec, spec AgentSpec, shared []tool.Tool, opts RuntimeOptions) (*agent.Agent, error) {
	tools := append([]tool.Tool(nil), shared...)
	for _, d := range spec.Delegates {
		target, err := rt.Registry.Lookup(d)
		if err != nil {
			return nil, err
		}
		tools = append(tools, agent.AsTool(target, fmt.Sprintf("Ask the %s agent and return its answer.", d)))
	}

	return agent.New(spec.ID, spec.AgentConfig(), func(o *agent.Options) {
		o.ToolSource = tool.NewRegistry(tools...)
		o.Logger = opts.Logger
		o.Sessions = opts.Sessions
		o.MaxToolRounds = es.MaxToolRounds
		o.MaxParallelTools = es.MaxParallelTools
		o.ContinueOnToolError = es.ContinueOnToolError
		if p, ok := opts.Providers[spec.ID]; ok {
			o.Provider = p
		}
		if opts.Getenv != nil {
			o.Getenv = opts.Getenv
		}
	})
}

// Workflow returns a declared workflow.
func (rt *Runtime) Workflow(id string) (*workflow.Workflow, bool) {
	wf, ok := rt.workflows[id]
	return wf, ok
}

// Workflows lists declared workflow ids in declaration order.
func (rt *Runtime) Workflows() []string {
	return append([]string(nil), rt.order...)
}

// Close disconnects every MCP server.
func (rt *Runtime) Close() error {
	var errs []error
	for _, src := range rt.sources {
		if err := src.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close mcp server %q: %w", src.Name(), err))
		}
	}
	rt.sources = nil
	return errors.Join(errs...)
}

// Source opens the configured MCP server lazily; no connection is made until
// tools are listed.
func (s MCPServerSpec) Source(logger logging.Logger) (*mcptool.Source, error) {
	withOpts := func(o *mcptool.Options) {
		o.Logger = logger
		o.Prefix = s.Prefix
	}
	if len(s.Command) > 0 {
		return mcptool.NewCommandSource(s.Name, s.Command, withOpts)
	}
	if s.URL == "" {
		return nil, &core.ConfigError{Field: "mcp_servers." + s.Name, Message: "command or url is required"}
	}
	return mcptool.NewHTTPSource(s.Name, s.URL, s.Headers, withOpts), nil
}
