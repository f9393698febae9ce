package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/langswarm/langswarm/core"
	"github.com/langswarm/langswarm/flow"
	"github.com/langswarm/langswarm/logging"
	"github.com/langswarm/langswarm/model"
	"github.com/langswarm/langswarm/session"
	"github.com/langswarm/langswarm/tool"
)

// Options configure an Agent beyond its Config.
type Options struct {
	// Provider replaces the adapter NewProvider would build from Config.
	Provider model.Provider
	// ToolSource resolves Config.Tools by name.
	ToolSource *tool.Registry
	// Sessions stores conversation history. Defaults to an in-memory store.
	Sessions core.SessionStore
	Logger   logging.Logger
	// Instruction replaces the static Config.SystemPrompt.
	Instruction *Instruction
	// MaxToolRounds bounds tool batches per turn for Chat and StreamChat.
	MaxToolRounds int
	// MaxParallelTools bounds concurrent tool executions within one batch.
	MaxParallelTools int
	// ContinueOnToolError reports failing tools back to the model instead of
	// failing the turn.
	ContinueOnToolError bool
	// Getenv looks up API keys. Defaults to os.Getenv.
	Getenv func(string) string
}

// CallOptions tune a single Chat or StreamChat call.
type CallOptions struct {
	// SessionID selects the conversation Chat reads and appends to. Empty
	// means a stateless call. StreamChat takes the session id as argument.
	SessionID string
	// Budget is charged once per provider call. Defaults to the budget
	// carried by the context (core.WithBudget).
	Budget *core.CallBudget
}

// Agent is a configured LLM participant with an immutable configuration, a
// provider adapter and a bound tool set. It is safe for concurrent use.
type Agent struct {
	id          string
	cfg         Config
	provider    model.Provider
	tools       *tool.Registry
	invoker     *tool.Invoker
	sessions    core.SessionStore
	instruction Instruction
	opts        Options
	logger      logging.Logger
}

// New validates cfg and constructs an agent. Configuration problems are
// reported as *core.ConfigError; no provider call is made.
func New(id string, cfg Config, optFns ...func(o *Options)) (*Agent, error) {
	opts := Options{
		MaxToolRounds: flow.DefaultMaxToolRounds,
		Getenv:        os.Getenv,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = flow.DefaultMaxToolRounds
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, &core.ConfigError{Field: "id", Message: "agent id is required"}
	}

	cfg = cfg.Clone()
	if err := cfg.normalize(opts.Getenv); err != nil {
		return nil, err
	}

	tools, err := bindTools(cfg, opts.ToolSource)
	if err != nil {
		return nil, err
	}

	instruction := NewInstructionFromText(cfg.SystemPrompt)
	if opts.Instruction != nil {
		instruction = *opts.Instruction
	} else if _, err := instruction.Resolve(InstructionContext{AgentID: id}); err != nil {
		return nil, &core.ConfigError{Field: "system_prompt", Message: err.Error()}
	}

	provider := opts.Provider
	if provider == nil {
		provider, err = NewProvider(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
	}

	sessions := opts.Sessions
	if sessions == nil {
		sessions = session.NewInMemoryStore()
	}

	logger := logging.OrNoOp(opts.Logger)

	return &Agent{
		id:       id,
		cfg:      cfg,
		provider: provider,
		tools:    tools,
		invoker: tool.NewInvoker(tools, func(o *tool.InvokerOptions) {
			o.MaxParallel = opts.MaxParallelTools
			o.Logger = logger
		}),
		sessions:    sessions,
		instruction: instruction,
		opts:        opts,
		logger:      logger,
	}, nil
}

func bindTools(cfg Config, source *tool.Registry) (*tool.Registry, error) {
	if !cfg.ToolsEnabled {
		return tool.NewRegistry(), nil
	}
	if source == nil {
		source = tool.NewRegistry()
	}
	if len(cfg.Tools) == 0 {
		return source, nil
	}
	sub, err := source.Subset(cfg.Tools...)
	if err != nil {
		return nil, &core.ConfigError{Field: "tools", Message: err.Error()}
	}
	return sub, nil
}

// ID returns the agent identifier.
func (a *Agent) ID() string { return a.id }

// Config returns a copy of the agent configuration.
func (a *Agent) Config() Config { return a.cfg.Clone() }

// Streaming reports whether the agent prefers the streaming entry point.
func (a *Agent) Streaming() bool { return a.cfg.Streaming }

// Provider returns the underlying provider adapter.
func (a *Agent) Provider() model.Provider { return a.provider }

// Tools returns the names of the bound tools.
func (a *Agent) Tools() []string { return a.tools.Names() }

// Sessions returns the agent's session store.
func (a *Agent) Sessions() core.SessionStore { return a.sessions }

// NewSession creates an empty conversation and returns its id.
func (a *Agent) NewSession() (string, error) {
	id := core.NewID()
	if _, err := a.sessions.Create(id); err != nil {
		return "", fmt.Errorf("agent %s: create session: %w", a.id, err)
	}
	return id, nil
}

// Chat runs one synchronous turn and returns the final assistant text. When
// tools are bound it loops over tool calls with the non-streaming provider
// API, bounded by MaxToolRounds. Provider errors are returned unchanged.
func (a *Agent) Chat(ctx context.Context, message string, optFns ...func(o *CallOptions)) (string, error) {
	co := callOptions(ctx, optFns)
	ctx = core.WithBudget(ctx, co.Budget)
	start := time.Now()
	a.logger.Info("agent.chat.start", "agent", a.id, "model", a.cfg.Model, "session", co.SessionID)

	req, err := a.prepare(co.SessionID, message)
	if err != nil {
		return "", err
	}

	// turn is stored only once the final answer arrives, so a failed turn
	// leaves the session untouched.
	turn := []core.Message{req.Messages[len(req.Messages)-1]}
	toolRounds := 0
	for round := 0; ; round++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := co.Budget.Spend(); err != nil {
			return "", err
		}

		callStart := time.Now()
		resp, err := a.provider.Complete(ctx, req)
		logging.LogLLMCall(a.logger, a.cfg.Model, round, time.Since(callStart), err)
		if err != nil {
			return "", err
		}

		if resp.FinishReason != core.FinishReasonToolCalls || !resp.Message.HasToolCalls() {
			turn = append(turn, core.NewAssistantMessage(resp.Message.Content))
			a.persist(co.SessionID, turn...)
			a.logger.Info("agent.chat.complete", "agent", a.id, "rounds", round+1, "duration_ms", time.Since(start).Milliseconds())
			return resp.Message.Content, nil
		}

		if toolRounds >= a.opts.MaxToolRounds {
			return "", fmt.Errorf("%w: %d tool rounds", core.ErrToolLoopExceeded, a.opts.MaxToolRounds)
		}

		calls := resp.Message.ToolCalls
		batch := []core.Message{core.NewAssistantMessage(resp.Message.Content, calls...)}
		for _, res := range a.invoker.InvokeAll(ctx, calls) {
			if res.Err != nil && (errors.Is(res.Err, core.ErrToolNotFound) || !a.opts.ContinueOnToolError) {
				return "", res.Err
			}
			batch = append(batch, res.Message())
		}

		req.Messages = append(req.Messages, batch...)
		turn = append(turn, batch...)
		toolRounds++
	}
}

// StreamChat starts a streaming turn in the given session. The returned
// aggregator issues a fresh provider request on its first Next; drain it with
// Next, Chunks or Collect. An empty sessionID runs a stateless turn.
func (a *Agent) StreamChat(ctx context.Context, sessionID, message string, optFns ...func(o *CallOptions)) (*flow.Aggregator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	co := callOptions(ctx, optFns)

	req, err := a.prepare(sessionID, message)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("agent.stream.start", "agent", a.id, "model", a.cfg.Model, "session", sessionID)

	return flow.NewAggregator(a.provider, req, a.invoker, func(o *flow.Options) {
		o.MaxToolRounds = a.opts.MaxToolRounds
		o.Budget = co.Budget
		o.Logger = a.logger
		o.ContinueOnToolError = a.opts.ContinueOnToolError
		o.AgentID = a.id
		if sessionID != "" {
			user := req.Messages[len(req.Messages)-1]
			o.OnComplete = func(turn []core.Message) {
				a.persist(sessionID, append([]core.Message{user}, turn...)...)
			}
		}
	}), nil
}

// prepare loads history and assembles the request ending with the user
// message. Nothing is stored until the turn completes.
func (a *Agent) prepare(sessionID, message string) (model.Request, error) {
	var history []core.Message
	if sessionID != "" {
		sess, err := a.sessions.Get(sessionID)
		if err != nil {
			return model.Request{}, fmt.Errorf("agent %s: load session: %w", a.id, err)
		}
		history = sess.History()
	}

	prompt, err := a.instruction.Resolve(InstructionContext{
		AgentID:   a.id,
		SessionID: sessionID,
		Model:     a.cfg.Model,
		Provider:  a.cfg.Provider.String(),
	})
	if err != nil {
		return model.Request{}, fmt.Errorf("agent %s: resolve instruction: %w", a.id, err)
	}

	user := core.NewUserMessage(message)

	return model.Request{
		SystemPrompt: prompt,
		Messages:     append(history, user),
		Tools:        a.tools.Definitions(),
	}, nil
}

func (a *Agent) persist(sessionID string, msgs ...core.Message) {
	if sessionID == "" {
		return
	}
	if err := a.sessions.Append(sessionID, msgs...); err != nil {
		a.logger.Warn("agent.session.append_failed", "agent", a.id, "session", sessionID, "error", err)
	}
}

// callOptions applies optFns. Without an explicit budget the one carried by
// ctx is charged, so delegated agents share the caller's budget.
func callOptions(ctx context.Context, optFns []func(o *CallOptions)) CallOptions {
	var co CallOptions
	for _, fn := range optFns {
		fn(&co)
	}
	if co.Budget == nil {
		co.Budget = core.BudgetFrom(ctx)
	}
	return co
}
