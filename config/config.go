package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/langswarm/langswarm/agent"
	"github.com/langswarm/langswarm/core"
	"github.com/langswarm/langswarm/engine"
	"github.com/langswarm/langswarm/logging"
	"github.com/langswarm/langswarm/workflow"
)

// Config is the file level description of a LangSwarm deployment.
type Config struct {
	Logging    LoggingSpec     `toml:"logging"`
	Engine     EngineSpec      `toml:"engine"`
	Agents     []AgentSpec     `toml:"agents"`
	MCPServers []MCPServerSpec `toml:"mcp_servers"`
	Workflows  []WorkflowSpec  `toml:"workflows"`
}

// LoggingSpec configures the process logger.
type LoggingSpec struct {
	Level     string `toml:"level"`
	Format    string `toml:"format"`
	AddSource bool   `toml:"add_source"`
}

// EngineSpec configures the workflow engine and agent defaults.
type EngineSpec struct {
	MaxConcurrentExecutions int           `toml:"max_concurrent_executions"`
	MaxModelCalls           int           `toml:"max_model_calls"`
	MaxParallelSteps        int           `toml:"max_parallel_steps"`
	StepTimeout             time.Duration `toml:"step_timeout"`
	MaxToolRounds           int           `toml:"max_tool_rounds"`
	MaxParallelTools        int           `toml:"max_parallel_tools"`
	ContinueOnToolError     bool          `toml:"continue_on_tool_error"`
}

// AgentSpec describes one agent.
type AgentSpec struct {
	ID       string `toml:"id"`
	Provider string `toml:"provider"`
	Model    string `toml:"model"`
	// APIKey may reference environment variables as ${NAME}.
	APIKey               string   `toml:"api_key"`
	SystemPrompt         string   `toml:"system_prompt"`
	Temperature          *float64 `toml:"temperature"`
	MaxTokens            int      `toml:"max_tokens"`
	Streaming            bool     `toml:"streaming"`
	ToolsEnabled         bool     `toml:"tools_enabled"`
	Tools                []string `toml:"tools"`
	Endpoint             string   `toml:"endpoint"`
	APIVersion           string   `toml:"api_version"`
	UseDefaultCredential bool     `toml:"use_default_credential"`
	// Delegates lists earlier declared agents exposed to this agent as
	// ask_<id> tools.
	Delegates []string `toml:"delegates"`
}

// MCPServerSpec describes an MCP server whose tools become available to
// agents. Exactly one of Command and URL must be set.
type MCPServerSpec struct {
	Name    string            `toml:"name"`
	Command []string          `toml:"command"`
	URL     string            `toml:"url"`
	Headers map[string]string `toml:"headers"`
	// Prefix is prepended to every tool name of the server.
	Prefix string `toml:"prefix"`
}

// WorkflowSpec describes a workflow.
type WorkflowSpec struct {
	ID          string     `toml:"id"`
	Name        string     `toml:"name"`
	Description string     `toml:"description"`
	Mode        string     `toml:"mode"`
	Steps       []StepSpec `toml:"steps"`
}

// StepSpec describes one workflow step.
type StepSpec struct {
	Name      string `toml:"name"`
	Agent     string `toml:"agent"`
	Aggregate bool   `toml:"aggregate"`
	// Input is an optional text/template for the step input.
	Input string `toml:"input"`
}

// Load reads and validates a TOML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates TOML text. Unknown keys are rejected.
func Parse(data string) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return nil, &core.ConfigError{Message: err.Error()}
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, &core.ConfigError{Message: "unknown keys: " + strings.Join(keys, ", ")}
	}

	for i := range cfg.Agents {
		cfg.Agents[i].APIKey = os.ExpandEnv(cfg.Agents[i].APIKey)
	}
	for i := range cfg.MCPServers {
		for k, v := range cfg.MCPServers[i].Headers {
			cfg.MCPServers[i].Headers[k] = os.ExpandEnv(v)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks references between sections. All problems are reported,
// joined.
func (c *Config) Validate() error {
	var errs []error

	if c.Logging.Level != "" {
		if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
			errs = append(errs, &core.ConfigError{Field: "logging.level", Message: err.Error()})
		}
	}
	switch c.Logging.Format {
	case "", "json", "text", "console":
	default:
		errs = append(errs, &core.ConfigError{Field: "logging.format", Message: fmt.Sprintf("unknown format %q", c.Logging.Format)})
	}

	agents := make(map[string]bool, len(c.Agents))
	for i, a := range c.Agents {
		field := fmt.Sprintf("agents[%d]", i)
		if a.ID == "" {
			errs = append(errs, &core.ConfigError{Field: field + ".id", Message: "agent id is required"})
			continue
		}
		if agents[a.ID] {
			errs = append(errs, &core.ConfigError{Field: field + ".id", Message: fmt.Sprintf("duplicate agent id %q", a.ID)})
		}
		if _, err := core.ParseProviderType(a.Provider); err != nil {
			errs = append(errs, &core.ConfigError{Field: field + ".provider", Message: err.Error()})
		}
		for _, d := range a.Delegates {
			if !agents[d] {
				errs = append(errs, &core.ConfigError{Field: field + ".delegates", Message: fmt.Sprintf("agent %q must be declared before %q", d, a.ID)})
			}
		}
		agents[a.ID] = true
	}

	servers := make(map[string]bool, len(c.MCPServers))
	for i, s := range c.MCPServers {
		field := fmt.Sprintf("mcp_servers[%d]", i)
		if s.Name == "" {
			errs = append(errs, &core.ConfigError{Field: field + ".name", Message: "server name is required"})
		} else if servers[s.Name] {
			errs = append(errs, &core.ConfigError{Field: field + ".name", Message: fmt.Sprintf("duplicate server %q", s.Name)})
		}
		servers[s.Name] = true
		if (len(s.Command) == 0) == (s.URL == "") {
			errs = append(errs, &core.ConfigError{Field: field, Message: "exactly one of command and url is required"})
		}
	}

	workflows := make(map[string]bool, len(c.Workflows))
	for i, w := range c.Workflows {
		field := fmt.Sprintf("workflows[%d]", i)
		if workflows[w.ID] {
			errs = append(errs, &core.ConfigError{Field: field + ".id", Message: fmt.Sprintf("duplicate workflow %q", w.ID)})
		}
		workflows[w.ID] = true
		if _, err := w.Build(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
			continue
		}
		for j, s := range w.Steps {
			if !agents[s.Agent] {
				errs = append(errs, &core.ConfigError{
					Field:   fmt.Sprintf("%s.steps[%d].agent", field, j),
					Message: fmt.Sprintf("unknown agent %q", s.Agent),
				})
			}
		}
	}

	return errors.Join(errs...)
}

// AgentConfig converts the section into an agent configuration.
func (a AgentSpec) AgentConfig() agent.Config {
	tools := slices.Clone(a.Tools)
	if len(tools) > 0 {
		for _, d := range a.Delegates {
			tools = append(tools, agent.DelegateToolName(d))
		}
	}
	return agent.Config{
		Provider:             core.ProviderType(a.Provider),
		Model:                a.Model,
		APIKey:               a.APIKey,
		SystemPrompt:         a.SystemPrompt,
		Temperature:          a.Temperature,
		MaxTokens:            a.MaxTokens,
		Streaming:            a.Streaming,
		ToolsEnabled:         a.ToolsEnabled || len(a.Delegates) > 0,
		Tools:                tools,
		Endpoint:             a.Endpoint,
		APIVersion:           a.APIVersion,
		UseDefaultCredential: a.UseDefaultCredential,
	}
}

// Build constructs the workflow.
func (w WorkflowSpec) Build() (*workflow.Workflow, error) {
	mode, err := workflow.ParseExecutionMode(w.Mode)
	if err != nil {
		return nil, err
	}
	b := workflow.NewBuilder(w.ID).Name(w.Name).Description(w.Description).Mode(mode)
	for _, s := range w.Steps {
		b.AddStep(workflow.Step{
			Name:          s.Name,
			AgentID:       s.Agent,
			Aggregate:     s.Aggregate,
			InputTemplate: s.Input,
		})
	}
	return b.Build()
}

// Workflow builds the workflow with the given id.
func (c *Config) Workflow(id string) (*workflow.Workflow, error) {
	for _, w := range c.Workflows {
		if w.ID == id {
			return w.Build()
		}
	}
	ids := make([]string, len(c.Workflows))
	for i, w := range c.Workflows {
		ids[i] = w.ID
	}
	sort.Strings(ids)
	return nil, &core.ConfigError{Field: "workflow", Message: fmt.Sprintf("workflow %q not found (available: %s)", id, strings.Join(ids, ", "))}
}

// LoggerConfig converts the logging section. Invalid levels fall back to
// info; Validate reports them.
func (l LoggingSpec) LoggerConfig() *logging.Config {
	cfg := logging.DefaultConfig()
	if lvl, err := logging.ParseLevel(l.Level); err == nil && l.Level != "" {
		cfg.Level = lvl
	}
	if l.Format != "" {
		cfg.Format = l.Format
	}
	cfg.AddSource = l.AddSource
	return cfg
}

// EngineConfig converts the engine section, applying engine defaults for
// unset values.
func (e EngineSpec) EngineConfig() engine.Config {
	cfg := engine.DefaultConfig
	if e.MaxConcurrentExecutions > 0 {
		cfg.MaxConcurrentExecutions = e.MaxConcurrentExecutions
	}
	cfg.MaxModelCalls = e.MaxModelCalls
	cfg.MaxParallelSteps = e.MaxParallelSteps
	cfg.StepTimeout = e.StepTimeout
	return cfg
}
