package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors usable with errors.Is. Typed errors below match them via Is.
var (
	ErrAgentNotFound    = errors.New("agent not found")
	ErrToolNotFound     = errors.New("tool not found")
	ErrToolExecution    = errors.New("tool execution failed")
	ErrToolLoopExceeded = errors.New("tool loop exceeded")
	ErrBudgetExceeded   = errors.New("call budget exceeded")
	ErrConfig           = errors.New("invalid configuration")
	ErrProvider         = errors.New("provider error")
)

// AgentNotFoundError is returned when an agent id is not registered.
type AgentNotFoundError struct {
	ID    string
	Known []string
}

func (e *AgentNotFoundError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("agent %q not found", e.ID)
	}
	return fmt.Sprintf("agent %q not found (registered: %s)", e.ID, strings.Join(e.Known, ", "))
}

func (e *AgentNotFoundError) Is(target error) bool { return target == ErrAgentNotFound }

// ConfigError reports invalid or missing configuration, detected at
// construction time rather than at first use.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Message
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// ToolNotFoundError is raised when a provider requests a tool that is not
// bound to the agent.
type ToolNotFoundError struct {
	Name      string
	CallID    string
	Available []string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("tool %q not found (call %s)", e.Name, e.CallID)
}

func (e *ToolNotFoundError) Is(target error) bool { return target == ErrToolNotFound }

// ToolExecutionError wraps a failure raised by a tool, including recovered panics
// and malformed arguments.
type ToolExecutionError struct {
	Tool   string
	CallID string
	Err    error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %q (call %s): %v", e.Tool, e.CallID, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

func (e *ToolExecutionError) Is(target error) bool { return target == ErrToolExecution }

// ProviderError wraps a failure reported by a model provider SDK.
type ProviderError struct {
	Provider ProviderType
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// StepError attributes a workflow failure to a specific step.
type StepError struct {
	Step    string
	AgentID string
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q (agent %s): %v", e.Step, e.AgentID, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
