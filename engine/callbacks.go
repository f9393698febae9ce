package engine

import (
	"context"
	"sync"

	"github.com/langswarm/langswarm/core"
	"github.com/langswarm/langswarm/logging"
	"github.com/langswarm/langswarm/workflow"
)

// CallbackType defines the lifecycle points where callbacks can be executed.
//
// Callbacks hook into the execution pipeline without modifying core logic:
//   - BeforeWorkflow/AfterWorkflow: around a complete workflow execution
//   - BeforeStep/AfterStep: around each agent step
//   - OnChunk: for every streamed chunk of a streaming step
//   - OnError: when a step fails
//
// Callbacks are executed synchronously. An error returned by a Before*
// callback or by AfterStep fails the associated step or workflow.
type CallbackType string

const (
	// CallbackBeforeWorkflow is triggered once the execution starts running.
	CallbackBeforeWorkflow CallbackType = "before_workflow"

	// CallbackAfterWorkflow is triggered after the result is final. Errors
	// are logged, not propagated.
	CallbackAfterWorkflow CallbackType = "after_workflow"

	// CallbackBeforeStep is triggered after the step input is rendered and
	// before the agent is invoked. Use for validation or auditing.
	CallbackBeforeStep CallbackType = "before_step"

	// CallbackAfterStep is triggered after a step produced its output.
	CallbackAfterStep CallbackType = "after_step"

	// CallbackOnChunk is triggered for every chunk a streaming step emits.
	CallbackOnChunk CallbackType = "on_chunk"

	// CallbackOnError is triggered when a step fails.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries the information a callback may need. Fields that do
// not apply to a callback type are left zero.
type CallbackContext struct {
	ExecutionID  string
	WorkflowID   string
	CallbackType CallbackType

	// Step and AgentID identify the step for step level callbacks.
	Step    *workflow.Step
	AgentID string
	// Input is the rendered step input.
	Input string

	Chunk      *core.StreamChunk
	StepResult *workflow.StepResult
	Result     *workflow.Result
	Err        error

	// Metadata provides extensible storage for custom callback data.
	Metadata map[string]any
}

// Callback defines the interface for execution lifecycle hooks.
//
// Implementations should be fast, since they run synchronously on the step's
// goroutine, and safe for concurrent use, since parallel steps invoke them
// concurrently.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	audit := NewFunctionCallback(
//	    CallbackBeforeStep,
//	    func(ctx context.Context, cc *CallbackContext) error {
//	        log.Printf("step %s -> %s", cc.Step.Name, cc.AgentID)
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a callback from a function.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager routes lifecycle events to registered callbacks in
// registration order. It is safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks runs every callback of the given type, stopping at the
// first error.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	if cm == nil {
		return nil
	}

	cm.mu.RLock()
	callbacks := cm.callbacks[callbackType]
	cm.mu.RUnlock()

	callbackCtx.CallbackType = callbackType
	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}

	return nil
}

// LoggingCallback writes a structured record for each event of its type.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a logging callback for callbackType.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logging.OrNoOp(logger),
	}
}

// Type returns the callback type.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the event.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	args := []any{
		"callback", string(c.callbackType),
		"execution_id", callbackCtx.ExecutionID,
		"workflow", callbackCtx.WorkflowID,
	}
	if callbackCtx.Step != nil {
		args = append(args, "step", callbackCtx.Step.Name, "agent", callbackCtx.AgentID)
	}
	if callbackCtx.Err != nil {
		args = append(args, "error", callbackCtx.Err)
	}
	c.logger.Info("engine.callback", args...)
	return nil
}

// InputValidationCallback rejects step inputs before the agent is invoked.
type InputValidationCallback struct {
	validator func(step workflow.Step, input string) error
}

// NewInputValidationCallback creates a BeforeStep callback running validator.
func NewInputValidationCallback(validator func(step workflow.Step, input string) error) *InputValidationCallback {
	return &InputValidationCallback{
		validator: validator,
	}
}

// Type returns CallbackBeforeStep.
func (c *InputValidationCallback) Type() CallbackType {
	return CallbackBeforeStep
}

// Execute runs the validator on the rendered step input.
func (c *InputValidationCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.validator != nil && callbackCtx.Step != nil {
		return c.validator(*callbackCtx.Step, callbackCtx.Input)
	}
	return nil
}
