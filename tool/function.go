package tool

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/langswarm/langswarm/internal/util"
)

// FunctionTool is a generic adapter that exposes a plain Go function as a tool.
//
// Responsibilities:
//   - Holds a JSON-Schema parameter specification (parameters)
//   - Validates model supplied arguments against that schema before execution
//   - Normalizes error handling so callers receive *ToolError with consistent codes:
//     VALIDATION_ERROR  -> schema / argument mismatch
//     EXECUTION_ERROR   -> underlying function returned an error (non-ToolError)
//     (custom codes preserved if the function returns *ToolError directly)
//
// A FunctionTool has no internal mutable state after construction and is safe for
// concurrent use by multiple goroutines.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(ctx Context, args map[string]any) (any, error)
}

// NewFunctionTool constructs a FunctionTool from explicit schema and function.
//
// Example:
//
//	sumTool := NewFunctionTool(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    "required": []string{"a", "b"},
//	  },
//	  func(ctx tool.Context, args map[string]any) (any, error) {
//	    return args["a"].(float64) + args["b"].(float64), nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(ctx Context, args map[string]any) (any, error),
) *FunctionTool {
	if parameters == nil {
		parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewTypedTool derives the parameter schema from T via reflection and decodes
// validated arguments into a T before calling fn.
//
// Example:
//
//	type SumArgs struct {
//	  A float64 `json:"a" jsonschema:"description=First addend"`
//	  B float64 `json:"b" jsonschema:"description=Second addend"`
//	}
//
//	sumTool := NewTypedTool("calculate_sum", "Calculate the sum of two numbers",
//	  func(ctx tool.Context, in SumArgs) (float64, error) { return in.A + in.B, nil })
func NewTypedTool[T any, R any](name, description string, fn func(ctx Context, in T) (R, error)) *FunctionTool {
	var zero T
	schema := util.CreateSchema(&zero)
	return NewFunctionTool(name, description, schema, func(ctx Context, args map[string]any) (any, error) {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, err
		}
		var in T
		if err := json.Unmarshal(raw, &in); err != nil {
			return nil, &ToolError{Tool: name, Message: fmt.Sprintf("decode arguments: %v", err), Code: CodeValidation}
		}
		return fn(ctx, in)
	})
}

// Name returns the unique tool name used in function call declarations and routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Execute validates the provided args against the declared schema then invokes the
// underlying function. Validation or execution failures are wrapped (or passed
// through) as *ToolError for uniform downstream handling.
func (t *FunctionTool) Execute(ctx Context, args map[string]any) (any, error) {
	logger := ctx.Logger()
	start := time.Now()

	logger.Debug("tool.call.start", "tool", t.name, "call_id", ctx.CallID())

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
		}
	}

	result, err := t.fn(ctx, args)
	if err != nil {
		if toolErr, ok := err.(*ToolError); ok { // Already a ToolError -> just forward
			return nil, toolErr
		}

		return nil, &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    CodeExecution,
		}
	}

	logger.Debug("tool.call.done", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}
