package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/langswarm/langswarm/core"
	"github.com/langswarm/langswarm/logging"
)

// InvokerOptions configures an Invoker.
type InvokerOptions struct {
	// MaxParallel bounds concurrent tool executions within one batch.
	// 0 or <1 means no explicit limit (len(calls)); 1 runs sequentially.
	MaxParallel int
	Logger      logging.Logger
}

// Invoker dispatches completed tool calls to registered tools. Arguments are
// parsed only at dispatch time, tool panics are recovered and every call
// yields exactly one Result.
type Invoker struct {
	registry *Registry
	opts     InvokerOptions
}

// NewInvoker creates an invoker over registry.
func NewInvoker(registry *Registry, optFns ...func(o *InvokerOptions)) *Invoker {
	opts := InvokerOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if registry == nil {
		registry = NewRegistry()
	}
	return &Invoker{registry: registry, opts: opts}
}

// Registry returns the registry the invoker dispatches to.
func (inv *Invoker) Registry() *Registry { return inv.registry }

// Result is the outcome of one tool call.
type Result struct {
	Call     core.ToolCall
	Output   string
	Err      error
	Duration time.Duration
}

// Message converts the result into the tool role message fed back to the
// provider. Failures are reported to the model as text.
func (r Result) Message() core.Message {
	content := r.Output
	if r.Err != nil {
		content = "Error: " + r.Err.Error()
	}
	return core.NewToolMessage(r.Call.ID, r.Call.Function.Name, content)
}

// Invoke executes a single call.
func (inv *Invoker) Invoke(ctx context.Context, call core.ToolCall) Result {
	start := time.Now()
	res := Result{Call: call}
	res.Output, res.Err = inv.execute(ctx, call)
	res.Duration = time.Since(start)
	logging.LogToolCall(inv.opts.Logger, call.Function.Name, call.ID, res.Duration, res.Err)
	return res
}

// InvokeAll executes a batch of calls, possibly in parallel, and returns the
// results in the order of calls.
func (inv *Invoker) InvokeAll(ctx context.Context, calls []core.ToolCall) []Result {
	n := len(calls)
	if n == 0 {
		return nil
	}

	results := make([]Result, n)

	// Fast path: single call, execute inline.
	if n == 1 {
		results[0] = inv.Invoke(ctx, calls[0])
		return results
	}

	maxPar := inv.opts.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxPar)

	batchStart := time.Now()
	for i := range calls {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = inv.Invoke(ctx, calls[idx])
		}(i)
	}

	wg.Wait()

	inv.opts.Logger.Debug(
		"tool.batch.complete",
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return results
}

func (inv *Invoker) execute(ctx context.Context, call core.ToolCall) (out string, err error) {
	impl, ok := inv.registry.Lookup(call.Function.Name)
	if !ok {
		return "", &core.ToolNotFoundError{Name: call.Function.Name, CallID: call.ID, Available: inv.registry.Names()}
	}

	if err := ctx.Err(); err != nil {
		return "", &core.ToolExecutionError{Tool: call.Function.Name, CallID: call.ID, Err: err}
	}

	args, err := ParseArguments(call.Function.Arguments)
	if err != nil {
		return "", &core.ToolExecutionError{Tool: call.Function.Name, CallID: call.ID, Err: err}
	}

	defer func() { // panic safety
		if r := recover(); r != nil {
			inv.opts.Logger.Error("tool.call.panic", "tool", call.Function.Name, "call_id", call.ID, "recover", r)
			err = &core.ToolExecutionError{Tool: call.Function.Name, CallID: call.ID, Err: panicError(r)}
		}
	}()

	result, err := impl.Execute(NewContext(ctx, call.ID, inv.opts.Logger), args)
	if err != nil {
		return "", &core.ToolExecutionError{Tool: call.Function.Name, CallID: call.ID, Err: err}
	}

	return FormatOutput(result)
}

// ParseArguments decodes a tool call's JSON arguments. Empty arguments are
// treated as an empty object.
func ParseArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// FormatOutput renders a tool result as text: strings pass through, other
// values are JSON encoded.
func FormatOutput(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case fmt.Stringer:
		return t.String(), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(b), nil
}

// panicError converts a recovered panic value to an error.
func panicError(r any) error { return &PanicError{Value: r, Stack: debug.Stack()} }

// PanicError wraps a value recovered from a panicking tool.
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string { return fmt.Sprintf("panic recovered: %v", p.Value) }
