package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/langswarm/langswarm/agent"
	"github.com/langswarm/langswarm/core"
	"github.com/langswarm/langswarm/logging"
	"github.com/langswarm/langswarm/workflow"
)

// Config defines tuning parameters for the Engine's operational behavior.
//
// Example:
//
//	cfg := Config{
//	    MaxConcurrentExecutions: 50,
//	    MaxModelCalls: 20,
//	}
type Config struct {
	// MaxConcurrentExecutions limits the number of workflow executions that
	// run simultaneously. Further executions wait for a free slot or for
	// their context to end. 0 means unlimited.
	MaxConcurrentExecutions int

	// MaxModelCalls caps provider calls per execution, shared by every step.
	// 0 means unlimited.
	MaxModelCalls int

	// MaxParallelSteps bounds concurrent steps in ModeParallel. 0 means all
	// steps at once.
	MaxParallelSteps int

	// StepTimeout bounds each step. 0 means no timeout beyond the caller's
	// context.
	StepTimeout time.Duration
}

// DefaultConfig provides conservative defaults.
var DefaultConfig = Config{
	MaxConcurrentExecutions: 10,
}

// Options configures an Engine instance using the functional options pattern.
type Options struct {
	// Config holds the operational parameters.
	Config Config

	// Registry resolves step agent ids. A new empty registry is used if nil.
	Registry *agent.Registry

	// Callbacks receives lifecycle events. Optional.
	Callbacks *CallbackManager

	// Logger receives structured execution logs.
	Logger logging.Logger
}

// ExecuteOptions tune a single execution.
type ExecuteOptions struct {
	// Mode overrides the workflow's execution mode.
	Mode workflow.ExecutionMode

	// ExecutionID overrides the generated execution id.
	ExecutionID string

	// SessionID, when set, is the conversation id of every step so agents
	// keep history across executions. Regular steps of a parallel execution
	// each use "<SessionID>/<step name>" instead, so concurrent turns never
	// interleave in one history.
	SessionID string

	// OnChunk observes every chunk streamed by a streaming step.
	OnChunk func(step string, chunk core.StreamChunk)
}

// Engine executes workflows against an injected agent registry. It is safe
// for concurrent use; each execution owns its Result.
type Engine struct {
	registry  *agent.Registry
	callbacks *CallbackManager
	logger    logging.Logger
	config    Config

	slots chan struct{}

	activeMu sync.RWMutex
	active   map[string]context.CancelFunc
}

// New creates an engine.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Registry == nil {
		opts.Registry = agent.NewRegistry()
	}

	var slots chan struct{}
	if opts.Config.MaxConcurrentExecutions > 0 {
		slots = make(chan struct{}, opts.Config.MaxConcurrentExecutions)
	}

	return &Engine{
		registry:  opts.Registry,
		callbacks: opts.Callbacks,
		logger:    logging.OrNoOp(opts.Logger),
		config:    opts.Config,
		slots:     slots,
		active:    make(map[string]context.CancelFunc),
	}
}

// Registry returns the agent registry the engine resolves steps against.
func (e *Engine) Registry() *agent.Registry { return e.registry }

// Execute runs wf against input and returns its result. Failures never
// surface as a Go error: they are recorded in the result with Status
// StatusFailed, FailedStep and Err (a *core.StepError for step failures).
// Failed steps are not retried.
func (e *Engine) Execute(
	ctx context.Context,
	wf *workflow.Workflow,
	input string,
	optFns ...func(o *ExecuteOptions),
) *workflow.Result {
	eo := ExecuteOptions{}
	if wf != nil {
		eo.Mode = wf.Mode()
	}
	for _, fn := range optFns {
		fn(&eo)
	}
	if eo.Mode == "" {
		eo.Mode = workflow.ModeSync
	}
	if eo.ExecutionID == "" {
		eo.ExecutionID = core.NewID()
	}

	res := &workflow.Result{
		ExecutionID: eo.ExecutionID,
		Mode:        eo.Mode,
		Status:      workflow.StatusNotStarted,
		StartedAt:   time.Now(),
		StepResults: []workflow.StepResult{},
	}

	if wf == nil {
		res.Fail("", &core.ConfigError{Field: "workflow", Message: "workflow is nil"})
		return e.finish(ctx, nil, res)
	}
	res.WorkflowID = wf.ID()

	if err := e.acquire(ctx); err != nil {
		res.Fail("", err)
		return e.finish(ctx, wf, res)
	}
	defer e.release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.track(eo.ExecutionID, cancel)
	defer e.untrack(eo.ExecutionID)

	x := &execution{
		id:        eo.ExecutionID,
		wf:        wf,
		input:     input,
		opts:      eo,
		budget:    core.NewCallBudget(e.config.MaxModelCalls),
		result:    res,
		sessionID: eo.SessionID,
	}

	res.Status = workflow.StatusRunning
	e.logger.Info("engine.workflow.start",
		"workflow", wf.ID(),
		"execution_id", x.id,
		"mode", string(eo.Mode),
		"steps", wf.Len(),
	)

	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackBeforeWorkflow, x.callbackContext()); err != nil {
		res.Fail("", fmt.Errorf("before workflow callback: %w", err))
		return e.finish(ctx, wf, res)
	}

	switch eo.Mode {
	case workflow.ModeSync:
		e.runSequential(ctx, x)
	case workflow.ModeParallel:
		e.runParallel(ctx, x)
	default:
		res.Fail("", &core.ConfigError{Field: "mode", Message: fmt.Sprintf("unknown execution mode %q", eo.Mode)})
	}

	if res.Status == workflow.StatusRunning {
		res.Status = workflow.StatusCompleted
	}

	return e.finish(ctx, wf, res)
}

// ExecuteAsync starts Execute in a goroutine. It returns the execution id,
// usable with Cancel, and a channel delivering exactly one result.
func (e *Engine) ExecuteAsync(
	ctx context.Context,
	wf *workflow.Workflow,
	input string,
	optFns ...func(o *ExecuteOptions),
) (string, <-chan *workflow.Result) {
	id := core.NewID()
	out := make(chan *workflow.Result, 1)

	// Tracked before returning so Cancel(id) works immediately.
	ctx, cancel := context.WithCancel(ctx)
	e.track(id, cancel)

	fns := append(slices.Clone(optFns), func(o *ExecuteOptions) { o.ExecutionID = id })
	go func() {
		defer close(out)
		defer e.untrack(id)
		defer cancel()
		out <- e.Execute(ctx, wf, input, fns...)
	}()

	return id, out
}

// Cancel stops a running execution. The execution finishes with
// StatusFailed and a context.Canceled error.
func (e *Engine) Cancel(executionID string) error {
	e.activeMu.RLock()
	cancel, ok := e.active[executionID]
	e.activeMu.RUnlock()

	if !ok {
		return fmt.Errorf("execution %s not found", executionID)
	}

	cancel()

	return nil
}

// ActiveExecutions returns the ids of running executions.
func (e *Engine) ActiveExecutions() []string {
	e.activeMu.RLock()
	defer e.activeMu.RUnlock()

	ids := make([]string, 0, len(e.active))
	for id := range e.active {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids
}

func (e *Engine) acquire(ctx context.Context) error {
	if e.slots == nil {
		return ctx.Err()
	}
	select {
	case e.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) release() {
	if e.slots != nil {
		<-e.slots
	}
}

func (e *Engine) track(id string, cancel context.CancelFunc) {
	e.activeMu.Lock()
	defer e.activeMu.Unlock()

	if prev, ok := e.active[id]; ok {
		// ExecuteAsync pre-registers; chain both so Cancel reaches either.
		e.active[id] = func() { prev(); cancel() }
		return
	}
	e.active[id] = cancel
}

func (e *Engine) untrack(id string) {
	e.activeMu.Lock()
	defer e.activeMu.Unlock()
	delete(e.active, id)
}

func (e *Engine) finish(ctx context.Context, wf *workflow.Workflow, res *workflow.Result) *workflow.Result {
	res.Duration = time.Since(res.StartedAt)

	steps := 0
	if wf != nil {
		steps = wf.Len()
	}
	logging.LogWorkflowExecution(e.logger, res.WorkflowID, res.ExecutionID, steps, res.Duration, res.Err)

	cc := &CallbackContext{
		ExecutionID: res.ExecutionID,
		WorkflowID:  res.WorkflowID,
		Result:      res,
		Err:         res.Err,
	}
	// The execution context may already be canceled; after callbacks still
	// observe the final result.
	if err := e.callbacks.ExecuteCallbacks(context.WithoutCancel(ctx), CallbackAfterWorkflow, cc); err != nil {
		e.logger.Warn("engine.callback.failed", "callback", string(CallbackAfterWorkflow), "error", err)
	}

	return res
}

// IsAgentNotFound reports whether a result failed because a step referenced
// an unregistered agent.
func IsAgentNotFound(res *workflow.Result) bool {
	return res != nil && errors.Is(res.Err, core.ErrAgentNotFound)
}
