package engine

import (
	"context"
	"sync"
	"time"

	"github.com/langswarm/langswarm/agent"
	"github.com/langswarm/langswarm/core"
	"github.com/langswarm/langswarm/workflow"
)

// execution is the per-call state shared by the steps of one Execute.
type execution struct {
	id        string
	wf        *workflow.Workflow
	input     string
	opts      ExecuteOptions
	budget    *core.CallBudget
	result    *workflow.Result
	sessionID string
}

func (x *execution) callbackContext() *CallbackContext {
	return &CallbackContext{
		ExecutionID: x.id,
		WorkflowID:  x.wf.ID(),
		Result:      x.result,
	}
}

// runSequential feeds each step's output into the next step. After the first
// failure remaining steps are skipped, except the aggregate step which still
// synthesizes the successful outputs unless the execution was canceled.
func (e *Engine) runSequential(ctx context.Context, x *execution) {
	data := workflow.TemplateData{
		Input:    x.input,
		Previous: x.input,
		Outputs:  make(map[string]string),
	}

	failed := false
	for _, step := range x.wf.Steps() {
		if failed && (!step.Aggregate || ctx.Err() != nil) {
			x.result.StepResults = append(x.result.StepResults, skipped(step))
			continue
		}

		sr := e.runStep(ctx, x, step, data, x.sessionID)
		x.result.StepResults = append(x.result.StepResults, sr)

		if sr.Status != workflow.StatusCompleted {
			x.result.Fail(step.Name, sr.Err)
			failed = true
			continue
		}

		data.Previous = sr.Output
		data.Outputs[step.Name] = sr.Output
		data.Results = append(data.Results, sr)
		x.result.Output = sr.Output
	}
}

// runParallel runs every regular step concurrently over the workflow input.
// Results are recorded in declaration order, the aggregate step then runs
// over the completed outputs. Without an aggregate step the output is the
// labelled concatenation of completed outputs. With a session each regular
// step converses in its own session "<session>/<step>"; the aggregate step
// uses the execution session.
func (e *Engine) runParallel(ctx context.Context, x *execution) {
	steps := x.wf.Steps()
	agg, hasAgg := x.wf.AggregateStep()
	if hasAgg {
		steps = steps[:len(steps)-1]
	}

	data := workflow.TemplateData{
		Input:    x.input,
		Previous: x.input,
		Outputs:  map[string]string{},
	}

	limit := e.config.MaxParallelSteps
	if limit <= 0 || limit > len(steps) {
		limit = len(steps)
	}

	results := make([]workflow.StepResult, len(steps))
	sem := make(chan struct{}, max(limit, 1))

	var wg sync.WaitGroup
	for i, step := range steps {
		wg.Add(1)
		go func(idx int, step workflow.Step) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[idx] = e.runStep(ctx, x, step, data, stepSession(x.sessionID, step))
		}(i, step)
	}
	wg.Wait()

	aggData := workflow.TemplateData{
		Input:    x.input,
		Previous: x.input,
		Outputs:  make(map[string]string),
	}
	for _, sr := range results {
		x.result.StepResults = append(x.result.StepResults, sr)
		if sr.Status != workflow.StatusCompleted {
			x.result.Fail(sr.StepName, sr.Err)
			continue
		}
		aggData.Outputs[sr.StepName] = sr.Output
		aggData.Results = append(aggData.Results, sr)
	}
	x.result.Output = workflow.FormatOutputs(aggData.Results)

	if !hasAgg {
		return
	}
	if ctx.Err() != nil {
		x.result.StepResults = append(x.result.StepResults, skipped(agg))
		x.result.Fail(agg.Name, ctx.Err())
		return
	}

	sr := e.runStep(ctx, x, agg, aggData, x.sessionID)
	x.result.StepResults = append(x.result.StepResults, sr)
	if sr.Status != workflow.StatusCompleted {
		x.result.Fail(agg.Name, sr.Err)
		return
	}
	x.result.Output = sr.Output
}

// runStep resolves the step's agent, renders its input and invokes the
// agent in sessionID. Every failure is returned as a StepResult with a
// *core.StepError.
func (e *Engine) runStep(ctx context.Context, x *execution, step workflow.Step, data workflow.TemplateData, sessionID string) workflow.StepResult {
	start := time.Now()
	sr := workflow.StepResult{
		StepName: step.Name,
		AgentID:  step.AgentID,
		Status:   workflow.StatusRunning,
	}

	cc := x.callbackContext()
	cc.Step = &step
	cc.AgentID = step.AgentID
	cc.StepResult = &sr

	fail := func(err error) workflow.StepResult {
		sr.Status = workflow.StatusFailed
		sr.Err = &core.StepError{Step: step.Name, AgentID: step.AgentID, Err: err}
		sr.Error = sr.Err.Error()
		sr.Duration = time.Since(start)
		cc.Err = sr.Err
		e.logger.Error("engine.step.failed",
			"execution_id", x.id,
			"step", step.Name,
			"agent", step.AgentID,
			"duration_ms", sr.Duration.Milliseconds(),
			"error", err,
		)
		if cbErr := e.callbacks.ExecuteCallbacks(context.WithoutCancel(ctx), CallbackOnError, cc); cbErr != nil {
			e.logger.Warn("engine.callback.failed", "callback", string(CallbackOnError), "error", cbErr)
		}
		return sr
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	a, err := e.registry.Lookup(step.AgentID)
	if err != nil {
		return fail(err)
	}

	input, err := step.RenderInput(data)
	if err != nil {
		return fail(err)
	}
	sr.Input = input
	cc.Input = input

	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackBeforeStep, cc); err != nil {
		return fail(err)
	}

	e.logger.Info("engine.step.start",
		"execution_id", x.id,
		"step", step.Name,
		"agent", step.AgentID,
		"streaming", a.Streaming(),
	)

	stepCtx := ctx
	if e.config.StepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, e.config.StepTimeout)
		defer cancel()
	}

	output, err := e.invokeAgent(stepCtx, x, a, cc, sessionID)
	if err != nil {
		return fail(err)
	}

	sr.Output = output
	sr.Status = workflow.StatusCompleted
	sr.Duration = time.Since(start)

	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackAfterStep, cc); err != nil {
		return fail(err)
	}

	e.logger.Info("engine.step.completed",
		"execution_id", x.id,
		"step", step.Name,
		"agent", step.AgentID,
		"duration_ms", sr.Duration.Milliseconds(),
	)

	return sr
}

// invokeAgent runs one agent turn. Streaming agents are driven through
// StreamChat so chunks reach OnChunk observers; others use Chat.
func (e *Engine) invokeAgent(ctx context.Context, x *execution, a *agent.Agent, cc *CallbackContext, sessionID string) (string, error) {
	ctx = core.WithBudget(ctx, x.budget)
	withSession := func(o *agent.CallOptions) { o.SessionID = sessionID }

	if !a.Streaming() {
		return a.Chat(ctx, cc.Input, withSession)
	}

	agg, err := a.StreamChat(ctx, sessionID, cc.Input, withSession)
	if err != nil {
		return "", err
	}

	for chunk, err := range agg.Chunks(ctx) {
		if err != nil {
			return "", err
		}
		if x.opts.OnChunk != nil {
			x.opts.OnChunk(cc.Step.Name, chunk)
		}
		chunkCtx := *cc
		chunkCtx.Chunk = &chunk
		if err := e.callbacks.ExecuteCallbacks(ctx, CallbackOnChunk, &chunkCtx); err != nil {
			return "", err
		}
	}

	return agg.Content(), nil
}

// stepSession names the session of a parallel step. Stateless executions
// stay stateless.
func stepSession(sessionID string, step workflow.Step) string {
	if sessionID == "" {
		return ""
	}
	return sessionID + "/" + step.Name
}

func skipped(step workflow.Step) workflow.StepResult {
	return workflow.StepResult{
		StepName: step.Name,
		AgentID:  step.AgentID,
		Status:   workflow.StatusSkipped,
	}
}
