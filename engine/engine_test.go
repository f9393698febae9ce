package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langswarm/langswarm/agent"
	"github.com/langswarm/langswarm/core"
	"github.com/langswarm/langswarm/internal/testutil"
	"github.com/langswarm/langswarm/model"
	"github.com/langswarm/langswarm/session"
	"github.com/langswarm/langswarm/tool"
	"github.com/langswarm/langswarm/workflow"
)

type agentOpt func(cfg *agent.Config, o *agent.Options)

func newAgent(t *testing.T, id string, p model.Provider, opts ...agentOpt) *agent.Agent {
	t.Helper()
	cfg := agent.Config{Provider: core.ProviderMock, Model: "scripted"}
	o := agent.Options{Provider: p}
	for _, fn := range opts {
		fn(&cfg, &o)
	}
	a, err := agent.New(id, cfg, func(dst *agent.Options) { *dst = o })
	require.NoError(t, err)
	return a
}

func streaming(cfg *agent.Config, _ *agent.Options) { cfg.Streaming = true }

func newEngine(agents ...*agent.Agent) *Engine {
	return New(func(o *Options) { o.Registry = agent.NewRegistry(agents...) })
}

func mustBuild(t *testing.T, b *workflow.Builder) *workflow.Workflow {
	t.Helper()
	wf, err := b.Build()
	require.NoError(t, err)
	return wf
}

func TestExecute_ResearchAndSummarize(t *testing.T) {
	researcher := model.NewScriptedProvider("researcher")
	researcher.AddTurn(testutil.TextTurn("Renewables cut emissions and lower long-term costs.")...)
	summarizer := model.NewScriptedProvider("summarizer")
	summarizer.AddTurn(testutil.TextTurn("Cleaner and cheaper.")...)

	eng := newEngine(
		newAgent(t, "researcher", researcher, streaming),
		newAgent(t, "summarizer", summarizer),
	)
	wf := mustBuild(t, workflow.NewBuilder("research_and_summarize").
		Step("research", "researcher").
		Step("summary", "summarizer"))

	res := eng.Execute(context.Background(), wf, "What are the key benefits of renewable energy?")

	require.Equal(t, workflow.StatusCompleted, res.Status, res.Error)
	require.Len(t, res.StepResults, 2)
	assert.NotEmpty(t, res.Output)
	assert.Equal(t, "Cleaner and cheaper.", res.Output)
	assert.Equal(t, "research_and_summarize", res.WorkflowID)
	assert.NotEmpty(t, res.ExecutionID)
	assert.NoError(t, res.Err)

	assert.Equal(t, "researcher", res.StepResults[0].AgentID)
	assert.Equal(t, "summarizer", res.StepResults[1].AgentID)
	assert.Equal(t, "What are the key benefits of renewable energy?", res.StepResults[0].Input)

	// The summarizer receives the researcher's output.
	reqs := summarizer.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Renewables cut emissions and lower long-term costs.", core.LastUserText(reqs[0].Messages))
}

func TestExecute_NStepsAllSucceed(t *testing.T) {
	for n := 1; n <= 5; n++ {
		t.Run(fmt.Sprintf("%d steps", n), func(t *testing.T) {
			var agents []*agent.Agent
			b := workflow.NewBuilder("chain")
			for i := 0; i < n; i++ {
				id := fmt.Sprintf("agent-%d", i)
				agents = append(agents, newAgent(t, id, model.NewScriptedProvider(id)))
				b.Step("", id)
			}

			res := newEngine(agents...).Execute(context.Background(), mustBuild(t, b), "start")

			require.Equal(t, workflow.StatusCompleted, res.Status)
			require.Len(t, res.StepResults, n)
			for i, sr := range res.StepResults {
				assert.Equal(t, fmt.Sprintf("agent-%d", i), sr.AgentID)
				assert.Equal(t, workflow.StatusCompleted, sr.Status)
			}
		})
	}
}

func TestExecute_UnknownAgent(t *testing.T) {
	eng := newEngine(newAgent(t, "researcher", model.NewScriptedProvider("r")))
	wf := mustBuild(t, workflow.NewBuilder("wf").
		Step("research", "researcher").
		Step("review", "ghost").
		Step("publish", "researcher"))

	res := eng.Execute(context.Background(), wf, "input")

	assert.Equal(t, workflow.StatusFailed, res.Status)
	assert.Equal(t, "review", res.FailedStep)
	assert.True(t, IsAgentNotFound(res))
	assert.Contains(t, res.Error, "ghost")

	var nf *core.AgentNotFoundError
	require.True(t, errors.As(res.Err, &nf))
	assert.Equal(t, "ghost", nf.ID)

	var stepErr *core.StepError
	require.True(t, errors.As(res.Err, &stepErr))
	assert.Equal(t, "review", stepErr.Step)

	require.Len(t, res.StepResults, 3)
	assert.Equal(t, workflow.StatusCompleted, res.StepResults[0].Status)
	assert.Equal(t, workflow.StatusFailed, res.StepResults[1].Status)
	assert.Equal(t, workflow.StatusSkipped, res.StepResults[2].Status)
}

func TestExecute_HaltsOnProviderError(t *testing.T) {
	boom := errors.New("rate limited")
	failing := model.NewScriptedProvider("b")
	failing.AddError(boom)
	third := model.NewScriptedProvider("c")

	eng := newEngine(
		newAgent(t, "a", model.NewScriptedProvider("a")),
		newAgent(t, "b", failing),
		newAgent(t, "c", third),
	)
	wf := mustBuild(t, workflow.NewBuilder("wf").Step("", "a").Step("", "b").Step("", "c"))

	res := eng.Execute(context.Background(), wf, "go")

	assert.Equal(t, workflow.StatusFailed, res.Status)
	assert.Equal(t, "b", res.FailedStep)
	assert.ErrorIs(t, res.Err, boom)
	assert.Equal(t, 0, third.CallCount())
	assert.Equal(t, "Mock response to: go", res.StepResults[0].Output)
	assert.Equal(t, workflow.StatusSkipped, res.StepResults[2].Status)
}

func TestExecute_AggregateRunsAfterFailure(t *testing.T) {
	failing := model.NewScriptedProvider("b")
	failing.AddError(errors.New("down"))
	merger := model.NewScriptedProvider("merge")
	merger.AddTurn(testutil.TextTurn("merged")...)

	eng := newEngine(
		newAgent(t, "a", model.NewScriptedProvider("a")),
		newAgent(t, "b", failing),
		newAgent(t, "c", model.NewScriptedProvider("c")),
		newAgent(t, "merger", merger),
	)
	wf := mustBuild(t, workflow.NewBuilder("wf").
		Step("a", "a").
		Step("b", "b").
		Step("c", "c").
		Aggregate("merge", "merger", ""))

	res := eng.Execute(context.Background(), wf, "topic")

	assert.Equal(t, workflow.StatusFailed, res.Status)
	assert.Equal(t, "b", res.FailedStep)
	require.Len(t, res.StepResults, 4)
	assert.Equal(t, workflow.StatusSkipped, res.StepResults[2].Status)
	assert.Equal(t, workflow.StatusCompleted, res.StepResults[3].Status)
	assert.Equal(t, "merged", res.Output)

	reqs := merger.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "[a]\nMock response to: topic", core.LastUserText(reqs[0].Messages))
}

func TestExecute_InputTemplate(t *testing.T) {
	writer := model.NewScriptedProvider("writer")
	eng := newEngine(
		newAgent(t, "researcher", model.NewScriptedProvider("r")),
		newAgent(t, "writer", writer),
	)
	wf := mustBuild(t, workflow.NewBuilder("wf").
		Step("research", "researcher").
		TemplateStep("write", "writer", "Question: {{.Input}}\nNotes: {{.Outputs.research}}"))

	res := eng.Execute(context.Background(), wf, "why?")
	require.Equal(t, workflow.StatusCompleted, res.Status)

	reqs := writer.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Question: why?\nNotes: Mock response to: why?", core.LastUserText(reqs[0].Messages))
}

// barrierProvider blocks each Stream call until n calls have arrived, so a
// test deadlocks (and times out) unless the calls run concurrently.
type barrierProvider struct {
	*model.ScriptedProvider
	wg *sync.WaitGroup
}

func (b barrierProvider) Stream(ctx context.Context, req model.Request) (<-chan model.Delta, <-chan error) {
	b.wg.Done()
	done := make(chan struct{})
	go func() { b.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
	}
	return b.ScriptedProvider.Stream(ctx, req)
}

func (b barrierProvider) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	return model.CompleteFromStream(ctx, b, req)
}

func TestExecute_Parallel(t *testing.T) {
	var barrier sync.WaitGroup
	barrier.Add(3)

	merger := model.NewScriptedProvider("merge")
	var agents []*agent.Agent
	for _, id := range []string{"a", "b", "c"} {
		p := model.NewScriptedProvider(id)
		p.AddResponse("topic", "out-"+id)
		agents = append(agents, newAgent(t, id, barrierProvider{ScriptedProvider: p, wg: &barrier}))
	}
	agents = append(agents, newAgent(t, "merger", merger))

	eng := newEngine(agents...)
	wf := mustBuild(t, workflow.NewBuilder("wf").
		Mode(workflow.ModeParallel).
		Step("a", "a").
		Step("b", "b").
		Step("c", "c").
		Aggregate("merge", "merger", "{{.Outputs.a}}|{{.Outputs.b}}|{{.Outputs.c}}"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res := eng.Execute(ctx, wf, "topic")

	require.Equal(t, workflow.StatusCompleted, res.Status, res.Error)
	assert.Equal(t, workflow.ModeParallel, res.Mode)
	require.Len(t, res.StepResults, 4)
	for i, name := range []string{"a", "b", "c", "merge"} {
		assert.Equal(t, name, res.StepResults[i].StepName)
	}
	for _, sr := range res.StepResults[:3] {
		assert.Equal(t, "topic", sr.Input)
	}

	reqs := merger.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "out-a|out-b|out-c", core.LastUserText(reqs[0].Messages))
	assert.Equal(t, "Mock response to: out-a|out-b|out-c", res.Output)
}

func TestExecute_ParallelFailureAndModeOverride(t *testing.T) {
	failing := model.NewScriptedProvider("b")
	failing.AddError(errors.New("down"))

	eng := newEngine(
		newAgent(t, "a", model.NewScriptedProvider("a")),
		newAgent(t, "b", failing),
	)
	wf := mustBuild(t, workflow.NewBuilder("wf").Step("a", "a").Step("b", "b"))

	res := eng.Execute(context.Background(), wf, "x", func(o *ExecuteOptions) { o.Mode = workflow.ModeParallel })

	assert.Equal(t, workflow.StatusFailed, res.Status)
	assert.Equal(t, "b", res.FailedStep)
	assert.Equal(t, workflow.StatusCompleted, res.StepResults[0].Status)
	assert.Equal(t, "[a]\nMock response to: x", res.Output)
}

func TestExecute_StreamingStepWithTools(t *testing.T) {
	calc := testutil.NewRecordingTool("calculator", "4")
	p := model.NewScriptedProvider("m")
	p.AddTurn(testutil.NewTurnBuilder().ToolCall(0, "call_1", "calculator", `{"expression":"2+2"}`).ToolCalls().Deltas()...)
	p.AddTurn(testutil.TextTurn("The answer is 4")...)

	a := newAgent(t, "math", p, func(cfg *agent.Config, o *agent.Options) {
		cfg.Streaming = true
		cfg.ToolsEnabled = true
		o.ToolSource = tool.NewRegistry(calc)
	})
	eng := newEngine(a)
	wf := mustBuild(t, workflow.NewBuilder("wf").Step("solve", "math"))

	var mu sync.Mutex
	var chunks []core.StreamChunk
	res := eng.Execute(context.Background(), wf, "2+2?", func(o *ExecuteOptions) {
		o.OnChunk = func(step string, c core.StreamChunk) {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, "solve", step)
			chunks = append(chunks, c)
		}
	})

	require.Equal(t, workflow.StatusCompleted, res.Status, res.Error)
	assert.Equal(t, "The answer is 4", res.Output)
	assert.Equal(t, 1, calc.CallCount())
	require.NotEmpty(t, chunks)
	assert.True(t, chunks[len(chunks)-1].IsComplete())
}

func TestExecute_ToolNotFoundFailsStep(t *testing.T) {
	p := model.NewScriptedProvider("m")
	p.AddTurn(testutil.NewTurnBuilder().ToolCall(0, "c", "nope", `{}`).ToolCalls().Deltas()...)

	a := newAgent(t, "a", p, func(cfg *agent.Config, _ *agent.Options) {
		cfg.Streaming = true
		cfg.ToolsEnabled = true
	})
	res := newEngine(a).Execute(context.Background(), mustBuild(t, workflow.NewBuilder("wf").Step("s", "a")), "x")

	assert.Equal(t, workflow.StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, core.ErrToolNotFound)
}

func TestExecute_CallBudget(t *testing.T) {
	second := model.NewScriptedProvider("b")
	eng := New(func(o *Options) {
		o.Registry = agent.NewRegistry(
			newAgent(t, "a", model.NewScriptedProvider("a")),
			newAgent(t, "b", second, streaming),
		)
		o.Config.MaxModelCalls = 1
	})
	wf := mustBuild(t, workflow.NewBuilder("wf").Step("", "a").Step("", "b"))

	res := eng.Execute(context.Background(), wf, "x")

	assert.Equal(t, workflow.StatusFailed, res.Status)
	assert.Equal(t, "b", res.FailedStep)
	assert.ErrorIs(t, res.Err, core.ErrBudgetExceeded)
	assert.Equal(t, 0, second.CallCount())
}

func TestExecute_DelegateChargedToExecutionBudget(t *testing.T) {
	researcher := model.NewScriptedProvider("researcher")
	delegate := newAgent(t, "researcher", researcher)

	lead := model.NewScriptedProvider("lead")
	lead.AddTurn(testutil.NewTurnBuilder().
		ToolCall(0, "c1", agent.DelegateToolName("researcher"), `{"input":"dig"}`).
		ToolCalls().Deltas()...)
	lead.AddTurn(testutil.TextTurn("never")...)

	coordinator := newAgent(t, "lead", lead, func(cfg *agent.Config, o *agent.Options) {
		cfg.ToolsEnabled = true
		o.ToolSource = tool.NewRegistry(agent.AsTool(delegate, ""))
	})
	eng := New(func(o *Options) {
		o.Registry = agent.NewRegistry(coordinator)
		o.Config.MaxModelCalls = 1
	})

	res := eng.Execute(context.Background(), mustBuild(t, workflow.NewBuilder("wf").Step("plan", "lead")), "x")

	assert.Equal(t, workflow.StatusFailed, res.Status)
	assert.Equal(t, "plan", res.FailedStep)
	assert.ErrorIs(t, res.Err, core.ErrBudgetExceeded)
	assert.Equal(t, 1, lead.CallCount())
	assert.Equal(t, 0, researcher.CallCount())
}

func TestExecute_ParallelStepsKeepSeparateSessions(t *testing.T) {
	store := session.NewInMemoryStore()
	withStore := func(_ *agent.Config, o *agent.Options) { o.Sessions = store }

	providers := map[string]*model.ScriptedProvider{}
	var agents []*agent.Agent
	for _, id := range []string{"a", "b"} {
		p := model.NewScriptedProvider(id)
		p.AddResponse("topic", "out-"+id)
		providers[id] = p
		agents = append(agents, newAgent(t, id, p, withStore))
	}
	// One streaming step covers the StreamChat commit path.
	agents[1] = newAgent(t, "b", providers["b"], withStore, streaming)
	merger := model.NewScriptedProvider("merge")
	agents = append(agents, newAgent(t, "merger", merger, withStore))

	eng := newEngine(agents...)
	wf := mustBuild(t, workflow.NewBuilder("wf").
		Mode(workflow.ModeParallel).
		Step("a", "a").
		Step("b", "b").
		Aggregate("merge", "merger", "{{.Outputs.a}}|{{.Outputs.b}}"))

	for range 2 {
		res := eng.Execute(context.Background(), wf, "topic", func(o *ExecuteOptions) { o.SessionID = "shared" })
		require.Equal(t, workflow.StatusCompleted, res.Status, res.Error)
	}

	for _, id := range []string{"a", "b"} {
		sess, err := store.Get("shared/" + id)
		require.NoError(t, err)
		history := sess.History()
		require.Len(t, history, 4, id)
		for i, m := range history {
			if i%2 == 0 {
				assert.Equal(t, core.RoleUser, m.Role)
				assert.Equal(t, "topic", m.Content)
			} else {
				assert.Equal(t, core.RoleAssistant, m.Role)
				assert.Equal(t, "out-"+id, m.Content)
			}
		}

		reqs := providers[id].Requests()
		require.Len(t, reqs, 2)
		assert.Len(t, reqs[1].Messages, 3)
	}

	sess, err := store.Get("shared")
	require.NoError(t, err)
	assert.Equal(t, 4, sess.Len())
	assert.Equal(t, 3, store.Len())
}

func TestExecute_NilWorkflow(t *testing.T) {
	res := newEngine().Execute(context.Background(), nil, "x")
	assert.Equal(t, workflow.StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, core.ErrConfig)
}

// blockingProvider streams nothing until its context ends.
type blockingProvider struct {
	started chan struct{}
	once    sync.Once
}

func (b *blockingProvider) Stream(ctx context.Context, _ model.Request) (<-chan model.Delta, <-chan error) {
	out := make(chan model.Delta)
	errCh := make(chan error, 1)
	b.once.Do(func() { close(b.started) })
	go func() {
		defer close(out)
		defer close(errCh)
		<-ctx.Done()
		errCh <- ctx.Err()
	}()
	return out, errCh
}

func (b *blockingProvider) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	return model.CompleteFromStream(ctx, b, req)
}

func (b *blockingProvider) Info() model.Info {
	return model.Info{Name: "blocking", Provider: core.ProviderMock}
}

func TestExecuteAsync_Cancel(t *testing.T) {
	bp := &blockingProvider{started: make(chan struct{})}
	eng := newEngine(newAgent(t, "slow", bp, streaming))
	wf := mustBuild(t, workflow.NewBuilder("wf").Step("s", "slow"))

	id, results := eng.ExecuteAsync(context.Background(), wf, "x")
	require.NotEmpty(t, id)

	select {
	case <-bp.started:
	case <-time.After(5 * time.Second):
		t.Fatal("provider was never called")
	}
	assert.Contains(t, eng.ActiveExecutions(), id)
	require.NoError(t, eng.Cancel(id))

	select {
	case res := <-results:
		require.NotNil(t, res)
		assert.Equal(t, id, res.ExecutionID)
		assert.Equal(t, workflow.StatusFailed, res.Status)
		assert.ErrorIs(t, res.Err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("execution did not finish after cancel")
	}

	assert.Eventually(t, func() bool { return len(eng.ActiveExecutions()) == 0 }, time.Second, 10*time.Millisecond)
	assert.Error(t, eng.Cancel(id))
}

func TestExecute_StepTimeout(t *testing.T) {
	bp := &blockingProvider{started: make(chan struct{})}
	eng := New(func(o *Options) {
		o.Registry = agent.NewRegistry(newAgent(t, "slow", bp))
		o.Config.StepTimeout = 20 * time.Millisecond
	})

	res := eng.Execute(context.Background(), mustBuild(t, workflow.NewBuilder("wf").Step("s", "slow")), "x")

	assert.Equal(t, workflow.StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
}

func TestExecute_MaxConcurrentExecutions(t *testing.T) {
	bp := &blockingProvider{started: make(chan struct{})}
	eng := New(func(o *Options) {
		o.Registry = agent.NewRegistry(newAgent(t, "slow", bp))
		o.Config.MaxConcurrentExecutions = 1
	})
	wf := mustBuild(t, workflow.NewBuilder("wf").Step("s", "slow"))

	id, first := eng.ExecuteAsync(context.Background(), wf, "x")
	<-bp.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res := eng.Execute(ctx, wf, "y")
	assert.Equal(t, workflow.StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.Empty(t, res.StepResults)

	require.NoError(t, eng.Cancel(id))
	<-first
}

func TestExecute_Callbacks(t *testing.T) {
	var mu sync.Mutex
	var events []string
	record := func(_ context.Context, cc *CallbackContext) error {
		mu.Lock()
		defer mu.Unlock()
		name := string(cc.CallbackType)
		if cc.Step != nil {
			name += ":" + cc.Step.Name
		}
		events = append(events, name)
		return nil
	}

	cbs := NewCallbackManager()
	for _, ct := range []CallbackType{CallbackBeforeWorkflow, CallbackBeforeStep, CallbackAfterStep, CallbackOnError, CallbackAfterWorkflow} {
		cbs.RegisterCallback(NewFunctionCallback(ct, record))
	}
	cbs.RegisterCallback(NewInputValidationCallback(func(step workflow.Step, input string) error {
		if strings.Contains(input, "forbidden") {
			return errors.New("input rejected")
		}
		return nil
	}))

	eng := New(func(o *Options) {
		o.Registry = agent.NewRegistry(newAgent(t, "a", model.NewScriptedProvider("a")))
		o.Callbacks = cbs
	})
	wf := mustBuild(t, workflow.NewBuilder("wf").Step("first", "a").TemplateStep("second", "a", "forbidden {{.Previous}}"))

	res := eng.Execute(context.Background(), wf, "x")

	assert.Equal(t, workflow.StatusFailed, res.Status)
	assert.Equal(t, "second", res.FailedStep)
	assert.Contains(t, res.Error, "input rejected")
	assert.Equal(t, []string{
		"before_workflow",
		"before_step:first",
		"after_step:first",
		"before_step:second",
		"on_error:second",
		"after_workflow",
	}, events)
}

func TestCancel_Unknown(t *testing.T) {
	assert.Error(t, newEngine().Cancel("missing"))
}
