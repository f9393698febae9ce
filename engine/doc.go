// Package engine executes workflows: it resolves each step's agent through an
// injected agent.Registry, invokes it, chains outputs between steps and
// produces a workflow.Result with a terminal status.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────┐
//	│                    Client Layer                         │
//	├─────────────────────────────────────────────────────────┤
//	│                  Engine Interface                       │
//	│  ┌─────────────┐ ┌──────────────┐ ┌─────────────────┐   │
//	│  │   Execute   │ │ ExecuteAsync │ │     Cancel      │   │
//	│  └─────────────┘ └──────────────┘ └─────────────────┘   │
//	├─────────────────────────────────────────────────────────┤
//	│                 Orchestration Layer                     │
//	│  ┌─────────────┐ ┌─────────────┐ ┌─────────────────┐   │
//	│  │ Sequential/ │ │  Callbacks  │ │  Concurrency    │   │
//	│  │  Parallel   │ │  Manager    │ │ + Call Budget   │   │
//	│  └─────────────┘ └─────────────┘ └─────────────────┘   │
//	├─────────────────────────────────────────────────────────┤
//	│                    Agent Layer                          │
//	│  ┌─────────────┐ ┌─────────────┐ ┌─────────────────┐   │
//	│  │  Registry   │ │ StreamChat  │ │      Chat       │   │
//	│  └─────────────┘ └─────────────┘ └─────────────────┘   │
//	└─────────────────────────────────────────────────────────┘
//
// # Execution Modes
//
// ModeSync runs steps in declaration order. Step N starts only after step
// N-1 completed, and receives its output as input (or the rendered
// InputTemplate). The first failure marks the result FAILED, records
// FailedStep and Err, and skips the remaining steps. An aggregate step still
// runs over the outputs that succeeded.
//
// ModeParallel runs all regular steps concurrently with the workflow input.
// The aggregate step, if declared, receives the outputs in declaration order.
//
// # Usage
//
//	registry := agent.NewRegistry(researcher, summarizer)
//	eng := engine.New(func(o *engine.Options) {
//	    o.Registry = registry
//	    o.Logger = logger
//	})
//
//	wf, _ := workflow.NewBuilder("research_and_summarize").
//	    Step("research", "researcher").
//	    Step("summary", "summarizer").
//	    Build()
//
//	res := eng.Execute(ctx, wf, "What are the key benefits of renewable energy?")
//	if res.Status != workflow.StatusCompleted {
//	    return res.Err
//	}
//
// # Error Handling
//
// Execute never panics or returns a Go error for runtime failures. Unknown
// agents, provider errors, tool errors, budget exhaustion and cancellation
// all surface as a failed Result whose Err wraps a *core.StepError, so
// errors.Is(res.Err, core.ErrAgentNotFound) and friends work. Failed steps
// are never retried; re-invoke Execute to retry.
//
// # Concurrency Model
//
//   - Executions are bounded by Config.MaxConcurrentExecutions
//   - Each execution has its own cancelable context, tracked for Cancel
//   - Provider calls of one execution share a core.CallBudget
//   - Callbacks may be invoked concurrently by parallel steps
package engine
