// Command langswarm runs agents and workflows declared in a TOML file.
//
// Run a workflow and print its result as JSON:
//
//	langswarm -config langswarm.toml -workflow research_and_summarize -input "What are the key benefits of renewable energy?"
//
// Chat with a single agent; without -input an interactive session starts:
//
//	langswarm -config langswarm.toml -agent researcher
//
// API keys are read from the environment (OPENAI_API_KEY, ANTHROPIC_API_KEY,
// GEMINI_API_KEY, AZURE_OPENAI_API_KEY) or a .env file.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/langswarm/langswarm/config"
	"github.com/langswarm/langswarm/core"
	"github.com/langswarm/langswarm/engine"
	"github.com/langswarm/langswarm/logging"
	"github.com/langswarm/langswarm/workflow"
)

func main() {
	// Load .env file if present (ignored if missing).
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", "langswarm.toml", "Path to the TOML configuration")
		workflowID = flag.String("workflow", "", "Workflow to execute")
		agentID    = flag.String("agent", "", "Agent to chat with")
		input      = flag.String("input", "", "Input message; interactive chat when empty with -agent")
		mode       = flag.String("mode", "", "Override the workflow execution mode (sync, parallel)")
		sessionID  = flag.String("session", "", "Session id shared by every step or chat turn")
		verbose    = flag.Bool("verbose", false, "Log workflow and step lifecycle events")
		list       = flag.Bool("list", false, "List configured agents and workflows")
	)
	flag.Parse()

	if err := run(*configPath, *workflowID, *agentID, *input, *mode, *sessionID, *verbose, *list); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(configPath, workflowID, agentID, input, mode, sessionID string, verbose, list bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.NewSlogAdapter(logging.NewLogger(cfg.Logging.LoggerConfig()))

	var callbacks *engine.CallbackManager
	if verbose {
		callbacks = engine.NewCallbackManager()
		for _, t := range []engine.CallbackType{
			engine.CallbackBeforeWorkflow,
			engine.CallbackAfterWorkflow,
			engine.CallbackBeforeStep,
			engine.CallbackAfterStep,
			engine.CallbackOnError,
		} {
			callbacks.RegisterCallback(engine.NewLoggingCallback(t, logger))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := config.NewRuntime(ctx, cfg, func(o *config.RuntimeOptions) {
		o.Logger = logger
		o.Callbacks = callbacks
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("langswarm.close_failed", "error", err)
		}
	}()

	switch {
	case list:
		fmt.Println("agents:   ", strings.Join(rt.Registry.List(), ", "))
		fmt.Println("workflows:", strings.Join(rt.Workflows(), ", "))
		return nil
	case workflowID != "":
		return runWorkflow(ctx, rt, workflowID, input, mode, sessionID)
	case agentID != "":
		return chat(ctx, rt, agentID, input, sessionID)
	default:
		return fmt.Errorf("one of -workflow, -agent or -list is required")
	}
}

func runWorkflow(ctx context.Context, rt *config.Runtime, id, input, mode, sessionID string) error {
	wf, ok := rt.Workflow(id)
	if !ok {
		return fmt.Errorf("workflow %q not found (available: %s)", id, strings.Join(rt.Workflows(), ", "))
	}

	execMode, err := workflow.ParseExecutionMode(mode)
	if err != nil {
		return err
	}

	res := rt.Engine.Execute(ctx, wf, input, func(o *engine.ExecuteOptions) {
		if mode != "" {
			o.Mode = execMode
		}
		o.SessionID = sessionID
		o.OnChunk = func(step string, chunk core.StreamChunk) {
			fmt.Fprint(os.Stderr, chunk.Content)
			if chunk.IsComplete() {
				fmt.Fprintln(os.Stderr)
			}
		}
	})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if !res.Succeeded() {
		return res.Err
	}
	return nil
}

func chat(ctx context.Context, rt *config.Runtime, agentID, input, sessionID string) error {
	a, err := rt.Registry.Lookup(agentID)
	if err != nil {
		return err
	}
	if sessionID == "" {
		if sessionID, err = a.NewSession(); err != nil {
			return err
		}
	}

	turn := func(msg string) error {
		agg, err := a.StreamChat(ctx, sessionID, msg)
		if err != nil {
			return err
		}
		for chunk, err := range agg.Chunks(ctx) {
			if err != nil {
				fmt.Println()
				return err
			}
			fmt.Print(chunk.Content)
		}
		fmt.Println()
		return nil
	}

	if input != "" {
		return turn(input)
	}

	fmt.Printf("Chatting with %s (session %s). Type 'exit' to quit.\n", agentID, sessionID)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		if err := turn(line); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			if ctx.Err() != nil {
				return nil
			}
		}
	}
}
