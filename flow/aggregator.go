package flow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/langswarm/langswarm/core"
	"github.com/langswarm/langswarm/logging"
	"github.com/langswarm/langswarm/model"
	"github.com/langswarm/langswarm/tool"
)

// DefaultMaxToolRounds bounds the number of tool batches executed in one turn.
const DefaultMaxToolRounds = 10

// Options configure an Aggregator.
type Options struct {
	// MaxToolRounds is the maximum number of tool batches per turn. A further
	// tool_calls finish fails the turn with core.ErrToolLoopExceeded.
	MaxToolRounds int
	// Budget is charged once per provider invocation. Nil means unlimited.
	Budget *core.CallBudget
	Logger logging.Logger
	// ContinueOnToolError reports tool execution failures back to the model
	// instead of failing the turn. Unknown tools always fail the turn.
	ContinueOnToolError bool
	// OnComplete receives every assistant and tool message produced by the
	// turn, in order, once the turn completes. Failed turns never commit, so
	// a stored history never holds tool calls without their results.
	OnComplete func(turn []core.Message)
	// AgentID labels log records.
	AgentID string
}

// Aggregator turns a streaming provider response into StreamChunks, running
// the tool call loop in between provider rounds. It is not safe for
// concurrent use; one consumer drives it through Next.
type Aggregator struct {
	provider model.Provider
	invoker  *tool.Invoker
	base     model.Request
	opts     Options

	messages   []core.Message
	turnStart  int
	usage      model.TokenUsage
	state      State
	round      int
	toolRounds int
	acc        model.Accumulator
	final      string

	deltas     <-chan model.Delta
	errs       <-chan error
	cancel     context.CancelFunc
	roundStart time.Time

	pending []core.StreamChunk
	err     error
}

// NewAggregator prepares a turn. req carries the system prompt, the
// conversation so far (ending with the new user message) and the tool
// definitions offered to the provider. No provider call happens until the
// first Next.
func NewAggregator(provider model.Provider, req model.Request, invoker *tool.Invoker, optFns ...func(o *Options)) *Aggregator {
	opts := Options{MaxToolRounds: DefaultMaxToolRounds}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = DefaultMaxToolRounds
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if invoker == nil {
		invoker = tool.NewInvoker(nil, func(o *tool.InvokerOptions) { o.Logger = opts.Logger })
	}

	msgs := make([]core.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = m.Clone()
	}

	return &Aggregator{
		provider: provider,
		invoker:  invoker,
		base:     req,
		opts:     opts,
		messages:  msgs,
		turnStart: len(msgs),
		state:     StateAwaitingFirstChunk,
	}
}

// State returns the current phase.
func (a *Aggregator) State() State { return a.state }

// Round returns the zero based provider round in progress.
func (a *Aggregator) Round() int { return a.round }

// Err returns the failure that ended the turn, if any.
func (a *Aggregator) Err() error { return a.err }

// Content returns the text produced by the final provider round.
func (a *Aggregator) Content() string { return a.final }

// Usage returns the token usage summed over every provider round so far.
func (a *Aggregator) Usage() model.TokenUsage { return a.usage }

// Messages returns the full conversation including messages appended during
// the turn.
func (a *Aggregator) Messages() []core.Message {
	out := make([]core.Message, len(a.messages))
	for i, m := range a.messages {
		out[i] = m.Clone()
	}
	return out
}

// Next advances the state machine and returns the next chunk. It returns
// io.EOF once the turn has ended and every chunk was delivered. Failures are
// reported as a chunk with Success=false; Err exposes the typed error.
func (a *Aggregator) Next(ctx context.Context) (core.StreamChunk, error) {
	for {
		if len(a.pending) > 0 {
			c := a.pending[0]
			a.pending = a.pending[1:]
			return c, nil
		}

		switch a.state {
		case StateComplete, StateFailed:
			return core.StreamChunk{}, io.EOF
		case StateExecutingTools:
			a.executeTools(ctx)
			continue
		}

		if a.deltas == nil {
			a.startRound(ctx)
			continue
		}

		select {
		case <-ctx.Done():
			a.fail(ctx.Err())
		case d, ok := <-a.deltas:
			if !ok {
				a.endOfStream()
				continue
			}
			a.handleDelta(d)
		}
	}
}

// Chunks adapts Next to range-over-func. The error is non-nil only for the
// final unsuccessful chunk.
func (a *Aggregator) Chunks(ctx context.Context) iter.Seq2[core.StreamChunk, error] {
	return func(yield func(core.StreamChunk, error) bool) {
		defer a.Close()
		for {
			c, err := a.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if !c.Success {
				yield(c, c.Err)
				return
			}
			if !yield(c, nil) {
				return
			}
		}
	}
}

// Collect drains the turn and returns the final answer.
func (a *Aggregator) Collect(ctx context.Context) (string, error) {
	for _, err := range a.Chunks(ctx) {
		if err != nil {
			return "", err
		}
	}
	return a.final, a.err
}

// Close abandons the turn, cancelling any in-flight provider stream.
func (a *Aggregator) Close() {
	a.stopRound()
	if !a.state.Terminal() {
		a.state = StateFailed
		a.err = context.Canceled
	}
}

func (a *Aggregator) startRound(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		a.fail(err)
		return
	}
	if err := a.opts.Budget.Spend(); err != nil {
		a.fail(err)
		return
	}

	req := a.base
	req.Messages = a.Messages()

	roundCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.roundStart = time.Now()
	a.deltas, a.errs = a.provider.Stream(roundCtx, req)
	a.state = StateAwaitingFirstChunk

	a.opts.Logger.Debug("flow.round.start", "agent", a.opts.AgentID, "round", a.round, "messages", len(req.Messages))
}

func (a *Aggregator) stopRound() {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.deltas = nil
	a.errs = nil
}

func (a *Aggregator) handleDelta(d model.Delta) {
	if d.Usage != nil {
		a.usage.Add(*d.Usage)
	}
	if d.Empty() {
		return
	}
	a.acc.Add(d)

	if len(d.ToolCalls) > 0 {
		a.state = StateAccumulatingToolCalls
	} else if d.Content != "" && a.state == StateAwaitingFirstChunk {
		a.state = StateAccumulatingContent
	}

	if d.Content != "" {
		a.pending = append(a.pending, core.StreamChunk{
			Success:  true,
			Content:  d.Content,
			Metadata: core.ChunkMetadata{Round: a.round},
		})
	}

	if d.FinishReason != "" {
		a.finish(d.FinishReason)
	}
}

// endOfStream handles a provider stream that closed without a finish reason
// having been observed.
func (a *Aggregator) endOfStream() {
	var err error
	if a.errs != nil {
		err = <-a.errs
	}
	a.logRound(err)
	a.stopRound()

	switch {
	case err != nil:
		a.fail(err)
	case a.acc.HasToolCalls():
		a.fail(&core.ProviderError{
			Provider: a.provider.Info().Provider,
			Err:      errors.New("stream ended with incomplete tool calls"),
		})
	default:
		a.complete(core.FinishReasonStop)
	}
}

func (a *Aggregator) finish(reason string) {
	a.logRound(nil)
	a.stopRound()

	if reason != core.FinishReasonToolCalls {
		if a.acc.HasToolCalls() {
			a.opts.Logger.Warn("flow.tool_calls.ignored", "agent", a.opts.AgentID, "finish_reason", reason, "count", len(a.acc.ToolCalls()))
		}
		a.complete(reason)
		return
	}

	calls := a.acc.ToolCalls()
	if len(calls) == 0 {
		a.fail(&core.ProviderError{
			Provider: a.provider.Info().Provider,
			Err:      errors.New("finish reason tool_calls without any tool call"),
		})
		return
	}

	msg := core.NewAssistantMessage(a.acc.Content(), calls...)
	a.appendMessage(msg)
	a.pending = append(a.pending, core.StreamChunk{
		Success: true,
		Message: &msg,
		Metadata: core.ChunkMetadata{
			FinishReason: core.FinishReasonToolCalls,
			Round:        a.round,
		},
	})
	a.state = StateExecutingTools
}

func (a *Aggregator) complete(reason string) {
	msg := core.NewAssistantMessage(a.acc.Content())
	a.final = msg.Content
	a.appendMessage(msg)
	a.pending = append(a.pending, core.StreamChunk{
		Success: true,
		Message: &msg,
		Metadata: core.ChunkMetadata{
			FinishReason:     reason,
			StreamComplete:   true,
			Round:            a.round,
			PromptTokens:     a.usage.PromptTokens,
			CompletionTokens: a.usage.CompletionTokens,
		},
	})
	a.state = StateComplete
	if a.opts.OnComplete != nil {
		a.opts.OnComplete(a.Messages()[a.turnStart:])
	}
	a.opts.Logger.Debug("flow.complete", "agent", a.opts.AgentID, "rounds", a.round+1, "tool_rounds", a.toolRounds)
}

func (a *Aggregator) executeTools(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		a.fail(err)
		return
	}
	if a.toolRounds >= a.opts.MaxToolRounds {
		a.fail(fmt.Errorf("%w: %d tool rounds", core.ErrToolLoopExceeded, a.opts.MaxToolRounds))
		return
	}

	calls := a.acc.ToolCalls()
	a.opts.Logger.Debug("flow.tools.execute", "agent", a.opts.AgentID, "round", a.round, "count", len(calls))

	results := a.invoker.InvokeAll(core.WithBudget(ctx, a.opts.Budget), calls)
	for _, res := range results {
		if res.Err != nil {
			if errors.Is(res.Err, core.ErrToolNotFound) || !a.opts.ContinueOnToolError {
				a.fail(res.Err)
				return
			}
		}
	}

	for _, res := range results {
		msg := res.Message()
		a.appendMessage(msg)
		a.pending = append(a.pending, core.StreamChunk{
			Success:  true,
			Message:  &msg,
			Metadata: core.ChunkMetadata{Round: a.round},
		})
	}

	a.toolRounds++
	a.round++
	a.acc.Reset()
	a.state = StateAwaitingFirstChunk
}

func (a *Aggregator) appendMessage(m core.Message) {
	a.messages = append(a.messages, m)
}

func (a *Aggregator) fail(err error) {
	a.stopRound()
	a.err = err
	a.state = StateFailed
	a.pending = append(a.pending, core.NewFailedChunk(err, a.round))
	a.opts.Logger.Error("flow.failed", "agent", a.opts.AgentID, "round", a.round, "error", err)
}

func (a *Aggregator) logRound(err error) {
	logging.LogLLMCall(a.opts.Logger, a.provider.Info().Name, a.round, time.Since(a.roundStart), err)
}
