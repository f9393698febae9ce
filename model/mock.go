package model

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/langswarm/langswarm/core"
)

// Turn is one scripted provider response: the deltas to stream and an
// optional error delivered after them.
type Turn struct {
	Deltas []Delta
	Err    error
}

// ScriptedProvider is a lightweight in‑memory Provider useful for tests,
// examples and dry runs. Each Stream call consumes the next queued Turn; once
// the script is exhausted it falls back to canned responses keyed by the last
// user message, or echoes the input.
type ScriptedProvider struct {
	mu        sync.Mutex
	info      Info
	turns     []Turn
	responses map[string]string
	requests  []Request
}

// NewScriptedProvider constructs a ScriptedProvider with tool support enabled.
func NewScriptedProvider(name string) *ScriptedProvider {
	return &ScriptedProvider{
		info: Info{
			Name:          name,
			Provider:      core.ProviderMock,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddTurn queues a scripted response.
func (m *ScriptedProvider) AddTurn(deltas ...Delta) *ScriptedProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, Turn{Deltas: deltas})
	return m
}

// AddError queues a response that streams deltas and then fails with err.
func (m *ScriptedProvider) AddError(err error, deltas ...Delta) *ScriptedProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, Turn{Deltas: deltas, Err: err})
	return m
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *ScriptedProvider) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Requests returns a copy of every request received so far.
func (m *ScriptedProvider) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// CallCount returns the number of provider invocations.
func (m *ScriptedProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *ScriptedProvider) next(req Request) Turn {
	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := make([]core.Message, len(req.Messages))
	for i, msg := range req.Messages {
		msgs[i] = msg.Clone()
	}
	req.Messages = msgs
	m.requests = append(m.requests, req)

	if len(m.turns) > 0 {
		t := m.turns[0]
		m.turns = m.turns[1:]
		return t
	}

	input := core.LastUserText(req.Messages)
	full := m.responses[input]
	if full == "" {
		full = fmt.Sprintf("Mock response to: %s", input)
	}
	words := strings.SplitAfter(full, " ")
	deltas := make([]Delta, 0, len(words)+1)
	for _, w := range words {
		deltas = append(deltas, Delta{Content: w})
	}
	deltas = append(deltas, Delta{FinishReason: core.FinishReasonStop})
	return Turn{Deltas: deltas}
}

// Stream implements Provider.
func (m *ScriptedProvider) Stream(ctx context.Context, req Request) (<-chan Delta, <-chan error) {
	out := make(chan Delta, 16)
	errCh := make(chan error, 1)
	turn := m.next(req)

	go func() {
		defer close(out)
		defer close(errCh)
		for _, d := range turn.Deltas {
			if err := ctx.Err(); err != nil {
				errCh <- err
				return
			}
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- d:
			}
		}
		if turn.Err != nil {
			errCh <- turn.Err
		}
	}()
	return out, errCh
}

// Complete implements Provider by draining Stream.
func (m *ScriptedProvider) Complete(ctx context.Context, req Request) (Response, error) {
	return CompleteFromStream(ctx, m, req)
}

// Info implements Provider.
func (m *ScriptedProvider) Info() Info { return m.info }
