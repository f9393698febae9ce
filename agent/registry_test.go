package agent

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langswarm/langswarm/core"
	"github.com/langswarm/langswarm/model"
)

func TestRegistry_RegisterLookup(t *testing.T) {
	r := NewRegistry()
	a := newScriptedAgent(t, "researcher", model.NewScriptedProvider("m"), Config{})
	b := newScriptedAgent(t, "summarizer", model.NewScriptedProvider("m"), Config{})

	assert.True(t, r.Register(a))
	assert.True(t, r.Register(b))
	assert.False(t, r.Register(nil))

	got, err := r.Lookup("researcher")
	require.NoError(t, err)
	assert.Same(t, a, got)
	assert.Equal(t, []string{"researcher", "summarizer"}, r.List())
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_RegisterOverwrites(t *testing.T) {
	first := newScriptedAgent(t, "a", model.NewScriptedProvider("m"), Config{})
	second := newScriptedAgent(t, "a", model.NewScriptedProvider("m"), Config{})
	r := NewRegistry(first)

	assert.True(t, r.Register(second))

	got, err := r.Lookup("a")
	require.NoError(t, err)
	assert.Same(t, second, got)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_LookupUnknown(t *testing.T) {
	r := NewRegistry(newScriptedAgent(t, "known", model.NewScriptedProvider("m"), Config{}))

	got, err := r.Lookup("ghost")
	assert.Nil(t, got)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrAgentNotFound)

	var nf *core.AgentNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "ghost", nf.ID)
	assert.Equal(t, []string{"known"}, nf.Known)
	assert.Contains(t, err.Error(), "ghost")
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry(newScriptedAgent(t, "a", model.NewScriptedProvider("m"), Config{}))
	assert.True(t, r.Remove("a"))
	assert.False(t, r.Remove("a"))
	assert.Empty(t, r.List())
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()
	agents := make([]*Agent, 50)
	for i := range agents {
		agents[i] = newScriptedAgent(t, fmt.Sprintf("agent-%d", i), model.NewScriptedProvider("m"), Config{})
	}

	var wg sync.WaitGroup
	for _, a := range agents {
		wg.Add(2)
		go func(a *Agent) {
			defer wg.Done()
			r.Register(a)
		}(a)
		go func(id string) {
			defer wg.Done()
			_, _ = r.Lookup(id)
			_ = r.List()
		}(a.ID())
	}
	wg.Wait()

	assert.Equal(t, len(agents), r.Len())
	for _, a := range agents {
		got, err := r.Lookup(a.ID())
		require.NoError(t, err)
		assert.Same(t, a, got)
	}
}
