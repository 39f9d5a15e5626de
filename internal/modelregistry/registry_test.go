package modelregistry

import (
	"testing"

	"github.com/emesal/ratatoskr/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSeeded_LoadsEmbeddedSeed(t *testing.T) {
	r := NewSeeded(nil)
	assert.Greater(t, r.Len(), 0)
	m, ok := r.Get("gpt-4o")
	require.True(t, ok)
	assert.Equal(t, "openai", m.Info.Provider)
	assert.True(t, m.Info.Capabilities.Has(types.CapChat))
}

func TestNewSeeded_MergesCachedRemoteOnTop(t *testing.T) {
	contextWindow := 999999
	remote := &types.RemoteRegistryPayload{
		Version: 1,
		Models: []types.ModelMetadata{
			{Info: types.ModelInfo{ID: "gpt-4o", Provider: "openai", ContextWindow: &contextWindow}},
		},
	}
	r := NewSeeded(remote)
	m, ok := r.Get("gpt-4o")
	require.True(t, ok)
	require.NotNil(t, m.Info.ContextWindow)
	assert.Equal(t, 999999, *m.Info.ContextWindow)
	// chat capability from the seed must survive the merge (union, not replace).
	assert.True(t, m.Info.Capabilities.Has(types.CapChat))
}

func TestRegistry_MergeNewModelInsertsDirectly(t *testing.T) {
	r := New()
	r.Merge(types.ModelMetadata{Info: types.ModelInfo{ID: "brand-new", Provider: "x"}})
	_, ok := r.Get("brand-new")
	assert.True(t, ok)
}

func TestRegistry_FilterByCapability(t *testing.T) {
	r := New()
	r.Insert(types.ModelMetadata{Info: types.ModelInfo{ID: "a", Capabilities: types.ChatOnly()}})
	r.Insert(types.ModelMetadata{Info: types.ModelInfo{ID: "b", Capabilities: types.NewCapabilitySet(types.CapEmbed)}})

	chatModels := r.FilterByCapability(types.CapChat)
	require.Len(t, chatModels, 1)
	assert.Equal(t, "a", chatModels[0].Info.ID)
}

func TestEphemeralCache_PutAndGet(t *testing.T) {
	c := NewEphemeralCache(types.CacheConfig{MaxEntries: 10, TTL: 0})
	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Put("m", types.ModelMetadata{Info: types.ModelInfo{ID: "m"}})
	got, ok := c.Get("m")
	require.True(t, ok)
	assert.Equal(t, "m", got.Info.ID)
}
