package gateway_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emesal/ratatoskr/pkg/gateway"
	"github.com/emesal/ratatoskr/pkg/rerr"
	"github.com/emesal/ratatoskr/pkg/source/mock"
	"github.com/emesal/ratatoskr/pkg/types"
)

func TestCapabilities_EmptyGateway(t *testing.T) {
	g := gateway.NewBuilder().Build()
	caps := g.Capabilities()
	assert.True(t, caps.Has(types.CapTokenCounting))
	assert.False(t, caps.Has(types.CapChat))
}

func TestCapabilities_ReflectsRegisteredSources(t *testing.T) {
	g := gateway.NewBuilder().Build()
	g.ChatRegistry().AddSource(mock.NewChatSource("first"), nil, nil)
	g.EmbeddingRegistry().AddSource(&mock.EmbeddingSource{NameValue: "embedder"}, nil, nil)

	caps := g.Capabilities()
	assert.True(t, caps.Has(types.CapChat))
	assert.True(t, caps.Has(types.CapChatStreaming))
	assert.True(t, caps.Has(types.CapEmbed))
	assert.False(t, caps.Has(types.CapNLI))
}

func TestChat_ResolvesPresetBeforeDispatch(t *testing.T) {
	g := gateway.NewBuilder().
		WithPresets(map[string]map[string]types.PresetEntry{
			"free": {"agentic": types.NewBarePreset("gpt-4o-mini")},
		}).
		Build()
	src := mock.NewChatSource("openai")
	src.ChatResponses = []*types.ChatResponse{{Content: "hi"}}
	g.ChatRegistry().AddSource(src, nil, nil)

	resp, err := g.Chat(context.Background(), nil, nil, types.ChatOptions{Model: "ratatoskr:free/agentic"})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Content)
}

func TestChat_UnknownPresetIsInvalidInput(t *testing.T) {
	g := gateway.NewBuilder().Build()
	_, err := g.Chat(context.Background(), nil, nil, types.ChatOptions{Model: "ratatoskr:free/missing"})
	require.Error(t, err)
	kind, ok := rerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, rerr.InvalidInput, kind)
}

func TestModelStatus_UnknownModelIsUnavailable(t *testing.T) {
	g := gateway.NewBuilder().Build()
	status, err := g.ModelStatus("no-such-model")
	require.NoError(t, err)
	assert.Equal(t, types.StatusUnavailable, status.Kind)
	assert.False(t, status.IsUsable())
}

func TestModelStatus_KnownModelIsAvailable(t *testing.T) {
	g := gateway.NewBuilder().Build()
	g.ModelRegistry().Insert(types.ModelMetadata{Info: types.ModelInfo{ID: "gpt-4o", Provider: "openai"}})

	status, err := g.ModelStatus("gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, types.StatusAvailable, status.Kind)
	assert.True(t, status.IsUsable())
}

func TestModelMetadata_FallsBackToEphemeralCache(t *testing.T) {
	g := gateway.NewBuilder().Build()

	_, err := g.FetchModelMetadata(context.Background(), "nonexistent")
	require.Error(t, err) // no chat source registered at all

	src := mock.NewChatSource("openai")
	src.MetadataResponse = &types.ModelMetadata{Info: types.ModelInfo{ID: "custom-model", Provider: "openai"}}
	g.ChatRegistry().AddSource(src, nil, nil)

	md, err := g.FetchModelMetadata(context.Background(), "custom-model")
	require.NoError(t, err)
	assert.Equal(t, "custom-model", md.Info.ID)

	got, err := g.ModelMetadata("custom-model")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "custom-model", got.Info.ID)
}

func TestResolvePreset(t *testing.T) {
	g := gateway.NewBuilder().
		WithPresets(map[string]map[string]types.PresetEntry{
			"premium": {"chat": types.NewBarePreset("gpt-4o")},
		}).
		Build()

	model, ok := g.ResolvePreset("premium", "chat")
	require.True(t, ok)
	assert.Equal(t, "gpt-4o", model)

	_, ok = g.ResolvePreset("premium", "missing-slot")
	assert.False(t, ok)
}

func TestEmbed_CachesOnSecondCall(t *testing.T) {
	g := gateway.NewBuilder().WithResponseCache(types.DefaultCacheConfig()).Build()
	src := &mock.EmbeddingSource{NameValue: "embedder", EmbedResp: types.NewEmbedding("m", []float32{0.1, 0.2})}
	g.EmbeddingRegistry().AddSource(src, nil, nil)

	_, err := g.Embed(context.Background(), "hello", "m")
	require.NoError(t, err)
	_, err = g.Embed(context.Background(), "hello", "m")
	require.NoError(t, err)

	assert.Equal(t, 1, src.EmbedCalls)
}

func TestEmbedBatch_WithoutCacheDispatchesWholeBatch(t *testing.T) {
	g := gateway.NewBuilder().Build()
	src := &mock.EmbeddingSource{
		NameValue: "embedder",
		BatchResp: []types.Embedding{types.NewEmbedding("m", []float32{1}), types.NewEmbedding("m", []float32{2})},
	}
	g.EmbeddingRegistry().AddSource(src, nil, nil)

	got, err := g.EmbedBatch(context.Background(), []string{"a", "b"}, "m")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, src.BatchCalls)
}

func TestEmbedBatch_CacheServesPartialHits(t *testing.T) {
	g := gateway.NewBuilder().WithResponseCache(types.DefaultCacheConfig()).Build()
	src := &mock.EmbeddingSource{NameValue: "embedder"}
	g.EmbeddingRegistry().AddSource(src, nil, nil)

	_, err := g.Embed(context.Background(), "cached", "m")
	require.NoError(t, err)
	assert.Equal(t, 1, src.EmbedCalls)

	src.BatchResp = []types.Embedding{types.NewEmbedding("m", []float32{9})}
	got, err := g.EmbedBatch(context.Background(), []string{"cached", "fresh"}, "m")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"fresh"}, src.LastBatch)
}

func TestInferNLIBatch_CacheServesPartialHits(t *testing.T) {
	g := gateway.NewBuilder().WithResponseCache(types.DefaultCacheConfig()).Build()
	src := &mock.NLISource{NameValue: "hf", Resp: types.NewNLIResult(0.9, 0.05, 0.05)}
	g.NLIRegistry().AddSource(src, nil, nil)

	_, err := g.InferNLI(context.Background(), "p1", "h1", "m")
	require.NoError(t, err)

	src.BatchResp = []types.NLIResult{types.NewNLIResult(0.1, 0.1, 0.8)}
	got, err := g.InferNLIBatch(context.Background(), [][2]string{{"p1", "h1"}, {"p2", "h2"}}, "m")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, types.NLIEntailment, got[0].Label)
	assert.Equal(t, types.NLINeutral, got[1].Label)
}

func TestClassifyStance_NotCachedDispatchesEveryCall(t *testing.T) {
	g := gateway.NewBuilder().WithResponseCache(types.DefaultCacheConfig()).Build()
	src := &mock.StanceSource{NameValue: "hf", Resp: types.NewStanceResult("target", 0.6, 0.3, 0.1)}
	g.StanceRegistry().AddSource(src, nil)

	_, err := g.ClassifyStance(context.Background(), "text", "target", "m")
	require.NoError(t, err)
	_, err = g.ClassifyStance(context.Background(), "text", "target", "m")
	require.NoError(t, err)
	assert.Equal(t, 2, src.Calls)
}
