package responsecache

import (
	"testing"
	"time"

	"github.com/emesal/ratatoskr/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache() *Cache {
	return New(types.CacheConfig{MaxEntries: 100, TTL: time.Hour}, nil)
}

func TestCache_EmbeddingHitAndMiss(t *testing.T) {
	c := newTestCache()
	_, ok := c.GetEmbedding("m", "hello")
	assert.False(t, ok)

	c.InsertEmbedding("m", "hello", types.NewEmbedding("m", []float32{1, 2, 3}))
	emb, ok := c.GetEmbedding("m", "hello")
	require.True(t, ok)
	assert.Equal(t, 3, emb.Dimensions)
}

func TestCache_KeyDiffersOnOperation(t *testing.T) {
	assert.NotEqual(t, cacheKey("embed", "m", "hello"), cacheKey("nli", "m", "hello"))
}

func TestCache_KeyDiffersOnModel(t *testing.T) {
	assert.NotEqual(t, cacheKey("embed", "a", "hello"), cacheKey("embed", "b", "hello"))
}

func TestCache_KeyDiffersOnInput(t *testing.T) {
	assert.NotEqual(t, cacheKey("embed", "m", "hello"), cacheKey("embed", "m", "world"))
}

func TestCache_KeyDeterministic(t *testing.T) {
	assert.Equal(t, cacheKey("embed", "m", "hello"), cacheKey("embed", "m", "hello"))
}

func TestCache_NLIKeyOrderMatters(t *testing.T) {
	assert.NotEqual(t, cacheKey("nli", "m", "p", "h"), cacheKey("nli", "m", "h", "p"))
}

func TestCache_NLIHitAndMiss(t *testing.T) {
	c := newTestCache()
	_, ok := c.GetNLI("m", "premise", "hypothesis")
	assert.False(t, ok)

	result := types.NewNLIResult(0.7, 0.1, 0.2)
	c.InsertNLI("m", "premise", "hypothesis", result)
	got, ok := c.GetNLI("m", "premise", "hypothesis")
	require.True(t, ok)
	assert.Equal(t, result.Label, got.Label)
}

func TestMergeEmbeddingBatch_AllCached(t *testing.T) {
	texts := []string{"a", "b"}
	hit := []bool{true, true}
	hits := []types.Embedding{types.NewEmbedding("m", []float32{1}), types.NewEmbedding("m", []float32{2})}
	out, err := MergeEmbeddingBatch(texts, hit, hits, nil)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, float32(1), out[0].Values[0])
	assert.Equal(t, float32(2), out[1].Values[0])
}

func TestMergeEmbeddingBatch_AllMisses(t *testing.T) {
	texts := []string{"a", "b"}
	hit := []bool{false, false}
	results := []types.Embedding{types.NewEmbedding("m", []float32{1}), types.NewEmbedding("m", []float32{2})}
	out, err := MergeEmbeddingBatch(texts, hit, make([]types.Embedding, 2), results)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, float32(1), out[0].Values[0])
	assert.Equal(t, float32(2), out[1].Values[0])
}

func TestMergeEmbeddingBatch_Mixed(t *testing.T) {
	texts := []string{"a", "b", "c", "d"}
	hit := []bool{true, false, true, false}
	hits := []types.Embedding{
		types.NewEmbedding("m", []float32{1}), {}, types.NewEmbedding("m", []float32{3}), {},
	}
	results := []types.Embedding{types.NewEmbedding("m", []float32{2}), types.NewEmbedding("m", []float32{4})}
	out, err := MergeEmbeddingBatch(texts, hit, hits, results)
	require.NoError(t, err)
	require.Len(t, out, 4)
	assert.Equal(t, float32(1), out[0].Values[0])
	assert.Equal(t, float32(2), out[1].Values[0])
	assert.Equal(t, float32(3), out[2].Values[0])
	assert.Equal(t, float32(4), out[3].Values[0])
}

func TestMergeEmbeddingBatch_FewerResultsThanMissesErrors(t *testing.T) {
	texts := []string{"a", "b"}
	hit := []bool{false, false}
	results := []types.Embedding{types.NewEmbedding("m", []float32{1})}
	_, err := MergeEmbeddingBatch(texts, hit, make([]types.Embedding, 2), results)
	assert.Error(t, err)
}

func TestCache_BatchMissesPartitions(t *testing.T) {
	c := newTestCache()
	c.InsertEmbedding("m", "cached", types.NewEmbedding("m", []float32{9}))

	hit, hits, misses := c.BatchMisses("m", []string{"cached", "uncached"})
	require.Equal(t, []bool{true, false}, hit)
	assert.Equal(t, float32(9), hits[0].Values[0])
	assert.Equal(t, []string{"uncached"}, misses)
}
