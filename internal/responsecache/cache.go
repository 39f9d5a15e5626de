// Package responsecache implements the opt-in Response Cache (RC, §4.9):
// an LRU+TTL over the deterministic operations (embed, infer_nli) that sits
// above the Provider Registry, so a hit bypasses retry, fallback, and
// provider-call metrics entirely. Chat and generate are intentionally
// excluded — they are non-deterministic and better served by provider-side
// caching. Grounded on original_source/src/cache/response.rs.
package responsecache

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/emesal/ratatoskr/pkg/types"
)

// cachedValue is either an Embedding or an NLIResult, distinguished by which
// field is set — Go has no tagged union, so a pointer-pair union standing in
// for original_source's CachedResponse enum is the idiomatic shape here.
type cachedValue struct {
	embedding *types.Embedding
	nli       *types.NLIResult
}

// Cache is the Response Cache: content-hash-keyed, LRU+TTL bounded,
// covering embed/embed_batch/infer_nli/infer_nli_batch.
type Cache struct {
	lru    *expirable.LRU[uint64, cachedValue]
	hits   Recorder
	missed Recorder
}

// Recorder records a cache hit/miss for a given operation label. New wires
// both fields to the one recorder it is given (typically an
// internal/telemetry.Metrics).
type Recorder interface {
	RecordCacheResult(cacheName, operation, result string)
}

type noopRecorder struct{}

func (noopRecorder) RecordCacheResult(string, string, string) {}

// New builds a Cache from a types.CacheConfig, falling back to
// types.DefaultCacheConfig when cfg is zero. recorder may be nil.
func New(cfg types.CacheConfig, recorder Recorder) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg = types.DefaultCacheConfig()
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Cache{
		lru:    expirable.NewLRU[uint64, cachedValue](cfg.MaxEntries, nil, cfg.TTL),
		hits:   recorder,
		missed: recorder,
	}
}

// cacheKey hashes (operation, model, input...) into a stable uint64.
// original_source used DefaultHasher (SipHash, process-local); this gateway
// uses xxhash so a future shared/distributed cache backend can reuse the
// same key across processes without a rewrite, per response.rs's own
// "future extensibility" note.
func cacheKey(operation, model string, input ...string) uint64 {
	h := xxhash.New()
	fmt.Fprintf(h, "%s\x00%s", operation, model)
	for _, s := range input {
		fmt.Fprintf(h, "\x00%s", s)
	}
	return h.Sum64()
}

// GetEmbedding looks up a cached embedding for (model, text).
func (c *Cache) GetEmbedding(model, text string) (types.Embedding, bool) {
	v, ok := c.lru.Get(cacheKey("embed", model, text))
	if !ok || v.embedding == nil {
		c.missed.RecordCacheResult("response_cache", "embed", "miss")
		return types.Embedding{}, false
	}
	c.hits.RecordCacheResult("response_cache", "embed", "hit")
	return *v.embedding, true
}

// InsertEmbedding caches an embedding for (model, text).
func (c *Cache) InsertEmbedding(model, text string, embedding types.Embedding) {
	c.lru.Add(cacheKey("embed", model, text), cachedValue{embedding: &embedding})
}

// GetNLI looks up a cached NLI result for (model, premise, hypothesis).
// Order matters: (premise, hypothesis) and (hypothesis, premise) hash to
// different keys.
func (c *Cache) GetNLI(model, premise, hypothesis string) (types.NLIResult, bool) {
	v, ok := c.lru.Get(cacheKey("nli", model, premise, hypothesis))
	if !ok || v.nli == nil {
		c.missed.RecordCacheResult("response_cache", "nli", "miss")
		return types.NLIResult{}, false
	}
	c.hits.RecordCacheResult("response_cache", "nli", "hit")
	return *v.nli, true
}

// InsertNLI caches an NLI result for (model, premise, hypothesis).
func (c *Cache) InsertNLI(model, premise, hypothesis string, result types.NLIResult) {
	c.lru.Add(cacheKey("nli", model, premise, hypothesis), cachedValue{nli: &result})
}

// InsertEmbeddingBatch caches embeddings[i] for texts[i]; texts and
// embeddings must be the same length and correspond positionally.
func (c *Cache) InsertEmbeddingBatch(model string, texts []string, embeddings []types.Embedding) {
	n := len(texts)
	if len(embeddings) < n {
		n = len(embeddings)
	}
	for i := 0; i < n; i++ {
		c.InsertEmbedding(model, texts[i], embeddings[i])
	}
}

// MergeEmbeddingBatch reassembles the full in-order output given:
//   - texts: the full input batch,
//   - hit: hit[i] is true iff texts[i] was a cache hit (see BatchMisses),
//   - hits: the per-item cache-lookup result (zero-value Embedding at a
//     miss index),
//   - results: the provider's results for exactly the miss texts, in their
//     original relative order.
//
// Returns an error if results is shorter or longer than the number of
// misses — a provider that returns the wrong number of results cannot be
// silently papered over
// (original_source panics here; the Go gateway surfaces rerr.Data instead).
func MergeEmbeddingBatch(texts []string, hit []bool, hits []types.Embedding, results []types.Embedding) ([]types.Embedding, error) {
	out := make([]types.Embedding, len(texts))
	ri := 0
	for i := range texts {
		if hit[i] {
			out[i] = hits[i]
			continue
		}
		if ri >= len(results) {
			return nil, fmt.Errorf("responsecache: provider returned fewer results (%d) than expected misses", len(results))
		}
		out[i] = results[ri]
		ri++
	}
	if ri != len(results) {
		return nil, fmt.Errorf("responsecache: provider returned more results (%d) than expected misses (%d)", len(results), ri)
	}
	return out, nil
}

// BatchMisses partitions texts into (hit mask, miss texts) against the
// cache, without the per-index zero-value ambiguity of hits on its own:
// hit[i] is true iff texts[i] was a cache hit, and misses holds
// exactly the miss texts in original relative order.
func (c *Cache) BatchMisses(model string, texts []string) (hit []bool, hits []types.Embedding, misses []string) {
	hit = make([]bool, len(texts))
	hits = make([]types.Embedding, len(texts))
	for i, text := range texts {
		if emb, ok := c.GetEmbedding(model, text); ok {
			hit[i] = true
			hits[i] = emb
		} else {
			misses = append(misses, text)
		}
	}
	return hit, hits, misses
}
