package modelregistry

import (
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/emesal/ratatoskr/pkg/types"
)

// EphemeralCache is the EMC of §4.8: an LRU+TTL of ModelMetadata produced by
// live fetch_metadata calls at runtime, companion to the seeded Registry.
// Lookup order for model_metadata(id) is preset → MR → EMC (§4.8); the
// gateway facade consults Registry before falling back to this cache.
type EphemeralCache struct {
	lru *expirable.LRU[string, types.ModelMetadata]
}

// NewEphemeralCache builds a cache from a types.CacheConfig, falling back to
// types.DefaultCacheConfig when cfg is zero.
func NewEphemeralCache(cfg types.CacheConfig) *EphemeralCache {
	if cfg.MaxEntries <= 0 {
		cfg = types.DefaultCacheConfig()
	}
	return &EphemeralCache{
		lru: expirable.NewLRU[string, types.ModelMetadata](cfg.MaxEntries, nil, cfg.TTL),
	}
}

// Put records metadata fetched live for model — §4.8: "update is
// out-of-process", meaning a live fetch never mutates the seeded Registry
// directly; it lands here instead, and the lookup order papers over the
// split.
func (c *EphemeralCache) Put(model string, metadata types.ModelMetadata) {
	c.lru.Add(model, metadata)
}

// Get returns the cached entry for model, if still live.
func (c *EphemeralCache) Get(model string) (types.ModelMetadata, bool) {
	return c.lru.Get(model)
}

// Len reports the number of entries still live (best-effort: TTL expiry is
// lazy, evaluated at Get).
func (c *EphemeralCache) Len() int {
	return c.lru.Len()
}

// Keys lists every model id currently cached, oldest first. Used by
// ListModels to enumerate EMC entries not already known to the seeded
// Registry.
func (c *EphemeralCache) Keys() []string {
	return c.lru.Keys()
}
