package dispatch

import (
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/emesal/ratatoskr/pkg/types"
)

// DiscoveryCache is the Parameter Discovery Cache (§4.7): an LRU+TTL keyed
// on a stable hash of (provider, model, parameter_name), recording the
// outcome of runtime parameter-rejection discoveries so the Parameter
// Validator can treat them as unsupported on subsequent calls without
// re-learning it from the backend every time.
type DiscoveryCache struct {
	mu    sync.RWMutex
	lru   *expirable.LRU[uint64, types.DiscoveryRecord]
	// order tracks insertion order for ListDiscoveries. Entries are never
	// pruned from it on eviction (only filtered out at read time), so under
	// sustained high parameter-rejection churn this grows unbounded; the
	// LRU+TTL bound that matters for memory is on lru itself.
	order []uint64
}

// NewDiscoveryCache builds a cache from a types.DiscoveryConfig (MaxEntries,
// TTL), falling back to types.DefaultDiscoveryConfig when cfg is zero.
func NewDiscoveryCache(cfg types.DiscoveryConfig) *DiscoveryCache {
	if cfg.MaxEntries <= 0 {
		cfg = types.DefaultDiscoveryConfig()
	}
	return &DiscoveryCache{
		lru: expirable.NewLRU[uint64, types.DiscoveryRecord](cfg.MaxEntries, nil, cfg.TTL),
	}
}

// discoveryKey hashes (provider, model, parameter) into a stable uint64,
// grounded on the teacher's use of xxhash for cheap stable cache keys.
func discoveryKey(provider, model string, param types.ParameterName) uint64 {
	h := xxhash.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s", provider, model, param.String())
	return h.Sum64()
}

// Record inserts rec, overwriting any prior record for the same triple.
func (c *DiscoveryCache) Record(rec types.DiscoveryRecord) {
	if rec.DiscoveredAt.IsZero() {
		rec.DiscoveredAt = time.Now()
	}
	key := discoveryKey(rec.Provider, rec.Model, rec.Parameter)
	c.mu.Lock()
	defer c.mu.Unlock()
	_, existed := c.lru.Get(key)
	c.lru.Add(key, rec)
	if !existed {
		c.order = append(c.order, key)
	}
}

// IsKnownUnsupported implements UnsupportedChecker for the Parameter
// Validator.
func (c *DiscoveryCache) IsKnownUnsupported(provider, model string, param types.ParameterName) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.lru.Get(discoveryKey(provider, model, param))
	return ok
}

// KnownUnsupported filters params down to the subset recorded as
// runtime-unsupported for (provider, model).
func (c *DiscoveryCache) KnownUnsupported(provider, model string, params []types.ParameterName) []types.ParameterName {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []types.ParameterName
	for _, p := range params {
		if _, ok := c.lru.Get(discoveryKey(provider, model, p)); ok {
			out = append(out, p)
		}
	}
	return out
}

// ListDiscoveries returns every record still live in the cache, in
// insertion order. Entries evicted by TTL or LRU pressure are silently
// absent.
func (c *DiscoveryCache) ListDiscoveries() []types.DiscoveryRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []types.DiscoveryRecord
	for _, key := range c.order {
		if rec, ok := c.lru.Get(key); ok {
			out = append(out, rec)
		}
	}
	return out
}

var _ UnsupportedChecker = (*DiscoveryCache)(nil)
