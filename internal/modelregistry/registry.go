// Package modelregistry implements the Model Registry (MR) and Ephemeral
// Model Cache (EMC) of §4.8, plus the Preset table and remote-registry
// update path of §6. Grounded on original_source/src/registry/{mod,remote,
// preset}.rs, reworked from a single-process HashMap into a mutex-protected
// Go map plus an expirable LRU for the runtime-discovered tier.
package modelregistry

import (
	"sync"

	"github.com/emesal/ratatoskr/pkg/types"
)

// Registry is the embedded-seed-plus-cached-remote layer of the Model
// Registry: a map keyed by model ID, loaded at construction and merged into
// thereafter (never replaced wholesale).
type Registry struct {
	mu      sync.RWMutex
	entries map[string]types.ModelMetadata
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]types.ModelMetadata)}
}

// NewSeeded loads the embedded seed (§4.8 step 1) and, if cachedRemote is
// non-nil, merges its entries on top (§4.8 step 2).
func NewSeeded(cachedRemote *types.RemoteRegistryPayload) *Registry {
	r := New()
	for _, m := range loadEmbeddedSeed() {
		r.Insert(m)
	}
	if cachedRemote != nil {
		r.MergeBatch(cachedRemote.Models)
	}
	return r
}

// Insert replaces any existing entry for metadata.Info.ID wholesale. Used
// for initial seeding only; runtime updates should use Merge.
func (r *Registry) Insert(metadata types.ModelMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[metadata.Info.ID] = metadata
}

// Get returns the entry for model, if any.
func (r *Registry) Get(model string) (types.ModelMetadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.entries[model]
	return m, ok
}

// List returns every entry, in no particular order.
func (r *Registry) List() []types.ModelMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.ModelMetadata, 0, len(r.entries))
	for _, m := range r.entries {
		out = append(out, m)
	}
	return out
}

// Merge applies invariant 3's per-key merge (types.MergeModelMetadata)
// against any existing entry for incoming.Info.ID, or inserts it directly
// if the model is new.
func (r *Registry) Merge(incoming types.ModelMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.entries[incoming.Info.ID]; ok {
		r.entries[incoming.Info.ID] = types.MergeModelMetadata(existing, incoming)
	} else {
		r.entries[incoming.Info.ID] = incoming
	}
}

// MergeBatch merges each entry of batch in turn.
func (r *Registry) MergeBatch(batch []types.ModelMetadata) {
	for _, m := range batch {
		r.Merge(m)
	}
}

// FilterByCapability returns every entry whose capability set includes cap.
func (r *Registry) FilterByCapability(cap types.Capability) []types.ModelMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []types.ModelMetadata
	for _, m := range r.entries {
		if m.Info.Capabilities.Has(cap) {
			out = append(out, m)
		}
	}
	return out
}

// Len reports the number of distinct model IDs held.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
