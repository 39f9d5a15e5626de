package modelregistry

import (
	"strings"
	"sync"

	"github.com/emesal/ratatoskr/pkg/types"
)

// presetURIPrefix is the scheme tag a model id must carry to be resolved as
// a preset reference, e.g. "ratatoskr:free/agentic".
const presetURIPrefix = "ratatoskr:"

// PresetTable holds the tier → slot → PresetEntry mapping (§6) and resolves
// the `ratatoskr:{tier}/{slot}` URI scheme at the front of every model-id
// lookup.
type PresetTable struct {
	mu    sync.RWMutex
	tiers map[string]map[string]types.PresetEntry
}

// NewPresetTable builds a table from an initial tiers map (may be nil).
func NewPresetTable(tiers map[string]map[string]types.PresetEntry) *PresetTable {
	if tiers == nil {
		tiers = make(map[string]map[string]types.PresetEntry)
	}
	return &PresetTable{tiers: tiers}
}

// Merge layers incoming tiers on top of the existing table: incoming
// slot entries replace same-named ones, new tiers/slots are added, nothing
// is deleted.
func (t *PresetTable) Merge(tiers map[string]map[string]types.PresetEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for tier, slots := range tiers {
		if t.tiers[tier] == nil {
			t.tiers[tier] = make(map[string]types.PresetEntry, len(slots))
		}
		for slot, entry := range slots {
			t.tiers[tier][slot] = entry
		}
	}
}

// Lookup returns the PresetEntry for tier.slot, if any.
func (t *PresetTable) Lookup(tier, slot string) (types.PresetEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	slots, ok := t.tiers[tier]
	if !ok {
		return types.PresetEntry{}, false
	}
	entry, ok := slots[slot]
	return entry, ok
}

// ResolvePreset implements `resolve_preset(tier, slot) → model_id?` (§6).
func (t *PresetTable) ResolvePreset(tier, slot string) (string, bool) {
	entry, ok := t.Lookup(tier, slot)
	if !ok {
		return "", false
	}
	return entry.Model(), true
}

// ParsePresetURI splits a "ratatoskr:{tier}/{slot}" model id into its tier
// and slot. ok is false for any id that is not a well-formed preset URI
// (including ids that merely start with the prefix but lack a "/").
func ParsePresetURI(modelID string) (tier, slot string, ok bool) {
	rest, found := strings.CutPrefix(modelID, presetURIPrefix)
	if !found {
		return "", "", false
	}
	tier, slot, found = strings.Cut(rest, "/")
	if !found || tier == "" || slot == "" {
		return "", "", false
	}
	return tier, slot, true
}

// ResolveModelID resolves the preset-URI scheme at the front of every
// model-id-taking operation (§6, §9): if modelID is a well-formed
// "ratatoskr:{tier}/{slot}" reference, it is replaced by the resolved
// effective model id everywhere downstream. An unknown tier or slot
// resolves to nothing (ok=false); modelID passes through unchanged when it
// is not a preset URI at all.
func (t *PresetTable) ResolveModelID(modelID string) (effective string, ok bool) {
	tier, slot, isPresetURI := ParsePresetURI(modelID)
	if !isPresetURI {
		return modelID, true
	}
	resolved, found := t.ResolvePreset(tier, slot)
	if !found {
		return "", false
	}
	return resolved, true
}

// PresetEntryFor returns the full PresetEntry (including any default
// parameters) for modelID when it is a preset URI, so callers can apply
// PresetParameters via PresetEntry.Parameters().ApplyToChatOptions.
func (t *PresetTable) PresetEntryFor(modelID string) (types.PresetEntry, bool) {
	tier, slot, isPresetURI := ParsePresetURI(modelID)
	if !isPresetURI {
		return types.PresetEntry{}, false
	}
	return t.Lookup(tier, slot)
}
