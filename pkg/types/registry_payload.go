package types

import "encoding/json"

// MaxSupportedRegistryVersion bounds the payload versions this gateway
// understands, per original_source/src/registry/remote.rs.
const MaxSupportedRegistryVersion = 1

// RemoteRegistryPayload is the on-disk / over-the-wire shape of a model
// registry snapshot. A bare `[ModelMetadata]` array is accepted as legacy
// input and normalized to Version 0.
type RemoteRegistryPayload struct {
	Version int
	Models  []ModelMetadata
	Presets map[string]map[string]PresetEntry // tier -> slot -> entry
}

type versionedPayloadJSON struct {
	Version int                           `json:"version"`
	Models  []ModelMetadata               `json:"models"`
	Presets map[string]map[string]PresetEntry `json:"presets,omitempty"`
}

// UnmarshalJSON accepts either the versioned object form or a bare array
// (normalized to Version 0), mirroring remote.rs's RawPayload untagged enum.
func (p *RemoteRegistryPayload) UnmarshalJSON(data []byte) error {
	var versioned versionedPayloadJSON
	if err := json.Unmarshal(data, &versioned); err == nil && versioned.Models != nil {
		*p = RemoteRegistryPayload{Version: versioned.Version, Models: versioned.Models, Presets: versioned.Presets}
		return nil
	}
	var legacy []ModelMetadata
	if err := json.Unmarshal(data, &legacy); err != nil {
		return err
	}
	*p = RemoteRegistryPayload{Version: 0, Models: legacy}
	return nil
}

func (p RemoteRegistryPayload) MarshalJSON() ([]byte, error) {
	return json.Marshal(versionedPayloadJSON{Version: p.Version, Models: p.Models, Presets: p.Presets})
}
