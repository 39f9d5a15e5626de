package types

import "encoding/json"

// presetParametersJSON is the JSON (de)serialization shape of
// PresetParameters. It has no ToolChoice, ResponseFormat or Reasoning field:
// those three are neither written nor read in JSON form.
type presetParametersJSON struct {
	Temperature       *float64 `json:"temperature,omitempty"`
	MaxTokens         *int     `json:"max_tokens,omitempty"`
	TopP              *float64 `json:"top_p,omitempty"`
	TopK              *int     `json:"top_k,omitempty"`
	Stop              []string `json:"stop,omitempty"`
	FrequencyPenalty  *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty   *float64 `json:"presence_penalty,omitempty"`
	Seed              *int64   `json:"seed,omitempty"`
	CachePrompt       *bool    `json:"cache_prompt,omitempty"`
	ParallelToolCalls *bool    `json:"parallel_tool_calls,omitempty"`
}

func (p PresetParameters) toJSON() presetParametersJSON {
	return presetParametersJSON{
		Temperature: p.Temperature, MaxTokens: p.MaxTokens, TopP: p.TopP, TopK: p.TopK,
		Stop: p.Stop, FrequencyPenalty: p.FrequencyPenalty, PresencePenalty: p.PresencePenalty,
		Seed: p.Seed, CachePrompt: p.CachePrompt, ParallelToolCalls: p.ParallelToolCalls,
	}
}

func (p presetParametersJSON) toParameters() PresetParameters {
	return PresetParameters{
		Temperature: p.Temperature, MaxTokens: p.MaxTokens, TopP: p.TopP, TopK: p.TopK,
		Stop: p.Stop, FrequencyPenalty: p.FrequencyPenalty, PresencePenalty: p.PresencePenalty,
		Seed: p.Seed, CachePrompt: p.CachePrompt, ParallelToolCalls: p.ParallelToolCalls,
	}
}

type presetEntryJSON struct {
	Model      string               `json:"model"`
	Parameters presetParametersJSON `json:"parameters,omitempty"`
}

// MarshalJSON renders a bare string for a parameter-less preset, else the
// {model, parameters} object form.
func (p PresetEntry) MarshalJSON() ([]byte, error) {
	if !p.HasParameters() {
		return json.Marshal(p.ModelID)
	}
	return json.Marshal(presetEntryJSON{Model: p.ModelID, Parameters: p.Parameters.toJSON()})
}

// UnmarshalJSON accepts either a bare string or the {model, parameters}
// object, mirroring original_source/src/registry/preset.rs's untagged enum.
func (p *PresetEntry) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		*p = NewBarePreset(bare)
		return nil
	}
	var obj presetEntryJSON
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*p = NewParameterizedPreset(obj.Model, obj.Parameters.toParameters())
	return nil
}
