package types

// PresetParameters mirrors ChatOptions minus the model id: it fills only the
// caller's unset fields, per spec — the preset never overrides a value the
// caller explicitly set.
type PresetParameters struct {
	Temperature       *float64
	MaxTokens         *int
	TopP              *float64
	TopK              *int
	Stop              []string
	FrequencyPenalty  *float64
	PresencePenalty   *float64
	Seed              *int64
	ToolChoice        *ToolChoice
	ResponseFormat    *ResponseFormat
	CachePrompt       *bool
	Reasoning         *ReasoningConfig
	ParallelToolCalls *bool
}

// IsEmpty reports whether no field is set.
func (p PresetParameters) IsEmpty() bool {
	return p.Temperature == nil && p.MaxTokens == nil && p.TopP == nil && p.TopK == nil &&
		len(p.Stop) == 0 && p.FrequencyPenalty == nil && p.PresencePenalty == nil &&
		p.Seed == nil && p.ToolChoice == nil && p.ResponseFormat == nil &&
		p.CachePrompt == nil && p.Reasoning == nil && p.ParallelToolCalls == nil
}

// ApplyToChatOptions fills only fields opts has not already set.
func (p PresetParameters) ApplyToChatOptions(opts ChatOptions) ChatOptions {
	if opts.Temperature == nil {
		opts.Temperature = p.Temperature
	}
	if opts.MaxTokens == nil {
		opts.MaxTokens = p.MaxTokens
	}
	if opts.TopP == nil {
		opts.TopP = p.TopP
	}
	if opts.TopK == nil {
		opts.TopK = p.TopK
	}
	if len(opts.Stop) == 0 {
		opts.Stop = p.Stop
	}
	if opts.FrequencyPenalty == nil {
		opts.FrequencyPenalty = p.FrequencyPenalty
	}
	if opts.PresencePenalty == nil {
		opts.PresencePenalty = p.PresencePenalty
	}
	if opts.Seed == nil {
		opts.Seed = p.Seed
	}
	if opts.ToolChoice == nil {
		opts.ToolChoice = p.ToolChoice
	}
	if opts.ResponseFormat == nil {
		opts.ResponseFormat = p.ResponseFormat
	}
	if opts.CachePrompt == nil {
		opts.CachePrompt = p.CachePrompt
	}
	if opts.Reasoning == nil {
		opts.Reasoning = p.Reasoning
	}
	if opts.ParallelToolCalls == nil {
		opts.ParallelToolCalls = p.ParallelToolCalls
	}
	return opts
}

// PresetEntry is either a bare model-id string or a model id plus default
// parameters. Constructed via NewBarePreset/NewParameterizedPreset; the
// untagged-JSON-union shape of original_source/src/registry/preset.rs is
// realized here as a custom (Un)MarshalJSON pair.
type PresetEntry struct {
	ModelID    string
	Parameters PresetParameters
	hasParams  bool
}

func NewBarePreset(modelID string) PresetEntry {
	return PresetEntry{ModelID: modelID}
}

func NewParameterizedPreset(modelID string, params PresetParameters) PresetEntry {
	return PresetEntry{ModelID: modelID, Parameters: params, hasParams: true}
}

func (p PresetEntry) Model() string { return p.ModelID }

func (p PresetEntry) HasParameters() bool { return p.hasParams && !p.Parameters.IsEmpty() }
