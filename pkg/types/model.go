package types

// ModelInfo is the lightweight identity of a model, as returned by
// list_models.
type ModelInfo struct {
	ID                string
	Provider          string
	Capabilities      CapabilitySet
	ContextWindow     *int
	EmbeddingDimLen   *int // optional embedding dimensions, only set for embedding models
}

// Pricing is USD per million tokens.
type Pricing struct {
	PromptPerMTok     float64
	CompletionPerMTok float64
}

// ModelMetadata is the full registry entry for one model id.
type ModelMetadata struct {
	Info            ModelInfo
	Parameters      map[ParameterName]ParameterAvailability
	Pricing         *Pricing
	MaxOutputTokens *int
}

// clonePricing returns nil or a fresh copy, never an aliased pointer.
func clonePricing(p *Pricing) *Pricing {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

func cloneIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// MergeModelMetadata merges incoming into base for the same model id, per
// invariant 3: incoming parameters override per-key; scalar fields (pricing,
// max_output_tokens, context_window) replace only when the incoming value is
// present; capabilities are unioned. Neither argument is mutated.
func MergeModelMetadata(base, incoming ModelMetadata) ModelMetadata {
	out := ModelMetadata{
		Info: ModelInfo{
			ID:            base.Info.ID,
			Provider:      base.Info.Provider,
			Capabilities:  base.Info.Capabilities.Merge(incoming.Info.Capabilities),
			ContextWindow: base.Info.ContextWindow,
		},
		Pricing:         clonePricing(base.Pricing),
		MaxOutputTokens: cloneIntPtr(base.MaxOutputTokens),
	}
	if incoming.Info.Provider != "" {
		out.Info.Provider = incoming.Info.Provider
	}
	if incoming.Info.ContextWindow != nil {
		out.Info.ContextWindow = cloneIntPtr(incoming.Info.ContextWindow)
	}
	if incoming.Info.EmbeddingDimLen != nil {
		out.Info.EmbeddingDimLen = cloneIntPtr(incoming.Info.EmbeddingDimLen)
	} else {
		out.Info.EmbeddingDimLen = cloneIntPtr(base.Info.EmbeddingDimLen)
	}
	if incoming.Pricing != nil {
		out.Pricing = clonePricing(incoming.Pricing)
	}
	if incoming.MaxOutputTokens != nil {
		out.MaxOutputTokens = cloneIntPtr(incoming.MaxOutputTokens)
	}

	out.Parameters = make(map[ParameterName]ParameterAvailability, len(base.Parameters)+len(incoming.Parameters))
	for k, v := range base.Parameters {
		out.Parameters[k] = v
	}
	for k, v := range incoming.Parameters {
		out.Parameters[k] = v
	}
	return out
}
