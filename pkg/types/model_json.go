package types

import "encoding/json"

func capNames() map[Capability]string {
	return map[Capability]string{
		CapChat: "chat", CapChatStreaming: "chat_streaming", CapGenerate: "generate",
		CapToolUse: "tool_use", CapEmbed: "embed", CapNLI: "nli", CapClassify: "classify",
		CapStance: "stance", CapTokenCounting: "token_counting", CapLocalInference: "local_inference",
	}
}

func capFromName(name string) (Capability, bool) {
	for c, n := range capNames() {
		if n == name {
			return c, true
		}
	}
	return 0, false
}

type modelMetadataJSON struct {
	ID                string                           `json:"id"`
	Provider          string                           `json:"provider"`
	Capabilities      []string                         `json:"capabilities,omitempty"`
	ContextWindow     *int                             `json:"context_window,omitempty"`
	EmbeddingDimLen   *int                             `json:"embedding_dimensions,omitempty"`
	Parameters        map[string]ParameterAvailability `json:"parameters,omitempty"`
	Pricing           *Pricing                         `json:"pricing,omitempty"`
	MaxOutputTokens   *int                              `json:"max_output_tokens,omitempty"`
}

func (m ModelMetadata) MarshalJSON() ([]byte, error) {
	names := capNames()
	out := modelMetadataJSON{
		ID: m.Info.ID, Provider: m.Info.Provider, ContextWindow: m.Info.ContextWindow,
		EmbeddingDimLen: m.Info.EmbeddingDimLen, Pricing: m.Pricing, MaxOutputTokens: m.MaxOutputTokens,
	}
	for c := range m.Info.Capabilities {
		out.Capabilities = append(out.Capabilities, names[c])
	}
	if len(m.Parameters) > 0 {
		out.Parameters = make(map[string]ParameterAvailability, len(m.Parameters))
		for k, v := range m.Parameters {
			out.Parameters[k.String()] = v
		}
	}
	return json.Marshal(out)
}

func (m *ModelMetadata) UnmarshalJSON(data []byte) error {
	var in modelMetadataJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	caps := NewCapabilitySet()
	for _, name := range in.Capabilities {
		if c, ok := capFromName(name); ok {
			caps.Insert(c)
		}
	}
	m.Info = ModelInfo{
		ID: in.ID, Provider: in.Provider, Capabilities: caps,
		ContextWindow: in.ContextWindow, EmbeddingDimLen: in.EmbeddingDimLen,
	}
	m.Pricing = in.Pricing
	m.MaxOutputTokens = in.MaxOutputTokens
	if len(in.Parameters) > 0 {
		m.Parameters = make(map[ParameterName]ParameterAvailability, len(in.Parameters))
		for k, v := range in.Parameters {
			m.Parameters[ParseParameterName(k)] = v
		}
	}
	return nil
}
