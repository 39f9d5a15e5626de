package dispatch

import (
	"encoding/json"

	"github.com/emesal/ratatoskr/pkg/rerr"
	"github.com/emesal/ratatoskr/pkg/types"
)

// BackendTag generalizes original_source's LLMBackend enum to whatever
// transport family a ChatSource actually speaks, so the Workaround
// Translator's exhaustive table lives in exactly one switch (§4.6, §9: "new
// rules land here, nowhere else").
type BackendTag int

const (
	// BackendOpenAICompatible covers OpenAI itself and any OpenAI-shaped
	// gateway (OpenRouter, Together, etc.) where parallel_tool_calls rides
	// along in the JSON request body.
	BackendOpenAICompatible BackendTag = iota
	// BackendAnthropic cannot express parallel_tool_calls at all.
	BackendAnthropic
	// BackendMistral exposes parallel tool use as a first-class request field.
	BackendMistral
	// BackendIgnored covers backends (Google, Ollama, local inference, ...)
	// that silently ignore parallel_tool_calls.
	BackendIgnored
)

func (b BackendTag) String() string {
	switch b {
	case BackendOpenAICompatible:
		return "openai_compatible"
	case BackendAnthropic:
		return "anthropic"
	case BackendMistral:
		return "mistral"
	case BackendIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// ProviderAdjustments is the output of ComputeAdjustments: a request-body
// patch plus a native-flag hint, applied by the adapting ChatSource before
// it builds its outbound request.
type ProviderAdjustments struct {
	// ExtraBody is merged into the outbound request body. Nil means no
	// adjustment was necessary.
	ExtraBody map[string]any
	// NativeParallelToolCalls is set only for backends (Mistral) that take
	// parallel tool use as a typed request field rather than a raw body key.
	NativeParallelToolCalls *bool
}

// ComputeAdjustments is the single entry point for all workaround logic
// (§4.6), grounded on original_source/src/providers/workarounds.rs's
// compute_adjustments. It starts from opts.RawProviderOptions as the base
// body patch, then layers in typed-field translations; a typed field always
// wins over a same-named raw entry.
func ComputeAdjustments(backend BackendTag, opts types.ChatOptions) (ProviderAdjustments, error) {
	var adj ProviderAdjustments

	extra := map[string]any{}
	for k, v := range opts.RawProviderOptions {
		extra[k] = v
	}

	if opts.ParallelToolCalls != nil {
		ptc := *opts.ParallelToolCalls
		switch backend {
		case BackendMistral:
			adj.NativeParallelToolCalls = &ptc
		case BackendOpenAICompatible:
			extra["parallel_tool_calls"] = ptc
		case BackendAnthropic:
			return adj, &rerr.Error{
				Kind:     rerr.UnsupportedParameter,
				Param:    types.ParamParallelToolCalls.String(),
				Model:    opts.Model,
				Provider: backend.String(),
				Op:       "compute_adjustments",
			}
		case BackendIgnored:
			// silently ignored
		}
	}

	if len(extra) > 0 {
		adj.ExtraBody = extra
	}
	return adj, nil
}

// MarshalExtraBody is a convenience for adapters that need the patch as raw
// JSON bytes to merge into an outbound HTTP request.
func (a ProviderAdjustments) MarshalExtraBody() ([]byte, error) {
	if a.ExtraBody == nil {
		return nil, nil
	}
	return json.Marshal(a.ExtraBody)
}
