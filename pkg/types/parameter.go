package types

// ParameterName is a closed set of well-known request parameters plus an
// open Custom(string) escape hatch, per §9's "open enums" design note.
// parse(render(n)) == n for all n (property test 4): round-tripping a
// well-known name returns the same well-known value, and round-tripping an
// unrecognized string returns an equal Custom value.
type ParameterName struct {
	well string // "" means Custom
	name string // canonical spelling, or the custom string
}

var (
	ParamTemperature       = ParameterName{"temperature", "temperature"}
	ParamTopP              = ParameterName{"top_p", "top_p"}
	ParamTopK              = ParameterName{"top_k", "top_k"}
	ParamMaxTokens         = ParameterName{"max_tokens", "max_tokens"}
	ParamFrequencyPenalty  = ParameterName{"frequency_penalty", "frequency_penalty"}
	ParamPresencePenalty   = ParameterName{"presence_penalty", "presence_penalty"}
	ParamSeed              = ParameterName{"seed", "seed"}
	ParamStop              = ParameterName{"stop", "stop"}
	ParamReasoning         = ParameterName{"reasoning", "reasoning"}
	ParamCachePrompt       = ParameterName{"cache_prompt", "cache_prompt"}
	ParamResponseFormat    = ParameterName{"response_format", "response_format"}
	ParamToolChoice        = ParameterName{"tool_choice", "tool_choice"}
	ParamParallelToolCalls = ParameterName{"parallel_tool_calls", "parallel_tool_calls"}
)

var wellKnownParams = []ParameterName{
	ParamTemperature, ParamTopP, ParamTopK, ParamMaxTokens, ParamFrequencyPenalty,
	ParamPresencePenalty, ParamSeed, ParamStop, ParamReasoning, ParamCachePrompt,
	ParamResponseFormat, ParamToolChoice, ParamParallelToolCalls,
}

// CustomParameterName constructs the open-ended escape-hatch variant.
func CustomParameterName(name string) ParameterName { return ParameterName{"", name} }

// String renders the canonical flat-string form.
func (p ParameterName) String() string { return p.name }

// IsCustom reports whether p is outside the well-known set.
func (p ParameterName) IsCustom() bool { return p.well == "" }

// ParseParameterName parses a flat string, falling back to Custom for
// anything not in the well-known set — it never fails (§9: tolerate unknown
// inputs rather than erroring).
func ParseParameterName(s string) ParameterName {
	for _, p := range wellKnownParams {
		if p.name == s {
			return p
		}
	}
	return CustomParameterName(s)
}

// ParameterRange describes the legal range (and default) of a mutable
// numeric-ish parameter.
type ParameterRange struct {
	Min     *float64
	Max     *float64
	Default *float64
}

// ParameterAvailabilityKind tags the ParameterAvailability variant.
type ParameterAvailabilityKind int

const (
	AvailabilityMutable ParameterAvailabilityKind = iota
	AvailabilityReadOnly
	AvailabilityOpaque
	AvailabilityUnsupported
)

// ParameterAvailability describes how a model treats one parameter.
type ParameterAvailability struct {
	Kind  ParameterAvailabilityKind
	Range ParameterRange // set when Kind == AvailabilityMutable
	Value any            // set when Kind == AvailabilityReadOnly
}

// IsSupported reports whether the model can be asked to set this parameter.
func (a ParameterAvailability) IsSupported() bool {
	return a.Kind == AvailabilityMutable || a.Kind == AvailabilityOpaque
}

// ParameterValidationPolicy controls how the Parameter Validator treats
// parameters a source does not declare support for.
type ParameterValidationPolicy int

const (
	PolicyIgnore ParameterValidationPolicy = iota
	PolicyWarn
	PolicyError
)

// SetChatParameters derives the set-parameters of opts mechanically: a
// ParameterName is present iff the corresponding option field is non-nil /
// non-empty.
func SetChatParameters(opts ChatOptions) []ParameterName {
	var out []ParameterName
	if opts.Temperature != nil {
		out = append(out, ParamTemperature)
	}
	if opts.TopP != nil {
		out = append(out, ParamTopP)
	}
	if opts.TopK != nil {
		out = append(out, ParamTopK)
	}
	if opts.MaxTokens != nil {
		out = append(out, ParamMaxTokens)
	}
	if opts.FrequencyPenalty != nil {
		out = append(out, ParamFrequencyPenalty)
	}
	if opts.PresencePenalty != nil {
		out = append(out, ParamPresencePenalty)
	}
	if opts.Seed != nil {
		out = append(out, ParamSeed)
	}
	if len(opts.Stop) > 0 {
		out = append(out, ParamStop)
	}
	if opts.Reasoning != nil {
		out = append(out, ParamReasoning)
	}
	if opts.CachePrompt != nil {
		out = append(out, ParamCachePrompt)
	}
	if opts.ResponseFormat != nil {
		out = append(out, ParamResponseFormat)
	}
	if opts.ToolChoice != nil {
		out = append(out, ParamToolChoice)
	}
	if opts.ParallelToolCalls != nil {
		out = append(out, ParamParallelToolCalls)
	}
	return out
}

// SetGenerateParameters is SetChatParameters's GenerateOptions counterpart
// (no tool-related fields exist to check).
func SetGenerateParameters(opts GenerateOptions) []ParameterName {
	var out []ParameterName
	if opts.Temperature != nil {
		out = append(out, ParamTemperature)
	}
	if opts.TopP != nil {
		out = append(out, ParamTopP)
	}
	if opts.TopK != nil {
		out = append(out, ParamTopK)
	}
	if opts.MaxTokens != nil {
		out = append(out, ParamMaxTokens)
	}
	if opts.FrequencyPenalty != nil {
		out = append(out, ParamFrequencyPenalty)
	}
	if opts.PresencePenalty != nil {
		out = append(out, ParamPresencePenalty)
	}
	if opts.Seed != nil {
		out = append(out, ParamSeed)
	}
	if len(opts.Stop) > 0 {
		out = append(out, ParamStop)
	}
	if opts.Reasoning != nil {
		out = append(out, ParamReasoning)
	}
	if opts.CachePrompt != nil {
		out = append(out, ParamCachePrompt)
	}
	if opts.ResponseFormat != nil {
		out = append(out, ParamResponseFormat)
	}
	return out
}
