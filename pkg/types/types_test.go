package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParameterNameRoundTrip(t *testing.T) {
	for _, p := range wellKnownParams {
		assert.Equal(t, p, ParseParameterName(p.String()))
	}
	custom := CustomParameterName("frobnicate_level")
	assert.Equal(t, custom, ParseParameterName(custom.String()))
	assert.True(t, custom.IsCustom())
	assert.False(t, ParamTemperature.IsCustom())
}

func TestEmbeddingInvariant(t *testing.T) {
	e := NewEmbedding("m", []float32{1, 2, 3})
	assert.True(t, e.Valid())
	assert.Equal(t, 3, e.Dimensions)
}

func TestNLIArgmaxAndTieBreak(t *testing.T) {
	r := NewNLIResult(0.5, 0.3, 0.2)
	assert.Equal(t, NLIEntailment, r.Label)

	tie := NewNLIResult(0.4, 0.4, 0.2)
	assert.Equal(t, NLIEntailment, tie.Label, "entailment wins ties")
}

func TestStanceArgmaxAndTieBreak(t *testing.T) {
	r := NewStanceResult("policy X", 0.2, 0.5, 0.3)
	assert.Equal(t, StanceAgainst, r.Label)

	tie := NewStanceResult("policy X", 0.4, 0.4, 0.2)
	assert.Equal(t, StanceFavor, tie.Label, "favor wins ties")
}

func TestModelMetadataMergeIdempotent(t *testing.T) {
	m := sampleMetadata()
	merged := MergeModelMetadata(m, m)
	assert.Equal(t, m.Pricing, merged.Pricing)
	assert.Equal(t, m.Info.ContextWindow, merged.Info.ContextWindow)
	assert.Equal(t, m.Info.Capabilities, merged.Info.Capabilities)
}

func TestModelMetadataMergeRightBiasedOnPresence(t *testing.T) {
	base := sampleMetadata()
	incoming := ModelMetadata{
		Info: ModelInfo{ID: "m", Capabilities: NewCapabilitySet(CapGenerate)},
	}
	merged := MergeModelMetadata(base, incoming)
	require.NotNil(t, merged.Pricing)
	assert.Equal(t, base.Pricing, merged.Pricing, "absent incoming pricing keeps base")

	ctx := 16384
	incoming2 := ModelMetadata{
		Info: ModelInfo{ID: "m", ContextWindow: &ctx},
	}
	merged2 := MergeModelMetadata(base, incoming2)
	assert.Equal(t, ctx, *merged2.Info.ContextWindow)
}

func TestModelMetadataMergeUnionsCapabilities(t *testing.T) {
	base := ModelMetadata{Info: ModelInfo{ID: "m", Capabilities: NewCapabilitySet(CapChat)}}
	incoming := ModelMetadata{Info: ModelInfo{ID: "m", Capabilities: NewCapabilitySet(CapEmbed)}}
	merged := MergeModelMetadata(base, incoming)
	assert.True(t, merged.Info.Capabilities.Has(CapChat))
	assert.True(t, merged.Info.Capabilities.Has(CapEmbed))
}

func sampleMetadata() ModelMetadata {
	ctx := 8192
	return ModelMetadata{
		Info:    ModelInfo{ID: "m", Provider: "p", Capabilities: NewCapabilitySet(CapChat), ContextWindow: &ctx},
		Pricing: &Pricing{PromptPerMTok: 3.0, CompletionPerMTok: 15.0},
	}
}

func TestPresetEntryJSONRoundTrip(t *testing.T) {
	bare := NewBarePreset("gpt-4o")
	data, err := bare.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"gpt-4o"`, string(data))

	var back PresetEntry
	require.NoError(t, back.UnmarshalJSON(data))
	assert.Equal(t, "gpt-4o", back.Model())
	assert.False(t, back.HasParameters())

	temp := 0.7
	withParams := NewParameterizedPreset("gpt-4o", PresetParameters{Temperature: &temp})
	data2, err := withParams.MarshalJSON()
	require.NoError(t, err)
	var back2 PresetEntry
	require.NoError(t, back2.UnmarshalJSON(data2))
	assert.True(t, back2.HasParameters())
	assert.Equal(t, temp, *back2.Parameters.Temperature)
}
