package openai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emesal/ratatoskr/pkg/rerr"
	"github.com/emesal/ratatoskr/pkg/types"
)

func TestConvertMessage_System(t *testing.T) {
	param, err := convertMessage(types.Message{Role: types.RoleSystem, Content: types.MessageContent{Text: "You are helpful."}})
	require.NoError(t, err)
	assert.NotNil(t, param.OfSystem)
}

func TestConvertMessage_User(t *testing.T) {
	param, err := convertMessage(types.Message{Role: types.RoleUser, Content: types.MessageContent{Text: "Hello!"}})
	require.NoError(t, err)
	assert.NotNil(t, param.OfUser)
}

func TestConvertMessage_AssistantWithToolCalls(t *testing.T) {
	msg := types.Message{
		Role: types.RoleAssistant,
		ToolCalls: []types.ToolCall{
			{ID: "call_1", Name: "get_weather", Arguments: `{"city":"Berlin"}`},
		},
	}
	param, err := convertMessage(msg)
	require.NoError(t, err)
	require.NotNil(t, param.OfAssistant)
	require.Len(t, param.OfAssistant.ToolCalls, 1)
	tc := param.OfAssistant.ToolCalls[0]
	assert.Equal(t, "call_1", tc.ID)
	assert.Equal(t, "get_weather", tc.Function.Name)
	assert.Equal(t, `{"city":"Berlin"}`, tc.Function.Arguments)
}

func TestConvertMessage_Tool(t *testing.T) {
	param, err := convertMessage(types.Message{Role: types.RoleTool, Content: types.MessageContent{Text: "sunny"}, ToolCallID: "call_1"})
	require.NoError(t, err)
	require.NotNil(t, param.OfTool)
	assert.Equal(t, "call_1", param.OfTool.ToolCallID)
}

func TestConvertMessage_UnknownRole(t *testing.T) {
	_, err := convertMessage(types.Message{Role: types.Role(99), Content: types.MessageContent{Text: "test"}})
	require.Error(t, err)
	kind, ok := rerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, rerr.InvalidInput, kind)
}

func TestNew_MissingAPIKey(t *testing.T) {
	_, err := New("", "gpt-4o", "")
	require.Error(t, err)
}

func TestNew_Options(t *testing.T) {
	s, err := New("sk-test", "gpt-4o", "",
		WithBaseURL("https://custom.example.com"),
		WithOrganization("org-123"),
	)
	require.NoError(t, err)
	assert.Equal(t, "openai", s.Name())
	assert.Equal(t, DefaultEmbeddingModel, s.embedModel(""))
}

func TestSourceModel_FallsBackToDefault(t *testing.T) {
	s := &Source{defaultModel: "gpt-4o-mini"}
	assert.Equal(t, "gpt-4o-mini", s.model(""))
	assert.Equal(t, "gpt-4o", s.model("gpt-4o"))
}

func TestEmbedModel_FallsBackToDefault(t *testing.T) {
	s := &Source{defaultEmbeds: "text-embedding-3-large"}
	assert.Equal(t, "text-embedding-3-large", s.embedModel(""))
	assert.Equal(t, "custom-embed", s.embedModel("custom-embed"))
}

func TestFloat64ToFloat32(t *testing.T) {
	got := float64ToFloat32([]float64{1.5, 2.25})
	assert.Equal(t, []float32{1.5, 2.25}, got)
}

func TestFetchMetadata_NotImplemented(t *testing.T) {
	s := &Source{}
	_, err := s.FetchMetadata(context.Background(), "gpt-4o")
	require.Error(t, err)
	kind, ok := rerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, rerr.NotImplemented, kind)
}

func TestSupportedChatParameters_NonEmpty(t *testing.T) {
	s := &Source{}
	assert.NotEmpty(t, s.SupportedChatParameters())
	assert.NotEmpty(t, s.SupportedGenerateParameters())
}
