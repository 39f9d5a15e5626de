package anyllm

import (
	"context"
	"testing"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emesal/ratatoskr/pkg/rerr"
	"github.com/emesal/ratatoskr/pkg/source"
	"github.com/emesal/ratatoskr/pkg/types"
)

func TestConvertMessage_System(t *testing.T) {
	got := convertMessage(types.Message{Role: types.RoleSystem, Content: types.MessageContent{Text: "You are helpful."}})
	assert.Equal(t, anyllmlib.RoleSystem, got.Role)
	assert.Equal(t, "You are helpful.", got.Content)
}

func TestConvertMessage_User(t *testing.T) {
	got := convertMessage(types.Message{Role: types.RoleUser, Content: types.MessageContent{Text: "Hello!"}})
	assert.Equal(t, anyllmlib.RoleUser, got.Role)
	assert.Equal(t, "Hello!", got.Content)
}

func TestConvertMessage_AssistantWithToolCalls(t *testing.T) {
	m := types.Message{
		Role: types.RoleAssistant,
		ToolCalls: []types.ToolCall{
			{ID: "call_1", Name: "get_weather", Arguments: `{"city":"Berlin"}`},
		},
	}
	got := convertMessage(m)
	require.Len(t, got.ToolCalls, 1)
	tc := got.ToolCalls[0]
	assert.Equal(t, "call_1", tc.ID)
	assert.Equal(t, "function", tc.Type)
	assert.Equal(t, "get_weather", tc.Function.Name)
	assert.Equal(t, `{"city":"Berlin"}`, tc.Function.Arguments)
}

func TestConvertMessage_Tool(t *testing.T) {
	got := convertMessage(types.Message{Role: types.RoleTool, Content: types.MessageContent{Text: "sunny"}, ToolCallID: "call_1"})
	assert.Equal(t, anyllmlib.RoleTool, got.Role)
	assert.Equal(t, "call_1", got.ToolCallID)
	assert.Equal(t, "sunny", got.Content)
}

func TestConvertMessage_WithName(t *testing.T) {
	got := convertMessage(types.Message{Role: types.RoleUser, Content: types.MessageContent{Text: "Hi"}, Name: "alice"})
	assert.Equal(t, "alice", got.Name)
}

func TestConvertMessage_EmptyToolCalls(t *testing.T) {
	got := convertMessage(types.Message{Role: types.RoleAssistant, Content: types.MessageContent{Text: "No tools here."}})
	assert.Empty(t, got.ToolCalls)
}

func TestRoleString_UnknownDefaultsToUser(t *testing.T) {
	assert.Equal(t, anyllmlib.RoleUser, roleString(types.Role(99)))
}

func TestNew_EmptyName(t *testing.T) {
	_, err := New("", "gpt-4o")
	require.Error(t, err)
	kind, ok := rerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, rerr.Configuration, kind)
}

func TestNew_UnsupportedBackend(t *testing.T) {
	_, err := New("fakecloud", "some-model", anyllmlib.WithAPIKey("dummy"))
	require.Error(t, err)
}

func TestNew_OpenAI_WithAPIKey(t *testing.T) {
	s, err := New("openai", "gpt-4o", anyllmlib.WithAPIKey("sk-test"))
	require.NoError(t, err)
	assert.Equal(t, "openai", s.Name())
}

func TestNew_Ollama_NoAPIKey(t *testing.T) {
	s, err := New("ollama", "llama3")
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestSourceModel_FallsBackToDefault(t *testing.T) {
	s := &Source{defaultModel: "gpt-4o-mini"}
	assert.Equal(t, "gpt-4o-mini", s.model(""))
	assert.Equal(t, "gpt-4o", s.model("gpt-4o"))
}

func TestFetchMetadata_NotImplemented(t *testing.T) {
	s := &Source{name: "openai"}
	_, err := s.FetchMetadata(context.Background(), "gpt-4o")
	require.Error(t, err)
	kind, ok := rerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, rerr.NotImplemented, kind)
}

func TestSupportedParameters_Empty(t *testing.T) {
	s := &Source{}
	assert.Empty(t, s.SupportedChatParameters())
	assert.Empty(t, s.SupportedGenerateParameters())
}

// fakeChatStream is a minimal hand-rolled source.Stream[types.ChatEvent] for
// exercising generateEventStream's projection without a live backend.
type fakeChatStream struct {
	events []types.ChatEvent
	idx    int
}

func (f *fakeChatStream) Next(ctx context.Context) (types.ChatEvent, bool, error) {
	if f.idx >= len(f.events) {
		return types.ChatEvent{}, false, nil
	}
	ev := f.events[f.idx]
	f.idx++
	return ev, true, nil
}

func (f *fakeChatStream) Close() {}

var _ source.Stream[types.ChatEvent] = (*fakeChatStream)(nil)

func TestGenerateEventStream_ProjectsContentAndDone(t *testing.T) {
	inner := &fakeChatStream{events: []types.ChatEvent{
		{Kind: types.ChatEventContent, Text: "hel"},
		{Kind: types.ChatEventToolCallStart, ToolCallIndex: 0},
		{Kind: types.ChatEventContent, Text: "lo"},
		{Kind: types.ChatEventUsage, Usage: &types.Usage{TotalTokens: 5}},
		{Kind: types.ChatEventDone},
	}}
	g := &generateEventStream{inner: inner}

	var texts []string
	var sawDone bool
	for {
		ev, ok, err := g.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		switch ev.Kind {
		case types.GenerateEventText:
			texts = append(texts, ev.Text)
		case types.GenerateEventDone:
			sawDone = true
		}
	}
	assert.Equal(t, []string{"hel", "lo"}, texts)
	assert.True(t, sawDone)
}

func TestChatOptionsFromGenerate_CarriesFields(t *testing.T) {
	temp := 0.5
	opts := types.GenerateOptions{Model: "gpt-4o", Temperature: &temp, Stop: []string{"\n"}}
	got := chatOptionsFromGenerate(opts)
	assert.Equal(t, "gpt-4o", got.Model)
	assert.Equal(t, &temp, got.Temperature)
	assert.Equal(t, []string{"\n"}, got.Stop)
}

var (
	_ source.ChatSource     = (*Source)(nil)
	_ source.GenerateSource = (*Source)(nil)
)
