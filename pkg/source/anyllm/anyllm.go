// Package anyllm implements source.ChatSource and source.GenerateSource on
// top of github.com/mozilla-ai/any-llm-go, a single Go interface fronting
// OpenAI, Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq, and
// llama.cpp/llamafile — generalized from the teacher's
// pkg/provider/llm/anyllm.Provider, which wired the same library behind a
// single-model Complete/StreamCompletion pair.
//
// Where the teacher constructed one Provider per model, Source here is
// backend-scoped: model selection happens per call (via opts/Model or the
// prompt variant's model argument), matching the gateway's one-source-many-
// models shape (§4.1).
package anyllm

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/emesal/ratatoskr/pkg/rerr"
	"github.com/emesal/ratatoskr/pkg/source"
	"github.com/emesal/ratatoskr/pkg/types"
)

// backendNames lists the any-llm-go backend identifiers this Source can
// dispatch to; it is also this Source's Name().
var backendNames = []string{
	"openai", "anthropic", "gemini", "ollama", "deepseek",
	"mistral", "groq", "llamacpp", "llamafile",
}

// Source wraps one any-llm-go backend, serving chat and single-turn
// generation for whatever model callers name in opts.
type Source struct {
	name         string
	backend      anyllmlib.Provider
	defaultModel string
}

// New creates a Source backed by the named any-llm-go provider.
//
// name is one of backendNames. defaultModel is used when a call's options
// leave Model unset. opts are any-llm-go configuration options (e.g.
// anyllmlib.WithAPIKey, anyllmlib.WithBaseURL); without an API key option
// the backend falls back to its conventional environment variable.
func New(name, defaultModel string, opts ...anyllmlib.Option) (*Source, error) {
	if name == "" {
		return nil, &rerr.Error{Kind: rerr.Configuration, Message: "anyllm: name must not be empty"}
	}
	backend, err := createBackend(name, opts...)
	if err != nil {
		return nil, &rerr.Error{Kind: rerr.Configuration, Message: fmt.Sprintf("anyllm: create %q backend", name), Cause: err}
	}
	return &Source{name: strings.ToLower(name), backend: backend, defaultModel: defaultModel}, nil
}

func createBackend(name string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(name) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported backend %q; supported: %s", name, strings.Join(backendNames, ", "))
	}
}

func (s *Source) Name() string { return s.name }

func (s *Source) model(requested string) string {
	if requested != "" {
		return requested
	}
	return s.defaultModel
}

// Chat implements source.ChatSource.
func (s *Source) Chat(ctx context.Context, messages []types.Message, tools []types.ToolDefinition, opts types.ChatOptions) (*types.ChatResponse, error) {
	params := s.buildChatParams(messages, tools, opts)

	resp, err := s.backend.Completion(ctx, params)
	if err != nil {
		return nil, &rerr.Error{Kind: rerr.API, Provider: s.name, Model: params.Model, Message: "completion", Cause: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &rerr.Error{Kind: rerr.EmptyResponse, Provider: s.name, Model: params.Model, Message: "completion returned no choices"}
	}

	choice := resp.Choices[0]
	out := &types.ChatResponse{
		Content:      choice.Message.ContentString(),
		Model:        params.Model,
		FinishReason: types.CustomFinishReason(fmt.Sprint(choice.FinishReason)),
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, types.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	if resp.Usage != nil {
		out.Usage = &types.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return out, nil
}

// ChatStream implements source.ChatSource, adapting any-llm-go's push
// channel pair into a pull-based source.Stream.
func (s *Source) ChatStream(ctx context.Context, messages []types.Message, tools []types.ToolDefinition, opts types.ChatOptions) (source.Stream[types.ChatEvent], error) {
	params := s.buildChatParams(messages, tools, opts)

	streamCtx, cancel := context.WithCancel(ctx)
	backendChunks, backendErrs := s.backend.CompletionStream(streamCtx, params)

	events := make(chan types.ChatEvent, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		toolCallAccum := map[int]*types.ToolCall{}

		for chunk := range backendChunks {
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]
			delta := choice.Delta

			if delta.Content != "" {
				if !emit(streamCtx, events, types.ChatEvent{Kind: types.ChatEventContent, Text: delta.Content}) {
					return
				}
			}

			for i, tc := range delta.ToolCalls {
				existing, ok := toolCallAccum[i]
				if !ok {
					existing = &types.ToolCall{ID: tc.ID, Name: tc.Function.Name}
					toolCallAccum[i] = existing
					if !emit(streamCtx, events, types.ChatEvent{Kind: types.ChatEventToolCallStart, ToolCallIndex: i, ToolCallID: tc.ID, ToolCallName: tc.Function.Name}) {
						return
					}
				}
				if tc.ID != "" {
					existing.ID = tc.ID
				}
				if tc.Function.Name != "" {
					existing.Name = tc.Function.Name
				}
				if tc.Function.Arguments != "" {
					existing.Arguments += tc.Function.Arguments
					if !emit(streamCtx, events, types.ChatEvent{Kind: types.ChatEventToolCallDelta, ToolCallIndex: i, Text: tc.Function.Arguments}) {
						return
					}
				}
			}

			if choice.FinishReason != "" {
				for i := range toolCallAccum {
					if !emit(streamCtx, events, types.ChatEvent{Kind: types.ChatEventToolCallEnd, ToolCallIndex: i}) {
						return
					}
				}
				emit(streamCtx, events, types.ChatEvent{Kind: types.ChatEventDone})
			}
		}

		if err := <-backendErrs; err != nil {
			select {
			case errs <- &rerr.Error{Kind: rerr.Stream, Provider: s.name, Model: params.Model, Message: "stream", Cause: err}:
			case <-streamCtx.Done():
			}
		}
	}()

	return source.NewChannelStream[types.ChatEvent](events, errs, cancel), nil
}

func emit[T any](ctx context.Context, ch chan<- T, v T) bool {
	select {
	case ch <- v:
		return true
	case <-ctx.Done():
		return false
	}
}

// Generate implements source.GenerateSource as a single-user-message chat call.
func (s *Source) Generate(ctx context.Context, prompt string, opts types.GenerateOptions) (*types.GenerateResponse, error) {
	resp, err := s.Chat(ctx, []types.Message{{Role: types.RoleUser, Content: types.MessageContent{Text: prompt}}}, nil, chatOptionsFromGenerate(opts))
	if err != nil {
		return nil, err
	}
	return &types.GenerateResponse{
		Content:      resp.Content,
		Usage:        resp.Usage,
		Model:        resp.Model,
		FinishReason: resp.FinishReason,
	}, nil
}

// GenerateStream implements source.GenerateSource.
func (s *Source) GenerateStream(ctx context.Context, prompt string, opts types.GenerateOptions) (source.Stream[types.GenerateEvent], error) {
	chatStream, err := s.ChatStream(ctx, []types.Message{{Role: types.RoleUser, Content: types.MessageContent{Text: prompt}}}, nil, chatOptionsFromGenerate(opts))
	if err != nil {
		return nil, err
	}
	return &generateEventStream{inner: chatStream}, nil
}

// generateEventStream projects a ChatEvent stream down to GenerateEvent,
// dropping tool-call/usage events — Generate never offers tools.
type generateEventStream struct {
	inner source.Stream[types.ChatEvent]
}

func (g *generateEventStream) Next(ctx context.Context) (types.GenerateEvent, bool, error) {
	for {
		ev, ok, err := g.inner.Next(ctx)
		if err != nil || !ok {
			return types.GenerateEvent{}, ok, err
		}
		switch ev.Kind {
		case types.ChatEventContent:
			return types.GenerateEvent{Kind: types.GenerateEventText, Text: ev.Text}, true, nil
		case types.ChatEventDone:
			return types.GenerateEvent{Kind: types.GenerateEventDone}, true, nil
		default:
			continue
		}
	}
}

func (g *generateEventStream) Close() { g.inner.Close() }

func chatOptionsFromGenerate(opts types.GenerateOptions) types.ChatOptions {
	return types.ChatOptions{
		Model:              opts.Model,
		Temperature:        opts.Temperature,
		MaxTokens:          opts.MaxTokens,
		TopP:               opts.TopP,
		TopK:               opts.TopK,
		Stop:               opts.Stop,
		FrequencyPenalty:   opts.FrequencyPenalty,
		PresencePenalty:    opts.PresencePenalty,
		Seed:               opts.Seed,
		ResponseFormat:     opts.ResponseFormat,
		CachePrompt:        opts.CachePrompt,
		Reasoning:          opts.Reasoning,
		RawProviderOptions: opts.RawProviderOptions,
	}
}

// FetchMetadata implements source.ChatSource. any-llm-go has no model
// registry of its own; the Provider Registry falls back to the next source
// (or the local registry cache) on NotImplemented for this op (§4.1).
func (s *Source) FetchMetadata(ctx context.Context, model string) (*types.ModelMetadata, error) {
	return nil, &rerr.Error{Kind: rerr.NotImplemented, Op: "fetch_metadata", Provider: s.name, Model: model, Message: "anyllm backends do not expose model metadata"}
}

// SupportedChatParameters implements source.ChatSource. any-llm-go passes
// parameters straight through to the backend without validating them, so
// this Source declares no opinion — the Parameter Validator's legacy-compat
// "empty means do not validate against me" applies (§4.1).
func (s *Source) SupportedChatParameters() []types.ParameterName { return nil }

// SupportedGenerateParameters implements source.GenerateSource.
func (s *Source) SupportedGenerateParameters() []types.ParameterName { return nil }

func (s *Source) buildChatParams(messages []types.Message, tools []types.ToolDefinition, opts types.ChatOptions) anyllmlib.CompletionParams {
	params := anyllmlib.CompletionParams{
		Model:    s.model(opts.Model),
		Messages: make([]anyllmlib.Message, 0, len(messages)),
	}

	for _, m := range messages {
		params.Messages = append(params.Messages, convertMessage(m))
	}

	if opts.Temperature != nil {
		params.Temperature = opts.Temperature
	}
	if opts.MaxTokens != nil {
		params.MaxTokens = opts.MaxTokens
	}

	for _, td := range tools {
		params.Tools = append(params.Tools, anyllmlib.Tool{
			Type: "function",
			Function: anyllmlib.Function{
				Name:        td.Name,
				Description: td.Description,
				Parameters:  td.Parameters,
			},
		})
	}

	return params
}

func convertMessage(m types.Message) anyllmlib.Message {
	msg := anyllmlib.Message{
		Role:       roleString(m.Role),
		Content:    m.Content.Text,
		Name:       m.Name,
		ToolCallID: m.ToolCallID,
	}
	for _, tc := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, anyllmlib.ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: anyllmlib.FunctionCall{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}
	return msg
}

func roleString(r types.Role) anyllmlib.Role {
	switch r {
	case types.RoleSystem:
		return anyllmlib.RoleSystem
	case types.RoleAssistant:
		return anyllmlib.RoleAssistant
	case types.RoleTool:
		return anyllmlib.RoleTool
	default:
		return anyllmlib.RoleUser
	}
}

var (
	_ source.ChatSource     = (*Source)(nil)
	_ source.GenerateSource = (*Source)(nil)
)
