// Package openai implements source.ChatSource, source.GenerateSource and
// source.EmbeddingSource directly against the OpenAI API via
// github.com/openai/openai-go, generalized from the teacher's
// pkg/provider/llm/openai.Provider and pkg/provider/embeddings/openai.Provider
// (kept as two separate types there; merged into one Source here since both
// shared client construction and the gateway addresses them as one source
// per §4.1).
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/emesal/ratatoskr/pkg/rerr"
	"github.com/emesal/ratatoskr/pkg/source"
	"github.com/emesal/ratatoskr/pkg/types"
)

// DefaultEmbeddingModel mirrors the teacher's embeddings default.
const DefaultEmbeddingModel = oai.EmbeddingModelTextEmbedding3Small

// Source wraps one OpenAI API key/client pair, serving chat, generate and
// embeddings for whatever model each call names.
type Source struct {
	client        oai.Client
	defaultModel  string
	defaultEmbeds string
}

type config struct {
	baseURL      string
	organization string
	timeout      time.Duration
}

// Option is a functional option for New, mirroring the teacher's
// WithBaseURL/WithOrganization/WithTimeout trio.
type Option func(*config)

func WithBaseURL(url string) Option      { return func(c *config) { c.baseURL = url } }
func WithOrganization(org string) Option { return func(c *config) { c.organization = org } }
func WithTimeout(d time.Duration) Option { return func(c *config) { c.timeout = d } }

// New constructs a Source. defaultModel is used for Chat/Generate calls that
// leave opts.Model unset; defaultEmbeddingModel falls back to
// DefaultEmbeddingModel when empty.
func New(apiKey, defaultModel, defaultEmbeddingModel string, opts ...Option) (*Source, error) {
	if apiKey == "" {
		return nil, &rerr.Error{Kind: rerr.Configuration, Message: "openai: apiKey must not be empty"}
	}
	if defaultEmbeddingModel == "" {
		defaultEmbeddingModel = DefaultEmbeddingModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(cfg.organization))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Source{
		client:        oai.NewClient(reqOpts...),
		defaultModel:  defaultModel,
		defaultEmbeds: defaultEmbeddingModel,
	}, nil
}

func (s *Source) Name() string { return "openai" }

func (s *Source) model(requested string) string {
	if requested != "" {
		return requested
	}
	return s.defaultModel
}

// Chat implements source.ChatSource.
func (s *Source) Chat(ctx context.Context, messages []types.Message, tools []types.ToolDefinition, opts types.ChatOptions) (*types.ChatResponse, error) {
	params, err := s.buildParams(messages, tools, opts)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, &rerr.Error{Kind: rerr.API, Provider: s.Name(), Model: string(params.Model), Message: "chat completion", Cause: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &rerr.Error{Kind: rerr.EmptyResponse, Provider: s.Name(), Model: string(params.Model), Message: "completion returned no choices"}
	}

	choice := resp.Choices[0]
	out := &types.ChatResponse{
		Content:      choice.Message.Content,
		Model:        string(params.Model),
		FinishReason: types.CustomFinishReason(choice.FinishReason),
		Usage: &types.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, types.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

// ChatStream implements source.ChatSource.
func (s *Source) ChatStream(ctx context.Context, messages []types.Message, tools []types.ToolDefinition, opts types.ChatOptions) (source.Stream[types.ChatEvent], error) {
	params, err := s.buildParams(messages, tools, opts)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream := s.client.Chat.Completions.NewStreaming(streamCtx, params)
	if err := stream.Err(); err != nil {
		cancel()
		return nil, &rerr.Error{Kind: rerr.API, Provider: s.Name(), Model: string(params.Model), Message: "start stream", Cause: err}
	}

	events := make(chan types.ChatEvent, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)
		defer stream.Close()

		toolCallAccum := map[int]*types.ToolCall{}

		for stream.Next() {
			chunk := stream.Current()
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

			for _, tc := range delta.ToolCalls {
				idx := int(tc.Index)
				existing, ok := toolCallAccum[idx]
				if !ok {
					existing = &types.ToolCall{ID: tc.ID, Name: tc.Function.Name}
					toolCallAccum[idx] = existing
					if !emit(streamCtx, events, types.ChatEvent{Kind: types.ChatEventToolCallStart, ToolCallIndex: idx, ToolCallID: tc.ID, ToolCallName: tc.Function.Name}) {
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
					if !emit(streamCtx, events, types.ChatEvent{Kind: types.ChatEventToolCallDelta, ToolCallIndex: idx, Text: tc.Function.Arguments}) {
						return
					}
				}
			}

			if choice.FinishReason != "" {
				for idx := range toolCallAccum {
					if !emit(streamCtx, events, types.ChatEvent{Kind: types.ChatEventToolCallEnd, ToolCallIndex: idx}) {
						return
					}
				}
				emit(streamCtx, events, types.ChatEvent{Kind: types.ChatEventDone})
			}
		}

		if err := stream.Err(); err != nil {
			select {
			case errs <- &rerr.Error{Kind: rerr.Stream, Provider: s.Name(), Model: string(params.Model), Message: "stream", Cause: err}:
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

// FetchMetadata implements source.ChatSource. OpenAI's SDK has no
// model-capability registry endpoint this gateway can rely on; the Provider
// Registry falls back to the local/remote model registry on NotImplemented.
func (s *Source) FetchMetadata(ctx context.Context, model string) (*types.ModelMetadata, error) {
	return nil, &rerr.Error{Kind: rerr.NotImplemented, Op: "fetch_metadata", Provider: s.Name(), Model: model, Message: "openai source has no metadata registry"}
}

// SupportedChatParameters implements source.ChatSource. It declares the set
// below; top_k, reasoning and cache_prompt are not declared. Of the declared
// set, the request builder forwards all but response_format, tool_choice and
// parallel_tool_calls, which are accepted and not sent to the API.
func (s *Source) SupportedChatParameters() []types.ParameterName {
	return []types.ParameterName{
		types.ParamTemperature, types.ParamTopP, types.ParamMaxTokens,
		types.ParamFrequencyPenalty, types.ParamPresencePenalty, types.ParamSeed,
		types.ParamStop, types.ParamResponseFormat, types.ParamToolChoice,
		types.ParamParallelToolCalls,
	}
}

// SupportedGenerateParameters implements source.GenerateSource.
func (s *Source) SupportedGenerateParameters() []types.ParameterName {
	return []types.ParameterName{
		types.ParamTemperature, types.ParamTopP, types.ParamMaxTokens,
		types.ParamFrequencyPenalty, types.ParamPresencePenalty, types.ParamSeed,
		types.ParamStop, types.ParamResponseFormat,
	}
}

func (s *Source) buildParams(messages []types.Message, tools []types.ToolDefinition, opts types.ChatOptions) (oai.ChatCompletionNewParams, error) {
	var msgs []oai.ChatCompletionMessageParamUnion
	for _, m := range messages {
		msg, err := convertMessage(m)
		if err != nil {
			return oai.ChatCompletionNewParams{}, err
		}
		msgs = append(msgs, msg)
	}

	params := oai.ChatCompletionNewParams{
		Model:    shared.ChatModel(s.model(opts.Model)),
		Messages: msgs,
	}

	if opts.Temperature != nil {
		params.Temperature = param.NewOpt(*opts.Temperature)
	}
	if opts.MaxTokens != nil {
		params.MaxCompletionTokens = param.NewOpt(int64(*opts.MaxTokens))
	}
	if opts.TopP != nil {
		params.TopP = param.NewOpt(*opts.TopP)
	}
	if opts.FrequencyPenalty != nil {
		params.FrequencyPenalty = param.NewOpt(*opts.FrequencyPenalty)
	}
	if opts.PresencePenalty != nil {
		params.PresencePenalty = param.NewOpt(*opts.PresencePenalty)
	}
	if opts.Seed != nil {
		params.Seed = param.NewOpt(*opts.Seed)
	}
	if len(opts.Stop) > 0 {
		params.Stop.OfStringArray = opts.Stop
	}

	for _, td := range tools {
		params.Tools = append(params.Tools, oai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        td.Name,
				Description: param.NewOpt(td.Description),
				Parameters:  shared.FunctionParameters(td.Parameters),
			},
		})
	}

	return params, nil
}

func convertMessage(m types.Message) (oai.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case types.RoleSystem:
		return oai.SystemMessage(m.Content.Text), nil
	case types.RoleUser:
		return oai.UserMessage(m.Content.Text), nil
	case types.RoleAssistant:
		asst := oai.ChatCompletionAssistantMessageParam{}
		if m.Content.Text != "" {
			asst.Content.OfString = oai.String(m.Content.Text)
		}
		if m.Name != "" {
			asst.Name = oai.String(m.Name)
		}
		for _, tc := range m.ToolCalls {
			asst.ToolCalls = append(asst.ToolCalls, oai.ChatCompletionMessageToolCallParam{
				ID: tc.ID,
				Function: oai.ChatCompletionMessageToolCallFunctionParam{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		return oai.ChatCompletionMessageParamUnion{OfAssistant: &asst}, nil
	case types.RoleTool:
		return oai.ToolMessage(m.Content.Text, m.ToolCallID), nil
	default:
		return oai.ChatCompletionMessageParamUnion{}, &rerr.Error{Kind: rerr.InvalidInput, Message: fmt.Sprintf("openai: unknown message role %v", m.Role)}
	}
}

// Embed implements source.EmbeddingSource.
func (s *Source) Embed(ctx context.Context, text, model string) (types.Embedding, error) {
	m := s.embedModel(model)
	resp, err := s.client.Embeddings.New(ctx, oai.EmbeddingNewParams{
		Model: m,
		Input: oai.EmbeddingNewParamsInputUnion{OfString: param.NewOpt(text)},
	})
	if err != nil {
		return types.Embedding{}, &rerr.Error{Kind: rerr.API, Provider: s.Name(), Model: m, Message: "embed", Cause: err}
	}
	if len(resp.Data) == 0 {
		return types.Embedding{}, &rerr.Error{Kind: rerr.EmptyResponse, Provider: s.Name(), Model: m, Message: "embed returned no data"}
	}
	return types.NewEmbedding(m, float64ToFloat32(resp.Data[0].Embedding)), nil
}

// EmbedBatch implements source.EmbeddingSource.
func (s *Source) EmbedBatch(ctx context.Context, texts []string, model string) ([]types.Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	m := s.embedModel(model)
	resp, err := s.client.Embeddings.New(ctx, oai.EmbeddingNewParams{
		Model: m,
		Input: oai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, &rerr.Error{Kind: rerr.API, Provider: s.Name(), Model: m, Message: "embed batch", Cause: err}
	}
	if len(resp.Data) != len(texts) {
		return nil, &rerr.Error{Kind: rerr.Data, Provider: s.Name(), Model: m, Message: fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(resp.Data))}
	}

	out := make([]types.Embedding, len(texts))
	for _, e := range resp.Data {
		if int(e.Index) >= len(texts) {
			return nil, &rerr.Error{Kind: rerr.Data, Provider: s.Name(), Model: m, Message: fmt.Sprintf("unexpected index %d", e.Index)}
		}
		out[e.Index] = types.NewEmbedding(m, float64ToFloat32(e.Embedding))
	}
	return out, nil
}

func (s *Source) embedModel(requested string) string {
	if requested != "" {
		return requested
	}
	return s.defaultEmbeds
}

func float64ToFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

var (
	_ source.ChatSource      = (*Source)(nil)
	_ source.GenerateSource  = (*Source)(nil)
	_ source.EmbeddingSource = (*Source)(nil)
)
