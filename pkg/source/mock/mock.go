// Package mock provides call-recording test doubles for the six capability
// interfaces of pkg/source, grounded on the teacher's
// pkg/provider/llm/mock.Provider (configurable response/error fields,
// mutex-protected call logs, a Reset method, and a compile-time interface
// assertion).
package mock

import (
	"context"
	"sync"

	"github.com/emesal/ratatoskr/pkg/source"
	"github.com/emesal/ratatoskr/pkg/types"
)

// ChatSource is a mock implementation of source.ChatSource. Set the
// response/error fields before use; the *Calls counters are safe to read only after the
// test's calls have completed (there is no synchronization against
// concurrent mutation from the test itself).
type ChatSource struct {
	mu sync.Mutex

	NameValue string

	ChatResponses []*types.ChatResponse // consumed in order; last repeats
	ChatErrs      []error                // consumed in order, aligned with ChatResponses

	StreamEvents []types.ChatEvent
	StreamErr    error

	MetadataResponse *types.ModelMetadata
	MetadataErr      error

	SupportedParams []types.ParameterName

	ChatCalls     int
	StreamCalls   int
	MetadataCalls int
}

func NewChatSource(name string) *ChatSource { return &ChatSource{NameValue: name} }

func (m *ChatSource) Name() string { return m.NameValue }

func (m *ChatSource) Chat(ctx context.Context, messages []types.Message, tools []types.ToolDefinition, opts types.ChatOptions) (*types.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.ChatCalls
	m.ChatCalls++
	var resp *types.ChatResponse
	var err error
	if idx < len(m.ChatResponses) {
		resp = m.ChatResponses[idx]
	} else if len(m.ChatResponses) > 0 {
		resp = m.ChatResponses[len(m.ChatResponses)-1]
	}
	if idx < len(m.ChatErrs) {
		err = m.ChatErrs[idx]
	} else if len(m.ChatErrs) > 0 {
		err = m.ChatErrs[len(m.ChatErrs)-1]
	}
	return resp, err
}

func (m *ChatSource) ChatStream(ctx context.Context, messages []types.Message, tools []types.ToolDefinition, opts types.ChatOptions) (source.Stream[types.ChatEvent], error) {
	m.mu.Lock()
	m.StreamCalls++
	err := m.StreamErr
	events := append([]types.ChatEvent(nil), m.StreamEvents...)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return source.NewSliceStream(events, nil), nil
}

func (m *ChatSource) FetchMetadata(ctx context.Context, model string) (*types.ModelMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MetadataCalls++
	return m.MetadataResponse, m.MetadataErr
}

func (m *ChatSource) SupportedChatParameters() []types.ParameterName { return m.SupportedParams }

func (m *ChatSource) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ChatCalls, m.StreamCalls, m.MetadataCalls = 0, 0, 0
}

var _ source.ChatSource = (*ChatSource)(nil)

// GenerateSource is a mock implementation of source.GenerateSource.
type GenerateSource struct {
	mu sync.Mutex

	NameValue       string
	GenerateResp    *types.GenerateResponse
	GenerateErr     error
	StreamEvents    []types.GenerateEvent
	StreamErr       error
	SupportedParams []types.ParameterName

	GenerateCalls int
	StreamCalls   int
}

func (m *GenerateSource) Name() string { return m.NameValue }

func (m *GenerateSource) Generate(ctx context.Context, prompt string, opts types.GenerateOptions) (*types.GenerateResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateCalls++
	return m.GenerateResp, m.GenerateErr
}

func (m *GenerateSource) GenerateStream(ctx context.Context, prompt string, opts types.GenerateOptions) (source.Stream[types.GenerateEvent], error) {
	m.mu.Lock()
	m.StreamCalls++
	err := m.StreamErr
	events := append([]types.GenerateEvent(nil), m.StreamEvents...)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return source.NewSliceStream(events, nil), nil
}

func (m *GenerateSource) SupportedGenerateParameters() []types.ParameterName { return m.SupportedParams }

var _ source.GenerateSource = (*GenerateSource)(nil)

// EmbeddingSource is a mock implementation of source.EmbeddingSource.
type EmbeddingSource struct {
	mu sync.Mutex

	NameValue string
	EmbedResp types.Embedding
	EmbedErr  error
	BatchResp []types.Embedding
	BatchErr  error

	EmbedCalls int
	BatchCalls int
	LastBatch  []string
}

func (m *EmbeddingSource) Name() string { return m.NameValue }

func (m *EmbeddingSource) Embed(ctx context.Context, text, model string) (types.Embedding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EmbedCalls++
	return m.EmbedResp, m.EmbedErr
}

func (m *EmbeddingSource) EmbedBatch(ctx context.Context, texts []string, model string) ([]types.Embedding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BatchCalls++
	m.LastBatch = append([]string(nil), texts...)
	return m.BatchResp, m.BatchErr
}

var _ source.EmbeddingSource = (*EmbeddingSource)(nil)

// NLISource is a mock implementation of source.NLISource.
type NLISource struct {
	mu sync.Mutex

	NameValue string
	Resp      types.NLIResult
	Err       error
	BatchResp []types.NLIResult
	BatchErr  error
}

func (m *NLISource) Name() string { return m.NameValue }

func (m *NLISource) InferNLI(ctx context.Context, premise, hypothesis, model string) (types.NLIResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Resp, m.Err
}

func (m *NLISource) InferNLIBatch(ctx context.Context, pairs [][2]string, model string) ([]types.NLIResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.BatchResp, m.BatchErr
}

var _ source.NLISource = (*NLISource)(nil)

// ClassifySource is a mock implementation of source.ClassifySource.
type ClassifySource struct {
	NameValue string
	Resp      types.ClassifyResult
	Err       error
}

func (m *ClassifySource) Name() string { return m.NameValue }
func (m *ClassifySource) ClassifyZeroShot(ctx context.Context, text string, labels []string, model string) (types.ClassifyResult, error) {
	return m.Resp, m.Err
}

var _ source.ClassifySource = (*ClassifySource)(nil)

// StanceSource is a mock implementation of source.StanceSource.
type StanceSource struct {
	NameValue string
	Resp      types.StanceResult
	Err       error
	Calls     int
}

func (m *StanceSource) Name() string { return m.NameValue }
func (m *StanceSource) ClassifyStance(ctx context.Context, text, target, model string) (types.StanceResult, error) {
	m.Calls++
	return m.Resp, m.Err
}

var _ source.StanceSource = (*StanceSource)(nil)
