// Package source defines the six Capability Interfaces a provider adapter
// implements, generalized from the teacher's pkg/provider/llm.Provider
// interface into one narrow interface per capability (§4.1). A concrete
// adapter implements whichever subset its backend supports; the Provider
// Registry (internal/dispatch) composes sources of the same interface into a
// fallback chain.
package source

import (
	"context"

	"github.com/emesal/ratatoskr/pkg/types"
)

// ChatSource serves multi-turn chat completions, streaming or not, plus the
// registry-lookup and parameter-introspection operations the Provider
// Registry needs to do its job.
type ChatSource interface {
	Name() string

	Chat(ctx context.Context, messages []types.Message, tools []types.ToolDefinition, opts types.ChatOptions) (*types.ChatResponse, error)

	// ChatStream returns a pull-based, single-consumer, forward-only,
	// non-restartable sequence of ChatEvent. An error item may appear
	// anywhere; the sequence may still yield further items afterward.
	ChatStream(ctx context.Context, messages []types.Message, tools []types.ToolDefinition, opts types.ChatOptions) (Stream[types.ChatEvent], error)

	// FetchMetadata may fail with rerr.NotImplemented when the source has
	// no registry of its own; the Provider Registry treats that as a
	// fallback trigger.
	FetchMetadata(ctx context.Context, model string) (*types.ModelMetadata, error)

	// SupportedChatParameters returning empty means "do not validate
	// against me" (legacy-compat, §4.1).
	SupportedChatParameters() []types.ParameterName
}

// GenerateSource serves single-turn text completion.
type GenerateSource interface {
	Name() string
	Generate(ctx context.Context, prompt string, opts types.GenerateOptions) (*types.GenerateResponse, error)
	GenerateStream(ctx context.Context, prompt string, opts types.GenerateOptions) (Stream[types.GenerateEvent], error)
	SupportedGenerateParameters() []types.ParameterName
}

// EmbeddingSource serves single and batch embeddings.
type EmbeddingSource interface {
	Name() string
	Embed(ctx context.Context, text, model string) (types.Embedding, error)
	EmbedBatch(ctx context.Context, texts []string, model string) ([]types.Embedding, error)
}

// NLISource serves natural-language inference.
type NLISource interface {
	Name() string
	InferNLI(ctx context.Context, premise, hypothesis, model string) (types.NLIResult, error)
	InferNLIBatch(ctx context.Context, pairs [][2]string, model string) ([]types.NLIResult, error)
}

// ClassifySource serves zero-shot classification.
type ClassifySource interface {
	Name() string
	ClassifyZeroShot(ctx context.Context, text string, labels []string, model string) (types.ClassifyResult, error)
}

// StanceSource serves stance detection.
type StanceSource interface {
	Name() string
	ClassifyStance(ctx context.Context, text, target, model string) (types.StanceResult, error)
}

// Stream models a lazy sequence per §9's design note: a pull-based iterator
// consumed exactly once. Next returns (item, true, nil) for each element,
// then (zero, false, nil) at clean end of sequence, or (zero, false, err) on
// failure — an error does not necessarily end the sequence if the source
// chooses to keep yielding afterward, so callers should call Next again
// after an error unless they intend to abandon the stream via Close.
type Stream[T any] interface {
	Next(ctx context.Context) (T, bool, error)
	// Close abandons the stream; safe to call multiple times. Backpressure
	// wrappers use this to signal the producer to stop promptly.
	Close()
}
