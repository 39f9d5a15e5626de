package dispatch

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/emesal/ratatoskr/pkg/rerr"
	"github.com/emesal/ratatoskr/pkg/source"
	"github.com/emesal/ratatoskr/pkg/types"
)

// delayForAttempt computes the exponential-backoff delay for retry k
// (0-indexed), capped at cfg.MaxDelay. Grounded on
// original_source/src/providers/retry.rs's delay_for_attempt.
func delayForAttempt(cfg types.RetryConfig, attempt int) time.Duration {
	d := cfg.InitialDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cfg.MaxDelay {
			return cfg.MaxDelay
		}
	}
	if d > cfg.MaxDelay {
		d = cfg.MaxDelay
	}
	return d
}

// effectiveDelay applies a server-advised retry hint when present, and
// jitter per spec §4.2: drawn uniformly from [0.5d, 1.5d].
func effectiveDelay(cfg types.RetryConfig, attempt int, retryAfter *time.Duration) time.Duration {
	d := delayForAttempt(cfg, attempt)
	if retryAfter != nil {
		d = *retryAfter
	}
	if cfg.Jitter {
		factor := 0.5 + rand.Float64()
		d = time.Duration(float64(d) * factor)
	}
	return d
}

// sleep blocks for d or until ctx is cancelled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retryTicker is called once per retry attempt; the Provider Registry wires
// this to its telemetry recorder (retries_total).
type retryTicker func(provider, operation string)

// withRetry is the single retry helper every Retrying*Source decorator
// delegates to, mirroring retry.rs's "keep retry logic in one place" note.
// fn is retried while it returns a transient *rerr.Error, up to
// cfg.MaxAttempts - 1 additional times.
func withRetry(ctx context.Context, cfg types.RetryConfig, provider, operation string, onRetry retryTicker, fn func() error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		e, ok := rerr.As(lastErr)
		if !ok || !e.Transient() {
			return lastErr
		}
		if attempt == cfg.MaxAttempts-1 {
			return lastErr
		}
		if onRetry != nil {
			onRetry(provider, operation)
		}
		delay := effectiveDelay(cfg, attempt, e.RetryAfter)
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

// RetryingChatSource wraps a source.ChatSource and retries transient errors
// on Chat and the stream-open call of ChatStream (never mid-stream, per
// §4.2). FetchMetadata is also retried — it is a registry lookup, not a
// stream, and benefits from the same transient-error handling.
type RetryingChatSource struct {
	Inner  source.ChatSource
	Config types.RetryConfig
	OnRetry retryTicker
}

func (r *RetryingChatSource) Name() string { return r.Inner.Name() }

func (r *RetryingChatSource) Chat(ctx context.Context, messages []types.Message, tools []types.ToolDefinition, opts types.ChatOptions) (*types.ChatResponse, error) {
	var resp *types.ChatResponse
	err := withRetry(ctx, r.Config, r.Inner.Name(), "chat", r.OnRetry, func() error {
		var innerErr error
		resp, innerErr = r.Inner.Chat(ctx, messages, tools, opts)
		return innerErr
	})
	return resp, err
}

func (r *RetryingChatSource) ChatStream(ctx context.Context, messages []types.Message, tools []types.ToolDefinition, opts types.ChatOptions) (source.Stream[types.ChatEvent], error) {
	var stream source.Stream[types.ChatEvent]
	err := withRetry(ctx, r.Config, r.Inner.Name(), "chat_stream", r.OnRetry, func() error {
		var innerErr error
		stream, innerErr = r.Inner.ChatStream(ctx, messages, tools, opts)
		return innerErr
	})
	return stream, err
}

func (r *RetryingChatSource) FetchMetadata(ctx context.Context, model string) (*types.ModelMetadata, error) {
	var md *types.ModelMetadata
	err := withRetry(ctx, r.Config, r.Inner.Name(), "fetch_metadata", r.OnRetry, func() error {
		var innerErr error
		md, innerErr = r.Inner.FetchMetadata(ctx, model)
		return innerErr
	})
	return md, err
}

func (r *RetryingChatSource) SupportedChatParameters() []types.ParameterName {
	return r.Inner.SupportedChatParameters()
}

var _ source.ChatSource = (*RetryingChatSource)(nil)

// RetryingGenerateSource is RetryingChatSource's GenerateSource counterpart.
type RetryingGenerateSource struct {
	Inner   source.GenerateSource
	Config  types.RetryConfig
	OnRetry retryTicker
}

func (r *RetryingGenerateSource) Name() string { return r.Inner.Name() }

func (r *RetryingGenerateSource) Generate(ctx context.Context, prompt string, opts types.GenerateOptions) (*types.GenerateResponse, error) {
	var resp *types.GenerateResponse
	err := withRetry(ctx, r.Config, r.Inner.Name(), "generate", r.OnRetry, func() error {
		var innerErr error
		resp, innerErr = r.Inner.Generate(ctx, prompt, opts)
		return innerErr
	})
	return resp, err
}

func (r *RetryingGenerateSource) GenerateStream(ctx context.Context, prompt string, opts types.GenerateOptions) (source.Stream[types.GenerateEvent], error) {
	var stream source.Stream[types.GenerateEvent]
	err := withRetry(ctx, r.Config, r.Inner.Name(), "generate_stream", r.OnRetry, func() error {
		var innerErr error
		stream, innerErr = r.Inner.GenerateStream(ctx, prompt, opts)
		return innerErr
	})
	return stream, err
}

func (r *RetryingGenerateSource) SupportedGenerateParameters() []types.ParameterName {
	return r.Inner.SupportedGenerateParameters()
}

var _ source.GenerateSource = (*RetryingGenerateSource)(nil)

// RetryingEmbeddingSource is RetryingChatSource's EmbeddingSource counterpart.
type RetryingEmbeddingSource struct {
	Inner   source.EmbeddingSource
	Config  types.RetryConfig
	OnRetry retryTicker
}

func (r *RetryingEmbeddingSource) Name() string { return r.Inner.Name() }

func (r *RetryingEmbeddingSource) Embed(ctx context.Context, text, model string) (types.Embedding, error) {
	var resp types.Embedding
	err := withRetry(ctx, r.Config, r.Inner.Name(), "embed", r.OnRetry, func() error {
		var innerErr error
		resp, innerErr = r.Inner.Embed(ctx, text, model)
		return innerErr
	})
	return resp, err
}

func (r *RetryingEmbeddingSource) EmbedBatch(ctx context.Context, texts []string, model string) ([]types.Embedding, error) {
	var resp []types.Embedding
	err := withRetry(ctx, r.Config, r.Inner.Name(), "embed_batch", r.OnRetry, func() error {
		var innerErr error
		resp, innerErr = r.Inner.EmbedBatch(ctx, texts, model)
		return innerErr
	})
	return resp, err
}

var _ source.EmbeddingSource = (*RetryingEmbeddingSource)(nil)

// RetryingNLISource is RetryingChatSource's NLISource counterpart.
type RetryingNLISource struct {
	Inner   source.NLISource
	Config  types.RetryConfig
	OnRetry retryTicker
}

func (r *RetryingNLISource) Name() string { return r.Inner.Name() }

func (r *RetryingNLISource) InferNLI(ctx context.Context, premise, hypothesis, model string) (types.NLIResult, error) {
	var resp types.NLIResult
	err := withRetry(ctx, r.Config, r.Inner.Name(), "infer_nli", r.OnRetry, func() error {
		var innerErr error
		resp, innerErr = r.Inner.InferNLI(ctx, premise, hypothesis, model)
		return innerErr
	})
	return resp, err
}

func (r *RetryingNLISource) InferNLIBatch(ctx context.Context, pairs [][2]string, model string) ([]types.NLIResult, error) {
	var resp []types.NLIResult
	err := withRetry(ctx, r.Config, r.Inner.Name(), "infer_nli_batch", r.OnRetry, func() error {
		var innerErr error
		resp, innerErr = r.Inner.InferNLIBatch(ctx, pairs, model)
		return innerErr
	})
	return resp, err
}

var _ source.NLISource = (*RetryingNLISource)(nil)
