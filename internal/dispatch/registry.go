package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/emesal/ratatoskr/pkg/rerr"
	"github.com/emesal/ratatoskr/pkg/source"
	"github.com/emesal/ratatoskr/pkg/types"
)

// Recorder is the telemetry sink the Provider Registry reports through.
// internal/telemetry provides the OpenTelemetry-backed implementation; the
// zero value of this package's registries uses noopRecorder so a Registry
// built without one simply does not emit metrics (§6: "no recorder attached
// ⇒ no-ops").
type Recorder interface {
	RecordRequest(provider, operation, status string, duration time.Duration)
	RecordTokens(provider, model string, promptTokens, completionTokens int)
	RecordRetry(provider, operation string)
}

type noopRecorder struct{}

func (noopRecorder) RecordRequest(string, string, string, time.Duration) {}
func (noopRecorder) RecordTokens(string, string, int, int)               {}
func (noopRecorder) RecordRetry(string, string)                          {}

// entry is one registered source plus its optional circuit breaker.
type entry[S any] struct {
	name    string
	source  S
	breaker *CircuitBreaker
}

// Registry is the capability-agnostic core of the Provider Registry (§4.4):
// an ordered list of sources of a single capability interface S, dispatched
// with fallback-on-trigger semantics. The six capability-specific registries
// below (ChatRegistry, GenerateRegistry, ...) each wrap one Registry[S] and
// add their capability's parameter validation, telemetry labels, and stream
// wrapping.
type Registry[S any] struct {
	mu       sync.RWMutex
	entries  []entry[S]
	recorder Recorder
}

func newRegistry[S any](recorder Recorder) *Registry[S] {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Registry[S]{recorder: recorder}
}

// add appends src at the lowest current priority (index 0 remains the
// first-ever-added source, per §4.4, until PreferProvider rotates another
// one to the front).
func (r *Registry[S]) add(name string, src S, breaker *CircuitBreaker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry[S]{name: name, source: src, breaker: breaker})
}

// preferProvider rotates the named source to index 0, preserving the
// relative order of the rest (§4.4).
func (r *Registry[S]) preferProvider(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := -1
	for i, e := range r.entries {
		if e.name == name {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return
	}
	preferred := r.entries[idx]
	rest := make([]entry[S], 0, len(r.entries)-1)
	rest = append(rest, r.entries[:idx]...)
	rest = append(rest, r.entries[idx+1:]...)
	r.entries = append([]entry[S]{preferred}, rest...)
}

func (r *Registry[S]) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.name
	}
	return out
}

func (r *Registry[S]) snapshot() []entry[S] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]entry[S](nil), r.entries...)
}

// isFallbackTrigger implements the union used by step 4 of §4.4: a
// fallback-trigger error is ModelNotAvailable, (for fetch_metadata only)
// NotImplemented, or any error still classified transient after the retry
// decorator has already exhausted its attempts.
func isFallbackTrigger(err error, op string) bool {
	e, ok := rerr.As(err)
	if !ok {
		return false
	}
	return e.Transient() || e.FallbackTrigger(op)
}

// dispatch walks entries in priority order performing call against each
// source until one succeeds, hits a non-fallback-trigger error (returned
// immediately), or the list is exhausted. It returns the winning source's
// registered name alongside the result for telemetry/token-accounting
// purposes.
func dispatch[S any, R any](ctx context.Context, reg *Registry[S], op string, call func(context.Context, S) (R, error)) (R, string, error) {
	var zero R
	entries := reg.snapshot()
	if len(entries) == 0 {
		return zero, "", &rerr.Error{Kind: rerr.NoProvider, Op: op, Message: "no source registered for this capability"}
	}

	var lastErr error
	for _, e := range entries {
		start := time.Now()
		var result R
		var err error
		if e.breaker != nil {
			cbErr := e.breaker.Execute(func() error {
				var innerErr error
				result, innerErr = call(ctx, e.source)
				return innerErr
			})
			if cbErr == ErrCircuitOpen {
				err = &rerr.Error{Kind: rerr.ModelNotAvailable, Op: op, Provider: e.name, Reason: "circuit breaker open"}
			} else {
				err = cbErr
			}
		} else {
			result, err = call(ctx, e.source)
		}
		duration := time.Since(start)

		if err == nil {
			reg.recorder.RecordRequest(e.name, op, "ok", duration)
			return result, e.name, nil
		}
		if isFallbackTrigger(err, op) {
			reg.recorder.RecordRequest(e.name, op, "fallback", duration)
			lastErr = err
			continue
		}
		reg.recorder.RecordRequest(e.name, op, "error", duration)
		return zero, e.name, err
	}
	return zero, "", lastErr
}

// --- ChatRegistry ---

// ChatRegistry composes Retry Decorator, Parameter Validator, Backpressure
// Wrapper, and the §4.4 dispatch algorithm over a priority-ordered list of
// source.ChatSource.
type ChatRegistry struct {
	reg        *Registry[source.ChatSource]
	policy     types.ParameterValidationPolicy
	pdc        UnsupportedChecker
	bufferSize int
}

// NewChatRegistry builds an empty registry. policy is used as given; its zero
// value is PolicyIgnore, so callers pass the policy explicitly (PolicyWarn is
// the usual default).
func NewChatRegistry(policy types.ParameterValidationPolicy, pdc UnsupportedChecker, bufferSize int, recorder Recorder) *ChatRegistry {
	if bufferSize <= 0 {
		bufferSize = DefaultStreamBuffer
	}
	return &ChatRegistry{reg: newRegistry[source.ChatSource](recorder), policy: policy, pdc: pdc, bufferSize: bufferSize}
}

// AddSource registers src at the lowest current priority. When retryCfg is
// non-nil the source is wrapped in a RetryingChatSource first, so the call
// chain is registry → retry → concrete (§4.4 "Registration"). When
// breakerCfg is non-nil an opt-in CircuitBreaker gates the entry.
func (c *ChatRegistry) AddSource(src source.ChatSource, retryCfg *types.RetryConfig, breakerCfg *CircuitBreakerConfig) {
	wrapped := src
	if retryCfg != nil {
		wrapped = &RetryingChatSource{
			Inner:  src,
			Config: *retryCfg,
			OnRetry: func(provider, op string) {
				c.reg.recorder.RecordRetry(provider, op)
			},
		}
	}
	var cb *CircuitBreaker
	if breakerCfg != nil {
		cfg := *breakerCfg
		cfg.Name = src.Name()
		cb = NewCircuitBreaker(cfg)
	}
	c.reg.add(src.Name(), wrapped, cb)
}

// PreferProvider rotates the named provider to the front of the chain.
func (c *ChatRegistry) PreferProvider(name string) { c.reg.preferProvider(name) }

// ProviderNames lists registered chat providers in priority order — a
// supplemented introspection operation used by the gateway facade's
// capabilities() surface.
func (c *ChatRegistry) ProviderNames() []string { return c.reg.names() }

func (c *ChatRegistry) Chat(ctx context.Context, messages []types.Message, tools []types.ToolDefinition, opts types.ChatOptions) (*types.ChatResponse, error) {
	requested := types.SetChatParameters(opts)
	resp, provider, err := dispatch(ctx, c.reg, "chat", func(ctx context.Context, src source.ChatSource) (*types.ChatResponse, error) {
		if verr := ValidateParameters(requested, src.SupportedChatParameters(), c.policy, c.pdc, src.Name(), opts.Model); verr != nil {
			return nil, verr
		}
		return src.Chat(ctx, messages, tools, opts)
	})
	if err == nil && resp != nil && resp.Usage != nil {
		c.reg.recorder.RecordTokens(provider, opts.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}
	return resp, err
}

// ChatStream dispatches chat_stream, then wraps the winning source's
// sequence in a BoundedStream (§4.3) before returning it.
func (c *ChatRegistry) ChatStream(ctx context.Context, messages []types.Message, tools []types.ToolDefinition, opts types.ChatOptions) (source.Stream[types.ChatEvent], error) {
	requested := types.SetChatParameters(opts)
	stream, _, err := dispatch(ctx, c.reg, "chat_stream", func(ctx context.Context, src source.ChatSource) (source.Stream[types.ChatEvent], error) {
		if verr := ValidateParameters(requested, src.SupportedChatParameters(), c.policy, c.pdc, src.Name(), opts.Model); verr != nil {
			return nil, verr
		}
		return src.ChatStream(ctx, messages, tools, opts)
	})
	if err != nil {
		return nil, err
	}
	return NewBoundedStream(ctx, stream, c.bufferSize), nil
}

// FetchMetadata dispatches fetch_metadata; a NotImplemented from one source
// falls through to the next (§4.1, §4.4 step 4).
func (c *ChatRegistry) FetchMetadata(ctx context.Context, model string) (*types.ModelMetadata, error) {
	md, _, err := dispatch(ctx, c.reg, "fetch_metadata", func(ctx context.Context, src source.ChatSource) (*types.ModelMetadata, error) {
		return src.FetchMetadata(ctx, model)
	})
	return md, err
}

// --- GenerateRegistry ---

// GenerateRegistry is ChatRegistry's single-turn-completion counterpart.
type GenerateRegistry struct {
	reg        *Registry[source.GenerateSource]
	policy     types.ParameterValidationPolicy
	pdc        UnsupportedChecker
	bufferSize int
}

func NewGenerateRegistry(policy types.ParameterValidationPolicy, pdc UnsupportedChecker, bufferSize int, recorder Recorder) *GenerateRegistry {
	if bufferSize <= 0 {
		bufferSize = DefaultStreamBuffer
	}
	return &GenerateRegistry{reg: newRegistry[source.GenerateSource](recorder), policy: policy, pdc: pdc, bufferSize: bufferSize}
}

func (g *GenerateRegistry) AddSource(src source.GenerateSource, retryCfg *types.RetryConfig, breakerCfg *CircuitBreakerConfig) {
	wrapped := src
	if retryCfg != nil {
		wrapped = &RetryingGenerateSource{
			Inner:  src,
			Config: *retryCfg,
			OnRetry: func(provider, op string) {
				g.reg.recorder.RecordRetry(provider, op)
			},
		}
	}
	var cb *CircuitBreaker
	if breakerCfg != nil {
		cfg := *breakerCfg
		cfg.Name = src.Name()
		cb = NewCircuitBreaker(cfg)
	}
	g.reg.add(src.Name(), wrapped, cb)
}

func (g *GenerateRegistry) PreferProvider(name string) { g.reg.preferProvider(name) }
func (g *GenerateRegistry) ProviderNames() []string    { return g.reg.names() }

func (g *GenerateRegistry) Generate(ctx context.Context, prompt string, opts types.GenerateOptions) (*types.GenerateResponse, error) {
	requested := types.SetGenerateParameters(opts)
	resp, provider, err := dispatch(ctx, g.reg, "generate", func(ctx context.Context, src source.GenerateSource) (*types.GenerateResponse, error) {
		if verr := ValidateParameters(requested, src.SupportedGenerateParameters(), g.policy, g.pdc, src.Name(), opts.Model); verr != nil {
			return nil, verr
		}
		return src.Generate(ctx, prompt, opts)
	})
	if err == nil && resp != nil && resp.Usage != nil {
		g.reg.recorder.RecordTokens(provider, opts.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}
	return resp, err
}

func (g *GenerateRegistry) GenerateStream(ctx context.Context, prompt string, opts types.GenerateOptions) (source.Stream[types.GenerateEvent], error) {
	requested := types.SetGenerateParameters(opts)
	stream, _, err := dispatch(ctx, g.reg, "generate_stream", func(ctx context.Context, src source.GenerateSource) (source.Stream[types.GenerateEvent], error) {
		if verr := ValidateParameters(requested, src.SupportedGenerateParameters(), g.policy, g.pdc, src.Name(), opts.Model); verr != nil {
			return nil, verr
		}
		return src.GenerateStream(ctx, prompt, opts)
	})
	if err != nil {
		return nil, err
	}
	return NewBoundedStream(ctx, stream, g.bufferSize), nil
}

// --- EmbeddingRegistry ---

// EmbeddingRegistry has no parameter validation surface (embeddings take no
// ChatOptions/GenerateOptions) and no streaming, per §4.1's interface table.
type EmbeddingRegistry struct {
	reg *Registry[source.EmbeddingSource]
}

func NewEmbeddingRegistry(recorder Recorder) *EmbeddingRegistry {
	return &EmbeddingRegistry{reg: newRegistry[source.EmbeddingSource](recorder)}
}

func (e *EmbeddingRegistry) AddSource(src source.EmbeddingSource, retryCfg *types.RetryConfig, breakerCfg *CircuitBreakerConfig) {
	wrapped := src
	if retryCfg != nil {
		wrapped = &RetryingEmbeddingSource{
			Inner:  src,
			Config: *retryCfg,
			OnRetry: func(provider, op string) {
				e.reg.recorder.RecordRetry(provider, op)
			},
		}
	}
	var cb *CircuitBreaker
	if breakerCfg != nil {
		cfg := *breakerCfg
		cfg.Name = src.Name()
		cb = NewCircuitBreaker(cfg)
	}
	e.reg.add(src.Name(), wrapped, cb)
}

func (e *EmbeddingRegistry) PreferProvider(name string) { e.reg.preferProvider(name) }
func (e *EmbeddingRegistry) ProviderNames() []string    { return e.reg.names() }

func (e *EmbeddingRegistry) Embed(ctx context.Context, text, model string) (types.Embedding, error) {
	result, _, err := dispatch(ctx, e.reg, "embed", func(ctx context.Context, src source.EmbeddingSource) (types.Embedding, error) {
		return src.Embed(ctx, text, model)
	})
	return result, err
}

func (e *EmbeddingRegistry) EmbedBatch(ctx context.Context, texts []string, model string) ([]types.Embedding, error) {
	result, _, err := dispatch(ctx, e.reg, "embed_batch", func(ctx context.Context, src source.EmbeddingSource) ([]types.Embedding, error) {
		return src.EmbedBatch(ctx, texts, model)
	})
	return result, err
}

// --- NLIRegistry ---

type NLIRegistry struct {
	reg *Registry[source.NLISource]
}

func NewNLIRegistry(recorder Recorder) *NLIRegistry {
	return &NLIRegistry{reg: newRegistry[source.NLISource](recorder)}
}

func (n *NLIRegistry) AddSource(src source.NLISource, retryCfg *types.RetryConfig, breakerCfg *CircuitBreakerConfig) {
	wrapped := src
	if retryCfg != nil {
		wrapped = &RetryingNLISource{
			Inner:  src,
			Config: *retryCfg,
			OnRetry: func(provider, op string) {
				n.reg.recorder.RecordRetry(provider, op)
			},
		}
	}
	var cb *CircuitBreaker
	if breakerCfg != nil {
		cfg := *breakerCfg
		cfg.Name = src.Name()
		cb = NewCircuitBreaker(cfg)
	}
	n.reg.add(src.Name(), wrapped, cb)
}

func (n *NLIRegistry) PreferProvider(name string) { n.reg.preferProvider(name) }
func (n *NLIRegistry) ProviderNames() []string    { return n.reg.names() }

func (n *NLIRegistry) InferNLI(ctx context.Context, premise, hypothesis, model string) (types.NLIResult, error) {
	result, _, err := dispatch(ctx, n.reg, "infer_nli", func(ctx context.Context, src source.NLISource) (types.NLIResult, error) {
		return src.InferNLI(ctx, premise, hypothesis, model)
	})
	return result, err
}

func (n *NLIRegistry) InferNLIBatch(ctx context.Context, pairs [][2]string, model string) ([]types.NLIResult, error) {
	result, _, err := dispatch(ctx, n.reg, "infer_nli_batch", func(ctx context.Context, src source.NLISource) ([]types.NLIResult, error) {
		return src.InferNLIBatch(ctx, pairs, model)
	})
	return result, err
}

// --- ClassifyRegistry ---

// ClassifyRegistry is deliberately never retry-wrapped (original_source's
// registry.rs notes classify/stance backends are typically local inference,
// where transient network retry logic has no upstream to apply to), but it
// still composes the fallback-trigger dispatch loop and the opt-in circuit
// breaker.
type ClassifyRegistry struct {
	reg *Registry[source.ClassifySource]
}

func NewClassifyRegistry(recorder Recorder) *ClassifyRegistry {
	return &ClassifyRegistry{reg: newRegistry[source.ClassifySource](recorder)}
}

func (c *ClassifyRegistry) AddSource(src source.ClassifySource, breakerCfg *CircuitBreakerConfig) {
	var cb *CircuitBreaker
	if breakerCfg != nil {
		cfg := *breakerCfg
		cfg.Name = src.Name()
		cb = NewCircuitBreaker(cfg)
	}
	c.reg.add(src.Name(), src, cb)
}

func (c *ClassifyRegistry) PreferProvider(name string) { c.reg.preferProvider(name) }
func (c *ClassifyRegistry) ProviderNames() []string    { return c.reg.names() }

func (c *ClassifyRegistry) ClassifyZeroShot(ctx context.Context, text string, labels []string, model string) (types.ClassifyResult, error) {
	result, _, err := dispatch(ctx, c.reg, "classify_zero_shot", func(ctx context.Context, src source.ClassifySource) (types.ClassifyResult, error) {
		return src.ClassifyZeroShot(ctx, text, labels, model)
	})
	return result, err
}

// --- StanceRegistry ---

type StanceRegistry struct {
	reg *Registry[source.StanceSource]
}

func NewStanceRegistry(recorder Recorder) *StanceRegistry {
	return &StanceRegistry{reg: newRegistry[source.StanceSource](recorder)}
}

func (s *StanceRegistry) AddSource(src source.StanceSource, breakerCfg *CircuitBreakerConfig) {
	var cb *CircuitBreaker
	if breakerCfg != nil {
		cfg := *breakerCfg
		cfg.Name = src.Name()
		cb = NewCircuitBreaker(cfg)
	}
	s.reg.add(src.Name(), src, cb)
}

func (s *StanceRegistry) PreferProvider(name string) { s.reg.preferProvider(name) }
func (s *StanceRegistry) ProviderNames() []string    { return s.reg.names() }

func (s *StanceRegistry) ClassifyStance(ctx context.Context, text, target, model string) (types.StanceResult, error) {
	result, _, err := dispatch(ctx, s.reg, "classify_stance", func(ctx context.Context, src source.StanceSource) (types.StanceResult, error) {
		return src.ClassifyStance(ctx, text, target, model)
	})
	return result, err
}
