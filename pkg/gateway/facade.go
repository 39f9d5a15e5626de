package gateway

import (
	"context"

	"github.com/emesal/ratatoskr/internal/responsecache"
	"github.com/emesal/ratatoskr/internal/tokenizer"
	"github.com/emesal/ratatoskr/pkg/rerr"
	"github.com/emesal/ratatoskr/pkg/source"
	"github.com/emesal/ratatoskr/pkg/types"
)

// resolveModel resolves the `ratatoskr:{tier}/{slot}` preset-URI scheme at
// the entry of every model-id-taking operation (§6, §9): a non-preset id
// passes through unchanged; an unknown tier/slot is an InvalidInput error
// rather than silently falling through to a provider that will not
// recognise the literal "ratatoskr:..." string as a model id.
func (g *Gateway) resolveModel(op, modelID string) (string, error) {
	resolved, ok := g.presets.ResolveModelID(modelID)
	if !ok {
		return "", &rerr.Error{Kind: rerr.InvalidInput, Op: op, Model: modelID, Message: "gateway: unknown preset " + modelID}
	}
	return resolved, nil
}

// Capabilities reports which of the six capability tags have at least one
// registered source, plus CapTokenCounting (always available — count_tokens
// and tokenize never dispatch to a provider).
func (g *Gateway) Capabilities() types.CapabilitySet {
	caps := types.NewCapabilitySet(types.CapTokenCounting)
	if len(g.chat.ProviderNames()) > 0 {
		caps.Insert(types.CapChat)
		caps.Insert(types.CapChatStreaming)
		caps.Insert(types.CapToolUse)
	}
	if len(g.generate.ProviderNames()) > 0 {
		caps.Insert(types.CapGenerate)
	}
	if len(g.embed.ProviderNames()) > 0 {
		caps.Insert(types.CapEmbed)
	}
	if len(g.nli.ProviderNames()) > 0 {
		caps.Insert(types.CapNLI)
	}
	if len(g.classify.ProviderNames()) > 0 {
		caps.Insert(types.CapClassify)
	}
	if len(g.stance.ProviderNames()) > 0 {
		caps.Insert(types.CapStance)
	}
	return caps
}

// ListModels returns the union of the Model Registry's seeded/merged-remote
// entries and the Ephemeral Model Cache's live-fetched entries (§4.8), one
// ModelInfo per distinct id. An id present in both sources uses the MR
// entry, since EMC entries only ever supplement a model the MR does not yet
// know in full.
func (g *Gateway) ListModels() []types.ModelInfo {
	seen := make(map[string]struct{})
	out := make([]types.ModelInfo, 0, g.models.Len())
	for _, m := range g.models.List() {
		seen[m.Info.ID] = struct{}{}
		out = append(out, m.Info)
	}
	for _, id := range g.ephemeral.Keys() {
		if _, ok := seen[id]; ok {
			continue
		}
		if m, ok := g.ephemeral.Get(id); ok {
			out = append(out, m.Info)
		}
	}
	return out
}

// ModelStatus reports the runtime status of a model id (§6). This gateway
// has no local-inference loading-state concept (unlike the reference
// implementation, which models that for in-process backends) — status here
// is registry-presence based: Available if the resolved id is known to the
// Model Registry or Ephemeral Cache, Unavailable{reason: "unknown model"}
// otherwise.
func (g *Gateway) ModelStatus(modelID string) (types.ModelStatus, error) {
	resolved, err := g.resolveModel("model_status", modelID)
	if err != nil {
		return types.ModelStatus{}, err
	}
	if _, ok := g.models.Get(resolved); ok {
		return types.Available(), nil
	}
	if _, ok := g.ephemeral.Get(resolved); ok {
		return types.Available(), nil
	}
	return types.Unavailable("unknown model"), nil
}

// ModelMetadata is the synchronous, registry-only counterpart of
// FetchModelMetadata: preset → MR → EMC, no network call (§4.8).
func (g *Gateway) ModelMetadata(modelID string) (*types.ModelMetadata, error) {
	resolved, err := g.resolveModel("model_metadata", modelID)
	if err != nil {
		return nil, err
	}
	if m, ok := g.models.Get(resolved); ok {
		return &m, nil
	}
	if m, ok := g.ephemeral.Get(resolved); ok {
		return &m, nil
	}
	return nil, nil
}

// FetchModelMetadata walks the chat-provider chain's FetchMetadata (§4.1,
// §4.4 step 4: a NotImplemented source falls through to the next) and, on
// success, populates the Ephemeral Model Cache so future ModelMetadata/
// ListModels calls see it without another network round trip.
func (g *Gateway) FetchModelMetadata(ctx context.Context, modelID string) (*types.ModelMetadata, error) {
	resolved, err := g.resolveModel("fetch_model_metadata", modelID)
	if err != nil {
		return nil, err
	}
	md, err := g.chat.FetchMetadata(ctx, resolved)
	if err != nil {
		return nil, err
	}
	g.ephemeral.Put(resolved, *md)
	return md, nil
}

// CountTokens implements count_tokens(text, model) → int directly against
// the tokenizer package — token counting never dispatches through a
// capability registry (there is no per-provider tokenizer override in this
// gateway; see internal/tokenizer's package doc).
func (g *Gateway) CountTokens(text, modelID string) (int, error) {
	resolved, err := g.resolveModel("count_tokens", modelID)
	if err != nil {
		return 0, err
	}
	return tokenizer.CountTokens(text, resolved)
}

// Tokenize implements tokenize(text, model) → [Token], see CountTokens.
func (g *Gateway) Tokenize(text, modelID string) ([]types.Token, error) {
	resolved, err := g.resolveModel("tokenize", modelID)
	if err != nil {
		return nil, err
	}
	return tokenizer.Tokenize(text, resolved)
}

// ResolvePreset implements resolve_preset(tier, slot) → model_id? (§6).
func (g *Gateway) ResolvePreset(tier, slot string) (string, bool) {
	return g.presets.ResolvePreset(tier, slot)
}

// --- capability pass-throughs ---
//
// Each of these resolves the model id's preset URI (where the operation
// takes one) before dispatching to its registry. Embed, EmbedBatch, InferNLI
// and InferNLIBatch additionally consult the Response Cache (the cacheable
// operations) per §4.9; the other operations always dispatch.

// Chat dispatches a multi-turn chat completion.
func (g *Gateway) Chat(ctx context.Context, messages []types.Message, tools []types.ToolDefinition, opts types.ChatOptions) (*types.ChatResponse, error) {
	resolved, err := g.resolveModel("chat", opts.Model)
	if err != nil {
		return nil, err
	}
	opts.Model = resolved
	return g.chat.Chat(ctx, messages, tools, opts)
}

// ChatStream dispatches a streaming multi-turn chat completion.
func (g *Gateway) ChatStream(ctx context.Context, messages []types.Message, tools []types.ToolDefinition, opts types.ChatOptions) (source.Stream[types.ChatEvent], error) {
	resolved, err := g.resolveModel("chat_stream", opts.Model)
	if err != nil {
		return nil, err
	}
	opts.Model = resolved
	return g.chat.ChatStream(ctx, messages, tools, opts)
}

// Generate dispatches a single-turn completion.
func (g *Gateway) Generate(ctx context.Context, prompt string, opts types.GenerateOptions) (*types.GenerateResponse, error) {
	resolved, err := g.resolveModel("generate", opts.Model)
	if err != nil {
		return nil, err
	}
	opts.Model = resolved
	return g.generate.Generate(ctx, prompt, opts)
}

// GenerateStream dispatches a streaming single-turn completion.
func (g *Gateway) GenerateStream(ctx context.Context, prompt string, opts types.GenerateOptions) (source.Stream[types.GenerateEvent], error) {
	resolved, err := g.resolveModel("generate_stream", opts.Model)
	if err != nil {
		return nil, err
	}
	opts.Model = resolved
	return g.generate.GenerateStream(ctx, prompt, opts)
}

// Embed dispatches a single-text embedding, consulting the Response Cache
// first when one is configured.
func (g *Gateway) Embed(ctx context.Context, text, modelID string) (types.Embedding, error) {
	resolved, err := g.resolveModel("embed", modelID)
	if err != nil {
		return types.Embedding{}, err
	}
	if g.cache != nil {
		if v, ok := g.cache.GetEmbedding(resolved, text); ok {
			return v, nil
		}
	}
	result, err := g.embed.Embed(ctx, text, resolved)
	if err != nil {
		return types.Embedding{}, err
	}
	if g.cache != nil {
		g.cache.InsertEmbedding(resolved, text, result)
	}
	return result, nil
}

// EmbedBatch dispatches a batch embedding call, serving cached members of
// the batch from the Response Cache and dispatching only the misses,
// reassembled in input order by responsecache.MergeEmbeddingBatch.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string, modelID string) ([]types.Embedding, error) {
	resolved, err := g.resolveModel("embed_batch", modelID)
	if err != nil {
		return nil, err
	}
	if g.cache == nil {
		return g.embed.EmbedBatch(ctx, texts, resolved)
	}

	hit, hits, misses := g.cache.BatchMisses(resolved, texts)
	var results []types.Embedding
	if len(misses) > 0 {
		results, err = g.embed.EmbedBatch(ctx, misses, resolved)
		if err != nil {
			return nil, err
		}
		g.cache.InsertEmbeddingBatch(resolved, misses, results)
	}
	merged, err := responsecache.MergeEmbeddingBatch(texts, hit, hits, results)
	if err != nil {
		return nil, &rerr.Error{Kind: rerr.Data, Op: "embed_batch", Message: "gateway: " + err.Error(), Cause: err}
	}
	return merged, nil
}

// InferNLI dispatches a single NLI pair, consulting the Response Cache first.
func (g *Gateway) InferNLI(ctx context.Context, premise, hypothesis, modelID string) (types.NLIResult, error) {
	resolved, err := g.resolveModel("infer_nli", modelID)
	if err != nil {
		return types.NLIResult{}, err
	}
	if g.cache != nil {
		if v, ok := g.cache.GetNLI(resolved, premise, hypothesis); ok {
			return v, nil
		}
	}
	result, err := g.nli.InferNLI(ctx, premise, hypothesis, resolved)
	if err != nil {
		return types.NLIResult{}, err
	}
	if g.cache != nil {
		g.cache.InsertNLI(resolved, premise, hypothesis, result)
	}
	return result, nil
}

// InferNLIBatch dispatches a batch of NLI pairs. Unlike EmbedBatch, the
// Response Cache exposes no batch helper for NLI pairs (its cache key needs
// both premise and hypothesis, not a single text), so each pair is looked up
// in the cache individually and the misses are dispatched together as one
// batch call.
func (g *Gateway) InferNLIBatch(ctx context.Context, pairs [][2]string, modelID string) ([]types.NLIResult, error) {
	resolved, err := g.resolveModel("infer_nli_batch", modelID)
	if err != nil {
		return nil, err
	}
	out := make([]types.NLIResult, len(pairs))
	var uncached [][2]string
	var uncachedIdx []int
	for i, pair := range pairs {
		if g.cache != nil {
			if v, ok := g.cache.GetNLI(resolved, pair[0], pair[1]); ok {
				out[i] = v
				continue
			}
		}
		uncached = append(uncached, pair)
		uncachedIdx = append(uncachedIdx, i)
	}
	if len(uncached) == 0 {
		return out, nil
	}
	results, err := g.nli.InferNLIBatch(ctx, uncached, resolved)
	if err != nil {
		return nil, err
	}
	for j, idx := range uncachedIdx {
		out[idx] = results[j]
		if g.cache != nil {
			g.cache.InsertNLI(resolved, uncached[j][0], uncached[j][1], results[j])
		}
	}
	return out, nil
}

// ClassifyZeroShot dispatches zero-shot classification. Not cached — the
// Response Cache covers only the deterministic operations named in §4.9,
// and candidate label sets vary per call, which would blow up the cache key
// space for little reuse benefit.
func (g *Gateway) ClassifyZeroShot(ctx context.Context, text string, labels []string, modelID string) (types.ClassifyResult, error) {
	resolved, err := g.resolveModel("classify_zero_shot", modelID)
	if err != nil {
		return types.ClassifyResult{}, err
	}
	return g.classify.ClassifyZeroShot(ctx, text, labels, resolved)
}

// ClassifyStance dispatches stance detection. Not cached, see
// ClassifyZeroShot.
func (g *Gateway) ClassifyStance(ctx context.Context, text, target, modelID string) (types.StanceResult, error) {
	resolved, err := g.resolveModel("classify_stance", modelID)
	if err != nil {
		return types.StanceResult{}, err
	}
	return g.stance.ClassifyStance(ctx, text, target, resolved)
}
