// Package gateway composes the Provider Registry (internal/dispatch), the
// layered Model Registry (internal/modelregistry), the Response Cache
// (internal/responsecache), telemetry, and the tokenizer into the single
// public facade a server entrypoint embeds, generalized from the teacher's
// cmd/glyphoxa application-wiring layer into a reusable, importable type
// rather than a main-package-only construction.
package gateway

import (
	"github.com/emesal/ratatoskr/internal/dispatch"
	"github.com/emesal/ratatoskr/internal/modelregistry"
	"github.com/emesal/ratatoskr/internal/responsecache"
	"github.com/emesal/ratatoskr/internal/telemetry"
	"github.com/emesal/ratatoskr/pkg/types"
)

// Gateway is the dispatch + registry + cache facade described by the
// capability surface in facade.go. Build one with NewBuilder.
type Gateway struct {
	chat     *dispatch.ChatRegistry
	generate *dispatch.GenerateRegistry
	embed    *dispatch.EmbeddingRegistry
	nli      *dispatch.NLIRegistry
	classify *dispatch.ClassifyRegistry
	stance   *dispatch.StanceRegistry

	models   *modelregistry.Registry
	ephemeral *modelregistry.EphemeralCache
	presets  *modelregistry.PresetTable
	cache    *responsecache.Cache // nil when response caching is disabled
	metrics  *telemetry.Metrics   // nil when no recorder is wired
}

// Builder assembles a Gateway. The zero value is not usable; construct one
// with NewBuilder.
type Builder struct {
	policy         types.ParameterValidationPolicy
	streamBuffer   int
	retryCfg       types.RetryConfig
	discoveryCfg   types.DiscoveryConfig
	cacheCfg       types.CacheConfig
	cacheEnabled   bool
	modelCacheCfg  types.CacheConfig
	metrics       *telemetry.Metrics
	cachedRemote  *types.RemoteRegistryPayload
	presetEntries map[string]map[string]types.PresetEntry
}

// NewBuilder starts a Builder with spec defaults: PolicyWarn, default retry,
// default discovery cache size, response caching disabled (opt-in per §4.9).
func NewBuilder() *Builder {
	return &Builder{
		policy:       types.PolicyWarn,
		streamBuffer: dispatch.DefaultStreamBuffer,
		retryCfg:     types.DefaultRetryConfig(),
		discoveryCfg:  types.DefaultDiscoveryConfig(),
		cacheCfg:      types.DefaultCacheConfig(),
		modelCacheCfg: types.DefaultCacheConfig(),
	}
}

// WithValidationPolicy overrides the Parameter Validator's policy.
func (b *Builder) WithValidationPolicy(p types.ParameterValidationPolicy) *Builder {
	b.policy = p
	return b
}

// WithStreamBufferSize overrides the Backpressure Wrapper's channel depth.
func (b *Builder) WithStreamBufferSize(n int) *Builder {
	b.streamBuffer = n
	return b
}

// WithRetryConfig records cfg on the Builder. Build does not apply it to any
// registry: each AddSource call takes its own retry config.
func (b *Builder) WithRetryConfig(cfg types.RetryConfig) *Builder {
	b.retryCfg = cfg
	return b
}

// WithDiscoveryConfig overrides the Unsupported-Parameter Discovery Cache's
// sizing.
func (b *Builder) WithDiscoveryConfig(cfg types.DiscoveryConfig) *Builder {
	b.discoveryCfg = cfg
	return b
}

// WithResponseCache enables the Response Cache (§4.9) with cfg. Caching
// stays disabled unless this is called.
func (b *Builder) WithResponseCache(cfg types.CacheConfig) *Builder {
	b.cacheEnabled = true
	b.cacheCfg = cfg
	return b
}

// WithModelCacheConfig overrides the Ephemeral Model Cache's sizing — this
// cache is always active (it is the only place fetch_model_metadata results
// live), unlike the opt-in Response Cache.
func (b *Builder) WithModelCacheConfig(cfg types.CacheConfig) *Builder {
	b.modelCacheCfg = cfg
	return b
}

// WithMetrics wires m as the telemetry Recorder for both the Provider
// Registry and the Response Cache.
func (b *Builder) WithMetrics(m *telemetry.Metrics) *Builder {
	b.metrics = m
	return b
}

// WithCachedRemote seeds the Model Registry with a previously fetched and
// persisted remote payload (internal/modelregistry.LoadCachedRemote), merged
// on top of the embedded seed.
func (b *Builder) WithCachedRemote(payload *types.RemoteRegistryPayload) *Builder {
	b.cachedRemote = payload
	return b
}

// WithPresets seeds the Preset Table's config-level entries (always bare
// model ids — parameterized presets arrive only via WithCachedRemote's
// payload, per internal/config.RegistryConfig's doc comment).
func (b *Builder) WithPresets(entries map[string]map[string]types.PresetEntry) *Builder {
	b.presetEntries = entries
	return b
}

// Build assembles the Gateway. It never fails: all of its dependencies are
// in-process constructions with no I/O.
func (b *Builder) Build() *Gateway {
	discovery := dispatch.NewDiscoveryCache(b.discoveryCfg)

	var recorder dispatch.Recorder
	var cacheRecorder responsecache.Recorder
	if b.metrics != nil {
		recorder = b.metrics
		cacheRecorder = b.metrics
	}

	g := &Gateway{
		chat:     dispatch.NewChatRegistry(b.policy, discovery, b.streamBuffer, recorder),
		generate: dispatch.NewGenerateRegistry(b.policy, discovery, b.streamBuffer, recorder),
		embed:    dispatch.NewEmbeddingRegistry(recorder),
		nli:      dispatch.NewNLIRegistry(recorder),
		classify: dispatch.NewClassifyRegistry(recorder),
		stance:   dispatch.NewStanceRegistry(recorder),
		models:   modelregistry.NewSeeded(b.cachedRemote),
		ephemeral: modelregistry.NewEphemeralCache(b.modelCacheCfg),
		presets:  modelregistry.NewPresetTable(b.presetEntries),
		metrics:  b.metrics,
	}
	if b.cacheEnabled {
		g.cache = responsecache.New(b.cacheCfg, cacheRecorder)
	}
	if b.cachedRemote != nil {
		g.presets.Merge(b.cachedRemote.Presets)
	}
	return g
}

// RetryConfigPtr returns a pointer to cfg when enabled, or nil — the shape
// every capability registry's AddSource expects for its retryCfg argument
// (nil disables the Retry Decorator for that source).
func RetryConfigPtr(cfg types.RetryConfig, enabled bool) *types.RetryConfig {
	if !enabled {
		return nil
	}
	c := cfg
	return &c
}

// ChatRegistry exposes the underlying registry for direct source
// registration (AddSource/PreferProvider) by callers that already have a
// source.ChatSource in hand — avoids re-deriving a generic registration
// helper for each of the six capabilities.
func (g *Gateway) ChatRegistry() *dispatch.ChatRegistry { return g.chat }

// GenerateRegistry exposes the underlying registry, see ChatRegistry.
func (g *Gateway) GenerateRegistry() *dispatch.GenerateRegistry { return g.generate }

// EmbeddingRegistry exposes the underlying registry, see ChatRegistry.
func (g *Gateway) EmbeddingRegistry() *dispatch.EmbeddingRegistry { return g.embed }

// NLIRegistry exposes the underlying registry, see ChatRegistry.
func (g *Gateway) NLIRegistry() *dispatch.NLIRegistry { return g.nli }

// ClassifyRegistry exposes the underlying registry, see ChatRegistry.
func (g *Gateway) ClassifyRegistry() *dispatch.ClassifyRegistry { return g.classify }

// StanceRegistry exposes the underlying registry, see ChatRegistry.
func (g *Gateway) StanceRegistry() *dispatch.StanceRegistry { return g.stance }

// ModelRegistry exposes the layered Model Registry for population by a
// startup routine that walks config and calls Insert/Merge directly.
func (g *Gateway) ModelRegistry() *modelregistry.Registry { return g.models }

// PresetTable exposes the Preset Table for startup-time population beyond
// what the Builder was given.
func (g *Gateway) PresetTable() *modelregistry.PresetTable { return g.presets }
