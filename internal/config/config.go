// Package config provides the configuration schema, loader, and secrets
// resolution for the ratatoskr gateway daemon (cmd/ratd).
package config

import (
	"time"

	"github.com/emesal/ratatoskr/internal/dispatch"
	"github.com/emesal/ratatoskr/pkg/types"
)

// Config is the root configuration structure for ratatoskr.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Retry      RetryConfig      `yaml:"retry"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Cache      CacheConfig      `yaml:"response_cache"`
	Validation ValidationConfig `yaml:"validation"`
	Registry   RegistryConfig   `yaml:"registry"`
}

// ServerConfig holds network and logging settings for the ratatoskr daemon.
type ServerConfig struct {
	// ListenAddr is the TCP address for a transport fronting the gateway
	// (e.g., ":9741"). cmd/ratd wires no transport and does not read it.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Valid values: "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level"`

	// StreamBufferSize is the channel depth for the backpressure wrapper
	// around every streaming capability (§4.3).
	StreamBufferSize int `yaml:"stream_buffer_size"`
}

// ProvidersConfig declares, per capability, the ordered list of sources to
// register with that capability's Registry — index 0 is the highest
// priority (tried first).
type ProvidersConfig struct {
	Chat     []ProviderEntry `yaml:"chat"`
	Generate []ProviderEntry `yaml:"generate"`
	Embed    []ProviderEntry `yaml:"embed"`
	NLI      []ProviderEntry `yaml:"nli"`
	Classify []ProviderEntry `yaml:"classify"`
	Stance   []ProviderEntry `yaml:"stance"`
}

// ProviderEntry is the common configuration block shared by every source
// construction, regardless of capability or backend.
type ProviderEntry struct {
	// Name selects the source implementation (e.g. "openai", "anthropic",
	// "mistral", "huggingface") and doubles as the lookup key for the
	// secrets file and the conventional provider env var (see Secrets.APIKey).
	Name string `yaml:"name"`

	// APIKey is the authentication key, read directly from config. Prefer
	// APIKeyEnv or a secrets file over committing a key here.
	APIKey string `yaml:"api_key"`

	// APIKeyEnv names an environment variable to read the key from when
	// APIKey is empty; Secrets.APIKey then falls back further to the secrets
	// file entry for Name and the conventional env var for Name.
	APIKeyEnv string `yaml:"api_key_env"`

	// BaseURL overrides the source's default API endpoint. Leave empty to
	// use the source's built-in default.
	BaseURL string `yaml:"base_url"`

	// DefaultModel is used when a request does not name a model explicitly.
	DefaultModel string `yaml:"default_model"`

	// CircuitBreaker, when non-nil, wraps this entry with a per-source
	// circuit breaker (opt-in per §5 PR note — disabled unless configured).
	CircuitBreaker *CircuitBreakerConfig `yaml:"circuit_breaker"`

	// Options holds source-specific configuration values not covered by the
	// fields above (e.g. a local inference device, a region).
	Options map[string]any `yaml:"options"`
}

// RetryConfig mirrors types.RetryConfig with YAML tags. Durations are
// decoded as plain integers in nanoseconds by yaml.v3 — the same
// convention the rest of the example corpus uses for time.Duration fields.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	Jitter       bool          `yaml:"jitter"`
}

// ToTypes converts a config-layer RetryConfig to the types.RetryConfig the
// dispatch package expects, falling back to types.DefaultRetryConfig when
// MaxAttempts is unset.
func (r RetryConfig) ToTypes() types.RetryConfig {
	if r.MaxAttempts <= 0 {
		return types.DefaultRetryConfig()
	}
	return types.RetryConfig{
		MaxAttempts:  r.MaxAttempts,
		InitialDelay: r.InitialDelay,
		MaxDelay:     r.MaxDelay,
		Jitter:       r.Jitter,
	}
}

// DiscoveryConfig mirrors types.DiscoveryConfig with YAML tags.
type DiscoveryConfig struct {
	MaxEntries int           `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"`
}

func (d DiscoveryConfig) ToTypes() types.DiscoveryConfig {
	if d.MaxEntries <= 0 {
		return types.DefaultDiscoveryConfig()
	}
	return types.DiscoveryConfig{MaxEntries: d.MaxEntries, TTL: d.TTL}
}

// CacheConfig mirrors types.CacheConfig with YAML tags. Enabled gates
// whether the response cache is constructed at all — it is opt-in (§4.9).
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	MaxEntries int           `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"`
}

func (c CacheConfig) ToTypes() types.CacheConfig {
	if c.MaxEntries <= 0 {
		return types.DefaultCacheConfig()
	}
	return types.CacheConfig{MaxEntries: c.MaxEntries, TTL: c.TTL}
}

// ValidationConfig selects the Parameter Validator's policy (§4.5).
type ValidationConfig struct {
	// Policy is one of "ignore", "warn", "error". Empty defaults to "warn".
	Policy string `yaml:"policy"`
}

// ToTypes parses Policy into types.ParameterValidationPolicy, defaulting to
// PolicyWarn for an empty or unrecognised value.
func (v ValidationConfig) ToTypes() types.ParameterValidationPolicy {
	switch v.Policy {
	case "ignore":
		return types.PolicyIgnore
	case "error":
		return types.PolicyError
	default:
		return types.PolicyWarn
	}
}

// CircuitBreakerConfig mirrors dispatch.CircuitBreakerConfig with YAML tags.
type CircuitBreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
	HalfOpenMax  int           `yaml:"half_open_max"`
}

// ToTypes converts a config-layer CircuitBreakerConfig to the
// dispatch.CircuitBreakerConfig a Registry's AddSource expects, tagging it
// with name (the owning provider entry) and falling back to the breaker's
// own zero-value defaults when fields are unset.
func (c CircuitBreakerConfig) ToTypes(name string) *dispatch.CircuitBreakerConfig {
	return &dispatch.CircuitBreakerConfig{
		Name:         name,
		MaxFailures:  c.MaxFailures,
		ResetTimeout: c.ResetTimeout,
		HalfOpenMax:  c.HalfOpenMax,
	}
}

// RegistryConfig configures the layered Model Registry (§4.8): where the
// embedded seed's local cache overlay lives on disk, and where to fetch a
// fresh remote payload from when `-update-registry` is passed.
type RegistryConfig struct {
	// CachePath overrides modelregistry.DefaultCachePath().
	CachePath string `yaml:"cache_path"`

	// RemoteURL overrides modelregistry.DefaultRegistryURL.
	RemoteURL string `yaml:"remote_url"`

	// Presets declares the `ratatoskr:{tier}/{slot}` preset table (§6) as
	// tier → slot → model id. Config-level presets are always bare model
	// ids; presets carrying default parameters can only arrive via the
	// remote registry payload (types.PresetEntry's JSON union), not YAML.
	Presets map[string]map[string]string `yaml:"presets"`
}

// PresetTableEntries converts Presets into the
// map[string]map[string]types.PresetEntry shape modelregistry.NewPresetTable
// expects, wrapping each bare model id with types.NewBarePreset.
func (r RegistryConfig) PresetTableEntries() map[string]map[string]types.PresetEntry {
	out := make(map[string]map[string]types.PresetEntry, len(r.Presets))
	for tier, slots := range r.Presets {
		entries := make(map[string]types.PresetEntry, len(slots))
		for slot, modelID := range slots {
			entries[slot] = types.NewBarePreset(modelID)
		}
		out[tier] = entries
	}
	return out
}
