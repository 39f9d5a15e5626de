package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known source names across all capabilities. Used by
// [Validate] to warn about unrecognised provider names — a typo here
// otherwise surfaces only as a confusing runtime "no provider" error.
var ValidProviderNames = []string{"openai", "anthropic", "mistral", "huggingface", "ollama", "gemini", "deepseek", "groq", "llamacpp", "llamafile"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	switch cfg.Server.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	switch cfg.Validation.Policy {
	case "", "ignore", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("validation.policy %q is invalid; valid values: ignore, warn, error", cfg.Validation.Policy))
	}

	validateEntries("providers.chat", cfg.Providers.Chat, &errs)
	validateEntries("providers.generate", cfg.Providers.Generate, &errs)
	validateEntries("providers.embed", cfg.Providers.Embed, &errs)
	validateEntries("providers.nli", cfg.Providers.NLI, &errs)
	validateEntries("providers.classify", cfg.Providers.Classify, &errs)
	validateEntries("providers.stance", cfg.Providers.Stance, &errs)

	return errors.Join(errs...)
}

func validateEntries(field string, entries []ProviderEntry, errs *[]error) {
	for i, e := range entries {
		prefix := fmt.Sprintf("%s[%d]", field, i)
		if e.Name == "" {
			*errs = append(*errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		validateProviderName(prefix, e.Name)
	}
}

// validateProviderName logs a warning if name is not found in
// [ValidProviderNames] — may be a typo, or a legitimate third-party source
// registered outside this list, so it is a warning, not an error.
func validateProviderName(prefix, name string) {
	for _, known := range ValidProviderNames {
		if known == name {
			return
		}
	}
	slog.Warn("unknown provider name — may be a typo or a third-party source",
		"field", prefix,
		"name", name,
		"known", ValidProviderNames,
	)
}
