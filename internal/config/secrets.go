package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// providerEnvVars maps a source name to the environment variable its API
// key conventionally lives in, for sources that don't set api_key_env
// explicitly. Grounded on original_source/src/server/config.rs's
// PROVIDER_ENV_VARS table.
var providerEnvVars = map[string]string{
	"openai":      "OPENAI_API_KEY",
	"anthropic":   "ANTHROPIC_API_KEY",
	"mistral":     "MISTRAL_API_KEY",
	"huggingface": "HF_API_KEY",
}

// Secrets holds API keys loaded from a secrets file, keyed by source name.
// Resolution order, mirroring original_source/src/server/config.rs: a
// secrets file (user then system path), then the provider's conventional
// environment variable.
type Secrets struct {
	Keys map[string]string `yaml:"keys"`
}

// LoadSecrets loads secrets from the standard locations:
//  1. $HOME/.ratatoskr/secrets.yaml (if present, must not be group/other
//     readable)
//  2. /etc/ratatoskr/secrets.yaml (same permission requirement)
//
// Returns an empty Secrets if neither file exists — sources may still
// resolve keys from environment variables.
func LoadSecrets() (*Secrets, error) {
	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".ratatoskr", "secrets.yaml")
		if _, err := os.Stat(path); err == nil {
			return loadSecretsFile(path)
		}
	}

	const systemPath = "/etc/ratatoskr/secrets.yaml"
	if _, err := os.Stat(systemPath); err == nil {
		return loadSecretsFile(systemPath)
	}

	return &Secrets{Keys: map[string]string{}}, nil
}

func loadSecretsFile(path string) (*Secrets, error) {
	if err := checkSecretsPermissions(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open secrets %q: %w", path, err)
	}
	defer f.Close()

	s := &Secrets{}
	if err := yaml.NewDecoder(f).Decode(s); err != nil {
		return nil, fmt.Errorf("config: decode secrets %q: %w", path, err)
	}
	if s.Keys == nil {
		s.Keys = map[string]string{}
	}
	return s, nil
}

// checkSecretsPermissions rejects a secrets file that is readable by group
// or other — a key file intended to hold API keys should be 0600 or 0400.
func checkSecretsPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("config: stat secrets %q: %w", path, err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		return fmt.Errorf("config: secrets file %q has insecure permissions %o; must be 0600 or 0400", path, info.Mode().Perm())
	}
	return nil
}

// APIKey resolves the API key for entry, trying, in order: the literal
// APIKey field, the environment variable named by APIKeyEnv, this Secrets'
// entry for entry.Name, and finally entry.Name's conventional environment
// variable from providerEnvVars.
func (s *Secrets) APIKey(entry ProviderEntry) string {
	if entry.APIKey != "" {
		return entry.APIKey
	}
	if entry.APIKeyEnv != "" {
		if v := os.Getenv(entry.APIKeyEnv); v != "" {
			return v
		}
	}
	if s != nil {
		if v := s.Keys[entry.Name]; v != "" {
			return v
		}
	}
	if envVar, ok := providerEnvVars[entry.Name]; ok {
		return os.Getenv(envVar)
	}
	return ""
}
