package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/emesal/ratatoskr/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecrets_APIKeyPrefersLiteralField(t *testing.T) {
	s := &config.Secrets{Keys: map[string]string{"openai": "from-secrets"}}
	entry := config.ProviderEntry{Name: "openai", APIKey: "literal-key"}
	assert.Equal(t, "literal-key", s.APIKey(entry))
}

func TestSecrets_APIKeyFallsBackToEnvVar(t *testing.T) {
	t.Setenv("MY_CUSTOM_KEY", "env-value")
	s := &config.Secrets{}
	entry := config.ProviderEntry{Name: "openai", APIKeyEnv: "MY_CUSTOM_KEY"}
	assert.Equal(t, "env-value", s.APIKey(entry))
}

func TestSecrets_APIKeyFallsBackToSecretsMap(t *testing.T) {
	s := &config.Secrets{Keys: map[string]string{"anthropic": "from-secrets"}}
	entry := config.ProviderEntry{Name: "anthropic"}
	assert.Equal(t, "from-secrets", s.APIKey(entry))
}

func TestSecrets_APIKeyFallsBackToConventionalEnvVar(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "conventional-value")
	s := &config.Secrets{}
	entry := config.ProviderEntry{Name: "openai"}
	assert.Equal(t, "conventional-value", s.APIKey(entry))
}

func TestSecrets_APIKeyUnknownProviderReturnsEmpty(t *testing.T) {
	s := &config.Secrets{}
	entry := config.ProviderEntry{Name: "nonexistent"}
	assert.Equal(t, "", s.APIKey(entry))
}

func TestLoadSecrets_NoFilesReturnsEmpty(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	s, err := config.LoadSecrets()
	require.NoError(t, err)
	assert.Empty(t, s.Keys)
}

func TestLoadSecrets_InsecurePermissionsRejected(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".ratatoskr")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "secrets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keys:\n  openai: sk-test\n"), 0o644))

	_, err := config.LoadSecrets()
	assert.Error(t, err)
}

func TestLoadSecrets_SecurePermissionsLoadKeys(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".ratatoskr")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "secrets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keys:\n  openai: sk-test\n"), 0o600))

	s, err := config.LoadSecrets()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", s.Keys["openai"])
}
