package modelregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/emesal/ratatoskr/pkg/rerr"
	"github.com/emesal/ratatoskr/pkg/types"
)

// DefaultRegistryURL is the default source for the curated remote registry,
// grounded on original_source/src/registry/remote.rs's DEFAULT_REGISTRY_URL.
const DefaultRegistryURL = "https://raw.githubusercontent.com/emesal/ratatoskr-registry/main/registry.json"

// DefaultCachePath resolves to <user cache dir>/ratatoskr/registry.json,
// the Go analogue of the original's dirs::cache_dir()-based default.
func DefaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = ".cache"
	}
	return filepath.Join(dir, "ratatoskr", "registry.json")
}

// LoadCachedRemote reads and parses a previously cached registry payload
// from path. A missing file is not an error — startup loads from local
// cache only and simply proceeds without a remote layer (§4.8: "Startup
// loads from local cache only (fast, no network)").
func LoadCachedRemote(path string) (*types.RemoteRegistryPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, rerr.Wrap(rerr.Data, "read cached registry", err)
	}
	var payload types.RemoteRegistryPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, rerr.Wrap(rerr.Configuration, "parse cached registry JSON", err)
	}
	if payload.Version > types.MaxSupportedRegistryVersion {
		return nil, &rerr.Error{Kind: rerr.Configuration, Op: "load_cached_registry", Message: fmt.Sprintf("unsupported registry version %d (max supported: %d)", payload.Version, types.MaxSupportedRegistryVersion)}
	}
	return &payload, nil
}

// UpdateRegistry fetches url, validates and parses it, writes it verbatim to
// cachePath, and returns the parsed payload — the supplemented "live
// network fetch" operation (§6), invoked by the ratd `-update-registry`
// flag rather than on every process start.
func UpdateRegistry(ctx context.Context, client *http.Client, url, cachePath string) (*types.RemoteRegistryPayload, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, rerr.Wrap(rerr.Configuration, "build registry fetch request", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, rerr.Wrap(rerr.HTTPTransport, "fetch remote registry", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &rerr.Error{Kind: rerr.API, Status: resp.StatusCode, Op: "update_registry", Message: fmt.Sprintf("unexpected status fetching registry: %d", resp.StatusCode)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, rerr.Wrap(rerr.HTTPTransport, "read registry response body", err)
	}

	var payload types.RemoteRegistryPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, rerr.Wrap(rerr.Configuration, "parse remote registry JSON", err)
	}
	if payload.Version > types.MaxSupportedRegistryVersion {
		return nil, &rerr.Error{Kind: rerr.Configuration, Op: "update_registry", Message: fmt.Sprintf("unsupported registry version %d (max supported: %d)", payload.Version, types.MaxSupportedRegistryVersion)}
	}

	if cachePath != "" {
		if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
			return nil, rerr.Wrap(rerr.Data, "create registry cache directory", err)
		}
		if err := os.WriteFile(cachePath, data, 0o644); err != nil {
			return nil, rerr.Wrap(rerr.Data, "write registry cache file", err)
		}
	}
	return &payload, nil
}
