package types

import "time"

// RetryConfig parameterizes the Retry Decorator. MaxAttempts == 1 means no
// retry (the call is made exactly once).
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Jitter       bool
}

// DefaultRetryConfig mirrors original_source/src/providers/retry.rs's
// RetryConfig::default().
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Jitter:       true,
	}
}

// CacheConfig parameterizes an LRU+TTL cache (Response Cache / Ephemeral
// Model Cache).
type CacheConfig struct {
	MaxEntries int
	TTL        time.Duration
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{MaxEntries: 10_000, TTL: time.Hour}
}

// DiscoveryConfig parameterizes the Parameter Discovery Cache.
type DiscoveryConfig struct {
	MaxEntries int
	TTL        time.Duration
}

func DefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{MaxEntries: 1000, TTL: 24 * time.Hour}
}
