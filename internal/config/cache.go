package config

import "time"

// CacheConfig tunes the response cache in front of the shift listing.
// A short TTL keeps listings fresh enough while absorbing bursts of
// identical reads after a publish announcement goes out.
type CacheConfig struct {
	Enabled      bool
	TTL          time.Duration
	Prefix       string
	MaxBodyBytes int
}

func LoadCacheConfig() CacheConfig {
	cfg := CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		TTL:          envDur("CACHE_TTL", 30*time.Second),
		Prefix:       envStr("CACHE_PREFIX", "cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
	if cfg.MaxBodyBytes < 1 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return cfg
}
