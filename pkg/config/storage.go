package config

import "time"

const defaultCacheTTL = 30 * time.Second

type Storage struct {
	// CacheEnabled turns both cache tiers into a pass-through when false.
	CacheEnabled bool `mapstructure:"CACHE_ENABLED"`
	// CacheTTLSeconds is shared by the redis tier (server-side expiry) and the local tier.
	CacheTTLSeconds    int `mapstructure:"CACHE_TTL_SECONDS"`
	LocalCacheShardLen int `mapstructure:"LOCAL_CACHE_SHARD_LEN"`

	// RedisURL takes precedence over RedisAddr/RedisPassword/RedisDB.
	// Both empty means local-only mode.
	RedisURL         string        `mapstructure:"REDIS_URL"`
	RedisAddr        string        `mapstructure:"REDIS_ADDR"`
	RedisPassword    string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB          int           `mapstructure:"REDIS_DB"`
	RedisDialTimeout time.Duration `mapstructure:"REDIS_DIAL_TIMEOUT"`
}

func (s Storage) TTL() time.Duration {
	if s.CacheTTLSeconds <= 0 {
		return defaultCacheTTL
	}
	return time.Duration(s.CacheTTLSeconds) * time.Second
}

func (s Storage) IsSharedStoreConfigured() bool {
	return s.RedisURL != "" || s.RedisAddr != ""
}
