package storage

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Borislavv/notion-widget-cache/pkg/clock"
	"github.com/Borislavv/notion-widget-cache/pkg/config"
	"github.com/Borislavv/notion-widget-cache/pkg/model"
	"github.com/Borislavv/notion-widget-cache/pkg/prometheus/metrics"
	"github.com/Borislavv/notion-widget-cache/pkg/utils"
	"github.com/rs/zerolog/log"
)

const (
	tierShared = "shared"
	tierLocal  = "local"

	lookupHit  = "hit"
	lookupMiss = "miss"

	defaultShardLen = 16

	// ReconnectInterval is how often a disconnected shared store is re-PINGed.
	ReconnectInterval = 5 * time.Second
	pingTimeout       = 2 * time.Second
)

// Storage caches widget posts per (widget, filters) in two tiers.
// No method returns an error: shared tier failures degrade to the local tier.
type Storage interface {
	Get(ctx context.Context, widgetID string, f model.Filters) ([]model.Post, bool)
	Set(ctx context.Context, widgetID string, posts []model.Post, f model.Filters)
	Invalidate(ctx context.Context, widgetID string)
	Stats() Stats
	Close() error
}

type Stats struct {
	Enabled              bool  `json:"enabled"`
	SharedStoreConnected bool  `json:"sharedStoreConnected"`
	LocalCacheSize       int64 `json:"localCacheSize"`
	TTL                  int   `json:"ttl"` // seconds
}

type Cache struct {
	enabled bool
	ttl     time.Duration
	shared  SharedStore // nil in local-only mode
	local   *LocalStore
	meter   metrics.Meter

	sharedConnected atomic.Bool
}

// New builds the cache service. A nil shared store means local-only mode.
func New(cfg config.Storage, clk clock.Clock, shared SharedStore, meter metrics.Meter) *Cache {
	shardLen := cfg.LocalCacheShardLen
	if shardLen <= 0 {
		shardLen = defaultShardLen
	}
	c := &Cache{
		enabled: cfg.CacheEnabled,
		ttl:     cfg.TTL(),
		shared:  shared,
		local:   NewLocalStore(clk, shardLen),
		meter:   meter,
	}
	c.sharedConnected.Store(shared != nil)
	return c
}

// Connect dials the shared store once. Any failure is logged and yields local-only mode.
func Connect(ctx context.Context, cfg config.Storage) SharedStore {
	if !cfg.CacheEnabled || !cfg.IsSharedStoreConfigured() {
		log.Info().Msg("[storage] shared store is not configured, running in local-only mode")
		return nil
	}
	store, err := DialRedis(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("[storage] shared store is unreachable, running in local-only mode")
		return nil
	}
	log.Info().Msg("[storage] shared store connected")
	return store
}

// Get looks into the shared tier first (a hit there is authoritative), then into the local tier.
func (c *Cache) Get(ctx context.Context, widgetID string, f model.Filters) ([]model.Post, bool) {
	if !c.enabled {
		return nil, false
	}
	key := model.CacheKey(widgetID, f)

	if c.sharedAvailable() {
		posts, found, err := c.shared.Get(ctx, key)
		c.observeShared("get", err)
		if err == nil && found {
			c.meter.IncCacheLookup(tierShared, lookupHit)
			return posts, true
		}
		if err == nil {
			c.meter.IncCacheLookup(tierShared, lookupMiss)
		}
	}

	if posts, found := c.local.Get(key); found {
		c.meter.IncCacheLookup(tierLocal, lookupHit)
		return posts, true
	}
	c.meter.IncCacheLookup(tierLocal, lookupMiss)
	return nil, false
}

// Set writes both tiers with the same TTL, the local write is unconditional.
func (c *Cache) Set(ctx context.Context, widgetID string, posts []model.Post, f model.Filters) {
	if !c.enabled {
		return
	}
	if posts == nil {
		posts = []model.Post{}
	}
	key := model.CacheKey(widgetID, f)

	if c.sharedAvailable() {
		c.observeShared("set", c.shared.Set(ctx, key, posts, c.ttl))
	}
	c.local.Set(key, posts, c.ttl)
}

// Invalidate drops every entry of the widget regardless of its filters.
func (c *Cache) Invalidate(ctx context.Context, widgetID string) {
	if !c.enabled {
		return
	}
	prefix := model.WidgetKeyPrefix(widgetID)

	var sharedDeleted int
	if c.sharedAvailable() {
		n, err := c.shared.DeleteByPrefix(ctx, prefix)
		c.observeShared("invalidate", err)
		sharedDeleted = n
	}
	localDeleted := c.local.DeleteByPrefix(prefix)

	log.Info().
		Str("widget", widgetID).
		Int("shared", sharedDeleted).
		Int("local", localDeleted).
		Msg("[storage] widget cache invalidated")
}

// Watch re-PINGs a disconnected shared store every interval until ctx is done.
// While disconnected the shared tier is skipped entirely.
func (c *Cache) Watch(ctx context.Context, interval time.Duration) {
	if c.shared == nil || !c.enabled {
		return
	}
	go c.reconnect(ctx, utils.NewTicker(ctx, interval))
}

func (c *Cache) reconnect(ctx context.Context, ticks <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			if c.sharedConnected.Load() {
				continue
			}
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err := c.shared.Ping(pingCtx)
			cancel()
			if err != nil {
				log.Debug().Err(err).Msg("[storage] shared store is still unreachable")
				continue
			}
			c.sharedConnected.Store(true)
			log.Info().Msg("[storage] shared store reconnected")
		}
	}
}

func (c *Cache) sharedAvailable() bool {
	return c.shared != nil && c.sharedConnected.Load()
}

func (c *Cache) Stats() Stats {
	return Stats{
		Enabled:              c.enabled,
		SharedStoreConnected: c.sharedConnected.Load(),
		LocalCacheSize:       c.local.Len(),
		TTL:                  int(c.ttl / time.Second),
	}
}

func (c *Cache) Close() error {
	if c.shared == nil {
		return nil
	}
	return c.shared.Close()
}

// observeShared tracks connectivity and reports shared tier errors without propagating them.
func (c *Cache) observeShared(op string, err error) {
	if err == nil {
		return
	}
	c.sharedConnected.Store(false)
	c.meter.IncCacheBackendError(op)
	log.Warn().Err(err).Str("op", op).Msg("[storage] shared store failed, falling back to local tier")
}
