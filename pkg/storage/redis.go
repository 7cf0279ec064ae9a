package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Borislavv/notion-widget-cache/pkg/config"
	"github.com/Borislavv/notion-widget-cache/pkg/model"
	"github.com/redis/go-redis/v9"
)

const (
	defaultDialTimeout = 2 * time.Second
	scanCount          = 100
)

// SharedStore is the optional cross-process tier.
type SharedStore interface {
	Get(ctx context.Context, key string) ([]model.Post, bool, error)
	Set(ctx context.Context, key string, posts []model.Post, ttl time.Duration) error
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
	Ping(ctx context.Context) error
	Close() error
}

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// DialRedis builds a client from cfg and checks it with a PING bounded by RedisDialTimeout.
func DialRedis(ctx context.Context, cfg config.Storage) (*RedisStore, error) {
	var opts *redis.Options
	if cfg.RedisURL != "" {
		parsed, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, &BackendError{Op: "parse-url", Err: err}
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}
	}

	timeout := cfg.RedisDialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	opts.DialTimeout = timeout
	opts.ReadTimeout = timeout
	opts.WriteTimeout = timeout

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, &BackendError{Op: "ping", Err: err}
	}

	return NewRedisStore(client), nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]model.Post, bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, &BackendError{Op: "get", Key: key, Err: err}
	}

	var posts []model.Post
	if err = json.Unmarshal(raw, &posts); err != nil {
		return nil, false, &BackendError{Op: "decode", Key: key, Err: err}
	}
	if posts == nil {
		posts = []model.Post{}
	}
	return posts, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, posts []model.Post, ttl time.Duration) error {
	if posts == nil {
		posts = []model.Post{}
	}
	raw, err := json.Marshal(posts)
	if err != nil {
		return &BackendError{Op: "encode", Key: key, Err: err}
	}
	if err = s.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return &BackendError{Op: "set", Key: key, Err: err}
	}
	return nil
}

// DeleteByPrefix collects every key matching SCAN MATCH <prefix>* and only then deletes them in batches,
// deleting mid-scan shifts the cursor and skips keys.
// The prefix must not contain glob metacharacters (model keys are query-escaped).
func (s *RedisStore) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	var (
		cursor uint64
		keys   []string
		seen   = make(map[string]struct{})
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, prefix+"*", scanCount).Result()
		if err != nil {
			return 0, &BackendError{Op: "scan", Key: prefix, Err: err}
		}
		for _, key := range batch {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	var deleted int
	for start := 0; start < len(keys); start += scanCount {
		end := min(start+scanCount, len(keys))
		n, err := s.client.Del(ctx, keys[start:end]...).Result()
		if err != nil {
			return deleted, &BackendError{Op: "del", Key: prefix, Err: err}
		}
		deleted += int(n)
	}
	return deleted, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return &BackendError{Op: "ping", Err: err}
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
