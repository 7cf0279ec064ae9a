package storage

import (
	"slices"
	"strings"
	"time"

	"github.com/Borislavv/notion-widget-cache/pkg/clock"
	"github.com/Borislavv/notion-widget-cache/pkg/model"
	sharded "github.com/Borislavv/notion-widget-cache/pkg/storage/map"
)

type entry struct {
	posts     []model.Post
	expiresAt time.Time
}

// LocalStore is the in-process tier. Expired entries are removed lazily on read.
type LocalStore struct {
	clock clock.Clock
	items *sharded.Map[*entry]
}

func NewLocalStore(clk clock.Clock, shardLen int) *LocalStore {
	return &LocalStore{clock: clk, items: sharded.NewMap[*entry](shardLen)}
}

func (s *LocalStore) Get(key string) ([]model.Post, bool) {
	e, found := s.items.Get(key)
	if !found {
		return nil, false
	}
	if !s.clock.Now().Before(e.expiresAt) {
		// a concurrent Set may already have replaced the entry
		s.items.CompareAndDel(key, func(current *entry) bool { return current == e })
		return nil, false
	}
	return slices.Clone(e.posts), true
}

func (s *LocalStore) Set(key string, posts []model.Post, ttl time.Duration) {
	s.items.Set(key, &entry{
		posts:     slices.Clone(posts),
		expiresAt: s.clock.Now().Add(ttl),
	})
}

func (s *LocalStore) DeleteByPrefix(prefix string) int {
	return s.items.DelIf(func(key string, _ *entry) bool {
		return strings.HasPrefix(key, prefix)
	})
}

func (s *LocalStore) Len() int64 {
	return s.items.Len()
}
