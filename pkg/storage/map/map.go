package sharded

import (
	"sync"

	"github.com/zeebo/xxh3"
)

const ShardCount uint64 = 256

// Map is a string-keyed map split into ShardCount independently locked shards.
// The shard of a key is chosen by its xxh3 hash, the full key is stored so lookups never collide.
type Map[V any] struct {
	shards [ShardCount]*Shard[V]
}

func NewMap[V any](defaultLen int) *Map[V] {
	m := &Map[V]{}
	for id := uint64(0); id < ShardCount; id++ {
		m.shards[id] = NewShard[V](id, defaultLen)
	}
	return m
}

func (smap *Map[V]) GetShardKey(key string) uint64 {
	return xxh3.HashString(key) % ShardCount
}

func (smap *Map[V]) Shard(key string) *Shard[V] {
	return smap.shards[smap.GetShardKey(key)]
}

func (smap *Map[V]) Set(key string, value V) {
	smap.Shard(key).Set(key, value)
}

func (smap *Map[V]) Get(key string) (value V, found bool) {
	return smap.Shard(key).Get(key)
}

func (smap *Map[V]) Del(key string) (value V, found bool) {
	return smap.Shard(key).Del(key)
}

// CompareAndDel removes key only while match still holds for its current value.
func (smap *Map[V]) CompareAndDel(key string, match func(V) bool) bool {
	return smap.Shard(key).CompareAndDel(key, match)
}

// DelIf removes every entry for which fn returns true and reports how many were removed.
func (smap *Map[V]) DelIf(fn func(key string, value V) bool) int {
	var (
		mu      sync.Mutex
		removed int
	)
	smap.WalkShards(func(_ uint64, shard *Shard[V]) {
		n := shard.DelIf(fn)
		mu.Lock()
		removed += n
		mu.Unlock()
	})
	return removed
}

func (smap *Map[V]) WalkShards(fn func(key uint64, shard *Shard[V])) {
	var wg sync.WaitGroup
	wg.Add(int(ShardCount))
	defer wg.Wait()
	for k, s := range smap.shards {
		go func(key uint64, shard *Shard[V]) {
			defer wg.Done()
			fn(key, shard)
		}(uint64(k), s)
	}
}

func (smap *Map[V]) Len() int64 {
	var length int64
	for _, shard := range smap.shards {
		length += shard.Len.Load()
	}
	return length
}
