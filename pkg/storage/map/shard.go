package sharded

import (
	"sync"
	"sync/atomic"
)

type Shard[V any] struct {
	sync.RWMutex
	id    uint64
	items map[string]V
	Len   *atomic.Int64
}

func NewShard[V any](id uint64, defaultLen int) *Shard[V] {
	return &Shard[V]{
		id:    id,
		items: make(map[string]V, defaultLen),
		Len:   &atomic.Int64{},
	}
}

func (shard *Shard[V]) ID() uint64 {
	return shard.id
}

func (shard *Shard[V]) Set(key string, value V) {
	shard.Lock()
	_, exists := shard.items[key]
	shard.items[key] = value
	shard.Unlock()

	if !exists {
		shard.Len.Add(1)
	}
}

func (shard *Shard[V]) Get(key string) (value V, found bool) {
	shard.RLock()
	v, ok := shard.items[key]
	shard.RUnlock()
	return v, ok
}

func (shard *Shard[V]) Del(key string) (value V, found bool) {
	shard.Lock()
	v, f := shard.items[key]
	if f {
		delete(shard.items, key)
		shard.Len.Add(-1)
	}
	shard.Unlock()
	return v, f
}

func (shard *Shard[V]) CompareAndDel(key string, match func(V) bool) bool {
	shard.Lock()
	defer shard.Unlock()
	v, f := shard.items[key]
	if !f || !match(v) {
		return false
	}
	delete(shard.items, key)
	shard.Len.Add(-1)
	return true
}

func (shard *Shard[V]) DelIf(fn func(key string, value V) bool) (removed int) {
	shard.Lock()
	defer shard.Unlock()
	for k, v := range shard.items {
		if fn(k, v) {
			delete(shard.items, k)
			removed++
		}
	}
	shard.Len.Add(-int64(removed))
	return removed
}
