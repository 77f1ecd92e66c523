package state

import (
	"sync"

	"go-antiraid/pkg/util"
)

const (
	ShardCount = 64
	ShardMask  = ShardCount - 1
)

// GuildKey identifies per-guild state.
type GuildKey uint64

// ActorKey identifies per-(guild, actor) state.
type ActorKey struct {
	GuildID uint64
	UserID  uint64
}

// Hashable keys pick their shard.
type Hashable interface {
	comparable
	Shard() uint64
}

func (k GuildKey) Shard() uint64 {
	return util.HashIndex64(uint64(k), ShardMask)
}

func (k ActorKey) Shard() uint64 {
	return util.HashPair(k.GuildID, k.UserID) & ShardMask
}

type entry[V any] struct {
	mu   sync.Mutex
	dead bool
	val  V
}

type shard[K Hashable, V any] struct {
	mu      sync.RWMutex
	entries map[K]*entry[V]
}

// Keyed is a sharded concurrent map. Shard locks only guard membership; every
// read-modify-write runs under the entry's own mutex so unrelated keys never
// contend.
type Keyed[K Hashable, V any] struct {
	shards [ShardCount]shard[K, V]
}

func NewKeyed[K Hashable, V any]() *Keyed[K, V] {
	k := &Keyed[K, V]{}
	for i := range k.shards {
		k.shards[i].entries = make(map[K]*entry[V])
	}
	return k
}

func (k *Keyed[K, V]) shardFor(key K) *shard[K, V] {
	return &k.shards[key.Shard()&ShardMask]
}

func (k *Keyed[K, V]) lookup(key K) *entry[V] {
	s := k.shardFor(key)
	s.mu.RLock()
	e := s.entries[key]
	s.mu.RUnlock()
	return e
}

func (k *Keyed[K, V]) getOrCreate(key K) *entry[V] {
	if e := k.lookup(key); e != nil {
		return e
	}

	s := k.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, exists := s.entries[key]; exists {
		return e
	}
	e := &entry[V]{}
	s.entries[key] = e
	return e
}

// Update runs fn with exclusive access to the value for key, creating a zero
// value first if the key is new.
func (k *Keyed[K, V]) Update(key K, fn func(v *V)) {
	for {
		e := k.getOrCreate(key)
		e.mu.Lock()
		if e.dead {
			// Lost a race with Delete or Prune; retry on a fresh entry.
			e.mu.Unlock()
			continue
		}
		fn(&e.val)
		e.mu.Unlock()
		return
	}
}

// View runs fn with exclusive access to an existing value. It reports false
// without calling fn when the key has never been written.
func (k *Keyed[K, V]) View(key K, fn func(v *V)) bool {
	e := k.lookup(key)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		return false
	}
	fn(&e.val)
	return true
}

// Delete drops key and its value.
func (k *Keyed[K, V]) Delete(key K) {
	s := k.shardFor(key)
	s.mu.Lock()
	e := s.entries[key]
	delete(s.entries, key)
	s.mu.Unlock()

	if e != nil {
		e.mu.Lock()
		e.dead = true
		e.mu.Unlock()
	}
}

// Prune removes every entry for which drop returns true and reports how many
// entries were removed. drop runs under the entry lock.
func (k *Keyed[K, V]) Prune(drop func(key K, v *V) bool) int {
	removed := 0
	for i := range k.shards {
		s := &k.shards[i]
		s.mu.Lock()
		for key, e := range s.entries {
			e.mu.Lock()
			gone := drop(key, &e.val)
			if gone {
				e.dead = true
			}
			e.mu.Unlock()
			if gone {
				delete(s.entries, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len counts live keys.
func (k *Keyed[K, V]) Len() int {
	n := 0
	for i := range k.shards {
		s := &k.shards[i]
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}
