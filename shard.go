package tlfu

import "sync"

// shard is one partition of the concurrent map (spec.md §4.1), adapted
// directly from the teacher's per-shard sync.RWMutex + map[string]*entry
// layout in bicache.Shard, generalized to an arbitrary comparable key and
// value type.
type shard[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]*entry[K, V]

	// epoch is bumped by invalidate_all(); entries whose captured epoch
	// falls behind this value are treated as already removed by any
	// reader, even before maintenance has physically evicted them.
	epoch uint64
}

func newShard[K comparable, V any](initialCapacity int) *shard[K, V] {
	return &shard[K, V]{items: make(map[K]*entry[K, V], initialCapacity)}
}

// get returns the live entry for key, or nil if absent or stale relative
// to the shard's current invalidate_all() epoch.
func (s *shard[K, V]) get(key K) *entry[K, V] {
	s.mu.RLock()
	e := s.items[key]
	epoch := s.epoch
	s.mu.RUnlock()

	if e == nil || e.epoch != epoch {
		return nil
	}
	return e
}

// upsert stores e at key, stamping it with the shard's current epoch, and
// returns whatever entry previously occupied that key (nil if none).
func (s *shard[K, V]) upsert(key K, e *entry[K, V]) (old *entry[K, V]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old = s.items[key]
	e.epoch = s.epoch
	s.items[key] = e
	return old
}

// remove deletes key if present and returns the entry that was removed.
func (s *shard[K, V]) remove(key K) (old *entry[K, V]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old = s.items[key]
	if old != nil {
		delete(s.items, key)
	}
	return old
}

// shardMap routes keys to shards by hash, mirroring the teacher's
// Bicache.getShard — generalized from a hard-coded FNV loop to the
// cache's configured Hasher.
type shardMap[K comparable, V any] struct {
	shards []*shard[K, V]
	mask   uint64
	hasher func(K) uint64
}

func newShardMap[K comparable, V any](shardCount, initialCapacity int, hasher func(K) uint64) *shardMap[K, V] {
	n := nextPowerOfTwo(shardCount)
	sm := &shardMap[K, V]{
		shards: make([]*shard[K, V], n),
		mask:   uint64(n - 1),
		hasher: hasher,
	}
	perShardCapacity := initialCapacity / n
	for i := range sm.shards {
		sm.shards[i] = newShard[K, V](perShardCapacity)
	}
	return sm
}

func (sm *shardMap[K, V]) shardFor(hash uint64) *shard[K, V] {
	return sm.shards[hash&sm.mask]
}

// removeIfSame deletes key from its shard only if the live entry there is
// still e — guarding against the maintenance task evicting an entry that a
// concurrent write has already replaced at that key.
func (sm *shardMap[K, V]) removeIfSame(hash uint64, key K, e *entry[K, V]) bool {
	s := sm.shardFor(hash)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.items[key] != e {
		return false
	}
	delete(s.items, key)
	return true
}

// bumpEpoch advances every shard's invalidate_all() generation counter,
// making every currently-stored entry a lazy miss on its next read without
// requiring an immediate scan (spec.md SPEC_FULL §4 EXPANDED item 2).
func (sm *shardMap[K, V]) bumpEpoch() {
	for _, s := range sm.shards {
		s.mu.Lock()
		s.epoch++
		s.mu.Unlock()
	}
}

// forEach calls fn once per live entry across every shard, used by
// InvalidateEntriesIf and Iterate. Each shard's live entries are copied
// under its read lock and fn runs after the lock is released, so fn may
// remove entries from the shard map.
func (sm *shardMap[K, V]) forEach(fn func(e *entry[K, V])) {
	for _, s := range sm.shards {
		s.mu.RLock()
		epoch := s.epoch
		items := make([]*entry[K, V], 0, len(s.items))
		for _, e := range s.items {
			if e.epoch == epoch {
				items = append(items, e)
			}
		}
		s.mu.RUnlock()
		for _, e := range items {
			fn(e)
		}
	}
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
