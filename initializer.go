package tlfu

import (
	"sync"

	"github.com/cachekit/tlfu/internal/promise"
)

// initializer backs GetWith/TryGetWith's single-flight guarantee: the
// first caller to find a key missing registers a promise and runs the
// producer; every concurrent caller for the same key waits on that one
// promise instead of re-running it (spec.md §4.8). It is deliberately not
// built on golang.org/x/sync/singleflight — that package keys in-flight
// calls by string, which would force stringifying the cache's generic key
// type K and risk merging two distinct keys whose %v representations
// collide. initializer is keyed directly by K instead, following the
// sharded wait-map spec.md §9's design notes already prescribe.
type initializer[K comparable, V any] struct {
	shards []*initializerShard[K, V]
	mask   uint64
}

type initializerShard[K comparable, V any] struct {
	mu      sync.Mutex
	pending map[K]*promise.Promise[V]
}

func newInitializer[K comparable, V any](shardCount int) *initializer[K, V] {
	n := nextPowerOfTwo(shardCount)
	init := &initializer[K, V]{
		shards: make([]*initializerShard[K, V], n),
		mask:   uint64(n - 1),
	}
	for i := range init.shards {
		init.shards[i] = &initializerShard[K, V]{pending: make(map[K]*promise.Promise[V])}
	}
	return init
}

func (init *initializer[K, V]) shardFor(hash uint64) *initializerShard[K, V] {
	return init.shards[hash&init.mask]
}

// getOrCreate returns the in-flight promise for key if one already exists,
// or registers a new one and reports created=true for the one caller that
// must now run the producer function.
func (s *initializerShard[K, V]) getOrCreate(key K) (p *promise.Promise[V], created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.pending[key]; ok {
		return existing, false
	}
	p = promise.New[V]()
	s.pending[key] = p
	return p, true
}

// forget removes key's promise once it has settled, but only if p is still
// the promise currently registered — a late caller that raced a previous
// settle-and-forget cycle must not evict a newer in-flight promise.
func (s *initializerShard[K, V]) forget(key K, p *promise.Promise[V]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[key] == p {
		delete(s.pending, key)
	}
}
