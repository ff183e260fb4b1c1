package tlfu

import (
	"math"

	"github.com/cachekit/tlfu/internal/ringbuf"
)

// Get returns the value stored for key, if any live, unexpired entry
// exists for it. A hit is recorded in the Read Buffer for the maintenance
// task to fold into the frequency sketch and region ordering; Get itself
// never blocks on that bookkeeping (spec.md §4.1, §4.2).
func (c *Cache[K, V]) Get(key K) (V, bool) {
	var zero V
	hash := c.cfg.Hasher(key)
	e := c.shards.shardFor(hash).get(key)
	if e == nil || e.expired(c.clock.Now()) {
		c.misses.Add(1)
		return zero, false
	}
	c.hits.Add(1)
	c.recordRead(e)
	return e.value, true
}

func (c *Cache[K, V]) recordRead(e *entry[K, V]) {
	over := c.readBuf.Add(ringbuf.Record[readRecord[K, V]]{
		Value: readRecord[K, V]{entry: e, stamp: e.stamp},
	})
	if over {
		c.triggerMaintenance()
	}
}

// Insert stores value for key, overwriting and retiring whatever entry
// (if any) previously occupied that key. The map is updated synchronously
// under the shard's lock; the policy-side bookkeeping — region placement,
// deadline scheduling, and the old entry's eviction-listener callback — is
// deferred to the maintenance task via the Write Buffer (spec.md §4.3).
func (c *Cache[K, V]) Insert(key K, value V) error {
	weight := c.cfg.Weigher(key, value)
	if weight == 0 {
		return &InvalidConfigError{Reason: "weigher returned zero for an inserted entry"}
	}
	if c.weightedSize.Load() > math.MaxInt64-int64(weight) {
		return &InvalidConfigError{Reason: "weigher result would overflow the cache's weighted-size counter"}
	}

	hash := c.cfg.Hasher(key)
	s := c.shards.shardFor(hash)

	e := &entry[K, V]{
		key:        key,
		value:      value,
		hash:       hash,
		weight:     weight,
		lastAccess: c.clock.Now(),
	}

	old := s.upsert(key, e)
	if old != nil {
		e.stamp = old.stamp + 1
	}

	c.enqueueWrite(writeRecord[K, V]{op: writeUpsert, entry: e, replaced: old})
	return nil
}

// Invalidate removes key's entry, if present, and reports whether
// anything was removed. The map removal happens synchronously; the
// eviction-listener call and policy cleanup happen during maintenance.
func (c *Cache[K, V]) Invalidate(key K) bool {
	hash := c.cfg.Hasher(key)
	old := c.shards.shardFor(hash).remove(key)
	if old == nil {
		return false
	}
	c.enqueueWrite(writeRecord[K, V]{op: writeRemove, entry: old, cause: CauseExplicit})
	return true
}

// InvalidateAll discards every entry in the cache. It is O(shard count),
// not O(entry count): each shard's epoch is bumped so every entry already
// stored becomes a lazy miss, and a fresh maintenance pass drops them from
// the policy structures the next time it runs (spec.md SPEC_FULL §4
// EXPANDED item 2). The eviction listener is not invoked for entries
// discarded this way — there is no per-entry work to report.
func (c *Cache[K, V]) InvalidateAll() {
	c.shards.bumpEpoch()
	c.triggerMaintenance()
}

// InvalidateEntriesIf removes every entry for which predicate returns
// true, invoking the eviction listener once per removal with
// CauseExplicit. It requires Config.InvalidatorEnabled, since the full
// scan it performs is not free.
func (c *Cache[K, V]) InvalidateEntriesIf(predicate func(key K, value V) bool) error {
	if !c.cfg.InvalidatorEnabled {
		return &InvalidConfigError{Reason: "InvalidatorEnabled is false"}
	}
	c.shards.forEach(func(e *entry[K, V]) {
		if !predicate(e.key, e.value) {
			return
		}
		if old := c.shards.shardFor(e.hash).remove(e.key); old != nil {
			c.enqueueWrite(writeRecord[K, V]{op: writeRemove, entry: old, cause: CauseExplicit})
		}
	})
	return nil
}

// Iterate calls fn once per live entry, in no particular order. It is
// weakly consistent: entries inserted or removed concurrently with the
// call may or may not be observed, and fn must not call back into the
// cache (spec.md §4.9).
func (c *Cache[K, V]) Iterate(fn func(key K, value V) bool) {
	stop := false
	c.shards.forEach(func(e *entry[K, V]) {
		if stop {
			return
		}
		if !fn(e.key, e.value) {
			stop = true
		}
	})
}

// RunPendingTasks synchronously drains both buffers and runs one
// maintenance pass on the calling goroutine, regardless of the configured
// scheduler — useful for tests and for callers that need deterministic
// eviction-listener timing (spec.md §4.7's "explicit flush" note).
func (c *Cache[K, V]) RunPendingTasks() {
	c.runMaintenance()
}

func (c *Cache[K, V]) enqueueWrite(rec writeRecord[K, V]) {
	select {
	case c.writeBuf <- rec:
	default:
		// Buffer momentarily full under heavy write load: run maintenance
		// inline to drain it rather than blocking the writer indefinitely.
		c.runMaintenance()
		c.writeBuf <- rec
	}
	c.triggerMaintenance()
}
